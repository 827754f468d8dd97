// Package events delivers committed ledger events to downstream consumers
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"exchange-ledger-go/internal/metrics"
	"exchange-ledger-go/internal/models"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Sink interface {
	Publish(ctx context.Context, event models.LedgerEvent) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes each event as one JSON message keyed by user, so a user's events keep
// their order within a partition
type KafkaSink struct {
	writer messageWriter
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			zap.L().Debug(fmt.Sprintf(msg, args...))
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			zap.L().Warn(fmt.Sprintf(msg, args...))
		}),
	}
	zap.L().Info("Kafka event sink initialized",
		zap.Strings("brokers", brokers),
		zap.String("topic", topic))
	return &KafkaSink{writer: writer}
}

func (k *KafkaSink) Publish(ctx context.Context, event models.LedgerEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", event.Id, err)
	}
	key := event.UserId
	if key == "" {
		key = event.Reference
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(event.Kind)},
		},
		Time: event.OccurredAt,
	})
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}

// LogSink writes events to the structured log
type LogSink struct{}

func (LogSink) Publish(_ context.Context, event models.LedgerEvent) error {
	zap.L().Info("Ledger event",
		zap.String("event_id", event.Id),
		zap.String("kind", event.Kind),
		zap.String("reference", event.Reference),
		zap.String("user_id", event.UserId),
		zap.Int("deltas", len(event.Deltas)))
	return nil
}

type namedSink struct {
	name string
	sink Sink
}

// Fanout hands every event to each registered sink. A failing sink does not stop the others.
type Fanout struct {
	sinks []namedSink
}

func NewFanout() *Fanout {
	return &Fanout{}
}

func (f *Fanout) Add(name string, sink Sink) *Fanout {
	f.sinks = append(f.sinks, namedSink{name: name, sink: sink})
	return f
}

func (f *Fanout) Len() int {
	return len(f.sinks)
}

func (f *Fanout) Publish(ctx context.Context, event models.LedgerEvent) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.sink.Publish(ctx, event); err != nil {
			metrics.EventsPublished.WithLabelValues(s.name, "error").Inc()
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			continue
		}
		metrics.EventsPublished.WithLabelValues(s.name, "ok").Inc()
	}
	return errors.Join(errs...)
}
