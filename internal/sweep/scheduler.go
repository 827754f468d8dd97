// Package sweep runs the periodic ledger jobs: filling triggered orders and expiring signals
package sweep

import (
	"context"
	"fmt"
	"time"

	"exchange-ledger-go/internal/metrics"
	"exchange-ledger-go/internal/models"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Runner is the part of the ledger the jobs drive
type Runner interface {
	SweepOrders(ctx context.Context) (*models.SweepReport, error)
	ExpireSignals(ctx context.Context) (int, error)
}

type Scheduler struct {
	runner Runner
	cfg    models.SweepConfig
	sched  gocron.Scheduler
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(runner Runner, cfg models.SweepConfig) (*Scheduler, error) {
	if cfg.OrderInterval <= 0 {
		cfg.OrderInterval = time.Minute
	}
	if cfg.SignalExpiryInterval <= 0 {
		cfg.SignalExpiryInterval = 5 * time.Minute
	}
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Scheduler{runner: runner, cfg: cfg, sched: sched}, nil
}

// Start registers both jobs and starts the scheduler. A job that is still running when its
// next tick arrives is skipped rather than run concurrently.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	jobs := []struct {
		name     string
		interval time.Duration
		fn       func(context.Context)
	}{
		{"order-sweep", s.cfg.OrderInterval, func(ctx context.Context) { _, _ = s.RunOrders(ctx) }},
		{"signal-expiry", s.cfg.SignalExpiryInterval, func(ctx context.Context) { _, _ = s.RunExpiry(ctx) }},
	}
	for _, j := range jobs {
		fn := j.fn
		_, err := s.sched.NewJob(
			gocron.DurationJob(j.interval),
			gocron.NewTask(func() { fn(s.ctx) }),
			gocron.WithName(j.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", j.name, err)
		}
	}

	s.sched.Start()
	zap.L().Info("Sweep scheduler started",
		zap.Duration("order_interval", s.cfg.OrderInterval),
		zap.Duration("signal_expiry_interval", s.cfg.SignalExpiryInterval))
	return nil
}

// Stop waits for running jobs to finish
func (s *Scheduler) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	return s.sched.Shutdown()
}

// RunOrders performs one order sweep
func (s *Scheduler) RunOrders(ctx context.Context) (*models.SweepReport, error) {
	ctx = models.WithOrigin(ctx, &models.Origin{Source: "sweep"})
	start := time.Now()

	report, err := s.runner.SweepOrders(ctx)
	if err != nil {
		zap.L().Error("Order sweep failed", zap.Error(err))
		return nil, err
	}
	metrics.RecordSweep(report.Filled, report.Skipped, report.Failed)

	if report.Filled > 0 || report.Failed > 0 {
		zap.L().Info("Order sweep finished",
			zap.Int("checked", report.Checked),
			zap.Int("filled", report.Filled),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed),
			zap.Duration("took", time.Since(start)))
	}
	return report, nil
}

// RunExpiry deactivates expired signals once
func (s *Scheduler) RunExpiry(ctx context.Context) (int, error) {
	ctx = models.WithOrigin(ctx, &models.Origin{Source: "sweep"})

	n, err := s.runner.ExpireSignals(ctx)
	if err != nil {
		zap.L().Error("Signal expiry failed", zap.Error(err))
		return 0, err
	}
	metrics.SignalsExpired.Add(float64(n))
	return n, nil
}
