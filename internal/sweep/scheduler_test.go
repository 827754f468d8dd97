package sweep

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"exchange-ledger-go/internal/models"
)

type fakeRunner struct {
	sweeps  int32
	expires int32
	origins chan *models.Origin
	err     error
}

func (f *fakeRunner) SweepOrders(ctx context.Context) (*models.SweepReport, error) {
	atomic.AddInt32(&f.sweeps, 1)
	if f.origins != nil {
		select {
		case f.origins <- models.GetOrigin(ctx):
		default:
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.SweepReport{Checked: 3, Filled: 1, Skipped: 1, Failed: 1}, nil
}

func (f *fakeRunner) ExpireSignals(ctx context.Context) (int, error) {
	atomic.AddInt32(&f.expires, 1)
	return 2, f.err
}

func TestRunOrders(t *testing.T) {
	runner := &fakeRunner{origins: make(chan *models.Origin, 1)}
	s, err := NewScheduler(runner, models.SweepConfig{})
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}

	report, err := s.RunOrders(context.Background())
	if err != nil {
		t.Fatalf("RunOrders failed: %v", err)
	}
	if report.Filled != 1 || report.Checked != 3 {
		t.Errorf("Unexpected report %+v", report)
	}
	if o := <-runner.origins; o == nil || o.Source != "sweep" {
		t.Errorf("Expected sweep origin, got %+v", o)
	}

	n, err := s.RunExpiry(context.Background())
	if err != nil || n != 2 {
		t.Errorf("Expected 2 expired signals, got %d (%v)", n, err)
	}
}

func TestRunOrders_PropagatesErrors(t *testing.T) {
	runner := &fakeRunner{err: errors.New("database is locked")}
	s, err := NewScheduler(runner, models.SweepConfig{})
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}
	if _, err := s.RunOrders(context.Background()); err == nil {
		t.Error("Expected sweep error")
	}
	if _, err := s.RunExpiry(context.Background()); err == nil {
		t.Error("Expected expiry error")
	}
}

func TestScheduler_RunsJobs(t *testing.T) {
	runner := &fakeRunner{}
	s, err := NewScheduler(runner, models.SweepConfig{
		OrderInterval:        20 * time.Millisecond,
		SignalExpiryInterval: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(&runner.sweeps) > 0 && atomic.LoadInt32(&runner.expires) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if atomic.LoadInt32(&runner.sweeps) == 0 || atomic.LoadInt32(&runner.expires) == 0 {
		t.Errorf("Expected both jobs to run, got sweeps=%d expires=%d", runner.sweeps, runner.expires)
	}
}
