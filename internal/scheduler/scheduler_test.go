package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeExpirer struct {
	calls atomic.Int32
	ttl   atomic.Int64
	err   error
}

func (f *fakeExpirer) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	f.calls.Add(1)
	f.ttl.Store(int64(olderThan))
	if f.err != nil {
		return 0, f.err
	}
	return 2, nil
}

func TestSchedulerAddJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	if err := s.AddJob("* * * * *", func() {}); err != nil {
		t.Errorf("Expected no error adding job, got %v", err)
	}
	if err := s.AddJob("@every 1h", func() {}); err != nil {
		t.Errorf("Expected descriptor to parse, got %v", err)
	}
	if err := s.AddJob("not a cron", func() {}); err == nil {
		t.Error("Expected error for invalid expression")
	}
}

func TestSweep(t *testing.T) {
	e := &fakeExpirer{}
	n, err := Sweep(context.Background(), e, time.Hour)
	if err != nil || n != 2 {
		t.Fatalf("Sweep = %d, %v", n, err)
	}
	if time.Duration(e.ttl.Load()) != time.Hour {
		t.Errorf("expected ttl 1h, got %s", time.Duration(e.ttl.Load()))
	}

	failing := &fakeExpirer{err: errors.New("store down")}
	if _, err := Sweep(context.Background(), failing, time.Hour); err == nil {
		t.Error("expected sweep error")
	}
}

func TestScheduleSweepRunsJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	e := &fakeExpirer{}

	if err := s.ScheduleSweep(context.Background(), "@every 1s", time.Minute, e); err != nil {
		t.Fatalf("ScheduleSweep failed: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for e.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if e.calls.Load() == 0 {
		t.Fatal("sweep job did not run")
	}
}

func TestScheduleSweepValidation(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	e := &fakeExpirer{}

	if err := s.ScheduleSweep(context.Background(), "", 0, e); err == nil {
		t.Error("expected error for zero ttl")
	}
	if err := s.ScheduleSweep(context.Background(), "bogus", time.Minute, e); err == nil {
		t.Error("expected error for invalid spec")
	}
	if err := s.ScheduleSweep(context.Background(), "", time.Minute, e); err != nil {
		t.Errorf("empty spec should use the default, got %v", err)
	}
}
