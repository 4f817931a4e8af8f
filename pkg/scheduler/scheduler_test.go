// Copyright 2025 Certen Protocol

package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerRunsRegisteredTaskRepeatedly(t *testing.T) {
	var runs int32
	s := New()
	s.Register("tick", 5*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	defer s.Stop()

	deadline := time.After(500 * time.Millisecond)
	for {
		if atomic.LoadInt32(&runs) >= 3 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 runs within 500ms, got %d", atomic.LoadInt32(&runs))
		case <-time.After(time.Millisecond):
		}
	}
}

func TestSchedulerStopWaitsForInFlightRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	s := New()
	s.Register("slow", time.Millisecond, func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})

	s.Start(context.Background())

	<-started
	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned before the in-flight task finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Stop did not return after the task released")
	}
}

func TestSchedulerTaskErrorDoesNotStopOthers(t *testing.T) {
	var failing, healthy int32
	s := New()
	s.Register("failing", 5*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt32(&failing, 1)
		return context.DeadlineExceeded
	})
	s.Register("healthy", 5*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt32(&healthy, 1)
		return nil
	})

	s.Start(context.Background())
	defer s.Stop()

	deadline := time.After(500 * time.Millisecond)
	for {
		if atomic.LoadInt32(&failing) >= 2 && atomic.LoadInt32(&healthy) >= 2 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("expected both tasks to keep running independently, got failing=%d healthy=%d",
				atomic.LoadInt32(&failing), atomic.LoadInt32(&healthy))
		case <-time.After(time.Millisecond):
		}
	}
}
