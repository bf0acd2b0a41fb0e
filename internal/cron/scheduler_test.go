package cron_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/basket/a2a-agent/internal/cron"
)

func waitFor(t *testing.T, deadline time.Duration, check func() bool) {
	t.Helper()
	end := time.Now().Add(deadline)
	for time.Now().Before(end) {
		if check() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestSchedulerFiresOnEveryInterval(t *testing.T) {
	var fires int32
	s, err := cron.NewScheduler(cron.Config{
		Spec: "@every 20ms",
		Fire: func(ctx context.Context) { atomic.AddInt32(&fires, 1) },
	})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	waitFor(t, time.Second, func() bool { return atomic.LoadInt32(&fires) >= 2 })
}

func TestSchedulerStopHaltsFiring(t *testing.T) {
	var fires int32
	s, err := cron.NewScheduler(cron.Config{
		Spec: "@every 10ms",
		Fire: func(ctx context.Context) { atomic.AddInt32(&fires, 1) },
	})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	ctx := context.Background()
	s.Start(ctx)
	waitFor(t, time.Second, func() bool { return atomic.LoadInt32(&fires) >= 1 })
	s.Stop()

	snapshot := atomic.LoadInt32(&fires)
	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&fires) != snapshot {
		t.Fatal("scheduler kept firing after Stop")
	}
}

func TestNewSchedulerRejectsInvalidSpec(t *testing.T) {
	if _, err := cron.NewScheduler(cron.Config{Spec: "not a cron spec", Fire: func(context.Context) {}}); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}
