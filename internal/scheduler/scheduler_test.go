package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mandoo180/telegram-note-bot/internal/clock"
)

func newStarted(t *testing.T, workers int) *Scheduler {
	t.Helper()
	s := New(clock.System{}, zap.NewNop(), workers)
	s.Start(context.Background())
	t.Cleanup(s.Stop)
	return s
}

func waitFor(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("want %q to fire, got %q", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func TestScheduler_AddAndFire(t *testing.T) {
	s := newStarted(t, 2)
	fired := make(chan string, 1)

	ok := s.Schedule("j1", time.Now().Add(50*time.Millisecond), func(context.Context) { fired <- "j1" })
	if !ok {
		t.Fatal("expected job to be registered")
	}
	waitFor(t, fired, "j1")

	if n := s.Len(); n != 0 {
		t.Fatalf("fired job still registered, len=%d", n)
	}
}

func TestScheduler_FiresOnce(t *testing.T) {
	s := newStarted(t, 1)
	var calls atomic.Int32

	s.Schedule("once", time.Now().Add(20*time.Millisecond), func(context.Context) { calls.Add(1) })
	time.Sleep(300 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Fatalf("want exactly 1 call, got %d", got)
	}
}

func TestScheduler_ReplaceDiscardsPrevious(t *testing.T) {
	s := newStarted(t, 2)
	fired := make(chan string, 2)

	s.Schedule("same", time.Now().Add(50*time.Millisecond), func(context.Context) { fired <- "first" })
	s.Schedule("same", time.Now().Add(150*time.Millisecond), func(context.Context) { fired <- "second" })

	if n := s.Len(); n != 1 {
		t.Fatalf("want 1 job after replace, got %d", n)
	}
	waitFor(t, fired, "second")

	select {
	case got := <-fired:
		t.Fatalf("replaced callback fired: %q", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestScheduler_CancelBeforeFire(t *testing.T) {
	s := newStarted(t, 1)
	var calls atomic.Int32

	s.Schedule("c1", time.Now().Add(150*time.Millisecond), func(context.Context) { calls.Add(1) })
	if !s.Cancel("c1") {
		t.Fatal("expected cancel to remove the job")
	}
	time.Sleep(300 * time.Millisecond)

	if calls.Load() != 0 {
		t.Fatal("cancelled job fired")
	}
}

func TestScheduler_CancelUnknownIsNoop(t *testing.T) {
	s := newStarted(t, 1)
	if s.Cancel("missing") {
		t.Fatal("cancel of unknown id reported removal")
	}
	s.Schedule("x", time.Now().Add(time.Hour), func(context.Context) {})
	s.Cancel("x")
	if s.Cancel("x") {
		t.Fatal("double cancel reported removal")
	}
}

func TestScheduler_PastDueNotRegistered(t *testing.T) {
	now := time.Date(2025, 1, 10, 9, 45, 0, 0, time.UTC)
	s := New(clock.NewFake(now), zap.NewNop(), 1)

	if s.Schedule("late", now.Add(-15*time.Minute), func(context.Context) {}) {
		t.Fatal("past-due job registered")
	}
	if s.Schedule("now", now, func(context.Context) {}) {
		t.Fatal("job at exactly now registered")
	}
	if s.Len() != 0 {
		t.Fatalf("want empty table, got %d", s.Len())
	}
}

func TestScheduler_PastDueDropsStaleRegistration(t *testing.T) {
	fc := clock.NewFake(time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC))
	s := New(fc, zap.NewNop(), 1)

	s.Schedule("r", fc.Now().Add(time.Hour), func(context.Context) {})
	if s.Schedule("r", fc.Now().Add(-time.Minute), func(context.Context) {}) {
		t.Fatal("past-due job registered")
	}
	if s.Len() != 0 {
		t.Fatal("stale registration kept after past-due replace")
	}
}

func TestScheduler_SlowCallbackDoesNotBlockOthers(t *testing.T) {
	s := newStarted(t, 2)
	release := make(chan struct{})
	fired := make(chan string, 2)

	s.Schedule("slow", time.Now().Add(20*time.Millisecond), func(context.Context) {
		fired <- "slow"
		<-release
	})
	s.Schedule("fast", time.Now().Add(60*time.Millisecond), func(context.Context) { fired <- "fast" })

	waitFor(t, fired, "slow")
	waitFor(t, fired, "fast")
	close(release)
}

func TestScheduler_CancelWhileFiring(t *testing.T) {
	s := newStarted(t, 1)
	started := make(chan string, 1)
	release := make(chan struct{})
	var calls atomic.Int32

	s.Schedule("busy", time.Now().Add(20*time.Millisecond), func(context.Context) {
		calls.Add(1)
		started <- "busy"
		<-release
	})
	waitFor(t, started, "busy")

	if s.Cancel("busy") {
		t.Fatal("cancel of an in-flight job reported removal")
	}
	close(release)
	time.Sleep(50 * time.Millisecond)

	if calls.Load() != 1 {
		t.Fatalf("want 1 call, got %d", calls.Load())
	}
}

func TestScheduler_ConcurrentScheduleSameID(t *testing.T) {
	s := newStarted(t, 4)
	var calls atomic.Int32
	at := time.Now().Add(100 * time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Schedule("dup", at, func(context.Context) { calls.Add(1) })
		}()
	}
	wg.Wait()

	if n := s.Len(); n != 1 {
		t.Fatalf("want 1 job, got %d", n)
	}
	time.Sleep(400 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("want exactly 1 call, got %d", got)
	}
}

func TestScheduler_StopDropsJobsAndWaits(t *testing.T) {
	s := New(clock.System{}, zap.NewNop(), 1)
	s.Start(context.Background())

	started := make(chan string, 1)
	var finished atomic.Bool
	s.Schedule("inflight", time.Now().Add(10*time.Millisecond), func(ctx context.Context) {
		started <- "inflight"
		time.Sleep(100 * time.Millisecond)
		if ctx.Err() == nil {
			finished.Store(true)
		}
	})
	s.Schedule("later", time.Now().Add(time.Hour), func(context.Context) {})
	waitFor(t, started, "inflight")

	s.Stop()
	if !finished.Load() {
		t.Fatal("Stop returned before the in-flight callback finished with a live context")
	}
	if s.Len() != 0 {
		t.Fatalf("want jobs dropped on stop, got %d", s.Len())
	}
	s.Stop() // second stop is a no-op
}

func TestScheduler_JobsOrdered(t *testing.T) {
	s := New(clock.System{}, zap.NewNop(), 1)
	base := time.Now().Add(time.Hour)
	s.Schedule("c", base.Add(2*time.Minute), func(context.Context) {})
	s.Schedule("a", base, func(context.Context) {})
	s.Schedule("b", base.Add(time.Minute), func(context.Context) {})

	jobs := s.Jobs()
	if len(jobs) != 3 || jobs[0].ID != "a" || jobs[1].ID != "b" || jobs[2].ID != "c" {
		t.Fatalf("unexpected order: %+v", jobs)
	}
}

func TestScheduler_JobsRegisteredBeforeStartFire(t *testing.T) {
	s := New(clock.System{}, zap.NewNop(), 1)
	fired := make(chan string, 1)
	s.Schedule("early", time.Now().Add(30*time.Millisecond), func(context.Context) { fired <- "early" })

	s.Start(context.Background())
	defer s.Stop()
	waitFor(t, fired, "early")
}
