// Package scheduler is an in-process timer engine. It keeps one job per id in a
// min-heap ordered by fire time and runs a single goroutine that sleeps until the
// earliest job is due (capped at maxSleepCap to absorb wall-clock steps), then
// hands due jobs to dispatch goroutines so a slow callback never delays the loop.
//
// Jobs live in memory only; callers rebuild them from durable state on restart.
package scheduler

import (
	"container/heap"
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mandoo180/telegram-note-bot/internal/clock"
)

const maxSleepCap = 60 * time.Second

// Func is a job callback. It is invoked at most once per registration.
type Func func(ctx context.Context)

type job struct {
	id     string
	fireAt time.Time
	fn     Func
	index  int
}

// JobInfo is a read-only view of a registered job.
type JobInfo struct {
	ID     string
	FireAt time.Time
}

// Scheduler owns the job table. Schedule and Cancel are the only mutators.
type Scheduler struct {
	clock clock.Clock
	log   *zap.Logger

	mu    sync.Mutex
	jobs  map[string]*job
	queue jobHeap

	wake chan struct{}
	sem  chan struct{}
	wg   sync.WaitGroup

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Scheduler that runs at most workers callbacks concurrently.
func New(clk clock.Clock, log *zap.Logger, workers int) *Scheduler {
	if workers <= 0 {
		workers = 1
	}
	return &Scheduler{
		clock: clk,
		log:   log.Named("scheduler"),
		jobs:  make(map[string]*job),
		wake:  make(chan struct{}, 1),
		sem:   make(chan struct{}, workers),
	}
}

// Schedule registers fn to run once at fireAt under id, replacing any job already
// registered under the same id; the replaced callback is never invoked.
// A fireAt that is not after now is not registered and false is returned.
func (s *Scheduler) Schedule(id string, fireAt time.Time, fn Func) bool {
	now := s.clock.Now()

	s.mu.Lock()
	replaced := s.removeLocked(id)
	if !fireAt.After(now) {
		s.mu.Unlock()
		s.log.Info("job not registered, fire time already passed",
			zap.String("job_id", id),
			zap.Time("fire_at", fireAt),
			zap.Time("now", now),
			zap.Bool("dropped_previous", replaced),
		)
		return false
	}
	j := &job{id: id, fireAt: fireAt.UTC(), fn: fn}
	s.jobs[id] = j
	heap.Push(&s.queue, j)
	s.mu.Unlock()

	s.poke()
	s.log.Debug("job registered",
		zap.String("job_id", id),
		zap.Time("fire_at", j.fireAt),
		zap.Bool("replaced", replaced),
	)
	return true
}

// Cancel removes the job registered under id. It reports whether a job was
// removed; cancelling an unknown or already dispatched job is a no-op.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	removed := s.removeLocked(id)
	s.mu.Unlock()

	if removed {
		s.poke()
		s.log.Debug("job cancelled", zap.String("job_id", id))
	}
	return removed
}

func (s *Scheduler) removeLocked(id string) bool {
	j, ok := s.jobs[id]
	if !ok {
		return false
	}
	delete(s.jobs, id)
	s.queue.remove(j)
	return true
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Jobs returns a snapshot of registered jobs ordered by fire time.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	out := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, JobInfo{ID: j.id, FireAt: j.fireAt})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, k int) bool { return out[i].FireAt.Before(out[k].FireAt) })
	return out
}

// Start launches the timer goroutine. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go s.run(runCtx, done)
	s.log.Info("scheduler started")
}

// Stop halts the timer goroutine, waits for dispatched callbacks to return and
// drops every registered job.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	<-done
	s.wg.Wait()

	s.mu.Lock()
	dropped := len(s.jobs)
	s.jobs = make(map[string]*job)
	s.queue = nil
	s.mu.Unlock()
	s.log.Info("scheduler stopped", zap.Int("dropped_jobs", dropped))
}

// poke wakes the loop so it re-evaluates the earliest job.
func (s *Scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// run is the single timer goroutine. Callbacks run on a context that outlives
// Stop so a delivery already in flight is allowed to finish.
func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	cbCtx := context.WithoutCancel(ctx)

	timer := time.NewTimer(maxSleepCap)
	defer timer.Stop()

	for {
		for _, j := range s.popDue() {
			s.dispatch(cbCtx, j)
		}
		timer.Reset(s.nextWait())

		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-timer.C:
		}
	}
}

// popDue removes and returns every job whose fire time has arrived.
func (s *Scheduler) popDue() []*job {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*job
	for {
		j := s.queue.peek()
		if j == nil || j.fireAt.After(now) {
			return due
		}
		heap.Pop(&s.queue)
		delete(s.jobs, j.id)
		due = append(due, j)
	}
}

func (s *Scheduler) nextWait() time.Duration {
	s.mu.Lock()
	j := s.queue.peek()
	s.mu.Unlock()
	if j == nil {
		return maxSleepCap
	}
	d := j.fireAt.Sub(s.clock.Now())
	if d > maxSleepCap {
		d = maxSleepCap
	}
	if d < 0 {
		d = 0
	}
	return d
}

func (s *Scheduler) dispatch(ctx context.Context, j *job) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sem <- struct{}{}
		defer func() { <-s.sem }()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("job panicked", zap.String("job_id", j.id), zap.Any("panic", r))
			}
		}()

		s.log.Debug("job firing", zap.String("job_id", j.id), zap.Time("fire_at", j.fireAt))
		j.fn(ctx)
	}()
}
