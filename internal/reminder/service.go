// Package reminder turns schedules into one-shot reminder notifications.
//
// The durable pending_reminders row is the source of truth for whether a
// reminder fired; the in-process scheduler only caches it and is rebuilt from
// the store by Reconcile on every start. Delivery is at-most-once: a failed
// send is logged and never retried.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mandoo180/telegram-note-bot/internal/clock"
	"github.com/mandoo180/telegram-note-bot/internal/domain"
	"github.com/mandoo180/telegram-note-bot/internal/scheduler"
	"github.com/mandoo180/telegram-note-bot/internal/store"
)

// Notifier delivers a text message to a user.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

// JobScheduler is the timer engine the service registers reminders with.
type JobScheduler interface {
	Schedule(id string, fireAt time.Time, fn scheduler.Func) bool
	Cancel(id string) bool
	Jobs() []scheduler.JobInfo
	Start(ctx context.Context)
	Stop()
}

// Service orchestrates reminder persistence, timers and delivery.
type Service struct {
	store    store.ReminderStore
	jobs     JobScheduler
	notifier Notifier
	clock    clock.Clock
	loc      *time.Location
	log      *zap.Logger

	mu       sync.Mutex
	inflight map[int64]struct{} // schedule ids currently being delivered
}

// NewService wires a Service. loc is the timezone used in message texts.
func NewService(st store.ReminderStore, jobs JobScheduler, n Notifier, clk clock.Clock, loc *time.Location, log *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store:    st,
		jobs:     jobs,
		notifier: n,
		clock:    clk,
		loc:      loc,
		log:      log.Named("reminder"),
		inflight: make(map[int64]struct{}),
	}
}

// Start re-arms persisted reminders and then starts the timer engine.
// If the store cannot be read the engine is not started.
func (s *Service) Start(ctx context.Context) error {
	armed, err := s.Reconcile(ctx)
	if err != nil {
		return err
	}
	s.jobs.Start(ctx)
	s.log.Info("reminder service started", zap.Int("rearmed", armed))
	return nil
}

// Stop halts the timer engine. Pending rows stay in the store for the next Start.
func (s *Service) Stop() {
	s.jobs.Stop()
	s.log.Info("reminder service stopped")
}

// ScheduleReminder persists and arms the reminder of sched. Schedules without a
// lead time are skipped without error. A firing time that has already passed
// is not armed, and any earlier reminder of the schedule is dropped.
func (s *Service) ScheduleReminder(ctx context.Context, sched domain.Schedule) error {
	log := s.log.With(zap.Int64("schedule_id", sched.ID), zap.String("name", sched.Name))

	firingAt, ok := sched.FiringTime()
	if !ok {
		log.Info("no reminder requested")
		return nil
	}
	// Stores keep whole seconds; the job must carry the same value as the row.
	firingAt = firingAt.Truncate(time.Second)
	now := s.clock.Now()
	if !firingAt.After(now) {
		log.Info("reminder time already passed, skipping",
			zap.Time("firing_at", firingAt), zap.Time("now", now))
		s.jobs.Cancel(JobID(sched.ID))
		if err := s.store.DeletePendingReminder(ctx, sched.ID); err != nil {
			return fmt.Errorf("drop stale reminder for schedule %d: %w", sched.ID, err)
		}
		return nil
	}

	if err := s.store.UpsertPendingReminder(ctx, sched.ID, firingAt); err != nil {
		return fmt.Errorf("persist reminder for schedule %d: %w", sched.ID, err)
	}
	s.arm(sched, firingAt)
	log.Info("reminder scheduled", zap.Time("firing_at", firingAt))
	return nil
}

// CancelReminder removes the timer and the pending row of a schedule.
// Cancelling a schedule that has no reminder is a no-op.
func (s *Service) CancelReminder(ctx context.Context, scheduleID int64) error {
	removed := s.jobs.Cancel(JobID(scheduleID))
	if err := s.store.DeletePendingReminder(ctx, scheduleID); err != nil {
		return fmt.Errorf("delete reminder for schedule %d: %w", scheduleID, err)
	}
	s.log.Info("reminder cancelled",
		zap.Int64("schedule_id", scheduleID), zap.Bool("had_job", removed))
	return nil
}

// Reconcile registers a job for every unsent reminder whose firing time is
// still ahead. Past-due unsent rows are left untouched and only counted.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	now := s.clock.Now()
	pending, err := s.store.ListArmableReminders(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("load pending reminders: %w", err)
	}

	armed := 0
	for _, p := range pending {
		if s.arm(p.Schedule, p.Reminder.FiringAt) {
			armed++
		}
		s.log.Debug("pending reminder loaded",
			zap.Int64("schedule_id", p.Schedule.ID),
			zap.Time("firing_at", p.Reminder.FiringAt))
	}

	if unsent, err := s.store.ListUnsentReminders(ctx, 0); err != nil {
		s.log.Warn("count missed reminders failed", zap.Error(err))
	} else if missed := countMissed(unsent, now); missed > 0 {
		s.log.Warn("unsent reminders past due, not delivering", zap.Int("missed", missed))
	}
	return armed, nil
}

func (s *Service) arm(sched domain.Schedule, firingAt time.Time) bool {
	return s.jobs.Schedule(JobID(sched.ID), firingAt, func(ctx context.Context) {
		s.fire(ctx, sched, firingAt)
	})
}

// fire delivers the firingAt occurrence of sched at most once. A row that was
// replaced by a later edit belongs to another occurrence and is left alone.
func (s *Service) fire(ctx context.Context, sched domain.Schedule, firingAt time.Time) {
	log := s.log.With(
		zap.Int64("schedule_id", sched.ID),
		zap.Int64("user_id", sched.UserID),
		zap.Time("firing_at", firingAt),
		zap.String("fire_id", uuid.NewString()),
	)

	if !s.claim(sched.ID) {
		log.Warn("reminder already being delivered, skipping")
		return
	}
	defer s.release(sched.ID)

	p, err := s.store.GetPendingReminder(ctx, sched.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		log.Info("reminder cancelled before delivery")
		return
	case err != nil:
		log.Error("load reminder failed, not delivering", zap.Error(err))
		return
	case !p.FiringAt.Equal(firingAt):
		log.Info("reminder superseded by a later edit", zap.Time("current_firing_at", p.FiringAt))
		return
	case p.Sent:
		log.Info("reminder already sent")
		return
	}

	if err := s.notifier.Notify(ctx, sched.UserID, Message(sched, s.loc)); err != nil {
		log.Error("reminder delivery failed, not retrying", zap.Error(err))
		return
	}

	marked, err := s.store.MarkReminderSent(ctx, sched.ID, firingAt, s.clock.Now())
	if err != nil {
		log.Error("mark reminder sent failed", zap.Error(err))
		return
	}
	if !marked {
		log.Warn("reminder row replaced or removed during delivery")
	}
	log.Info("reminder sent")
}

func (s *Service) claim(scheduleID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[scheduleID]; busy {
		return false
	}
	s.inflight[scheduleID] = struct{}{}
	return true
}

func (s *Service) release(scheduleID int64) {
	s.mu.Lock()
	delete(s.inflight, scheduleID)
	s.mu.Unlock()
}

func countMissed(unsent []domain.ArmedReminder, now time.Time) int {
	n := 0
	for _, u := range unsent {
		if !u.Reminder.FiringAt.After(now) {
			n++
		}
	}
	return n
}
