package store

import (
	"context"
	"errors"
	"time"

	"github.com/mandoo180/telegram-note-bot/internal/domain"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ScheduleRepo is the schedule storage used by the chat layer.
type ScheduleRepo interface {
	// SaveSchedule inserts or updates the schedule identified by (UserID, Name)
	// and sets s.ID. existed reports whether a row was already present.
	SaveSchedule(ctx context.Context, s *domain.Schedule) (existed bool, err error)
	GetSchedule(ctx context.Context, userID int64, name string) (*domain.Schedule, error)
	ListUpcoming(ctx context.Context, userID int64, from time.Time, limit int) ([]domain.Schedule, error)
	// DeleteSchedule removes the schedule and, by cascade, its reminder row.
	DeleteSchedule(ctx context.Context, userID int64, name string) (bool, error)
}

// ReminderStore persists reminder decisions. One row per schedule.
type ReminderStore interface {
	// UpsertPendingReminder creates or replaces the row for scheduleID with sent = false.
	UpsertPendingReminder(ctx context.Context, scheduleID int64, firingAt time.Time) error
	// MarkReminderSent sets sent = true only if the row is still unsent and still
	// holds the occurrence firing at firingAt. It reports whether this call
	// performed the transition.
	MarkReminderSent(ctx context.Context, scheduleID int64, firingAt, sentAt time.Time) (bool, error)
	GetPendingReminder(ctx context.Context, scheduleID int64) (*domain.PendingReminder, error)
	// ListArmableReminders returns unsent reminders whose firing time is after now.
	ListArmableReminders(ctx context.Context, now time.Time) ([]domain.ArmedReminder, error)
	// ListUnsentReminders returns every unsent reminder, past due or not, ordered by
	// firing time. userID 0 means all users.
	ListUnsentReminders(ctx context.Context, userID int64) ([]domain.ArmedReminder, error)
	DeletePendingReminder(ctx context.Context, scheduleID int64) error
}

// Repo is the full storage surface of the bot.
type Repo interface {
	ScheduleRepo
	ReminderStore
	Ping(ctx context.Context) error
	Close() error
}
