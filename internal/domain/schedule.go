package domain

import (
	"strings"
	"time"
)

// Schedule is a user's calendar entry. StartAt and EndAt are UTC instants.
type Schedule struct {
	ID              int64
	UserID          int64  // Telegram chat id
	Name            string // per-user unique handle used by chat commands
	Title           string
	Description     string
	StartAt         time.Time
	EndAt           time.Time
	ReminderMinutes int // minutes before StartAt; <= 0 means no reminder
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Validate checks the invariants a schedule must hold before it is stored.
func (s *Schedule) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(s.Title) == "" {
		return ErrEmptyTitle
	}
	if !s.StartAt.Before(s.EndAt) {
		return ErrEndBeforeStart
	}
	if s.ReminderMinutes < 0 {
		return ErrInvalidReminder
	}
	return nil
}

// HasReminder reports whether a reminder was requested for the schedule.
func (s *Schedule) HasReminder() bool {
	return s.ReminderMinutes > 0
}

// LeadTime returns the reminder lead time as a duration.
func (s *Schedule) LeadTime() time.Duration {
	if s.ReminderMinutes <= 0 {
		return 0
	}
	return time.Duration(s.ReminderMinutes) * time.Minute
}

// FiringTime returns StartAt minus the lead time in UTC.
// ok is false when no reminder was requested.
func (s *Schedule) FiringTime() (t time.Time, ok bool) {
	if !s.HasReminder() {
		return time.Time{}, false
	}
	return s.StartAt.Add(-s.LeadTime()).UTC(), true
}

// PendingReminder is the durable record of a reminder decision for one schedule.
type PendingReminder struct {
	ScheduleID int64
	FiringAt   time.Time  // UTC
	Sent       bool       // flips false -> true once per occurrence
	SentAt     *time.Time // UTC, set together with Sent
}

// ArmedReminder pairs an unsent reminder with the schedule it belongs to.
type ArmedReminder struct {
	Reminder PendingReminder
	Schedule Schedule
}
