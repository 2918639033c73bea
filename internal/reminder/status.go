package reminder

import (
	"context"
	"time"

	"github.com/mandoo180/telegram-note-bot/internal/domain"
)

// Status describes one unsent reminder for diagnostics.
type Status struct {
	ScheduleID int64     `json:"schedule_id"`
	UserID     int64     `json:"user_id"`
	Name       string    `json:"name"`
	Title      string    `json:"title"`
	StartAt    time.Time `json:"start_at"`
	FiringAt   time.Time `json:"firing_at"`
	Missed     bool      `json:"missed"`
	Armed      bool      `json:"armed"`
	Until      string    `json:"until"`
}

// Pending lists unsent reminders, for one user or all when userID is 0.
// Armed reports whether the running scheduler holds a job for the row.
func (s *Service) Pending(ctx context.Context, userID int64) ([]Status, error) {
	unsent, err := s.store.ListUnsentReminders(ctx, userID)
	if err != nil {
		return nil, err
	}
	armed := make(map[string]bool)
	for _, j := range s.jobs.Jobs() {
		armed[j.ID] = true
	}
	return statuses(unsent, armed, s.clock.Now()), nil
}

func statuses(unsent []domain.ArmedReminder, armed map[string]bool, now time.Time) []Status {
	out := make([]Status, 0, len(unsent))
	for _, u := range unsent {
		out = append(out, Status{
			ScheduleID: u.Schedule.ID,
			UserID:     u.Schedule.UserID,
			Name:       u.Schedule.Name,
			Title:      u.Schedule.Title,
			StartAt:    u.Schedule.StartAt,
			FiringAt:   u.Reminder.FiringAt,
			Missed:     !u.Reminder.FiringAt.After(now),
			Armed:      armed[JobID(u.Schedule.ID)],
			Until:      domain.Until(u.Reminder.FiringAt, now),
		})
	}
	return out
}
