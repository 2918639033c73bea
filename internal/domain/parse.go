package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrEmptyName         = errors.New("empty schedule name")
	ErrEmptyTitle        = errors.New("empty schedule title")
	ErrInvalidDateTime   = errors.New("invalid date-time")
	ErrEndBeforeStart    = errors.New("end must be after start")
	ErrInvalidReminder   = errors.New("invalid reminder minutes")
	ErrInvalidTZ         = errors.New("invalid timezone")
	ErrInvalidScheduleIn = errors.New("expected: name | title | start | end | reminder_min | description")
)

// DisplayLayout is used for every date-time shown to users.
const DisplayLayout = "2006-01-02 15:04"

// maxReminderMinutes caps the lead time at 30 days.
const maxReminderMinutes = 30 * 24 * 60

var dateTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseDateTime parses s as a wall-clock time in loc and returns it in UTC.
// Accepted: "YYYY-MM-DD HH:MM[:SS]" with a space or a "T" separator.
func ParseDateTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q, expected YYYY-MM-DD HH:MM", ErrInvalidDateTime, s)
}

// FormatDateTime renders t in loc using DisplayLayout.
func FormatDateTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DisplayLayout)
}

// ParseReminderMinutes parses a lead time in minutes. Empty input means no reminder.
func ParseReminderMinutes(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	m, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidReminder, s)
	}
	if m < 0 || m > maxReminderMinutes {
		return 0, fmt.Errorf("%w: must be between 0 and %d", ErrInvalidReminder, maxReminderMinutes)
	}
	return m, nil
}

// ParseScheduleLine parses "name | title | start | end | reminder_min | description".
// The description is optional and may itself contain "|".
func ParseScheduleLine(userID int64, line string, loc *time.Location) (*Schedule, error) {
	parts := strings.SplitN(line, "|", 6)
	if len(parts) < 5 {
		return nil, ErrInvalidScheduleIn
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	start, err := ParseDateTime(parts[2], loc)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	end, err := ParseDateTime(parts[3], loc)
	if err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}
	mins, err := ParseReminderMinutes(parts[4])
	if err != nil {
		return nil, err
	}

	s := &Schedule{
		UserID:          userID,
		Name:            parts[0],
		Title:           parts[1],
		StartAt:         start,
		EndAt:           end,
		ReminderMinutes: mins,
	}
	if len(parts) == 6 {
		s.Description = parts[5]
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// ValidateTZ checks that the tz is a valid IANA location. An empty name is
// rejected rather than silently meaning UTC.
func ValidateTZ(tz string) (*time.Location, error) {
	if strings.TrimSpace(tz) == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidTZ)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTZ, err)
	}
	return loc, nil
}

// Until describes how far t is from now, e.g. "in 1h30m" or "past due by 15m".
func Until(t, now time.Time) string {
	d := t.Sub(now).Truncate(time.Minute)
	if d > 0 {
		return "in " + shortDuration(d)
	}
	return "past due by " + shortDuration(-d)
}

func shortDuration(d time.Duration) string {
	s := d.String()
	s = strings.TrimSuffix(s, "0s")
	if strings.HasSuffix(s, "h0m") {
		s = strings.TrimSuffix(s, "0m")
	}
	if s == "" {
		return "0m"
	}
	return s
}
