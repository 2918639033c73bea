package reminder

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mandoo180/telegram-note-bot/internal/domain"
)

const jobPrefix = "reminder:"

// JobID derives the scheduler job id of a schedule's reminder.
func JobID(scheduleID int64) string {
	return jobPrefix + strconv.FormatInt(scheduleID, 10)
}

// Message renders the notification text for a schedule, times shown in loc.
func Message(s domain.Schedule, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔔 Reminder: %s\n\n", s.Title)
	fmt.Fprintf(&b, "Starts at: %s\n", domain.FormatDateTime(s.StartAt, loc))
	fmt.Fprintf(&b, "Ends at: %s", domain.FormatDateTime(s.EndAt, loc))
	if d := strings.TrimSpace(s.Description); d != "" {
		b.WriteString("\n\n")
		b.WriteString(d)
	}
	return b.String()
}
