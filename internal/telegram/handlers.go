package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/mandoo180/telegram-note-bot/internal/domain"
	"github.com/mandoo180/telegram-note-bot/internal/store"
)

const upcomingLimit = 10

// --- Generic helpers ---

func (r *Router) sendText(ctx context.Context, chatID int64, text string) {
	if err := r.sender.Send(ctx, tgbotapi.NewMessage(chatID, text)); err != nil {
		r.log.Warn("send reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (r *Router) sendWithMenu(ctx context.Context, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = mainMenuKeyboard()
	if err := r.sender.Send(ctx, msg); err != nil {
		r.log.Warn("send reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (r *Router) formatSchedule(s *domain.Schedule) string {
	reminderLine := ""
	if s.HasReminder() {
		reminderLine = fmt.Sprintf(reminderFmt, s.ReminderMinutes)
	}
	desc := ""
	if s.Description != "" {
		desc = "\n" + s.Description
	}
	return fmt.Sprintf(scheduleFmt,
		s.Title, s.Name,
		domain.FormatDateTime(s.StartAt, r.loc), domain.FormatDateTime(s.EndAt, r.loc),
		reminderLine, desc,
	)
}

// --- Core commands ---

func (r *Router) handleStart(ctx context.Context, chatID int64) {
	r.sendWithMenu(ctx, chatID, startText)
}

func (r *Router) handleHelp(ctx context.Context, chatID int64) {
	r.sendWithMenu(ctx, chatID, fmt.Sprintf(helpText, r.loc.String()))
}

func (r *Router) handleSchedule(ctx context.Context, chatID int64, args string) {
	args = strings.TrimSpace(args)
	switch {
	case args == "":
		r.sendText(ctx, chatID, scheduleUsage)
	case strings.Contains(args, "|"):
		r.saveSchedule(ctx, chatID, args)
	default:
		r.showSchedule(ctx, chatID, args)
	}
}

func (r *Router) showSchedule(ctx context.Context, chatID int64, name string) {
	s, err := r.repo.GetSchedule(ctx, chatID, name)
	if errors.Is(err, store.ErrNotFound) {
		r.sendText(ctx, chatID, fmt.Sprintf("Schedule %q not found.", name))
		return
	}
	if err != nil {
		r.log.Error("get schedule failed", zap.Error(err))
		r.sendText(ctx, chatID, "Error reading the schedule.")
		return
	}
	r.sendText(ctx, chatID, r.formatSchedule(s))
}

// saveSchedule stores the schedule and re-arms its reminder. An edit first drops
// the previous reminder so a removed or moved lead time cannot fire stale.
func (r *Router) saveSchedule(ctx context.Context, chatID int64, args string) {
	s, err := domain.ParseScheduleLine(chatID, args, r.loc)
	if err != nil {
		r.sendText(ctx, chatID, "Invalid schedule: "+err.Error()+"\n\n"+scheduleUsage)
		return
	}

	existed, err := r.repo.SaveSchedule(ctx, s)
	if err != nil {
		r.log.Error("save schedule failed", zap.Error(err))
		r.sendText(ctx, chatID, "Could not save the schedule.")
		return
	}
	log := r.log.With(zap.Int64("schedule_id", s.ID), zap.Bool("updated", existed))

	if existed {
		if err := r.reminders.CancelReminder(ctx, s.ID); err != nil {
			log.Warn("cancel previous reminder failed", zap.Error(err))
		}
	}

	var b strings.Builder
	if existed {
		b.WriteString("✏️ Schedule updated\n\n")
	} else {
		b.WriteString("✅ Schedule saved\n\n")
	}
	b.WriteString(r.formatSchedule(s))

	if firingAt, ok := s.FiringTime(); ok {
		if !firingAt.After(r.clock.Now()) {
			b.WriteString("\n\n" + pastDueText)
		} else if err := r.reminders.ScheduleReminder(ctx, *s); err != nil {
			log.Error("schedule reminder failed", zap.Error(err))
			b.WriteString("\n\n⚠️ The reminder could not be scheduled.")
		}
	}
	log.Info("schedule saved")
	r.sendText(ctx, chatID, b.String())
}

func (r *Router) handleSchedules(ctx context.Context, chatID int64) {
	list, err := r.repo.ListUpcoming(ctx, chatID, r.clock.Now(), upcomingLimit)
	if err != nil {
		r.log.Error("list schedules failed", zap.Error(err))
		r.sendText(ctx, chatID, "Error reading your schedules.")
		return
	}
	if len(list) == 0 {
		r.sendWithMenu(ctx, chatID, noSchedules)
		return
	}
	parts := make([]string, 0, len(list))
	for i := range list {
		parts = append(parts, r.formatSchedule(&list[i]))
	}
	r.sendWithMenu(ctx, chatID, "📅 Upcoming\n\n"+strings.Join(parts, "\n\n"))
}

// handleDelete removes a schedule. Reminder cancellation is best effort and
// never blocks the delete itself.
func (r *Router) handleDelete(ctx context.Context, chatID int64, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		r.sendText(ctx, chatID, "Usage: /delete <name>")
		return
	}
	s, err := r.repo.GetSchedule(ctx, chatID, name)
	if errors.Is(err, store.ErrNotFound) {
		r.sendText(ctx, chatID, fmt.Sprintf("Schedule %q not found.", name))
		return
	}
	if err != nil {
		r.log.Error("get schedule failed", zap.Error(err))
		r.sendText(ctx, chatID, "Could not delete the schedule.")
		return
	}

	if err := r.reminders.CancelReminder(ctx, s.ID); err != nil {
		r.log.Warn("cancel reminder failed", zap.Int64("schedule_id", s.ID), zap.Error(err))
	}
	if _, err := r.repo.DeleteSchedule(ctx, chatID, name); err != nil {
		r.log.Error("delete schedule failed", zap.Error(err))
		r.sendText(ctx, chatID, "Could not delete the schedule.")
		return
	}

	text := fmt.Sprintf("🗑 Schedule %q deleted.", name)
	if s.HasReminder() {
		text += "\n🔕 Its reminder has been cancelled."
	}
	r.sendText(ctx, chatID, text)
}

func (r *Router) handleReminders(ctx context.Context, chatID int64) {
	list, err := r.reminders.Pending(ctx, chatID)
	if err != nil {
		r.log.Error("list reminders failed", zap.Error(err))
		r.sendText(ctx, chatID, "Error reading your reminders.")
		return
	}
	if len(list) == 0 {
		r.sendWithMenu(ctx, chatID, noReminders)
		return
	}
	var b strings.Builder
	b.WriteString("⏰ Pending reminders\n")
	for _, st := range list {
		mark := "✅"
		if st.Missed {
			mark = "❌"
		}
		fmt.Fprintf(&b, "\n%s %s (%s) at %s, %s",
			mark, st.Title, st.Name, domain.FormatDateTime(st.FiringAt, r.loc), st.Until)
	}
	r.sendWithMenu(ctx, chatID, b.String())
}
