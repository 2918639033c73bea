package telegram

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/mandoo180/telegram-note-bot/internal/clock"
	"github.com/mandoo180/telegram-note-bot/internal/domain"
	"github.com/mandoo180/telegram-note-bot/internal/reminder"
	"github.com/mandoo180/telegram-note-bot/internal/store"
)

// Reminders is the reminder core as seen from chat commands.
type Reminders interface {
	ScheduleReminder(ctx context.Context, s domain.Schedule) error
	CancelReminder(ctx context.Context, scheduleID int64) error
	Pending(ctx context.Context, userID int64) ([]reminder.Status, error)
}

// Router wires Telegram updates to handlers.
type Router struct {
	sender    *Sender
	log       *zap.Logger
	repo      store.ScheduleRepo
	reminders Reminders
	loc       *time.Location
	clock     clock.Clock
}

// NewRouter creates a new Telegram router. loc is the timezone users type and read dates in.
func NewRouter(sender *Sender, log *zap.Logger, repo store.ScheduleRepo, reminders Reminders, loc *time.Location, clk clock.Clock) *Router {
	return &Router{
		sender:    sender,
		log:       log.Named("telegram"),
		repo:      repo,
		reminders: reminders,
		loc:       loc,
		clock:     clk,
	}
}

// HandleUpdate routes a single update to the appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID

	if !msg.IsCommand() {
		r.sendText(ctx, chatID, "Unknown input. Use /help to see the commands.")
		return
	}

	args := msg.CommandArguments()
	switch msg.Command() {
	case "start":
		r.handleStart(ctx, chatID)
	case "help":
		r.handleHelp(ctx, chatID)
	case "schedule":
		r.handleSchedule(ctx, chatID, args)
	case "schedules":
		r.handleSchedules(ctx, chatID)
	case "delete":
		r.handleDelete(ctx, chatID, args)
	case "reminders":
		r.handleReminders(ctx, chatID)
	default:
		r.sendText(ctx, chatID, "Unknown command. Use /help to see the commands.")
	}
}
