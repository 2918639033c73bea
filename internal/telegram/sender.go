package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// Bot is the part of *tgbotapi.BotAPI the bot uses to talk to Telegram.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Sender pushes outbound messages through a shared rate limiter so replies and
// reminder deliveries together stay under Telegram's flood limits.
type Sender struct {
	bot     Bot
	limiter *rate.Limiter
}

// NewSender wraps bot with a limiter allowing perSecond messages with the given burst.
func NewSender(bot Bot, perSecond float64, burst int) *Sender {
	return &Sender{bot: bot, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Send waits for a send slot and delivers c.
func (s *Sender) Send(ctx context.Context, c tgbotapi.Chattable) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	_, err := s.bot.Send(c)
	return err
}

// Notify sends a plain text message to a chat. It makes Sender satisfy reminder.Notifier.
func (s *Sender) Notify(ctx context.Context, userID int64, text string) error {
	return s.Send(ctx, tgbotapi.NewMessage(userID, text))
}
