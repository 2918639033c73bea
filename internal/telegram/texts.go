package telegram

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// UI texts in English
const (
	startText = "👋 I keep your schedules and remind you before they start.\n\n" +
		"Use /help to see the commands."
	helpText = "📅 Commands\n\n" +
		"/schedule <name> | <title> | <start> | <end> | <reminder_min> | <description>\n" +
		"   save or update a schedule; dates as YYYY-MM-DD HH:MM (%s)\n" +
		"/schedule <name> - show a schedule\n" +
		"/schedules - upcoming schedules\n" +
		"/delete <name> - delete a schedule and its reminder\n" +
		"/reminders - reminders that have not been sent yet"
	scheduleUsage = "Usage: /schedule <name> | <title> | <start> | <end> | <reminder_min> | <description>\n" +
		"Example: /schedule sync | Team sync | 2025-01-10 10:00 | 2025-01-10 11:00 | 30 | weekly"
	scheduleFmt = "📌 %s (%s)\n🕐 %s → %s\n%s%s"
	reminderFmt = "⏰ Reminder: %d min before\n"
	pastDueText = "⚠️ The reminder time has already passed, no reminder will be sent.\n"
	noSchedules = "No upcoming schedules."
	noReminders = "No pending reminders."
)

// mainMenuKeyboard builds the reply keyboard shown under bot answers.
func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/schedules"),
			tgbotapi.NewKeyboardButton("/reminders"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/help"),
		),
	)
}
