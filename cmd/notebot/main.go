package main

import (
	"os"

	"github.com/urfave/cli"
)

var version = "dev"

func main() {
	app := cli.NewApp()
	app.Name = "notebot"
	app.HelpName = "notebot"
	app.Usage = "Telegram schedule bot with one-shot reminders"
	app.UsageText = "notebot [--env-file FILE] <command> [arguments...]"
	app.Version = version
	app.Flags = globalFlags
	app.Action = runBot
	app.Commands = []cli.Command{
		{
			Name:   "run",
			Usage:  "run the bot, the reminder scheduler and the HTTP endpoints (default)",
			Action: runBot,
		},
		{
			Name:   "migrate",
			Usage:  "create or upgrade the database schema",
			Action: migrate,
		},
		{
			Name:    "reminders",
			Aliases: []string{"r"},
			Usage:   "list reminders that have not been sent yet",
			Flags:   remindersFlags,
			Action:  listReminders,
		},
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = os.Stderr.WriteString("notebot: " + err.Error() + "\n")
		os.Exit(1)
	}
}
