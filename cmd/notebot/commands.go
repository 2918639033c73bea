package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/mandoo180/telegram-note-bot/internal/app"
	"github.com/mandoo180/telegram-note-bot/internal/clock"
	"github.com/mandoo180/telegram-note-bot/internal/config"
	"github.com/mandoo180/telegram-note-bot/internal/domain"
	"github.com/mandoo180/telegram-note-bot/internal/logger"
	"github.com/mandoo180/telegram-note-bot/internal/reminder"
	"github.com/mandoo180/telegram-note-bot/internal/scheduler"
)

var (
	globalFlags = []cli.Flag{
		cli.StringFlag{
			Name:  "env-file, e",
			Usage: "read environment variables from `FILE` (default: .env when present)",
		},
	}

	remindersFlags = []cli.Flag{
		cli.Int64Flag{
			Name:  "user-id, u",
			Usage: "only show reminders of this Telegram chat id",
		},
	}
)

// setup loads configuration and builds the logger shared by all commands.
func setup(ctx *cli.Context) (config.Config, *zap.Logger, error) {
	var files []string
	if f := ctx.GlobalString("env-file"); f != "" {
		files = append(files, f)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return cfg, nil, cli.NewExitError("config error: "+err.Error(), 2)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return cfg, nil, cli.NewExitError("logger init error: "+err.Error(), 2)
	}
	return cfg, log, nil
}

func runBot(ctx *cli.Context) error {
	cfg, log, err := setup(ctx)
	if err != nil {
		return err
	}
	// Ignore sync error (common on some platforms).
	defer func() { _ = log.Sync() }()

	application, err := app.New(cfg, log)
	if err != nil {
		log.Error("app init failed", zap.Error(err))
		return err
	}
	if err := application.Run(context.Background()); err != nil {
		log.Error("app run failed", zap.Error(err))
		return err
	}
	return nil
}

func migrate(ctx *cli.Context) error {
	cfg, log, err := setup(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	repo, err := app.OpenStore(context.Background(), cfg)
	if err != nil {
		log.Error("migration failed", zap.Error(err))
		return err
	}
	log.Info("database schema is up to date", zap.String("db_driver", cfg.DBDriver))
	return repo.Close()
}

// listReminders prints unsent reminders straight from the store. No scheduler
// runs in this process, so every row is reported as not armed.
func listReminders(ctx *cli.Context) error {
	cfg, log, err := setup(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	repo, err := app.OpenStore(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	clk := clock.System{}
	svc := reminder.NewService(repo, scheduler.New(clk, log, 1), nil, clk, loc, log)
	list, err := svc.Pending(context.Background(), ctx.Int64("user-id"))
	if err != nil {
		return err
	}
	return printReminders(os.Stdout, list, loc)
}

func printReminders(w io.Writer, list []reminder.Status, loc *time.Location) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No pending reminders.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tUSER\tNAME\tTITLE\tFIRES AT (%s)\tSTATUS\n", loc.String())
	for _, st := range list {
		status := "pending"
		if st.Missed {
			status = "missed"
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s, %s\n",
			st.ScheduleID, st.UserID, st.Name, st.Title,
			domain.FormatDateTime(st.FiringAt, loc), status, st.Until)
	}
	return tw.Flush()
}
