package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mandoo180/telegram-note-bot/internal/domain"
)

// PostgresRepo implements Repo on a pgx connection pool.
type PostgresRepo struct{ pool *pgxpool.Pool }

var _ Repo = (*PostgresRepo)(nil)

// OpenPostgres connects to url, pings the server and runs migrations.
func OpenPostgres(ctx context.Context, url string) (*PostgresRepo, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if err := runPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return &PostgresRepo{pool: pool}, nil
}

func (r *PostgresRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepo) Close() error {
	r.pool.Close()
	return nil
}

func scanPgSchedule(row pgx.Row, extra ...any) (*domain.Schedule, error) {
	var s domain.Schedule
	dest := []any{
		&s.ID, &s.UserID, &s.Name, &s.Title, &s.Description,
		&s.StartAt, &s.EndAt, &s.ReminderMinutes, &s.CreatedAt, &s.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	s.StartAt = s.StartAt.UTC()
	s.EndAt = s.EndAt.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}

func (r *PostgresRepo) SaveSchedule(ctx context.Context, s *domain.Schedule) (bool, error) {
	if s == nil {
		return false, errors.New("nil schedule")
	}
	// xmax = 0 only for freshly inserted tuples.
	var inserted bool
	err := r.pool.QueryRow(ctx, `
		INSERT INTO schedules (user_id, name, title, description, start_at, end_at, reminder_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, name) DO UPDATE SET
			title            = EXCLUDED.title,
			description      = EXCLUDED.description,
			start_at         = EXCLUDED.start_at,
			end_at           = EXCLUDED.end_at,
			reminder_minutes = EXCLUDED.reminder_minutes,
			updated_at       = NOW()
		RETURNING id, created_at, updated_at, (xmax = 0)`,
		s.UserID, s.Name, s.Title, s.Description, s.StartAt.UTC(), s.EndAt.UTC(), s.ReminderMinutes,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt, &inserted)
	if err != nil {
		return false, err
	}
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return !inserted, nil
}

func (r *PostgresRepo) GetSchedule(ctx context.Context, userID int64, name string) (*domain.Schedule, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedules s
		WHERE s.user_id = $1 AND s.name = $2`,
		userID, name,
	)
	s, err := scanPgSchedule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

func (r *PostgresRepo) ListUpcoming(ctx context.Context, userID int64, from time.Time, limit int) ([]domain.Schedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedules s
		WHERE s.user_id = $1 AND s.start_at >= $2
		ORDER BY s.start_at
		LIMIT $3`,
		userID, from.UTC(), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Schedule
	for rows.Next() {
		s, err := scanPgSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) DeleteSchedule(ctx context.Context, userID int64, name string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM schedules WHERE user_id = $1 AND name = $2`, userID, name)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepo) UpsertPendingReminder(ctx context.Context, scheduleID int64, firingAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO pending_reminders (schedule_id, firing_at, sent, sent_at)
		VALUES ($1, $2, FALSE, NULL)
		ON CONFLICT (schedule_id) DO UPDATE SET
			firing_at = EXCLUDED.firing_at,
			sent      = FALSE,
			sent_at   = NULL`,
		scheduleID, firingAt.UTC(),
	)
	return err
}

func (r *PostgresRepo) MarkReminderSent(ctx context.Context, scheduleID int64, firingAt, sentAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE pending_reminders
		SET sent = TRUE, sent_at = $1
		WHERE schedule_id = $2 AND sent = FALSE AND firing_at = $3`,
		sentAt.UTC(), scheduleID, firingAt.UTC(),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepo) GetPendingReminder(ctx context.Context, scheduleID int64) (*domain.PendingReminder, error) {
	p := domain.PendingReminder{ScheduleID: scheduleID}
	err := r.pool.QueryRow(ctx, `
		SELECT firing_at, sent, sent_at
		FROM pending_reminders
		WHERE schedule_id = $1`,
		scheduleID,
	).Scan(&p.FiringAt, &p.Sent, &p.SentAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.FiringAt = p.FiringAt.UTC()
	p.SentAt = utcPtr(p.SentAt)
	return &p, nil
}

func (r *PostgresRepo) ListArmableReminders(ctx context.Context, now time.Time) ([]domain.ArmedReminder, error) {
	return r.queryArmed(ctx, `
		SELECT `+scheduleColumns+`, r.firing_at
		FROM pending_reminders r
		JOIN schedules s ON s.id = r.schedule_id
		WHERE r.sent = FALSE AND r.firing_at > $1
		ORDER BY r.firing_at`,
		now.UTC(),
	)
}

func (r *PostgresRepo) ListUnsentReminders(ctx context.Context, userID int64) ([]domain.ArmedReminder, error) {
	return r.queryArmed(ctx, `
		SELECT `+scheduleColumns+`, r.firing_at
		FROM pending_reminders r
		JOIN schedules s ON s.id = r.schedule_id
		WHERE r.sent = FALSE AND ($1::bigint = 0 OR s.user_id = $1)
		ORDER BY r.firing_at`,
		userID,
	)
}

func (r *PostgresRepo) queryArmed(ctx context.Context, query string, args ...any) ([]domain.ArmedReminder, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ArmedReminder
	for rows.Next() {
		var firingAt time.Time
		s, err := scanPgSchedule(rows, &firingAt)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.ArmedReminder{
			Reminder: domain.PendingReminder{ScheduleID: s.ID, FiringAt: firingAt.UTC()},
			Schedule: *s,
		})
	}
	return out, rows.Err()
}

func (r *PostgresRepo) DeletePendingReminder(ctx context.Context, scheduleID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM pending_reminders WHERE schedule_id = $1`, scheduleID)
	return err
}
