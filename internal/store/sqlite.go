package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/mandoo180/telegram-note-bot/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

var _ Repo = (*SQLiteRepo)(nil)

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Single-writer engine; one connection also keeps per-connection PRAGMAs in effect.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Ping verifies the database is reachable.
func (r *SQLiteRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// --- Schedules ---

const scheduleColumns = `s.id, s.user_id, s.name, s.title, s.description,
	s.start_at, s.end_at, s.reminder_minutes, s.created_at, s.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner, extra ...any) (*domain.Schedule, error) {
	var (
		s                  domain.Schedule
		startAt, endAt     int64
		createdAt, updated int64
	)
	dest := []any{
		&s.ID, &s.UserID, &s.Name, &s.Title, &s.Description,
		&startAt, &endAt, &s.ReminderMinutes, &createdAt, &updated,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	s.StartAt = fromUnix(startAt)
	s.EndAt = fromUnix(endAt)
	s.CreatedAt = fromUnix(createdAt)
	s.UpdatedAt = fromUnix(updated)
	return &s, nil
}

// SaveSchedule inserts or updates a schedule keyed by (user_id, name).
func (r *SQLiteRepo) SaveSchedule(ctx context.Context, s *domain.Schedule) (bool, error) {
	if s == nil {
		return false, errors.New("nil schedule")
	}
	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM schedules WHERE user_id = ? AND name = ?`,
		s.UserID, s.Name,
	).Scan(&id)

	existed := true
	switch {
	case errors.Is(err, sql.ErrNoRows):
		existed = false
		res, err := tx.ExecContext(ctx, `
			INSERT INTO schedules (
				user_id, name, title, description, start_at, end_at,
				reminder_minutes, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.UserID, s.Name, s.Title, s.Description,
			s.StartAt.UTC().Unix(), s.EndAt.UTC().Unix(),
			s.ReminderMinutes, now.Unix(), now.Unix(),
		)
		if err != nil {
			return false, err
		}
		if id, err = res.LastInsertId(); err != nil {
			return false, err
		}
		s.CreatedAt = now.Truncate(time.Second)
	case err != nil:
		return false, err
	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE schedules
			SET title = ?, description = ?, start_at = ?, end_at = ?,
			    reminder_minutes = ?, updated_at = ?
			WHERE id = ?`,
			s.Title, s.Description, s.StartAt.UTC().Unix(), s.EndAt.UTC().Unix(),
			s.ReminderMinutes, now.Unix(), id,
		)
		if err != nil {
			return true, err
		}
	}

	if err := tx.Commit(); err != nil {
		return existed, err
	}
	s.ID = id
	s.UpdatedAt = now.Truncate(time.Second)
	return existed, nil
}

// GetSchedule returns the schedule named name for userID, or ErrNotFound.
func (r *SQLiteRepo) GetSchedule(ctx context.Context, userID int64, name string) (*domain.Schedule, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedules s
		WHERE s.user_id = ? AND s.name = ?`,
		userID, name,
	)
	s, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// ListUpcoming returns up to limit schedules starting at or after from, earliest first.
func (r *SQLiteRepo) ListUpcoming(ctx context.Context, userID int64, from time.Time, limit int) ([]domain.Schedule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedules s
		WHERE s.user_id = ? AND s.start_at >= ?
		ORDER BY s.start_at ASC
		LIMIT ?`,
		userID, from.UTC().Unix(), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *s)
	}
	return res, rows.Err()
}

// DeleteSchedule deletes a schedule by name; the reminder row goes with it.
func (r *SQLiteRepo) DeleteSchedule(ctx context.Context, userID int64, name string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM schedules WHERE user_id = ? AND name = ?`,
		userID, name,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// --- Reminders ---

// UpsertPendingReminder creates or replaces the reminder row of a schedule.
// A replaced row starts a new occurrence, so sent and sent_at are reset.
func (r *SQLiteRepo) UpsertPendingReminder(ctx context.Context, scheduleID int64, firingAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pending_reminders (schedule_id, firing_at, sent, sent_at)
		VALUES (?, ?, 0, NULL)
		ON CONFLICT(schedule_id) DO UPDATE SET
			firing_at = excluded.firing_at,
			sent      = 0,
			sent_at   = NULL`,
		scheduleID, firingAt.UTC().Unix(),
	)
	return err
}

// MarkReminderSent flips sent to true if the firingAt occurrence is still unsent.
func (r *SQLiteRepo) MarkReminderSent(ctx context.Context, scheduleID int64, firingAt, sentAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE pending_reminders
		SET sent = 1, sent_at = ?
		WHERE schedule_id = ? AND sent = 0 AND firing_at = ?`,
		toNullInt64(&sentAt), scheduleID, firingAt.UTC().Unix(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// GetPendingReminder returns the reminder row of a schedule, or ErrNotFound.
func (r *SQLiteRepo) GetPendingReminder(ctx context.Context, scheduleID int64) (*domain.PendingReminder, error) {
	var (
		firingAt int64
		sent     int
		sentAt   sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT firing_at, sent, sent_at
		FROM pending_reminders
		WHERE schedule_id = ?`,
		scheduleID,
	).Scan(&firingAt, &sent, &sentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &domain.PendingReminder{
		ScheduleID: scheduleID,
		FiringAt:   fromUnix(firingAt),
		Sent:       sent != 0,
		SentAt:     fromNullInt64(sentAt),
	}, nil
}

// ListArmableReminders returns unsent reminders with firing_at > now, earliest first.
func (r *SQLiteRepo) ListArmableReminders(ctx context.Context, now time.Time) ([]domain.ArmedReminder, error) {
	return r.queryArmed(ctx, `
		SELECT `+scheduleColumns+`, r.firing_at
		FROM pending_reminders r
		JOIN schedules s ON s.id = r.schedule_id
		WHERE r.sent = 0 AND r.firing_at > ?
		ORDER BY r.firing_at ASC`,
		now.UTC().Unix(),
	)
}

// ListUnsentReminders returns every unsent reminder, optionally for one user.
func (r *SQLiteRepo) ListUnsentReminders(ctx context.Context, userID int64) ([]domain.ArmedReminder, error) {
	return r.queryArmed(ctx, `
		SELECT `+scheduleColumns+`, r.firing_at
		FROM pending_reminders r
		JOIN schedules s ON s.id = r.schedule_id
		WHERE r.sent = 0 AND (? = 0 OR s.user_id = ?)
		ORDER BY r.firing_at ASC`,
		userID, userID,
	)
}

func (r *SQLiteRepo) queryArmed(ctx context.Context, query string, args ...any) ([]domain.ArmedReminder, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.ArmedReminder
	for rows.Next() {
		var firingAt int64
		s, err := scanSchedule(rows, &firingAt)
		if err != nil {
			return nil, err
		}
		res = append(res, domain.ArmedReminder{
			Reminder: domain.PendingReminder{
				ScheduleID: s.ID,
				FiringAt:   fromUnix(firingAt),
			},
			Schedule: *s,
		})
	}
	return res, rows.Err()
}

// DeletePendingReminder removes the reminder row of a schedule. Missing rows are not an error.
func (r *SQLiteRepo) DeletePendingReminder(ctx context.Context, scheduleID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM pending_reminders WHERE schedule_id = ?`,
		scheduleID,
	)
	return err
}
