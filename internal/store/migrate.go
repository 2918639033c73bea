package store

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"path"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// migrationScripts returns the SQL files of a dialect folder in alphabetical order.
func migrationScripts(dialect string) ([]string, error) {
	dir := path.Join("migrations", dialect)
	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return nil, err
	}
	// ensure deterministic order: 001_..., 002_..., etc.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var scripts []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		b, err := fs.ReadFile(migrationsFS, path.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, string(b))
	}
	return scripts, nil
}

// RunMigrations applies the SQLite migrations, each file in its own transaction.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	scripts, err := migrationScripts("sqlite")
	if err != nil {
		return err
	}
	for _, script := range scripts {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, script); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// runPostgresMigrations applies the Postgres migrations, each file in its own transaction.
func runPostgresMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	scripts, err := migrationScripts("postgres")
	if err != nil {
		return err
	}
	for _, script := range scripts {
		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, script); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
	}
	return nil
}
