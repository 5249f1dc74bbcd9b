// Package database opens the local SQLite journal and wires its repositories.
package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/kbupload/internal/client/migrations"
	"github.com/dmitrijs2005/kbupload/internal/client/models"
	"github.com/dmitrijs2005/kbupload/internal/client/repositories/tasks"
	"github.com/dmitrijs2005/kbupload/internal/dbx"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// Repositories groups the journal repositories over one connection pool.
type Repositories struct {
	DB    *sql.DB
	Tasks tasks.Repository
}

// Close releases the underlying database.
func (r *Repositories) Close() error {
	return r.DB.Close()
}

// Prune removes every journal entry in one of the given statuses in a single
// transaction and returns how many were removed.
func (r *Repositories) Prune(ctx context.Context, statuses ...models.Status) (int, error) {
	var n int
	err := dbx.WithTx(ctx, r.DB, func(ctx context.Context, tx dbx.DBTX) error {
		repo := tasks.NewSQLiteRepository(tx)
		list, err := repo.ListByStatus(ctx, statuses...)
		if err != nil {
			return err
		}
		for _, t := range list {
			if err := repo.Delete(ctx, t.FileHash); err != nil {
				return err
			}
		}
		n = len(list)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	return n, nil
}

// RunMigrations applies the embedded migrations. Running it twice is a no-op.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// Open opens (creating if needed) the SQLite file at dsn and migrates it.
func Open(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY between
	// concurrent task updates.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return &Repositories{
		DB:    db,
		Tasks: tasks.NewSQLiteRepository(db),
	}, nil
}
