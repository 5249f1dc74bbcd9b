package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/kbupload/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func TestOpen_CreatesSchema(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "kbupload.db")

	repos, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })

	require.NoError(t, repos.DB.PingContext(ctx))
	assert.True(t, tableExists(t, repos.DB, "goose_db_version"))
	assert.True(t, tableExists(t, repos.DB, "upload_tasks"))
}

func TestRunMigrations_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "kbupload.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, RunMigrations(ctx, db))
	require.NoError(t, RunMigrations(ctx, db))
	assert.True(t, tableExists(t, db, "upload_tasks"))
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "kbupload.db")

	repos, err := Open(ctx, dsn)
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, repos.Tasks.Upsert(ctx, models.TaskSnapshot{
		ID: "1", FileHash: "feed", FileName: "a.txt", TotalSize: 3, ChunkSize: 5,
		TotalChunks: 1, Status: models.StatusBroken, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, repos.Close())

	repos, err = Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })

	got, err := repos.Tasks.GetByHash(ctx, "feed")
	require.NoError(t, err)
	assert.Equal(t, models.StatusBroken, got.Status)
}

func TestOpen_BadPath(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "kbupload.db"))
	require.Error(t, err)
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	repos, err := Open(ctx, filepath.Join(t.TempDir(), "kbupload.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })

	now := time.Now()
	for hash, st := range map[string]models.Status{
		"a": models.StatusCompleted, "b": models.StatusBroken, "c": models.StatusCompleted,
	} {
		require.NoError(t, repos.Tasks.Upsert(ctx, models.TaskSnapshot{
			ID: hash, FileHash: hash, FileName: hash, Status: st, CreatedAt: now, UpdatedAt: now,
		}))
	}

	n, err := repos.Prune(ctx, models.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := repos.Tasks.List(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "b", left[0].FileHash)
}
