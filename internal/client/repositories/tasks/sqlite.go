package tasks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/kbupload/internal/client/models"
	"github.com/dmitrijs2005/kbupload/internal/common"
	"github.com/dmitrijs2005/kbupload/internal/dbx"
)

const columns = `id, file_hash, file_name, local_path, total_size, chunk_size, total_chunks,
	org_tag, is_public, uploaded_chunks, progress, status, failure_reason,
	failure_message, object_url, created_at, updated_at`

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Upsert writes the snapshot. created_at is kept from the first write.
func (r *SQLiteRepository) Upsert(ctx context.Context, t models.TaskSnapshot) error {
	uploaded := t.UploadedChunks
	if uploaded == nil {
		uploaded = []int{}
	}
	chunks, err := json.Marshal(uploaded)
	if err != nil {
		return fmt.Errorf("failed to encode uploaded chunks: %w", err)
	}

	query := `INSERT INTO upload_tasks (` + columns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_hash) DO UPDATE SET
			id = excluded.id,
			file_name = excluded.file_name,
			local_path = excluded.local_path,
			total_size = excluded.total_size,
			chunk_size = excluded.chunk_size,
			total_chunks = excluded.total_chunks,
			org_tag = excluded.org_tag,
			is_public = excluded.is_public,
			uploaded_chunks = excluded.uploaded_chunks,
			progress = excluded.progress,
			status = excluded.status,
			failure_reason = excluded.failure_reason,
			failure_message = excluded.failure_message,
			object_url = excluded.object_url,
			updated_at = excluded.updated_at`

	_, err = r.db.ExecContext(ctx, query,
		t.ID, t.FileHash, t.FileName, t.LocalPath, t.TotalSize, t.ChunkSize, t.TotalChunks,
		t.OrgTag, t.IsPublic, string(chunks), t.Progress, string(t.Status), t.FailureReason,
		t.FailureMessage, t.ObjectURL, formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert task: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByHash(ctx context.Context, hash string) (*models.TaskSnapshot, error) {
	query := `SELECT ` + columns + ` FROM upload_tasks WHERE file_hash = ?`
	row := r.db.QueryRowContext(ctx, query, hash)

	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.TaskSnapshot, error) {
	return r.query(ctx, `SELECT `+columns+` FROM upload_tasks ORDER BY created_at, file_hash`)
}

func (r *SQLiteRepository) ListByStatus(ctx context.Context, statuses ...models.Status) ([]models.TaskSnapshot, error) {
	if len(statuses) == 0 {
		return []models.TaskSnapshot{}, nil
	}

	args := make([]any, len(statuses))
	for i, s := range statuses {
		args[i] = string(s)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")

	return r.query(ctx, `SELECT `+columns+` FROM upload_tasks WHERE status IN (`+placeholders+`)
		ORDER BY created_at, file_hash`, args...)
}

func (r *SQLiteRepository) Delete(ctx context.Context, hash string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM upload_tasks WHERE file_hash = ?`, hash); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]models.TaskSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select tasks: %w", err)
	}
	defer rows.Close()

	result := []models.TaskSnapshot{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*models.TaskSnapshot, error) {
	var (
		t                models.TaskSnapshot
		chunks, status   string
		created, updated string
	)
	err := s.Scan(&t.ID, &t.FileHash, &t.FileName, &t.LocalPath, &t.TotalSize, &t.ChunkSize, &t.TotalChunks,
		&t.OrgTag, &t.IsPublic, &chunks, &t.Progress, &status, &t.FailureReason,
		&t.FailureMessage, &t.ObjectURL, &created, &updated)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(chunks), &t.UploadedChunks); err != nil {
		return nil, fmt.Errorf("bad uploaded chunks for %s: %w", t.FileHash, err)
	}
	if t.Status, err = models.ParseStatus(status); err != nil {
		return nil, err
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &t, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t, nil
}
