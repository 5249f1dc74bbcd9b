package tasks

import (
	"context"

	"github.com/dmitrijs2005/kbupload/internal/client/models"
)

// Repository stores upload task snapshots.
type Repository interface {
	// Upsert inserts a snapshot or replaces the stored one with the same hash.
	Upsert(ctx context.Context, t models.TaskSnapshot) error

	// GetByHash returns common.ErrorNotFound when no task has the hash.
	GetByHash(ctx context.Context, hash string) (*models.TaskSnapshot, error)

	// List returns all tasks, oldest first.
	List(ctx context.Context) ([]models.TaskSnapshot, error)

	// ListByStatus returns tasks in any of the given statuses, oldest first.
	ListByStatus(ctx context.Context, statuses ...models.Status) ([]models.TaskSnapshot, error)

	// Delete removes the task with the hash. Deleting a missing task is not
	// an error.
	Delete(ctx context.Context, hash string) error
}
