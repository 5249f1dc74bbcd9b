package client

import (
	"context"

	"github.com/dmitrijs2005/kbupload/internal/client/models"
)

// Client is the chunk store contract the upload coordinator depends on.
type Client interface {
	// UploadChunk stores one chunk and returns the store's authoritative list
	// of chunks held for the file hash.
	UploadChunk(ctx context.Context, req models.ChunkRequest) (*models.ChunkProgress, error)

	// UploadStatus reports what the store holds for a file hash.
	UploadStatus(ctx context.Context, fileHash string) (*models.UploadStatus, error)

	// MergeChunks assembles all stored chunks into the final object. Calling
	// it again after completion is harmless.
	MergeChunks(ctx context.Context, fileHash, fileName string) (*models.MergeResult, error)

	// DeleteFile removes the file (or the partial upload) from the store.
	DeleteFile(ctx context.Context, fileHash string) error

	Close() error
}

// Lister is implemented by stores that can enumerate the caller's uploads.
type Lister interface {
	ListFiles(ctx context.Context) ([]models.StoredFile, error)
}

func progressOf(uploaded, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(uploaded) / float64(total) * 100
}
