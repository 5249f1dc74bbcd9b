package models

import (
	"time"

	"github.com/dmitrijs2005/kbupload/internal/filex"
)

// Form is one enqueue request: a single file plus its classification.
// Resume asks the coordinator to seed progress from the server before the
// task is queued.
type Form struct {
	Source   filex.Source
	OrgTag   string
	IsPublic bool
	Resume   bool
}

// TaskSnapshot is a consistent, read-only copy of an upload task.
type TaskSnapshot struct {
	ID             string
	FileHash       string
	FileName       string
	LocalPath      string
	TotalSize      int64
	ChunkSize      int64
	TotalChunks    int
	OrgTag         string
	IsPublic       bool
	ChunkIndex     int
	UploadedChunks []int
	Progress       float64
	Status         Status
	FailureReason  string
	FailureMessage string
	ObjectURL      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TotalChunks returns ceil(totalSize / chunkSize). An empty file still
// travels as one empty chunk.
func TotalChunks(totalSize, chunkSize int64) int {
	if chunkSize <= 0 {
		return 0
	}
	if totalSize == 0 {
		return 1
	}
	return int((totalSize + chunkSize - 1) / chunkSize)
}
