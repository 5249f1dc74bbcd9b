package uploader

import (
	"errors"
	"fmt"
)

// Reason classifies why a task broke.
type Reason string

const (
	// ReasonSource means a chunk could not be read from the local file.
	ReasonSource Reason = "source"
	// ReasonTransfer means the store rejected a chunk or the call failed.
	ReasonTransfer Reason = "transfer"
	// ReasonMerge means all chunks arrived but assembling them failed.
	ReasonMerge Reason = "merge"
	// ReasonIncomplete means every chunk was sent but the store still
	// reports some missing.
	ReasonIncomplete Reason = "incomplete"
)

var (
	ErrInvalidForm = errors.New("invalid upload form")
	ErrNotFound    = errors.New("no task for hash")
	ErrNotBroken   = errors.New("task is not broken")
)

// Failure is the error recorded on a broken task. ChunkIndex is -1 when the
// failure is not tied to one chunk.
type Failure struct {
	Reason     Reason
	ChunkIndex int
	Err        error
}

func (f *Failure) Error() string {
	if f.ChunkIndex >= 0 {
		return fmt.Sprintf("%s failure at chunk %d: %v", f.Reason, f.ChunkIndex, f.Err)
	}
	return fmt.Sprintf("%s failure: %v", f.Reason, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }
