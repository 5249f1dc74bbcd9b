package uploader

import (
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/kbupload/internal/client/models"
	"github.com/dmitrijs2005/kbupload/internal/filex"
)

// Task is one file being uploaded. Identity fields are fixed at enqueue;
// progress fields change as the store acknowledges chunks and are read
// through the accessors.
type Task struct {
	id          string
	hash        string
	name        string
	localPath   string
	src         filex.Source
	size        int64
	chunkSize   int64
	totalChunks int
	orgTag      string
	isPublic    bool
	createdAt   time.Time

	// publish orders journal writes and callbacks for this task.
	publish sync.Mutex

	mu         sync.RWMutex
	chunkIndex int
	uploaded   []int
	progress   float64
	status     models.Status
	failure    *Failure
	objectURL  string
	updatedAt  time.Time
}

func (t *Task) ID() string           { return t.id }
func (t *Task) Hash() string         { return t.hash }
func (t *Task) FileName() string     { return t.name }
func (t *Task) TotalSize() int64     { return t.size }
func (t *Task) ChunkSize() int64     { return t.chunkSize }
func (t *Task) TotalChunks() int     { return t.totalChunks }
func (t *Task) OrgTag() string       { return t.orgTag }
func (t *Task) IsPublic() bool       { return t.isPublic }
func (t *Task) CreatedAt() time.Time { return t.createdAt }

// Source is the handle chunks are read from. A duplicate enqueue keeps the
// first task's source; the caller still owns any other handle it opened.
func (t *Task) Source() filex.Source { return t.src }

func (t *Task) Status() models.Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

func (t *Task) Progress() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.progress
}

// ChunkIndex is the index of the chunk most recently sent.
func (t *Task) ChunkIndex() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.chunkIndex
}

// UploadedChunks returns a sorted copy of the indices the store holds.
func (t *Task) UploadedChunks() []int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.uploaded)
}

// Failure returns the failure that broke the task, or nil.
func (t *Task) Failure() *Failure {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.failure
}

func (t *Task) ObjectURL() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.objectURL
}

// Snapshot returns a consistent copy of the task.
func (t *Task) Snapshot() models.TaskSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := models.TaskSnapshot{
		ID:             t.id,
		FileHash:       t.hash,
		FileName:       t.name,
		LocalPath:      t.localPath,
		TotalSize:      t.size,
		ChunkSize:      t.chunkSize,
		TotalChunks:    t.totalChunks,
		OrgTag:         t.orgTag,
		IsPublic:       t.isPublic,
		ChunkIndex:     t.chunkIndex,
		UploadedChunks: slices.Clone(t.uploaded),
		Progress:       t.progress,
		Status:         t.status,
		ObjectURL:      t.objectURL,
		CreatedAt:      t.createdAt,
		UpdatedAt:      t.updatedAt,
	}
	if t.failure != nil {
		s.FailureReason = string(t.failure.Reason)
		s.FailureMessage = t.failure.Error()
	}
	return s
}

func (t *Task) hasChunk(i int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, found := slices.BinarySearch(t.uploaded, i)
	return found
}

func (t *Task) allUploaded() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.uploaded) == t.totalChunks
}

func (t *Task) uploadedCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.uploaded)
}

func (t *Task) setStatus(s models.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = s
	t.updatedAt = time.Now()
}

func (t *Task) setChunkIndex(i int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chunkIndex = i
	t.updatedAt = time.Now()
}

// setUploaded replaces the uploaded list and progress in one step.
func (t *Task) setUploaded(uploaded []int, progress float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.uploaded = uploaded
	t.progress = progress
	t.updatedAt = time.Now()
}

func (t *Task) complete(objectURL string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = models.StatusCompleted
	t.objectURL = objectURL
	t.progress = 100
	t.updatedAt = time.Now()
}

func (t *Task) breakWith(f *Failure) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = models.StatusBroken
	t.failure = f
	t.updatedAt = time.Now()
}

// requeue moves a broken task back to pending with a fresh uploaded list.
// It reports false when the task is no longer broken.
func (t *Task) requeue(uploaded []int, progress float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != models.StatusBroken {
		return false
	}
	t.status = models.StatusPending
	t.failure = nil
	t.uploaded = uploaded
	t.progress = progress
	t.updatedAt = time.Now()
	return true
}
