package uploader

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/kbupload/internal/client/client"
	"github.com/dmitrijs2005/kbupload/internal/client/models"
	"github.com/dmitrijs2005/kbupload/internal/filex"
)

// fakeStore is an in-memory chunk store that records what the coordinator
// sends and how many uploads overlap.
type fakeStore struct {
	mu       sync.Mutex
	chunks   map[string]map[int]bool
	data     map[string]map[int][]byte
	sent     map[string][]int
	merges   map[string]int
	statuses int

	failAt    map[string]int // hash -> chunk index that fails
	drop      map[string]int // hash -> chunk index never recorded
	bogus     bool           // report an out-of-range index
	mergeErr  error
	statusErr error

	gate    chan struct{}
	arrived chan string

	inflight    int
	maxInflight int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		chunks: map[string]map[int]bool{},
		data:   map[string]map[int][]byte{},
		sent:   map[string][]int{},
		merges: map[string]int{},
		failAt: map[string]int{},
		drop:   map[string]int{},
	}
}

var _ client.Client = (*fakeStore)(nil)

func (f *fakeStore) uploadedLocked(hash string) []int {
	out := []int{}
	for i := range f.chunks[hash] {
		out = append(out, i)
	}
	slices.Sort(out)
	return out
}

func (f *fakeStore) UploadChunk(ctx context.Context, req models.ChunkRequest) (*models.ChunkProgress, error) {
	f.mu.Lock()
	f.inflight++
	f.maxInflight = max(f.maxInflight, f.inflight)
	f.sent[req.FileHash] = append(f.sent[req.FileHash], req.ChunkIndex)
	gate, arrived := f.gate, f.arrived
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()

	if arrived != nil {
		arrived <- req.FileHash
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if idx, ok := f.failAt[req.FileHash]; ok && idx == req.ChunkIndex {
		return nil, client.ErrUnavailable
	}
	if idx, ok := f.drop[req.FileHash]; !ok || idx != req.ChunkIndex {
		if f.chunks[req.FileHash] == nil {
			f.chunks[req.FileHash] = map[int]bool{}
			f.data[req.FileHash] = map[int][]byte{}
		}
		f.chunks[req.FileHash][req.ChunkIndex] = true
		f.data[req.FileHash][req.ChunkIndex] = slices.Clone(req.Data)
	}

	uploaded := f.uploadedLocked(req.FileHash)
	if f.bogus {
		uploaded = append(uploaded, req.TotalChunks)
	}
	return &models.ChunkProgress{
		Uploaded: uploaded,
		Progress: float64(len(uploaded)) / float64(req.TotalChunks) * 100,
	}, nil
}

func (f *fakeStore) UploadStatus(ctx context.Context, hash string) (*models.UploadStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	if f.chunks[hash] == nil {
		return nil, client.ErrNotFound
	}
	return &models.UploadStatus{Uploaded: f.uploadedLocked(hash), Progress: 50}, nil
}

func (f *fakeStore) MergeChunks(ctx context.Context, hash, fileName string) (*models.MergeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.merges[hash]++
	if f.mergeErr != nil {
		return nil, f.mergeErr
	}
	return &models.MergeResult{ObjectURL: "http://store/" + fileName}, nil
}

func (f *fakeStore) DeleteFile(ctx context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.chunks, hash)
	return nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) seed(hash string, idx ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.chunks[hash] == nil {
		f.chunks[hash] = map[int]bool{}
	}
	if f.data[hash] == nil {
		f.data[hash] = map[int][]byte{}
	}
	for _, i := range idx {
		f.chunks[hash][i] = true
	}
}

func (f *fakeStore) sentFor(hash string) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.sent[hash])
}

func (f *fakeStore) mergesFor(hash string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.merges[hash]
}

func (f *fakeStore) chunkData(hash string, idx int) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[hash][idx]
}

func (f *fakeStore) peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInflight
}

func (f *fakeStore) set(fn func(f *fakeStore)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

// flakySource fails every read after the first failAfter reads.
type flakySource struct {
	*filex.Memory
	mu        sync.Mutex
	reads     int
	failAfter int
}

func (s *flakySource) ReadAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	s.reads++
	n := s.reads
	s.mu.Unlock()
	if n > s.failAfter {
		return 0, errors.New("disk gone")
	}
	return s.Memory.ReadAt(p, off)
}

type memJournal struct {
	mu    sync.Mutex
	saved []models.TaskSnapshot
	err   error
}

func (j *memJournal) Save(_ context.Context, t models.TaskSnapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.saved = append(j.saved, t)
	return j.err
}

func (j *memJournal) last(hash string) (models.TaskSnapshot, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := len(j.saved) - 1; i >= 0; i-- {
		if j.saved[i].FileHash == hash {
			return j.saved[i], true
		}
	}
	return models.TaskSnapshot{}, false
}

// slowJournal delays terminal snapshots so a waiter can overtake them.
type slowJournal struct {
	memJournal
	delay time.Duration
}

func (j *slowJournal) Save(ctx context.Context, t models.TaskSnapshot) error {
	if t.Status.Terminal() {
		time.Sleep(j.delay)
	}
	return j.memJournal.Save(ctx, t)
}
