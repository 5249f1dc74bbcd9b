package uploader

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/kbupload/internal/client/client"
	"github.com/dmitrijs2005/kbupload/internal/client/models"
	"github.com/dmitrijs2005/kbupload/internal/common"
	"github.com/dmitrijs2005/kbupload/internal/filex"
	"github.com/dmitrijs2005/kbupload/internal/hashx"
	"github.com/dmitrijs2005/kbupload/internal/logging"
	"github.com/google/uuid"
)

// Journal receives a snapshot after every task change.
type Journal interface {
	Save(ctx context.Context, t models.TaskSnapshot) error
}

// Options tunes a Coordinator. Zero values take the package defaults.
type Options struct {
	ChunkSize     int64
	MaxConcurrent int
	Hasher        *hashx.Hasher
	// DefaultOrgTag is used for forms that carry no org tag.
	DefaultOrgTag string
	Journal       Journal
	// OnChange is called outside all locks after every state change.
	OnChange func(models.TaskSnapshot)
	Logger   logging.Logger
}

// Coordinator owns the upload tasks and decides which of them run.
type Coordinator struct {
	ctx      context.Context
	client   client.Client
	hasher   *hashx.Hasher
	log      logging.Logger
	journal  Journal
	onChange func(models.TaskSnapshot)

	chunkSize     int64
	maxConcurrent int
	defaultOrgTag string

	mu      sync.Mutex
	tasks   []*Task
	byHash  map[string]*Task
	active  map[string]struct{}
	changed chan struct{}
}

// New returns a coordinator whose background uploads run under ctx.
func New(ctx context.Context, c client.Client, opts Options) (*Coordinator, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil chunk store client", common.ErrorInvalidConfig)
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = common.DefaultChunkSize
	}
	if opts.ChunkSize < 0 {
		return nil, fmt.Errorf("%w: chunk size %d", common.ErrorInvalidConfig, opts.ChunkSize)
	}
	if opts.MaxConcurrent == 0 {
		opts.MaxConcurrent = common.DefaultMaxConcurrent
	}
	if opts.MaxConcurrent < 0 {
		return nil, fmt.Errorf("%w: max concurrent %d", common.ErrorInvalidConfig, opts.MaxConcurrent)
	}
	if opts.Hasher == nil {
		h, err := hashx.New(hashx.MD5, common.DefaultHashWindow)
		if err != nil {
			return nil, err
		}
		opts.Hasher = h
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	return &Coordinator{
		ctx:           ctx,
		client:        c,
		hasher:        opts.Hasher,
		log:           opts.Logger,
		journal:       opts.Journal,
		onChange:      opts.OnChange,
		chunkSize:     opts.ChunkSize,
		maxConcurrent: opts.MaxConcurrent,
		defaultOrgTag: opts.DefaultOrgTag,
		byHash:        make(map[string]*Task),
		active:        make(map[string]struct{}),
		changed:       make(chan struct{}),
	}, nil
}

// Enqueue hashes the form's file and queues it. A file whose hash is already
// known returns the existing task and starts nothing new.
func (c *Coordinator) Enqueue(ctx context.Context, form models.Form) (*Task, error) {
	if form.Source == nil {
		return nil, fmt.Errorf("%w: no file", ErrInvalidForm)
	}
	size := form.Source.Size()
	if size < 0 {
		return nil, fmt.Errorf("%w: negative size", ErrInvalidForm)
	}

	hash, err := c.hasher.Sum(ctx, form.Source, size)
	if err != nil {
		return nil, fmt.Errorf("hash %s: %w", form.Source.Name(), err)
	}

	if t, ok := c.Task(hash); ok {
		c.log.Debug(ctx, "duplicate enqueue", "file_hash", hash, "task_id", t.id)
		return t, nil
	}

	orgTag := form.OrgTag
	if orgTag == "" {
		orgTag = c.defaultOrgTag
	}

	now := time.Now()
	t := &Task{
		id:          uuid.NewString(),
		hash:        hash,
		name:        form.Source.Name(),
		localPath:   form.Source.Path(),
		src:         form.Source,
		size:        size,
		chunkSize:   c.chunkSize,
		totalChunks: models.TotalChunks(size, c.chunkSize),
		orgTag:      orgTag,
		isPublic:    form.IsPublic,
		createdAt:   now,
		uploaded:    []int{},
		status:      models.StatusPending,
		updatedAt:   now,
	}

	if form.Resume {
		c.seed(ctx, t)
	}

	c.mu.Lock()
	if existing, ok := c.byHash[hash]; ok {
		c.mu.Unlock()
		return existing, nil
	}
	c.tasks = append(c.tasks, t)
	c.byHash[hash] = t
	c.mu.Unlock()

	c.log.Info(ctx, "task queued", "task_id", t.id, "file_hash", hash,
		"file_name", t.name, "size", size, "chunks", t.totalChunks)
	c.changedTask(t)

	go c.drain()
	return t, nil
}

// seed fills the uploaded list from the store before the task is queued.
func (c *Coordinator) seed(ctx context.Context, t *Task) {
	uploaded, progress, err := c.fetchUploaded(ctx, t)
	if err != nil {
		c.log.Warn(ctx, "resume status unavailable, starting fresh", "file_hash", t.hash, "error", err)
		return
	}
	t.setUploaded(uploaded, progress)
}

func (c *Coordinator) fetchUploaded(ctx context.Context, t *Task) ([]int, float64, error) {
	st, err := c.client.UploadStatus(ctx, t.hash)
	if errors.Is(err, client.ErrNotFound) {
		return []int{}, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	uploaded, err := normalize(st.Uploaded, t.totalChunks)
	if err != nil {
		return nil, 0, err
	}
	return uploaded, st.Progress, nil
}

// Retry moves a broken task back to pending with the uploaded list refreshed
// from the store and lets the scheduler pick it up again.
func (c *Coordinator) Retry(ctx context.Context, hash string) (*Task, error) {
	t, ok := c.Task(hash)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	if t.Status() != models.StatusBroken {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotBroken, hash, t.Status())
	}

	uploaded, progress, err := c.fetchUploaded(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("retry %s: %w", hash, err)
	}
	if !t.requeue(uploaded, progress) {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotBroken, hash, t.Status())
	}

	c.log.Info(ctx, "task requeued", "task_id", t.id, "file_hash", hash, "uploaded", len(uploaded))
	c.changedTask(t)

	go c.drain()
	return t, nil
}

// Tasks returns every task in enqueue order.
func (c *Coordinator) Tasks() []*Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.tasks)
}

func (c *Coordinator) Task(hash string) (*Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.byHash[hash]
	return t, ok
}

// Active returns the hashes currently holding an upload slot, sorted.
func (c *Coordinator) Active() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.active))
	for h := range c.active {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}

// Wait blocks until no task is pending or uploading and every task run has
// published its final state.
func (c *Coordinator) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		// A slot is released only after the terminal snapshot was journaled.
		busy := len(c.active) > 0
		for _, t := range c.tasks {
			if s := t.Status(); s == models.StatusPending || s == models.StatusUploading {
				busy = true
				break
			}
		}
		ch := c.changed
		c.mu.Unlock()

		if !busy {
			return nil
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// drain admits pending tasks in enqueue order until every slot is taken.
func (c *Coordinator) drain() {
	for {
		c.mu.Lock()
		if len(c.active) >= c.maxConcurrent {
			c.mu.Unlock()
			return
		}

		var next *Task
		for _, t := range c.tasks {
			if _, busy := c.active[t.hash]; busy {
				continue
			}
			if t.Status() == models.StatusPending {
				next = t
				break
			}
		}
		if next == nil {
			c.mu.Unlock()
			return
		}

		next.setStatus(models.StatusUploading)
		c.active[next.hash] = struct{}{}
		c.mu.Unlock()

		c.log.Info(c.ctx, "task admitted", "task_id", next.id, "file_hash", next.hash)
		c.changedTask(next)

		go c.run(next)
	}
}

// run sends the task's missing chunks in order, then frees its slot.
func (c *Coordinator) run(t *Task) {
	defer func() {
		c.mu.Lock()
		delete(c.active, t.hash)
		c.mu.Unlock()
		c.broadcast()
		c.drain()
	}()

	for i := 0; i < t.totalChunks; i++ {
		if t.hasChunk(i) {
			continue
		}
		if err := c.uploadChunk(c.ctx, t, i); err != nil {
			c.fail(t, err)
			return
		}
		if t.Status() == models.StatusCompleted {
			return
		}
	}

	if t.Status() == models.StatusCompleted {
		return
	}

	// Every chunk was already in the store when the task was admitted.
	if t.allUploaded() {
		if err := c.merge(c.ctx, t); err != nil {
			c.fail(t, err)
		}
		return
	}

	c.fail(t, &Failure{
		Reason:     ReasonIncomplete,
		ChunkIndex: -1,
		Err:        fmt.Errorf("store holds %d of %d chunks", t.uploadedCount(), t.totalChunks),
	})
}

func (c *Coordinator) uploadChunk(ctx context.Context, t *Task, i int) error {
	start := int64(i) * t.chunkSize
	end := min(start+t.chunkSize, t.size)

	data, err := filex.ReadRange(t.src, start, end)
	if err != nil {
		return &Failure{Reason: ReasonSource, ChunkIndex: i, Err: err}
	}

	t.setChunkIndex(i)

	res, err := c.client.UploadChunk(ctx, models.ChunkRequest{
		FileHash:    t.hash,
		ChunkIndex:  i,
		TotalChunks: t.totalChunks,
		TotalSize:   t.size,
		FileName:    t.name,
		OrgTag:      t.orgTag,
		IsPublic:    t.isPublic,
		Data:        data,
	})
	if err != nil {
		return &Failure{Reason: ReasonTransfer, ChunkIndex: i, Err: err}
	}

	uploaded, err := normalize(res.Uploaded, t.totalChunks)
	if err != nil {
		return &Failure{Reason: ReasonTransfer, ChunkIndex: i, Err: err}
	}
	t.setUploaded(uploaded, res.Progress)

	c.log.Debug(ctx, "chunk acknowledged", "task_id", t.id, "file_hash", t.hash,
		"chunk", i, "uploaded", len(uploaded), "progress", res.Progress)
	c.changedTask(t)

	if len(uploaded) == t.totalChunks {
		return c.merge(ctx, t)
	}
	return nil
}

func (c *Coordinator) merge(ctx context.Context, t *Task) error {
	res, err := c.client.MergeChunks(ctx, t.hash, t.name)
	if err != nil {
		return &Failure{Reason: ReasonMerge, ChunkIndex: -1, Err: err}
	}

	t.complete(res.ObjectURL)
	c.log.Info(ctx, "task completed", "task_id", t.id, "file_hash", t.hash, "object_url", res.ObjectURL)
	c.changedTask(t)
	return nil
}

func (c *Coordinator) fail(t *Task, err error) {
	var f *Failure
	if !errors.As(err, &f) {
		f = &Failure{Reason: ReasonTransfer, ChunkIndex: -1, Err: err}
	}

	t.breakWith(f)
	c.log.Error(c.ctx, "task broken", "task_id", t.id, "file_hash", t.hash,
		"reason", string(f.Reason), "chunk", f.ChunkIndex, "error", f.Err)
	c.changedTask(t)
}

// changedTask publishes a task change to the journal, the callback and
// waiters. Callers must not hold any coordinator or task lock.
func (c *Coordinator) changedTask(t *Task) {
	// The snapshot is taken under publish so a later state is never
	// overwritten by an earlier one.
	t.publish.Lock()
	defer t.publish.Unlock()
	snap := t.Snapshot()

	if c.journal != nil {
		if err := c.journal.Save(context.WithoutCancel(c.ctx), snap); err != nil {
			c.log.Warn(c.ctx, "journal write failed", "file_hash", t.hash, "error", err)
		}
	}
	if c.onChange != nil {
		c.onChange(snap)
	}
	c.broadcast()
}

func (c *Coordinator) broadcast() {
	c.mu.Lock()
	close(c.changed)
	c.changed = make(chan struct{})
	c.mu.Unlock()
}

// normalize validates store-reported indices and returns them sorted and
// deduplicated.
func normalize(reported []int, total int) ([]int, error) {
	out := make([]int, 0, len(reported))
	for _, i := range reported {
		if i < 0 || i >= total {
			return nil, fmt.Errorf("%w: chunk index %d outside [0,%d)", client.ErrMalformedResponse, i, total)
		}
		out = append(out, i)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}
