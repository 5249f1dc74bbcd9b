package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/kbupload/internal/client/client"
	"github.com/dmitrijs2005/kbupload/internal/client/database"
	"github.com/dmitrijs2005/kbupload/internal/client/models"
	"github.com/dmitrijs2005/kbupload/internal/client/repositories/tasks"
	"github.com/dmitrijs2005/kbupload/internal/client/uploader"
	"github.com/dmitrijs2005/kbupload/internal/filex"
	"github.com/dmitrijs2005/kbupload/internal/hashx"
	"github.com/dmitrijs2005/kbupload/internal/logging"
)

// journal persists coordinator snapshots to the task repository.
type journal struct {
	repo tasks.Repository
}

func (j journal) Save(ctx context.Context, t models.TaskSnapshot) error {
	return j.repo.Upsert(ctx, t)
}

// session is one coordinator plus the resources it runs on.
type session struct {
	repos  *database.Repositories
	client client.Client
	coord  *uploader.Coordinator
	out    io.Writer
	log    logging.Logger

	mu    sync.Mutex
	files map[string]io.Closer
}

func (a *App) openSession(ctx context.Context) (*session, error) {
	repos, err := a.openJournal(ctx)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	c, err := a.newClient(ctx)
	if err != nil {
		repos.Close()
		return nil, err
	}

	hasher, err := hashx.New(hashx.Algorithm(a.config.HashAlgorithm), a.config.HashWindow)
	if err != nil {
		c.Close()
		repos.Close()
		return nil, err
	}

	s := &session{
		repos:  repos,
		client: c,
		out:    a.out,
		log:    a.log,
		files:  make(map[string]io.Closer),
	}

	s.coord, err = uploader.New(ctx, c, uploader.Options{
		ChunkSize:     a.config.ChunkSize,
		MaxConcurrent: a.config.MaxConcurrent,
		Hasher:        hasher,
		DefaultOrgTag: a.defaultOrgTag(ctx),
		Journal:       journal{repo: repos.Tasks},
		OnChange:      s.onChange,
		Logger:        a.log,
	})
	if err != nil {
		c.Close()
		repos.Close()
		return nil, err
	}
	return s, nil
}

// enqueue opens path and queues it. created is false when a task with the
// same content already existed. The file stays open until its task completes
// or the session closes; a broken task keeps it for Retry.
func (s *session) enqueue(ctx context.Context, path, orgTag string, public, resume bool) (t *uploader.Task, created bool, err error) {
	f, err := filex.OpenFile(path)
	if err != nil {
		return nil, false, err
	}

	t, err = s.coord.Enqueue(ctx, models.Form{
		Source:   f,
		OrgTag:   orgTag,
		IsPublic: public,
		Resume:   resume,
	})
	if err != nil {
		f.Close()
		return nil, false, err
	}

	if t.Source() != filex.Source(f) {
		// Duplicate content: the task reads from another handle.
		f.Close()
		return t, false, nil
	}

	s.mu.Lock()
	s.files[t.Hash()] = f
	s.mu.Unlock()
	s.log.Debug(ctx, "file queued", "path", path, "file_hash", t.Hash(), "active", s.coord.Active())

	// The task may have completed before the handle was registered.
	if t.Status() == models.StatusCompleted {
		s.release(t.Hash())
	}
	return t, true, nil
}

func (s *session) release(hash string) {
	s.mu.Lock()
	f, ok := s.files[hash]
	delete(s.files, hash)
	s.mu.Unlock()
	if ok {
		f.Close()
	}
}

func (s *session) onChange(t models.TaskSnapshot) {
	if t.Status == models.StatusCompleted {
		s.release(t.FileHash)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch t.Status {
	case models.StatusCompleted:
		fmt.Fprintf(s.out, "%s  %-9s %6.1f%%  %s -> %s\n", short(t.FileHash), t.Status, t.Progress, t.FileName, t.ObjectURL)
	case models.StatusBroken:
		fmt.Fprintf(s.out, "%s  %-9s %6.1f%%  %s: %s\n", short(t.FileHash), t.Status, t.Progress, t.FileName, t.FailureMessage)
	default:
		fmt.Fprintf(s.out, "%s  %-9s %6.1f%%  %s (%d/%d chunks)\n", short(t.FileHash), t.Status, t.Progress, t.FileName, len(t.UploadedChunks), t.TotalChunks)
	}
}

// finish waits for the queue to empty and reports broken tasks.
func (s *session) finish(ctx context.Context) error {
	if err := s.coord.Wait(ctx); err != nil {
		return err
	}

	broken := 0
	for _, t := range s.coord.Tasks() {
		if t.Status() == models.StatusBroken {
			broken++
		}
	}
	if broken > 0 {
		return fmt.Errorf("%w: %d of %d broken", errSomeBroken, broken, len(s.coord.Tasks()))
	}
	return nil
}

func (s *session) Close() error {
	s.mu.Lock()
	files := s.files
	s.files = map[string]io.Closer{}
	s.mu.Unlock()

	var errs []error
	for _, f := range files {
		errs = append(errs, f.Close())
	}
	errs = append(errs, s.client.Close(), s.repos.Close())
	return errors.Join(errs...)
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
