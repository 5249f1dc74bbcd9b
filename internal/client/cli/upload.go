package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/dmitrijs2005/kbupload/internal/client/models"
	"github.com/dmitrijs2005/kbupload/internal/common"
	"golang.org/x/sync/errgroup"
)

type uploadFlags struct {
	orgTag string
	public bool
	resume bool
}

func (a *App) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

func (a *App) bindUploadFlags(fs *flag.FlagSet, f *uploadFlags) {
	fs.StringVar(&f.orgTag, "org", "", "organisation tag (default: primary org of the token)")
	fs.BoolVar(&f.public, "public", false, "make the files visible to everyone")
}

// upload queues every file argument and waits for all of them.
func (a *App) upload(ctx context.Context, args []string) error {
	var f uploadFlags
	fs := a.newFlagSet("upload")
	a.bindUploadFlags(fs, &f)
	fs.BoolVar(&f.resume, "resume", true, "skip chunks the store already holds")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: upload needs at least one file", errUsage)
	}

	s, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	// Hashing reads whole windows of each file, so it runs in parallel up to
	// the upload slot count.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.config.MaxConcurrent)
	for _, path := range fs.Args() {
		g.Go(func() error {
			if _, _, err := s.enqueue(gctx, path, f.orgTag, f.public, f.resume); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			return nil
		})
	}
	enqueueErr := g.Wait()

	if err := s.finish(ctx); err != nil {
		return errors.Join(enqueueErr, err)
	}
	return enqueueErr
}

// resume re-queues every unfinished upload in the journal whose local file
// is still readable.
func (a *App) resume(ctx context.Context, args []string) error {
	fs := a.newFlagSet("resume")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	s, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	pending, err := s.repos.Tasks.ListByStatus(ctx, models.StatusPending, models.StatusUploading, models.StatusBroken)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Fprintln(a.out, "Nothing to resume")
		return nil
	}

	var errs []error
	for _, rec := range pending {
		if rec.LocalPath == "" {
			a.log.Warn(ctx, "journal entry has no local path", "file_hash", rec.FileHash)
			continue
		}
		if err := a.requeue(ctx, s, rec); err != nil {
			errs = append(errs, err)
		}
	}

	if err := s.finish(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// retry re-queues the named broken uploads from their local files.
func (a *App) retry(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: retry needs at least one file hash", errUsage)
	}

	s, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	var errs []error
	for _, hash := range args {
		rec, err := s.repos.Tasks.GetByHash(ctx, hash)
		if errors.Is(err, common.ErrorNotFound) {
			errs = append(errs, fmt.Errorf("%s: no such upload in the journal", hash))
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if rec.Status == models.StatusCompleted {
			fmt.Fprintf(a.out, "%s  already completed\n", short(hash))
			continue
		}
		if err := a.requeue(ctx, s, *rec); err != nil {
			errs = append(errs, err)
		}
	}

	if err := s.finish(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) requeue(ctx context.Context, s *session, rec models.TaskSnapshot) error {
	t, _, err := s.enqueue(ctx, rec.LocalPath, rec.OrgTag, rec.IsPublic, true)
	if err != nil {
		return fmt.Errorf("%s: %w", short(rec.FileHash), err)
	}
	if t.Hash() != rec.FileHash {
		a.log.Warn(ctx, "local file changed since it was queued",
			"path", rec.LocalPath, "old_hash", rec.FileHash, "new_hash", t.Hash())
	}
	return nil
}
