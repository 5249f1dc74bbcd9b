package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/kbupload/internal/client/models"
	"github.com/dmitrijs2005/kbupload/internal/client/uploader"
	"github.com/dmitrijs2005/kbupload/internal/client/watch"
)

// watch uploads every regular file that settles in a directory until ctx
// is cancelled.
func (a *App) watch(ctx context.Context, args []string) error {
	var f uploadFlags
	fs := a.newFlagSet("watch")
	a.bindUploadFlags(fs, &f)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: watch needs exactly one directory", errUsage)
	}

	s, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	w := &watch.Watcher{
		Dir:      fs.Arg(0),
		Debounce: watchDebounce,
		Log:      a.log,
		Handle: func(ctx context.Context, path string) error {
			t, created, err := s.enqueue(ctx, path, f.orgTag, f.public, true)
			if err != nil || created || t.Status() != models.StatusBroken {
				return err
			}
			// Touching a file whose upload broke earlier asks for another go.
			if _, err := s.coord.Retry(ctx, t.Hash()); err != nil && !errors.Is(err, uploader.ErrNotBroken) {
				return err
			}
			a.log.Info(ctx, "broken upload retried", "path", path, "file_hash", t.Hash())
			return nil
		},
	}
	fmt.Fprintf(a.out, "Watching %s, press Ctrl+C to stop\n", fs.Arg(0))
	return w.Run(ctx)
}

// watchDebounce is shortened in tests.
var watchDebounce = watch.DefaultDebounce
