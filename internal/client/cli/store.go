package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/kbupload/internal/client/client"
	"github.com/dmitrijs2005/kbupload/internal/client/models"
	"github.com/dmitrijs2005/kbupload/internal/common"
)

// status prints what the store holds for a file hash, plus the journal
// entry when there is one.
func (a *App) status(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: status HASH", errUsage)
	}
	hash := args[0]

	c, err := a.newClient(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	st, err := c.UploadStatus(ctx, hash)
	switch {
	case errors.Is(err, client.ErrNotFound):
		fmt.Fprintf(a.out, "%s  not in store\n", short(hash))
	case err != nil:
		return err
	default:
		total := "?"
		if st.TotalChunks > 0 {
			total = fmt.Sprint(st.TotalChunks)
		}
		fmt.Fprintf(a.out, "%s  %d/%s chunks stored  %.1f%%\n", short(hash), len(st.Uploaded), total, st.Progress)
	}

	repos, err := a.openJournal(ctx)
	if err != nil {
		return err
	}
	defer repos.Close()

	rec, err := repos.Tasks.GetByHash(ctx, hash)
	if errors.Is(err, common.ErrorNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "journal: %s %s (%s)\n", rec.FileName, rec.Status, rec.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	if rec.FailureMessage != "" {
		fmt.Fprintf(a.out, "last failure: %s\n", rec.FailureMessage)
	}
	return nil
}

// deleteFile removes a file and its chunks from the store and forgets it
// locally.
func (a *App) deleteFile(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: delete HASH", errUsage)
	}
	hash := args[0]

	c, err := a.newClient(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.DeleteFile(ctx, hash); err != nil && !errors.Is(err, client.ErrNotFound) {
		return err
	}

	repos, err := a.openJournal(ctx)
	if err != nil {
		return err
	}
	defer repos.Close()

	if err := repos.Tasks.Delete(ctx, hash); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s  deleted\n", short(hash))
	return nil
}

// history lists journal entries, optionally filtered, and can prune
// finished ones.
func (a *App) history(ctx context.Context, args []string) error {
	fs := a.newFlagSet("history")
	statusList := fs.String("status", "", "comma-separated statuses to show (or prune)")
	prune := fs.Bool("prune", false, "delete matching entries (completed when -status is empty)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	var statuses []models.Status
	for _, s := range strings.Split(*statusList, ",") {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		st, err := models.ParseStatus(s)
		if err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
		statuses = append(statuses, st)
	}

	repos, err := a.openJournal(ctx)
	if err != nil {
		return err
	}
	defer repos.Close()

	if *prune {
		if len(statuses) == 0 {
			statuses = []models.Status{models.StatusCompleted}
		}
		if slices.ContainsFunc(statuses, func(s models.Status) bool { return !s.Terminal() }) {
			return fmt.Errorf("%w: only completed or broken entries can be pruned", errUsage)
		}
		n, err := repos.Prune(ctx, statuses...)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Pruned %d entries\n", n)
		return nil
	}

	var list []models.TaskSnapshot
	if len(statuses) == 0 {
		list, err = repos.Tasks.List(ctx)
	} else {
		list, err = repos.Tasks.ListByStatus(ctx, statuses...)
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HASH\tSTATUS\tPROGRESS\tFILE\tORG\tUPDATED")
	for _, t := range list {
		fmt.Fprintf(tw, "%s\t%s\t%.1f%%\t%s\t%s\t%s\n",
			short(t.FileHash), t.Status, t.Progress, t.FileName, t.OrgTag, t.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

// files lists what the document service holds for the current user.
func (a *App) files(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: files takes no arguments", errUsage)
	}

	c, err := a.newClient(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	lister, ok := c.(client.Lister)
	if !ok {
		return fmt.Errorf("%w: the %s transport cannot list stored files", errUsage, a.config.Transport)
	}

	list, err := lister.ListFiles(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HASH\tSTATE\tSIZE\tFILE\tCREATED")
	for _, f := range list {
		state := "uploading"
		if f.Merged() {
			state = "merged"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", short(f.FileHash), state, f.TotalSize, f.FileName, f.CreatedAt)
	}
	return tw.Flush()
}
