package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/nixlim/alert-top/internal/backend"
	"github.com/nixlim/alert-top/internal/events"
	"github.com/nixlim/alert-top/internal/logging"
	"github.com/nixlim/alert-top/internal/selection"
	"github.com/nixlim/alert-top/internal/state"
)

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID...",
		Short: "Delete alerts by id",
		Long: `Delete one or more alerts. Several ids are deleted concurrently with one
request each; failures are reported per id and do not stop the others.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runDelete(ctx, args)
		},
	}
}

func runDelete(ctx context.Context, ids []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, syncLog, err := logging.New(cfg.Logging, false)
	if err != nil {
		return err
	}
	defer syncLog()

	client := backend.New(cfg.Backend, backend.WithLogger(logger.Named("backend")))
	sel := selection.New(state.NewStore(nil), client, logger.Named("selection"))
	return deleteIDs(ctx, sel, ids, os.Stdout)
}

// deleteIDs deletes ids through the coordinator and prints one line per id
// plus a summary.
func deleteIDs(ctx context.Context, sel *selection.Coordinator, ids []string, w io.Writer) error {
	if len(ids) == 1 {
		if err := sel.DeleteOne(ctx, ids[0]); err != nil {
			fmt.Fprintf(w, "%s %s: %v\n", colorErr("FAIL"), ids[0], err)
			return err
		}
		fmt.Fprintf(w, "%s %s\n", colorOK("OK"), ids[0])
		return nil
	}

	sel.ToggleAll(ids)
	res, err := sel.DeleteSelected(ctx)
	for _, id := range res.IDs {
		if derr := res.Outcomes[id]; derr != nil {
			fmt.Fprintf(w, "%s %s: %v\n", colorErr("FAIL"), id, derr)
		} else {
			fmt.Fprintf(w, "%s %s\n", colorOK("OK"), id)
		}
	}
	printEntry(w, events.FormatDelete(len(res.IDs), len(res.Failed()), time.Now()))

	var bulkErr *selection.BulkError
	if errors.As(err, &bulkErr) {
		return errors.Newf("%d of %d deletes failed", len(bulkErr.Failed), bulkErr.Total)
	}
	return err
}
