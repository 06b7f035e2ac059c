package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nixlim/alert-top/internal/backend"
	"github.com/nixlim/alert-top/internal/filter"
	"github.com/nixlim/alert-top/internal/logging"
	"github.com/nixlim/alert-top/internal/state"
)

func newListCmd() *cobra.Command {
	var (
		severity string
		unacked  bool
		search   string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Fetch the alert collection once and print it as a table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			crit := filter.Clear()
			if severity != "" {
				crit.Severity = severity
			}
			crit.OnlyUnacknowledged = unacked
			crit.Search = search
			if err := crit.Validate(); err != nil {
				return err
			}
			return runList(cmd.Context(), crit)
		},
	}
	cmd.Flags().StringVar(&severity, "severity", "", "only alerts of this severity: critical, high, medium or low")
	cmd.Flags().BoolVar(&unacked, "unacked", false, "only unacknowledged alerts")
	cmd.Flags().StringVar(&search, "search", "", "only alerts whose title, description or keywords contain this text")
	return cmd
}

func runList(ctx context.Context, crit filter.Criteria) error {
	if ctx == nil {
		ctx = context.Background()
	}
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
	listing, err := client.ListAlerts(ctx, crit.Query())
	if err != nil {
		return err
	}

	store := state.NewStore(nil)
	store.IngestBatch(state.Batch{Generation: 1, Alerts: listing.Alerts})
	list := filter.Apply(store.List(), crit)
	renderAlertTable(os.Stdout, list, time.Local)

	fmt.Printf("%d alerts", len(list))
	if listing.Dropped > 0 {
		fmt.Printf(" (%s)", colorErr(fmt.Sprintf("%d malformed records dropped", listing.Dropped)))
	}
	fmt.Println()
	return nil
}
