package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nixlim/alert-top/internal/logging"
	"github.com/nixlim/alert-top/internal/reconcile"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream new alerts and notifications to stdout without the dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch()
		},
	}
}

func runWatch() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, syncLog, err := logging.New(cfg.Logging, true)
	if err != nil {
		return err
	}
	defer syncLog()

	eng, err := newEngine(cfg, logger, notifierFor(cfg, logger))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	in := make(chan reconcile.Event, 64)
	emit := func(ev reconcile.Event) {
		select {
		case in <- ev:
		case <-ctx.Done():
		}
	}

	eng.start(ctx, emit)
	fetchInitial(ctx, eng.poller, emit)

	eng.dispatcher.Run(ctx, in, func(ev reconcile.Event, out reconcile.Outcome) {
		for _, e := range outcomeEntries(ev, out, eng.store.Lookup, time.Now()) {
			printEntry(os.Stdout, e)
		}
	})

	eng.poller.Stop()
	eng.stopPush()
	logger.Info("watch stopped", zap.Int("alerts", eng.store.Len()))
	return nil
}

// fetcher issues one poll request. *poll.Poller satisfies it.
type fetcher interface {
	Fetch(ctx context.Context, trigger reconcile.Trigger) reconcile.Event
}

// fetchInitial requests the first batch in the background so the caller
// can start draining events before the request completes.
func fetchInitial(ctx context.Context, f fetcher, emit reconcile.Emit) {
	go func() { emit(f.Fetch(ctx, reconcile.TriggerInitial)) }()
}
