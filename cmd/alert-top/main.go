package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nixlim/alert-top/internal/alerts"
	"github.com/nixlim/alert-top/internal/backend"
	"github.com/nixlim/alert-top/internal/config"
	"github.com/nixlim/alert-top/internal/events"
	"github.com/nixlim/alert-top/internal/logging"
	"github.com/nixlim/alert-top/internal/poll"
	"github.com/nixlim/alert-top/internal/push"
	"github.com/nixlim/alert-top/internal/reconcile"
	"github.com/nixlim/alert-top/internal/selection"
	"github.com/nixlim/alert-top/internal/state"
	"github.com/nixlim/alert-top/internal/tui"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logFile    string
	logLevel   string
}

var flags globalFlags

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "alert-top: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "alert-top",
		Short: "Live security alert dashboard",
		Long: `alert-top merges a live push feed and periodic polling of an alert API
into one deduplicated view, and raises notifications for new alerts
without interrupting active triage.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard()
		},
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default ~/.config/alert-top/config.toml)")
	root.PersistentFlags().StringVar(&flags.logFile, "log-file", "", "write logs to this file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(newWatchCmd(), newListCmd(), newDeleteCmd(), newInitCmd())
	return root
}

// loadConfig loads the config file, applies the logging flags and prints
// any warnings.
func loadConfig() (config.Config, error) {
	var (
		res *config.LoadResult
		err error
	)
	if flags.configPath != "" {
		res, err = config.LoadFrom(flags.configPath)
	} else {
		res, err = config.Load()
	}
	if err != nil {
		return config.Config{}, errors.Wrap(err, "config error")
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "alert-top: config warning: %s\n", w)
	}

	cfg := res.Config
	if flags.logFile != "" {
		cfg.Logging.File = flags.logFile
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	return cfg, nil
}

// engine is the reconciliation core shared by the dashboard and watch.
type engine struct {
	client     *backend.Client
	store      *state.Store
	clock      *alerts.InteractionClock
	dispatcher *reconcile.Dispatcher
	poller     *poll.Poller
	subscriber *push.Subscriber
}

func newEngine(cfg config.Config, logger *zap.Logger, notifier alerts.Notifier) (*engine, error) {
	client := backend.New(cfg.Backend, backend.WithLogger(logger.Named("backend")))
	store := state.NewStore(nil)
	clock := alerts.NewInteractionClock(nil)
	gate := alerts.NewGate(clock, time.Duration(cfg.Alerts.IdleThresholdMS)*time.Millisecond, nil)

	e := &engine{
		client:     client,
		store:      store,
		clock:      clock,
		dispatcher: reconcile.NewDispatcher(store, gate, notifier, logger.Named("reconcile")),
		poller: poll.New(client, time.Duration(cfg.Poll.IntervalSeconds)*time.Second,
			cfg.Poll.Live, logger.Named("poll")),
	}

	if cfg.Push.Enabled {
		sub, err := push.New(cfg.Push, cfg.Backend.Token,
			push.WithLogger(logger.Named("push")),
			push.WithReconnectDelay(time.Duration(cfg.Push.ReconnectSeconds)*time.Second),
		)
		if err != nil {
			return nil, err
		}
		e.subscriber = sub
	}
	return e, nil
}

// start launches the sources. Poll ticks begin after one interval; callers
// issue the initial fetch themselves.
func (e *engine) start(ctx context.Context, emit reconcile.Emit) {
	e.poller.Start(ctx, emit)
	if e.subscriber != nil {
		e.subscriber.Start(ctx, emit)
	}
}

func (e *engine) stopPush() {
	if e.subscriber != nil {
		e.subscriber.Stop()
	}
}

func notifierFor(cfg config.Config, logger *zap.Logger) alerts.Notifier {
	n := alerts.MultiNotifier{alerts.LogNotifier{Logger: logger.Named("notify")}}
	if cfg.Alerts.Notifications.SystemNotify {
		n = append(n, alerts.NewPlatformNotifier(true, logger.Named("notify")))
	}
	return n
}

func runDashboard() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, syncLog, err := logging.New(cfg.Logging, false)
	if err != nil {
		return err
	}
	defer syncLog()

	eng, err := newEngine(cfg, logger, notifierFor(cfg, logger))
	if err != nil {
		return errors.Wrap(err, "push setup")
	}

	sel := selection.New(eng.store, eng.client, logger.Named("selection"))
	activity := events.NewRingBuffer(cfg.Display.ActivityBufferSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownMgr := tui.NewShutdownManager()
	shutdownMgr.StopPoller = eng.poller.Stop
	shutdownMgr.StopPush = eng.stopPush
	shutdownMgr.Cleanup = cancel

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	model := tui.NewModel(cfg, eng.store, eng.dispatcher, sel,
		tui.WithRefresher(eng.poller),
		tui.WithInteractionClock(eng.clock),
		tui.WithActivity(activity),
		tui.WithContext(ctx),
		tui.WithOnShutdown(func() {
			if err := shutdownMgr.Shutdown(); err != nil {
				logger.Warn("shutdown did not drain", zap.Error(err))
			}
		}),
	)

	p := tea.NewProgram(model, tea.WithAltScreen())
	eng.start(ctx, tui.Emitter(p.Send))
	logger.Info("dashboard started",
		zap.String("backend", cfg.Backend.BaseURL),
		zap.Bool("push", cfg.Push.Enabled),
		zap.Bool("live", cfg.Poll.Live),
	)

	go func() {
		select {
		case <-sigCh:
			_ = shutdownMgr.Shutdown()
			p.Quit()
		case <-ctx.Done():
		}
	}()

	if _, err := p.Run(); err != nil {
		_ = shutdownMgr.Shutdown()
		return err
	}
	return shutdownMgr.Shutdown()
}
