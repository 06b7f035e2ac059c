// Package reconcile serialises ingestion events from the push and poll
// sources into the canonical store and the notification gate.
package reconcile

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/nixlim/alert-top/internal/alerts"
	"github.com/nixlim/alert-top/internal/state"
)

// Outcome is what handling one event produced.
type Outcome struct {
	// Notification is set when the gate decided to interrupt the user.
	Notification *alerts.Decision
	// Err is a failure the user should see.
	Err error
	// Connected is set when the push connectivity changed.
	Connected *bool
	// Changed is true when the canonical set may differ from before.
	Changed bool
	// Fresh holds the ids this event added to the delta, in ingest order.
	Fresh []string
}

// Dispatcher applies events one at a time. It is not safe for concurrent
// use: callers own a single loop (the TUI update loop or Run) that calls
// Handle.
type Dispatcher struct {
	store    *state.Store
	gate     *alerts.Gate
	notifier alerts.Notifier
	logger   *zap.Logger

	connected bool
}

// NewDispatcher wires a dispatcher. notifier may be nil when decisions are
// only reported through Outcome.
func NewDispatcher(store *state.Store, gate *alerts.Gate, notifier alerts.Notifier, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{store: store, gate: gate, notifier: notifier, logger: logger}
}

// Connected reports the last known push connectivity.
func (d *Dispatcher) Connected() bool {
	return d.connected
}

// Handle applies one event.
func (d *Dispatcher) Handle(ev Event) Outcome {
	switch ev := ev.(type) {
	case PushAlertReceived:
		return d.handlePush(ev)
	case PollBatchReceived:
		return d.handleBatch(ev)
	case PollFailed:
		return d.handlePollFailed(ev)
	case ConnectivityChanged:
		if ev.Connected == d.connected {
			return Outcome{}
		}
		d.connected = ev.Connected
		if ev.Connected {
			d.logger.Info("push subscription connected")
		} else {
			d.logger.Warn("push subscription lost", zap.Error(ev.Err))
		}
		c := ev.Connected
		return Outcome{Connected: &c}
	case IngestDropped:
		d.store.RecordDropped(ev.Count)
		d.logger.Debug("dropped malformed records",
			zap.Stringer("source", ev.Source), zap.Int("count", ev.Count))
		return Outcome{}
	case nil:
		return Outcome{}
	default:
		d.logger.Warn("unhandled event", zap.String("type", fmt.Sprintf("%T", ev)))
		return Outcome{}
	}
}

func (d *Dispatcher) handlePush(ev PushAlertReceived) Outcome {
	if !d.store.IngestOne(ev.Alert) {
		d.logger.Debug("duplicate push ignored", zap.String("id", ev.Alert.ID))
		// A duplicate adds nothing, but an empty id was counted as dropped.
		return Outcome{}
	}
	out := Outcome{Changed: true}
	out.Fresh, out.Notification = d.decide(alerts.SourcePush)
	return out
}

func (d *Dispatcher) handleBatch(ev PollBatchReceived) Outcome {
	d.store.RecordDropped(ev.Dropped)
	res := d.store.IngestBatch(state.Batch{Generation: ev.Generation, Alerts: ev.Alerts})
	if res.Stale {
		d.logger.Debug("stale poll batch ignored",
			zap.Uint64("generation", ev.Generation), zap.String("trigger", string(ev.Trigger)))
		return Outcome{}
	}
	d.logger.Debug("poll batch applied",
		zap.Uint64("generation", ev.Generation),
		zap.String("trigger", string(ev.Trigger)),
		zap.Int("inserted", res.Inserted),
		zap.Int("merged", res.Merged),
		zap.Int("new", len(res.NewIDs)),
	)
	out := Outcome{Changed: true}
	out.Fresh, out.Notification = d.decide(alerts.SourcePoll)
	return out
}

func (d *Dispatcher) handlePollFailed(ev PollFailed) Outcome {
	if !ev.Trigger.Surfaced() {
		d.logger.Warn("background poll failed", zap.Error(ev.Err))
		return Outcome{}
	}
	d.logger.Error("poll failed", zap.String("trigger", string(ev.Trigger)), zap.Error(ev.Err))
	return Outcome{Err: errors.Wrapf(ev.Err, "%s refresh", ev.Trigger)}
}

// decide consumes the pending delta and asks the gate about it. The delta
// is consumed even when the gate stays quiet, so suppressed alerts are not
// announced later.
func (d *Dispatcher) decide(source alerts.Source) ([]string, *alerts.Decision) {
	ids := d.store.Delta()
	if len(ids) == 0 {
		return nil, nil
	}
	decision, ok := d.gate.ShouldNotify(d.store.Lookup(ids), source)
	if !ok {
		return ids, nil
	}
	if d.notifier != nil {
		d.notifier.Notify(decision)
	}
	return ids, &decision
}

// Run handles events from in until ctx is done or in is closed, passing
// every event with its outcome to sink. It is the headless counterpart of the
// TUI loop.
func (d *Dispatcher) Run(ctx context.Context, in <-chan Event, sink func(Event, Outcome)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			out := d.Handle(ev)
			if sink != nil {
				sink(ev, out)
			}
		}
	}
}
