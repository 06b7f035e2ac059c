package reconcile

import (
	"github.com/nixlim/alert-top/internal/alerts"
)

// Trigger says why a poll request was issued.
type Trigger string

const (
	TriggerInitial Trigger = "initial"
	TriggerAuto    Trigger = "auto"
	TriggerManual  Trigger = "manual"
	TriggerFilters Trigger = "filters"
)

// Surfaced reports whether failures of this trigger are shown to the user.
// Background ticks fail quietly and wait for the next tick.
func (t Trigger) Surfaced() bool {
	return t != TriggerAuto
}

// Event is anything the ingestion sources hand to the dispatcher.
type Event interface {
	event()
}

// Emit delivers an event to the dispatcher. Implementations must not block
// for long; sources call it from their own goroutines.
type Emit func(Event)

// PushAlertReceived carries one alert from the push subscription.
type PushAlertReceived struct {
	Alert alerts.Alert
}

// PollBatchReceived carries a complete poll response.
type PollBatchReceived struct {
	Generation uint64
	Trigger    Trigger
	Alerts     []alerts.Alert
	Dropped    int
}

// PollFailed reports a poll request that produced no batch.
type PollFailed struct {
	Generation uint64
	Trigger    Trigger
	Err        error
}

// ConnectivityChanged reports the push subscription going up or down.
type ConnectivityChanged struct {
	Connected bool
	Err       error
}

// IngestDropped reports records discarded before normalization finished.
type IngestDropped struct {
	Source alerts.Source
	Count  int
}

func (PushAlertReceived) event()   {}
func (PollBatchReceived) event()   {}
func (PollFailed) event()          {}
func (ConnectivityChanged) event() {}
func (IngestDropped) event()       {}
