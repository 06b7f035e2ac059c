package state

import (
	"time"

	"github.com/nixlim/alert-top/internal/alerts"
)

// Batch is one poll response handed to the store.
type Batch struct {
	// Generation orders poll requests by the time they were issued. A batch
	// with a generation lower than the newest applied one is stale.
	Generation uint64
	Alerts     []alerts.Alert
}

// BatchResult summarizes what IngestBatch did.
type BatchResult struct {
	Inserted int
	Merged   int
	// NewIDs are the ids recorded in the delta by this batch.
	NewIDs []string
	// Ignored counts records skipped because their id was deleted.
	Ignored int
	// Stale is true when the whole batch was discarded as out of order.
	Stale bool
}

// entry is a canonical alert plus its ingest bookkeeping.
type entry struct {
	alert      alerts.Alert
	seq        uint64
	ingestedAt time.Time
	origin     alerts.Source
}

// Stats reports store counters for status displays.
type Stats struct {
	Alerts       int
	Dropped      int
	StaleBatches int
	PendingDelta int
}
