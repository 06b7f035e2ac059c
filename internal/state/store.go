package state

import (
	"sort"
	"sync"
	"time"

	"github.com/nixlim/alert-top/internal/alerts"
)

// Store is the canonical, deduplicated alert set. Both ingestion paths and
// the delete coordinator mutate it; everything else reads copies.
// All methods are safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	entries map[string]*entry
	seq     uint64

	// delta holds ids ingested since the last Delta call, in ingest order.
	delta    []string
	inDelta  map[string]struct{}
	prevPoll map[string]struct{}

	lastGeneration uint64
	haveGeneration bool

	// deleted tombstones ids whose removal the backend confirmed.
	deleted map[string]struct{}

	dropped int
	stale   int

	now func() time.Time
}

// NewStore creates an empty store. A nil now function defaults to time.Now.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		entries:  make(map[string]*entry),
		inDelta:  make(map[string]struct{}),
		prevPoll: make(map[string]struct{}),
		deleted:  make(map[string]struct{}),
		now:      now,
	}
}

// IngestOne inserts a push-delivered alert. An alert whose id is already
// known is ignored entirely, so redelivery of the same push event never
// duplicates the entry or the delta. It returns true when the alert was
// inserted.
func (s *Store) IngestOne(a alerts.Alert) bool {
	if a.ID == "" {
		s.RecordDropped(1)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, gone := s.deleted[a.ID]; gone {
		return false
	}
	if _, exists := s.entries[a.ID]; exists {
		return false
	}
	s.insertLocked(a, alerts.SourcePush, true)
	return true
}

// IngestBatch applies a poll response. Records for known ids are
// field-merged onto the existing entry; unknown ids are inserted. Entries
// missing from the batch are never evicted, so push-only alerts survive a
// filtered or stale poll.
//
// The ids new in this batch (absent from the previous batch and not already
// canonical) are added to the delta. The batch then becomes the comparison
// basis for the next one.
func (s *Store) IngestBatch(b Batch) BatchResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res BatchResult
	if s.haveGeneration && b.Generation < s.lastGeneration {
		s.stale++
		res.Stale = true
		return res
	}
	s.lastGeneration = b.Generation
	s.haveGeneration = true

	basis := make(map[string]struct{}, len(b.Alerts))
	for _, a := range b.Alerts {
		if a.ID == "" {
			s.dropped++
			continue
		}
		if _, gone := s.deleted[a.ID]; gone {
			res.Ignored++
			continue
		}
		basis[a.ID] = struct{}{}

		if e, exists := s.entries[a.ID]; exists {
			e.alert = e.alert.MergeFrom(a)
			res.Merged++
			continue
		}

		_, seenLastPoll := s.prevPoll[a.ID]
		s.insertLocked(a, alerts.SourcePoll, !seenLastPoll)
		res.Inserted++
		if !seenLastPoll {
			res.NewIDs = append(res.NewIDs, a.ID)
		}
	}
	s.prevPoll = basis

	return res
}

// insertLocked adds a new entry, recording it in the delta when announce
// is set. Caller must hold s.mu (write lock).
func (s *Store) insertLocked(a alerts.Alert, origin alerts.Source, announce bool) {
	s.seq++
	s.entries[a.ID] = &entry{
		alert:      a.Clone(),
		seq:        s.seq,
		ingestedAt: s.now(),
		origin:     origin,
	}
	if !announce {
		return
	}
	if _, ok := s.inDelta[a.ID]; !ok {
		s.inDelta[a.ID] = struct{}{}
		s.delta = append(s.delta, a.ID)
	}
}

// dropDeltaLocked removes id from the pending delta.
// Caller must hold s.mu (write lock).
func (s *Store) dropDeltaLocked(id string) {
	if _, ok := s.inDelta[id]; !ok {
		return
	}
	delete(s.inDelta, id)
	for i, d := range s.delta {
		if d == id {
			s.delta = append(s.delta[:i], s.delta[i+1:]...)
			break
		}
	}
}

// Delta returns the ids ingested since the previous call and clears them.
// Each id is reported exactly once.
func (s *Store) Delta() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.delta) == 0 {
		return nil
	}
	out := s.delta
	s.delta = nil
	s.inDelta = make(map[string]struct{})
	return out
}

// Get returns a copy of the alert with the given id.
func (s *Store) Get(id string) (alerts.Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return alerts.Alert{}, false
	}
	return e.alert.Clone(), true
}

// Origin reports which ingestion path first delivered the alert and when.
func (s *Store) Origin(id string) (alerts.Source, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return 0, time.Time{}, false
	}
	return e.origin, e.ingestedAt, true
}

// Lookup returns copies of the alerts for ids that are still present, in
// the order given.
func (s *Store) Lookup(ids []string) []alerts.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]alerts.Alert, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.entries[id]; ok {
			out = append(out, e.alert.Clone())
		}
	}
	return out
}

// List returns a copy of the canonical set ordered by createdAt descending.
// Equal timestamps put the more recently ingested entry first.
func (s *Store) List() []alerts.Alert {
	type ranked struct {
		alert alerts.Alert
		seq   uint64
	}

	s.mu.RLock()
	ordered := make([]ranked, 0, len(s.entries))
	for _, e := range s.entries {
		ordered = append(ordered, ranked{alert: e.alert.Clone(), seq: e.seq})
	}
	s.mu.RUnlock()

	sort.Slice(ordered, func(i, j int) bool {
		ai, aj := ordered[i].alert.CreatedAt, ordered[j].alert.CreatedAt
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		return ordered[i].seq > ordered[j].seq
	})

	out := make([]alerts.Alert, len(ordered))
	for i, r := range ordered {
		out[i] = r.alert
	}
	return out
}

// Len returns the number of canonical alerts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Remove deletes the given ids from the canonical set and tombstones them
// so a later stale ingest cannot bring them back. It returns the ids that
// were actually present.
func (s *Store) Remove(ids ...string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for _, id := range ids {
		s.deleted[id] = struct{}{}
		s.dropDeltaLocked(id)
		delete(s.prevPoll, id)
		if _, ok := s.entries[id]; ok {
			delete(s.entries, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// RecordDropped counts malformed records discarded before reaching the store.
func (s *Store) RecordDropped(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropped += n
}

// Dropped returns the number of malformed records discarded so far.
func (s *Store) Dropped() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dropped
}

// Stats returns a snapshot of the store counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Alerts:       len(s.entries),
		Dropped:      s.dropped,
		StaleBatches: s.stale,
		PendingDelta: len(s.delta),
	}
}
