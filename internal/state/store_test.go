package state

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixlim/alert-top/internal/alerts"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func pushAlert(t *testing.T, payload string) alerts.Alert {
	t.Helper()
	a, ok := alerts.DecodePush([]byte(payload), t0)
	require.True(t, ok)
	return a
}

func pollBatch(t *testing.T, gen uint64, body string) Batch {
	t.Helper()
	as, dropped, err := alerts.DecodeBatch([]byte(body), t0)
	require.NoError(t, err)
	require.Zero(t, dropped)
	return Batch{Generation: gen, Alerts: as}
}

func ids(as []alerts.Alert) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.ID
	}
	return out
}

func TestStore_IngestOneIsIdempotent(t *testing.T) {
	once := NewStore(nil)
	twice := NewStore(nil)
	a := pushAlert(t, `{"id":"A","severity":"high","createdAt":"2024-01-01T00:00:00Z"}`)

	assert.True(t, once.IngestOne(a))

	assert.True(t, twice.IngestOne(a))
	assert.False(t, twice.IngestOne(a))

	assert.Equal(t, ids(once.List()), ids(twice.List()))
	assert.Equal(t, []string{"A"}, once.Delta())
	assert.Equal(t, []string{"A"}, twice.Delta())
}

func TestStore_DuplicatePushDoesNotUpdateFields(t *testing.T) {
	s := NewStore(nil)
	s.IngestOne(pushAlert(t, `{"id":"A","title":"first"}`))
	s.IngestOne(pushAlert(t, `{"id":"A","title":"second"}`))

	got, ok := s.Get("A")
	require.True(t, ok)
	assert.Equal(t, "first", got.Title)
}

func TestStore_PollPreservesPushOnlyEntries(t *testing.T) {
	s := NewStore(nil)
	s.IngestOne(pushAlert(t, `{"id":"A","createdAt":"2024-01-01T00:00:02Z"}`))
	s.IngestOne(pushAlert(t, `{"id":"B","createdAt":"2024-01-01T00:00:01Z"}`))
	s.Delta()

	res := s.IngestBatch(pollBatch(t, 1, `[{"_id":"A"}]`))

	assert.Equal(t, 1, res.Merged)
	assert.Empty(t, res.NewIDs)
	assert.ElementsMatch(t, []string{"A", "B"}, ids(s.List()))
}

func TestStore_FieldMergeFromPoll(t *testing.T) {
	s := NewStore(nil)
	s.IngestOne(pushAlert(t, `{"id":"A","title":"Port scan","severity":"medium"}`))

	s.IngestBatch(pollBatch(t, 1, `{"alerts":[{"_id":"A","acknowledged":true}]}`))

	got, ok := s.Get("A")
	require.True(t, ok)
	require.NotNil(t, got.Acknowledged)
	assert.True(t, *got.Acknowledged)
	assert.Equal(t, "Port scan", got.Title)
	assert.Equal(t, alerts.SeverityMedium, got.Severity)
}

func TestStore_BatchDeltaAgainstPreviousBatch(t *testing.T) {
	s := NewStore(nil)

	first := s.IngestBatch(pollBatch(t, 1, `[{"_id":"1"},{"_id":"2"}]`))
	assert.Equal(t, []string{"1", "2"}, first.NewIDs)
	assert.Equal(t, []string{"1", "2"}, s.Delta())

	second := s.IngestBatch(pollBatch(t, 2, `[{"_id":"1"},{"_id":"2"},{"_id":"3"}]`))
	assert.Equal(t, []string{"3"}, second.NewIDs)
	assert.Equal(t, 2, second.Merged)
	assert.Equal(t, []string{"3"}, s.Delta())
}

func TestStore_PushedThenPolledIsNotNewTwice(t *testing.T) {
	s := NewStore(nil)
	s.IngestOne(pushAlert(t, `{"id":"A"}`))
	assert.Equal(t, []string{"A"}, s.Delta())

	res := s.IngestBatch(pollBatch(t, 1, `[{"_id":"A"}]`))
	assert.Empty(t, res.NewIDs)
	assert.Nil(t, s.Delta())
}

func TestStore_DeltaIsConsumedOnce(t *testing.T) {
	s := NewStore(nil)
	s.IngestOne(pushAlert(t, `{"id":"A"}`))
	s.IngestOne(pushAlert(t, `{"id":"B"}`))

	assert.Equal(t, []string{"A", "B"}, s.Delta())
	assert.Nil(t, s.Delta())
}

func TestStore_StaleBatchIgnored(t *testing.T) {
	s := NewStore(nil)
	s.IngestBatch(pollBatch(t, 5, `[{"_id":"A","acknowledged":true}]`))

	res := s.IngestBatch(pollBatch(t, 4, `[{"_id":"A","acknowledged":false},{"_id":"Z"}]`))

	assert.True(t, res.Stale)
	got, _ := s.Get("A")
	assert.True(t, got.IsAcknowledged())
	_, ok := s.Get("Z")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Stats().StaleBatches)
}

func TestStore_CanonicalSetNeverRegresses(t *testing.T) {
	s := NewStore(nil)
	s.IngestBatch(pollBatch(t, 1, `[{"_id":"1"},{"_id":"2"}]`))
	s.IngestOne(pushAlert(t, `{"id":"3"}`))

	s.IngestBatch(pollBatch(t, 2, `[]`))

	assert.ElementsMatch(t, []string{"1", "2", "3"}, ids(s.List()))
}

func TestStore_RemoveTombstones(t *testing.T) {
	s := NewStore(nil)
	s.IngestBatch(pollBatch(t, 1, `[{"_id":"A"},{"_id":"B"}]`))
	s.Delta()

	removed := s.Remove("A", "missing")
	assert.Equal(t, []string{"A"}, removed)

	// A stale response that still lists A must not resurrect it.
	s.IngestBatch(pollBatch(t, 2, `[{"_id":"A"},{"_id":"B"}]`))
	assert.False(t, s.IngestOne(pushAlert(t, `{"id":"A"}`)))

	assert.Equal(t, []string{"B"}, ids(s.List()))
	assert.Nil(t, s.Delta())
}

func TestStore_RemoveClearsPendingDelta(t *testing.T) {
	s := NewStore(nil)
	s.IngestOne(pushAlert(t, `{"id":"A"}`))
	s.Remove("A")
	assert.Nil(t, s.Delta())
}

func TestStore_OrderingByCreatedAtThenIngest(t *testing.T) {
	s := NewStore(nil)
	s.IngestOne(pushAlert(t, `{"id":"old","createdAt":"2024-01-01T00:00:00Z"}`))
	s.IngestOne(pushAlert(t, `{"id":"tie-first","createdAt":"2024-01-02T00:00:00Z"}`))
	s.IngestBatch(pollBatch(t, 1, `[{"_id":"tie-second","createdAt":"2024-01-02T00:00:00Z"},{"_id":"new","createdAt":"2024-01-03T00:00:00Z"}]`))

	assert.Equal(t, []string{"new", "tie-second", "tie-first", "old"}, ids(s.List()))

	// Merging does not reorder ties.
	s.IngestBatch(pollBatch(t, 2, `[{"_id":"tie-first","acknowledged":true}]`))
	assert.Equal(t, []string{"new", "tie-second", "tie-first", "old"}, ids(s.List()))
}

func TestStore_ListReturnsCopies(t *testing.T) {
	s := NewStore(nil)
	s.IngestOne(pushAlert(t, `{"id":"A","keywords":["x"]}`))

	list := s.List()
	list[0].Title = "mutated"
	list[0].Keywords[0] = "mutated"

	got, _ := s.Get("A")
	assert.Equal(t, alerts.DefaultTitle, got.Title)
	assert.Equal(t, []string{"x"}, got.Keywords)
}

func TestStore_DroppedCounting(t *testing.T) {
	s := NewStore(nil)
	assert.False(t, s.IngestOne(alerts.Alert{}))
	s.RecordDropped(2)
	s.RecordDropped(-1)
	s.IngestBatch(Batch{Generation: 1, Alerts: []alerts.Alert{{ID: ""}, {ID: "ok"}}})

	assert.Equal(t, 4, s.Dropped())
	assert.Equal(t, 1, s.Len())
}

func TestStore_Origin(t *testing.T) {
	now := t0.Add(time.Hour)
	s := NewStore(func() time.Time { return now })
	s.IngestOne(pushAlert(t, `{"id":"P"}`))
	s.IngestBatch(pollBatch(t, 1, `[{"_id":"Q"}]`))

	src, at, ok := s.Origin("P")
	require.True(t, ok)
	assert.Equal(t, alerts.SourcePush, src)
	assert.True(t, at.Equal(now))

	src, _, ok = s.Origin("Q")
	require.True(t, ok)
	assert.Equal(t, alerts.SourcePoll, src)

	_, _, ok = s.Origin("nope")
	assert.False(t, ok)
}

func TestStore_ConcurrentWriters(t *testing.T) {
	s := NewStore(nil)
	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.IngestOne(alerts.Alert{ID: fmt.Sprintf("push-%d", i), CreatedAt: t0})
			}
		}(w)
	}
	for g := 1; g <= 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			batch := Batch{Generation: uint64(g)}
			for i := 0; i < 50; i++ {
				batch.Alerts = append(batch.Alerts, alerts.Alert{ID: fmt.Sprintf("poll-%d", i), CreatedAt: t0})
			}
			s.IngestBatch(batch)
		}(g)
	}
	for r := 0; r < 2; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				for _, a := range s.List() {
					_ = a.Title
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, s.Len())
	assert.Len(t, s.Delta(), 100)
}

func TestStore_ListWhileMerging(t *testing.T) {
	s := NewStore(nil)
	s.IngestBatch(Batch{Generation: 1, Alerts: []alerts.Alert{
		{ID: "a", CreatedAt: t0}, {ID: "b", CreatedAt: t0},
	}})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for g := 2; g < 200; g++ {
			acked := g%2 == 0
			s.IngestBatch(Batch{Generation: uint64(g), Alerts: []alerts.Alert{
				{ID: "a", CreatedAt: t0, Title: fmt.Sprintf("a-%d", g), Acknowledged: &acked},
				{ID: "b", CreatedAt: t0, Title: fmt.Sprintf("b-%d", g)},
			}})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			list := s.List()
			assert.Len(t, list, 2)
		}
	}()
	wg.Wait()

	a, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a-199", a.Title)
}
