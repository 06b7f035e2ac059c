package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixlim/alert-top/internal/alerts"
	"github.com/nixlim/alert-top/internal/events"
	"github.com/nixlim/alert-top/internal/reconcile"
	"github.com/nixlim/alert-top/internal/selection"
	"github.com/nixlim/alert-top/internal/state"
)

func init() {
	color.NoColor = true
}

var created = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func ptr(b bool) *bool { return &b }

func TestAlertRows(t *testing.T) {
	list := []alerts.Alert{
		{ID: "a1", Severity: alerts.SeverityCritical, Title: "Ransomware", CreatedAt: created, Acknowledged: ptr(true)},
		{ID: "a2", Severity: alerts.SeverityUnknown, Title: strings.Repeat("x", 80), CreatedAt: created, Resolved: ptr(false)},
	}

	rows := alertRows(list, time.UTC)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"a1", "2024-05-01 09:30:00", "CRITICAL", "Ransomware", "yes", "-"}, rows[0])
	assert.Equal(t, "UNKNOWN", rows[1][2])
	assert.Len(t, []rune(rows[1][3]), maxTableTitle)
	assert.True(t, strings.HasSuffix(rows[1][3], "..."))
	assert.Equal(t, "no", rows[1][5])
}

func TestRenderAlertTable(t *testing.T) {
	var buf bytes.Buffer
	renderAlertTable(&buf, []alerts.Alert{
		{ID: "a1", Severity: alerts.SeverityHigh, Title: "Port scan", CreatedAt: created},
	}, time.UTC)

	out := buf.String()
	assert.Contains(t, out, "SEVERITY")
	assert.Contains(t, out, "Port scan")
	assert.Contains(t, out, "HIGH")
}

func TestPrintEntry(t *testing.T) {
	var buf bytes.Buffer
	printEntry(&buf, events.FormatDelete(3, 1, created))
	assert.Equal(t, "09:30:00 Deleted 2 of 3 alerts (1 failed)\n", buf.String())
}

func TestOutcomeEntries(t *testing.T) {
	known := map[string]alerts.Alert{
		"p1": {ID: "p1", Severity: alerts.SeverityHigh, Title: "Brute force"},
	}
	lookup := func(ids []string) []alerts.Alert {
		var out []alerts.Alert
		for _, id := range ids {
			if a, ok := known[id]; ok {
				out = append(out, a)
			}
		}
		return out
	}

	t.Run("push with notification", func(t *testing.T) {
		d := alerts.Decision{Message: "High-risk security alerts detected: 1 new alert", At: created}
		out := reconcile.Outcome{Fresh: []string{"p1"}, Notification: &d, Changed: true}
		entries := outcomeEntries(reconcile.PushAlertReceived{Alert: known["p1"]}, out, lookup, created)
		require.Len(t, entries, 2)
		assert.Equal(t, events.KindPush, entries[0].Kind)
		assert.Equal(t, "[HIGH] Brute force (push)", entries[0].Formatted)
		assert.Equal(t, events.KindNotify, entries[1].Kind)
	})

	t.Run("socket offline keeps cause", func(t *testing.T) {
		down := false
		ev := reconcile.ConnectivityChanged{Connected: false, Err: errors.New("dial refused")}
		entries := outcomeEntries(ev, reconcile.Outcome{Connected: &down}, lookup, created)
		require.Len(t, entries, 1)
		assert.Equal(t, "Socket offline: dial refused", entries[0].Formatted)
	})

	t.Run("auto poll is quiet", func(t *testing.T) {
		ev := reconcile.PollBatchReceived{Trigger: reconcile.TriggerAuto}
		assert.Empty(t, outcomeEntries(ev, reconcile.Outcome{Changed: true}, lookup, created))
	})

	t.Run("manual poll summary", func(t *testing.T) {
		ev := reconcile.PollBatchReceived{Trigger: reconcile.TriggerManual, Alerts: []alerts.Alert{known["p1"]}}
		entries := outcomeEntries(ev, reconcile.Outcome{Changed: true, Fresh: []string{"p1"}}, lookup, created)
		require.Len(t, entries, 2)
		assert.Equal(t, "[HIGH] Brute force (poll)", entries[0].Formatted)
		assert.Equal(t, "Refresh (manual): 1 alerts, 1 new", entries[1].Formatted)
	})

	t.Run("surfaced failure", func(t *testing.T) {
		ev := reconcile.PollFailed{Trigger: reconcile.TriggerManual}
		entries := outcomeEntries(ev, reconcile.Outcome{Err: errors.New("boom")}, lookup, created)
		require.Len(t, entries, 1)
		assert.Equal(t, events.KindError, entries[0].Kind)
		assert.Equal(t, "refresh: boom", entries[0].Formatted)
	})
}

type fakeDeleter struct {
	mu   sync.Mutex
	fail map[string]error
	seen []string
}

func (f *fakeDeleter) DeleteAlert(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, id)
	return f.fail[id]
}

func TestDeleteIDs_Single(t *testing.T) {
	del := &fakeDeleter{}
	sel := selection.New(state.NewStore(nil), del, nil)

	var buf bytes.Buffer
	require.NoError(t, deleteIDs(context.Background(), sel, []string{"a1"}, &buf))
	assert.Equal(t, "OK a1\n", buf.String())
	assert.Equal(t, []string{"a1"}, del.seen)
}

func TestDeleteIDs_PartialFailure(t *testing.T) {
	del := &fakeDeleter{fail: map[string]error{"b": errors.New("HTTP 500")}}
	sel := selection.New(state.NewStore(nil), del, nil)

	var buf bytes.Buffer
	err := deleteIDs(context.Background(), sel, []string{"a", "b", "c"}, &buf)
	require.Error(t, err)
	assert.Equal(t, "1 of 3 deletes failed", err.Error())

	out := buf.String()
	assert.Contains(t, out, "OK a\n")
	assert.Contains(t, out, "FAIL b: HTTP 500\n")
	assert.Contains(t, out, "OK c\n")
	assert.Contains(t, out, "Deleted 2 of 3 alerts (1 failed)")
	assert.Equal(t, []string{"b"}, sel.Selected())
}

type blockingFetcher struct {
	release chan struct{}
}

func (b blockingFetcher) Fetch(ctx context.Context, trigger reconcile.Trigger) reconcile.Event {
	<-b.release
	return reconcile.PollBatchReceived{Generation: 1, Trigger: trigger}
}

func TestFetchInitial_DoesNotBlockCaller(t *testing.T) {
	f := blockingFetcher{release: make(chan struct{})}
	got := make(chan reconcile.Event, 1)

	returned := make(chan struct{})
	go func() {
		fetchInitial(context.Background(), f, func(ev reconcile.Event) { got <- ev })
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("fetchInitial blocked on the request")
	}

	close(f.release)
	select {
	case ev := <-got:
		batch, ok := ev.(reconcile.PollBatchReceived)
		require.True(t, ok)
		assert.Equal(t, reconcile.TriggerInitial, batch.Trigger)
	case <-time.After(2 * time.Second):
		t.Fatal("initial batch was never emitted")
	}
}
