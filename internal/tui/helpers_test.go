package tui

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/nixlim/alert-top/internal/alerts"
	"github.com/nixlim/alert-top/internal/config"
	"github.com/nixlim/alert-top/internal/filter"
	"github.com/nixlim/alert-top/internal/reconcile"
	"github.com/nixlim/alert-top/internal/selection"
	"github.com/nixlim/alert-top/internal/state"
)

var errDelete = errors.New("HTTP 500")

type fakeRefresher struct {
	live     bool
	gen      uint64
	alerts   []alerts.Alert
	err      error
	triggers []reconcile.Trigger
	queries  []filter.Query
}

func (f *fakeRefresher) Fetch(_ context.Context, trigger reconcile.Trigger) reconcile.Event {
	f.gen++
	f.triggers = append(f.triggers, trigger)
	if f.err != nil {
		return reconcile.PollFailed{Generation: f.gen, Trigger: trigger, Err: f.err}
	}
	return reconcile.PollBatchReceived{Generation: f.gen, Trigger: trigger, Alerts: f.alerts}
}

func (f *fakeRefresher) SetQuery(q filter.Query) { f.queries = append(f.queries, q) }
func (f *fakeRefresher) SetLive(on bool)         { f.live = on }
func (f *fakeRefresher) Live() bool              { return f.live }

type fakeDeleter struct {
	mu   sync.Mutex
	fail map[string]bool
}

func (f *fakeDeleter) DeleteAlert(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[id] {
		return errDelete
	}
	return nil
}

type testEnv struct {
	model     Model
	store     *state.Store
	refresher *fakeRefresher
	deleter   *fakeDeleter
	clock     *alerts.InteractionClock
	now       time.Time
}

var baseTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		refresher: &fakeRefresher{live: true},
		deleter:   &fakeDeleter{fail: map[string]bool{}},
		now:       baseTime,
	}
	now := func() time.Time { return env.now }

	cfg := config.DefaultConfig()
	env.store = state.NewStore(now)
	env.clock = alerts.NewInteractionClock(now)
	gate := alerts.NewGate(env.clock, alerts.DefaultIdleThreshold, now)
	d := reconcile.NewDispatcher(env.store, gate, nil, nil)
	sel := selection.New(env.store, env.deleter, nil)

	env.model = NewModel(cfg, env.store, d, sel,
		WithRefresher(env.refresher),
		WithInteractionClock(env.clock),
		WithClock(now),
	)
	env.model.width = 140
	env.model.height = 40
	return env
}

func makeAlert(id string, sev alerts.Severity, title string, age time.Duration) alerts.Alert {
	return alerts.Alert{
		ID:        id,
		Severity:  sev,
		Title:     title,
		Keywords:  []string{},
		CreatedAt: baseTime.Add(-age),
	}
}

// seed loads alerts through a poll batch, as the initial fetch would.
func (e *testEnv) seed(list ...alerts.Alert) {
	e.send(EventMsg{Event: reconcile.PollBatchReceived{Generation: 1, Trigger: reconcile.TriggerInitial, Alerts: list}})
}

func (e *testEnv) send(msg tea.Msg) tea.Cmd {
	next, cmd := e.model.Update(msg)
	e.model = next.(Model)
	return cmd
}

// run executes cmd and feeds its message back into the model.
func (e *testEnv) run(t *testing.T, cmd tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd, "expected a command")
	e.send(cmd())
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func numbered(n int, sev alerts.Severity, title string) []alerts.Alert {
	out := make([]alerts.Alert, n)
	for i := range out {
		out[i] = makeAlert(fmt.Sprintf("id-%02d", i), sev, fmt.Sprintf("%s %d", title, i), time.Duration(i)*time.Minute)
	}
	return out
}
