package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nixlim/alert-top/internal/alerts"
	"github.com/nixlim/alert-top/internal/config"
	"github.com/nixlim/alert-top/internal/events"
	"github.com/nixlim/alert-top/internal/filter"
	"github.com/nixlim/alert-top/internal/reconcile"
	"github.com/nixlim/alert-top/internal/selection"
	"github.com/nixlim/alert-top/internal/state"
)

type ViewState int

const (
	ViewAlerts ViewState = iota
	ViewActivity
)

type tickMsg time.Time

// EventMsg carries an ingestion event into the update loop.
type EventMsg struct {
	Event reconcile.Event
}

// bulkDoneMsg reports a finished delete fan-out. single marks a one-alert
// delete started from the cursor.
type bulkDoneMsg struct {
	result selection.BulkResult
	single bool
}

// Emitter adapts a program's Send to the emit callback the ingestion
// sources use.
func Emitter(send func(tea.Msg)) reconcile.Emit {
	return func(ev reconcile.Event) { send(EventMsg{Event: ev}) }
}

// Refresher issues poll requests. *poll.Poller satisfies it.
type Refresher interface {
	Fetch(ctx context.Context, trigger reconcile.Trigger) reconcile.Event
	SetQuery(q filter.Query)
	SetLive(on bool)
	Live() bool
}

type Model struct {
	view     ViewState
	width    int
	height   int
	keys     KeyMap
	quitting bool

	cfg config.Config
	ctx context.Context

	store      *state.Store
	dispatcher *reconcile.Dispatcher
	selection  *selection.Coordinator
	refresher  Refresher
	clock      *alerts.InteractionClock
	activity   *events.RingBuffer
	now        func() time.Time

	criteria filter.Criteria
	visible  []alerts.Alert
	cursor   int

	filterForm FilterForm
	confirm    confirmState

	detailOverlay   bool
	detailContent   string
	detailTitle     string
	detailScrollPos int

	activityScrollPos int
	autoScroll        bool

	connected bool
	deleting  bool

	toast      string
	toastUntil time.Time
	toastHigh  bool

	statusMessage string
	statusErr     bool

	refreshRate time.Duration
	toastFor    time.Duration

	onShutdown func()
}

type ModelOption func(*Model)

// NewModel builds the dashboard. The store, dispatcher and selection
// coordinator must share the same store.
func NewModel(cfg config.Config, store *state.Store, dispatcher *reconcile.Dispatcher, sel *selection.Coordinator, opts ...ModelOption) Model {
	m := Model{
		view:        ViewAlerts,
		keys:        DefaultKeyMap(),
		cfg:         cfg,
		ctx:         context.Background(),
		store:       store,
		dispatcher:  dispatcher,
		selection:   sel,
		now:         time.Now,
		criteria:    filter.Clear(),
		filterForm:  NewFilterForm(),
		autoScroll:  true,
		refreshRate: time.Duration(cfg.Display.RefreshRateMS) * time.Millisecond,
		toastFor:    time.Duration(cfg.Display.ToastSeconds) * time.Second,
	}
	for _, opt := range opts {
		opt(&m)
	}
	if m.clock == nil {
		m.clock = alerts.NewInteractionClock(m.now)
	}
	if m.activity == nil {
		m.activity = events.NewRingBuffer(cfg.Display.ActivityBufferSize)
	}
	if m.refreshRate <= 0 {
		m.refreshRate = time.Second
	}
	m.refreshVisible()
	return m
}

func WithRefresher(r Refresher) ModelOption {
	return func(m *Model) { m.refresher = r }
}

func WithInteractionClock(c *alerts.InteractionClock) ModelOption {
	return func(m *Model) { m.clock = c }
}

func WithActivity(buf *events.RingBuffer) ModelOption {
	return func(m *Model) { m.activity = buf }
}

func WithContext(ctx context.Context) ModelOption {
	return func(m *Model) { m.ctx = ctx }
}

func WithClock(now func() time.Time) ModelOption {
	return func(m *Model) { m.now = now }
}

func WithStartView(v ViewState) ModelOption {
	return func(m *Model) { m.view = v }
}

func WithOnShutdown(fn func()) ModelOption {
	return func(m *Model) { m.onShutdown = fn }
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.tickCmd(),
		m.fetchCmd(reconcile.TriggerInitial),
	)
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchCmd runs one poll request off the loop and feeds the result back
// in as an EventMsg.
func (m Model) fetchCmd(trigger reconcile.Trigger) tea.Cmd {
	if m.refresher == nil {
		return nil
	}
	r, ctx := m.refresher, m.ctx
	return func() tea.Msg {
		return EventMsg{Event: r.Fetch(ctx, trigger)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		if m.toast != "" && !m.now().Before(m.toastUntil) {
			m.toast = ""
		}
		return m, m.tickCmd()

	case EventMsg:
		m.handleEvent(msg.Event)
		return m, nil

	case bulkDoneMsg:
		m.finishDelete(msg)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// handleEvent applies one ingestion event and updates everything derived
// from the canonical set.
func (m *Model) handleEvent(ev reconcile.Event) {
	if m.dispatcher == nil {
		return
	}
	out := m.dispatcher.Handle(ev)
	now := m.now()

	if out.Connected != nil {
		m.connected = *out.Connected
		var err error
		if cc, ok := ev.(reconcile.ConnectivityChanged); ok {
			err = cc.Err
		}
		m.activity.Add(events.FormatConnectivity(m.connected, err, now))
	}

	if len(out.Fresh) > 0 {
		source := alerts.SourcePoll
		if _, ok := ev.(reconcile.PushAlertReceived); ok {
			source = alerts.SourcePush
		}
		for _, a := range m.store.Lookup(out.Fresh) {
			m.activity.Add(events.FormatAlert(a, source, now))
		}
	}

	if b, ok := ev.(reconcile.PollBatchReceived); ok && out.Changed && b.Trigger.Surfaced() {
		m.activity.Add(events.FormatPoll(string(b.Trigger), len(b.Alerts), len(out.Fresh), now))
		if b.Trigger == reconcile.TriggerManual {
			m.setStatus(fmt.Sprintf("Refreshed: %d alerts", len(b.Alerts)), false)
		}
	}

	if out.Notification != nil {
		m.toast = out.Notification.Message
		m.toastHigh = out.Notification.HighRisk
		m.toastUntil = now.Add(m.toastFor)
		m.activity.Add(events.FormatNotification(*out.Notification))
	}

	if out.Err != nil {
		m.setStatus("Refresh failed: "+out.Err.Error(), true)
		m.activity.Add(events.FormatError("Refresh failed", out.Err, now))
	}

	if out.Changed {
		m.refreshVisible()
	}
}

// refreshVisible recomputes the filtered projection and keeps the
// selection a subset of it.
func (m *Model) refreshVisible() {
	if m.store == nil {
		m.visible = nil
		return
	}
	m.visible = filter.Apply(m.store.List(), m.criteria)
	if m.selection != nil {
		m.selection.Prune(filter.IDs(m.visible))
	}
	if m.cursor >= len(m.visible) {
		m.cursor = len(m.visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// setCriteria installs new filter criteria. A change to the server-side
// part of the query triggers a filters refresh.
func (m Model) setCriteria(next filter.Criteria) (tea.Model, tea.Cmd) {
	m.clock.Touch()
	prev := m.criteria
	m.criteria = next
	m.refreshVisible()

	if next.Query() == prev.Query() || m.refresher == nil {
		return m, nil
	}
	m.refresher.SetQuery(next.Query())
	return m, m.fetchCmd(reconcile.TriggerFilters)
}

func (m *Model) setStatus(msg string, isErr bool) {
	m.statusMessage = msg
	m.statusErr = isErr
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirm.active {
		return m.handleConfirmKey(msg)
	}
	if m.detailOverlay {
		return m.handleDetailOverlayKey(msg)
	}
	if m.filterForm.Active {
		return m.handleFilterFormKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		if m.onShutdown != nil {
			m.onShutdown()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Tab):
		if m.view == ViewAlerts {
			m.view = ViewActivity
		} else {
			m.view = ViewAlerts
		}
		return m, nil
	}

	if m.view == ViewActivity {
		return m.handleActivityKey(msg)
	}
	return m.handleAlertsKey(msg)
}

func (m Model) handleAlertsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		if a, ok := m.cursorAlert(); ok {
			m.detailOverlay = true
			m.detailTitle = "Alert Detail"
			m.detailContent = m.formatAlertDetail(a)
			m.detailScrollPos = 0
		}
		return m, nil

	case key.Matches(msg, m.keys.Toggle):
		if a, ok := m.cursorAlert(); ok && m.selection != nil {
			m.clock.Touch()
			m.selection.ToggleOne(a.ID)
		}
		return m, nil

	case key.Matches(msg, m.keys.ToggleAll):
		if m.selection != nil {
			m.clock.Touch()
			m.selection.ToggleAll(filter.IDs(m.visible))
		}
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		return m.initiateDelete(false)

	case key.Matches(msg, m.keys.BulkDelete):
		return m.initiateDelete(true)

	case key.Matches(msg, m.keys.Refresh):
		m.clock.Touch()
		m.setStatus("Refreshing...", false)
		return m, m.fetchCmd(reconcile.TriggerManual)

	case key.Matches(msg, m.keys.Live):
		if m.refresher == nil {
			return m, nil
		}
		m.clock.Touch()
		on := !m.refresher.Live()
		m.refresher.SetLive(on)
		if on {
			m.setStatus("Live polling on", false)
		} else {
			m.setStatus("Live polling paused", false)
		}
		return m, nil

	case key.Matches(msg, m.keys.Filter):
		m.clock.Touch()
		m.filterForm.Open(m.criteria)
		return m, nil

	case key.Matches(msg, m.keys.Severity):
		next := m.criteria
		next.Severity = nextSeverity(next.Severity)
		return m.setCriteria(next)

	case key.Matches(msg, m.keys.Unacked):
		next := m.criteria
		next.OnlyUnacknowledged = !next.OnlyUnacknowledged
		return m.setCriteria(next)

	case key.Matches(msg, m.keys.ClearFilter):
		next := filter.Clear()
		next.Location = m.criteria.Location
		m.setStatus("Filters cleared", false)
		return m.setCriteria(next)

	case key.Matches(msg, m.keys.Escape):
		m.statusMessage = ""
		m.toast = ""
		return m, nil
	}

	return m, nil
}

func (m Model) handleActivityKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.autoScroll = false
		if m.activityScrollPos > 0 {
			m.activityScrollPos--
		}
	case key.Matches(msg, m.keys.Down):
		m.autoScroll = false
		m.activityScrollPos++
	case key.Matches(msg, m.keys.Escape):
		m.autoScroll = true
		m.view = ViewAlerts
	}
	return m, nil
}

func (m Model) handleDetailOverlayKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Enter):
		m.detailOverlay = false
		m.detailContent = ""
		m.detailTitle = ""
		m.detailScrollPos = 0
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.detailScrollPos > 0 {
			m.detailScrollPos--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.detailScrollPos++
		return m, nil
	}

	return m, nil
}

func (m Model) cursorAlert() (alerts.Alert, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return alerts.Alert{}, false
	}
	return m.visible[m.cursor], true
}

func (m Model) formatAlertDetail(a alerts.Alert) string {
	var lines []string
	lines = append(lines, "ID:           "+a.ID)
	lines = append(lines, "Severity:     "+events.SeverityTag(a.Severity))
	lines = append(lines, "Title:        "+a.Title)
	lines = append(lines, "Created:      "+a.CreatedAt.In(m.location()).Format("2006-01-02 15:04:05"))
	if len(a.Keywords) > 0 {
		lines = append(lines, "Keywords:     "+strings.Join(a.Keywords, ", "))
	}
	lines = append(lines, "Acknowledged: "+triState(a.Acknowledged))
	lines = append(lines, "Resolved:     "+triState(a.Resolved))
	if m.store != nil {
		if src, at, ok := m.store.Origin(a.ID); ok {
			lines = append(lines, fmt.Sprintf("First seen:   %s via %s", at.In(m.location()).Format("15:04:05"), src))
		}
	}
	lines = append(lines, "")
	lines = append(lines, "Description:")
	if a.Description == "" {
		lines = append(lines, "(none)")
	} else {
		lines = append(lines, a.Description)
	}
	return strings.Join(lines, "\n")
}

func triState(b *bool) string {
	switch {
	case b == nil:
		return "unknown"
	case *b:
		return "yes"
	default:
		return "no"
	}
}

func (m Model) location() *time.Location {
	if m.criteria.Location != nil {
		return m.criteria.Location
	}
	return time.Local
}

// Visible returns the current filtered projection.
func (m Model) Visible() []alerts.Alert {
	return m.visible
}

func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var output string
	switch m.view {
	case ViewActivity:
		output = m.renderActivityView()
	default:
		output = m.renderDashboard()
	}

	if m.height > 0 {
		lines := strings.Split(output, "\n")
		if len(lines) > m.height {
			lines = lines[:m.height]
			output = strings.Join(lines, "\n")
		}
	}

	return output
}
