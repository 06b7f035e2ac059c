package alerts

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultIdleThreshold is how long the user must be inactive before
// poll-discovered alerts may interrupt them.
const DefaultIdleThreshold = 8 * time.Second

const (
	LabelHighRisk = "High-risk security alerts detected"
	LabelNew      = "New alerts received"
)

// maxToastTitle is the longest title shown in a live alert toast.
const maxToastTitle = 80

// InteractionClock records the instant of the last user interaction.
// Filter edits, selection changes and manual refreshes call Touch.
type InteractionClock struct {
	mu   sync.RWMutex
	last time.Time
	now  func() time.Time
}

// NewInteractionClock returns a clock whose last interaction is now.
// A nil now function defaults to time.Now.
func NewInteractionClock(now func() time.Time) *InteractionClock {
	if now == nil {
		now = time.Now
	}
	return &InteractionClock{last: now(), now: now}
}

// Touch marks the current instant as the last user interaction.
func (c *InteractionClock) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = c.now()
}

// LastInteraction returns the instant of the last interaction.
func (c *InteractionClock) LastInteraction() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// Decision is a notification the gate decided to raise.
type Decision struct {
	Source  Source
	Label   string
	Message string
	Count   int

	// Severity is the most urgent severity in the delta.
	Severity Severity
	// HighRisk is true when any alert in the delta is critical or high.
	HighRisk bool
	At       time.Time
}

// Gate decides whether newly ingested alerts should interrupt the user.
type Gate struct {
	clock *InteractionClock
	idle  time.Duration
	now   func() time.Time
}

// NewGate creates a gate reading the given interaction clock. A
// non-positive idle threshold uses DefaultIdleThreshold.
func NewGate(clock *InteractionClock, idle time.Duration, now func() time.Time) *Gate {
	if idle <= 0 {
		idle = DefaultIdleThreshold
	}
	if now == nil {
		now = time.Now
	}
	return &Gate{clock: clock, idle: idle, now: now}
}

// IdleThreshold returns the configured idle threshold.
func (g *Gate) IdleThreshold() time.Duration {
	return g.idle
}

// Idle reports whether the user has been inactive for strictly longer than
// the idle threshold.
func (g *Gate) Idle() bool {
	return g.now().Sub(g.clock.LastInteraction()) > g.idle
}

// ShouldNotify evaluates a delta of newly ingested alerts. Push deltas
// always notify. Poll deltas notify only while the user is idle. An empty
// delta never notifies.
func (g *Gate) ShouldNotify(delta []Alert, source Source) (Decision, bool) {
	if len(delta) == 0 {
		return Decision{}, false
	}
	if source == SourcePoll && !g.Idle() {
		return Decision{}, false
	}

	d := Decision{
		Source:   source,
		Count:    len(delta),
		Severity: SeverityUnknown,
		At:       g.now(),
	}
	for _, a := range delta {
		if a.Severity.HighRisk() {
			d.HighRisk = true
		}
		if a.Severity.Rank() < d.Severity.Rank() {
			d.Severity = a.Severity
		}
	}

	d.Label = LabelNew
	if d.HighRisk {
		d.Label = LabelHighRisk
	}

	counted := fmt.Sprintf("%s: %s", d.Label, pluralAlerts(d.Count))
	if source == SourcePush {
		first := delta[0]
		d.Message = fmt.Sprintf("%s (live %s: %s)",
			counted, strings.ToUpper(string(first.Severity)), TruncateTitle(first.Title))
	} else {
		d.Message = counted
	}
	return d, true
}

func pluralAlerts(n int) string {
	if n == 1 {
		return "1 new alert"
	}
	return fmt.Sprintf("%d new alerts", n)
}

// TruncateTitle shortens a title for toast display.
func TruncateTitle(title string) string {
	r := []rune(title)
	if len(r) <= maxToastTitle {
		return title
	}
	return string(r[:maxToastTitle-3]) + "..."
}
