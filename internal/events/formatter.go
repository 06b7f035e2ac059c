// Package events formats and buffers the activity stream shown next to the
// alert list: arrivals, notifications, connectivity and delete results.
package events

import (
	"fmt"
	"strings"
	"time"

	"github.com/nixlim/alert-top/internal/alerts"
)

// FormatAlert describes a newly ingested alert:
//
//	[HIGH] Port scan detected (push)
func FormatAlert(a alerts.Alert, source alerts.Source, at time.Time) Entry {
	kind := KindPoll
	if source == alerts.SourcePush {
		kind = KindPush
	}
	return Entry{
		Kind:      kind,
		AlertID:   a.ID,
		Severity:  a.Severity,
		Formatted: fmt.Sprintf("[%s] %s (%s)", SeverityTag(a.Severity), alerts.TruncateTitle(a.Title), source),
		Timestamp: stamp(at),
	}
}

// FormatNotification records a decision the gate raised.
func FormatNotification(d alerts.Decision) Entry {
	return Entry{
		Kind:      KindNotify,
		Severity:  d.Severity,
		Formatted: d.Message,
		Timestamp: stamp(d.At),
	}
}

// FormatConnectivity records the push channel going up or down.
func FormatConnectivity(connected bool, err error, at time.Time) Entry {
	e := Entry{Kind: KindSocket, Timestamp: stamp(at), Success: &connected}
	switch {
	case connected:
		e.Formatted = "Live socket connected"
	case err != nil:
		e.Formatted = "Socket offline: " + shorten(err.Error(), 80)
	default:
		e.Formatted = "Socket offline"
	}
	return e
}

// FormatPoll summarizes an applied poll batch.
func FormatPoll(trigger string, total, fresh int, at time.Time) Entry {
	ok := true
	return Entry{
		Kind:      KindPoll,
		Formatted: fmt.Sprintf("Refresh (%s): %d alerts, %d new", trigger, total, fresh),
		Timestamp: stamp(at),
		Success:   &ok,
	}
}

// FormatDelete summarizes a single or bulk delete.
//
//	Deleted 3 alerts
//	Deleted 2 of 3 alerts (1 failed)
func FormatDelete(requested, failed int, at time.Time) Entry {
	ok := failed == 0
	e := Entry{Kind: KindDelete, Timestamp: stamp(at), Success: &ok}
	deleted := requested - failed
	if failed == 0 {
		e.Formatted = "Deleted " + plural(deleted, "alert")
	} else {
		e.Formatted = fmt.Sprintf("Deleted %d of %s (%d failed)", deleted, plural(requested, "alert"), failed)
	}
	return e
}

// FormatError records a failure shown to the user.
func FormatError(action string, err error, at time.Time) Entry {
	ok := false
	msg := action
	if err != nil {
		msg = fmt.Sprintf("%s: %s", action, shorten(err.Error(), 120))
	}
	return Entry{Kind: KindError, Formatted: msg, Timestamp: stamp(at), Success: &ok}
}

// SeverityTag is the upper-case severity label used in list and log lines.
func SeverityTag(s alerts.Severity) string {
	if s == "" {
		s = alerts.SeverityUnknown
	}
	return strings.ToUpper(string(s))
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

// shorten truncates s to maxLen runes with an ellipsis.
func shorten(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
