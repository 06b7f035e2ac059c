package events

import (
	"time"

	"github.com/nixlim/alert-top/internal/alerts"
)

// Kind classifies an activity entry.
type Kind string

const (
	KindPush   Kind = "push"
	KindPoll   Kind = "poll"
	KindNotify Kind = "notify"
	KindSocket Kind = "socket"
	KindDelete Kind = "delete"
	KindError  Kind = "error"
)

// Entry is a display-ready line in the activity stream.
type Entry struct {
	Kind      Kind
	AlertID   string // empty when the entry is not about one alert
	Severity  alerts.Severity
	Formatted string
	Timestamp time.Time
	Success   *bool // nil if not applicable
}
