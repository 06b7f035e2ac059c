package alerts

import (
	"strings"
	"time"
)

// Severity is the normalized severity level of an alert.
type Severity string

// Alert severity constants. Anything the backend sends outside the first
// four is folded into SeverityUnknown.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityUnknown  Severity = "unknown"
)

// Severities lists the recognized severities from most to least urgent.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// ParseSeverity converts a wire value into a Severity. Matching is
// case-insensitive and ignores surrounding whitespace; unrecognized or empty
// values return SeverityUnknown.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return SeverityCritical
	case "high":
		return SeverityHigh
	case "medium":
		return SeverityMedium
	case "low":
		return SeverityLow
	default:
		return SeverityUnknown
	}
}

// HighRisk reports whether the severity is critical or high.
func (s Severity) HighRisk() bool {
	return s == SeverityCritical || s == SeverityHigh
}

// Rank orders severities for display; lower is more urgent.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

// Source identifies which ingestion path delivered an alert.
type Source int

const (
	SourcePush Source = iota
	SourcePoll
)

func (s Source) String() string {
	switch s {
	case SourcePush:
		return "push"
	case SourcePoll:
		return "poll"
	default:
		return "unknown"
	}
}

// DefaultTitle is shown for alerts that arrive without a title.
const DefaultTitle = "Security Alert"

// Field is a bit identifying an Alert field that may have been filled with
// a default during normalization.
type Field uint8

const (
	FieldSeverity Field = 1 << iota
	FieldTitle
	FieldDescription
	FieldKeywords
	FieldCreatedAt
)

// Alert is the canonical security alert record shared by both ingestion
// paths.
type Alert struct {
	ID          string
	Severity    Severity
	Title       string
	Description string
	Keywords    []string
	CreatedAt   time.Time

	// Acknowledged and Resolved are only carried by polled records. Nil
	// means the source did not say, which is different from false.
	Acknowledged *bool
	Resolved     *bool

	// defaulted marks fields the normalizer had to fill in. The zero value
	// means every field came from the wire.
	defaulted Field
}

// Carries reports whether f was present on the wire rather than defaulted.
func (a Alert) Carries(f Field) bool {
	return a.defaulted&f == 0
}

// IsAcknowledged reports whether the alert is known to be acknowledged.
func (a Alert) IsAcknowledged() bool {
	return a.Acknowledged != nil && *a.Acknowledged
}

// IsResolved reports whether the alert is known to be resolved.
func (a Alert) IsResolved() bool {
	return a.Resolved != nil && *a.Resolved
}

// MergeFrom overlays the fields carried by update onto a and returns the
// result. Defaulted fields and nil flags in update never overwrite a. The
// ID is never changed.
func (a Alert) MergeFrom(update Alert) Alert {
	merged := a
	if update.Carries(FieldSeverity) && update.Severity != "" {
		merged.Severity = update.Severity
		merged.defaulted &^= FieldSeverity
	}
	if update.Carries(FieldTitle) && update.Title != "" {
		merged.Title = update.Title
		merged.defaulted &^= FieldTitle
	}
	if update.Carries(FieldDescription) && update.Description != "" {
		merged.Description = update.Description
		merged.defaulted &^= FieldDescription
	}
	if update.Carries(FieldKeywords) && update.Keywords != nil {
		merged.Keywords = append([]string(nil), update.Keywords...)
		merged.defaulted &^= FieldKeywords
	}
	if update.Carries(FieldCreatedAt) && !update.CreatedAt.IsZero() {
		merged.CreatedAt = update.CreatedAt
		merged.defaulted &^= FieldCreatedAt
	}
	if update.Acknowledged != nil {
		v := *update.Acknowledged
		merged.Acknowledged = &v
	}
	if update.Resolved != nil {
		v := *update.Resolved
		merged.Resolved = &v
	}
	return merged
}

// Clone returns a deep copy so callers cannot mutate shared slices or flags.
func (a Alert) Clone() Alert {
	cp := a
	if a.Keywords != nil {
		cp.Keywords = append([]string(nil), a.Keywords...)
	}
	if a.Acknowledged != nil {
		v := *a.Acknowledged
		cp.Acknowledged = &v
	}
	if a.Resolved != nil {
		v := *a.Resolved
		cp.Resolved = &v
	}
	return cp
}

// Notifier delivers notification decisions to the user.
type Notifier interface {
	// Notify presents a decision. Implementations must be non-blocking.
	Notify(d Decision)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(d Decision)

// Notify calls f(d).
func (f NotifierFunc) Notify(d Decision) { f(d) }
