// Package filter derives the visible alert projection from the canonical
// set. Everything here is a pure function of its inputs.
package filter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nixlim/alert-top/internal/alerts"
)

// SeverityAll disables severity filtering.
const SeverityAll = "all"

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Criteria is an immutable set of filter settings.
type Criteria struct {
	// Severity is SeverityAll or one of the alert severities.
	Severity           string
	OnlyUnacknowledged bool
	Search             string

	// DateFrom and DateTo are inclusive calendar days (YYYY-MM-DD).
	DateFrom string
	DateTo   string

	// TimeFrom and TimeTo are inclusive minute-of-day bounds (HH:MM),
	// applied independent of date.
	TimeFrom string
	TimeTo   string

	// Location is the zone for date and time bounds. Nil means local time.
	Location *time.Location
}

// Clear returns criteria that let every alert through.
func Clear() Criteria {
	return Criteria{Severity: SeverityAll}
}

// IsZero reports whether the criteria filter nothing.
func (c Criteria) IsZero() bool {
	return c.severity() == "" && !c.OnlyUnacknowledged && strings.TrimSpace(c.Search) == "" &&
		c.DateFrom == "" && c.DateTo == "" && c.TimeFrom == "" && c.TimeTo == ""
}

func (c Criteria) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

// severity returns the normalized severity filter, or "" for all.
func (c Criteria) severity() alerts.Severity {
	s := strings.ToLower(strings.TrimSpace(c.Severity))
	if s == "" || s == SeverityAll {
		return ""
	}
	return alerts.ParseSeverity(s)
}

// Validate reports every malformed field. Apply treats malformed bounds as
// unset, so validation is advisory.
func (c Criteria) Validate() error {
	var errs []string
	s := strings.ToLower(strings.TrimSpace(c.Severity))
	if s != "" && s != SeverityAll && alerts.ParseSeverity(s) == alerts.SeverityUnknown {
		errs = append(errs, fmt.Sprintf("severity must be all, critical, high, medium or low, got %q", c.Severity))
	}
	for _, d := range []struct{ name, v string }{{"date from", c.DateFrom}, {"date to", c.DateTo}} {
		if _, _, err := parseDate(d.v, time.UTC); err != nil {
			errs = append(errs, fmt.Sprintf("%s must be YYYY-MM-DD, got %q", d.name, d.v))
		}
	}
	for _, tm := range []struct{ name, v string }{{"time from", c.TimeFrom}, {"time to", c.TimeTo}} {
		if _, _, err := parseMinute(tm.v); err != nil {
			errs = append(errs, fmt.Sprintf("%s must be HH:MM, got %q", tm.name, tm.v))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid filter: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Query is the server-side part of the criteria sent with poll requests.
type Query struct {
	// Severity is empty when all severities are requested.
	Severity           string
	OnlyUnacknowledged bool
}

// Query returns the poll request parameters for these criteria.
func (c Criteria) Query() Query {
	return Query{Severity: string(c.severity()), OnlyUnacknowledged: c.OnlyUnacknowledged}
}

// compiled holds parsed bounds so each alert is tested cheaply.
type compiled struct {
	search   string
	from     time.Time
	hasFrom  bool
	to       time.Time
	hasTo    bool
	minFrom  int
	hasMinFr bool
	minTo    int
	hasMinTo bool
	severity alerts.Severity
	unacked  bool
	loc      *time.Location
}

func (c Criteria) compile() compiled {
	loc := c.location()
	cc := compiled{
		search:   strings.ToLower(strings.TrimSpace(c.Search)),
		severity: c.severity(),
		unacked:  c.OnlyUnacknowledged,
		loc:      loc,
	}
	if day, ok, err := parseDate(c.DateFrom, loc); err == nil && ok {
		cc.from, cc.hasFrom = day, true
	}
	if day, ok, err := parseDate(c.DateTo, loc); err == nil && ok {
		cc.to, cc.hasTo = day.AddDate(0, 0, 1).Add(-time.Second), true
	}
	if m, ok, err := parseMinute(c.TimeFrom); err == nil && ok {
		cc.minFrom, cc.hasMinFr = m, true
	}
	if m, ok, err := parseMinute(c.TimeTo); err == nil && ok {
		cc.minTo, cc.hasMinTo = m, true
	}
	return cc
}

// Apply returns the alerts matching the criteria sorted by createdAt
// descending. The input is never modified; equal timestamps keep their
// input order.
func Apply(all []alerts.Alert, c Criteria) []alerts.Alert {
	cc := c.compile()
	out := make([]alerts.Alert, 0, len(all))
	for _, a := range all {
		if cc.matches(a) {
			out = append(out, a.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Matches reports whether a single alert passes the criteria.
func (c Criteria) Matches(a alerts.Alert) bool {
	return c.compile().matches(a)
}

func (cc compiled) matches(a alerts.Alert) bool {
	if cc.search != "" {
		text := strings.ToLower(a.Title + " " + a.Description + " " + strings.Join(a.Keywords, " "))
		if !strings.Contains(text, cc.search) {
			return false
		}
	}

	created := a.CreatedAt.In(cc.loc)
	if cc.hasFrom && created.Before(cc.from) {
		return false
	}
	if cc.hasTo && created.After(cc.to) {
		return false
	}

	minute := created.Hour()*60 + created.Minute()
	if cc.hasMinFr && minute < cc.minFrom {
		return false
	}
	if cc.hasMinTo && minute > cc.minTo {
		return false
	}

	if cc.severity != "" && a.Severity != cc.severity {
		return false
	}
	if cc.unacked && a.IsAcknowledged() {
		return false
	}
	return true
}

// IDs returns the ids of the given alerts in order.
func IDs(list []alerts.Alert) []string {
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.ID
	}
	return out
}

// parseDate parses a YYYY-MM-DD day at midnight in loc. An empty string is
// unset, not an error.
func parseDate(s string, loc *time.Location) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, nil
	}
	day, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, false, err
	}
	return day, true, nil
}

// parseMinute parses HH:MM into minutes since midnight. An empty string is
// unset, not an error.
func parseMinute(s string) (int, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}
	hh, mm, found := strings.Cut(s, ":")
	if !found {
		return 0, false, fmt.Errorf("missing ':' in %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, false, fmt.Errorf("bad hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, false, fmt.Errorf("bad minute in %q", s)
	}
	return h*60 + m, true, nil
}
