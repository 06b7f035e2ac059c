package filter

import "github.com/nixlim/alert-top/internal/alerts"

// Counts tallies alerts per severity for the summary cards.
type Counts struct {
	Critical int
	High     int
	Medium   int
	Low      int
	Unknown  int
}

// Total returns the number of alerts counted.
func (c Counts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low + c.Unknown
}

// Of returns the count for a severity.
func (c Counts) Of(s alerts.Severity) int {
	switch s {
	case alerts.SeverityCritical:
		return c.Critical
	case alerts.SeverityHigh:
		return c.High
	case alerts.SeverityMedium:
		return c.Medium
	case alerts.SeverityLow:
		return c.Low
	default:
		return c.Unknown
	}
}

// CountBySeverity tallies the full canonical set, not a filtered view.
func CountBySeverity(all []alerts.Alert) Counts {
	var c Counts
	for _, a := range all {
		switch a.Severity {
		case alerts.SeverityCritical:
			c.Critical++
		case alerts.SeverityHigh:
			c.High++
		case alerts.SeverityMedium:
			c.Medium++
		case alerts.SeverityLow:
			c.Low++
		default:
			c.Unknown++
		}
	}
	return c
}
