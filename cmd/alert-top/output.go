package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/nixlim/alert-top/internal/alerts"
	"github.com/nixlim/alert-top/internal/events"
	"github.com/nixlim/alert-top/internal/reconcile"
)

var (
	colorCritical = color.New(color.FgRed, color.Bold).SprintFunc()
	colorHigh     = color.New(color.FgRed).SprintFunc()
	colorMedium   = color.New(color.FgYellow).SprintFunc()
	colorLow      = color.New(color.FgGreen).SprintFunc()
	colorDim      = color.New(color.FgHiBlack).SprintFunc()
	colorOK       = color.New(color.FgGreen).SprintFunc()
	colorErr      = color.New(color.FgRed).SprintFunc()
	colorNotify   = color.New(color.FgMagenta, color.Bold).SprintFunc()
)

const tableTimeLayout = "2006-01-02 15:04:05"

// maxTableTitle keeps table rows on one line in a normal terminal.
const maxTableTitle = 60

func colorSeverity(s alerts.Severity) string {
	tag := strings.ToUpper(string(s))
	switch s {
	case alerts.SeverityCritical:
		return colorCritical(tag)
	case alerts.SeverityHigh:
		return colorHigh(tag)
	case alerts.SeverityMedium:
		return colorMedium(tag)
	case alerts.SeverityLow:
		return colorLow(tag)
	default:
		return colorDim(tag)
	}
}

func flagCell(b *bool) string {
	switch {
	case b == nil:
		return "-"
	case *b:
		return "yes"
	default:
		return "no"
	}
}

// alertRows formats alerts as table rows in the order given.
func alertRows(list []alerts.Alert, loc *time.Location) [][]string {
	rows := make([][]string, 0, len(list))
	for _, a := range list {
		title := a.Title
		if r := []rune(title); len(r) > maxTableTitle {
			title = string(r[:maxTableTitle-3]) + "..."
		}
		rows = append(rows, []string{
			a.ID,
			a.CreatedAt.In(loc).Format(tableTimeLayout),
			colorSeverity(a.Severity),
			title,
			flagCell(a.Acknowledged),
			flagCell(a.Resolved),
		})
	}
	return rows
}

func renderAlertTable(w io.Writer, list []alerts.Alert, loc *time.Location) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Created", "Severity", "Title", "Ack", "Resolved"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.AppendBulk(alertRows(list, loc))
	table.Render()
}

// printEntry writes one activity entry as a timestamped line.
func printEntry(w io.Writer, e events.Entry) {
	ts := colorDim(e.Timestamp.Format("15:04:05"))
	msg := e.Formatted
	switch {
	case e.Kind == events.KindNotify:
		msg = colorNotify(msg)
	case e.Kind == events.KindError || (e.Success != nil && !*e.Success):
		msg = colorErr(msg)
	case e.Success != nil && *e.Success:
		msg = colorOK(msg)
	}
	fmt.Fprintf(w, "%s %s\n", ts, msg)
}

// outcomeEntries turns one dispatcher outcome into activity entries: the
// fresh alerts first, then connectivity or the poll summary, then the
// notification or error.
func outcomeEntries(ev reconcile.Event, out reconcile.Outcome, lookup func([]string) []alerts.Alert, at time.Time) []events.Entry {
	source := alerts.SourcePoll
	if _, ok := ev.(reconcile.PushAlertReceived); ok {
		source = alerts.SourcePush
	}

	var entries []events.Entry
	for _, a := range lookup(out.Fresh) {
		entries = append(entries, events.FormatAlert(a, source, at))
	}

	switch ev := ev.(type) {
	case reconcile.ConnectivityChanged:
		if out.Connected != nil {
			entries = append(entries, events.FormatConnectivity(*out.Connected, ev.Err, at))
		}
	case reconcile.PollBatchReceived:
		if out.Changed && ev.Trigger.Surfaced() {
			entries = append(entries, events.FormatPoll(string(ev.Trigger), len(ev.Alerts), len(out.Fresh), at))
		}
	}

	if out.Notification != nil {
		entries = append(entries, events.FormatNotification(*out.Notification))
	}
	if out.Err != nil {
		entries = append(entries, events.FormatError("refresh", out.Err, at))
	}
	return entries
}
