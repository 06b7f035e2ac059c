package alerts

import "go.uber.org/zap"

// notificationTitle builds the desktop notification title for a decision.
func notificationTitle(d Decision) string {
	if d.HighRisk {
		return "alert-top: " + LabelHighRisk
	}
	return "alert-top: " + LabelNew
}

// MultiNotifier fans a decision out to several notifiers.
type MultiNotifier []Notifier

// Notify forwards d to every non-nil notifier.
func (m MultiNotifier) Notify(d Decision) {
	for _, n := range m {
		if n != nil {
			n.Notify(d)
		}
	}
}

// LogNotifier records every decision in the structured log.
type LogNotifier struct {
	Logger *zap.Logger
}

// Notify logs d at info level.
func (l LogNotifier) Notify(d Decision) {
	if l.Logger == nil {
		return
	}
	l.Logger.Info("notification raised",
		zap.String("source", d.Source.String()),
		zap.String("label", d.Label),
		zap.Int("count", d.Count),
		zap.String("severity", string(d.Severity)),
	)
}
