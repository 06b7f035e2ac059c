//go:build linux

package alerts

import (
	"os/exec"

	"go.uber.org/zap"
)

// NotifySendNotifier sends Linux desktop notifications via notify-send.
// Notifications are sent in a non-blocking goroutine so the event loop
// never stalls on slow notification delivery.
type NotifySendNotifier struct {
	// enabled controls whether notifications are actually sent.
	// When false, Notify is a no-op.
	enabled bool
	logger  *zap.Logger
}

// NewNotifySendNotifier creates a new Linux notification sender.
// If enabled is false, notifications are silently dropped.
func NewNotifySendNotifier(enabled bool, logger *zap.Logger) *NotifySendNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotifySendNotifier{enabled: enabled, logger: logger}
}

// NewPlatformNotifier creates the platform-appropriate notifier for Linux.
func NewPlatformNotifier(enabled bool, logger *zap.Logger) Notifier {
	return NewNotifySendNotifier(enabled, logger)
}

// Notify sends a Linux desktop notification for the given decision.
// The call returns immediately; notify-send runs in a background goroutine.
func (n *NotifySendNotifier) Notify(d Decision) {
	if !n.enabled {
		return
	}

	title := notificationTitle(d)
	body := d.Message

	urgency := "normal"
	if d.HighRisk {
		urgency = "critical"
	}

	go func() {
		if err := sendNotifySend(title, body, urgency); err != nil {
			n.logger.Warn("failed to send Linux notification", zap.Error(err))
		}
	}()
}

// sendNotifySend executes notify-send to display a desktop notification.
func sendNotifySend(title, body, urgency string) error {
	cmd := exec.Command("notify-send", "--urgency", urgency, "--app-name", "alert-top", title, body)
	return cmd.Run()
}
