//go:build darwin

package alerts

import (
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// OSAScriptNotifier sends macOS system notifications via osascript.
// Notifications are sent in a non-blocking goroutine so the event loop
// never stalls on slow notification delivery.
type OSAScriptNotifier struct {
	// enabled controls whether notifications are actually sent.
	// When false, Notify is a no-op.
	enabled bool
	logger  *zap.Logger
}

// NewOSAScriptNotifier creates a new macOS notification sender.
// If enabled is false, notifications are silently dropped.
func NewOSAScriptNotifier(enabled bool, logger *zap.Logger) *OSAScriptNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OSAScriptNotifier{enabled: enabled, logger: logger}
}

// NewPlatformNotifier creates the platform-appropriate notifier for macOS.
func NewPlatformNotifier(enabled bool, logger *zap.Logger) Notifier {
	return NewOSAScriptNotifier(enabled, logger)
}

// Notify sends a macOS notification for the given decision.
func (n *OSAScriptNotifier) Notify(d Decision) {
	if !n.enabled {
		return
	}

	title := notificationTitle(d)
	subtitle := fmt.Sprintf("%s via %s", strings.ToUpper(string(d.Severity)), d.Source)
	message := d.Message

	go func() {
		if err := sendOSANotification(title, subtitle, message); err != nil {
			n.logger.Warn("failed to send macOS notification", zap.Error(err))
		}
	}()
}

// sendOSANotification executes osascript to display a macOS notification.
func sendOSANotification(title, subtitle, message string) error {
	// Escape double quotes in the message to prevent AppleScript injection.
	title = escapeAppleScript(title)
	subtitle = escapeAppleScript(subtitle)
	message = escapeAppleScript(message)

	script := fmt.Sprintf(
		`display notification "%s" with title "%s" subtitle "%s"`,
		message, title, subtitle,
	)

	cmd := exec.Command("osascript", "-e", script)
	return cmd.Run()
}

func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
