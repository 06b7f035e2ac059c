//go:build !linux && !darwin

package alerts

import "go.uber.org/zap"

// NewPlatformNotifier returns a no-op notifier on platforms without a
// supported desktop notification command.
func NewPlatformNotifier(enabled bool, logger *zap.Logger) Notifier {
	return NotifierFunc(func(Decision) {})
}
