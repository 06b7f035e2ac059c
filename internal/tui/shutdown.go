package tui

import (
	"context"
	"sync"
	"time"
)

// ShutdownManager stops the ingestion sources in order. It is safe to call
// Shutdown from both the quit key and the signal handler; only the first
// call does anything.
type ShutdownManager struct {
	// DrainTimeout bounds how long stopping the sources may take.
	DrainTimeout time.Duration

	// StopPoller clears the poll timer.
	StopPoller func()

	// StopPush closes the push subscription.
	StopPush func()

	// Cleanup runs last, e.g. flushing the logger.
	Cleanup func()

	once sync.Once
	err  error
}

// NewShutdownManager creates a ShutdownManager with a 5-second drain timeout.
func NewShutdownManager() *ShutdownManager {
	return &ShutdownManager{
		DrainTimeout: 5 * time.Second,
	}
}

// Shutdown stops polling first so no new batch is requested, then the push
// subscription, then runs cleanup. It returns context.DeadlineExceeded when
// the sources did not stop within DrainTimeout; cleanup still runs.
func (sm *ShutdownManager) Shutdown() error {
	sm.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), sm.DrainTimeout)
		defer cancel()

		done := make(chan struct{})
		go func() {
			defer close(done)
			if sm.StopPoller != nil {
				sm.StopPoller()
			}
			if sm.StopPush != nil {
				sm.StopPush()
			}
		}()

		select {
		case <-done:
		case <-ctx.Done():
			sm.err = ctx.Err()
		}

		if sm.Cleanup != nil {
			sm.Cleanup()
		}
	})
	return sm.err
}
