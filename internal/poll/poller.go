// Package poll fetches the full alert collection on an interval and on
// demand. Every request carries a generation so late responses can be
// recognised as stale downstream.
package poll

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/nixlim/alert-top/internal/backend"
	"github.com/nixlim/alert-top/internal/filter"
	"github.com/nixlim/alert-top/internal/reconcile"
)

// DefaultInterval is used when the configured interval is not positive.
const DefaultInterval = 15 * time.Second

// Fetcher lists alerts. *backend.Client satisfies it.
type Fetcher interface {
	ListAlerts(ctx context.Context, q filter.Query) (backend.Listing, error)
}

// Poller issues poll requests. Fetch may be called from any goroutine.
type Poller struct {
	fetcher  Fetcher
	interval time.Duration
	logger   *zap.Logger

	generation atomic.Uint64
	live       atomic.Bool

	qmu   sync.RWMutex
	query filter.Query

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	wake   chan struct{}
}

// New creates a poller. live sets whether background polling starts enabled.
func New(fetcher Fetcher, interval time.Duration, live bool, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Poller{
		fetcher:  fetcher,
		interval: interval,
		logger:   logger,
		wake:     make(chan struct{}, 1),
	}
	p.live.Store(live)
	return p
}

// Interval returns the background polling interval.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// SetQuery sets the server-side filter used by subsequent requests.
func (p *Poller) SetQuery(q filter.Query) {
	p.qmu.Lock()
	defer p.qmu.Unlock()
	p.query = q
}

// Query returns the current server-side filter.
func (p *Poller) Query() filter.Query {
	p.qmu.RLock()
	defer p.qmu.RUnlock()
	return p.query
}

// Live reports whether background polling is enabled.
func (p *Poller) Live() bool {
	return p.live.Load()
}

// SetLive enables or disables background polling. Turning it on restarts
// the interval from now.
func (p *Poller) SetLive(on bool) {
	if p.live.Swap(on) == on {
		return
	}
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Generation returns the generation of the most recently issued request.
func (p *Poller) Generation() uint64 {
	return p.generation.Load()
}

// Fetch issues one request and returns the resulting event: either
// PollBatchReceived or PollFailed. The generation is taken before the
// request is sent.
func (p *Poller) Fetch(ctx context.Context, trigger reconcile.Trigger) reconcile.Event {
	gen := p.generation.Add(1)
	q := p.Query()

	listing, err := p.fetcher.ListAlerts(ctx, q)
	if err != nil {
		return reconcile.PollFailed{Generation: gen, Trigger: trigger, Err: err}
	}
	return reconcile.PollBatchReceived{
		Generation: gen,
		Trigger:    trigger,
		Alerts:     listing.Alerts,
		Dropped:    listing.Dropped,
	}
}

// Start runs background polling until ctx is cancelled or Stop is called.
// The first tick fires one interval after Start; the initial fetch is the
// caller's to issue. Calling Start twice is a no-op.
func (p *Poller) Start(ctx context.Context, emit reconcile.Emit) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.loop(ctx, emit, p.done)
}

// Stop clears the timer and waits for an in-flight tick to finish. No event
// is emitted after Stop returns.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *Poller) loop(ctx context.Context, emit reconcile.Emit, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
			ticker.Reset(p.interval)
		case <-ticker.C:
			if !p.live.Load() {
				continue
			}
			ev := p.Fetch(ctx, reconcile.TriggerAuto)
			if ctx.Err() != nil {
				return
			}
			if f, ok := ev.(reconcile.PollFailed); ok {
				p.logger.Debug("poll tick failed", zap.Error(f.Err))
			}
			emit(ev)
		}
	}
}
