// Package selection tracks the multi-select set over the visible alert list
// and deletes alerts against a backend that only offers single-item delete.
package selection

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nixlim/alert-top/internal/state"
)

// ErrNoSelection is returned by DeleteSelected when nothing is selected.
var ErrNoSelection = errors.New("no alerts selected")

// Deleter deletes one alert. *backend.Client satisfies it.
type Deleter interface {
	DeleteAlert(ctx context.Context, id string) error
}

// BulkResult maps every id of a bulk delete to its outcome. A nil error
// means the backend confirmed the delete.
type BulkResult struct {
	IDs      []string
	Outcomes map[string]error
}

// Succeeded returns the ids whose delete was confirmed, in request order.
func (r BulkResult) Succeeded() []string {
	var out []string
	for _, id := range r.IDs {
		if r.Outcomes[id] == nil {
			out = append(out, id)
		}
	}
	return out
}

// Failed returns the ids whose delete failed, in request order.
func (r BulkResult) Failed() []string {
	var out []string
	for _, id := range r.IDs {
		if r.Outcomes[id] != nil {
			out = append(out, id)
		}
	}
	return out
}

// BulkError aggregates the failures of one bulk delete.
type BulkError struct {
	Failed []string
	Total  int
	errs   *multierror.Error
}

func (e *BulkError) Error() string {
	return fmt.Sprintf("failed to delete %d of %d alerts: %s",
		len(e.Failed), e.Total, strings.Join(e.messages(), "; "))
}

func (e *BulkError) messages() []string {
	out := make([]string, 0, len(e.errs.Errors))
	for _, err := range e.errs.Errors {
		out = append(out, err.Error())
	}
	return out
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *BulkError) Unwrap() []error {
	return e.errs.WrappedErrors()
}

// Coordinator owns the selection set. It is the only component besides the
// ingestion path that mutates the store. All methods are safe for
// concurrent use.
type Coordinator struct {
	store   *state.Store
	deleter Deleter
	logger  *zap.Logger

	mu       sync.RWMutex
	selected map[string]struct{}
}

// New creates a coordinator.
func New(store *state.Store, deleter Deleter, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		store:    store,
		deleter:  deleter,
		logger:   logger,
		selected: make(map[string]struct{}),
	}
}

// ToggleOne flips the selection of id and reports whether it is now
// selected.
func (c *Coordinator) ToggleOne(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.selected[id]; ok {
		delete(c.selected, id)
		return false
	}
	c.selected[id] = struct{}{}
	return true
}

// ToggleAll clears the selection when every visible id is already
// selected, and otherwise selects exactly the visible ids. Alerts hidden by
// the active filter are never selected.
func (c *Coordinator) ToggleAll(visibleIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	all := len(visibleIDs) > 0
	for _, id := range visibleIDs {
		if _, ok := c.selected[id]; !ok {
			all = false
			break
		}
	}

	c.selected = make(map[string]struct{}, len(visibleIDs))
	if all {
		return
	}
	for _, id := range visibleIDs {
		c.selected[id] = struct{}{}
	}
}

// Prune drops selected ids that are no longer visible.
func (c *Coordinator) Prune(visibleIDs []string) {
	visible := make(map[string]struct{}, len(visibleIDs))
	for _, id := range visibleIDs {
		visible[id] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.selected {
		if _, ok := visible[id]; !ok {
			delete(c.selected, id)
		}
	}
}

// Clear empties the selection.
func (c *Coordinator) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = make(map[string]struct{})
}

// Selected returns the selected ids in sorted order.
func (c *Coordinator) Selected() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.selected))
	for id := range c.selected {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of selected ids.
func (c *Coordinator) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.selected)
}

// IsSelected reports whether id is selected.
func (c *Coordinator) IsSelected(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.selected[id]
	return ok
}

// DeleteOne deletes a single alert. On success it leaves the store and the
// selection; on failure nothing changes.
func (c *Coordinator) DeleteOne(ctx context.Context, id string) error {
	if err := c.deleter.DeleteAlert(ctx, id); err != nil {
		c.logger.Warn("delete failed", zap.String("id", id), zap.Error(err))
		return err
	}
	c.forget([]string{id})
	return nil
}

// Fanout sends one delete per id concurrently and waits for all of them.
// There is no concurrency limit and no retry. It does not touch the store
// or the selection, so it may run off the UI loop.
func (c *Coordinator) Fanout(ctx context.Context, ids []string) BulkResult {
	res := BulkResult{
		IDs:      append([]string(nil), ids...),
		Outcomes: make(map[string]error, len(ids)),
	}
	var mu sync.Mutex
	var g errgroup.Group
	for _, id := range res.IDs {
		g.Go(func() error {
			err := c.deleter.DeleteAlert(ctx, id)
			mu.Lock()
			res.Outcomes[id] = err
			mu.Unlock()
			// Failures are collected per id; returning nil keeps the
			// remaining requests running.
			return nil
		})
	}
	_ = g.Wait()
	return res
}

// ApplyBulk removes the confirmed ids from the store and the selection in
// one step. Failed ids stay in both. It returns a single *BulkError when
// any delete failed.
func (c *Coordinator) ApplyBulk(res BulkResult) error {
	c.forget(res.Succeeded())

	failed := res.Failed()
	if len(failed) == 0 {
		return nil
	}
	var merr *multierror.Error
	for _, id := range failed {
		merr = multierror.Append(merr, errors.Wrapf(res.Outcomes[id], "alert %s", id))
	}
	c.logger.Warn("bulk delete partially failed",
		zap.Int("failed", len(failed)), zap.Int("total", len(res.IDs)))
	return &BulkError{Failed: failed, Total: len(res.IDs), errs: merr}
}

// DeleteSelected deletes every selected alert. It returns ErrNoSelection
// when the selection is empty.
func (c *Coordinator) DeleteSelected(ctx context.Context) (BulkResult, error) {
	ids := c.Selected()
	if len(ids) == 0 {
		return BulkResult{}, ErrNoSelection
	}
	res := c.Fanout(ctx, ids)
	return res, c.ApplyBulk(res)
}

func (c *Coordinator) forget(ids []string) {
	if len(ids) == 0 {
		return
	}
	c.store.Remove(ids...)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.selected, id)
	}
}
