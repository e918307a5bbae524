package order

import (
	"context"
	"sort"
	"sync"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/craftline/shop-api/internal/domain/audit"
)

// ErrTerminalStatus is returned when a transition is attempted out of a
// delivered or cancelled order.
var ErrTerminalStatus = errors.New("order is in a terminal status")

// bulkConcurrency bounds the number of in-flight updates during a bulk
// transition.
const bulkConcurrency = 8

// Lifecycle drives orders through the fulfillment state machine on behalf of
// back-office operators. Every applied transition and every deletion produces
// exactly one audit entry.
type Lifecycle struct {
	store Store
	audit audit.Recorder
}

// NewLifecycle creates a Lifecycle over the given store and audit recorder.
func NewLifecycle(store Store, rec audit.Recorder) *Lifecycle {
	return &Lifecycle{store: store, audit: rec}
}

// SetStatus transitions one order to next and records the transition as a new
// fact. Operators may move an order to any status from any non-terminal
// state; forward-only ordering is not enforced.
func (l *Lifecycle) SetStatus(ctx context.Context, orderID string, next Status, actor string) error {
	if _, err := ParseStatus(string(next)); err != nil {
		return err
	}

	prev, err := l.store.UpdateStatus(ctx, orderID, next)
	if err != nil {
		return err
	}

	if err := l.audit.Record(ctx, audit.Entry{
		ActorUserID: actor,
		Action:      audit.ActionOrderUpdate,
		TargetType:  "order",
		TargetID:    orderID,
		Details: map[string]any{
			"old_status": string(prev),
			"new_status": string(next),
		},
	}); err != nil {
		return errors.Wrap(err, "record status change")
	}
	return nil
}

// BulkFailure is one order that could not be updated during a bulk transition.
type BulkFailure struct {
	OrderID string
	Err     string
}

// BulkResult reports the partial outcome of a bulk transition.
type BulkResult struct {
	Updated []string
	Failed  []BulkFailure
}

// BulkSetStatus applies next to every order in ids. One failing order never
// aborts the batch: all orders are processed and the result reports which
// succeeded and which failed. Each successful update appends its own audit
// entry, so M successes produce M entries.
func (l *Lifecycle) BulkSetStatus(ctx context.Context, ids []string, next Status, actor string) (BulkResult, error) {
	if _, err := ParseStatus(string(next)); err != nil {
		return BulkResult{}, err
	}

	var (
		mu  sync.Mutex
		res BulkResult
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			err := l.SetStatus(ctx, id, next, actor)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed = append(res.Failed, BulkFailure{OrderID: id, Err: err.Error()})
			} else {
				res.Updated = append(res.Updated, id)
			}
			return nil
		})
	}
	// Goroutines only record outcomes; Wait cannot fail.
	_ = g.Wait()

	sort.Strings(res.Updated)
	sort.Slice(res.Failed, func(i, j int) bool { return res.Failed[i].OrderID < res.Failed[j].OrderID })
	return res, nil
}

// Delete irreversibly removes an order. The audit entry is written first:
// a dangling log entry with no order is acceptable, an order deleted with no
// log is not.
func (l *Lifecycle) Delete(ctx context.Context, orderID, actor string) error {
	o, err := l.store.Get(ctx, orderID)
	if err != nil {
		return err
	}

	if err := l.audit.Record(ctx, audit.Entry{
		ActorUserID: actor,
		Action:      audit.ActionOrderDelete,
		TargetType:  "order",
		TargetID:    orderID,
		Details: map[string]any{
			"status": string(o.Status),
			"total":  o.TotalAmount.String(),
		},
	}); err != nil {
		return errors.Wrap(err, "record deletion")
	}

	return l.store.Delete(ctx, orderID)
}
