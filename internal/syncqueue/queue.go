// Package syncqueue keeps local mutations durable while offline and replays
// them in order once connectivity returns.
package syncqueue

import (
	"context"
	"encoding/json"
	"log"
	"sync/atomic"

	"github.com/tazhate/medremind/internal/domain"
	"github.com/tazhate/medremind/internal/storage"
)

// MaxRetries is the replay ceiling: an item failing this many times is
// dropped and surfaced as a loss instead of clogging the queue forever.
const MaxRetries = 3

// RemoteAPI dispatches one queued mutation against the backend.
type RemoteAPI interface {
	Do(ctx context.Context, action domain.SyncAction, entity string, payload json.RawMessage) error
}

type Queue struct {
	storage  *storage.Storage
	api      RemoteAPI
	online   func() bool
	onLoss   func(domain.SyncItem)
	draining atomic.Bool
}

func New(s *storage.Storage, api RemoteAPI) *Queue {
	return &Queue{storage: s, api: api}
}

// SetOnline installs the connectivity check consulted before draining.
// Without one the queue assumes it is online.
func (q *Queue) SetOnline(fn func() bool) {
	q.online = fn
}

// SetOnLoss installs the handler invoked once per item dropped at the retry
// ceiling, so the loss reaches the user instead of vanishing silently.
func (q *Queue) SetOnLoss(fn func(domain.SyncItem)) {
	q.onLoss = fn
}

// Enqueue appends the mutation durably and, when online, immediately attempts
// a drain.
func (q *Queue) Enqueue(ctx context.Context, action domain.SyncAction, entity string, payload json.RawMessage) error {
	item := &domain.SyncItem{
		Action:  action,
		Entity:  entity,
		Payload: payload,
	}
	if err := q.storage.EnqueueSyncItem(item); err != nil {
		return &domain.StorageError{Op: "enqueue sync item", Err: err}
	}

	if q.isOnline() {
		return q.Drain(ctx)
	}
	return nil
}

// Drain replays the queue in enqueue order, one attempt per item per pass. It
// is a no-op while another drain is in flight, while offline, or when the
// queue is empty; every item gets its attempt even when earlier ones fail.
func (q *Queue) Drain(ctx context.Context) error {
	if !q.draining.CompareAndSwap(false, true) {
		return nil
	}
	defer q.draining.Store(false)

	if !q.isOnline() {
		return nil
	}

	items, err := q.storage.ListSyncItems()
	if err != nil {
		return &domain.StorageError{Op: "list sync items", Err: err}
	}
	if len(items) == 0 {
		return nil
	}

	for _, item := range items {
		if err := q.api.Do(ctx, item.Action, item.Entity, item.Payload); err != nil {
			q.handleFailure(item, err)
			continue
		}
		if err := q.storage.DeleteSyncItem(item.ID); err != nil {
			log.Printf("Failed to remove synced item %d: %v", item.ID, err)
		}
	}
	return nil
}

func (q *Queue) handleFailure(item *domain.SyncItem, err error) {
	item.RetryCount++
	log.Printf("Sync of %s %s failed (attempt %d/%d): %v",
		item.Action, item.Entity, item.RetryCount, MaxRetries, err)

	if item.RetryCount < MaxRetries {
		if err := q.storage.UpdateSyncItemRetry(item.ID, item.RetryCount); err != nil {
			log.Printf("Failed to update retry count for item %d: %v", item.ID, err)
		}
		return
	}

	if err := q.storage.DeleteSyncItem(item.ID); err != nil {
		log.Printf("Failed to drop item %d: %v", item.ID, err)
		return
	}
	log.Printf("Dropping %s %s after %d failed attempts", item.Action, item.Entity, item.RetryCount)
	if q.onLoss != nil {
		q.onLoss(*item)
	}
}

func (q *Queue) isOnline() bool {
	return q.online == nil || q.online()
}
