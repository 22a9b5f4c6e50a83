package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// Remote delivers one queued item to the backend.
type Remote interface {
	Send(ctx context.Context, token string, item Item) error
}

// TokenSource supplies the bearer credential for a sync pass. A failure
// here aborts the whole pass without counting an attempt on any item.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Store is the persistence port for queue state. The queue has no
// knowledge of the storage medium behind it.
type Store interface {
	Save(ctx context.Context, data []byte) error
	Load(ctx context.Context) ([]byte, error)
}

// Queue drives delivery of committed domain mutations to the remote
// endpoint with exponential backoff, tolerant of offline periods.
type Queue struct {
	mu        sync.Mutex
	cfg       Config
	remote    Remote
	tokens    TokenSource
	store     Store
	items     []Item
	failed    []Item
	online    bool
	syncing   bool
	lastSync  time.Time
	listeners []Listener
	done      chan struct{}
	now       func() time.Time
}

func NewQueue(cfg Config, remote Remote, tokens TokenSource, store Store) *Queue {
	return &Queue{
		cfg:    cfg,
		remote: remote,
		tokens: tokens,
		store:  store,
		now:    time.Now,
	}
}

func (q *Queue) Subscribe(l Listener) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.listeners = append(q.listeners, l)
}

func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.statusLocked()
}

func (q *Queue) statusLocked() Status {
	return Status{
		Online:   q.online,
		Syncing:  q.syncing,
		Pending:  len(q.items),
		Failed:   len(q.failed),
		LastSync: q.lastSync,
	}
}

// notify pushes the current status to every listener, synchronously.
func (q *Queue) notify() {
	q.mu.Lock()
	status := q.statusLocked()
	listeners := append([]Listener(nil), q.listeners...)
	q.mu.Unlock()

	for _, l := range listeners {
		l(status)
	}
}

type queueState struct {
	Items  []Item `json:"items"`
	Failed []Item `json:"failed"`
}

func (q *Queue) persist(ctx context.Context) {
	q.mu.Lock()
	state := queueState{Items: q.items, Failed: q.failed}
	store := q.store
	q.mu.Unlock()

	if store == nil {
		return
	}
	data, err := json.Marshal(state)
	if err != nil {
		log.Printf("sync queue marshal error: %v", err)
		return
	}
	if err := store.Save(ctx, data); err != nil {
		log.Printf("sync queue persist error: %v", err)
	}
}

// Restore loads previously persisted queue state, replacing the current
// contents.
func (q *Queue) Restore(ctx context.Context) error {
	if q.store == nil {
		return nil
	}
	data, err := q.store.Load(ctx)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	var state queueState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}

	q.mu.Lock()
	q.items = state.Items
	q.failed = state.Failed
	q.mu.Unlock()
	q.notify()
	return nil
}

// Enqueue appends a mutation and, when online and idle, starts a sync
// pass immediately.
func (q *Queue) Enqueue(ctx context.Context, kind Kind, op Op, entityID string, payload json.RawMessage) Item {
	q.mu.Lock()
	item := Item{
		ID:        newItemID(entityID, q.now()),
		Kind:      kind,
		Op:        op,
		EntityID:  entityID,
		Payload:   payload,
		CreatedAt: q.now(),
	}
	q.items = append(q.items, item)
	kick := q.online && !q.syncing
	q.mu.Unlock()

	q.persist(ctx)
	q.notify()

	if kick {
		if err := q.SyncNow(ctx); err != nil && !errors.Is(err, ErrSyncInFlight) {
			log.Printf("sync after enqueue: %v", err)
		}
	}
	return item
}

// SetOnline records connectivity. Coming online with pending work and no
// pass in flight triggers an immediate pass.
func (q *Queue) SetOnline(ctx context.Context, online bool) {
	q.mu.Lock()
	wasOnline := q.online
	q.online = online
	kick := online && !wasOnline && len(q.items) > 0 && !q.syncing
	q.mu.Unlock()

	q.notify()
	if kick {
		if err := q.SyncNow(ctx); err != nil && !errors.Is(err, ErrSyncInFlight) {
			log.Printf("sync after reconnect: %v", err)
		}
	}
}

// SyncNow runs one delivery pass over the eligible items. At most one
// pass runs at a time; a concurrent call fails fast without touching the
// queue.
func (q *Queue) SyncNow(ctx context.Context) error {
	q.mu.Lock()
	if q.syncing {
		q.mu.Unlock()
		return ErrSyncInFlight
	}
	if q.tokens == nil {
		q.mu.Unlock()
		return ErrNoAuth
	}
	q.syncing = true
	pass := append([]Item(nil), q.items...)
	q.mu.Unlock()

	// The guard clears on every exit path so an error can never leave the
	// queue stuck syncing.
	defer func() {
		q.mu.Lock()
		q.syncing = false
		q.mu.Unlock()
		q.persist(ctx)
		q.notify()
	}()

	token, err := q.tokens.Token(ctx)
	if err != nil {
		// An unauthenticated pass is not an attempt; no item mutates.
		return fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}

	start := q.now()
	for _, item := range pass {
		if !q.eligible(item, start) {
			continue
		}
		if err := q.remote.Send(ctx, token, item); err != nil {
			q.recordFailure(item.ID, err)
			continue
		}
		q.remove(item.ID)
	}

	q.mu.Lock()
	q.lastSync = q.now()
	q.mu.Unlock()
	return nil
}

// eligible applies the backoff rule: never-attempted items always qualify;
// an item with retryCount n waits baseDelay x 2^n after its last attempt.
func (q *Queue) eligible(item Item, now time.Time) bool {
	if item.LastAttempt.IsZero() {
		return true
	}
	delay := q.cfg.BaseDelay * (1 << uint(item.RetryCount))
	return now.Sub(item.LastAttempt) >= delay
}

func (q *Queue) remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, it := range q.items {
		if it.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
}

func (q *Queue) recordFailure(id string, cause error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.items {
		if q.items[i].ID != id {
			continue
		}
		q.items[i].RetryCount++
		q.items[i].LastAttempt = q.now()
		if q.items[i].RetryCount >= q.cfg.MaxRetries {
			// Exhausted: surfaced through the failed count, retryable by
			// RetryFailed, never retried silently.
			q.failed = append(q.failed, q.items[i])
			q.items = append(q.items[:i], q.items[i+1:]...)
			log.Printf("sync item %s exhausted retries: %v", id, cause)
		}
		return
	}
}

// ClearFailed drops every item that exhausted its retries.
func (q *Queue) ClearFailed(ctx context.Context) {
	q.mu.Lock()
	q.failed = nil
	q.mu.Unlock()
	q.persist(ctx)
	q.notify()
}

// RetryFailed moves exhausted items back into the queue with a fresh
// retry budget and re-triggers a pass when online.
func (q *Queue) RetryFailed(ctx context.Context) {
	q.mu.Lock()
	for _, item := range q.failed {
		item.RetryCount = 0
		item.LastAttempt = time.Time{}
		q.items = append(q.items, item)
	}
	q.failed = nil
	kick := q.online && !q.syncing && len(q.items) > 0
	q.mu.Unlock()

	q.persist(ctx)
	q.notify()
	if kick {
		if err := q.SyncNow(ctx); err != nil && !errors.Is(err, ErrSyncInFlight) {
			log.Printf("sync after retry: %v", err)
		}
	}
}

// Start launches the periodic flush, a safety net independent of enqueue
// and connectivity events.
func (q *Queue) Start() {
	q.mu.Lock()
	if q.done != nil {
		close(q.done)
	}
	q.done = make(chan struct{})
	done := q.done
	q.mu.Unlock()

	go q.flushLoop(done)
}

func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.done != nil {
		close(q.done)
		q.done = nil
	}
}

func (q *Queue) flushLoop(done <-chan struct{}) {
	ticker := time.NewTicker(q.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			q.mu.Lock()
			kick := q.online && !q.syncing && len(q.items) > 0
			q.mu.Unlock()
			if !kick {
				continue
			}
			if err := q.SyncNow(context.Background()); err != nil && !errors.Is(err, ErrSyncInFlight) {
				log.Printf("periodic sync: %v", err)
			}
		}
	}
}
