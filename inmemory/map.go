// Package inmemory wraps the btree core with an asynchronous single-writer
// pipeline behind a map-like API. Callers enqueue writes and return
// immediately; one dedicated writer task drains the queue and applies whole
// batches under an exclusive lock, while readers traverse the tree holding
// the shared side of the same lock (the visibility gate).
package inmemory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/sharedcode/soi"
	"github.com/sharedcode/soi/btree"
)

// quiescePollInterval paces WaitQuiesced's backlog checks.
const quiescePollInterval = 5 * time.Millisecond

// Map is an ordered key/value map with point lookup, insertion and logical
// (tombstone) deletion. Reads are safe from any goroutine; writes are queued
// and applied by the map's writer task in FIFO order, so a write may not be
// visible immediately after the call that enqueued it (see Put).
type Map[TK btree.Ordered, TV any] struct {
	storeInfo *soi.StoreInfo
	btree     *btree.Btree[TK, TV]

	// gate is the visibility gate. The writer task holds the exclusive side
	// for the duration of one whole batch; readers hold the shared side for
	// the duration of one whole traversal, so no reader ever observes a
	// half-split tree.
	gate    sync.RWMutex
	version atomic.Uint64
	// applying is set while the writer owns the gate; WaitQuiesced polls it.
	applying atomic.Bool

	queueMutex sync.Mutex
	queue      []soi.KeyValuePair[TK, *TV]

	wake          chan struct{}
	stop          chan struct{}
	done          chan struct{}
	terminateOnce sync.Once

	fatalMutex sync.Mutex
	fatal      error
}

// NewMap creates a map and starts its writer task. Terminate must be called
// before discarding the map or the task leaks.
func NewMap[TK btree.Ordered, TV any](options soi.StoreOptions) (*Map[TK, TV], error) {
	si, err := soi.NewStoreInfo(options)
	if err != nil {
		return nil, err
	}
	b, err := btree.New[TK, TV](si, btree.NewNodeRepository[TK, TV](), nil)
	if err != nil {
		return nil, err
	}
	m := &Map[TK, TV]{
		storeInfo: si,
		btree:     b,
		wake:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go m.run()
	return m, nil
}

// Get returns the value stored at key. A tombstoned or missing key reads as
// absent. The traversal holds the read gate, so it blocks while a batch is
// being applied; there is no bound on that wait beyond the writer finishing.
func (m *Map[TK, TV]) Get(ctx context.Context, key TK) (TV, bool, error) {
	var zero TV
	m.gate.RLock()
	defer m.gate.RUnlock()
	item, err := m.btree.Lookup(ctx, key)
	if err != nil {
		return zero, false, err
	}
	if item == nil || item.Value == nil {
		return zero, false, nil
	}
	return *item.Value, true, nil
}

// ContainsKey reports whether key currently maps to a live value.
func (m *Map[TK, TV]) ContainsKey(ctx context.Context, key TK) (bool, error) {
	_, found, err := m.Get(ctx, key)
	return found, err
}

// ContainsValue is not supported by this index; it always returns an
// UnsupportedOperation error rather than a silently wrong answer.
func (m *Map[TK, TV]) ContainsValue(ctx context.Context, value TV) (bool, error) {
	return false, soi.Error{
		Code:     soi.UnsupportedOperation,
		Err:      fmt.Errorf("value-based containment search is not supported"),
		UserData: m.storeInfo.Name,
	}
}

// Put records a (key, value) write and returns the previously visible value.
// The write is enqueued, not applied: Put returns before the tree mutates,
// and the returned previous value is computed by a gated read that may not
// reflect still-queued writes for the same key. Duplicate keys resolve last
// write wins once applied.
func (m *Map[TK, TV]) Put(ctx context.Context, key TK, value TV) (TV, bool, error) {
	prev, found, err := m.Get(ctx, key)
	m.enqueue(soi.KeyValuePair[TK, *TV]{Key: key, Value: &value})
	return prev, found, err
}

// Remove logically deletes key by enqueuing a tombstone write through the
// same pipeline as Put, returning the previously visible value. Physical
// node restructuring is deliberately avoided; the slot stays allocated.
func (m *Map[TK, TV]) Remove(ctx context.Context, key TK) (TV, bool, error) {
	prev, found, err := m.Get(ctx, key)
	if err != nil || !found {
		return prev, false, err
	}
	m.enqueue(soi.KeyValuePair[TK, *TV]{Key: key, Value: nil})
	return prev, true, nil
}

// Size returns the advertised number of live keys. It reflects applied
// writes only; queued writes are not counted until their batch lands.
func (m *Map[TK, TV]) Size() int64 {
	m.gate.RLock()
	defer m.gate.RUnlock()
	return m.storeInfo.Count
}

// IsEmpty reports whether no live keys are visible.
func (m *Map[TK, TV]) IsEmpty() bool {
	return m.Size() == 0
}

// Clear drops the whole tree for bulk reclamation. The writer task keeps
// running; writes still queued when Clear acquires the gate will repopulate
// the fresh tree when their batch is applied.
func (m *Map[TK, TV]) Clear() {
	m.gate.Lock()
	defer m.gate.Unlock()
	m.btree.Clear()
	m.version.Add(1)
}

// Ascend walks live keys in ascending order via the leaf sibling chain,
// calling fn for each until it returns false. The whole walk holds the read
// gate, so it observes one consistent tree.
func (m *Map[TK, TV]) Ascend(ctx context.Context, fn func(key TK, value TV) bool) error {
	m.gate.RLock()
	defer m.gate.RUnlock()
	cursor, err := m.btree.First(ctx)
	if err != nil {
		return err
	}
	for cursor != nil {
		item, err := cursor.Current(ctx)
		if err != nil {
			return err
		}
		if item.Value != nil && !fn(item.Key, *item.Value) {
			return nil
		}
		ok, err := cursor.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
	return nil
}

// String renders the tree structure for diagnostics.
func (m *Map[TK, TV]) String() string {
	m.gate.RLock()
	defer m.gate.RUnlock()
	return m.btree.String()
}

// Version returns a counter that increases by one per applied batch (and per
// Clear). Callers can compare Versions around an operation to detect that
// structural change happened in between.
func (m *Map[TK, TV]) Version() uint64 {
	return m.version.Load()
}

// PendingWrites returns the number of queued, not yet applied writes.
func (m *Map[TK, TV]) PendingWrites() int {
	m.queueMutex.Lock()
	defer m.queueMutex.Unlock()
	return len(m.queue)
}

// WaitQuiesced blocks until every enqueued write has been applied, polling
// with constant backoff. It fails fast when the writer task has died, since
// backlog would then never drain, and respects ctx cancellation.
func (m *Map[TK, TV]) WaitQuiesced(ctx context.Context) error {
	backoff := retry.NewConstant(quiescePollInterval)
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := m.Err(); err != nil {
			return err
		}
		if m.PendingWrites() == 0 && !m.applying.Load() {
			return nil
		}
		return retry.RetryableError(fmt.Errorf("store %s has pending writes", m.storeInfo.Name))
	})
}

// Healthy reports whether the writer task is alive and has not recorded a
// fatal error. When false, enqueued writes are never applied; callers should
// check this rather than assume Put eventually lands.
func (m *Map[TK, TV]) Healthy() bool {
	select {
	case <-m.done:
		return false
	default:
		return m.Err() == nil
	}
}

// Err returns the fatal error that killed the writer task, or nil.
func (m *Map[TK, TV]) Err() error {
	m.fatalMutex.Lock()
	defer m.fatalMutex.Unlock()
	return m.fatal
}

// Terminate stops the writer task and blocks until it exits. The task first
// drains any remaining backlog as one final batch (drain-to-empty policy); a
// batch once started always runs to completion. Terminate is idempotent.
func (m *Map[TK, TV]) Terminate() {
	m.terminateOnce.Do(func() {
		close(m.stop)
	})
	<-m.done
}

func (m *Map[TK, TV]) enqueue(write soi.KeyValuePair[TK, *TV]) {
	m.queueMutex.Lock()
	m.queue = append(m.queue, write)
	m.queueMutex.Unlock()
	// Nudge the writer; an already-pending nudge is enough.
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Map[TK, TV]) setFatal(err error) {
	m.fatalMutex.Lock()
	defer m.fatalMutex.Unlock()
	if m.fatal == nil {
		m.fatal = err
	}
}
