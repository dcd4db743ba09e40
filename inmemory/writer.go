package inmemory

import (
	"context"
	"fmt"
	log "log/slog"
	"time"

	"github.com/sharedcode/soi"
)

// run is the map's writer task: the only goroutine that mutates the tree,
// for the map's entire lifetime. It waits on the queue with a bounded poll
// interval (a liveness/termination check, not a correctness mechanism) and
// applies everything queued as one batch per gate acquisition.
func (m *Map[TK, TV]) run() {
	defer close(m.done)
	log.Debug("writer task started", "store", m.storeInfo.Name)
	ticker := time.NewTicker(m.storeInfo.WriterPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			// Drain-to-empty: whatever is still queued is applied as one
			// final batch before the task exits.
			m.applyBatch()
			log.Debug("writer task stopped", "store", m.storeInfo.Name)
			return
		case <-m.wake:
			if !m.applyBatch() {
				return
			}
		case <-ticker.C:
			if !m.applyBatch() {
				return
			}
		}
	}
}

// applyBatch drains the queue and applies every pending write, in FIFO
// order, under one exclusive acquisition of the visibility gate. Writes that
// arrive while the batch is being applied are folded into it, amortizing the
// gate acquisition across the burst. Returns false when the batch died to a
// programming error; the error is recorded and the task must exit, leaving
// later enqueues unapplied (callers observe this via Healthy/Err).
func (m *Map[TK, TV]) applyBatch() (ok bool) {
	// applying is raised before the queue is snatched so WaitQuiesced never
	// observes an empty queue whose items are still being applied.
	m.applying.Store(true)
	defer m.applying.Store(false)
	batch := m.takeAll()
	if len(batch) == 0 {
		return true
	}
	m.gate.Lock()
	defer m.gate.Unlock()
	defer func() {
		if r := recover(); r != nil {
			m.setFatal(soi.Error{
				Code:     soi.WriterTerminated,
				Err:      fmt.Errorf("writer task died applying a batch: %v", r),
				UserData: m.storeInfo.Name,
			})
			log.Error("writer task died, store is no longer applying writes",
				"store", m.storeInfo.Name, "panic", r)
			ok = false
		}
	}()

	applied := 0
	for len(batch) > 0 {
		for _, write := range batch {
			if err := m.btree.Upsert(context.Background(), write.Key, write.Value); err != nil {
				m.setFatal(soi.Error{Code: soi.WriterTerminated, Err: err, UserData: m.storeInfo.Name})
				log.Error("writer task failed to apply a write, exiting",
					"store", m.storeInfo.Name, "error", err)
				return false
			}
			applied++
		}
		batch = m.takeAll()
	}
	version := m.version.Add(1)
	log.Debug("batch applied", "store", m.storeInfo.Name, "writes", applied, "version", version)
	return true
}

// takeAll snatches the whole queue, leaving it empty.
func (m *Map[TK, TV]) takeAll() []soi.KeyValuePair[TK, *TV] {
	m.queueMutex.Lock()
	defer m.queueMutex.Unlock()
	batch := m.queue
	m.queue = nil
	return batch
}
