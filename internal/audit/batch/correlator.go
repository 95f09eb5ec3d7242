// Package batch issues and tracks correlation ids for multi-row operations.
//
// A bulk import begins a batch, tags every per-row audit entry with the
// batch id, records each row outcome, and finishes the batch exactly once to
// obtain the summary persisted as the terminal import entry.
package batch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"chronicle/internal/audit"
	id "chronicle/pkg/domain"
	"chronicle/pkg/platform/sentinel"
)

// Outcome is the result of processing one row of a batch.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

//go:generate mockgen -source=correlator.go -destination=mocks/mocks.go -package=mocks Correlator

// Correlator threads a batch id through all entries produced by one bulk
// operation and maintains its running counters.
//
// RecordRow is safe to call concurrently for the same batch. Finish is called
// exactly once per batch; a second call returns sentinel.ErrAlreadyFinished.
type Correlator interface {
	Begin(ctx context.Context) (id.BatchID, error)
	RecordRow(ctx context.Context, batchID id.BatchID, outcome Outcome) error
	Finish(ctx context.Context, batchID id.BatchID) (audit.BatchSummary, error)
}

// finishedRetention bounds how long finished batch ids are remembered for
// double-finish detection.
const finishedRetention = time.Hour

type counters struct {
	attempted atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
}

// MemoryCorrelator tracks batches in process memory. This is the default for
// single-process deployments; horizontally scaled importers use the Redis
// variant so all replicas share one batch.
type MemoryCorrelator struct {
	mu       sync.RWMutex
	active   map[id.BatchID]*counters
	finished map[id.BatchID]time.Time
}

// NewMemoryCorrelator creates an in-memory correlator.
func NewMemoryCorrelator() *MemoryCorrelator {
	return &MemoryCorrelator{
		active:   make(map[id.BatchID]*counters),
		finished: make(map[id.BatchID]time.Time),
	}
}

// Begin allocates a fresh batch id. UUIDv7 generation keeps ids unique across
// concurrent bulk operations from different actors.
func (c *MemoryCorrelator) Begin(_ context.Context) (id.BatchID, error) {
	batchID := id.NewBatchID()

	c.mu.Lock()
	c.active[batchID] = &counters{}
	c.mu.Unlock()

	return batchID, nil
}

// RecordRow increments the batch counters for one processed row. Atomic
// increments, so rows of one import processed in parallel never lose updates.
func (c *MemoryCorrelator) RecordRow(_ context.Context, batchID id.BatchID, outcome Outcome) error {
	c.mu.RLock()
	cnt, ok := c.active[batchID]
	c.mu.RUnlock()
	if !ok {
		return c.unknownOrFinished(batchID)
	}

	cnt.attempted.Add(1)
	if outcome == OutcomeSuccess {
		cnt.succeeded.Add(1)
	} else {
		cnt.failed.Add(1)
	}
	return nil
}

// Finish computes the batch summary and discards the counters. The batch id
// stays on a short-lived finished list so lifecycle misuse is reported as
// ErrAlreadyFinished rather than ErrUnknownBatch.
func (c *MemoryCorrelator) Finish(_ context.Context, batchID id.BatchID) (audit.BatchSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cnt, ok := c.active[batchID]
	if !ok {
		if _, done := c.finished[batchID]; done {
			return audit.BatchSummary{}, fmt.Errorf("batch %s: %w", batchID, sentinel.ErrAlreadyFinished)
		}
		return audit.BatchSummary{}, fmt.Errorf("batch %s: %w", batchID, sentinel.ErrUnknownBatch)
	}

	delete(c.active, batchID)
	c.finished[batchID] = time.Now()
	c.pruneFinishedLocked()

	return audit.BatchSummary{
		Attempted: int(cnt.attempted.Load()),
		Succeeded: int(cnt.succeeded.Load()),
		Failed:    int(cnt.failed.Load()),
	}, nil
}

func (c *MemoryCorrelator) unknownOrFinished(batchID id.BatchID) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, done := c.finished[batchID]; done {
		return fmt.Errorf("batch %s: %w", batchID, sentinel.ErrAlreadyFinished)
	}
	return fmt.Errorf("batch %s: %w", batchID, sentinel.ErrUnknownBatch)
}

func (c *MemoryCorrelator) pruneFinishedLocked() {
	cutoff := time.Now().Add(-finishedRetention)
	for bid, at := range c.finished {
		if at.Before(cutoff) {
			delete(c.finished, bid)
		}
	}
}
