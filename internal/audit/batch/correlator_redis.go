package batch

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"chronicle/internal/audit"
	id "chronicle/pkg/domain"
	"chronicle/pkg/platform/sentinel"
)

const (
	// Redis key prefix for batch counter hashes.
	batchKeyPrefix = "audit:batch:"

	// batchTTL is the safety net for importers that crash before Finish;
	// abandoned counter hashes expire on their own.
	batchTTL = 24 * time.Hour

	fieldAttempted = "attempted"
	fieldSucceeded = "succeeded"
	fieldFailed    = "failed"
	fieldFinished  = "finished"
)

// RedisCorrelator keeps batch counters in Redis so horizontally scaled
// importers processing rows of the same batch share one set of counters.
// HINCRBY gives the same no-lost-updates guarantee the in-memory variant gets
// from atomics.
type RedisCorrelator struct {
	client *redis.Client
}

// NewRedisCorrelator constructs a Redis-backed correlator.
func NewRedisCorrelator(client *redis.Client) *RedisCorrelator {
	return &RedisCorrelator{client: client}
}

func batchKey(batchID id.BatchID) string {
	return batchKeyPrefix + batchID.String()
}

// Begin allocates a batch id and initializes its counter hash.
func (c *RedisCorrelator) Begin(ctx context.Context) (id.BatchID, error) {
	batchID := id.NewBatchID()
	key := batchKey(batchID)

	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key,
		fieldAttempted, 0,
		fieldSucceeded, 0,
		fieldFailed, 0,
	)
	pipe.Expire(ctx, key, batchTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return id.BatchID{}, fmt.Errorf("init batch counters: %w", err)
	}
	return batchID, nil
}

// RecordRow atomically increments the row counters for the batch.
func (c *RedisCorrelator) RecordRow(ctx context.Context, batchID id.BatchID, outcome Outcome) error {
	key := batchKey(batchID)

	state, err := c.client.HGet(ctx, key, fieldFinished).Result()
	switch {
	case err == redis.Nil:
		// No finished marker; fall through to the existence check below.
	case err != nil:
		return fmt.Errorf("check batch state: %w", err)
	case state != "":
		return fmt.Errorf("batch %s: %w", batchID, sentinel.ErrAlreadyFinished)
	}

	exists, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("check batch exists: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("batch %s: %w", batchID, sentinel.ErrUnknownBatch)
	}

	outcomeField := fieldFailed
	if outcome == OutcomeSuccess {
		outcomeField = fieldSucceeded
	}

	pipe := c.client.TxPipeline()
	pipe.HIncrBy(ctx, key, fieldAttempted, 1)
	pipe.HIncrBy(ctx, key, outcomeField, 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("increment batch counters: %w", err)
	}
	return nil
}

// Finish marks the batch finished and returns its summary. The finished
// marker is set with HSETNX, so a second Finish loses the race and gets
// ErrAlreadyFinished regardless of which replica called first.
func (c *RedisCorrelator) Finish(ctx context.Context, batchID id.BatchID) (audit.BatchSummary, error) {
	key := batchKey(batchID)

	exists, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return audit.BatchSummary{}, fmt.Errorf("check batch exists: %w", err)
	}
	if exists == 0 {
		return audit.BatchSummary{}, fmt.Errorf("batch %s: %w", batchID, sentinel.ErrUnknownBatch)
	}

	set, err := c.client.HSetNX(ctx, key, fieldFinished, time.Now().Format(time.RFC3339)).Result()
	if err != nil {
		return audit.BatchSummary{}, fmt.Errorf("mark batch finished: %w", err)
	}
	if !set {
		return audit.BatchSummary{}, fmt.Errorf("batch %s: %w", batchID, sentinel.ErrAlreadyFinished)
	}

	vals, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return audit.BatchSummary{}, fmt.Errorf("read batch counters: %w", err)
	}

	// Finished batches only need to linger for double-finish detection.
	_ = c.client.Expire(ctx, key, finishedRetention).Err()

	return audit.BatchSummary{
		Attempted: atoi(vals[fieldAttempted]),
		Succeeded: atoi(vals[fieldSucceeded]),
		Failed:    atoi(vals[fieldFailed]),
	}, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
