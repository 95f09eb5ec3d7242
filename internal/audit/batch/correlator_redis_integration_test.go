//go:build integration

package batch

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle/internal/audit"
	id "chronicle/pkg/domain"
	"chronicle/pkg/platform/sentinel"
	"chronicle/pkg/testutil/containers"
)

func TestRedisCorrelator_Integration(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	correlator := NewRedisCorrelator(rc.Client)
	ctx := context.Background()

	t.Run("lifecycle", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))

		batchID, err := correlator.Begin(ctx)
		require.NoError(t, err)

		require.NoError(t, correlator.RecordRow(ctx, batchID, OutcomeSuccess))
		require.NoError(t, correlator.RecordRow(ctx, batchID, OutcomeSuccess))
		require.NoError(t, correlator.RecordRow(ctx, batchID, OutcomeFailure))

		summary, err := correlator.Finish(ctx, batchID)
		require.NoError(t, err)
		assert.Equal(t, audit.BatchSummary{Attempted: 3, Succeeded: 2, Failed: 1}, summary)
	})

	t.Run("finish twice fails", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))

		batchID, err := correlator.Begin(ctx)
		require.NoError(t, err)

		_, err = correlator.Finish(ctx, batchID)
		require.NoError(t, err)

		_, err = correlator.Finish(ctx, batchID)
		require.ErrorIs(t, err, sentinel.ErrAlreadyFinished)
	})

	t.Run("rows after finish rejected", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))

		batchID, err := correlator.Begin(ctx)
		require.NoError(t, err)
		_, err = correlator.Finish(ctx, batchID)
		require.NoError(t, err)

		err = correlator.RecordRow(ctx, batchID, OutcomeSuccess)
		require.ErrorIs(t, err, sentinel.ErrAlreadyFinished)
	})

	t.Run("unknown batch rejected", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))

		err := correlator.RecordRow(ctx, id.NewBatchID(), OutcomeSuccess)
		require.ErrorIs(t, err, sentinel.ErrUnknownBatch)

		_, err = correlator.Finish(ctx, id.NewBatchID())
		require.ErrorIs(t, err, sentinel.ErrUnknownBatch)
	})

	t.Run("concurrent rows lose no updates", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))

		batchID, err := correlator.Begin(ctx)
		require.NoError(t, err)

		const workers = 8
		const rowsPerWorker = 50

		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < rowsPerWorker; i++ {
					outcome := OutcomeSuccess
					if i%5 == 0 {
						outcome = OutcomeFailure
					}
					assert.NoError(t, correlator.RecordRow(ctx, batchID, outcome))
				}
			}()
		}
		wg.Wait()

		summary, err := correlator.Finish(ctx, batchID)
		require.NoError(t, err)
		assert.Equal(t, workers*rowsPerWorker, summary.Attempted)
		assert.Equal(t, workers*rowsPerWorker, summary.Succeeded+summary.Failed)
		assert.Equal(t, workers*(rowsPerWorker/5), summary.Failed)
	})
}
