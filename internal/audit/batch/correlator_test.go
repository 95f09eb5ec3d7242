package batch

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle/pkg/platform/sentinel"
)

func TestMemoryCorrelator_Lifecycle(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCorrelator()

	batchID, err := c.Begin(ctx)
	require.NoError(t, err)
	require.False(t, batchID.IsNil())

	require.NoError(t, c.RecordRow(ctx, batchID, OutcomeSuccess))
	require.NoError(t, c.RecordRow(ctx, batchID, OutcomeSuccess))
	require.NoError(t, c.RecordRow(ctx, batchID, OutcomeFailure))

	summary, err := c.Finish(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Attempted)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
}

func TestMemoryCorrelator_FinishTwice(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCorrelator()

	batchID, err := c.Begin(ctx)
	require.NoError(t, err)

	_, err = c.Finish(ctx, batchID)
	require.NoError(t, err)

	_, err = c.Finish(ctx, batchID)
	assert.ErrorIs(t, err, sentinel.ErrAlreadyFinished)

	// Rows after finish are lifecycle misuse too.
	err = c.RecordRow(ctx, batchID, OutcomeSuccess)
	assert.ErrorIs(t, err, sentinel.ErrAlreadyFinished)
}

func TestMemoryCorrelator_UnknownBatch(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCorrelator()

	other, err := NewMemoryCorrelator().Begin(ctx)
	require.NoError(t, err)

	err = c.RecordRow(ctx, other, OutcomeSuccess)
	assert.ErrorIs(t, err, sentinel.ErrUnknownBatch)

	_, err = c.Finish(ctx, other)
	assert.ErrorIs(t, err, sentinel.ErrUnknownBatch)
}

// TestMemoryCorrelator_ConcurrentRows exercises the no-lost-updates guarantee
// when rows of one import are processed in parallel.
func TestMemoryCorrelator_ConcurrentRows(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCorrelator()

	batchID, err := c.Begin(ctx)
	require.NoError(t, err)

	const workers = 8
	const rowsPerWorker = 250

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := range rowsPerWorker {
				outcome := OutcomeSuccess
				if (w+i)%5 == 0 {
					outcome = OutcomeFailure
				}
				_ = c.RecordRow(ctx, batchID, outcome)
			}
		}(w)
	}
	wg.Wait()

	summary, err := c.Finish(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, workers*rowsPerWorker, summary.Attempted)
	assert.Equal(t, summary.Attempted, summary.Succeeded+summary.Failed)
	assert.Equal(t, workers*rowsPerWorker/5, summary.Failed)
}

func TestMemoryCorrelator_ConcurrentBatchesAreIndependent(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCorrelator()

	first, err := c.Begin(ctx)
	require.NoError(t, err)
	second, err := c.Begin(ctx)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	require.NoError(t, c.RecordRow(ctx, first, OutcomeSuccess))
	require.NoError(t, c.RecordRow(ctx, second, OutcomeFailure))

	firstSummary, err := c.Finish(ctx, first)
	require.NoError(t, err)
	secondSummary, err := c.Finish(ctx, second)
	require.NoError(t, err)

	assert.Equal(t, 1, firstSummary.Succeeded)
	assert.Equal(t, 0, firstSummary.Failed)
	assert.Equal(t, 0, secondSummary.Succeeded)
	assert.Equal(t, 1, secondSummary.Failed)
}
