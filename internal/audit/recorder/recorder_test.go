package recorder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle/internal/audit"
	"chronicle/internal/audit/store/memory"
	id "chronicle/pkg/domain"
)

func testEntry(t *testing.T) audit.AuditLogEntry {
	t.Helper()
	entry, err := audit.Normalize(audit.RawEvent{
		Action:     audit.ActionCreate,
		EntityType: "customer",
	})
	require.NoError(t, err)
	return entry
}

func TestRecorder_Record(t *testing.T) {
	ctx := context.Background()

	t.Run("success acks ok", func(t *testing.T) {
		store := memory.New()
		rec := New(store)

		entry := testEntry(t)
		entryID, ack := rec.Record(ctx, entry, nil)
		assert.True(t, ack.OK())
		assert.Equal(t, entry.ID, entryID)

		entries, err := store.ListEntries(ctx, audit.Filter{Limit: 10})
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("store failure degrades, never errors", func(t *testing.T) {
		store := memory.New()
		store.FailAppends(errors.New("connection refused"))
		rec := New(store)

		_, ack := rec.Record(ctx, testEntry(t), nil)
		assert.True(t, ack.Degraded())
		assert.Contains(t, ack.Reason, "connection refused")
	})

	t.Run("slow store degrades within the timeout bound", func(t *testing.T) {
		slow := &slowStore{delay: 200 * time.Millisecond}
		rec := New(slow, WithTimeout(20*time.Millisecond))

		start := time.Now()
		_, ack := rec.Record(ctx, testEntry(t), nil)
		assert.True(t, ack.Degraded())
		assert.Less(t, time.Since(start), 150*time.Millisecond)
	})
}

func TestRecorder_CircuitBreakerSheds(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	store.FailAppends(errors.New("down"))
	rec := New(store, WithBreaker(NewCircuitBreaker(3, time.Minute)))

	for i := 0; i < 3; i++ {
		_, ack := rec.Record(ctx, testEntry(t), nil)
		assert.True(t, ack.Degraded())
	}

	// Circuit is open now; the store recovers but the next append is shed
	// without touching it.
	store.FailAppends(nil)
	_, ack := rec.Record(ctx, testEntry(t), nil)
	assert.True(t, ack.Degraded())
	assert.Equal(t, "circuit open", ack.Reason)

	entries, err := store.ListEntries(ctx, audit.Filter{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecorder_BreakerRecovers(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	store.FailAppends(errors.New("down"))
	rec := New(store, WithBreaker(NewCircuitBreaker(2, 10*time.Millisecond)))

	for i := 0; i < 2; i++ {
		rec.Record(ctx, testEntry(t), nil)
	}

	store.FailAppends(nil)
	time.Sleep(20 * time.Millisecond)

	_, ack := rec.Record(ctx, testEntry(t), nil)
	assert.True(t, ack.OK())
}

func TestRecorder_RecordAccess(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rec := New(store)

	ack := rec.RecordAccess(ctx, audit.DataAccessRecord{
		ID:          id.NewEntryID(),
		EntityType:  "customer",
		AccessType:  audit.AccessList,
		DataScope:   "all",
		ResultCount: 42,
		Timestamp:   time.Now(),
	})
	assert.True(t, ack.OK())

	recs, err := store.ListAccess(ctx, audit.Filter{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestRecorder_SecuritySinkForward(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	sink := &captureSink{forwarded: make(chan audit.SecurityEvent, 1)}
	rec := New(store, WithSecuritySink(sink))

	ev := audit.SecurityEvent{
		ID:        id.NewEntryID(),
		EventType: audit.SecurityLoginFailed,
		Severity:  audit.SeverityWarning,
		Timestamp: time.Now(),
	}
	ack := rec.RecordSecurityEvent(ctx, ev)
	assert.True(t, ack.OK())

	select {
	case got := <-sink.forwarded:
		assert.Equal(t, ev.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("security event was not forwarded to the sink")
	}
}

func TestRecorder_SinkQueueBoundsForwarding(t *testing.T) {
	ctx := context.Background()
	sink := &blockingSink{gate: make(chan struct{})}
	rec := New(memory.New(), WithSecuritySink(sink))

	// Flood well past the queue capacity while the sink is stuck. The append
	// path must stay non-blocking; overflow is dropped, not queued.
	total := sinkQueueSize + 16
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < total; i++ {
			ack := rec.RecordSecurityEvent(ctx, audit.SecurityEvent{
				ID:        id.NewEntryID(),
				EventType: audit.SecurityLoginFailed,
				Severity:  audit.SeverityWarning,
				Timestamp: time.Now(),
			})
			assert.True(t, ack.OK())
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("append path blocked on a saturated sink queue")
	}

	close(sink.gate)
	rec.Close()

	forwarded := sink.count.Load()
	assert.GreaterOrEqual(t, forwarded, int64(sinkQueueSize))
	assert.LessOrEqual(t, forwarded, int64(sinkQueueSize+1))
}

func TestRecorder_SinkFailureDoesNotDegradeAck(t *testing.T) {
	ctx := context.Background()
	sink := &captureSink{err: errors.New("broker unreachable"), forwarded: make(chan audit.SecurityEvent, 1)}
	rec := New(memory.New(), WithSecuritySink(sink))

	ack := rec.RecordSecurityEvent(ctx, audit.SecurityEvent{
		ID:        id.NewEntryID(),
		EventType: audit.SecurityLockout,
		Severity:  audit.SeverityCritical,
		Timestamp: time.Now(),
	})
	assert.True(t, ack.OK())
}

type slowStore struct {
	delay time.Duration
}

func (s *slowStore) AppendEntry(ctx context.Context, _ audit.AuditLogEntry, _ []audit.ChangeRecord) error {
	select {
	case <-time.After(s.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *slowStore) AppendAccess(ctx context.Context, _ audit.DataAccessRecord) error {
	return ctx.Err()
}

func (s *slowStore) AppendSecurity(ctx context.Context, _ audit.SecurityEvent) error {
	return ctx.Err()
}

type blockingSink struct {
	gate  chan struct{}
	count atomic.Int64
}

func (s *blockingSink) Forward(_ context.Context, _ audit.SecurityEvent) error {
	<-s.gate
	s.count.Add(1)
	return nil
}

type captureSink struct {
	mu        sync.Mutex
	err       error
	forwarded chan audit.SecurityEvent
}

func (s *captureSink) Forward(_ context.Context, ev audit.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.forwarded <- ev
	return nil
}
