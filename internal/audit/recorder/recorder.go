// Package recorder is the single write path of the audit core.
//
// A failure to persist the audit trail never propagates as a failure of the
// caller's primary business operation: appends return an advisory Ack, write
// a local diagnostic on degradation, and apply a short bounded timeout so an
// unavailable store cannot starve request threads. A circuit breaker sheds
// appends entirely during sustained outages.
package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chronicle/internal/audit"
	id "chronicle/pkg/domain"
)

// Store is the append-side persistence contract. AppendEntry writes the
// entry and its change records together: per-row atomicity, never
// interleaved with another row's partial write.
type Store interface {
	AppendEntry(ctx context.Context, entry audit.AuditLogEntry, changes []audit.ChangeRecord) error
	AppendAccess(ctx context.Context, rec audit.DataAccessRecord) error
	AppendSecurity(ctx context.Context, ev audit.SecurityEvent) error
}

// SecuritySink mirrors security events to an external monitoring system.
// Forwarding is fire-and-forget; errors are counted, never surfaced.
type SecuritySink interface {
	Forward(ctx context.Context, ev audit.SecurityEvent) error
}

// DefaultAppendTimeout bounds one synchronous append; a slow store degrades
// to log-and-continue exactly like a failed one.
const DefaultAppendTimeout = 2 * time.Second

// sinkQueueSize bounds the forward queue. A full queue drops the event
// rather than blocking the append path or spawning more goroutines.
const sinkQueueSize = 256

// Recorder exclusively owns the append path.
type Recorder struct {
	store   Store
	logger  *slog.Logger
	metrics *Metrics
	breaker *CircuitBreaker
	sink    SecuritySink
	timeout time.Duration
	tracer  trace.Tracer

	sinkCh    chan audit.SecurityEvent
	sinkDone  chan struct{}
	closeOnce sync.Once
}

// Option configures the Recorder.
type Option func(*Recorder)

// WithLogger sets a logger for degradation diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// WithTimeout overrides the per-append timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(cb *CircuitBreaker) Option {
	return func(r *Recorder) {
		if cb != nil {
			r.breaker = cb
		}
	}
}

// WithSecuritySink enables mirroring of security events to a SIEM forwarder.
func WithSecuritySink(sink SecuritySink) Option {
	return func(r *Recorder) { r.sink = sink }
}

// New creates a Recorder over the given store.
func New(store Store, opts ...Option) *Recorder {
	r := &Recorder{
		store:   store,
		logger:  slog.Default(),
		breaker: NewCircuitBreaker(5, 30*time.Second),
		timeout: DefaultAppendTimeout,
		tracer:  otel.Tracer("chronicle/internal/audit/recorder"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.sink != nil {
		r.sinkCh = make(chan audit.SecurityEvent, sinkQueueSize)
		r.sinkDone = make(chan struct{})
		go r.forwardLoop()
	}
	return r
}

// Close stops the sink forwarder after draining queued events. Safe to call
// when no sink is configured.
func (r *Recorder) Close() {
	if r.sinkCh == nil {
		return
	}
	r.closeOnce.Do(func() {
		close(r.sinkCh)
		<-r.sinkDone
	})
}

// forwardLoop is the single consumer of the sink queue, so a flood of
// security events cannot fan out into unbounded forwarding goroutines.
// Forwards run on a detached context; cancellation of the primary operation
// never truncates them.
func (r *Recorder) forwardLoop() {
	defer close(r.sinkDone)
	for ev := range r.sinkCh {
		fwdCtx, cancel := context.WithTimeout(context.Background(), r.timeout)
		err := r.sink.Forward(fwdCtx, ev)
		cancel()
		if err != nil {
			r.metrics.incSinkForwardErr()
			r.logger.Warn("security event forward failed",
				"event_type", ev.EventType,
				"error", err,
			)
		}
	}
}

// Record appends one audit entry together with its change records.
// The returned id is valid only when the Ack reports OK.
func (r *Recorder) Record(ctx context.Context, entry audit.AuditLogEntry, changes []audit.ChangeRecord) (id.EntryID, Ack) {
	ack := r.append(ctx, "events", string(entry.Action), func(ctx context.Context) error {
		return r.store.AppendEntry(ctx, entry, changes)
	})
	return entry.ID, ack
}

// RecordAccess appends one data-access record.
func (r *Recorder) RecordAccess(ctx context.Context, rec audit.DataAccessRecord) Ack {
	return r.append(ctx, "access", string(rec.AccessType), func(ctx context.Context) error {
		return r.store.AppendAccess(ctx, rec)
	})
}

// RecordSecurityEvent appends one security event and, when a sink is
// configured, queues it for the background SIEM forwarder. The enqueue never
// blocks; on overflow the event is dropped and counted.
func (r *Recorder) RecordSecurityEvent(ctx context.Context, ev audit.SecurityEvent) Ack {
	ack := r.append(ctx, "security", string(ev.EventType), func(ctx context.Context) error {
		return r.store.AppendSecurity(ctx, ev)
	})

	if r.sinkCh != nil {
		select {
		case r.sinkCh <- ev:
		default:
			r.metrics.incSinkDropped()
			r.logger.Warn("security event dropped, sink queue full",
				"event_type", ev.EventType,
			)
		}
	}
	return ack
}

// append runs one store write under the breaker, timeout, and metrics
// discipline shared by all three streams.
func (r *Recorder) append(ctx context.Context, stream, action string, write func(context.Context) error) Ack {
	ctx, span := r.tracer.Start(ctx, "audit.append",
		trace.WithAttributes(
			attribute.String("audit.stream", stream),
			attribute.String("audit.action", action),
		))
	defer span.End()

	if !r.breaker.Allow() {
		r.metrics.incShedded(stream)
		r.metrics.setBreakerState(true)
		r.logger.WarnContext(ctx, "audit append shed, circuit open",
			"stream", stream,
			"action", action,
		)
		return ackDegraded("circuit open")
	}

	start := time.Now()
	appendCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := write(appendCtx); err != nil {
		r.breaker.RecordFailure()
		r.metrics.incDegraded(stream)
		r.metrics.setBreakerState(r.breaker.IsOpen())
		r.logger.ErrorContext(ctx, "audit append failed",
			"stream", stream,
			"action", action,
			"error", err,
		)
		return ackDegraded(err.Error())
	}

	r.breaker.RecordSuccess()
	r.metrics.setBreakerState(false)
	r.metrics.observeAppend(stream, time.Since(start).Seconds())
	return ackOK()
}
