package recorder

// Status is the advisory outcome of an append.
type Status int

const (
	// StatusOK means the event was durably appended.
	StatusOK Status = iota

	// StatusDegraded means the event was lost or deferred: store failure,
	// timeout, or an open circuit. Callers observe-and-continue; a degraded
	// append must never abort the primary business operation.
	StatusDegraded
)

// Ack is the typed result of a recording call. It replaces error returns on
// the append path so calling code can surface degradation in its own
// telemetry without being tempted to fail-and-rollback.
type Ack struct {
	Status Status
	Reason string
}

// OK reports whether the append was durable.
func (a Ack) OK() bool { return a.Status == StatusOK }

// Degraded reports whether the event was lost or deferred.
func (a Ack) Degraded() bool { return a.Status == StatusDegraded }

func ackOK() Ack { return Ack{Status: StatusOK} }

func ackDegraded(reason string) Ack {
	return Ack{Status: StatusDegraded, Reason: reason}
}
