package audit

import (
	"time"

	id "chronicle/pkg/domain"
	dErrors "chronicle/pkg/domain-errors"
)

// RawEvent is the unnormalized description of an action handed over by
// business code. Only Action and EntityType are required; everything else is
// defaulted by Normalize.
type RawEvent struct {
	ActorID     *id.ActorID
	Action      Action
	EntityType  string
	EntityID    *string
	EntityName  *string
	Description string
	IPAddress   string
	UserAgent   string
	BatchID     *id.BatchID
	Timestamp   time.Time

	// SeverityOverride lets a caller escalate above the canonical table,
	// e.g. marking a routine action critical during an incident. It can
	// raise severity, never lower it.
	SeverityOverride Severity
}

// Normalize converts a raw event into a canonical AuditLogEntry. Pure
// transform: severity and category come from the taxonomy tables, zero
// timestamps become now, and a fresh entry id is assigned. The caller passes
// the result to the recorder.
//
// Errors: CodeInvalidInput when Action or EntityType is missing or unknown.
func Normalize(raw RawEvent) (AuditLogEntry, error) {
	if raw.Action == "" {
		return AuditLogEntry{}, dErrors.New(dErrors.CodeInvalidInput, "event action is required")
	}
	if !raw.Action.IsValid() {
		return AuditLogEntry{}, dErrors.New(dErrors.CodeInvalidInput, "unknown event action")
	}
	if raw.EntityType == "" {
		return AuditLogEntry{}, dErrors.New(dErrors.CodeInvalidInput, "event entity type is required")
	}

	ts := raw.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	severity := SeverityOf(raw.Action)
	if rank(raw.SeverityOverride) > rank(severity) {
		severity = raw.SeverityOverride
	}

	return AuditLogEntry{
		ID:          id.NewEntryID(),
		ActorID:     raw.ActorID,
		Action:      raw.Action,
		EntityType:  raw.EntityType,
		EntityID:    raw.EntityID,
		EntityName:  raw.EntityName,
		Description: raw.Description,
		Severity:    severity,
		Category:    CategoryOf(raw.Action),
		IPAddress:   raw.IPAddress,
		UserAgent:   raw.UserAgent,
		BatchID:     raw.BatchID,
		Timestamp:   ts,
	}, nil
}

// rank orders severities so overrides can only escalate.
func rank(s Severity) int {
	switch s {
	case SeverityWarning:
		return 1
	case SeverityCritical:
		return 2
	default:
		return 0
	}
}
