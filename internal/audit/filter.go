package audit

import (
	"time"

	id "chronicle/pkg/domain"
	dErrors "chronicle/pkg/domain-errors"
)

// DefaultQueryLimit bounds unpaginated reads so a reporting client cannot
// accidentally pull the whole log.
const DefaultQueryLimit = 100

// MaxQueryLimit is the hard ceiling for one page.
const MaxQueryLimit = 1000

// Filter describes which log rows a query should return. Zero values mean
// "no constraint". Results are always ordered newest-first by timestamp,
// ties broken by the store sequence descending for determinism.
type Filter struct {
	EntityType string
	EntityID   string
	ActorID    *id.ActorID
	Action     Action
	From       time.Time
	To         time.Time
	BatchID    *id.BatchID
	Limit      int
	Offset     int
}

// Validate checks the date range and clamps pagination.
//
// Errors: CodeInvalidRange when From > To; no other failure mode. An empty
// result set is not an error.
func (f *Filter) Validate() error {
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return dErrors.New(dErrors.CodeInvalidRange, "date range start is after end")
	}
	if f.Limit <= 0 {
		f.Limit = DefaultQueryLimit
	}
	if f.Limit > MaxQueryLimit {
		f.Limit = MaxQueryLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return nil
}

// Matches reports whether an entry satisfies every set predicate. The
// in-memory store uses this; the postgres store compiles the same predicates
// to SQL.
func (f Filter) Matches(e AuditLogEntry) bool {
	if f.EntityType != "" && e.EntityType != f.EntityType {
		return false
	}
	if f.EntityID != "" && (e.EntityID == nil || *e.EntityID != f.EntityID) {
		return false
	}
	if f.ActorID != nil && (e.ActorID == nil || *e.ActorID != *f.ActorID) {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.BatchID != nil && (e.BatchID == nil || *e.BatchID != *f.BatchID) {
		return false
	}
	return f.inRange(e.Timestamp)
}

// MatchesChange applies the filter predicates meaningful for change records.
func (f Filter) MatchesChange(c ChangeRecord) bool {
	if f.EntityType != "" && c.EntityType != f.EntityType {
		return false
	}
	if f.EntityID != "" && c.EntityID != f.EntityID {
		return false
	}
	if f.Action != "" && c.Action != f.Action {
		return false
	}
	return f.inRange(c.Timestamp)
}

// MatchesAccess applies the filter predicates meaningful for access records.
func (f Filter) MatchesAccess(r DataAccessRecord) bool {
	if f.EntityType != "" && r.EntityType != f.EntityType {
		return false
	}
	if f.ActorID != nil && (r.ActorID == nil || *r.ActorID != *f.ActorID) {
		return false
	}
	return f.inRange(r.Timestamp)
}

// MatchesSecurity applies the filter predicates meaningful for security
// events. Action filters against the event type vocabulary.
func (f Filter) MatchesSecurity(ev SecurityEvent) bool {
	if f.ActorID != nil && (ev.ActorID == nil || *ev.ActorID != *f.ActorID) {
		return false
	}
	if f.Action != "" && string(ev.EventType) != string(f.Action) {
		return false
	}
	return f.inRange(ev.Timestamp)
}

func (f Filter) inRange(ts time.Time) bool {
	if !f.From.IsZero() && ts.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && ts.After(f.To) {
		return false
	}
	return true
}
