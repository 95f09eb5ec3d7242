package domain

import (
	"github.com/google/uuid"

	dErrors "chronicle/pkg/domain-errors"
)

// Typed UUID identifiers. Distinct types keep an actor id from being passed
// where a batch id is expected; the compiler enforces the distinction.
//
// Invariant: parsed IDs are valid, non-nil UUIDs. Construct via the Parse*
// functions at trust boundaries; direct casting bypasses validation.
type (
	// ActorID identifies the user or service account performing an action.
	ActorID uuid.UUID

	// EntryID identifies one audit log entry.
	EntryID uuid.UUID

	// BatchID correlates all entries produced by one multi-row operation.
	// Generated as a UUIDv7 so ids sort by creation time.
	BatchID uuid.UUID
)

// NewEntryID returns a time-ordered entry id.
func NewEntryID() EntryID {
	return EntryID(newV7())
}

// NewBatchID returns a time-ordered batch correlation id, unique across
// concurrent bulk operations from different actors.
func NewBatchID() BatchID {
	return BatchID(newV7())
}

// newV7 falls back to v4 if the system clock refuses to cooperate; uuid.NewV7
// only errors when crypto/rand fails, in which case uuid.New panics anyway.
func newV7() uuid.UUID {
	u, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return u
}

// ParseActorID constructs an ActorID from external input.
func ParseActorID(s string) (ActorID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return ActorID{}, err
	}
	return ActorID(u), nil
}

// ParseBatchID constructs a BatchID from external input.
func ParseBatchID(s string) (BatchID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return BatchID{}, err
	}
	return BatchID(u), nil
}

// ParseEntryID constructs an EntryID from external input.
func ParseEntryID(s string) (EntryID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return EntryID{}, err
	}
	return EntryID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}

func (id ActorID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ActorID) String() string { return uuid.UUID(id).String() }

func (id EntryID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id EntryID) String() string { return uuid.UUID(id).String() }

func (id BatchID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id BatchID) String() string { return uuid.UUID(id).String() }
