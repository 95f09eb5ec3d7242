// Package audit defines the record types and classification taxonomy for the
// audit and compliance log. Events are emitted from business logic after a
// successful mutation; keep the types transport-agnostic so stores and sinks
// can fan out.
package audit

import (
	"time"

	id "chronicle/pkg/domain"
)

// Action identifies the kind of operation an audit entry records.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionLogin  Action = "login"
	ActionLogout Action = "logout"
	ActionExport Action = "export"
	ActionImport Action = "import"
	ActionCustom Action = "custom"
)

// Severity classifies how serious an event is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Category is the coarse classification used for filtering and retention.
type Category string

const (
	// CategoryData covers entity mutations: create, update, delete, import.
	CategoryData Category = "data"

	// CategorySecurity covers authentication and authorization events.
	// These feed into SIEM systems and alerting pipelines.
	CategorySecurity Category = "security"

	// CategorySystem covers schema and version level operations.
	CategorySystem Category = "system"

	// CategoryCompliance covers events with legal/regulatory significance
	// that require long retention, e.g. exports of personal data.
	CategoryCompliance Category = "compliance"
)

// AccessType classifies read operations sensitive enough to log.
type AccessType string

const (
	AccessList   AccessType = "list"
	AccessDetail AccessType = "detail"
	AccessExport AccessType = "export"
)

// SecurityEventType is the narrower action vocabulary for security events.
type SecurityEventType string

const (
	SecurityLoginFailed      SecurityEventType = "login_failed"
	SecurityPermissionDenied SecurityEventType = "permission_denied"
	SecuritySessionAnomaly   SecurityEventType = "session_anomaly"
	SecurityLogin            SecurityEventType = "login"
	SecurityLogout           SecurityEventType = "logout"
	SecurityLockout          SecurityEventType = "lockout"
)

// AuditLogEntry is one discrete recorded action. Immutable once written.
//
// Invariant: every mutation that changes stored data produces exactly one
// entry.
type AuditLogEntry struct {
	ID          id.EntryID
	Seq         int64 // store-assigned, used only as the ordering tie-breaker
	ActorID     *id.ActorID
	Action      Action
	EntityType  string
	EntityID    *string
	EntityName  *string // denormalized display label
	Description string
	Severity    Severity
	Category    Category
	IPAddress   string
	UserAgent   string
	BatchID     *id.BatchID
	Timestamp   time.Time
}

// ChangeRecord is a single field-level before/after pair belonging to one
// audit entry. FieldName is nil for whole-row create/delete records. Values
// are stored as JSON-serialized scalars; nil marks absence (oldValue on
// create, newValue on delete).
type ChangeRecord struct {
	EntryID    id.EntryID
	EntityType string
	EntityID   string
	Action     Action
	FieldName  *string
	OldValue   *string
	NewValue   *string
	Timestamp  time.Time
}

// DataAccessRecord is one read-type operation considered sensitive enough to
// log: full entity lists, detail views, exports.
//
// Invariant: ResultCount equals the number of entity rows returned to the
// caller for that access.
type DataAccessRecord struct {
	ID          id.EntryID
	ActorID     *id.ActorID
	EntityType  string
	AccessType  AccessType
	DataScope   string // e.g. "all", "filtered:status=active"
	ResultCount int
	Timestamp   time.Time
}

// SecurityEvent is one authentication/authorization-relevant occurrence.
// Severity is required, unlike the general entry where it is derived.
type SecurityEvent struct {
	ID          id.EntryID
	ActorID     *id.ActorID
	EventType   SecurityEventType
	Severity    Severity
	Description string
	IPAddress   string
	UserAgent   string
	Timestamp   time.Time
}

// BatchSummary reports the outcome of one bulk operation.
type BatchSummary struct {
	Attempted int
	Succeeded int
	Failed    int
}
