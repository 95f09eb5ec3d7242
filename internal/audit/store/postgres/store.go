// Package postgres implements the log store on PostgreSQL. Four append-mostly
// tables hold the record streams; schema lives in scripts/schema.sql.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"chronicle/internal/audit"
	id "chronicle/pkg/domain"
	txcontext "chronicle/pkg/platform/tx"
)

// Store implements the recorder and query store contracts over database/sql.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL log store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// AppendEntry writes the entry and its change records in one transaction:
// per-row atomicity, never interleaved with another row's partial write.
// When the caller placed its own transaction in context, the append joins
// it and commits with the primary mutation.
func (s *Store) AppendEntry(ctx context.Context, entry audit.AuditLogEntry, changes []audit.ChangeRecord) error {
	if tx, ok := txcontext.From(ctx); ok {
		return s.appendEntryTx(ctx, tx, entry, changes)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit append: %w", err)
	}
	if err := s.appendEntryTx(ctx, tx, entry, changes); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit audit append: %w", err)
	}
	return nil
}

func (s *Store) appendEntryTx(ctx context.Context, tx *sql.Tx, entry audit.AuditLogEntry, changes []audit.ChangeRecord) error {
	query := `
		INSERT INTO audit_events (
			id, actor_id, action, entity_type, entity_id, entity_name,
			description, severity, category, ip_address, user_agent,
			batch_id, timestamp
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := tx.ExecContext(ctx, query,
		uuid.UUID(entry.ID),
		actorValue(entry.ActorID),
		string(entry.Action),
		entry.EntityType,
		entry.EntityID,
		entry.EntityName,
		entry.Description,
		string(entry.Severity),
		string(entry.Category),
		entry.IPAddress,
		entry.UserAgent,
		batchValue(entry.BatchID),
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	for _, c := range changes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO audit_changes (
				entry_id, entity_type, entity_id, action,
				field_name, old_value, new_value, timestamp
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			uuid.UUID(c.EntryID),
			c.EntityType,
			c.EntityID,
			string(c.Action),
			c.FieldName,
			c.OldValue,
			c.NewValue,
			c.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert change record: %w", err)
		}
	}
	return nil
}

// AppendAccess writes one data-access record.
func (s *Store) AppendAccess(ctx context.Context, rec audit.DataAccessRecord) error {
	query := `
		INSERT INTO audit_access (
			id, actor_id, entity_type, access_type, data_scope,
			result_count, timestamp
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(rec.ID),
		actorValue(rec.ActorID),
		rec.EntityType,
		string(rec.AccessType),
		rec.DataScope,
		rec.ResultCount,
		rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert access record: %w", err)
	}
	return nil
}

// AppendSecurity writes one security event.
func (s *Store) AppendSecurity(ctx context.Context, ev audit.SecurityEvent) error {
	query := `
		INSERT INTO audit_security (
			id, actor_id, event_type, severity, description,
			ip_address, user_agent, timestamp
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(ev.ID),
		actorValue(ev.ActorID),
		string(ev.EventType),
		string(ev.Severity),
		ev.Description,
		ev.IPAddress,
		ev.UserAgent,
		ev.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert security event: %w", err)
	}
	return nil
}

// ListEntries returns audit entries matching the filter, newest first,
// seq descending as the deterministic tie-break.
func (s *Store) ListEntries(ctx context.Context, f audit.Filter) ([]audit.AuditLogEntry, error) {
	where, args := buildWhere(f, entryColumns)
	query := fmt.Sprintf(`
		SELECT id, seq, actor_id, action, entity_type, entity_id, entity_name,
			   description, severity, category, ip_address, user_agent,
			   batch_id, timestamp
		FROM audit_events
		%s
		ORDER BY timestamp DESC, seq DESC
		LIMIT %d OFFSET %d
	`, where, limitOf(f), f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ListChanges returns change records matching the filter. A batch filter
// joins through the owning entries.
func (s *Store) ListChanges(ctx context.Context, f audit.Filter) ([]audit.ChangeRecord, error) {
	var sb strings.Builder
	var args []any

	sb.WriteString(`
		SELECT c.entry_id, c.entity_type, c.entity_id, c.action,
			   c.field_name, c.old_value, c.new_value, c.timestamp
		FROM audit_changes c
	`)
	if f.BatchID != nil {
		sb.WriteString("JOIN audit_events e ON e.id = c.entry_id\n")
	}

	var conds []string
	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.BatchID != nil {
		add("e.batch_id = $%d", uuid.UUID(*f.BatchID))
	}
	if f.EntityType != "" {
		add("c.entity_type = $%d", f.EntityType)
	}
	if f.EntityID != "" {
		add("c.entity_id = $%d", f.EntityID)
	}
	if f.Action != "" {
		add("c.action = $%d", string(f.Action))
	}
	if !f.From.IsZero() {
		add("c.timestamp >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("c.timestamp <= $%d", f.To)
	}
	if len(conds) > 0 {
		sb.WriteString("WHERE " + strings.Join(conds, " AND ") + "\n")
	}
	// Entry ids are time-ordered UUIDv7, so entry_id keeps equal-timestamp
	// pages deterministic.
	sb.WriteString(fmt.Sprintf("ORDER BY c.timestamp DESC, c.entry_id DESC LIMIT %d OFFSET %d", limitOf(f), f.Offset))

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query change records: %w", err)
	}
	defer rows.Close()

	return scanChanges(rows)
}

// ListAccess returns data-access records matching the filter.
func (s *Store) ListAccess(ctx context.Context, f audit.Filter) ([]audit.DataAccessRecord, error) {
	where, args := buildWhere(f, accessColumns)
	query := fmt.Sprintf(`
		SELECT id, actor_id, entity_type, access_type, data_scope,
			   result_count, timestamp
		FROM audit_access
		%s
		ORDER BY timestamp DESC, id DESC
		LIMIT %d OFFSET %d
	`, where, limitOf(f), f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query access records: %w", err)
	}
	defer rows.Close()

	return scanAccess(rows)
}

// ListSecurity returns security events matching the filter. The action
// filter matches the narrower event_type vocabulary.
func (s *Store) ListSecurity(ctx context.Context, f audit.Filter) ([]audit.SecurityEvent, error) {
	where, args := buildWhere(f, securityColumns)
	query := fmt.Sprintf(`
		SELECT id, actor_id, event_type, severity, description,
			   ip_address, user_agent, timestamp
		FROM audit_security
		%s
		ORDER BY timestamp DESC, id DESC
		LIMIT %d OFFSET %d
	`, where, limitOf(f), f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query security events: %w", err)
	}
	defer rows.Close()

	return scanSecurity(rows)
}

// limitOf guards direct store callers that bypass Filter.Validate.
func limitOf(f audit.Filter) int {
	if f.Limit <= 0 {
		return audit.DefaultQueryLimit
	}
	return f.Limit
}

// columnSet says which filter predicates a table supports.
type columnSet struct {
	entityType string
	entityID   string
	actorID    string
	action     string
	batchID    string
	timestamp  string
}

var (
	entryColumns = columnSet{
		entityType: "entity_type", entityID: "entity_id", actorID: "actor_id",
		action: "action", batchID: "batch_id", timestamp: "timestamp",
	}
	accessColumns = columnSet{
		entityType: "entity_type", actorID: "actor_id", timestamp: "timestamp",
	}
	securityColumns = columnSet{
		actorID: "actor_id", action: "event_type", timestamp: "timestamp",
	}
)

func buildWhere(f audit.Filter, cols columnSet) (string, []any) {
	var conds []string
	var args []any

	add := func(col, op string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf("%s %s $%d", col, op, len(args)))
	}

	if cols.entityType != "" && f.EntityType != "" {
		add(cols.entityType, "=", f.EntityType)
	}
	if cols.entityID != "" && f.EntityID != "" {
		add(cols.entityID, "=", f.EntityID)
	}
	if cols.actorID != "" && f.ActorID != nil {
		add(cols.actorID, "=", uuid.UUID(*f.ActorID))
	}
	if cols.action != "" && f.Action != "" {
		add(cols.action, "=", string(f.Action))
	}
	if cols.batchID != "" && f.BatchID != nil {
		add(cols.batchID, "=", uuid.UUID(*f.BatchID))
	}
	if !f.From.IsZero() {
		add(cols.timestamp, ">=", f.From)
	}
	if !f.To.IsZero() {
		add(cols.timestamp, "<=", f.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func scanEntries(rows *sql.Rows) ([]audit.AuditLogEntry, error) {
	entries := make([]audit.AuditLogEntry, 0)
	for rows.Next() {
		var (
			e        audit.AuditLogEntry
			entryID  uuid.UUID
			actorID  *uuid.UUID
			action   string
			severity string
			category string
			batchID  *uuid.UUID
			ts       time.Time
		)
		err := rows.Scan(
			&entryID, &e.Seq, &actorID, &action, &e.EntityType, &e.EntityID,
			&e.EntityName, &e.Description, &severity, &category,
			&e.IPAddress, &e.UserAgent, &batchID, &ts,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.ID = id.EntryID(entryID)
		e.Action = audit.Action(action)
		e.Severity = audit.Severity(severity)
		e.Category = audit.Category(category)
		e.Timestamp = ts
		if actorID != nil {
			a := id.ActorID(*actorID)
			e.ActorID = &a
		}
		if batchID != nil {
			b := id.BatchID(*batchID)
			e.BatchID = &b
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

func scanChanges(rows *sql.Rows) ([]audit.ChangeRecord, error) {
	changes := make([]audit.ChangeRecord, 0)
	for rows.Next() {
		var (
			c       audit.ChangeRecord
			entryID uuid.UUID
			action  string
		)
		err := rows.Scan(
			&entryID, &c.EntityType, &c.EntityID, &action,
			&c.FieldName, &c.OldValue, &c.NewValue, &c.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan change record: %w", err)
		}
		c.EntryID = id.EntryID(entryID)
		c.Action = audit.Action(action)
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate change records: %w", err)
	}
	return changes, nil
}

func scanAccess(rows *sql.Rows) ([]audit.DataAccessRecord, error) {
	recs := make([]audit.DataAccessRecord, 0)
	for rows.Next() {
		var (
			r          audit.DataAccessRecord
			recID      uuid.UUID
			actorID    *uuid.UUID
			accessType string
		)
		err := rows.Scan(
			&recID, &actorID, &r.EntityType, &accessType,
			&r.DataScope, &r.ResultCount, &r.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan access record: %w", err)
		}
		r.ID = id.EntryID(recID)
		r.AccessType = audit.AccessType(accessType)
		if actorID != nil {
			a := id.ActorID(*actorID)
			r.ActorID = &a
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access records: %w", err)
	}
	return recs, nil
}

func scanSecurity(rows *sql.Rows) ([]audit.SecurityEvent, error) {
	events := make([]audit.SecurityEvent, 0)
	for rows.Next() {
		var (
			ev        audit.SecurityEvent
			evID      uuid.UUID
			actorID   *uuid.UUID
			eventType string
			severity  string
		)
		err := rows.Scan(
			&evID, &actorID, &eventType, &severity,
			&ev.Description, &ev.IPAddress, &ev.UserAgent, &ev.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan security event: %w", err)
		}
		ev.ID = id.EntryID(evID)
		ev.EventType = audit.SecurityEventType(eventType)
		ev.Severity = audit.Severity(severity)
		if actorID != nil {
			a := id.ActorID(*actorID)
			ev.ActorID = &a
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate security events: %w", err)
	}
	return events, nil
}

func actorValue(actorID *id.ActorID) *uuid.UUID {
	if actorID == nil {
		return nil
	}
	u := uuid.UUID(*actorID)
	return &u
}

func batchValue(batchID *id.BatchID) *uuid.UUID {
	if batchID == nil {
		return nil
	}
	u := uuid.UUID(*batchID)
	return &u
}
