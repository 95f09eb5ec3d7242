// Package service exposes the collaborator-facing API of the audit core.
//
// One Service instance is constructed at process start and injected into
// every component that emits events; there is no package-level singleton.
// Business code calls the Log* methods after its primary mutation has
// committed, so a cancelled or rolled-back operation never leaves a trail.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chronicle/internal/audit"
	"chronicle/internal/audit/batch"
	"chronicle/internal/audit/diff"
	"chronicle/internal/audit/recorder"
	id "chronicle/pkg/domain"
	dErrors "chronicle/pkg/domain-errors"
	"chronicle/pkg/requestcontext"
)

// Actor describes who is acting, with the network context captured by
// middleware. A zero Actor is a system action.
type Actor struct {
	ID        *id.ActorID
	Name      string
	IP        string
	UserAgent string
}

// ActorFromContext assembles an Actor from request-scoped values.
func ActorFromContext(ctx context.Context) Actor {
	actor := Actor{
		Name:      requestcontext.ActorName(ctx),
		IP:        requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
	}
	if actorID := requestcontext.ActorID(ctx); !actorID.IsNil() {
		actor.ID = &actorID
	}
	return actor
}

// SystemActor is the actor for actions no user initiated.
func SystemActor() Actor { return Actor{} }

// Service is the audit core's front door.
type Service struct {
	recorder   *recorder.Recorder
	correlator batch.Correlator
	logger     *slog.Logger
	ignored    []string
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the diagnostics logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithIgnoredFields sets housekeeping fields excluded from every diff,
// e.g. "updatedAt".
func WithIgnoredFields(names ...string) Option {
	return func(s *Service) { s.ignored = names }
}

// New creates the audit service.
func New(rec *recorder.Recorder, correlator batch.Correlator, opts ...Option) *Service {
	s := &Service{
		recorder:   rec,
		correlator: correlator,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LogOption tags an individual log call.
type LogOption func(*logOptions)

type logOptions struct {
	batchID    *id.BatchID
	entityName *string
}

// InBatch tags the entry with a bulk operation's correlation id and counts
// the row as a success against that batch.
func InBatch(batchID id.BatchID) LogOption {
	return func(o *logOptions) { o.batchID = &batchID }
}

// WithEntityName denormalizes a display label onto the entry.
func WithEntityName(name string) LogOption {
	return func(o *logOptions) { o.entityName = &name }
}

// LogCreate records the creation of an entity. Every non-nil field of the
// new state yields one change record with a null old value.
//
// Errors indicate caller mistakes (missing entity type); persistence
// degradation is reported through the Ack only.
func (s *Service) LogCreate(ctx context.Context, actor Actor, entityType, entityID string, newState diff.Snapshot, opts ...LogOption) (recorder.Ack, error) {
	changes, diffErr := diff.Diff(nil, newState, diff.WithIgnoredFields(s.ignored...))
	s.noteDiffErr(ctx, diffErr, entityType, entityID)

	return s.logMutation(ctx, actor, audit.ActionCreate, entityType, entityID, changes,
		fmt.Sprintf("created %s %s", entityType, entityID), opts)
}

// LogUpdate diffs the before/after state and records the entry with one
// change record per differing field. An update that changed nothing (after
// the ignore list) records nothing: no data changed, no trail. Under a bulk
// batch the no-op row still counts as one processed success, so the batch
// summary accounts for every row handed to the importer.
func (s *Service) LogUpdate(ctx context.Context, actor Actor, entityType, entityID string, oldState, newState diff.Snapshot, opts ...LogOption) (recorder.Ack, error) {
	changes, diffErr := diff.Diff(oldState, newState, diff.WithIgnoredFields(s.ignored...))
	s.noteDiffErr(ctx, diffErr, entityType, entityID)

	if len(changes) == 0 {
		var lo logOptions
		for _, opt := range opts {
			opt(&lo)
		}
		if lo.batchID != nil {
			if err := s.correlator.RecordRow(ctx, *lo.batchID, batch.OutcomeSuccess); err != nil {
				return recorder.Ack{}, err
			}
		}
		return recorder.Ack{Status: recorder.StatusOK}, nil
	}

	return s.logMutation(ctx, actor, audit.ActionUpdate, entityType, entityID, changes,
		fmt.Sprintf("updated %s %s: %d field(s) changed", entityType, entityID, len(changes)), opts)
}

// LogDelete records the deletion of an entity, mirroring LogCreate: one
// change record per retained field with a null new value.
func (s *Service) LogDelete(ctx context.Context, actor Actor, entityType, entityID string, oldState diff.Snapshot, opts ...LogOption) (recorder.Ack, error) {
	changes, diffErr := diff.Diff(oldState, nil, diff.WithIgnoredFields(s.ignored...))
	s.noteDiffErr(ctx, diffErr, entityType, entityID)

	return s.logMutation(ctx, actor, audit.ActionDelete, entityType, entityID, changes,
		fmt.Sprintf("deleted %s %s", entityType, entityID), opts)
}

func (s *Service) logMutation(ctx context.Context, actor Actor, action audit.Action, entityType, entityID string, fieldChanges []diff.FieldChange, description string, opts []LogOption) (recorder.Ack, error) {
	var lo logOptions
	for _, opt := range opts {
		opt(&lo)
	}

	entry, err := audit.Normalize(audit.RawEvent{
		ActorID:     actor.ID,
		Action:      action,
		EntityType:  entityType,
		EntityID:    strPtr(entityID),
		EntityName:  lo.entityName,
		Description: description,
		IPAddress:   actor.IP,
		UserAgent:   actor.UserAgent,
		BatchID:     lo.batchID,
	})
	if err != nil {
		return recorder.Ack{}, err
	}

	records := make([]audit.ChangeRecord, 0, len(fieldChanges))
	for _, fc := range fieldChanges {
		name := fc.FieldName
		records = append(records, audit.ChangeRecord{
			EntryID:    entry.ID,
			EntityType: entityType,
			EntityID:   entityID,
			Action:     action,
			FieldName:  &name,
			OldValue:   diff.EncodeValue(fc.OldValue),
			NewValue:   diff.EncodeValue(fc.NewValue),
			Timestamp:  entry.Timestamp,
		})
	}

	_, ack := s.recorder.Record(ctx, entry, records)

	// A row logged under a batch counts as one processed success.
	if lo.batchID != nil {
		if err := s.correlator.RecordRow(ctx, *lo.batchID, batch.OutcomeSuccess); err != nil {
			return recorder.Ack{}, err
		}
	}
	return ack, nil
}

// LogAccess records one sensitive read: a full list, a detail view, or an
// export. ResultCount is the number of rows returned to the caller.
func (s *Service) LogAccess(ctx context.Context, actor Actor, entityType string, accessType audit.AccessType, scope string, resultCount int) (recorder.Ack, error) {
	if entityType == "" {
		return recorder.Ack{}, errInvalid("access entity type is required")
	}

	rec := audit.DataAccessRecord{
		ID:          id.NewEntryID(),
		ActorID:     actor.ID,
		EntityType:  entityType,
		AccessType:  accessType,
		DataScope:   scope,
		ResultCount: resultCount,
		Timestamp:   now(),
	}
	return s.recorder.RecordAccess(ctx, rec), nil
}

// LogSecurityEvent records an authentication/authorization-relevant
// occurrence. A zero severity takes the canonical default for the type.
func (s *Service) LogSecurityEvent(ctx context.Context, actor Actor, eventType audit.SecurityEventType, severity audit.Severity, description string) (recorder.Ack, error) {
	if eventType == "" {
		return recorder.Ack{}, errInvalid("security event type is required")
	}
	if severity == "" {
		severity = audit.SecuritySeverityOf(eventType)
	}

	ev := audit.SecurityEvent{
		ID:          id.NewEntryID(),
		ActorID:     actor.ID,
		EventType:   eventType,
		Severity:    severity,
		Description: description,
		IPAddress:   actor.IP,
		UserAgent:   actor.UserAgent,
		Timestamp:   now(),
	}
	return s.recorder.RecordSecurityEvent(ctx, ev), nil
}

// BeginBulkBatch opens a correlation scope for a multi-row operation.
func (s *Service) BeginBulkBatch(ctx context.Context, actor Actor) (id.BatchID, error) {
	batchID, err := s.correlator.Begin(ctx)
	if err != nil {
		return id.BatchID{}, fmt.Errorf("begin bulk batch: %w", err)
	}
	s.logger.DebugContext(ctx, "bulk batch begun",
		"batch_id", batchID,
		"actor", actorLabel(actor),
	)
	return batchID, nil
}

// RecordRowFailure counts one failed row against the batch. Failed rows
// never mutated data, so they produce no entry of their own; they surface in
// the terminal summary.
func (s *Service) RecordRowFailure(ctx context.Context, batchID id.BatchID) error {
	return s.correlator.RecordRow(ctx, batchID, batch.OutcomeFailure)
}

// FinishBulkBatch closes the batch and persists its summary as the one
// terminal entry of action import, tagged with the batch id. The summary is
// info severity when every row succeeded and warning otherwise.
func (s *Service) FinishBulkBatch(ctx context.Context, actor Actor, batchID id.BatchID, entityType string) (audit.BatchSummary, error) {
	summary, err := s.correlator.Finish(ctx, batchID)
	if err != nil {
		return audit.BatchSummary{}, err
	}

	var override audit.Severity
	if summary.Failed > 0 {
		override = audit.SeverityWarning
	}

	entry, err := audit.Normalize(audit.RawEvent{
		ActorID:    actor.ID,
		Action:     audit.ActionImport,
		EntityType: entityType,
		Description: fmt.Sprintf("bulk import finished: %d attempted, %d succeeded, %d failed",
			summary.Attempted, summary.Succeeded, summary.Failed),
		IPAddress:        actor.IP,
		UserAgent:        actor.UserAgent,
		BatchID:          &batchID,
		SeverityOverride: override,
	})
	if err != nil {
		return audit.BatchSummary{}, err
	}

	if _, ack := s.recorder.Record(ctx, entry, nil); ack.Degraded() {
		s.logger.WarnContext(ctx, "bulk import summary not persisted",
			"batch_id", batchID,
			"reason", ack.Reason,
		)
	}
	return summary, nil
}

func (s *Service) noteDiffErr(ctx context.Context, diffErr error, entityType, entityID string) {
	if diffErr == nil {
		return
	}
	// Type mismatches degrade to whole-field replacement; worth a line in
	// the diagnostics, never an abort.
	if errors.Is(diffErr, diff.ErrTypeMismatch) {
		s.logger.WarnContext(ctx, "diff type mismatch, recording whole-field replacement",
			"entity_type", entityType,
			"entity_id", entityID,
			"detail", diffErr.Error(),
		)
	}
}

func actorLabel(actor Actor) string {
	if actor.ID != nil {
		return actor.ID.String()
	}
	if actor.Name != "" {
		return actor.Name
	}
	return "system"
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func errInvalid(msg string) error {
	return dErrors.New(dErrors.CodeInvalidInput, msg)
}

func now() time.Time { return time.Now() }
