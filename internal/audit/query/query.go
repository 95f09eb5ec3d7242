// Package query answers filtered, paginated reads over the four log streams.
// Read-only; independent of the write path and never locks out writers.
package query

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"chronicle/internal/audit"
)

// Store is the read-side persistence contract.
type Store interface {
	ListEntries(ctx context.Context, f audit.Filter) ([]audit.AuditLogEntry, error)
	ListChanges(ctx context.Context, f audit.Filter) ([]audit.ChangeRecord, error)
	ListAccess(ctx context.Context, f audit.Filter) ([]audit.DataAccessRecord, error)
	ListSecurity(ctx context.Context, f audit.Filter) ([]audit.SecurityEvent, error)
}

// Service exposes the compliance-grade query surface.
type Service struct {
	store  Store
	tracer trace.Tracer
}

// New creates a query service over the given store.
func New(store Store) *Service {
	return &Service{
		store:  store,
		tracer: otel.Tracer("chronicle/internal/audit/query"),
	}
}

// Overview aggregates one page of every stream for the admin dashboard.
type Overview struct {
	Entries  []audit.AuditLogEntry
	Changes  []audit.ChangeRecord
	Access   []audit.DataAccessRecord
	Security []audit.SecurityEvent
}

// AuditLog returns audit entries matching the filter, newest first.
// No matches is an empty slice, never an error.
func (s *Service) AuditLog(ctx context.Context, f audit.Filter) ([]audit.AuditLogEntry, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	ctx, span := s.span(ctx, "audit.query.events", f)
	defer span.End()

	entries, err := s.store.ListEntries(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

// ChangeHistory returns field-level change records matching the filter.
func (s *Service) ChangeHistory(ctx context.Context, f audit.Filter) ([]audit.ChangeRecord, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	ctx, span := s.span(ctx, "audit.query.changes", f)
	defer span.End()

	changes, err := s.store.ListChanges(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list change records: %w", err)
	}
	return changes, nil
}

// DataAccess returns data-access records matching the filter.
func (s *Service) DataAccess(ctx context.Context, f audit.Filter) ([]audit.DataAccessRecord, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	ctx, span := s.span(ctx, "audit.query.access", f)
	defer span.End()

	recs, err := s.store.ListAccess(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list access records: %w", err)
	}
	return recs, nil
}

// SecurityEvents returns security events matching the filter.
func (s *Service) SecurityEvents(ctx context.Context, f audit.Filter) ([]audit.SecurityEvent, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	ctx, span := s.span(ctx, "audit.query.security", f)
	defer span.End()

	events, err := s.store.ListSecurity(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list security events: %w", err)
	}
	return events, nil
}

// All fans out to the four streams concurrently and assembles an Overview.
func (s *Service) All(ctx context.Context, f audit.Filter) (Overview, error) {
	if err := f.Validate(); err != nil {
		return Overview{}, err
	}
	ctx, span := s.span(ctx, "audit.query.overview", f)
	defer span.End()

	var ov Overview
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		ov.Entries, err = s.store.ListEntries(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		ov.Changes, err = s.store.ListChanges(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		ov.Access, err = s.store.ListAccess(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		ov.Security, err = s.store.ListSecurity(gctx, f)
		return err
	})

	if err := g.Wait(); err != nil {
		return Overview{}, fmt.Errorf("assemble overview: %w", err)
	}
	return ov, nil
}

func (s *Service) span(ctx context.Context, name string, f audit.Filter) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name,
		trace.WithAttributes(
			attribute.String("audit.filter.entity_type", f.EntityType),
			attribute.Int("audit.filter.limit", f.Limit),
		))
}
