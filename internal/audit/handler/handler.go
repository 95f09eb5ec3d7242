// Package handler wires the read-only audit console endpoints. All routes
// are GET; the write path never goes through HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"chronicle/internal/audit"
	"chronicle/internal/audit/query"
	id "chronicle/pkg/domain"
	dErrors "chronicle/pkg/domain-errors"
	"chronicle/pkg/platform/httputil"
	"chronicle/pkg/requestcontext"
)

// Service defines the query operations the handler needs.
type Service interface {
	AuditLog(ctx context.Context, f audit.Filter) ([]audit.AuditLogEntry, error)
	ChangeHistory(ctx context.Context, f audit.Filter) ([]audit.ChangeRecord, error)
	DataAccess(ctx context.Context, f audit.Filter) ([]audit.DataAccessRecord, error)
	SecurityEvents(ctx context.Context, f audit.Filter) ([]audit.SecurityEvent, error)
	All(ctx context.Context, f audit.Filter) (query.Overview, error)
}

// Handler wires audit query endpoints to the query service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an audit handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts audit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/audit/events", h.HandleEvents)
	r.Get("/audit/changes", h.HandleChanges)
	r.Get("/audit/access", h.HandleAccess)
	r.Get("/audit/security", h.HandleSecurity)
	r.Get("/audit/overview", h.HandleOverview)
}

// HandleEvents handles GET /audit/events requests.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := filterFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entries, err := h.service.AuditLog(ctx, f)
	if err != nil {
		h.fail(ctx, w, "audit log query failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse[entryDTO]{
		Items: mapSlice(entries, entryFromModel),
		Count: len(entries),
	})
}

// HandleChanges handles GET /audit/changes requests.
func (h *Handler) HandleChanges(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := filterFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	changes, err := h.service.ChangeHistory(ctx, f)
	if err != nil {
		h.fail(ctx, w, "change history query failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse[changeDTO]{
		Items: mapSlice(changes, changeFromModel),
		Count: len(changes),
	})
}

// HandleAccess handles GET /audit/access requests.
func (h *Handler) HandleAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := filterFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	recs, err := h.service.DataAccess(ctx, f)
	if err != nil {
		h.fail(ctx, w, "data access query failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse[accessDTO]{
		Items: mapSlice(recs, accessFromModel),
		Count: len(recs),
	})
}

// HandleSecurity handles GET /audit/security requests.
func (h *Handler) HandleSecurity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := filterFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	events, err := h.service.SecurityEvents(ctx, f)
	if err != nil {
		h.fail(ctx, w, "security events query failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse[securityDTO]{
		Items: mapSlice(events, securityFromModel),
		Count: len(events),
	})
}

// HandleOverview handles GET /audit/overview requests: one page of every
// stream in a single response for the console landing view.
func (h *Handler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := filterFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	ov, err := h.service.All(ctx, f)
	if err != nil {
		h.fail(ctx, w, "overview query failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, overviewResponse{
		Events:   mapSlice(ov.Entries, entryFromModel),
		Changes:  mapSlice(ov.Changes, changeFromModel),
		Access:   mapSlice(ov.Access, accessFromModel),
		Security: mapSlice(ov.Security, securityFromModel),
	})
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}

// filterFromQuery parses the shared filter vocabulary from URL query
// parameters. Unknown parameters are ignored; malformed ones are rejected.
func filterFromQuery(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	var f audit.Filter

	f.EntityType = q.Get("entity_type")
	f.EntityID = q.Get("entity_id")
	f.Action = audit.Action(q.Get("action"))

	if raw := q.Get("actor_id"); raw != "" {
		actorID, err := id.ParseActorID(raw)
		if err != nil {
			return f, dErrors.New(dErrors.CodeInvalidInput, "invalid actor_id")
		}
		f.ActorID = &actorID
	}
	if raw := q.Get("batch_id"); raw != "" {
		batchID, err := id.ParseBatchID(raw)
		if err != nil {
			return f, dErrors.New(dErrors.CodeInvalidInput, "invalid batch_id")
		}
		f.BatchID = &batchID
	}
	if raw := q.Get("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, dErrors.New(dErrors.CodeInvalidInput, "invalid from timestamp, expected RFC 3339")
		}
		f.From = ts
	}
	if raw := q.Get("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, dErrors.New(dErrors.CodeInvalidInput, "invalid to timestamp, expected RFC 3339")
		}
		f.To = ts
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, dErrors.New(dErrors.CodeInvalidInput, "invalid limit")
		}
		f.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, dErrors.New(dErrors.CodeInvalidInput, "invalid offset")
		}
		f.Offset = n
	}

	return f, nil
}

func mapSlice[T, U any](in []T, fn func(T) U) []U {
	out := make([]U, len(in))
	for i, v := range in {
		out[i] = fn(v)
	}
	return out
}
