package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle/internal/audit"
	"chronicle/internal/audit/query"
	"chronicle/internal/audit/store/memory"
	"chronicle/internal/platform/logger"
	id "chronicle/pkg/domain"
)

func newTestRouter(t *testing.T, store *memory.Store) http.Handler {
	t.Helper()
	h := New(query.New(store), logger.New())
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func seedEntry(t *testing.T, store *memory.Store, entityType, entityID string, ts time.Time) audit.AuditLogEntry {
	t.Helper()
	entry, err := audit.Normalize(audit.RawEvent{
		Action:     audit.ActionCreate,
		EntityType: entityType,
		EntityID:   &entityID,
		Timestamp:  ts,
	})
	require.NoError(t, err)
	require.NoError(t, store.AppendEntry(context.Background(), entry, nil))
	return entry
}

func get(t *testing.T, router http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleEvents(t *testing.T) {
	store := memory.New()
	ts := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	seedEntry(t, store, "customer", "cust-1", ts)
	seedEntry(t, store, "invoice", "inv-1", ts.Add(time.Minute))
	router := newTestRouter(t, store)

	t.Run("unfiltered returns everything", func(t *testing.T) {
		w := get(t, router, "/audit/events")
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Items []entryDTO `json:"items"`
			Count int        `json:"count"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, 2, body.Count)
		assert.Equal(t, "invoice", body.Items[0].EntityType, "newest first")
	})

	t.Run("entity type filter", func(t *testing.T) {
		w := get(t, router, "/audit/events?entity_type=customer")
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Items []entryDTO `json:"items"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		require.Len(t, body.Items, 1)
		assert.Equal(t, "customer", body.Items[0].EntityType)
	})

	t.Run("time range filter in RFC 3339", func(t *testing.T) {
		w := get(t, router, "/audit/events?from=2026-07-01T08:00:30Z")
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, 1, body.Count)
	})

	t.Run("inverted range is a 400", func(t *testing.T) {
		w := get(t, router, "/audit/events?from=2026-07-02T00:00:00Z&to=2026-07-01T00:00:00Z")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var body map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "invalid_range", body["error"])
	})

	t.Run("malformed timestamp is a 400", func(t *testing.T) {
		w := get(t, router, "/audit/events?from=yesterday")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed actor id is a 400", func(t *testing.T) {
		w := get(t, router, "/audit/events?actor_id=not-a-uuid")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("empty result is 200 with empty items", func(t *testing.T) {
		w := get(t, router, "/audit/events?entity_type=warehouse")
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Items []entryDTO `json:"items"`
			Count int        `json:"count"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, 0, body.Count)
		assert.NotNil(t, body.Items)
	})
}

func TestHandleChanges(t *testing.T) {
	store := memory.New()
	ts := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	entry, err := audit.Normalize(audit.RawEvent{
		Action:     audit.ActionUpdate,
		EntityType: "customer",
		Timestamp:  ts,
	})
	require.NoError(t, err)
	field := "status"
	oldVal, newVal := `"active"`, `"blocked"`
	require.NoError(t, store.AppendEntry(context.Background(), entry, []audit.ChangeRecord{{
		EntryID:    entry.ID,
		EntityType: "customer",
		EntityID:   "cust-1",
		Action:     audit.ActionUpdate,
		FieldName:  &field,
		OldValue:   &oldVal,
		NewValue:   &newVal,
		Timestamp:  ts,
	}}))
	router := newTestRouter(t, store)

	w := get(t, router, "/audit/changes?entity_type=customer&entity_id=cust-1")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Items []changeDTO `json:"items"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Len(t, body.Items, 1)
	require.NotNil(t, body.Items[0].FieldName)
	assert.Equal(t, "status", *body.Items[0].FieldName)
	assert.Equal(t, `"active"`, *body.Items[0].OldValue)
	assert.Equal(t, `"blocked"`, *body.Items[0].NewValue)
}

func TestHandleAccessAndSecurity(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	ts := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendAccess(ctx, audit.DataAccessRecord{
		ID:          id.NewEntryID(),
		EntityType:  "customer",
		AccessType:  audit.AccessExport,
		DataScope:   "all",
		ResultCount: 7,
		Timestamp:   ts,
	}))
	require.NoError(t, store.AppendSecurity(ctx, audit.SecurityEvent{
		ID:        id.NewEntryID(),
		EventType: audit.SecurityPermissionDenied,
		Severity:  audit.SeverityWarning,
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		Timestamp: ts,
	}))
	router := newTestRouter(t, store)

	t.Run("access stream", func(t *testing.T) {
		w := get(t, router, "/audit/access")
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Items []accessDTO `json:"items"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		require.Len(t, body.Items, 1)
		assert.Equal(t, "export", body.Items[0].AccessType)
		assert.Equal(t, 7, body.Items[0].ResultCount)
	})

	t.Run("security stream", func(t *testing.T) {
		w := get(t, router, "/audit/security")
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Items []securityDTO `json:"items"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		require.Len(t, body.Items, 1)
		assert.Equal(t, "permission_denied", body.Items[0].EventType)
		assert.Equal(t, "Chrome 126.0.0.0 on Linux x86_64", body.Items[0].Client)
	})
}

func TestClientSummary(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want string
	}{
		{
			name: "desktop browser",
			ua:   "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			want: "Chrome 126.0.0.0 on Linux x86_64",
		},
		{name: "empty header", ua: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clientSummary(tt.ua))
		})
	}
}

func TestHandleOverview(t *testing.T) {
	store := memory.New()
	ts := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	seedEntry(t, store, "customer", "cust-1", ts)
	require.NoError(t, store.AppendSecurity(context.Background(), audit.SecurityEvent{
		ID:        id.NewEntryID(),
		EventType: audit.SecurityLogin,
		Severity:  audit.SeverityInfo,
		Timestamp: ts,
	}))
	router := newTestRouter(t, store)

	w := get(t, router, "/audit/overview")
	require.Equal(t, http.StatusOK, w.Code)

	var body overviewResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Len(t, body.Events, 1)
	assert.Len(t, body.Security, 1)
	assert.Empty(t, body.Access)
}
