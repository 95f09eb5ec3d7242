package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "chronicle/pkg/domain"
	dErrors "chronicle/pkg/domain-errors"
)

func mustActorID(t *testing.T) id.ActorID {
	t.Helper()
	actorID, err := id.ParseActorID("0198c5d2-7f3a-7bbb-8d10-3d6a1f0a9e01")
	require.NoError(t, err)
	return actorID
}

func TestFilter_Validate(t *testing.T) {
	t.Run("start after end rejected", func(t *testing.T) {
		f := Filter{
			From: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		}
		err := f.Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidRange))
	})

	t.Run("zero limit defaults", func(t *testing.T) {
		f := Filter{}
		require.NoError(t, f.Validate())
		assert.Equal(t, DefaultQueryLimit, f.Limit)
	})

	t.Run("oversized limit clamped", func(t *testing.T) {
		f := Filter{Limit: 100000}
		require.NoError(t, f.Validate())
		assert.Equal(t, MaxQueryLimit, f.Limit)
	})

	t.Run("negative offset normalized", func(t *testing.T) {
		f := Filter{Offset: -5}
		require.NoError(t, f.Validate())
		assert.Equal(t, 0, f.Offset)
	})
}

func TestFilter_Matches(t *testing.T) {
	ts := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	entry := AuditLogEntry{
		Action:     ActionUpdate,
		EntityType: "customer",
		EntityID:   strp("cust-1"),
		Timestamp:  ts,
	}

	t.Run("empty filter matches everything", func(t *testing.T) {
		assert.True(t, Filter{}.Matches(entry))
	})

	t.Run("entity type mismatch", func(t *testing.T) {
		assert.False(t, Filter{EntityType: "invoice"}.Matches(entry))
	})

	t.Run("range bounds inclusive of interior", func(t *testing.T) {
		f := Filter{From: ts.Add(-time.Hour), To: ts.Add(time.Hour)}
		assert.True(t, f.Matches(entry))

		f = Filter{From: ts.Add(time.Minute)}
		assert.False(t, f.Matches(entry))
	})

	t.Run("actor filter requires an actor", func(t *testing.T) {
		actorID := mustActorID(t)
		assert.False(t, Filter{ActorID: &actorID}.Matches(entry))

		withActor := entry
		withActor.ActorID = &actorID
		assert.True(t, Filter{ActorID: &actorID}.Matches(withActor))
	})
}

func strp(s string) *string { return &s }
