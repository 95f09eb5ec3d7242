//go:build integration

package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"chronicle/internal/audit"
	"chronicle/internal/platform/logger"
	id "chronicle/pkg/domain"
	"chronicle/pkg/testutil/containers"
)

func TestSink_Integration(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	ctx := context.Background()

	sinkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	sink, err := New(sinkCtx, []string{rp.Broker}, "", logger.New())
	require.NoError(t, err)
	defer sink.Close()

	actorID, err := id.ParseActorID("0198c5d2-7f3a-7bbb-8d10-3d6a1f0a9e01")
	require.NoError(t, err)

	ev := audit.SecurityEvent{
		ID:          id.NewEntryID(),
		ActorID:     &actorID,
		EventType:   audit.SecurityLoginFailed,
		Severity:    audit.SeverityWarning,
		Description: "third failed attempt",
		IPAddress:   "203.0.113.7",
		Timestamp:   time.Now().UTC(),
	}
	require.NoError(t, sink.Forward(ctx, ev))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics(DefaultTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetchCtx, cancelFetch := context.WithTimeout(ctx, 30*time.Second)
	defer cancelFetch()
	fetches := consumer.PollFetches(fetchCtx)
	require.NoError(t, fetches.Err())

	records := fetches.Records()
	require.Len(t, records, 1)
	assert.Equal(t, ev.ID.String(), string(records[0].Key))

	var got struct {
		ID        string `json:"id"`
		ActorID   string `json:"actor_id"`
		EventType string `json:"event_type"`
		Severity  string `json:"severity"`
	}
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, ev.ID.String(), got.ID)
	assert.Equal(t, actorID.String(), got.ActorID)
	assert.Equal(t, "login_failed", got.EventType)
	assert.Equal(t, "warning", got.Severity)
}
