// Package kafka forwards security events to a broker for SIEM consumption.
//
// Forwarding mirrors what the recorder already persisted; it is strictly
// best-effort and a broker outage costs monitoring freshness, never audit
// durability.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"chronicle/internal/audit"
)

// DefaultTopic is the security event stream topic.
const DefaultTopic = "chronicle.audit.security"

// Sink publishes security events to Kafka.
type Sink struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// New connects to the brokers and ensures the topic exists. The topic is
// created with one partition; SIEM consumers care about completeness, not
// parallelism.
func New(ctx context.Context, brokers []string, topic string, logger *slog.Logger) (*Sink, error) {
	if topic == "" {
		topic = DefaultTopic
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RecordDeliveryTimeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}

	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, 1, 1, nil, topic)
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("ensure topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("ensure topic %s: %w", topic, resp.Err)
	}

	logger.Info("security event sink connected", "topic", topic, "brokers", brokers)
	return &Sink{client: client, topic: topic, logger: logger}, nil
}

// payload is the JSON shape consumers deserialize.
type payload struct {
	ID          string `json:"id"`
	ActorID     string `json:"actor_id,omitempty"`
	EventType   string `json:"event_type"`
	Severity    string `json:"severity"`
	Description string `json:"description,omitempty"`
	IPAddress   string `json:"ip_address,omitempty"`
	UserAgent   string `json:"user_agent,omitempty"`
	Timestamp   string `json:"timestamp"`
}

// Forward publishes one security event, keyed by event id so replays
// deduplicate downstream.
func (s *Sink) Forward(ctx context.Context, ev audit.SecurityEvent) error {
	p := payload{
		ID:          ev.ID.String(),
		EventType:   string(ev.EventType),
		Severity:    string(ev.Severity),
		Description: ev.Description,
		IPAddress:   ev.IPAddress,
		UserAgent:   ev.UserAgent,
		Timestamp:   ev.Timestamp.Format(time.RFC3339Nano),
	}
	if ev.ActorID != nil {
		p.ActorID = ev.ActorID.String()
	}

	value, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal security event: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(p.ID),
		Value: value,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce security event: %w", err)
	}
	return nil
}

// Close flushes and releases the broker connection.
func (s *Sink) Close() {
	s.client.Close()
}
