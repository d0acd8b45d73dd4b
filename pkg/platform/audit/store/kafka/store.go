// Package kafka ships audit events to a Kafka topic for downstream
// retention and analysis.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "relay/pkg/platform/audit"
	"relay/pkg/platform/circuit"
)

// ErrCircuitOpen is returned by Append while the broker is considered down.
var ErrCircuitOpen = errors.New("kafka audit sink circuit open")

// payload is the JSON document written as the record value.
type payload struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
	TicketID  int64  `json:"ticket_id,omitempty"`
	Subject   string `json:"subject,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
	EventID   string `json:"event_id,omitempty"`
}

// Store produces each audit event as one record keyed by ticket ID, so a
// ticket's trail stays ordered within its partition.
type Store struct {
	client  *kgo.Client
	topic   string
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithBreaker overrides the default breaker (5 failures to open, 2
// successes to close).
func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Store) {
		s.breaker = b
	}
}

// New connects a producer to brokers. The connection is lazy; use
// EnsureTopic to fail fast on unreachable brokers.
func New(brokers []string, topic string, opts ...Option) (*Store, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerLinger(5*time.Millisecond),
		kgo.RecordRetries(3),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	s := &Store{
		client:  client,
		topic:   topic,
		breaker: circuit.New("kafka-audit"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EnsureTopic creates the audit topic if it does not exist.
func (s *Store) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	adm := kadm.NewClient(s.client)
	resp, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, s.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", s.topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Append produces event synchronously. While the breaker is open, records
// are still attempted as probes but failures return ErrCircuitOpen so
// callers can tell a known outage from a fresh one.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	rec, err := s.record(event)
	if err != nil {
		return err
	}
	if err := s.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		if useFallback, change := s.breaker.RecordFailure(); useFallback {
			if change.Opened {
				s.logger.WarnContext(ctx, "kafka audit sink circuit opened", "error", err)
			}
			return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return fmt.Errorf("produce audit event: %w", err)
	}
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.logger.InfoContext(ctx, "kafka audit sink circuit closed")
	}
	return nil
}

func (s *Store) record(event audit.Event) (*kgo.Record, error) {
	value, err := json.Marshal(payload{
		ID:        event.ID.String(),
		Category:  string(event.Category),
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
		Action:    event.Action,
		TicketID:  event.TicketID,
		Subject:   event.Subject,
		ActorID:   event.ActorID,
		Reason:    event.Reason,
		EventID:   event.EventID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal audit payload: %w", err)
	}
	key := []byte(event.Action)
	if event.TicketID != 0 {
		key = []byte(strconv.FormatInt(event.TicketID, 10))
	}
	return &kgo.Record{Topic: s.topic, Key: key, Value: value}, nil
}

// Close flushes buffered records and closes the client.
func (s *Store) Close(ctx context.Context) error {
	err := s.client.Flush(ctx)
	s.client.Close()
	return err
}
