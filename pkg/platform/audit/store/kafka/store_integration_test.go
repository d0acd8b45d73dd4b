//go:build integration

package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "relay/pkg/platform/audit"
	"relay/pkg/testutil/containers"
)

type KafkaStoreSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
}

func TestKafkaStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaStoreSuite))
}

func (s *KafkaStoreSuite) SetupSuite() {
	s.redpanda = containers.GetManager().GetRedpanda(s.T())
}

func (s *KafkaStoreSuite) TestAppendProducesConsumableRecord() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	topic := "relay.audit." + uuid.NewString()

	store, err := New(s.redpanda.Brokers, topic)
	s.Require().NoError(err)
	defer func() { _ = store.Close(ctx) }()

	s.Require().NoError(store.EnsureTopic(ctx, 1, 1))
	s.Require().NoError(store.EnsureTopic(ctx, 1, 1), "existing topic is not an error")

	event := audit.Event{
		ID: uuid.New(), Category: audit.CategoryModeration, Timestamp: time.Now(),
		Action: string(audit.EventTicketCreated), TicketID: 9, Subject: "hash",
	}
	s.Require().NoError(store.Append(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().Empty(fetches.Errors())
	records := fetches.Records()
	s.Require().Len(records, 1)
	s.Equal("9", string(records[0].Key))

	var p payload
	s.Require().NoError(json.Unmarshal(records[0].Value, &p))
	s.Equal(event.ID.String(), p.ID)
	s.Equal("ticket_created", p.Action)
}
