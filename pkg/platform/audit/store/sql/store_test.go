package sql

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"relay/internal/platform/config"
	"relay/internal/platform/database"
	audit "relay/pkg/platform/audit"
)

type StoreSuite struct {
	suite.Suite
	store *Store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	db, err := database.Open(context.Background(), config.StorageConfig{
		Driver: config.DriverSQLite,
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(s.T().Name(), "/", "_")),
	}, nil)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = db.Close() })
	s.store = New(db)
}

func (s *StoreSuite) TestAppendAndListByTicket() {
	ctx := context.Background()
	t0 := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)

	created := audit.Event{
		ID: uuid.New(), Category: audit.CategoryModeration, Timestamp: t0,
		Action: string(audit.EventTicketCreated), TicketID: 1, Subject: "hash", EventID: "evt-1",
	}
	approved := audit.Event{
		ID: uuid.New(), Category: audit.CategoryModeration, Timestamp: t0.Add(time.Minute),
		Action: string(audit.EventTicketApproved), TicketID: 1, ActorID: "mod-1",
	}
	unrelated := audit.Event{
		ID: uuid.New(), Category: audit.CategoryConfiguration, Timestamp: t0,
		Action: string(audit.EventSettingChanged), Reason: "greeting.user",
	}

	for _, e := range []audit.Event{approved, created, unrelated} {
		s.Require().NoError(s.store.Append(ctx, e))
	}

	events, err := s.store.ListByTicket(ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(created.ID, events[0].ID)
	s.Equal("hash", events[0].Subject)
	s.Equal("evt-1", events[0].EventID)
	s.Equal(approved.Action, events[1].Action)
	s.Equal("mod-1", events[1].ActorID)
	s.True(approved.Timestamp.Equal(events[1].Timestamp))
}

func (s *StoreSuite) TestAppendIsIdempotentByID() {
	ctx := context.Background()
	e := audit.Event{ID: uuid.New(), Timestamp: time.Now(), Action: string(audit.EventTicketRejected), TicketID: 1}

	s.Require().NoError(s.store.Append(ctx, e))
	s.Require().NoError(s.store.Append(ctx, e))

	events, err := s.store.ListByTicket(ctx, 1)
	s.Require().NoError(err)
	s.Len(events, 1)
}
