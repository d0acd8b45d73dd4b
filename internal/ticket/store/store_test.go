package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"relay/internal/platform/config"
	"relay/internal/platform/database"
	"relay/internal/ticket/models"
	"relay/pkg/platform/sentinel"
)

// Store is the behaviour shared by every ticket backend.
type Store interface {
	CreateTicket(ctx context.Context, t *models.Ticket) (models.ID, error)
	RecordDelivery(ctx context.Context, c models.DeliveredCopy) error
	GetTicketForDecision(ctx context.Context, id models.ID) (*models.Ticket, error)
	FindTicket(ctx context.Context, id models.ID) (*models.Ticket, error)
	CloseTicket(ctx context.Context, id models.ID, c models.Closure) (models.Status, error)
	ListDeliveries(ctx context.Context, id models.ID) ([]models.DeliveredCopy, error)
}

var (
	_ Store = (*InMemoryStore)(nil)
	_ Store = (*SQLStore)(nil)
)

// StoreSuite runs the same contract against any backend.
type StoreSuite struct {
	suite.Suite
	newStore func(t *testing.T) Store
	store    Store
}

func (s *StoreSuite) SetupTest() {
	s.store = s.newStore(s.T())
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func(*testing.T) Store { return NewInMemory() }})
}

func TestSQLiteStoreSuite(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func(t *testing.T) Store {
		db, err := database.Open(context.Background(), config.StorageConfig{
			Driver: config.DriverSQLite,
			DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")),
		}, nil)
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { _ = db.Close() })
		return NewSQL(db)
	}})
}

var baseTime = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func (s *StoreSuite) createTicket(mode models.DisclosureMode, sig *string) models.ID {
	t, err := models.NewTicket("submitter-1", mode, sig, baseTime)
	s.Require().NoError(err)
	id, err := s.store.CreateTicket(context.Background(), t)
	s.Require().NoError(err)
	return id
}

func (s *StoreSuite) TestCreateAssignsIncreasingIDs() {
	first := s.createTicket(models.DisclosureAnonymous, nil)
	second := s.createTicket(models.DisclosureAnonymous, nil)
	s.Greater(int64(second), int64(first))
}

func (s *StoreSuite) TestCreateAndFindRoundTrip() {
	sig := "Author: Ann"
	id := s.createTicket(models.DisclosureNamed, &sig)

	got, err := s.store.GetTicketForDecision(context.Background(), id)
	s.Require().NoError(err)
	s.Equal(id, got.ID)
	s.Equal("submitter-1", got.SubmitterID)
	s.Equal(models.StatusPending, got.Status)
	s.Equal(models.DisclosureNamed, got.DisclosureMode)
	s.Require().NotNil(got.CustomSignature)
	s.Equal(sig, *got.CustomSignature)
	s.True(baseTime.Equal(got.CreatedAt))
	s.Nil(got.ClosedAt)
	s.Empty(got.ClosedBy)
}

func (s *StoreSuite) TestFindUnknownTicket() {
	_, err := s.store.FindTicket(context.Background(), 999)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestCloseTicket() {
	ctx := context.Background()
	id := s.createTicket(models.DisclosureAnonymous, nil)
	closure := models.Closure{ModeratorID: "mod-1", Outcome: models.OutcomeApproved, At: baseTime.Add(time.Minute)}

	s.Run("first close sees pending", func() {
		prev, err := s.store.CloseTicket(ctx, id, closure)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, prev)
	})

	s.Run("second close sees closed and keeps the first closure", func() {
		prev, err := s.store.CloseTicket(ctx, id, models.Closure{ModeratorID: "mod-2", Outcome: models.OutcomeRejected, At: baseTime.Add(time.Hour)})
		s.Require().NoError(err)
		s.Equal(models.StatusClosed, prev)

		got, err := s.store.FindTicket(ctx, id)
		s.Require().NoError(err)
		s.Equal(models.StatusClosed, got.Status)
		s.Equal("mod-1", got.ClosedBy)
		s.Equal(models.OutcomeApproved, got.Outcome)
		s.Require().NotNil(got.ClosedAt)
		s.True(closure.At.Equal(*got.ClosedAt))
	})

	s.Run("unknown ticket", func() {
		_, err := s.store.CloseTicket(ctx, 12345, closure)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestConcurrentCloseSingleWinner verifies that of many concurrent close
// attempts exactly one observes Pending.
func (s *StoreSuite) TestConcurrentCloseSingleWinner() {
	ctx := context.Background()
	id := s.createTicket(models.DisclosureAnonymous, nil)
	const goroutines = 20

	var wg sync.WaitGroup
	var pendingCount atomic.Int32
	var closedCount atomic.Int32
	var errCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			prev, err := s.store.CloseTicket(ctx, id, models.Closure{
				ModeratorID: fmt.Sprintf("mod-%d", i),
				Outcome:     models.OutcomeRejected,
				At:          baseTime,
			})
			switch {
			case err != nil:
				errCount.Add(1)
			case prev == models.StatusPending:
				pendingCount.Add(1)
			case prev == models.StatusClosed:
				closedCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(0), errCount.Load())
	s.Equal(int32(1), pendingCount.Load(), "exactly one close should win")
	s.Equal(int32(goroutines-1), closedCount.Load())
}

func (s *StoreSuite) TestDeliveries() {
	ctx := context.Background()
	id := s.createTicket(models.DisclosureAnonymous, nil)
	other := s.createTicket(models.DisclosureAnonymous, nil)

	s.Require().NoError(s.store.RecordDelivery(ctx, models.DeliveredCopy{TicketID: id, ModeratorID: "mod-1", Handle: "c1:m1", DeliveredAt: baseTime}))
	s.Require().NoError(s.store.RecordDelivery(ctx, models.DeliveredCopy{TicketID: id, ModeratorID: "mod-2", Handle: "c2:m2", DeliveredAt: baseTime.Add(time.Second)}))
	s.Require().NoError(s.store.RecordDelivery(ctx, models.DeliveredCopy{TicketID: other, ModeratorID: "mod-1", Handle: "c1:m9", DeliveredAt: baseTime}))

	s.Run("duplicate delivery is a conflict", func() {
		err := s.store.RecordDelivery(ctx, models.DeliveredCopy{TicketID: id, ModeratorID: "mod-1", Handle: "c1:m3", DeliveredAt: baseTime})
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("delivery for unknown ticket", func() {
		err := s.store.RecordDelivery(ctx, models.DeliveredCopy{TicketID: 4242, ModeratorID: "mod-1", Handle: "h", DeliveredAt: baseTime})
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("list returns only this ticket's copies", func() {
		got, err := s.store.ListDeliveries(ctx, id)
		s.Require().NoError(err)
		s.Require().Len(got, 2)
		s.Equal("mod-1", got[0].ModeratorID)
		s.Equal("c1:m1", got[0].Handle)
		s.Equal("mod-2", got[1].ModeratorID)
	})

	s.Run("ticket with no deliveries", func() {
		third := s.createTicket(models.DisclosureAnonymous, nil)
		got, err := s.store.ListDeliveries(ctx, third)
		s.Require().NoError(err)
		s.Empty(got)
	})
}

func (s *StoreSuite) TestSourceRefNamesOneTicket() {
	ctx := context.Background()
	first, err := models.NewTicket("submitter-1", models.DisclosureAnonymous, nil, baseTime)
	s.Require().NoError(err)
	first.SourceRef = "dm-1/100"
	id, err := s.store.CreateTicket(ctx, first)
	s.Require().NoError(err)

	s.Run("repeat source is a conflict", func() {
		sig := "Author: Ann"
		again, err := models.NewTicket("submitter-1", models.DisclosureNamed, &sig, baseTime)
		s.Require().NoError(err)
		again.SourceRef = "dm-1/100"
		_, err = s.store.CreateTicket(ctx, again)
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("source round trips", func() {
		got, err := s.store.FindTicket(ctx, id)
		s.Require().NoError(err)
		s.Equal("dm-1/100", got.SourceRef)
	})

	s.Run("tickets without a source do not collide", func() {
		a := s.createTicket(models.DisclosureAnonymous, nil)
		b := s.createTicket(models.DisclosureAnonymous, nil)
		s.NotEqual(a, b)
	})
}

// TestConcurrentCreateSameSourceSingleWinner verifies that of many
// concurrent creates for one source exactly one is stored.
func (s *StoreSuite) TestConcurrentCreateSameSourceSingleWinner() {
	ctx := context.Background()
	const goroutines = 10

	var wg sync.WaitGroup
	var created atomic.Int32
	var conflicts atomic.Int32
	var errCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t, err := models.NewTicket("submitter-1", models.DisclosureAnonymous, nil, baseTime)
			if err != nil {
				errCount.Add(1)
				return
			}
			t.SourceRef = "dm-1/200"
			_, err = s.store.CreateTicket(ctx, t)
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			default:
				errCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(0), errCount.Load())
	s.Equal(int32(1), created.Load(), "exactly one create should win")
	s.Equal(int32(goroutines-1), conflicts.Load())
}
