package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"relay/internal/platform/config"
	"relay/internal/platform/database"
	"relay/internal/settings/models"
	"relay/pkg/platform/sentinel"
)

type Store interface {
	Seed(ctx context.Context, defaults []models.Setting) (int, error)
	Get(ctx context.Context, key models.Key) (*models.Setting, error)
	Set(ctx context.Context, setting models.Setting) error
	List(ctx context.Context) ([]models.Setting, error)
}

var (
	_ Store = (*InMemoryStore)(nil)
	_ Store = (*SQLStore)(nil)
)

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

var seededAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func defaults() []models.Setting {
	var out []models.Setting
	for _, k := range models.AllKeys() {
		out = append(out, models.Setting{Key: k, Value: "default " + string(k), UpdatedAt: seededAt})
	}
	return out
}

func (s *StoreSuite) TestSeedIsInsertIfAbsent() {
	ctx := context.Background()

	n, err := s.store.Seed(ctx, defaults())
	s.Require().NoError(err)
	s.Equal(len(models.AllKeys()), n)

	s.Require().NoError(s.store.Set(ctx, models.Setting{Key: models.KeyGreetingUser, Value: "edited", UpdatedAt: seededAt.Add(time.Hour)}))

	n, err = s.store.Seed(ctx, defaults())
	s.Require().NoError(err)
	s.Equal(0, n, "re-seeding inserts nothing")

	got, err := s.store.Get(ctx, models.KeyGreetingUser)
	s.Require().NoError(err)
	s.Equal("edited", got.Value, "seeding never overwrites an edit")
}

func (s *StoreSuite) TestSeedFillsOnlyMissingKeys() {
	ctx := context.Background()
	s.Require().NoError(s.store.Set(ctx, models.Setting{Key: models.KeyAlreadyProcessed, Value: "custom", UpdatedAt: seededAt}))

	n, err := s.store.Seed(ctx, defaults())
	s.Require().NoError(err)
	s.Equal(len(models.AllKeys())-1, n)
}

func (s *StoreSuite) TestGetMissing() {
	_, err := s.store.Get(context.Background(), models.KeyGreetingAdmin)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestSetAndList() {
	ctx := context.Background()
	_, err := s.store.Seed(ctx, defaults())
	s.Require().NoError(err)

	later := seededAt.Add(24 * time.Hour)
	s.Require().NoError(s.store.Set(ctx, models.Setting{Key: models.KeyDefaultSignature, Value: "— the team", UpdatedAt: later}))

	got, err := s.store.Get(ctx, models.KeyDefaultSignature)
	s.Require().NoError(err)
	s.Equal("— the team", got.Value)
	s.True(later.Equal(got.UpdatedAt))

	all, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Len(all, len(models.AllKeys()))
	for i := 1; i < len(all); i++ {
		s.Less(string(all[i-1].Key), string(all[i].Key), "list is ordered by key")
	}
}

func (s *StoreSuite) TestConcurrentSeedInsertsEachKeyOnce() {
	ctx := context.Background()
	const goroutines = 5

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.store.Seed(ctx, defaults())
			s.NoError(err)
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()
	s.Equal(len(models.AllKeys()), total)
}
