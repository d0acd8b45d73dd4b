//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"relay/pkg/testutil/containers"
)

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pg := containers.GetManager().GetPostgres(t)
	suite.Run(t, &StoreSuite{newStore: func(t *testing.T) Store {
		if err := pg.TruncateTables(context.Background(), "settings"); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return NewSQL(pg.DB)
	}})
}
