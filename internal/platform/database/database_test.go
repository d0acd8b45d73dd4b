package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/uptrace/bun"

	"relay/internal/platform/config"
)

type SQLiteSuite struct {
	suite.Suite
	db *bun.DB
}

func TestSQLiteSuite(t *testing.T) {
	suite.Run(t, new(SQLiteSuite))
}

func (s *SQLiteSuite) SetupTest() {
	db, err := Open(context.Background(), config.StorageConfig{
		Driver: config.DriverSQLite,
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(s.T().Name(), "/", "_")),
	}, nil)
	s.Require().NoError(err)
	s.db = db
}

func (s *SQLiteSuite) TearDownTest() {
	_ = s.db.Close()
}

func (s *SQLiteSuite) TestMigrationsCreateTables() {
	ctx := context.Background()
	for _, table := range []string{"tickets", "delivered_copies", "settings", "audit_events"} {
		exists, err := s.db.NewSelect().
			Table("sqlite_master").
			ColumnExpr("1").
			Where("type = 'table' AND name = ?", table).
			Exists(ctx)
		s.Require().NoError(err)
		s.True(exists, "table %s should exist", table)
	}
}

func (s *SQLiteSuite) TestMigrateIsIdempotent() {
	ctx := context.Background()
	s.Require().NoError(Migrate(ctx, s.db, config.DriverSQLite, nil))

	count, err := s.db.NewSelect().Table("schema_migrations").Count(ctx)
	s.Require().NoError(err)
	s.Equal(3, count)
}

func (s *SQLiteSuite) TestDisclosureCheckConstraint() {
	_, err := s.db.ExecContext(context.Background(),
		"INSERT INTO tickets (submitter_id, disclosure_mode, custom_signature, created_at) VALUES ('u', 'anonymous', 'sig', CURRENT_TIMESTAMP)")
	s.Error(err)
}

func (s *SQLiteSuite) TestDuplicateDeliveryIsUniqueViolation() {
	ctx := context.Background()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO tickets (submitter_id, disclosure_mode, created_at) VALUES ('u', 'anonymous', CURRENT_TIMESTAMP)")
	s.Require().NoError(err)

	insert := "INSERT INTO delivered_copies (ticket_id, moderator_id, handle, delivered_at) VALUES (1, 'm', 'h', CURRENT_TIMESTAMP)"
	_, err = s.db.ExecContext(ctx, insert)
	s.Require().NoError(err)
	_, err = s.db.ExecContext(ctx, insert)
	s.True(IsUniqueViolation(err), "got %v", err)
}

func (s *SQLiteSuite) TestDuplicateSourceRefIsUniqueViolation() {
	ctx := context.Background()
	insert := "INSERT INTO tickets (submitter_id, disclosure_mode, created_at, source_ref) VALUES ('u', 'anonymous', CURRENT_TIMESTAMP, 'dm-u/1')"
	_, err := s.db.ExecContext(ctx, insert)
	s.Require().NoError(err)
	_, err = s.db.ExecContext(ctx, insert)
	s.True(IsUniqueViolation(err), "got %v", err)

	legacy := "INSERT INTO tickets (submitter_id, disclosure_mode, created_at) VALUES ('u', 'anonymous', CURRENT_TIMESTAMP)"
	_, err = s.db.ExecContext(ctx, legacy)
	s.Require().NoError(err)
	_, err = s.db.ExecContext(ctx, legacy)
	s.NoError(err, "tickets without a source ref never collide")
}

func TestOpenRejectsMemoryDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Driver: config.DriverMemory}, nil)
	require.Error(t, err)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.True(t, IsUniqueViolation(errors.New(`ERROR: duplicate key value violates unique constraint "delivered_copies_pkey" (SQLSTATE 23505)`)))
	assert.True(t, IsUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: settings.setting_key (1555)")))
	assert.False(t, IsUniqueViolation(errors.New("connection refused")))
}

func TestIsForeignKeyViolation(t *testing.T) {
	assert.True(t, IsForeignKeyViolation(errors.New("constraint failed: FOREIGN KEY constraint failed (787)")))
	assert.False(t, IsForeignKeyViolation(errors.New("UNIQUE constraint failed")))
}

func TestWithSQLitePragmas(t *testing.T) {
	assert.Equal(t, "file:a.db?_pragma=foreign_keys(1)", withSQLitePragmas("file:a.db"))
	assert.Equal(t, "file:a.db?mode=memory&_pragma=foreign_keys(1)", withSQLitePragmas("file:a.db?mode=memory"))
	assert.Equal(t, "file:a.db?_pragma=foreign_keys(0)", withSQLitePragmas("file:a.db?_pragma=foreign_keys(0)"))
}

func (s *SQLiteSuite) TestForeignKeysEnforced() {
	_, err := s.db.ExecContext(context.Background(),
		"INSERT INTO delivered_copies (ticket_id, moderator_id, handle, delivered_at) VALUES (99, 'm', 'h', CURRENT_TIMESTAMP)")
	s.True(IsForeignKeyViolation(err), "got %v", err)
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("CREATE TABLE a (x INT);\n\nCREATE INDEX i ON a (x);\n")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE INDEX i ON a (x)"}, got)
}
