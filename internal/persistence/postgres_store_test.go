package persistence

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/stretchr/testify/suite"

	"github.com/petrijr/taskflow/internal/testutil"
)

type PostgresStoreTestSuite struct {
	suite.Suite
	db    *sql.DB
	store *PostgresStore
}

func TestPostgresStoreTestSuite(t *testing.T) {
	dsn := testutil.GetPostgresDSN(t)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewPostgresStore(db)
	if err != nil {
		t.Fatalf("NewPostgresStore failed: %v", err)
	}

	suite.Run(t, &PostgresStoreTestSuite{db: db, store: store})
}

func (p *PostgresStoreTestSuite) SetupTest() {
	_, err := p.db.ExecContext(context.Background(), `TRUNCATE process_instances, tasks`)
	p.Require().NoError(err)
}

func (p *PostgresStoreTestSuite) TestInstances() {
	testInstanceStoreContract(p.T(), p.store)
}

func (p *PostgresStoreTestSuite) TestTasks() {
	testTaskStoreContract(p.T(), p.store)
}

func (p *PostgresStoreTestSuite) TestCommit() {
	testCommitContract(p.T(), p.store)
}
