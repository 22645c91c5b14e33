package persistence

import (
	"context"
	"database/sql"
	"errors"

	"github.com/petrijr/taskflow/pkg/api"
)

// PostgresStore is an InstanceStore and TaskStore backed by PostgreSQL.
//
// It expects an *sql.DB that uses a PostgreSQL driver (for example,
// "github.com/jackc/pgx/v5/stdlib").
//
// The caller is responsible for:
//   - importing the driver for its side effects, e.g.:
//     _ "github.com/jackc/pgx/v5/stdlib"
//   - providing a DSN via sql.Open.
type PostgresStore struct {
	db *sql.DB
}

// Ensure PostgresStore implements the interfaces.
var (
	_ InstanceStore = (*PostgresStore)(nil)
	_ TaskStore     = (*PostgresStore)(nil)
	_ Committer     = (*PostgresStore)(nil)
)

// NewPostgresStore initializes the required schema in the given
// database and returns a new PostgresStore.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS process_instances (
			id               TEXT PRIMARY KEY,
			definition_key   TEXT NOT NULL,
			business_key     TEXT NOT NULL DEFAULT '',
			name             TEXT NOT NULL DEFAULT '',
			initiator        TEXT NOT NULL DEFAULT '',
			status           TEXT NOT NULL,
			current_activity TEXT NOT NULL DEFAULT '',
			variables        BYTEA,
			started_at       BIGINT NOT NULL DEFAULT 0,
			ended_at         BIGINT NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS tasks (
			id                  TEXT PRIMARY KEY,
			name                TEXT NOT NULL DEFAULT '',
			process_instance_id TEXT NOT NULL,
			definition_key      TEXT NOT NULL,
			activity_id         TEXT NOT NULL,
			assignee            TEXT NOT NULL DEFAULT '',
			status              TEXT NOT NULL,
			created_at          BIGINT NOT NULL DEFAULT 0,
			ended_at            BIGINT NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assignee, status);
		CREATE INDEX IF NOT EXISTS idx_tasks_instance ON tasks(process_instance_id);
	`)
	return err
}

func (s *PostgresStore) SaveInstance(ctx context.Context, inst *api.ProcessInstance) error {
	return s.insertInstance(ctx, s.db, inst)
}

func (s *PostgresStore) UpdateInstance(ctx context.Context, inst *api.ProcessInstance) error {
	return s.updateInstance(ctx, s.db, inst)
}

func (s *PostgresStore) SaveTask(ctx context.Context, t *api.Task) error {
	return s.insertTask(ctx, s.db, t)
}

func (s *PostgresStore) UpdateTask(ctx context.Context, t *api.Task) error {
	return s.updateTask(ctx, s.db, t)
}

// Commit applies c in a single transaction.
func (s *PostgresStore) Commit(ctx context.Context, c Change) error {
	return commitTx(ctx, s.db, s, c)
}

func (s *PostgresStore) insertInstance(ctx context.Context, ex execer, inst *api.ProcessInstance) error {
	args, err := instanceArgs(inst)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO process_instances (`+instanceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, args...)
	return err
}

func (s *PostgresStore) updateInstance(ctx context.Context, ex execer, inst *api.ProcessInstance) error {
	args, err := instanceArgs(inst)
	if err != nil {
		return err
	}
	res, err := ex.ExecContext(ctx, `
		UPDATE process_instances
		SET definition_key   = $2,
		    business_key     = $3,
		    name             = $4,
		    initiator        = $5,
		    status           = $6,
		    current_activity = $7,
		    variables        = $8,
		    started_at       = $9,
		    ended_at         = $10
		WHERE id = $1
	`, args...)
	if err != nil {
		return err
	}
	return expectAffected(res, ErrInstanceNotFound)
}

func (s *PostgresStore) GetInstance(ctx context.Context, id string) (*api.ProcessInstance, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+instanceColumns+` FROM process_instances WHERE id = $1`, id)

	inst, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInstanceNotFound
		}
		return nil, err
	}
	return inst, nil
}

func (s *PostgresStore) ListInstances(ctx context.Context, filter InstanceFilter) ([]*api.ProcessInstance, error) {
	query, args := instanceQuery("process_instances", filter, dollar)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instances []*api.ProcessInstance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

func (s *PostgresStore) insertTask(ctx context.Context, ex execer, t *api.Task) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, taskArgs(t)...)
	return err
}

func (s *PostgresStore) updateTask(ctx context.Context, ex execer, t *api.Task) error {
	res, err := ex.ExecContext(ctx, `
		UPDATE tasks
		SET name                = $2,
		    process_instance_id = $3,
		    definition_key      = $4,
		    activity_id         = $5,
		    assignee            = $6,
		    status              = $7,
		    created_at          = $8,
		    ended_at            = $9
		WHERE id = $1
	`, taskArgs(t)...)
	if err != nil {
		return err
	}
	return expectAffected(res, ErrTaskNotFound)
}

func (s *PostgresStore) GetTask(ctx context.Context, id string) (*api.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)

	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *PostgresStore) ListTasks(ctx context.Context, filter TaskFilter) ([]*api.Task, error) {
	query, args := taskQuery("tasks", filter, dollar)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*api.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
