package persistence

import (
	"context"
	"database/sql"
	"errors"

	"github.com/petrijr/taskflow/pkg/api"
)

// SQLiteStore is an InstanceStore and TaskStore backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteStore struct {
	db *sql.DB
}

// Ensure SQLiteStore implements the interfaces.
var (
	_ InstanceStore = (*SQLiteStore)(nil)
	_ TaskStore     = (*SQLiteStore)(nil)
	_ Committer     = (*SQLiteStore)(nil)
)

// NewSQLiteStore initializes the required schema in the given
// database and returns a new SQLiteStore.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS process_instances (
			id TEXT PRIMARY KEY,
			definition_key TEXT NOT NULL,
			business_key TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			initiator TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			current_activity TEXT NOT NULL DEFAULT '',
			variables BLOB,
			started_at INTEGER NOT NULL DEFAULT 0,
			ended_at INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			process_instance_id TEXT NOT NULL,
			definition_key TEXT NOT NULL,
			activity_id TEXT NOT NULL,
			assignee TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			created_at INTEGER NOT NULL DEFAULT 0,
			ended_at INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assignee, status);
		CREATE INDEX IF NOT EXISTS idx_tasks_instance ON tasks(process_instance_id);`,
	)
	return err
}

func (s *SQLiteStore) SaveInstance(ctx context.Context, inst *api.ProcessInstance) error {
	return s.insertInstance(ctx, s.db, inst)
}

func (s *SQLiteStore) UpdateInstance(ctx context.Context, inst *api.ProcessInstance) error {
	return s.updateInstance(ctx, s.db, inst)
}

func (s *SQLiteStore) SaveTask(ctx context.Context, t *api.Task) error {
	return s.insertTask(ctx, s.db, t)
}

func (s *SQLiteStore) UpdateTask(ctx context.Context, t *api.Task) error {
	return s.updateTask(ctx, s.db, t)
}

// Commit applies c in a single transaction.
func (s *SQLiteStore) Commit(ctx context.Context, c Change) error {
	return commitTx(ctx, s.db, s, c)
}

func (s *SQLiteStore) insertInstance(ctx context.Context, ex execer, inst *api.ProcessInstance) error {
	args, err := instanceArgs(inst)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO process_instances (`+instanceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	return err
}

func (s *SQLiteStore) updateInstance(ctx context.Context, ex execer, inst *api.ProcessInstance) error {
	args, err := instanceArgs(inst)
	if err != nil {
		return err
	}
	// Move the id from the front to the WHERE clause.
	args = append(args[1:], args[0])

	res, err := ex.ExecContext(ctx, `
		UPDATE process_instances
		SET definition_key = ?, business_key = ?, name = ?, initiator = ?, status = ?,
		    current_activity = ?, variables = ?, started_at = ?, ended_at = ?
		WHERE id = ?`,
		args...,
	)
	if err != nil {
		return err
	}
	return expectAffected(res, ErrInstanceNotFound)
}

func (s *SQLiteStore) GetInstance(ctx context.Context, id string) (*api.ProcessInstance, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+instanceColumns+` FROM process_instances WHERE id = ?`, id)

	inst, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInstanceNotFound
		}
		return nil, err
	}
	return inst, nil
}

func (s *SQLiteStore) ListInstances(ctx context.Context, filter InstanceFilter) ([]*api.ProcessInstance, error) {
	query, args := instanceQuery("process_instances", filter, questionMark)
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

func (s *SQLiteStore) insertTask(ctx context.Context, ex execer, t *api.Task) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		taskArgs(t)...,
	)
	return err
}

func (s *SQLiteStore) updateTask(ctx context.Context, ex execer, t *api.Task) error {
	args := taskArgs(t)
	args = append(args[1:], args[0])

	res, err := ex.ExecContext(ctx, `
		UPDATE tasks
		SET name = ?, process_instance_id = ?, definition_key = ?, activity_id = ?,
		    assignee = ?, status = ?, created_at = ?, ended_at = ?
		WHERE id = ?`,
		args...,
	)
	if err != nil {
		return err
	}
	return expectAffected(res, ErrTaskNotFound)
}

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*api.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)

	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *SQLiteStore) ListTasks(ctx context.Context, filter TaskFilter) ([]*api.Task, error) {
	query, args := taskQuery("tasks", filter, questionMark)
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

func expectAffected(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
