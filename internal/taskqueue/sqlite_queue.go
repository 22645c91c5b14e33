package taskqueue

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/petrijr/taskflow/internal/persistence"
)

// SQLiteQueue is a durable FIFO queue backed by SQLite. Commands survive a
// restart of the process that enqueued them.
type SQLiteQueue struct {
	db           *sql.DB
	pollInterval time.Duration
}

// NewSQLiteQueue initializes the command table in the given DB and returns a
// new queue.
func NewSQLiteQueue(db *sql.DB) (*SQLiteQueue, error) {
	q := &SQLiteQueue{
		db:           db,
		pollInterval: 20 * time.Millisecond,
	}
	if err := q.initSchema(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *SQLiteQueue) initSchema() error {
	_, err := q.db.Exec(`
		CREATE TABLE IF NOT EXISTS command_queue (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			actor TEXT NOT NULL DEFAULT '',
			definition_key TEXT NOT NULL DEFAULT '',
			business_key TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			instance_id TEXT NOT NULL DEFAULT '',
			task_id TEXT NOT NULL DEFAULT '',
			variables BLOB,
			enqueued_at INTEGER NOT NULL
		);
	`)
	return err
}

// Ensure SQLiteQueue implements Queue.
var _ Queue = (*SQLiteQueue)(nil)

func (q *SQLiteQueue) Enqueue(ctx context.Context, t Task) error {
	vars, err := persistence.EncodeVariables(t.Variables)
	if err != nil {
		return err
	}

	enqueuedAt := t.EnqueuedAt
	if enqueuedAt.IsZero() {
		enqueuedAt = time.Now()
	}

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO command_queue (type, actor, definition_key, business_key, name, instance_id, task_id, variables, enqueued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(t.Type),
		t.Actor,
		t.DefinitionKey,
		t.BusinessKey,
		t.Name,
		t.InstanceID,
		t.TaskID,
		vars,
		enqueuedAt.UnixNano(),
	)
	return err
}

func (q *SQLiteQueue) Dequeue(ctx context.Context) (*Task, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		task, err := q.claim(ctx)
		if err == nil {
			return task, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		// Nothing available: sleep a bit and retry.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.pollInterval):
		}
	}
}

// claim removes the oldest command in one transaction.
func (q *SQLiteQueue) claim(ctx context.Context) (*Task, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		id         int64
		typ        string
		vars       []byte
		enqueuedAt int64
		t          Task
	)
	row := tx.QueryRowContext(ctx, `
		SELECT id, type, actor, definition_key, business_key, name, instance_id, task_id, variables, enqueued_at
		FROM command_queue
		ORDER BY id
		LIMIT 1`)
	if err := row.Scan(&id, &typ, &t.Actor, &t.DefinitionKey, &t.BusinessKey, &t.Name,
		&t.InstanceID, &t.TaskID, &vars, &enqueuedAt); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM command_queue WHERE id = ?`, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	t.Variables, err = persistence.DecodeVariables(vars)
	if err != nil {
		return nil, err
	}
	t.ID = strconv.FormatInt(id, 10)
	t.Type = TaskType(typ)
	t.EnqueuedAt = time.Unix(0, enqueuedAt)
	return &t, nil
}

func (q *SQLiteQueue) Len() int {
	var n int
	if err := q.db.QueryRow(`SELECT COUNT(*) FROM command_queue`).Scan(&n); err != nil {
		return 0
	}
	return n
}
