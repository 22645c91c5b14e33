package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/petrijr/taskflow/pkg/api"
)

// The SQLite and Postgres stores share their row layout and differ only in
// placeholder syntax and column types.

const instanceColumns = `id, definition_key, business_key, name, initiator, status, current_activity, variables, started_at, ended_at`

const taskColumns = `id, name, process_instance_id, definition_key, activity_id, assignee, status, created_at, ended_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// execer is either a *sql.DB or an open *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// rowWriter writes single rows in a store's SQL dialect.
type rowWriter interface {
	insertInstance(ctx context.Context, ex execer, inst *api.ProcessInstance) error
	updateInstance(ctx context.Context, ex execer, inst *api.ProcessInstance) error
	insertTask(ctx context.Context, ex execer, t *api.Task) error
	updateTask(ctx context.Context, ex execer, t *api.Task) error
}

// commitTx applies c inside one transaction on db.
func commitTx(ctx context.Context, db *sql.DB, w rowWriter, c Change) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if c.NewInstance {
		err = w.insertInstance(ctx, tx, c.Instance)
	} else {
		err = w.updateInstance(ctx, tx, c.Instance)
	}
	if err != nil {
		return err
	}
	for _, t := range c.Created {
		if err := w.insertTask(ctx, tx, t); err != nil {
			return err
		}
	}
	for _, t := range c.Updated {
		if err := w.updateTask(ctx, tx, t); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func scanInstance(row rowScanner) (*api.ProcessInstance, error) {
	var (
		inst           api.ProcessInstance
		status         string
		variables      []byte
		started, ended int64
	)
	if err := row.Scan(
		&inst.ID, &inst.DefinitionKey, &inst.BusinessKey, &inst.Name, &inst.Initiator,
		&status, &inst.CurrentActivity, &variables, &started, &ended,
	); err != nil {
		return nil, err
	}

	vars, err := DecodeVariables(variables)
	if err != nil {
		return nil, fmt.Errorf("decode variables of instance %s: %w", inst.ID, err)
	}
	inst.Status = api.ProcessStatus(status)
	inst.Variables = vars
	inst.StartedAt = fromNanos(started)
	inst.EndedAt = fromNanos(ended)
	return &inst, nil
}

// instanceArgs returns the column values of inst in instanceColumns order.
func instanceArgs(inst *api.ProcessInstance) ([]any, error) {
	vars, err := EncodeVariables(inst.Variables)
	if err != nil {
		return nil, fmt.Errorf("encode variables of instance %s: %w", inst.ID, err)
	}
	return []any{
		inst.ID,
		inst.DefinitionKey,
		inst.BusinessKey,
		inst.Name,
		inst.Initiator,
		string(inst.Status),
		inst.CurrentActivity,
		vars,
		toNanos(inst.StartedAt),
		toNanos(inst.EndedAt),
	}, nil
}

func scanTask(row rowScanner) (*api.Task, error) {
	var (
		t              api.Task
		status         string
		created, ended int64
	)
	if err := row.Scan(
		&t.ID, &t.Name, &t.ProcessInstanceID, &t.ProcessDefinitionKey, &t.ActivityID,
		&t.Assignee, &status, &created, &ended,
	); err != nil {
		return nil, err
	}
	t.Status = api.TaskStatus(status)
	t.CreatedAt = fromNanos(created)
	t.EndedAt = fromNanos(ended)
	return &t, nil
}

// taskArgs returns the column values of t in taskColumns order.
func taskArgs(t *api.Task) []any {
	return []any{
		t.ID,
		t.Name,
		t.ProcessInstanceID,
		t.ProcessDefinitionKey,
		t.ActivityID,
		t.Assignee,
		string(t.Status),
		toNanos(t.CreatedAt),
		toNanos(t.EndedAt),
	}
}

// whereBuilder accumulates WHERE clauses with dialect-specific placeholders.
type whereBuilder struct {
	placeholder func(n int) string
	clauses     []string
	args        []any
}

func (w *whereBuilder) eq(column string, value any) {
	w.args = append(w.args, value)
	w.clauses = append(w.clauses, fmt.Sprintf("%s = %s", column, w.placeholder(len(w.args))))
}

func (w *whereBuilder) in(column string, values []string) {
	ph := make([]string, len(values))
	for i, v := range values {
		w.args = append(w.args, v)
		ph[i] = w.placeholder(len(w.args))
	}
	w.clauses = append(w.clauses, fmt.Sprintf("%s IN (%s)", column, strings.Join(ph, ", ")))
}

func (w *whereBuilder) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func instanceQuery(table string, filter InstanceFilter, placeholder func(int) string) (string, []any) {
	w := &whereBuilder{placeholder: placeholder}
	if filter.DefinitionKey != "" {
		w.eq("definition_key", filter.DefinitionKey)
	}
	if filter.Status != "" {
		w.eq("status", string(filter.Status))
	}
	return "SELECT " + instanceColumns + " FROM " + table + w.String() + " ORDER BY id", w.args
}

func taskQuery(table string, filter TaskFilter, placeholder func(int) string) (string, []any) {
	w := &whereBuilder{placeholder: placeholder}
	if filter.Assignee != "" {
		w.eq("assignee", filter.Assignee)
	}
	if filter.ProcessInstanceID != "" {
		w.eq("process_instance_id", filter.ProcessInstanceID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		w.in("status", statuses)
	}
	return "SELECT " + taskColumns + " FROM " + table + w.String() + " ORDER BY id", w.args
}

func questionMark(int) string { return "?" }

func dollar(n int) string { return fmt.Sprintf("$%d", n) }
