package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/petrijr/taskflow/pkg/api"
)

// SQLiteEventStore stores runtime events in SQLite.
type SQLiteEventStore struct {
	db *sql.DB
}

// Ensure SQLiteEventStore implements the interfaces.
var _ EventStore = (*SQLiteEventStore)(nil)

func NewSQLiteEventStore(db *sql.DB) (*SQLiteEventStore, error) {
	s := &SQLiteEventStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteEventStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runtime_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL,
			seq INTEGER NOT NULL DEFAULT 0,
			type TEXT NOT NULL,
			at INTEGER NOT NULL,
			instance_id TEXT NOT NULL,
			definition_key TEXT NOT NULL DEFAULT '',
			business_key TEXT NOT NULL DEFAULT '',
			activity_id TEXT NOT NULL DEFAULT '',
			activity_type TEXT NOT NULL DEFAULT '',
			flow_id TEXT NOT NULL DEFAULT '',
			source_id TEXT NOT NULL DEFAULT '',
			target_id TEXT NOT NULL DEFAULT '',
			task_id TEXT NOT NULL DEFAULT '',
			assignee TEXT NOT NULL DEFAULT '',
			actor TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_runtime_events_instance_id ON runtime_events(instance_id, id);
	`)
	return err
}

func (s *SQLiteEventStore) AppendEvents(ctx context.Context, evs ...api.RuntimeEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, ev := range evs {
		at := ev.At
		if at.IsZero() {
			at = time.Now()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO runtime_events (event_id, seq, type, at, instance_id, definition_key, business_key,
				activity_id, activity_type, flow_id, source_id, target_id, task_id, assignee, actor)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.ID,
			ev.Seq,
			string(ev.Type),
			at.UnixNano(),
			ev.ProcessInstanceID,
			ev.ProcessDefinitionKey,
			ev.BusinessKey,
			ev.ActivityID,
			string(ev.ActivityType),
			ev.FlowID,
			ev.SourceActivityID,
			ev.TargetActivityID,
			ev.TaskID,
			ev.Assignee,
			ev.Actor,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteEventStore) ListEvents(ctx context.Context, instanceID string) ([]api.RuntimeEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, seq, type, at, instance_id, definition_key, business_key,
			activity_id, activity_type, flow_id, source_id, target_id, task_id, assignee, actor
		FROM runtime_events
		WHERE instance_id = ?
		ORDER BY id ASC`, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.RuntimeEvent
	for rows.Next() {
		var (
			ev           api.RuntimeEvent
			typ, actType string
			atN          int64
		)
		if err := rows.Scan(&ev.ID, &ev.Seq, &typ, &atN, &ev.ProcessInstanceID, &ev.ProcessDefinitionKey,
			&ev.BusinessKey, &ev.ActivityID, &actType, &ev.FlowID, &ev.SourceActivityID,
			&ev.TargetActivityID, &ev.TaskID, &ev.Assignee, &ev.Actor); err != nil {
			return nil, err
		}
		ev.Type = api.EventType(typ)
		ev.ActivityType = api.NodeKind(actType)
		ev.At = time.Unix(0, atN).UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}
