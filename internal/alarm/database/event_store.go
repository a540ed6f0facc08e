package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/opseye/opseye/internal/alarm/model"
)

// EventStore is the PostgreSQL persistence layer for events. Association
// columns are text[] and the vendor payload lives in a jsonb column, so
// merge lookups can match on vendor-native identifiers without extra
// mapping tables.
type EventStore struct {
	db *Database
}

func NewEventStore(db *Database) *EventStore {
	return &EventStore{db: db}
}

const eventColumns = `id, agent_type, datasource, level, regions, projects, products, customers, raw_data, status, created_at, updated_at`

func (s *EventStore) InsertEvent(ctx context.Context, ev *model.Event) error {
	raw, err := json.Marshal(ev.RawData)
	if err != nil {
		return fmt.Errorf("marshal raw data: %w", err)
	}
	const q = `
	INSERT INTO events(` + eventColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11, $12)
	`
	_, err = s.db.ExecContext(ctx, q,
		ev.ID, ev.AgentType, string(ev.DataSource), string(ev.Level),
		pq.Array(ev.Regions), pq.Array(ev.Projects), pq.Array(ev.Products), pq.Array(ev.Customers),
		string(raw), ev.Status, ev.CreatedAt, ev.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *EventStore) SaveEvent(ctx context.Context, ev *model.Event) error {
	raw, err := json.Marshal(ev.RawData)
	if err != nil {
		return fmt.Errorf("marshal raw data: %w", err)
	}
	const q = `
	UPDATE events SET
		level = $2, regions = $3, projects = $4, products = $5, customers = $6,
		raw_data = $7::jsonb, status = $8, updated_at = $9
	WHERE id = $1
	`
	_, err = s.db.ExecContext(ctx, q,
		ev.ID, string(ev.Level),
		pq.Array(ev.Regions), pq.Array(ev.Projects), pq.Array(ev.Products), pq.Array(ev.Customers),
		string(raw), ev.Status, ev.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save event: %w", err)
	}
	return nil
}

func (s *EventStore) FindVolcEvents(ctx context.Context, groupIDs []string, since time.Time) ([]*model.Event, error) {
	const q = `
	SELECT ` + eventColumns + `
	FROM events
	WHERE datasource = 'volcengine'
	  AND raw_data->'volcengine'->'resource'->>'AlertGroupId' = ANY($1)
	  AND updated_at >= $2
	ORDER BY updated_at DESC
	`
	rows, err := s.db.QueryContext(ctx, q, pq.Array(groupIDs), since)
	if err != nil {
		return nil, fmt.Errorf("find volcengine events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *EventStore) FindAliyunEvents(ctx context.Context, ruleID, dimensions string, since time.Time) ([]*model.Event, error) {
	const q = `
	SELECT ` + eventColumns + `
	FROM events
	WHERE datasource = 'aliyun'
	  AND raw_data->'aliyun'->>'ruleId' = $1
	  AND raw_data->'aliyun'->>'dimensions' = $2
	  AND updated_at >= $3
	ORDER BY updated_at DESC
	`
	rows, err := s.db.QueryContext(ctx, q, ruleID, dimensions, since)
	if err != nil {
		return nil, fmt.Errorf("find aliyun events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *EventStore) FindLatestZabbixEvent(ctx context.Context, hostID, itemID string, since time.Time) (*model.Event, error) {
	const q = `
	SELECT ` + eventColumns + `
	FROM events
	WHERE datasource = 'zabbix'
	  AND raw_data->'zabbix'->>'host_id' = $1
	  AND raw_data->'zabbix'->>'item_id' = $2
	  AND updated_at >= $3
	ORDER BY updated_at DESC
	LIMIT 1
	`
	rows, err := s.db.QueryContext(ctx, q, hostID, itemID, since)
	if err != nil {
		return nil, fmt.Errorf("find zabbix event: %w", err)
	}
	defer rows.Close()
	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return events[0], nil
}

// EventFilter narrows ListEvents. Zero values mean no constraint.
type EventFilter struct {
	DataSource string
	Status     string
	Level      string
	Limit      int
}

func (s *EventStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	rows, err := s.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	defer rows.Close()
	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return events[0], nil
}

func (s *EventStore) ListEvents(ctx context.Context, f EventFilter) ([]*model.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events WHERE 1=1`
	var args []any
	if f.DataSource != "" {
		args = append(args, f.DataSource)
		q += fmt.Sprintf(" AND datasource = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.Level != "" {
		args = append(args, f.Level)
		q += fmt.Sprintf(" AND level = $%d", len(args))
	}
	q += " ORDER BY updated_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*model.Event, error) {
	var out []*model.Event
	for rows.Next() {
		ev := new(model.Event)
		var ds, level string
		var raw []byte
		err := rows.Scan(&ev.ID, &ev.AgentType, &ds, &level,
			pq.Array(&ev.Regions), pq.Array(&ev.Projects), pq.Array(&ev.Products), pq.Array(&ev.Customers),
			&raw, &ev.Status, &ev.CreatedAt, &ev.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.DataSource = model.DataSource(ds)
		ev.Level = model.Level(level)
		if err := json.Unmarshal(raw, &ev.RawData); err != nil {
			return nil, fmt.Errorf("unmarshal raw data: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}
