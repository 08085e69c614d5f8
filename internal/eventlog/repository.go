// Package eventlog keeps an append-only history of room and source
// transitions in the room_events table.
//
// The SQLite repository doubles as an event sink: register it with the
// notify service and every av.Event is recorded.
package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/uxav/AVnetCore-sub001/internal/av"
)

// timeFormat is fixed-width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Page size limits for List.
const (
	defaultLimit = 50
	maxLimit     = 500
)

// Entry is one recorded event.
type Entry struct {
	ID string `json:"id"`
	av.Event
}

// Filter controls which entries List returns. Zero fields don't filter.
type Filter struct {
	RoomID   uint
	SourceID uint
	Type     av.EventType
	Since    time.Time
	Limit    int // default 50, max 500
	Offset   int
}

// ListResult contains a page of entries, newest first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository defines the event log operations.
type Repository interface {
	Record(ctx context.Context, ev av.Event) (string, error)
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores events in SQLite.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a new event log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Record inserts ev and returns the generated entry ID. Events without a
// timestamp are stamped with the current time.
func (r *SQLiteRepository) Record(ctx context.Context, ev av.Event) (string, error) {
	id := uuid.NewString()
	ts := ev.Time
	if ts.IsZero() {
		ts = r.now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO room_events (id, type, room_id, source_id, previous_source_id,
			output_index, status, power, active, reason, error, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, string(ev.Type), ev.RoomID, ev.SourceID, ev.PreviousSourceID,
		ev.OutputIndex, string(ev.Status), ev.Power, ev.Active, ev.Reason, ev.Error,
		ts.UTC().Format(timeFormat),
	)
	if err != nil {
		return "", fmt.Errorf("inserting room event: %w", err)
	}
	return id, nil
}

// Notify implements the notify.Sink interface by recording ev.
func (r *SQLiteRepository) Notify(ctx context.Context, ev av.Event) error {
	_, err := r.Record(ctx, ev)
	return err
}

// List returns entries matching filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var (
		conditions []string
		args       []any
	)
	if filter.RoomID != 0 {
		conditions = append(conditions, "room_id = ?")
		args = append(args, filter.RoomID)
	}
	if filter.SourceID != 0 {
		conditions = append(conditions, "source_id = ?")
		args = append(args, filter.SourceID)
	}
	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, string(filter.Type))
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "occurred_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeFormat))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM room_events " + where //nolint:gosec // WHERE built from parameterised conditions
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting room events: %w", err)
	}

	query := `SELECT id, type, room_id, source_id, previous_source_id, output_index,
		status, power, active, reason, error, occurred_at
		FROM room_events ` + where + ` ORDER BY occurred_at DESC, rowid DESC LIMIT ? OFFSET ?` //nolint:gosec // as above
	rows, err := r.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying room events: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, filter.Limit)
	for rows.Next() {
		var (
			e          Entry
			typ, state string
			occurredAt string
		)
		if err := rows.Scan(&e.ID, &typ, &e.RoomID, &e.SourceID, &e.PreviousSourceID, &e.OutputIndex,
			&state, &e.Power, &e.Active, &e.Reason, &e.Error, &occurredAt); err != nil {
			return nil, fmt.Errorf("scanning room event: %w", err)
		}
		e.Type = av.EventType(typ)
		e.Status = av.Status(state)
		e.Time, err = time.Parse(timeFormat, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parsing room event time %q: %w", occurredAt, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating room events: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
