package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/uxav/AVnetCore-sub001/internal/av"
)

// Repository defines the catalog persistence operations.
type Repository interface {
	ListRooms(ctx context.Context) ([]Room, error)
	ListSources(ctx context.Context) ([]Source, error)
	ListAssignments(ctx context.Context) ([]Assignment, error)

	CreateRoom(ctx context.Context, room Room) error
	SetRoomParent(ctx context.Context, roomID, parentID uint) error
	CreateSource(ctx context.Context, src Source) error
	AssignSource(ctx context.Context, sourceID, roomID uint) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed catalog repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// ListRooms returns all rooms ordered by ID.
func (r *SQLiteRepository) ListRooms(ctx context.Context) ([]Room, error) {
	const query = `SELECT id, name, screen_name, parent_id, default_source_id
		FROM rooms ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying rooms: %w", err)
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var (
			room          Room
			parent, deflt sql.NullInt64
		)
		if err := rows.Scan(&room.ID, &room.Name, &room.ScreenName, &parent, &deflt); err != nil {
			return nil, fmt.Errorf("scanning room: %w", err)
		}
		room.ParentID = uint(parent.Int64)
		room.DefaultSourceID = uint(deflt.Int64)
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rooms: %w", err)
	}
	return rooms, nil
}

// ListSources returns all sources ordered by ID.
func (r *SQLiteRepository) ListSources(ctx context.Context) ([]Source, error) {
	const query = `SELECT id, type, name, group_name, icon_name, priority, display_id
		FROM sources ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var (
			src Source
			typ string
		)
		if err := rows.Scan(&src.ID, &typ, &src.Name, &src.GroupName, &src.IconName, &src.Priority, &src.DisplayID); err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		src.Type, err = av.ParseSourceType(typ)
		if err != nil {
			return nil, fmt.Errorf("source %d: %w", src.ID, err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sources: %w", err)
	}
	return sources, nil
}

// ListAssignments returns every source/room link ordered by source then room.
func (r *SQLiteRepository) ListAssignments(ctx context.Context) ([]Assignment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT source_id, room_id FROM source_rooms ORDER BY source_id, room_id`)
	if err != nil {
		return nil, fmt.Errorf("querying assignments: %w", err)
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.SourceID, &a.RoomID); err != nil {
			return nil, fmt.Errorf("scanning assignment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating assignments: %w", err)
	}
	return out, nil
}

// CreateRoom inserts a new room. The parent must already exist.
func (r *SQLiteRepository) CreateRoom(ctx context.Context, room Room) error {
	if err := room.validate(); err != nil {
		return err
	}
	const query = `INSERT INTO rooms (id, name, screen_name, parent_id, default_source_id)
		VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		room.ID, room.Name, room.ScreenName, nullID(room.ParentID), nullID(room.DefaultSourceID))
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return fmt.Errorf("%w: room %d", ErrRoomExists, room.ID)
	case isForeignKeyViolation(err):
		return fmt.Errorf("%w: parent room %d", ErrNotFound, room.ParentID)
	default:
		return fmt.Errorf("inserting room %d: %w", room.ID, err)
	}
}

// SetRoomParent sets or clears (parentID 0) a room's parent.
func (r *SQLiteRepository) SetRoomParent(ctx context.Context, roomID, parentID uint) error {
	if roomID == parentID && roomID != 0 {
		return fmt.Errorf("%w: room %d cannot be its own parent", ErrInvalid, roomID)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE rooms SET parent_id = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now') WHERE id = ?`,
		nullID(parentID), roomID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: parent room %d", ErrNotFound, parentID)
		}
		return fmt.Errorf("updating room %d: %w", roomID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // SQLite always reports rows affected
		return fmt.Errorf("%w: room %d", ErrNotFound, roomID)
	}
	return nil
}

// CreateSource inserts a new source.
func (r *SQLiteRepository) CreateSource(ctx context.Context, src Source) error {
	if err := src.validate(); err != nil {
		return err
	}
	const query = `INSERT INTO sources (id, type, name, group_name, icon_name, priority, display_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		src.ID, src.Type.String(), src.Name, src.GroupName, src.IconName, src.Priority, src.DisplayID)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return fmt.Errorf("%w: source %d", ErrSourceExists, src.ID)
	default:
		return fmt.Errorf("inserting source %d: %w", src.ID, err)
	}
}

// AssignSource links a source to a room. Assigning twice is a no-op.
func (r *SQLiteRepository) AssignSource(ctx context.Context, sourceID, roomID uint) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO source_rooms (source_id, room_id) VALUES (?, ?)`,
		sourceID, roomID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: source %d or room %d", ErrNotFound, sourceID, roomID)
		}
		return fmt.Errorf("assigning source %d to room %d: %w", sourceID, roomID, err)
	}
	return nil
}

func (room Room) validate() error {
	if room.ID == 0 {
		return fmt.Errorf("%w: room id must be non-zero", ErrInvalid)
	}
	if strings.TrimSpace(room.Name) == "" {
		return fmt.Errorf("%w: room %d: name is required", ErrInvalid, room.ID)
	}
	if room.ParentID == room.ID {
		return fmt.Errorf("%w: room %d cannot be its own parent", ErrInvalid, room.ID)
	}
	return nil
}

func (src Source) validate() error {
	if src.ID == 0 {
		return fmt.Errorf("%w: source id must be non-zero", ErrInvalid)
	}
	if strings.TrimSpace(src.Name) == "" {
		return fmt.Errorf("%w: source %d: name is required", ErrInvalid, src.ID)
	}
	return nil
}

// nullID maps the zero ID to NULL for nullable reference columns.
func nullID(id uint) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(id), Valid: true}
}

// isUniqueViolation checks if a SQLite error is a primary key or UNIQUE
// constraint violation.
func isUniqueViolation(err error) bool {
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		return sqErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		return sqErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
