package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// PanelRepository persists panel identities.
type PanelRepository interface {
	Create(ctx context.Context, panel *Panel) error
	Get(ctx context.Context, id string) (*Panel, error)
	List(ctx context.Context) ([]Panel, error)
	CountByRole(ctx context.Context, role Role) (int, error)
	SetActive(ctx context.Context, id string, active bool) error
	Touch(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// SQLitePanelRepository implements PanelRepository using SQLite.
type SQLitePanelRepository struct {
	db *sql.DB
}

var _ PanelRepository = (*SQLitePanelRepository)(nil)

// NewPanelRepository creates a SQLite-backed panel repository.
func NewPanelRepository(db *sql.DB) *SQLitePanelRepository {
	return &SQLitePanelRepository{db: db}
}

const panelColumns = `id, name, secret_hash, role, room_id, active, last_seen_at, created_at`

// Create inserts a panel. The ID is generated if empty.
func (r *SQLitePanelRepository) Create(ctx context.Context, panel *Panel) error {
	if strings.TrimSpace(panel.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPanel)
	}
	if panel.SecretHash == "" {
		return fmt.Errorf("%w: secret hash is required", ErrInvalidPanel)
	}
	if panel.Role == "" {
		panel.Role = RolePanel
	}
	if !panel.Role.IsValid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidPanel, panel.Role)
	}
	if panel.ID == "" {
		panel.ID = "pnl-" + uuid.NewString()[:16]
	}

	now := time.Now().UTC().Truncate(time.Second)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO panels (id, name, secret_hash, role, room_id, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		panel.ID, panel.Name, panel.SecretHash, string(panel.Role),
		nullRoom(panel.RoomID), boolToInt(panel.Active), now.Format(time.RFC3339),
	)
	if err != nil {
		var sqlErr sqlite3.Error
		if errors.As(err, &sqlErr) {
			switch sqlErr.ExtendedCode {
			case sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintUnique:
				return fmt.Errorf("%w: %s", ErrPanelExists, panel.ID)
			case sqlite3.ErrConstraintForeignKey:
				return fmt.Errorf("%w: room %d does not exist", ErrInvalidPanel, panel.RoomID)
			}
		}
		return fmt.Errorf("creating panel: %w", err)
	}
	panel.CreatedAt = now
	return nil
}

// Get retrieves a panel by ID.
func (r *SQLitePanelRepository) Get(ctx context.Context, id string) (*Panel, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+panelColumns+` FROM panels WHERE id = ?`, id)
	p, err := scanPanel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPanelNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// List returns every panel, oldest first.
func (r *SQLitePanelRepository) List(ctx context.Context) ([]Panel, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+panelColumns+` FROM panels ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing panels: %w", err)
	}
	defer rows.Close()

	panels := []Panel{}
	for rows.Next() {
		p, err := scanPanel(rows)
		if err != nil {
			return nil, err
		}
		panels = append(panels, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating panels: %w", err)
	}
	return panels, nil
}

// CountByRole returns the number of active panels with role.
func (r *SQLitePanelRepository) CountByRole(ctx context.Context, role Role) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM panels WHERE role = ? AND active = 1`, string(role)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting panels: %w", err)
	}
	return n, nil
}

// SetActive enables or disables a panel.
func (r *SQLitePanelRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.update(ctx, "setting panel active", `UPDATE panels SET active = ? WHERE id = ?`, boolToInt(active), id)
}

// Touch records when a panel last authenticated.
func (r *SQLitePanelRepository) Touch(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, "updating last seen", `UPDATE panels SET last_seen_at = ? WHERE id = ?`,
		at.UTC().Format(time.RFC3339), id)
}

// Delete removes a panel.
func (r *SQLitePanelRepository) Delete(ctx context.Context, id string) error {
	return r.update(ctx, "deleting panel", `DELETE FROM panels WHERE id = ?`, id)
}

func (r *SQLitePanelRepository) update(ctx context.Context, what, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n == 0 {
		return ErrPanelNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPanel(row rowScanner) (*Panel, error) {
	var (
		p         Panel
		role      string
		roomID    sql.NullInt64
		active    int
		lastSeen  sql.NullString
		createdAt string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.SecretHash, &role, &roomID, &active, &lastSeen, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning panel: %w", err)
	}

	p.Role = Role(role)
	p.Active = active != 0
	if roomID.Valid {
		p.RoomID = uint(roomID.Int64) //nolint:gosec // G115: room IDs are positive (CHECK constraint)
	}
	if lastSeen.Valid {
		t, err := time.Parse(time.RFC3339, lastSeen.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_seen_at for panel %s: %w", p.ID, err)
		}
		p.LastSeenAt = &t
	}
	created, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at for panel %s: %w", p.ID, err)
	}
	p.CreatedAt = created
	return &p, nil
}

func nullRoom(id uint) any {
	if id == 0 {
		return nil
	}
	return int64(id)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
