package auth

import (
	"context"
	"database/sql"
	"testing"

	"github.com/uxav/AVnetCore-sub001/internal/infrastructure/database"
	"github.com/uxav/AVnetCore-sub001/migrations"
)

// testParams keeps Argon2id cheap in tests.
var testParams = HashParams{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

const testJWTSecret = "test-secret-key-for-jwt-signing"

// testDB opens an in-memory database with all migrations and a room 1.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{Path: database.MemoryPath, BusyTimeout: 1})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx, migrations.FS, migrations.Dir); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO rooms (id, name) VALUES (1, 'Lecture Theatre')`); err != nil {
		t.Fatalf("inserting room: %v", err)
	}
	return db.DB
}

func testService(t *testing.T) (*Service, *SQLitePanelRepository) {
	t.Helper()
	repo := NewPanelRepository(testDB(t))
	params := testParams
	svc, err := NewService(repo, ServiceOptions{JWTSecret: testJWTSecret, HashParams: &params})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc, repo
}
