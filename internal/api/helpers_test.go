package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/uxav/AVnetCore-sub001/internal/auth"
	"github.com/uxav/AVnetCore-sub001/internal/av"
	"github.com/uxav/AVnetCore-sub001/internal/eventlog"
	"github.com/uxav/AVnetCore-sub001/internal/infrastructure/config"
	"github.com/uxav/AVnetCore-sub001/internal/infrastructure/database"
	"github.com/uxav/AVnetCore-sub001/internal/infrastructure/logging"
	"github.com/uxav/AVnetCore-sub001/migrations"
)

const testJWTSecret = "api-test-secret"

// ─── Hooks ─────────────────────────────────────────────────────────

// testHooks can hold source loads at a gate and fail chosen sources.
type testHooks struct {
	mu   sync.Mutex
	gate chan struct{}
	fail map[uint]bool
}

func (h *testHooks) block() (release func()) {
	gate := make(chan struct{})
	h.mu.Lock()
	h.gate = gate
	h.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (h *testHooks) failSource(id uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fail == nil {
		h.fail = make(map[uint]bool)
	}
	h.fail[id] = true
}

func (h *testHooks) SourceShouldLoad(ctx context.Context, _ *av.Room, _, next *av.Source, _ uint) error {
	h.mu.Lock()
	gate := h.gate
	fail := next != nil && h.fail[next.ID()]
	h.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if fail {
		return errors.New("matrix offline")
	}
	return nil
}

func (h *testHooks) RoomPowerOnProcess(context.Context, *av.Room) error { return nil }

func (h *testHooks) RoomPowerOffProcess(context.Context, *av.Room, av.PowerOffReason) error {
	return nil
}

// ─── Fixture ───────────────────────────────────────────────────────

type fixture struct {
	server     *Server
	handler    http.Handler
	env        *av.Environment
	hooks      *testHooks
	db         *database.DB
	events     *eventlog.SQLiteRepository
	auth       *auth.Service
	panels     *auth.SQLitePanelRepository
	adminToken string
	panelToken string // bound to room 2
}

// newFixture builds a server over three rooms and three sources:
//
//	room 1 Hall, room 2 Breakout (child of 1), room 3 Studio
//	source 1 Lectern PC (rooms 1, 2), source 2 Apple TV (global),
//	source 3 Camera (room 3)
func newFixture(t *testing.T, mutate ...func(*Deps)) *fixture {
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
	if _, err := db.ExecContext(ctx, `INSERT INTO rooms (id, name) VALUES (1, 'Hall'), (2, 'Breakout'), (3, 'Studio')`); err != nil {
		t.Fatalf("inserting rooms: %v", err)
	}

	timing := av.DefaultTiming()
	timing.SourceSettle, timing.PowerOnSettle = 0, 0
	env := av.NewEnvironment(av.WithTiming(timing))
	t.Cleanup(env.Wait)

	hooks := &testHooks{}
	hall := mustRoom(t, env, av.RoomOptions{ID: 1, Name: "Hall", Hooks: hooks})
	breakout := mustRoom(t, env, av.RoomOptions{ID: 2, Name: "Breakout", Parent: hall, Hooks: hooks})
	studio := mustRoom(t, env, av.RoomOptions{ID: 3, Name: "Studio", Hooks: hooks})

	pc := mustSource(t, env, av.SourceOptions{ID: 1, Type: av.SourceTypePC, Name: "Lectern PC", GroupName: "Lectern"})
	mustSource(t, env, av.SourceOptions{ID: 2, Type: av.SourceTypeAppleTV, Name: "Apple TV"})
	cam := mustSource(t, env, av.SourceOptions{ID: 3, Type: av.SourceTypeCamera, Name: "Camera"})
	for _, pair := range []struct {
		src  *av.Source
		room *av.Room
	}{{pc, hall}, {pc, breakout}, {cam, studio}} {
		if err := pair.src.AssignRoom(pair.room); err != nil {
			t.Fatalf("AssignRoom: %v", err)
		}
	}

	panels := auth.NewPanelRepository(db.DB)
	svc, err := auth.NewService(panels, auth.ServiceOptions{
		JWTSecret:  testJWTSecret,
		HashParams: &auth.HashParams{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	events := eventlog.NewSQLiteRepository(db.DB)

	deps := Deps{
		Logger:  logging.Discard(),
		Env:     env,
		Auth:    svc,
		Panels:  panels,
		Events:  events,
		DB:      db,
		Health:  map[string]HealthChecker{"database": db},
		Version: "test",
	}
	for _, m := range mutate {
		m(&deps)
	}
	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return &fixture{
		server:     srv,
		handler:    srv.buildRouter(),
		env:        env,
		hooks:      hooks,
		db:         db,
		events:     events,
		auth:       svc,
		panels:     panels,
		adminToken: issueToken(t, &auth.Panel{ID: "pnl-admin", Role: auth.RoleAdmin}),
		panelToken: issueToken(t, &auth.Panel{ID: "pnl-breakout", Role: auth.RolePanel, RoomID: 2}),
	}
}

func mustRoom(t *testing.T, env *av.Environment, opts av.RoomOptions) *av.Room {
	t.Helper()
	r, err := av.NewRoom(env, opts)
	if err != nil {
		t.Fatalf("NewRoom(%d): %v", opts.ID, err)
	}
	return r
}

func mustSource(t *testing.T, env *av.Environment, opts av.SourceOptions) *av.Source {
	t.Helper()
	s, err := av.NewSource(env, opts)
	if err != nil {
		t.Fatalf("NewSource(%d): %v", opts.ID, err)
	}
	return s
}

func issueToken(t *testing.T, panel *auth.Panel) string {
	t.Helper()
	token, _, err := auth.IssueToken(panel, testJWTSecret, time.Minute, time.Now())
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return token
}

// do sends a request through the router. body may be nil, a string, or a
// value to marshal.
func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

func configForTest() config.WebSocketConfig {
	return config.WebSocketConfig{MaxMessageSize: 4096, PingInterval: 30, PongTimeout: 10}
}

// issueTokenAt signs a one minute admin token issued the given number of
// hours from now.
func issueTokenAt(t *testing.T, hours int) string {
	t.Helper()
	token, _, err := auth.IssueToken(&auth.Panel{ID: "pnl-old", Role: auth.RoleAdmin}, testJWTSecret, time.Minute,
		time.Now().Add(time.Duration(hours)*time.Hour))
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return token
}
