package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qrave1/RoomChat/internal/application/config"
	"github.com/qrave1/RoomChat/internal/domain/input"
	"github.com/qrave1/RoomChat/internal/domain/models"
	"github.com/qrave1/RoomChat/internal/infra/adapters/kv"
	"github.com/qrave1/RoomChat/internal/infra/adapters/memory"
)

const testSecret = "test-secret"

type auditLog struct {
	mu     sync.Mutex
	events []models.AuditEvent
}

func (a *auditLog) Record(_ context.Context, ev models.AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.events = append(a.events, ev)
	return nil
}

func (a *auditLog) actions() []models.AuditAction {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]models.AuditAction, 0, len(a.events))
	for _, ev := range a.events {
		out = append(out, ev.Action)
	}
	return out
}

type hookCalls struct {
	mu    sync.Mutex
	rooms []string
	err   error
}

func (h *hookCalls) hook(_ context.Context, roomID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.rooms = append(h.rooms, roomID)
	return h.err
}

func (h *hookCalls) calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]string(nil), h.rooms...)
}

type fixture struct {
	dir   *RoomDirectory
	store *memory.KVStore
	audit *auditLog
	hooks *hookCalls
}

func testRoomsConfig(grace time.Duration) config.RoomsConfig {
	return config.RoomsConfig{
		RegularCapacity:  3,
		LocationCapacity: 5,
		LocationPrefix:   "LOC_",
		TeardownGrace:    grace,
		SessionTTL:       time.Hour,
		RoomTTL:          time.Hour,
		KickMarkerTTL:    10 * time.Second,
	}
}

// steppingClock returns strictly increasing times so join order is deterministic.
func steppingClock() func() time.Time {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var n atomic.Int64

	return func() time.Time {
		return base.Add(time.Duration(n.Add(1)) * time.Millisecond)
	}
}

func newFixtureWithStore(t *testing.T, store *memory.KVStore, grace time.Duration) *fixture {
	t.Helper()

	cfg := testRoomsConfig(grace)
	f := &fixture{store: store, audit: &auditLog{}, hooks: &hookCalls{}}

	f.dir = NewRoomDirectory(
		cfg,
		kv.NewSessionRepository(store, cfg.SessionTTL),
		kv.NewRoomRepository(store, cfg.RoomTTL),
		NewTokenIssuer(testSecret),
		NewLifecycleScheduler(grace),
		f.audit,
		f.hooks.hook,
	)
	f.dir.now = steppingClock()
	f.dir.retryBase = time.Millisecond

	t.Cleanup(f.dir.Close)

	return f
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithStore(t, memory.NewKVStore(), time.Hour)
}

func (f *fixture) join(t *testing.T, connID, username, roomID string) *JoinResult {
	t.Helper()

	res, err := f.dir.AddMember(context.Background(), input.JoinInput{
		ConnectionID: connID,
		Username:     username,
		RoomID:       roomID,
	})
	require.NoError(t, err)
	require.NotNil(t, res)

	return res
}

func (f *fixture) createApprovalRoom(t *testing.T, connID, username, roomID string) *JoinResult {
	t.Helper()

	res, err := f.dir.AddMember(context.Background(), input.JoinInput{
		ConnectionID:          connID,
		Username:              username,
		RoomID:                roomID,
		RequiresAdminApproval: true,
	})
	require.NoError(t, err)
	require.True(t, res.Created)

	return res
}

func (f *fixture) memberIDs(t *testing.T, roomID string) []string {
	t.Helper()

	room, err := f.dir.Room(context.Background(), roomID)
	require.NoError(t, err)
	if room == nil {
		return nil
	}

	ids := make([]string, 0, len(room.Members))
	for _, m := range room.Members {
		ids = append(ids, m.ConnectionID)
	}
	return ids
}
