package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/RoomChat/internal/domain/apperr"
	"github.com/qrave1/RoomChat/internal/domain/input"
	"github.com/qrave1/RoomChat/internal/domain/models"
	"github.com/qrave1/RoomChat/internal/infra/adapters/kv"
	"github.com/qrave1/RoomChat/internal/infra/adapters/memory"
	"github.com/qrave1/RoomChat/internal/infra/adapters/redis"
)

func TestAddMember_CreatesRoomWithCreatorAsAdmin(t *testing.T) {
	f := newFixture(t)

	res := f.join(t, "c1", "  Alice ", " lobby ")

	assert.True(t, res.Created)
	assert.True(t, res.IsAdmin)
	assert.NotEmpty(t, res.AdminToken)
	assert.False(t, res.RequiresApproval)
	assert.Equal(t, 3, res.Capacity)
	assert.Equal(t, "alice", res.Session.Username)
	assert.Equal(t, "LOBBY", res.Session.RoomID)

	room, err := f.dir.Room(context.Background(), "lobby")
	require.NoError(t, err)
	require.NotNil(t, room)
	assert.Equal(t, models.RoomKindRegular, room.Kind)
	assert.IsType(t, models.Transferable{}, room.Admin)
	assert.Equal(t, "c1", room.Admin.Holder())

	session, err := f.dir.Session(context.Background(), "c1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "LOBBY", session.RoomID)

	assert.Contains(t, f.audit.actions(), models.AuditRoomCreated)
}

func TestAddMember_InvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []input.JoinInput{
		{ConnectionID: "c1", Username: "   ", RoomID: "R"},
		{ConnectionID: "c1", Username: "alice", RoomID: " "},
		{ConnectionID: "", Username: "alice", RoomID: "R"},
		{ConnectionID: "c1", Username: strings.Repeat("a", 33), RoomID: "R"},
		{ConnectionID: "c1", Username: "alice", RoomID: strings.Repeat("r", 65)},
	}

	for _, in := range cases {
		res, err := f.dir.AddMember(ctx, in)
		assert.ErrorIs(t, err, apperr.ErrInvalidInput)
		assert.Nil(t, res)
	}

	room, err := f.dir.Room(ctx, "R")
	require.NoError(t, err)
	assert.Nil(t, room)
}

func TestAddMember_CapacityIsNeverExceeded(t *testing.T) {
	f := newFixture(t)

	f.join(t, "c1", "a", "R")
	f.join(t, "c2", "b", "R")
	f.join(t, "c3", "c", "R")

	res, err := f.dir.AddMember(context.Background(), input.JoinInput{ConnectionID: "c4", Username: "d", RoomID: "R"})
	assert.ErrorIs(t, err, apperr.ErrRoomFull)
	require.NotNil(t, res)
	assert.Nil(t, res.Evicted)

	assert.Equal(t, []string{"c1", "c2", "c3"}, f.memberIDs(t, "R"))

	session, err := f.dir.Session(context.Background(), "c4")
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestAddMember_ConcurrentJoinsRespectCapacity(t *testing.T) {
	f := newFixture(t)
	f.join(t, "owner", "owner", "R")

	const joiners = 20

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		joined int
		full   int
	)

	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			_, err := f.dir.AddMember(context.Background(), input.JoinInput{
				ConnectionID: fmt.Sprintf("c%d", i),
				Username:     fmt.Sprintf("user%d", i),
				RoomID:       "R",
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				joined++
			case assert.ErrorIs(t, err, apperr.ErrRoomFull):
				full++
			}
		}(i)
	}

	wg.Wait()

	assert.Equal(t, 2, joined)
	assert.Equal(t, joiners-2, full)
	assert.Len(t, f.memberIDs(t, "R"), 3)
	assert.Equal(t, 0, f.dir.locks.size())
}

func TestAddMember_LocationRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.dir.AddMember(ctx, input.JoinInput{
		ConnectionID:          "c1",
		Username:              "alice",
		RoomID:                "loc_u4pruy",
		RequiresAdminApproval: true,
	})
	require.NoError(t, err)

	assert.True(t, res.Created)
	assert.False(t, res.IsAdmin)
	assert.Empty(t, res.AdminToken)
	assert.False(t, res.RequiresApproval)
	assert.Equal(t, 5, res.Capacity)

	for i := 2; i <= 5; i++ {
		f.join(t, fmt.Sprintf("c%d", i), fmt.Sprintf("u%d", i), "LOC_U4PRUY")
	}

	_, err = f.dir.AddMember(ctx, input.JoinInput{ConnectionID: "c6", Username: "u6", RoomID: "LOC_U4PRUY"})
	assert.ErrorIs(t, err, apperr.ErrRoomFull)

	admin, err := f.dir.CurrentAdmin(ctx, "LOC_U4PRUY")
	require.NoError(t, err)
	assert.Empty(t, admin)

	requires, err := f.dir.RequiresApproval(ctx, "LOC_U4PRUY")
	require.NoError(t, err)
	assert.False(t, requires)
}

func TestAddMember_UsernameUniqueness(t *testing.T) {
	f := newFixture(t)

	f.join(t, "c1", "Alice", "R")

	_, err := f.dir.AddMember(context.Background(), input.JoinInput{ConnectionID: "c2", Username: " ALICE", RoomID: "R"})
	assert.ErrorIs(t, err, apperr.ErrUsernameTaken)
	assert.Equal(t, []string{"c1"}, f.memberIDs(t, "R"))

	// в другой комнате имя свободно
	f.join(t, "c2", "alice", "OTHER")

	// после выхода имя освобождается
	_, err = f.dir.RemoveMember(context.Background(), "c1")
	require.NoError(t, err)
	f.join(t, "c3", "alice", "R")
}

func TestAddMember_EvictsPriorSession(t *testing.T) {
	f := newFixture(t)

	f.join(t, "c1", "alice", "A")
	f.join(t, "c2", "bob", "A")

	res := f.join(t, "c1", "alice", "B")

	require.NotNil(t, res.Evicted)
	assert.Equal(t, "A", res.Evicted.Session.RoomID)
	assert.True(t, res.Evicted.WasAdmin)
	require.NotNil(t, res.Evicted.AdminChange)
	assert.Equal(t, "c2", res.Evicted.AdminChange.ConnectionID)

	assert.Equal(t, []string{"c2"}, f.memberIDs(t, "A"))
	assert.Equal(t, []string{"c1"}, f.memberIDs(t, "B"))

	session, err := f.dir.Session(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "B", session.RoomID)
}

func TestAddMember_FailedJoinKeepsPriorSession(t *testing.T) {
	f := newFixture(t)

	f.join(t, "c1", "alice", "A")
	f.join(t, "x1", "alice", "B")

	_, err := f.dir.AddMember(context.Background(), input.JoinInput{ConnectionID: "c1", Username: "alice", RoomID: "B"})
	assert.ErrorIs(t, err, apperr.ErrUsernameTaken)

	assert.Equal(t, []string{"c1"}, f.memberIDs(t, "A"))
}

func TestRemoveMember_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.join(t, "c1", "alice", "R")
	f.join(t, "c2", "bob", "R")

	first, err := f.dir.RemoveMember(ctx, "c2")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 1, first.Remaining)
	assert.Equal(t, "bob", first.Session.Username)

	second, err := f.dir.RemoveMember(ctx, "c2")
	require.NoError(t, err)
	assert.Nil(t, second)

	assert.Equal(t, []string{"c1"}, f.memberIDs(t, "R"))
}

func TestRemoveMember_RacingLeaveAndDisconnect(t *testing.T) {
	f := newFixture(t)

	f.join(t, "c1", "alice", "R")
	f.join(t, "c2", "bob", "R")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		removed int
	)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			res, err := f.dir.RemoveMember(context.Background(), "c2")
			assert.NoError(t, err)

			if res != nil {
				mu.Lock()
				removed++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"c1"}, f.memberIDs(t, "R"))
}

func TestRemoveMember_UnknownConnectionIsNoop(t *testing.T) {
	f := newFixture(t)

	res, err := f.dir.RemoveMember(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestAdminTokenContinuityAcrossReconnect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.createApprovalRoom(t, "a1", "alice", "R")
	token := created.AdminToken
	require.NotEmpty(t, token)
	assert.True(t, created.RequiresApproval)

	queued := f.join(t, "b1", "bob", "R")
	require.NotNil(t, queued.Queued)

	_, err := f.dir.Approve(ctx, "R", "a1", "b1")
	require.NoError(t, err)

	// админ отключился
	left, err := f.dir.RemoveMember(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, left.WasAdmin)
	assert.Nil(t, left.AdminChange)

	admin, err := f.dir.CurrentAdmin(ctx, "R")
	require.NoError(t, err)
	assert.Empty(t, admin)

	isAdmin, err := f.dir.IsAdmin(ctx, "b1", "R")
	require.NoError(t, err)
	assert.False(t, isAdmin)

	current, err := f.dir.CurrentToken(ctx, "R")
	require.NoError(t, err)
	assert.Equal(t, token, current)

	// переподключение с новым соединением и тем же токеном
	res, err := f.dir.AddMember(ctx, input.JoinInput{
		ConnectionID: "a2",
		Username:     "alice",
		RoomID:       "R",
		AdminToken:   token,
	})
	require.NoError(t, err)
	assert.Nil(t, res.Queued)
	assert.True(t, res.IsAdmin)
	assert.Equal(t, token, res.AdminToken)

	admin, err = f.dir.CurrentAdmin(ctx, "R")
	require.NoError(t, err)
	assert.Equal(t, "a2", admin)
}

func TestAdminToken_WrongTokenIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createApprovalRoom(t, "a1", "alice", "R")
	other := f.createApprovalRoom(t, "x1", "xavier", "OTHER")

	// токен чужой комнаты не даёт прав и не пропускает очередь
	res, err := f.dir.AddMember(ctx, input.JoinInput{
		ConnectionID: "m1",
		Username:     "mallory",
		RoomID:       "R",
		AdminToken:   other.AdminToken,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Queued)
	assert.False(t, res.IsAdmin)
	assert.Empty(t, res.AdminToken)
}

func TestAdminHandoffOnDeparture(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.join(t, "a1", "alice", "R")
	b := f.join(t, "b1", "bob", "R")
	assert.False(t, b.IsAdmin)
	assert.Empty(t, b.AdminToken)
	f.join(t, "c1", "carol", "R")

	res, err := f.dir.RemoveMember(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, res.AdminChange)

	// следующий по времени входа
	assert.Equal(t, "b1", res.AdminChange.ConnectionID)
	assert.Equal(t, "bob", res.AdminChange.Username)
	assert.NotEqual(t, created.AdminToken, res.AdminChange.AdminToken)

	admin, err := f.dir.CurrentAdmin(ctx, "R")
	require.NoError(t, err)
	assert.Equal(t, "b1", admin)

	token, err := f.dir.CurrentToken(ctx, "R")
	require.NoError(t, err)
	assert.Equal(t, res.AdminChange.AdminToken, token)

	assert.Contains(t, f.audit.actions(), models.AuditAdminTransferred)
}

func TestAdminHandoff_RetriesStoreWrites(t *testing.T) {
	store := memory.NewKVStore()
	f := newFixtureWithStore(t, store, time.Hour)

	flaky := &flakyRooms{RoomRepository: f.dir.rooms, failures: 3}
	f.dir.rooms = flaky

	f.join(t, "a1", "alice", "R")
	f.join(t, "b1", "bob", "R")

	flaky.arm()

	res, err := f.dir.RemoveMember(context.Background(), "a1")
	require.NoError(t, err)
	require.NotNil(t, res.AdminChange)
	assert.Equal(t, "b1", res.AdminChange.ConnectionID)
	assert.Equal(t, 4, flaky.attempts())
}

func TestAdminHandoff_GivesUpWhenContextEnds(t *testing.T) {
	f := newFixture(t)

	flaky := &flakyRooms{RoomRepository: f.dir.rooms, failures: 1 << 30}
	f.dir.rooms = flaky

	f.join(t, "a1", "alice", "R")
	f.join(t, "b1", "bob", "R")

	flaky.arm()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	res, err := f.dir.RemoveMember(ctx, "a1")
	require.Error(t, err)
	require.NotNil(t, res)
	assert.True(t, res.WasAdmin)
	assert.Nil(t, res.AdminChange)

	// фантомного админа нет
	admin, err := f.dir.CurrentAdmin(context.Background(), "R")
	require.NoError(t, err)
	assert.NotEqual(t, "b1", admin)
}

type flakyRooms struct {
	kv.RoomRepository

	mu       sync.Mutex
	armed    bool
	failures int
	calls    int
}

func (r *flakyRooms) arm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.armed = true
}

func (r *flakyRooms) attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *flakyRooms) SetAdmin(ctx context.Context, roomID string, mode models.AdminMode) error {
	r.mu.Lock()
	if r.armed {
		r.calls++
		if r.calls <= r.failures {
			r.mu.Unlock()
			return fmt.Errorf("redis: i/o timeout")
		}
	}
	r.mu.Unlock()

	return r.RoomRepository.SetAdmin(ctx, roomID, mode)
}

func TestTransferableRoom_VacantAdminGoesToNextJoiner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.join(t, "a1", "alice", "R")

	_, err := f.dir.RemoveMember(ctx, "a1")
	require.NoError(t, err)

	res := f.join(t, "b1", "bob", "R")
	assert.False(t, res.Created)
	assert.True(t, res.IsAdmin)
	assert.NotEmpty(t, res.AdminToken)
	assert.NotEqual(t, created.AdminToken, res.AdminToken)
}

func TestTransferAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.join(t, "a1", "alice", "R")
	f.join(t, "b1", "bob", "R")

	_, err := f.dir.TransferAdmin(ctx, "R", "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.dir.HandOver(ctx, "R", "b1", "a1")
	assert.ErrorIs(t, err, apperr.ErrNotAdmin)

	_, err = f.dir.HandOver(ctx, "R", "a1", "a1")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	token, err := f.dir.HandOver(ctx, "R", "a1", "b1")
	require.NoError(t, err)
	assert.NotEqual(t, created.AdminToken, token)

	admin, err := f.dir.CurrentAdmin(ctx, "R")
	require.NoError(t, err)
	assert.Equal(t, "b1", admin)

	token2, err := f.dir.TransferAdmin(ctx, "R", "a1")
	require.NoError(t, err)
	assert.NotEqual(t, token, token2)

	_, err = f.dir.TransferAdmin(ctx, "NOPE", "a1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestKick(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.join(t, "a1", "alice", "R")
	f.join(t, "b1", "bob", "R")
	f.join(t, "x1", "xavier", "OTHER")

	_, err := f.dir.Kick(ctx, "R", "b1", "a1")
	assert.ErrorIs(t, err, apperr.ErrNotAdmin)

	_, err = f.dir.Kick(ctx, "R", "a1", "a1")
	assert.ErrorIs(t, err, apperr.ErrCannotKickSelf)

	_, err = f.dir.Kick(ctx, "R", "a1", "x1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	res, err := f.dir.Kick(ctx, "R", "a1", "b1")
	require.NoError(t, err)
	assert.Equal(t, "bob", res.Session.Username)
	assert.Equal(t, []string{"a1"}, f.memberIDs(t, "R"))

	// кикнутое соединение не может тут же вернуться
	_, err = f.dir.AddMember(ctx, input.JoinInput{ConnectionID: "b1", Username: "bob", RoomID: "R"})
	assert.ErrorIs(t, err, apperr.ErrKicked)
	assert.Equal(t, []string{"a1"}, f.memberIDs(t, "R"))

	assert.Contains(t, f.audit.actions(), models.AuditUserKicked)
}

func TestEmptyRoom_ClearsPendingAndArmsTeardown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createApprovalRoom(t, "a1", "alice", "R")
	f.join(t, "c1", "carol", "R")

	res, err := f.dir.RemoveMember(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Remaining)
	require.Len(t, res.ClearedPending, 1)
	assert.Equal(t, "c1", res.ClearedPending[0].ConnectionID)

	pending, err := f.dir.ListPending(ctx, "R")
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.True(t, f.dir.scheduler.Armed("R"))

	// новый участник отменяет таймер
	f.join(t, "b1", "bob", "R")
	assert.False(t, f.dir.scheduler.Armed("R"))
}

func TestTeardown_RunsAfterGrace(t *testing.T) {
	f := newFixtureWithStore(t, memory.NewKVStore(), 30*time.Millisecond)
	ctx := context.Background()

	f.join(t, "a1", "alice", "R")
	_, err := f.dir.RemoveMember(ctx, "a1")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		room, err := f.dir.Room(ctx, "R")
		return err == nil && room == nil
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"R"}, f.hooks.calls())

	ids, err := f.dir.rooms.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	assert.Eventually(t, func() bool {
		for _, a := range f.audit.actions() {
			if a == models.AuditRoomTornDown {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestTeardown_CancelledByRejoin(t *testing.T) {
	f := newFixtureWithStore(t, memory.NewKVStore(), 80*time.Millisecond)
	ctx := context.Background()

	f.join(t, "a1", "alice", "R")
	_, err := f.dir.RemoveMember(ctx, "a1")
	require.NoError(t, err)

	f.join(t, "b1", "bob", "R")

	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, []string{"b1"}, f.memberIDs(t, "R"))
	assert.Empty(t, f.hooks.calls())
}

func TestTeardown_SkipsNonEmptyRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.join(t, "a1", "alice", "R")

	done, err := f.dir.teardown(ctx, "R")
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, []string{"a1"}, f.memberIDs(t, "R"))
}

func TestTeardown_HookFailureStillDeletesRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.hooks.err = fmt.Errorf("history store down")

	f.join(t, "a1", "alice", "R")
	_, err := f.dir.RemoveMember(ctx, "a1")
	require.NoError(t, err)

	f.dir.scheduler.Cancel("R")

	done, err := f.dir.teardown(ctx, "R")
	require.NoError(t, err)
	assert.True(t, done)

	room, err := f.dir.Room(ctx, "R")
	require.NoError(t, err)
	assert.Nil(t, room)
}

func TestRecover_UnseatsStaleMembers(t *testing.T) {
	store := memory.NewKVStore()
	ctx := context.Background()

	before := newFixtureWithStore(t, store, time.Hour)
	created := before.createApprovalRoom(t, "a1", "alice", "R")
	before.join(t, "b1", "bob", "LOBBY")
	before.join(t, "q1", "quinn", "R")
	before.dir.Close()

	// процесс перезапустился поверх того же стора
	after := newFixtureWithStore(t, store, time.Hour)

	n, err := after.dir.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Empty(t, after.memberIDs(t, "R"))
	assert.Empty(t, after.memberIDs(t, "LOBBY"))
	assert.True(t, after.dir.scheduler.Armed("R"))
	assert.True(t, after.dir.scheduler.Armed("LOBBY"))

	session, err := after.dir.Session(ctx, "a1")
	require.NoError(t, err)
	assert.Nil(t, session)

	pending, err := after.dir.ListPending(ctx, "R")
	require.NoError(t, err)
	assert.Empty(t, pending)

	// токен владельца переживает рестарт
	res, err := after.dir.AddMember(ctx, input.JoinInput{
		ConnectionID: "a9",
		Username:     "alice",
		RoomID:       "R",
		AdminToken:   created.AdminToken,
	})
	require.NoError(t, err)
	assert.True(t, res.IsAdmin)
	assert.Equal(t, created.AdminToken, res.AdminToken)
}

func TestTouchSession_KeepsActiveMemberRemovable(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := redis.NewKVStore(client)

	cfg := testRoomsConfig(time.Hour)
	cfg.SessionTTL = time.Minute
	dir := NewRoomDirectory(
		cfg,
		kv.NewSessionRepository(store, cfg.SessionTTL),
		kv.NewRoomRepository(store, cfg.RoomTTL),
		NewTokenIssuer(testSecret),
		NewLifecycleScheduler(time.Hour),
		&auditLog{},
		(&hookCalls{}).hook,
	)
	t.Cleanup(dir.Close)

	_, err := dir.AddMember(ctx, input.JoinInput{ConnectionID: "c1", Username: "alice", RoomID: "R"})
	require.NoError(t, err)
	_, err = dir.AddMember(ctx, input.JoinInput{ConnectionID: "c2", Username: "bob", RoomID: "R"})
	require.NoError(t, err)

	// соединение живое дольше TTL сессии
	for i := 0; i < 5; i++ {
		mr.FastForward(40 * time.Second)
		require.NoError(t, dir.TouchSession(ctx, "c1"))
		require.NoError(t, dir.TouchSession(ctx, "c2"))
	}

	res, err := dir.RemoveMember(ctx, "c2")
	require.NoError(t, err)
	require.NotNil(t, res)

	room, err := dir.Room(ctx, "R")
	require.NoError(t, err)
	require.NotNil(t, room)
	require.Len(t, room.Members, 1)
	assert.Equal(t, "c1", room.Members[0].ConnectionID)

	// несидящее соединение не ошибка
	require.NoError(t, dir.TouchSession(ctx, "nobody"))
}
