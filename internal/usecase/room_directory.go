package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/qrave1/RoomChat/internal/application/config"
	"github.com/qrave1/RoomChat/internal/application/constant"
	"github.com/qrave1/RoomChat/internal/application/metric"
	"github.com/qrave1/RoomChat/internal/domain/apperr"
	"github.com/qrave1/RoomChat/internal/domain/input"
	"github.com/qrave1/RoomChat/internal/domain/models"
	"github.com/qrave1/RoomChat/internal/infra/adapters/kv"
)

const (
	maxUsernameLength = 32
	maxRoomIDLength   = 64

	teardownTimeout = 10 * time.Second
	auditTimeout    = 2 * time.Second

	handoffRetryBase = 50 * time.Millisecond
	handoffRetryMax  = 2 * time.Second
)

// AuditRecorder keeps a record of moderation events.
type AuditRecorder interface {
	Record(ctx context.Context, event models.AuditEvent) error
}

// TeardownHook is invoked with the room id right before an empty room is deleted.
type TeardownHook func(ctx context.Context, roomID string) error

type JoinResult struct {
	Session          models.Session
	IsAdmin          bool
	AdminToken       string // set only when admin was granted or confirmed by this join
	Created          bool
	RequiresApproval bool
	Capacity         int

	// PreviousAdmin is a still seated connection that lost admin to this join.
	PreviousAdmin string
	// Queued is set when the join waits for admin approval instead of completing.
	Queued *models.PendingJoin

	Evicted          *LeaveResult
	CancelledPending *models.PendingJoin
}

type AdminChange struct {
	ConnectionID string
	Username     string
	AdminToken   string
}

type LeaveResult struct {
	Session        models.Session
	WasAdmin       bool
	AdminChange    *AdminChange
	Remaining      int
	ClearedPending []models.PendingJoin
}

// RoomDirectory owns room membership, the admin capability and the pending-join
// queue. Every membership-affecting sequence runs under the room's lock and no code
// path holds two room locks at once.
type RoomDirectory struct {
	cfg config.RoomsConfig

	sessions kv.SessionRepository
	rooms    kv.RoomRepository

	tokens     *TokenIssuer
	scheduler  *LifecycleScheduler
	audit      AuditRecorder
	onTeardown TeardownHook

	locks     *keyedMutex
	now       func() time.Time
	retryBase time.Duration
}

func NewRoomDirectory(
	cfg config.RoomsConfig,
	sessions kv.SessionRepository,
	rooms kv.RoomRepository,
	tokens *TokenIssuer,
	scheduler *LifecycleScheduler,
	audit AuditRecorder,
	onTeardown TeardownHook,
) *RoomDirectory {
	if audit == nil {
		audit = nopAudit{}
	}

	return &RoomDirectory{
		cfg:        cfg,
		sessions:   sessions,
		rooms:      rooms,
		tokens:     tokens,
		scheduler:  scheduler,
		audit:      audit,
		onTeardown: onTeardown,
		locks:      newKeyedMutex(),
		now:        func() time.Time { return time.Now().UTC() },
		retryBase:  handoffRetryBase,
	}
}

type nopAudit struct{}

func (nopAudit) Record(context.Context, models.AuditEvent) error { return nil }

// Kind reports whether roomID names a location room.
func (d *RoomDirectory) Kind(roomID string) models.RoomKind {
	if d.cfg.LocationPrefix != "" && strings.HasPrefix(roomID, strings.ToUpper(d.cfg.LocationPrefix)) {
		return models.RoomKindLocation
	}

	return models.RoomKindRegular
}

func (d *RoomDirectory) Capacity(roomID string) int {
	if d.Kind(roomID) == models.RoomKindLocation {
		return d.cfg.LocationCapacity
	}

	return d.cfg.RegularCapacity
}

// Room returns a snapshot of the room, nil if it does not exist.
func (d *RoomDirectory) Room(ctx context.Context, roomID string) (*models.Room, error) {
	return d.loadRoom(ctx, models.NormalizeRoomID(roomID))
}

// Session returns the session of a connection, nil if it is not seated anywhere.
func (d *RoomDirectory) Session(ctx context.Context, connID string) (*models.Session, error) {
	return d.sessions.Get(ctx, connID)
}

// TouchSession keeps a live connection's session and its room from expiring in the
// store. Unseated connections are ignored.
func (d *RoomDirectory) TouchSession(ctx context.Context, connID string) error {
	session, err := d.sessions.Get(ctx, connID)
	if err != nil || session == nil {
		return err
	}

	if err = d.sessions.Touch(ctx, connID); err != nil {
		return err
	}

	return d.rooms.Refresh(ctx, session.RoomID)
}

// AddMember seats a connection in a room, creating the room on first join. A prior
// session of the connection is evicted first and a pending request it has in another
// room is cancelled; both are reported in the result even when the join then fails.
func (d *RoomDirectory) AddMember(ctx context.Context, in input.JoinInput) (*JoinResult, error) {
	in, err := normalizeJoin(in)
	if err != nil {
		return nil, err
	}

	if err = d.checkKicked(ctx, in.ConnectionID); err != nil {
		return nil, err
	}

	res := &JoinResult{}

	prior, err := d.sessions.Get(ctx, in.ConnectionID)
	if err != nil {
		return nil, err
	}

	if prior != nil {
		// не выкидываем из старой комнаты, если в новую всё равно не пустят
		if err = d.precheck(ctx, in); err != nil {
			return nil, err
		}

		res.Evicted, err = d.RemoveMember(ctx, in.ConnectionID)
		if err != nil {
			return nil, fmt.Errorf("evict prior session: %w", err)
		}
	}

	pendingRoom, ok, err := d.rooms.PendingRoomOf(ctx, in.ConnectionID)
	if err != nil {
		return res, err
	}

	if ok && pendingRoom != in.RoomID {
		res.CancelledPending, err = d.CancelPending(ctx, pendingRoom, in.ConnectionID)
		if err != nil {
			return res, fmt.Errorf("cancel pending join: %w", err)
		}
	}

	unlock := d.locks.Lock(in.RoomID)
	defer unlock()

	if err = d.checkKicked(ctx, in.ConnectionID); err != nil {
		return res, err
	}

	if err = d.joinLocked(ctx, in, false, res); err != nil {
		return res, err
	}

	return res, nil
}

func normalizeJoin(in input.JoinInput) (input.JoinInput, error) {
	in.Username = models.NormalizeUsername(in.Username)
	in.RoomID = models.NormalizeRoomID(in.RoomID)
	in.AdminToken = strings.TrimSpace(in.AdminToken)

	switch {
	case in.ConnectionID == "":
		return in, fmt.Errorf("%w: connection id is required", apperr.ErrInvalidInput)
	case in.Username == "":
		return in, fmt.Errorf("%w: username is required", apperr.ErrInvalidInput)
	case in.RoomID == "":
		return in, fmt.Errorf("%w: room id is required", apperr.ErrInvalidInput)
	case utf8.RuneCountInString(in.Username) > maxUsernameLength:
		return in, fmt.Errorf("%w: username is longer than %d characters", apperr.ErrInvalidInput, maxUsernameLength)
	case utf8.RuneCountInString(in.RoomID) > maxRoomIDLength:
		return in, fmt.Errorf("%w: room id is longer than %d characters", apperr.ErrInvalidInput, maxRoomIDLength)
	}

	return in, nil
}

func (d *RoomDirectory) checkKicked(ctx context.Context, connID string) error {
	kicked, err := d.sessions.IsKicked(ctx, connID)
	if err != nil {
		return err
	}

	if kicked {
		return apperr.ErrKicked
	}

	return nil
}

// precheck runs the capacity and username checks without the room lock. The
// authoritative checks are repeated under the lock.
func (d *RoomDirectory) precheck(ctx context.Context, in input.JoinInput) error {
	room, err := d.loadRoom(ctx, in.RoomID)
	if err != nil || room == nil {
		return err
	}

	count := len(room.Members)
	if room.IsMember(in.ConnectionID) {
		count--
	}

	if count >= room.Capacity {
		return apperr.ErrRoomFull
	}

	for _, m := range room.Members {
		if m.Username == in.Username && m.ConnectionID != in.ConnectionID {
			return apperr.ErrUsernameTaken
		}
	}

	return nil
}

// joinLocked runs the join algorithm for an unseated connection. bypassGate is set
// by Approve.
func (d *RoomDirectory) joinLocked(ctx context.Context, in input.JoinInput, bypassGate bool, res *JoinResult) error {
	room, err := d.loadRoom(ctx, in.RoomID)
	if err != nil {
		return err
	}

	now := d.now()

	res.Session = models.Session{
		ConnectionID: in.ConnectionID,
		Username:     in.Username,
		RoomID:       in.RoomID,
		JoinedAt:     now,
	}

	if room == nil {
		return d.createLocked(ctx, in, now, res)
	}

	res.Capacity = room.Capacity
	res.RequiresApproval = room.RequiresApproval()

	if len(room.Members) >= room.Capacity {
		return apperr.ErrRoomFull
	}

	for _, m := range room.Members {
		if m.Username == in.Username {
			return apperr.ErrUsernameTaken
		}
	}

	tokenValid := d.tokenMatches(room, in.AdminToken)

	if !bypassGate && !tokenValid && room.RequiresApproval() &&
		room.Admin.Holder() != "" && len(room.Members) > 0 {
		res.Queued, err = d.enqueueLocked(ctx, in.RoomID, in.ConnectionID, in.Username, now)
		return err
	}

	if err = d.seatLocked(ctx, res.Session); err != nil {
		return err
	}

	switch {
	case tokenValid:
		prev := room.Admin.Holder()
		if err = d.setAdminWithRetry(ctx, in.RoomID, room.Admin.WithHolder(in.ConnectionID)); err != nil {
			return err
		}

		res.IsAdmin = true
		res.AdminToken = room.Admin.Token()
		if prev != in.ConnectionID {
			res.PreviousAdmin = prev
		}

	case isVacantTransferable(room.Admin):
		token, err := d.tokens.Issue(in.RoomID)
		if err != nil {
			return err
		}

		mode := models.Transferable{AdminToken: token, HolderID: in.ConnectionID}
		if err = d.setAdminWithRetry(ctx, in.RoomID, mode); err != nil {
			return err
		}

		res.IsAdmin = true
		res.AdminToken = token

		d.record(ctx, models.AuditAdminTransferred, in.RoomID, "", in.ConnectionID, "vacant")
	}

	return nil
}

func (d *RoomDirectory) createLocked(ctx context.Context, in input.JoinInput, now time.Time, res *JoinResult) error {
	var mode models.AdminMode = models.NoAdmin{}

	if d.Kind(in.RoomID) != models.RoomKindLocation {
		token, err := d.tokens.Issue(in.RoomID)
		if err != nil {
			return err
		}

		if in.RequiresAdminApproval {
			mode = models.OwnerLocked{AdminToken: token, HolderID: in.ConnectionID}
		} else {
			mode = models.Transferable{AdminToken: token, HolderID: in.ConnectionID}
		}
	}

	err := d.rooms.SaveMeta(ctx, in.RoomID, models.RoomMeta{
		Admin:          mode,
		CreatedAt:      now,
		LastActivityAt: now,
	})
	if err != nil {
		return err
	}

	if err = d.seatLocked(ctx, res.Session); err != nil {
		return err
	}

	res.Created = true
	res.Capacity = d.Capacity(in.RoomID)
	res.RequiresApproval = models.RequiresApproval(mode)
	res.IsAdmin = mode.Holder() == in.ConnectionID
	res.AdminToken = mode.Token()

	metric.RoomCreated()
	d.record(ctx, models.AuditRoomCreated, in.RoomID, in.ConnectionID, "", models.AdminModeName(mode))

	slog.Info(
		"room created",
		slog.String(constant.RoomID, in.RoomID),
		slog.String("admin_mode", models.AdminModeName(mode)),
	)

	return nil
}

func (d *RoomDirectory) seatLocked(ctx context.Context, s models.Session) error {
	if err := d.rooms.AddMember(ctx, s.RoomID, s.ConnectionID, s.Username, s.JoinedAt); err != nil {
		return err
	}

	if err := d.sessions.Put(ctx, s); err != nil {
		return err
	}

	if err := d.rooms.RemovePending(ctx, s.RoomID, s.ConnectionID); err != nil {
		return err
	}

	if err := d.rooms.Touch(ctx, s.RoomID, s.JoinedAt); err != nil {
		return err
	}

	d.scheduler.Cancel(s.RoomID)
	metric.SessionOpened()

	return nil
}

func (d *RoomDirectory) tokenMatches(room *models.Room, token string) bool {
	if token == "" || room.Admin.Token() == "" || token != room.Admin.Token() {
		return false
	}

	if err := d.tokens.Verify(token, room.ID); err != nil {
		slog.Warn("admin token rejected", slog.String(constant.RoomID, room.ID), slog.Any(constant.Error, err))
		return false
	}

	return true
}

func isVacantTransferable(mode models.AdminMode) bool {
	t, ok := mode.(models.Transferable)
	return ok && t.HolderID == ""
}

// RemoveMember unseats a connection. It returns nil without error when the
// connection has no session, so a leave racing a disconnect takes effect once.
func (d *RoomDirectory) RemoveMember(ctx context.Context, connID string) (*LeaveResult, error) {
	for {
		s, err := d.sessions.Get(ctx, connID)
		if err != nil || s == nil {
			return nil, err
		}

		res, moved, err := d.removeIn(ctx, s.RoomID, connID)
		if !moved {
			return res, err
		}
	}
}

// removeIn removes connID from roomID under the room lock. moved reports that the
// session switched rooms before the lock was taken.
func (d *RoomDirectory) removeIn(ctx context.Context, roomID, connID string) (*LeaveResult, bool, error) {
	unlock := d.locks.Lock(roomID)
	defer unlock()

	s, err := d.sessions.Get(ctx, connID)
	if err != nil {
		return nil, false, err
	}

	if s == nil {
		return nil, false, nil
	}

	if s.RoomID != roomID {
		return nil, true, nil
	}

	res, err := d.removeLocked(ctx, s)

	return res, false, err
}

func (d *RoomDirectory) removeLocked(ctx context.Context, s *models.Session) (*LeaveResult, error) {
	if err := d.rooms.RemoveMember(ctx, s.RoomID, s.ConnectionID, s.Username); err != nil {
		return nil, err
	}

	if _, err := d.sessions.Remove(ctx, s.ConnectionID); err != nil {
		return nil, err
	}

	metric.SessionClosed()

	res := &LeaveResult{Session: *s}

	room, err := d.loadRoom(ctx, s.RoomID)
	if err != nil {
		return res, err
	}

	if room == nil {
		return res, nil
	}

	if err = d.rooms.Touch(ctx, s.RoomID, d.now()); err != nil {
		return res, err
	}

	res.Remaining = len(room.Members)

	if room.Admin.Holder() == s.ConnectionID {
		res.WasAdmin = true

		res.AdminChange, err = d.handoffLocked(ctx, room)
		if err != nil {
			return res, fmt.Errorf("admin handoff: %w", err)
		}
	}

	if len(room.Members) == 0 {
		res.ClearedPending, err = d.rooms.ClearPending(ctx, s.RoomID)
		if err != nil {
			slog.Warn("clear pending joins", slog.String(constant.RoomID, s.RoomID), slog.Any(constant.Error, err))
		}

		d.armTeardown(s.RoomID)
	}

	return res, nil
}

// handoffLocked settles the admin capability after its holder left room. Members of
// room are the remaining ones.
func (d *RoomDirectory) handoffLocked(ctx context.Context, room *models.Room) (*AdminChange, error) {
	switch mode := room.Admin.(type) {
	case models.OwnerLocked:
		// токен владельца не меняется, вернуть права может только он сам
		return nil, d.setAdminWithRetry(ctx, room.ID, mode.WithHolder(""))

	case models.Transferable:
		if len(room.Members) == 0 {
			return nil, d.setAdminWithRetry(ctx, room.ID, mode.WithHolder(""))
		}

		next := room.Members[0]

		token, err := d.tokens.Issue(room.ID)
		if err != nil {
			return nil, err
		}

		err = d.setAdminWithRetry(ctx, room.ID, models.Transferable{AdminToken: token, HolderID: next.ConnectionID})
		if err != nil {
			return nil, err
		}

		d.record(ctx, models.AuditAdminTransferred, room.ID, "", next.ConnectionID, "handoff")

		return &AdminChange{
			ConnectionID: next.ConnectionID,
			Username:     next.Username,
			AdminToken:   token,
		}, nil
	}

	return nil, nil
}

// setAdminWithRetry keeps writing the admin mode until it sticks or ctx ends.
func (d *RoomDirectory) setAdminWithRetry(ctx context.Context, roomID string, mode models.AdminMode) error {
	delay := d.retryBase

	for {
		err := d.rooms.SetAdmin(ctx, roomID, mode)
		if err == nil {
			return nil
		}

		slog.Warn(
			"set room admin failed, retrying",
			slog.String(constant.RoomID, roomID),
			slog.Duration("delay", delay),
			slog.Any(constant.Error, err),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("set room admin: %w", errors.Join(err, ctx.Err()))
		case <-time.After(delay):
		}

		delay = min(delay*2, handoffRetryMax)
	}
}

func (d *RoomDirectory) armTeardown(roomID string) {
	d.scheduler.Arm(roomID, func(roomID string) {
		ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()

		if _, err := d.teardown(ctx, roomID); err != nil {
			slog.Error("room teardown", slog.String(constant.RoomID, roomID), slog.Any(constant.Error, err))
		}
	})
}

// teardown deletes the room if it is still empty and no newer timer took over.
func (d *RoomDirectory) teardown(ctx context.Context, roomID string) (bool, error) {
	unlock := d.locks.Lock(roomID)
	defer unlock()

	if d.scheduler.Armed(roomID) {
		return false, nil
	}

	n, err := d.rooms.MemberCount(ctx, roomID)
	if err != nil {
		return false, err
	}

	if n > 0 {
		return false, nil
	}

	cleared, err := d.rooms.ClearPending(ctx, roomID)
	if err != nil {
		slog.Warn("clear pending joins", slog.String(constant.RoomID, roomID), slog.Any(constant.Error, err))
	}

	if d.onTeardown != nil {
		if err = d.onTeardown(ctx, roomID); err != nil {
			slog.Error("teardown hook", slog.String(constant.RoomID, roomID), slog.Any(constant.Error, err))
		}
	}

	if err = d.rooms.Delete(ctx, roomID); err != nil {
		return false, err
	}

	metric.RoomTornDown()
	d.record(ctx, models.AuditRoomTornDown, roomID, "", "", "")

	slog.Info("room torn down", slog.String(constant.RoomID, roomID), slog.Int("pending_cleared", len(cleared)))

	return true, nil
}

// Recover unseats every stored member after a restart, since their connections are
// gone, and arms teardown for each known room. Owner tokens stay valid.
func (d *RoomDirectory) Recover(ctx context.Context) (int, error) {
	ids, err := d.rooms.List(ctx)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, roomID := range ids {
		ok, err := d.recoverRoom(ctx, roomID)
		if err != nil {
			return n, fmt.Errorf("recover room %s: %w", roomID, err)
		}

		if ok {
			n++
		}
	}

	return n, nil
}

func (d *RoomDirectory) recoverRoom(ctx context.Context, roomID string) (bool, error) {
	unlock := d.locks.Lock(roomID)
	defer unlock()

	room, err := d.loadRoom(ctx, roomID)
	if err != nil {
		return false, err
	}

	if room == nil {
		return false, d.rooms.Delete(ctx, roomID)
	}

	for _, m := range room.Members {
		if err = d.rooms.RemoveMember(ctx, roomID, m.ConnectionID, m.Username); err != nil {
			return false, err
		}

		if _, err = d.sessions.Remove(ctx, m.ConnectionID); err != nil {
			return false, err
		}
	}

	// мету пишем целиком: так она попадает и в резервный стор
	meta := models.RoomMeta{
		Admin:          room.Admin.WithHolder(""),
		CreatedAt:      room.CreatedAt,
		LastActivityAt: room.LastActivityAt,
	}
	if err = d.rooms.SaveMeta(ctx, roomID, meta); err != nil {
		return false, err
	}

	if _, err = d.rooms.ClearPending(ctx, roomID); err != nil {
		return false, err
	}

	d.armTeardown(roomID)

	return true, nil
}

// Close stops every armed teardown timer.
func (d *RoomDirectory) Close() {
	d.scheduler.Close()
}

func (d *RoomDirectory) loadRoom(ctx context.Context, roomID string) (*models.Room, error) {
	meta, err := d.rooms.Meta(ctx, roomID)
	if err != nil || meta == nil {
		return nil, err
	}

	ids, err := d.rooms.Members(ctx, roomID)
	if err != nil {
		return nil, err
	}

	names, err := d.rooms.Usernames(ctx, roomID)
	if err != nil {
		return nil, err
	}

	byConn := make(map[string]string, len(names))
	for username, connID := range names {
		byConn[connID] = username
	}

	members := make([]models.Member, 0, len(ids))
	for _, id := range ids {
		members = append(members, models.Member{ConnectionID: id, Username: byConn[id]})
	}

	return &models.Room{
		ID:             roomID,
		Kind:           d.Kind(roomID),
		Capacity:       d.Capacity(roomID),
		Members:        members,
		Admin:          meta.Admin,
		CreatedAt:      meta.CreatedAt,
		LastActivityAt: meta.LastActivityAt,
	}, nil
}

func (d *RoomDirectory) record(ctx context.Context, action models.AuditAction, roomID, actor, target, detail string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()

	err := d.audit.Record(ctx, models.AuditEvent{
		RoomID:    roomID,
		Action:    action,
		ActorID:   actor,
		TargetID:  target,
		Detail:    detail,
		CreatedAt: d.now(),
	})
	if err != nil {
		slog.Warn(
			"record audit event",
			slog.String(constant.RoomID, roomID),
			slog.String("action", string(action)),
			slog.Any(constant.Error, err),
		)
	}
}
