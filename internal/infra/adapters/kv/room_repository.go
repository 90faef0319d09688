package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/qrave1/RoomChat/internal/application/constant"
	"github.com/qrave1/RoomChat/internal/domain/models"
)

// RoomRepository stores room meta, membership and the pending-join queue.
// Multi-step sequences over it are serialized by the caller per room.
type RoomRepository interface {
	List(ctx context.Context) ([]string, error)

	Meta(ctx context.Context, roomID string) (*models.RoomMeta, error)
	SaveMeta(ctx context.Context, roomID string, meta models.RoomMeta) error
	SetAdmin(ctx context.Context, roomID string, mode models.AdminMode) error
	Touch(ctx context.Context, roomID string, at time.Time) error
	Refresh(ctx context.Context, roomID string) error
	Delete(ctx context.Context, roomID string) error

	Members(ctx context.Context, roomID string) ([]string, error)
	MemberCount(ctx context.Context, roomID string) (int, error)
	Usernames(ctx context.Context, roomID string) (map[string]string, error)
	UsernameOwner(ctx context.Context, roomID, username string) (string, bool, error)
	AddMember(ctx context.Context, roomID, connID, username string, joinedAt time.Time) error
	RemoveMember(ctx context.Context, roomID, connID, username string) error

	AddPending(ctx context.Context, p models.PendingJoin) error
	Pending(ctx context.Context, roomID string) ([]models.PendingJoin, error)
	GetPending(ctx context.Context, roomID, connID string) (*models.PendingJoin, error)
	RemovePending(ctx context.Context, roomID, connID string) error
	PendingRoomOf(ctx context.Context, connID string) (string, bool, error)
	ClearPending(ctx context.Context, roomID string) ([]models.PendingJoin, error)
}

type roomRepository struct {
	store Store
	ttl   time.Duration
}

func NewRoomRepository(store Store, ttl time.Duration) RoomRepository {
	return &roomRepository{store: store, ttl: ttl}
}

type pendingRecord struct {
	Username    string    `json:"username"`
	RequestedAt time.Time `json:"requested_at"`
}

func (r *roomRepository) List(ctx context.Context) ([]string, error) {
	ids, err := r.store.SMembers(ctx, roomsIndexKey)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	return ids, nil
}

func (r *roomRepository) Meta(ctx context.Context, roomID string) (*models.RoomMeta, error) {
	fields, err := r.store.HGetAll(ctx, roomKey(roomID))
	if err != nil {
		return nil, fmt.Errorf("get room meta: %w", err)
	}

	if len(fields) == 0 || fields[fieldCreatedAt] == "" {
		return nil, nil
	}

	return &models.RoomMeta{
		Admin:          models.NewAdminMode(fields[fieldAdminMode], fields[fieldAdminToken], fields[fieldAdminConn]),
		CreatedAt:      parseTime(fields[fieldCreatedAt]),
		LastActivityAt: parseTime(fields[fieldLastActivityAt]),
	}, nil
}

func (r *roomRepository) SaveMeta(ctx context.Context, roomID string, meta models.RoomMeta) error {
	fields := adminFields(meta.Admin)
	fields[fieldCreatedAt] = formatTime(meta.CreatedAt)
	fields[fieldLastActivityAt] = formatTime(meta.LastActivityAt)

	if err := r.store.HSet(ctx, roomKey(roomID), fields); err != nil {
		return fmt.Errorf("save room meta: %w", err)
	}

	if err := r.store.SAdd(ctx, roomsIndexKey, roomID); err != nil {
		return fmt.Errorf("index room: %w", err)
	}

	return r.refresh(ctx, roomKey(roomID))
}

func (r *roomRepository) SetAdmin(ctx context.Context, roomID string, mode models.AdminMode) error {
	if err := r.store.HSet(ctx, roomKey(roomID), adminFields(mode)); err != nil {
		return fmt.Errorf("set room admin: %w", err)
	}

	return nil
}

func (r *roomRepository) Touch(ctx context.Context, roomID string, at time.Time) error {
	err := r.store.HSet(ctx, roomKey(roomID), map[string]string{fieldLastActivityAt: formatTime(at)})
	if err != nil {
		return fmt.Errorf("touch room: %w", err)
	}

	return r.refresh(ctx, roomKey(roomID), membersKey(roomID), usernamesKey(roomID))
}

// Refresh extends the room keys' expiry without counting as room activity.
func (r *roomRepository) Refresh(ctx context.Context, roomID string) error {
	return r.refresh(ctx, roomKey(roomID), membersKey(roomID), usernamesKey(roomID))
}

func (r *roomRepository) Delete(ctx context.Context, roomID string) error {
	pending, err := r.store.ZRange(ctx, pendingKey(roomID))
	if err != nil {
		return fmt.Errorf("get pending: %w", err)
	}

	for _, connID := range pending {
		r.unindexPending(ctx, roomID, connID)
	}

	err = r.store.Del(ctx,
		roomKey(roomID),
		membersKey(roomID),
		usernamesKey(roomID),
		pendingKey(roomID),
		pendingUsersKey(roomID),
	)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}

	if err = r.store.SRem(ctx, roomsIndexKey, roomID); err != nil {
		return fmt.Errorf("unindex room: %w", err)
	}

	return nil
}

func (r *roomRepository) Members(ctx context.Context, roomID string) ([]string, error) {
	members, err := r.store.ZRange(ctx, membersKey(roomID))
	if err != nil {
		return nil, fmt.Errorf("get members: %w", err)
	}

	return members, nil
}

func (r *roomRepository) MemberCount(ctx context.Context, roomID string) (int, error) {
	n, err := r.store.ZCard(ctx, membersKey(roomID))
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}

	return int(n), nil
}

func (r *roomRepository) Usernames(ctx context.Context, roomID string) (map[string]string, error) {
	names, err := r.store.HGetAll(ctx, usernamesKey(roomID))
	if err != nil {
		return nil, fmt.Errorf("get usernames: %w", err)
	}

	return names, nil
}

func (r *roomRepository) UsernameOwner(ctx context.Context, roomID, username string) (string, bool, error) {
	connID, ok, err := r.store.HGet(ctx, usernamesKey(roomID), username)
	if err != nil {
		return "", false, fmt.Errorf("get username owner: %w", err)
	}

	return connID, ok, nil
}

func (r *roomRepository) AddMember(ctx context.Context, roomID, connID, username string, joinedAt time.Time) error {
	if err := r.store.ZAdd(ctx, membersKey(roomID), float64(joinedAt.UnixMicro()), connID); err != nil {
		return fmt.Errorf("add member: %w", err)
	}

	if err := r.store.HSet(ctx, usernamesKey(roomID), map[string]string{username: connID}); err != nil {
		return fmt.Errorf("reserve username: %w", err)
	}

	return r.refresh(ctx, membersKey(roomID), usernamesKey(roomID))
}

func (r *roomRepository) RemoveMember(ctx context.Context, roomID, connID, username string) error {
	if err := r.store.ZRem(ctx, membersKey(roomID), connID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}

	owner, ok, err := r.store.HGet(ctx, usernamesKey(roomID), username)
	if err != nil {
		return fmt.Errorf("get username owner: %w", err)
	}

	// имя могло уже перейти к другому соединению
	if ok && owner == connID {
		if err = r.store.HDel(ctx, usernamesKey(roomID), username); err != nil {
			return fmt.Errorf("release username: %w", err)
		}
	}

	return nil
}

func (r *roomRepository) AddPending(ctx context.Context, p models.PendingJoin) error {
	raw, err := json.Marshal(pendingRecord{Username: p.Username, RequestedAt: p.RequestedAt})
	if err != nil {
		return fmt.Errorf("marshal pending: %w", err)
	}

	if err = r.store.ZAdd(ctx, pendingKey(p.RoomID), float64(p.RequestedAt.UnixMicro()), p.ConnectionID); err != nil {
		return fmt.Errorf("queue pending: %w", err)
	}

	if err = r.store.HSet(ctx, pendingUsersKey(p.RoomID), map[string]string{p.ConnectionID: string(raw)}); err != nil {
		return fmt.Errorf("store pending: %w", err)
	}

	if err = r.store.HSet(ctx, pendingIndexKey, map[string]string{p.ConnectionID: p.RoomID}); err != nil {
		return fmt.Errorf("index pending: %w", err)
	}

	return r.refresh(ctx, pendingKey(p.RoomID), pendingUsersKey(p.RoomID))
}

func (r *roomRepository) Pending(ctx context.Context, roomID string) ([]models.PendingJoin, error) {
	order, err := r.store.ZRange(ctx, pendingKey(roomID))
	if err != nil {
		return nil, fmt.Errorf("get pending order: %w", err)
	}

	if len(order) == 0 {
		return nil, nil
	}

	records, err := r.store.HGetAll(ctx, pendingUsersKey(roomID))
	if err != nil {
		return nil, fmt.Errorf("get pending records: %w", err)
	}

	pending := make([]models.PendingJoin, 0, len(order))
	for _, connID := range order {
		p, ok := decodePending(roomID, connID, records[connID])
		if !ok {
			continue
		}
		pending = append(pending, p)
	}

	return pending, nil
}

func (r *roomRepository) GetPending(ctx context.Context, roomID, connID string) (*models.PendingJoin, error) {
	raw, ok, err := r.store.HGet(ctx, pendingUsersKey(roomID), connID)
	if err != nil {
		return nil, fmt.Errorf("get pending: %w", err)
	}

	if !ok {
		return nil, nil
	}

	p, ok := decodePending(roomID, connID, raw)
	if !ok {
		return nil, nil
	}

	return &p, nil
}

func (r *roomRepository) RemovePending(ctx context.Context, roomID, connID string) error {
	if err := r.store.ZRem(ctx, pendingKey(roomID), connID); err != nil {
		return fmt.Errorf("dequeue pending: %w", err)
	}

	if err := r.store.HDel(ctx, pendingUsersKey(roomID), connID); err != nil {
		return fmt.Errorf("delete pending: %w", err)
	}

	r.unindexPending(ctx, roomID, connID)

	return nil
}

func (r *roomRepository) PendingRoomOf(ctx context.Context, connID string) (string, bool, error) {
	roomID, ok, err := r.store.HGet(ctx, pendingIndexKey, connID)
	if err != nil {
		return "", false, fmt.Errorf("get pending room: %w", err)
	}

	return roomID, ok, nil
}

func (r *roomRepository) ClearPending(ctx context.Context, roomID string) ([]models.PendingJoin, error) {
	pending, err := r.Pending(ctx, roomID)
	if err != nil {
		return nil, err
	}

	for _, p := range pending {
		r.unindexPending(ctx, roomID, p.ConnectionID)
	}

	if err = r.store.Del(ctx, pendingKey(roomID), pendingUsersKey(roomID)); err != nil {
		return nil, fmt.Errorf("clear pending: %w", err)
	}

	return pending, nil
}

// unindexPending drops the connection from the pending index if it still points at roomID.
func (r *roomRepository) unindexPending(ctx context.Context, roomID, connID string) {
	indexed, ok, err := r.store.HGet(ctx, pendingIndexKey, connID)
	if err == nil && ok && indexed == roomID {
		err = r.store.HDel(ctx, pendingIndexKey, connID)
	}

	if err != nil {
		slog.Warn(
			"unindex pending join",
			slog.String(constant.RoomID, roomID),
			slog.String(constant.ConnectionID, connID),
			slog.Any(constant.Error, err),
		)
	}
}

func (r *roomRepository) refresh(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if err := r.store.Expire(ctx, key, r.ttl); err != nil {
			return fmt.Errorf("expire %s: %w", key, err)
		}
	}

	return nil
}

func adminFields(mode models.AdminMode) map[string]string {
	return map[string]string{
		fieldAdminMode:  models.AdminModeName(mode),
		fieldAdminToken: mode.Token(),
		fieldAdminConn:  mode.Holder(),
	}
}

func decodePending(roomID, connID, raw string) (models.PendingJoin, bool) {
	var rec pendingRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return models.PendingJoin{}, false
	}

	return models.PendingJoin{
		ConnectionID: connID,
		Username:     rec.Username,
		RoomID:       roomID,
		RequestedAt:  rec.RequestedAt,
		State:        models.PendingRequested,
	}, true
}
