package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/qrave1/RoomChat/internal/domain/apperr"
	"github.com/qrave1/RoomChat/internal/domain/input"
	"github.com/qrave1/RoomChat/internal/domain/models"
)

type ApproveResult struct {
	Pending models.PendingJoin
	// Join is nil when the approved request could not be seated.
	Join *JoinResult
}

// Enqueue parks a join request for roomID. A second request from the same connection
// keeps its place in the queue.
func (d *RoomDirectory) Enqueue(ctx context.Context, roomID, connID, username string) (*models.PendingJoin, error) {
	in, err := normalizeJoin(input.JoinInput{ConnectionID: connID, Username: username, RoomID: roomID})
	if err != nil {
		return nil, err
	}

	unlock := d.locks.Lock(in.RoomID)
	defer unlock()

	return d.enqueueLocked(ctx, in.RoomID, in.ConnectionID, in.Username, d.now())
}

func (d *RoomDirectory) enqueueLocked(ctx context.Context, roomID, connID, username string, now time.Time) (*models.PendingJoin, error) {
	existing, err := d.rooms.GetPending(ctx, roomID, connID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		return existing, nil
	}

	p := models.PendingJoin{
		ConnectionID: connID,
		Username:     username,
		RoomID:       roomID,
		RequestedAt:  now,
		State:        models.PendingRequested,
	}

	if err = d.rooms.AddPending(ctx, p); err != nil {
		return nil, err
	}

	return &p, nil
}

// ListPending returns the requests of roomID ordered by request time.
func (d *RoomDirectory) ListPending(ctx context.Context, roomID string) ([]models.PendingJoin, error) {
	return d.rooms.Pending(ctx, roomID)
}

// Approve seats a pending requester on behalf of the room admin. When seating fails
// (the username got taken, the room filled up) the error is returned together with
// the dequeued request so it can be relayed to the requester.
func (d *RoomDirectory) Approve(ctx context.Context, roomID, adminConnID, connID string) (*ApproveResult, error) {
	unlock := d.locks.Lock(roomID)
	defer unlock()

	room, err := d.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if err = requireAdmin(room, adminConnID); err != nil {
		return nil, err
	}

	p, err := d.rooms.GetPending(ctx, roomID, connID)
	if err != nil {
		return nil, err
	}

	if p == nil {
		return nil, apperr.ErrNotFound
	}

	if err = d.rooms.RemovePending(ctx, roomID, connID); err != nil {
		return nil, err
	}

	// заявитель уже сидит в другой комнате
	seated, err := d.sessions.Get(ctx, connID)
	if err != nil {
		return nil, err
	}

	if seated != nil {
		return nil, apperr.ErrNotFound
	}

	res := &ApproveResult{Pending: p.Resolve(models.PendingRejected)}

	join := &JoinResult{}
	in := input.JoinInput{ConnectionID: p.ConnectionID, Username: p.Username, RoomID: roomID}

	if err = d.joinLocked(ctx, in, true, join); err != nil {
		return res, fmt.Errorf("approve join: %w", err)
	}

	res.Pending = p.Resolve(models.PendingApproved)
	res.Join = join

	d.record(ctx, models.AuditJoinApproved, roomID, adminConnID, connID, p.Username)

	return res, nil
}

// Reject drops a pending request on behalf of the room admin.
func (d *RoomDirectory) Reject(ctx context.Context, roomID, adminConnID, connID, reason string) (*models.PendingJoin, error) {
	unlock := d.locks.Lock(roomID)
	defer unlock()

	room, err := d.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if err = requireAdmin(room, adminConnID); err != nil {
		return nil, err
	}

	p, err := d.rooms.GetPending(ctx, roomID, connID)
	if err != nil {
		return nil, err
	}

	if p == nil {
		return nil, apperr.ErrNotFound
	}

	if err = d.rooms.RemovePending(ctx, roomID, connID); err != nil {
		return nil, err
	}

	d.record(ctx, models.AuditJoinRejected, roomID, adminConnID, connID, reason)

	rejected := p.Resolve(models.PendingRejected)

	return &rejected, nil
}

// CancelPending withdraws the request of connID. Returns nil when there was none.
func (d *RoomDirectory) CancelPending(ctx context.Context, roomID, connID string) (*models.PendingJoin, error) {
	unlock := d.locks.Lock(roomID)
	defer unlock()

	p, err := d.rooms.GetPending(ctx, roomID, connID)
	if err != nil || p == nil {
		return nil, err
	}

	if err = d.rooms.RemovePending(ctx, roomID, connID); err != nil {
		return nil, err
	}

	cancelled := p.Resolve(models.PendingCancelled)

	return &cancelled, nil
}

// CancelPendingFor withdraws whatever request connID has waiting, in any room.
func (d *RoomDirectory) CancelPendingFor(ctx context.Context, connID string) (*models.PendingJoin, error) {
	roomID, ok, err := d.rooms.PendingRoomOf(ctx, connID)
	if err != nil || !ok {
		return nil, err
	}

	return d.CancelPending(ctx, roomID, connID)
}

// ClearAll drops every pending request of roomID and returns them.
func (d *RoomDirectory) ClearAll(ctx context.Context, roomID string) ([]models.PendingJoin, error) {
	unlock := d.locks.Lock(roomID)
	defer unlock()

	return d.rooms.ClearPending(ctx, roomID)
}
