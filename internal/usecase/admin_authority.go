package usecase

import (
	"context"
	"log/slog"

	"github.com/qrave1/RoomChat/internal/application/constant"
	"github.com/qrave1/RoomChat/internal/domain/apperr"
	"github.com/qrave1/RoomChat/internal/domain/models"
)

// Admin checks compare connection identity only, never usernames.

func (d *RoomDirectory) IsAdmin(ctx context.Context, connID, roomID string) (bool, error) {
	meta, err := d.rooms.Meta(ctx, roomID)
	if err != nil || meta == nil {
		return false, err
	}

	return connID != "" && meta.Admin.Holder() == connID, nil
}

// CurrentAdmin returns the connection holding admin in roomID, empty when nobody does.
func (d *RoomDirectory) CurrentAdmin(ctx context.Context, roomID string) (string, error) {
	meta, err := d.rooms.Meta(ctx, roomID)
	if err != nil || meta == nil {
		return "", err
	}

	return meta.Admin.Holder(), nil
}

func (d *RoomDirectory) CurrentToken(ctx context.Context, roomID string) (string, error) {
	meta, err := d.rooms.Meta(ctx, roomID)
	if err != nil || meta == nil {
		return "", err
	}

	return meta.Admin.Token(), nil
}

func (d *RoomDirectory) RequiresApproval(ctx context.Context, roomID string) (bool, error) {
	meta, err := d.rooms.Meta(ctx, roomID)
	if err != nil || meta == nil {
		return false, err
	}

	return models.RequiresApproval(meta.Admin), nil
}

// TransferAdmin hands the capability to another member of the room under a fresh token.
func (d *RoomDirectory) TransferAdmin(ctx context.Context, roomID, newConnID string) (string, error) {
	unlock := d.locks.Lock(roomID)
	defer unlock()

	room, err := d.loadRoom(ctx, roomID)
	if err != nil {
		return "", err
	}

	if room == nil || !room.IsMember(newConnID) {
		return "", apperr.ErrNotFound
	}

	return d.transferLocked(ctx, room, newConnID)
}

func (d *RoomDirectory) transferLocked(ctx context.Context, room *models.Room, newConnID string) (string, error) {
	token, err := d.tokens.Issue(room.ID)
	if err != nil {
		return "", err
	}

	var mode models.AdminMode

	switch room.Admin.(type) {
	case models.OwnerLocked:
		mode = models.OwnerLocked{AdminToken: token, HolderID: newConnID}
	case models.Transferable:
		mode = models.Transferable{AdminToken: token, HolderID: newConnID}
	default:
		return "", apperr.ErrInvalidInput
	}

	if err = d.setAdminWithRetry(ctx, room.ID, mode); err != nil {
		return "", err
	}

	d.record(ctx, models.AuditAdminTransferred, room.ID, room.Admin.Holder(), newConnID, "manual")

	slog.Info(
		"admin transferred",
		slog.String(constant.RoomID, room.ID),
		slog.String(constant.Target, newConnID),
	)

	return token, nil
}

// requireAdmin fails with ErrNotAdmin unless connID holds admin in room.
func requireAdmin(room *models.Room, connID string) error {
	if room == nil {
		return apperr.ErrNotFound
	}

	if connID == "" || room.Admin.Holder() != connID {
		return apperr.ErrNotAdmin
	}

	return nil
}

// Kick removes target from the room and bars the connection from joining again for
// the kick marker TTL, so a join racing the kick cannot bring it back.
func (d *RoomDirectory) Kick(ctx context.Context, roomID, adminConnID, targetConnID string) (*LeaveResult, error) {
	unlock := d.locks.Lock(roomID)
	defer unlock()

	room, err := d.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if err = requireAdmin(room, adminConnID); err != nil {
		return nil, err
	}

	if targetConnID == adminConnID {
		return nil, apperr.ErrCannotKickSelf
	}

	target, err := d.sessions.Get(ctx, targetConnID)
	if err != nil {
		return nil, err
	}

	if target == nil || target.RoomID != roomID {
		return nil, apperr.ErrNotFound
	}

	if err = d.sessions.MarkKicked(ctx, targetConnID, d.cfg.KickMarkerTTL); err != nil {
		return nil, err
	}

	res, err := d.removeLocked(ctx, target)
	if err != nil {
		return res, err
	}

	d.record(ctx, models.AuditUserKicked, roomID, adminConnID, targetConnID, target.Username)

	return res, nil
}

// HandOver is a transfer requested by the current admin.
func (d *RoomDirectory) HandOver(ctx context.Context, roomID, adminConnID, newConnID string) (string, error) {
	unlock := d.locks.Lock(roomID)
	defer unlock()

	room, err := d.loadRoom(ctx, roomID)
	if err != nil {
		return "", err
	}

	if err = requireAdmin(room, adminConnID); err != nil {
		return "", err
	}

	if newConnID == adminConnID {
		return "", apperr.ErrInvalidInput
	}

	if !room.IsMember(newConnID) {
		return "", apperr.ErrNotFound
	}

	return d.transferLocked(ctx, room, newConnID)
}
