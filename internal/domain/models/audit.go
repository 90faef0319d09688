package models

import "time"

type AuditAction string

const (
	AuditRoomCreated      AuditAction = "room_created"
	AuditAdminTransferred AuditAction = "admin_transferred"
	AuditJoinApproved     AuditAction = "join_approved"
	AuditJoinRejected     AuditAction = "join_rejected"
	AuditUserKicked       AuditAction = "user_kicked"
	AuditRoomTornDown     AuditAction = "room_torn_down"
)

// AuditEvent - запись журнала модерации
type AuditEvent struct {
	ID        int64       `db:"id"`
	RoomID    string      `db:"room_id"`
	Action    AuditAction `db:"action"`
	ActorID   string      `db:"actor_id"`
	TargetID  string      `db:"target_id"`
	Detail    string      `db:"detail"`
	CreatedAt time.Time   `db:"created_at"`
}
