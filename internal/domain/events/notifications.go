package events

import (
	"time"

	"github.com/qrave1/RoomChat/internal/domain/models"
)

// Outbound notification types
const (
	TypeJoined        = "joined"
	TypeJoinError     = "join_error"
	TypeJoinPending   = "join_pending"
	TypeJoinRequested = "join_requested"
	TypePendingQueue  = "pending_queue"
	TypeJoinApproved  = "join_approved"
	TypeJoinRejected  = "join_rejected"
	TypeJoinCancelled = "join_cancelled"
	TypeMembers       = "members"
	TypeUserJoined    = "user_joined"
	TypeUserLeft      = "user_left"
	TypeAdminStatus   = "admin_status"
	TypeUserKicked    = "user_kicked"
	TypeKicked        = "kicked"
	TypeLeft          = "left"
	TypeAvailability  = "availability"
	TypeCapacity      = "capacity"
	TypeError         = "error"
	TypePong          = "pong"
)

const (
	DefaultRejectReason = "The room admin declined your request"
	RoomClosedReason    = "The room was closed"
)

type JoinedEvent struct {
	RoomID           string `json:"room_id"`
	Username         string `json:"username"`
	ConnectionID     string `json:"connection_id"`
	IsAdmin          bool   `json:"is_admin"`
	AdminToken       string `json:"admin_token,omitempty"`
	RequiresApproval bool   `json:"requires_approval"`
	Capacity         int    `json:"capacity"`
}

type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PendingEvent struct {
	RoomID      string    `json:"room_id"`
	RequestedAt time.Time `json:"requested_at"`
}

type JoinRequestedEvent struct {
	ConnectionID string    `json:"connection_id"`
	Username     string    `json:"username"`
	RequestedAt  time.Time `json:"requested_at"`
}

type PendingQueueEvent struct {
	RoomID  string               `json:"room_id"`
	Pending []models.PendingJoin `json:"pending"`
}

type JoinRejectedEvent struct {
	RoomID string `json:"room_id"`
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason"`
}

// RoomEvent carries only the room (join_approved, join_cancelled, left, kicked).
type RoomEvent struct {
	RoomID string `json:"room_id"`
}

type Member struct {
	ConnectionID string `json:"connection_id"`
	Username     string `json:"username"`
	IsAdmin      bool   `json:"is_admin"`
}

// MembersEvent - список участников комнаты
type MembersEvent struct {
	RoomID   string   `json:"room_id"`
	Members  []Member `json:"members"`
	Capacity int      `json:"capacity"`
}

type UserEvent struct {
	RoomID       string `json:"room_id"`
	ConnectionID string `json:"connection_id"`
	Username     string `json:"username"`
}

type AdminStatusEvent struct {
	RoomID       string `json:"room_id"`
	ConnectionID string `json:"connection_id"`
	Username     string `json:"username"`
	IsAdmin      bool   `json:"is_admin"`
	AdminToken   string `json:"admin_token,omitempty"`
}

type HistoryEvent struct {
	RoomID   string               `json:"room_id"`
	Messages []models.ChatMessage `json:"messages"`
}

type AvailabilityEvent struct {
	RoomID            string `json:"room_id"`
	Exists            bool   `json:"exists"`
	MemberCount       int    `json:"member_count"`
	Capacity          int    `json:"capacity"`
	Full              bool   `json:"full"`
	RequiresApproval  bool   `json:"requires_approval"`
	HasAdmin          bool   `json:"has_admin"`
	UsernameAvailable *bool  `json:"username_available,omitempty"`
}

type CapacityEvent struct {
	RoomID      string `json:"room_id"`
	MemberCount int    `json:"member_count"`
	Capacity    int    `json:"capacity"`
	Available   int    `json:"available"`
}
