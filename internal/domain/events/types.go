package events

import (
	"encoding/json"
)

// Message - общее событие
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Inbound message types
const (
	TypeJoin              = "join"
	TypeLeave             = "leave"
	TypeMessage           = "message"
	TypeHistory           = "history"
	TypeApproveJoin       = "approve_join"
	TypeRejectJoin        = "reject_join"
	TypeCancelJoin        = "cancel_join"
	TypePendingList       = "pending_list"
	TypeKick              = "kick"
	TypeTransferAdmin     = "transfer_admin"
	TypeCheckAvailability = "check_availability"
	TypeCheckCapacity     = "check_capacity"
	TypePing              = "ping"
)

// JoinEvent - запрос на вход в комнату
type JoinEvent struct {
	Username              string `json:"username"`
	RoomID                string `json:"room_id"`
	AdminToken            string `json:"admin_token,omitempty"`
	RequiresAdminApproval bool   `json:"requires_admin_approval,omitempty"`
}

type ChatEvent struct {
	Text string `json:"text"`
}

type HistoryRequestEvent struct {
	Limit int `json:"limit"`
}

// TargetEvent addresses another connection (approve, kick, transfer_admin).
type TargetEvent struct {
	ConnectionID string `json:"connection_id"`
}

type RejectEvent struct {
	ConnectionID string `json:"connection_id"`
	Reason       string `json:"reason,omitempty"`
}

type RoomQueryEvent struct {
	RoomID   string `json:"room_id"`
	Username string `json:"username,omitempty"`
}
