package dto

import (
	"time"

	"github.com/qrave1/RoomChat/internal/domain/models"
)

type AuditEntryResponse struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	ActorID   string    `json:"actor_id,omitempty"`
	TargetID  string    `json:"target_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func NewAuditEntryResponseFromModel(e models.AuditEvent) AuditEntryResponse {
	return AuditEntryResponse{
		ID:        e.ID,
		Action:    string(e.Action),
		ActorID:   e.ActorID,
		TargetID:  e.TargetID,
		Detail:    e.Detail,
		CreatedAt: e.CreatedAt,
	}
}

type ListAuditResponse struct {
	RoomID  string               `json:"room_id"`
	Entries []AuditEntryResponse `json:"entries"`
}

type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}
