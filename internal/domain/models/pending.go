package models

import "time"

type PendingState string

const (
	PendingRequested PendingState = "requested"
	PendingApproved  PendingState = "approved"
	PendingRejected  PendingState = "rejected"
	PendingCancelled PendingState = "cancelled"
)

// PendingJoin is a join request parked until the room admin decides on it.
// Only requests in PendingRequested are stored; the other states are terminal.
type PendingJoin struct {
	ConnectionID string       `json:"connection_id"`
	Username     string       `json:"username"`
	RoomID       string       `json:"room_id"`
	RequestedAt  time.Time    `json:"requested_at"`
	State        PendingState `json:"state"`
}

// Resolve returns a copy of p moved to a terminal state.
func (p PendingJoin) Resolve(state PendingState) PendingJoin {
	p.State = state
	return p
}
