package models

import "time"

type RoomKind string

const (
	RoomKindRegular  RoomKind = "regular"
	RoomKindLocation RoomKind = "location"
)

// Room is the stored state of one room. Members are ordered by join time.
type Room struct {
	ID             string
	Kind           RoomKind
	Capacity       int
	Members        []Member
	Admin          AdminMode
	CreatedAt      time.Time
	LastActivityAt time.Time
}

func (r *Room) RequiresApproval() bool {
	return RequiresApproval(r.Admin)
}

func (r *Room) IsMember(connectionID string) bool {
	for _, m := range r.Members {
		if m.ConnectionID == connectionID {
			return true
		}
	}

	return false
}

// Username returns the username seated under connectionID.
func (r *Room) Username(connectionID string) (string, bool) {
	for _, m := range r.Members {
		if m.ConnectionID == connectionID {
			return m.Username, true
		}
	}

	return "", false
}

type Member struct {
	ConnectionID string
	Username     string
}

// RoomMeta is the part of Room kept in the room hash.
type RoomMeta struct {
	Admin          AdminMode
	CreatedAt      time.Time
	LastActivityAt time.Time
}
