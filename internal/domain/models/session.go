package models

import (
	"strings"
	"time"
)

// Session связывает соединение с парой (username, room)
type Session struct {
	ConnectionID string    `json:"connection_id"`
	Username     string    `json:"username"`
	RoomID       string    `json:"room_id"`
	JoinedAt     time.Time `json:"joined_at"`
}

func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func NormalizeRoomID(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
