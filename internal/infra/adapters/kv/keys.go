package kv

const keyPrefix = "chat:"

const (
	roomsIndexKey   = keyPrefix + "rooms"
	pendingIndexKey = keyPrefix + "pending:index"
)

func roomKey(roomID string) string         { return keyPrefix + "room:" + roomID }
func membersKey(roomID string) string      { return roomKey(roomID) + ":members" }
func usernamesKey(roomID string) string    { return roomKey(roomID) + ":usernames" }
func pendingKey(roomID string) string      { return roomKey(roomID) + ":pending" }
func pendingUsersKey(roomID string) string { return roomKey(roomID) + ":pending:users" }
func historyKey(roomID string) string      { return roomKey(roomID) + ":history" }
func sessionKey(connID string) string      { return keyPrefix + "session:" + connID }
func kickedKey(connID string) string       { return keyPrefix + "conn:" + connID + ":kicked" }

// Поля хэшей
const (
	fieldUsername = "username"
	fieldRoomID   = "room_id"
	fieldJoinedAt = "joined_at"

	fieldAdminMode      = "admin_mode"
	fieldAdminToken     = "admin_token"
	fieldAdminConn      = "admin_conn"
	fieldCreatedAt      = "created_at"
	fieldLastActivityAt = "last_activity_at"
)
