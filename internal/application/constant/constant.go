package constant

// Ключи атрибутов slog
const (
	Error        = "error"
	ConnectionID = "connection_id"
	RoomID       = "room_id"
	Username     = "username"
	Target       = "target"
	Key          = "key"
)
