package input

// JoinInput is a normalized join request.
type JoinInput struct {
	ConnectionID          string
	Username              string
	RoomID                string
	AdminToken            string
	RequiresAdminApproval bool
}
