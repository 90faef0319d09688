package models

// AdminMode is the admin state of a room. Exactly one of NoAdmin, OwnerLocked or
// Transferable.
type AdminMode interface {
	// Token is the current capability token, empty for NoAdmin.
	Token() string
	// Holder is the connection currently holding the capability, empty when nobody does.
	Holder() string
	// WithHolder returns the same mode held by connectionID.
	WithHolder(connectionID string) AdminMode

	isAdminMode()
}

// NoAdmin is used by location rooms.
type NoAdmin struct{}

func (NoAdmin) Token() string                 { return "" }
func (NoAdmin) Holder() string                { return "" }
func (m NoAdmin) WithHolder(string) AdminMode { return m }
func (NoAdmin) isAdminMode()                  {}

// OwnerLocked rooms require admin approval to join. The token survives the owner's
// absence and only a reconnect presenting it restores the holder.
type OwnerLocked struct {
	AdminToken string
	HolderID   string
}

func (m OwnerLocked) Token() string  { return m.AdminToken }
func (m OwnerLocked) Holder() string { return m.HolderID }
func (m OwnerLocked) WithHolder(connectionID string) AdminMode {
	m.HolderID = connectionID
	return m
}
func (OwnerLocked) isAdminMode() {}

// Transferable rooms hand the capability to the next member when the admin leaves.
type Transferable struct {
	AdminToken string
	HolderID   string
}

func (m Transferable) Token() string  { return m.AdminToken }
func (m Transferable) Holder() string { return m.HolderID }
func (m Transferable) WithHolder(connectionID string) AdminMode {
	m.HolderID = connectionID
	return m
}
func (Transferable) isAdminMode() {}

// RequiresApproval reports whether joins into a room in mode m may be queued.
func RequiresApproval(m AdminMode) bool {
	_, ok := m.(OwnerLocked)
	return ok
}

const (
	AdminModeNone         = "none"
	AdminModeOwnerLocked  = "owner_locked"
	AdminModeTransferable = "transferable"
)

// AdminModeName is the storage name of m.
func AdminModeName(m AdminMode) string {
	switch m.(type) {
	case OwnerLocked:
		return AdminModeOwnerLocked
	case Transferable:
		return AdminModeTransferable
	default:
		return AdminModeNone
	}
}

// NewAdminMode rebuilds a mode from its stored parts. Unknown names decode as NoAdmin.
func NewAdminMode(name, token, holder string) AdminMode {
	switch name {
	case AdminModeOwnerLocked:
		return OwnerLocked{AdminToken: token, HolderID: holder}
	case AdminModeTransferable:
		return Transferable{AdminToken: token, HolderID: holder}
	default:
		return NoAdmin{}
	}
}
