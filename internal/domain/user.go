package domain

// Role is a tier in the platform role ladder.
type Role string

const (
	RoleFan       Role = "fan"
	RoleCreator   Role = "creator"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// CreatorStatus is the verification tier gating monetization features.
type CreatorStatus string

const (
	CreatorStatusNone     CreatorStatus = "none"
	CreatorStatusPending  CreatorStatus = "pending"
	CreatorStatusVerified CreatorStatus = "verified"
)

// PlatformAll is the sentinel granting access to every branded platform.
const PlatformAll = "all"

// User is the identity record owned by the identity service and cached
// locally by clients.
type User struct {
	ID             string        `json:"id"`
	Email          string        `json:"email"`
	DisplayName    string        `json:"display_name"`
	AvatarURL      string        `json:"avatar_url,omitempty"`
	PlatformAccess []string      `json:"platform_access"`
	CreatorStatus  CreatorStatus `json:"creator_status"`
	AgeVerified    bool          `json:"age_verified"`
	Roles          []Role        `json:"roles"`
}
