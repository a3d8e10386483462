package models

// Role defines a participant's authority level within a room.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// DefaultAvatar is served when the identity store has no avatar for a user.
const DefaultAvatar = "avatars/avatar1.svg"

// Participant represents one identified member of a room.
type Participant struct {
	Username string `json:"username"`
	Role     Role   `json:"role,omitempty"`
	Avatar   string `json:"avatar"`
}
