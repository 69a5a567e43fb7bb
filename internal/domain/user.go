package domain

import (
	"strings"
	"time"
)

// User is the account returned by the backend for an access token.
type User struct {
	ID         int64  `json:"id"`
	KeynUserID string `json:"keyn_user_id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Role       string `json:"role,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

const RoleAdmin = "admin"

// IsAdmin is decided by the role attribute only.
func (u *User) IsAdmin() bool {
	return u != nil && strings.EqualFold(strings.TrimSpace(u.Role), RoleAdmin)
}

// Session binds a chat to a signed-in backend user.
type Session struct {
	ChatID      int64
	AccessToken string
	User        User
	ExpiresAt   *time.Time // UTC, nil when the token carries no expiry
	HookID      string     // path segment of the chat's webhook relay URL
	CreatedAt   time.Time  // UTC
	NextPollAt  *time.Time // UTC, nullable
	LastSeenID  int64      // newest notification already relayed to the chat
}

// CursorUnknown marks a session whose inbox history has not been measured
// yet. The poller sets the cursor before relaying anything.
const CursorUnknown int64 = -1

// Token makes a Session usable as an API token source.
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	return s.AccessToken
}

// Expired reports whether the access token is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return s != nil && s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}
