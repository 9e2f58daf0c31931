package identity

import "time"

// Identity is a verified phone holder. ID is the permanent key every other
// record (notably the profile) is bound to.
type Identity struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is an issued access grant for an identity.
type Session struct {
	Identity    Identity  `json:"identity"`
	AccessToken string    `json:"access_token"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer usable at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// EventType names a session change.
type EventType string

const (
	EventSignedIn       EventType = "signed_in"
	EventTokenRefreshed EventType = "token_refreshed"
	EventSignedOut      EventType = "signed_out"
)

// Event is delivered to subscribers when the local session changes. Session
// is nil for EventSignedOut.
type Event struct {
	Type    EventType
	Session *Session
}
