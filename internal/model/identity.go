package model

// UserID is the stable numeric identifier from the user directory
type UserID int64

// ConnectionID identifies one live websocket session
type ConnectionID string

// Identity is the resolved form of a claimed username.
// Resolved is false when the directory lookup failed or found nothing;
// an unresolved identity carries the client-supplied name verbatim and
// is never privileged.
type Identity struct {
	ID          UserID
	Resolved    bool
	DisplayName string
	Privileged  bool
}

// Unresolved returns the fallback identity for a claimed name that could
// not be matched against the user directory.
func Unresolved(claimedName string) Identity {
	return Identity{
		Resolved:    false,
		DisplayName: claimedName,
		Privileged:  false,
	}
}
