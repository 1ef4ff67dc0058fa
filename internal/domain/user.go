package domain

import "time"

// Profile is the slice of the user directory this system consumes. The
// directory itself is owned elsewhere; these fields are read-only here.
type Profile struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Username       string    `json:"username"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	Role           string    `json:"role,omitempty"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// SearchResult is a profile candidate returned by user directory search.
// Self is set when the profile belongs to the searching user, which makes
// the entry non-selectable as a conversation partner.
type SearchResult struct {
	Profile
	Self bool `json:"self"`
}
