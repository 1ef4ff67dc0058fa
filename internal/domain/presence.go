package domain

import "time"

// OnlineState is the reconciled three-valued presence signal. "Don't know
// yet" is a first-class state, never conflated with known-offline.
type OnlineState int

const (
	PresenceUnknown OnlineState = iota
	PresenceOnline
	PresenceOffline
)

func (s OnlineState) String() string {
	switch s {
	case PresenceOnline:
		return "online"
	case PresenceOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Presence is the best-effort per-user status derived from heartbeat
// freshness and the ephemeral connection channel.
type Presence struct {
	UserID   string      `json:"user_id"`
	State    OnlineState `json:"state"`
	LastSeen time.Time   `json:"last_seen"`
}
