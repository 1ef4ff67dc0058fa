package presence

import "sync"

// ChannelSignal is what the ephemeral connection channel (source B) knows
// about a user right now.
type ChannelSignal int

const (
	// ChannelNoSignal means this process has never seen the user connect;
	// the channel has no opinion either way.
	ChannelNoSignal ChannelSignal = iota
	// ChannelConnected means at least one live connection is open.
	ChannelConnected
	// ChannelDisconnected means the user was connected and every connection
	// has since dropped. This is a definite offline the moment it happens,
	// no stale-heartbeat wait involved.
	ChannelDisconnected
)

// ChannelSource is the read side the reconciler consumes.
type ChannelSource interface {
	State(userID string) ChannelSignal
}

// ChannelState tracks live connection counts per user, fed by the websocket
// hub on connect/disconnect.
type ChannelState struct {
	mu      sync.RWMutex
	entries map[string]*channelEntry
}

type channelEntry struct {
	active int
}

func NewChannelState() *ChannelState {
	return &ChannelState{entries: make(map[string]*channelEntry)}
}

// Connect records a new live connection for userID.
func (c *ChannelState) Connect(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[userID]
	if e == nil {
		e = &channelEntry{}
		c.entries[userID] = e
	}
	e.active++
}

// Disconnect records a dropped connection for userID.
func (c *ChannelState) Disconnect(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[userID]
	if e == nil {
		return
	}
	if e.active > 0 {
		e.active--
	}
}

func (c *ChannelState) State(userID string) ChannelSignal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e := c.entries[userID]
	if e == nil {
		return ChannelNoSignal
	}
	if e.active > 0 {
		return ChannelConnected
	}
	return ChannelDisconnected
}
