package presence

import (
	"context"
	"time"

	"gigchat/internal/domain"
)

// DefaultStaleness is just over two heartbeat periods, tolerating one
// missed beat before a heartbeat counts as stale.
const DefaultStaleness = 70 * time.Second

// Tracker reconciles the two independent presence sources into one
// tri-state answer per user.
type Tracker struct {
	heartbeats HeartbeatSource
	channel    ChannelSource
	staleness  time.Duration
	now        func() time.Time
}

func NewTracker(heartbeats HeartbeatSource, channel ChannelSource, staleness time.Duration) *Tracker {
	if staleness <= 0 {
		staleness = DefaultStaleness
	}
	return &Tracker{
		heartbeats: heartbeats,
		channel:    channel,
		staleness:  staleness,
		now:        time.Now,
	}
}

// Presence computes the reconciled state for one user. The channel's
// definite signals win outright; the heartbeat only decides when the
// channel has no opinion.
func (t *Tracker) Presence(ctx context.Context, userID string) (domain.Presence, error) {
	p := domain.Presence{UserID: userID, State: domain.PresenceUnknown}

	hb, found, err := t.heartbeats.Get(ctx, userID)
	if err != nil {
		return p, err
	}
	if found {
		p.LastSeen = hb.LastSeen
	}

	switch t.channel.State(userID) {
	case ChannelConnected:
		p.State = domain.PresenceOnline
		return p, nil
	case ChannelDisconnected:
		p.State = domain.PresenceOffline
		return p, nil
	}

	if !found {
		return p, nil
	}
	if !hb.Online {
		p.State = domain.PresenceOffline
		return p, nil
	}
	if t.now().Sub(hb.LastSeen) < t.staleness {
		p.State = domain.PresenceOnline
	} else {
		p.State = domain.PresenceOffline
	}
	return p, nil
}

// Snapshot computes presence for several users. Per-user failures degrade
// to unknown rather than failing the whole snapshot.
func (t *Tracker) Snapshot(ctx context.Context, userIDs []string) map[string]domain.Presence {
	out := make(map[string]domain.Presence, len(userIDs))
	for _, userID := range userIDs {
		p, err := t.Presence(ctx, userID)
		if err != nil {
			p = domain.Presence{UserID: userID, State: domain.PresenceUnknown}
		}
		out[userID] = p
	}
	return out
}
