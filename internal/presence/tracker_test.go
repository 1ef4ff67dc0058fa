package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigchat/internal/domain"
)

type fakeHeartbeats struct {
	records map[string]Heartbeat
}

func (f *fakeHeartbeats) Get(_ context.Context, userID string) (Heartbeat, bool, error) {
	hb, ok := f.records[userID]
	return hb, ok, nil
}

type fakeChannel struct {
	signals map[string]ChannelSignal
}

func (f *fakeChannel) State(userID string) ChannelSignal {
	return f.signals[userID]
}

func TestTrackerReconciliation(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fresh := now.Add(-20 * time.Second)
	stale := now.Add(-5 * time.Minute)

	cases := []struct {
		name      string
		heartbeat *Heartbeat
		channel   ChannelSignal
		want      domain.OnlineState
	}{
		{"channel connected wins over stale heartbeat", &Heartbeat{Online: true, LastSeen: stale}, ChannelConnected, domain.PresenceOnline},
		{"channel connected wins over offline stamp", &Heartbeat{Online: false, LastSeen: fresh}, ChannelConnected, domain.PresenceOnline},
		{"channel disconnect wins over fresh heartbeat", &Heartbeat{Online: true, LastSeen: fresh}, ChannelDisconnected, domain.PresenceOffline},
		{"fresh heartbeat when channel silent", &Heartbeat{Online: true, LastSeen: fresh}, ChannelNoSignal, domain.PresenceOnline},
		{"stale heartbeat when channel silent", &Heartbeat{Online: true, LastSeen: stale}, ChannelNoSignal, domain.PresenceOffline},
		{"explicit offline stamp", &Heartbeat{Online: false, LastSeen: fresh}, ChannelNoSignal, domain.PresenceOffline},
		{"no signal at all is unknown", nil, ChannelNoSignal, domain.PresenceUnknown},
		{"channel connected with no heartbeat", nil, ChannelConnected, domain.PresenceOnline},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hbs := &fakeHeartbeats{records: map[string]Heartbeat{}}
			if tc.heartbeat != nil {
				hb := *tc.heartbeat
				hb.UserID = "u1"
				hbs.records["u1"] = hb
			}
			tracker := NewTracker(hbs, &fakeChannel{signals: map[string]ChannelSignal{"u1": tc.channel}}, DefaultStaleness)
			tracker.now = func() time.Time { return now }

			p, err := tracker.Presence(context.Background(), "u1")
			require.NoError(t, err)
			assert.Equal(t, tc.want, p.State)
		})
	}
}

func TestChannelState(t *testing.T) {
	ch := NewChannelState()
	assert.Equal(t, ChannelNoSignal, ch.State("u1"))

	ch.Connect("u1")
	assert.Equal(t, ChannelConnected, ch.State("u1"))

	// Second tab: still connected after one drops.
	ch.Connect("u1")
	ch.Disconnect("u1")
	assert.Equal(t, ChannelConnected, ch.State("u1"))

	ch.Disconnect("u1")
	assert.Equal(t, ChannelDisconnected, ch.State("u1"))
}

func TestSnapshotDegradesToUnknown(t *testing.T) {
	tracker := NewTracker(&fakeHeartbeats{records: map[string]Heartbeat{}}, &fakeChannel{signals: map[string]ChannelSignal{}}, 0)
	snap := tracker.Snapshot(context.Background(), []string{"a", "b"})
	assert.Equal(t, domain.PresenceUnknown, snap["a"].State)
	assert.Equal(t, domain.PresenceUnknown, snap["b"].State)
}
