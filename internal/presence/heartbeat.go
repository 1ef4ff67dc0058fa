package presence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const heartbeatKeyPrefix = "gigchat:presence:hb:"

// offlineRetention keeps the last explicit offline stamp around for
// last-seen display long after the online TTL would have expired.
const offlineRetention = 24 * time.Hour

// Heartbeat is the periodically refreshed self-stamp each active client
// writes (source A). The online=false variant is the best-effort unload
// stamp, which may never land if the tab dies first.
type Heartbeat struct {
	UserID   string    `json:"user_id"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"last_seen"`
}

// HeartbeatSource is the read side the reconciler consumes.
type HeartbeatSource interface {
	Get(ctx context.Context, userID string) (Heartbeat, bool, error)
}

// HeartbeatStore keeps heartbeat records in Redis with a TTL slightly above
// the stamping cadence, so a crashed client simply ages out.
type HeartbeatStore struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewHeartbeatStore(client *goredis.Client, ttl time.Duration) *HeartbeatStore {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &HeartbeatStore{client: client, ttl: ttl}
}

// Beat stamps the user online now.
func (s *HeartbeatStore) Beat(ctx context.Context, userID string) error {
	return s.write(ctx, Heartbeat{UserID: userID, Online: true, LastSeen: time.Now()}, s.ttl)
}

// MarkOffline stamps the user offline. Called best-effort on page
// hide/unload.
func (s *HeartbeatStore) MarkOffline(ctx context.Context, userID string) error {
	return s.write(ctx, Heartbeat{UserID: userID, Online: false, LastSeen: time.Now()}, offlineRetention)
}

func (s *HeartbeatStore) write(ctx context.Context, hb Heartbeat, ttl time.Duration) error {
	data, err := json.Marshal(hb)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, heartbeatKeyPrefix+hb.UserID, data, ttl).Err()
}

func (s *HeartbeatStore) Get(ctx context.Context, userID string) (Heartbeat, bool, error) {
	data, err := s.client.Get(ctx, heartbeatKeyPrefix+userID).Result()
	if errors.Is(err, goredis.Nil) {
		return Heartbeat{}, false, nil
	}
	if err != nil {
		return Heartbeat{}, false, err
	}
	var hb Heartbeat
	if err := json.Unmarshal([]byte(data), &hb); err != nil {
		return Heartbeat{}, false, err
	}
	return hb, true, nil
}

// GetMany fetches heartbeats for several users in one pipeline round trip.
func (s *HeartbeatStore) GetMany(ctx context.Context, userIDs []string) (map[string]Heartbeat, error) {
	result := make(map[string]Heartbeat, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	pipe := s.client.Pipeline()
	cmds := make(map[string]*goredis.StringCmd, len(userIDs))
	for _, userID := range userIDs {
		cmds[userID] = pipe.Get(ctx, heartbeatKeyPrefix+userID)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		return nil, err
	}

	for userID, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil {
			continue
		}
		var hb Heartbeat
		if err := json.Unmarshal([]byte(data), &hb); err != nil {
			continue
		}
		result[userID] = hb
	}
	return result, nil
}
