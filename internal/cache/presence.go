package cache

import (
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	// PresenceTTL bounds how long a crashed connection can look online.
	PresenceTTL = 90 * time.Second

	presenceSetKey = "presence:users"
)

// PresenceRecord describes one live chat-list connection.
type PresenceRecord struct {
	UserID      string    `msgpack:"user_id"`
	ConnectedAt time.Time `msgpack:"connected_at"`
}

// PresenceCache tracks which users currently hold a live chat-list
// connection. Notification fan-out consults it so connected clients, which
// already receive updates over their socket, are not also pushed externally.
// All methods are nil-safe: without Redis the system degrades to sending
// pushes to everyone but the sender.
type PresenceCache struct {
	redis *RedisCache
}

func NewPresenceCache(redis *RedisCache) *PresenceCache {
	return &PresenceCache{redis: redis}
}

func presenceKey(userID string) string {
	return "presence:" + userID
}

// SetOnline records a live connection for the user.
func (pc *PresenceCache) SetOnline(userID string) error {
	if pc == nil || pc.redis == nil {
		return nil
	}
	record := PresenceRecord{UserID: userID, ConnectedAt: time.Now().UTC()}
	data, err := msgpack.Marshal(&record)
	if err != nil {
		return err
	}
	if err := pc.redis.SetAdd(presenceSetKey, userID); err != nil {
		return err
	}
	return pc.redis.Set(presenceKey(userID), data, PresenceTTL)
}

// Refresh extends the presence TTL for a still-connected user.
func (pc *PresenceCache) Refresh(userID string) error {
	if pc == nil || pc.redis == nil {
		return nil
	}
	data, err := pc.redis.Get(presenceKey(userID))
	if err != nil || data == nil {
		return pc.SetOnline(userID)
	}
	return pc.redis.Set(presenceKey(userID), data, PresenceTTL)
}

// SetOffline removes the user's presence record.
func (pc *PresenceCache) SetOffline(userID string) error {
	if pc == nil || pc.redis == nil {
		return nil
	}
	if err := pc.redis.SetRemove(presenceSetKey, userID); err != nil {
		return err
	}
	return pc.redis.Delete(presenceKey(userID))
}

// IsOnline reports whether the user currently holds a live connection.
func (pc *PresenceCache) IsOnline(userID string) bool {
	if pc == nil || pc.redis == nil {
		return false
	}
	return pc.redis.Exists(presenceKey(userID))
}

// OnlineUsers returns the ids of users with a live connection. Entries whose
// per-user key expired are pruned from the set lazily.
func (pc *PresenceCache) OnlineUsers() ([]string, error) {
	if pc == nil || pc.redis == nil {
		return nil, nil
	}
	members, err := pc.redis.SetMembers(presenceSetKey)
	if err != nil {
		return nil, err
	}

	online := make([]string, 0, len(members))
	for _, userID := range members {
		if pc.redis.Exists(presenceKey(userID)) {
			online = append(online, userID)
			continue
		}
		_ = pc.redis.SetRemove(presenceSetKey, userID)
	}
	return online, nil
}
