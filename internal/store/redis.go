package store

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/Tyrowin/chatrelay/internal/presence"
)

const presenceKeyPrefix = "presence:"

func presenceKey(identity string) string { return presenceKeyPrefix + identity }

func statusFields(ev presence.Event) map[string]interface{} {
	return map[string]interface{}{
		"status":    string(ev.Status),
		"updatedAt": strconv.FormatInt(ev.At.Unix(), 10),
	}
}

// RedisStatusStore keeps presence:<identity> hashes. Online entries carry a
// TTL so that a crashed relay does not leave identities online forever;
// offline entries persist as a last-seen record.
type RedisStatusStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisStatusStore creates a store over client. A non-positive ttl means
// 24 hours.
func NewRedisStatusStore(client redis.Cmdable, ttl time.Duration) *RedisStatusStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStatusStore{client: client, ttl: ttl}
}

// DialRedis connects and pings the server.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "redis ping %s", addr)
	}
	return rdb, nil
}

// PresenceChanged writes the hash and its expiry in one MULTI/EXEC.
func (s *RedisStatusStore) PresenceChanged(ctx context.Context, ev presence.Event) error {
	key := presenceKey(ev.Identity)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, statusFields(ev))
		if ev.Status == presence.Online {
			pipe.Expire(ctx, key, s.ttl)
		} else {
			pipe.Persist(ctx, key)
		}
		return nil
	})
	return errors.Wrapf(err, "redis update %s", key)
}
