package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stardustagi/ScriptPilot/libs/redis"
)

// hitScript: 窗口不存在或已过期时重建, 否则自增; 返回 {count, resetAtMs}
var hitScript = goredis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local reset = tonumber(redis.call('HGET', KEYS[1], 'reset'))
if (not reset) or now > reset then
  reset = now + window
  redis.call('HSET', KEYS[1], 'count', 1, 'reset', reset)
  redis.call('PEXPIRE', KEYS[1], window + 1000)
  return {1, reset}
end
local count = redis.call('HINCRBY', KEYS[1], 'count', 1)
return {count, reset}
`)

// RedisStore 多实例共享计数. 过期由 redis TTL 负责, Sweep 不做任何事.
type RedisStore struct {
	cli redis.RedisCli
}

func NewRedisStore(cli redis.RedisCli) *RedisStore {
	return &RedisStore{cli: cli}
}

func key(clientID string) string {
	return "ratelimit:" + clientID
}

func (s *RedisStore) Get(ctx context.Context, clientID string) (Entry, bool, error) {
	fields, err := s.cli.HGetAll(ctx, key(clientID))
	if err != nil {
		return Entry{}, false, err
	}
	if len(fields) == 0 {
		return Entry{}, false, nil
	}
	count, err := strconv.Atoi(fields["count"])
	if err != nil {
		return Entry{}, false, fmt.Errorf("ratelimit entry %s: count: %w", clientID, err)
	}
	reset, err := strconv.ParseInt(fields["reset"], 10, 64)
	if err != nil {
		return Entry{}, false, fmt.Errorf("ratelimit entry %s: reset: %w", clientID, err)
	}
	return Entry{Count: count, ResetAt: time.UnixMilli(reset)}, true, nil
}

func (s *RedisStore) Put(ctx context.Context, clientID string, e Entry) error {
	ttl := time.Until(e.ResetAt) + time.Second
	if ttl < time.Second {
		ttl = time.Second
	}
	return s.cli.HSetWithTTL(ctx, key(clientID), ttl, map[string]interface{}{
		"count": e.Count,
		"reset": e.ResetAt.UnixMilli(),
	})
}

func (s *RedisStore) Hit(ctx context.Context, clientID string, now time.Time, window time.Duration) (Entry, error) {
	res, err := s.cli.RunScript(ctx, hitScript, []string{key(clientID)}, now.UnixMilli(), window.Milliseconds())
	if err != nil {
		return Entry{}, err
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return Entry{}, fmt.Errorf("ratelimit: unexpected script result %v", res)
	}
	count, ok1 := vals[0].(int64)
	reset, ok2 := vals[1].(int64)
	if !ok1 || !ok2 {
		return Entry{}, fmt.Errorf("ratelimit: unexpected script result %v", res)
	}
	return Entry{Count: int(count), ResetAt: time.UnixMilli(reset)}, nil
}

func (s *RedisStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}
