package dedup

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// checkAndRecordScript performs the duplicate check and observation record in
// a single round trip so concurrent instances cannot both pass. A duplicate
// leaves the existing record and its TTL untouched, anchoring the window at
// the first observation.
var checkAndRecordScript = redis.NewScript(`
local last = redis.call('GET', KEYS[1])
if last and (tonumber(ARGV[1]) - tonumber(last)) < tonumber(ARGV[2]) then
  return 1
end
redis.call('SET', KEYS[1], ARGV[1], 'EX', ARGV[3])
return 0
`)

// redisStore backs the deduplication cache with redis, for deployments
// running more than one ingest instance against the same signal feed.
type redisStore struct {
	client *redis.Client
	window time.Duration
	expiry time.Duration
}

// NewRedisStore creates a redis-backed fingerprint store
func NewRedisStore(client *redis.Client, window, expiry time.Duration) Store {
	return &redisStore{client: client, window: window, expiry: expiry}
}

func (s *redisStore) CheckAndRecord(ctx context.Context, fingerprint string, now time.Time) (bool, error) {
	key := "dedup:" + fingerprint
	res, err := checkAndRecordScript.Run(ctx, s.client, []string{key},
		now.Unix(),
		int64(s.window.Seconds()),
		int64(s.expiry.Seconds()),
	).Int()
	if err != nil {
		return false, fmt.Errorf("dedup redis check failed: %w", err)
	}
	return res == 1, nil
}
