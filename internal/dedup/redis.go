// internal/dedup/redis.go
package dedup

import (
	"context"
	"fmt"
	"time"

	"bushfire-beacon/internal/common/errors"
	"bushfire-beacon/internal/models"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "beacon:dedup:"

// Redis is a Deduplicator backed by Redis SET NX with a TTL equal to the
// dedup window. The atomicity of SET NX gives first-writer-wins across
// processes; TTL expiry is the lazy eviction.
type Redis struct {
	client *redis.Client
	window time.Duration
}

func NewRedis(client *redis.Client, window time.Duration) *Redis {
	return &Redis{client: client, window: window}
}

func (r *Redis) Admit(ctx context.Context, alert *models.Alert) (Admission, error) {
	key := keyPrefix + alert.DedupKey

	// A key can expire between a failed SETNX and the GET that follows, so
	// loop: the retry lands on a fresh window and wins it.
	for attempt := 0; attempt < 3; attempt++ {
		ok, err := r.client.SetNX(ctx, key, alert.ID, r.window).Result()
		if err != nil {
			return Admission{}, errors.NewDedupStoreFailedError(err)
		}
		if ok {
			return Admission{Admitted: true}, nil
		}

		firstID, err := r.client.Get(ctx, key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return Admission{}, errors.NewDedupStoreFailedError(err)
		}
		return Admission{Admitted: false, DuplicateOf: firstID}, nil
	}

	return Admission{}, errors.NewDedupStoreFailedError(fmt.Errorf("dedup key %s kept racing window expiry", alert.DedupKey))
}

// releaseScript deletes the key only while it still holds the releasing
// alert's id, so a window won by someone else is never dropped.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

func (r *Redis) Release(ctx context.Context, dedupKey, alertID string) error {
	err := releaseScript.Run(ctx, r.client, []string{keyPrefix + dedupKey}, alertID).Err()
	if err != nil && err != redis.Nil {
		return errors.NewDedupStoreFailedError(err)
	}
	return nil
}
