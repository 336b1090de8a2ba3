package keyValue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type entry struct {
	value   string
	expires time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && e.expires.Before(now)
}

var mutex sync.RWMutex
var hashmap = make(map[string]entry)

var sugar *zap.SugaredLogger
var redisClient *redis.Client
var redisCtx = context.Background()
var selfContained = true

// Setup picks the backend. With selfContained the values live in this
// process and expired keys are swept every minute until ctx is done.
func Setup(ctx context.Context, _sugar *zap.SugaredLogger, _redisClient *redis.Client, _selfContained bool) {
	sugar = _sugar
	redisClient = _redisClient
	selfContained = _selfContained

	if selfContained {
		go sweepExpiredKeys(ctx, time.Minute)
	}
}

func sweepExpiredKeys(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed := removeExpired(now)
			if removed > 0 {
				sugar.Debugf("Removed %d expired keys from hashmap", removed)
			}
		}
	}
}

func removeExpired(now time.Time) int {
	mutex.Lock()
	defer mutex.Unlock()

	removed := 0
	for key, e := range hashmap {
		if e.expired(now) {
			delete(hashmap, key)
			removed++
		}
	}
	return removed
}

// Get returns an empty string when the key doesn't exist.
func Get(key string) (string, error) {
	if selfContained {
		sugar.Debugf("Getting value of key [%s] from hashmap", key)

		mutex.RLock()
		defer mutex.RUnlock()

		e, ok := hashmap[key]
		if !ok || e.expired(time.Now()) {
			return "", nil
		}
		return e.value, nil
	}

	sugar.Debugf("Getting value of key [%s] from redis", key)

	value, err := redisClient.Get(redisCtx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return value, err
}

func GetDel(key string) (string, error) {
	if selfContained {
		sugar.Debugf("Getting and deleting value of key [%s] from hashmap", key)

		mutex.Lock()
		defer mutex.Unlock()

		e, ok := hashmap[key]
		delete(hashmap, key)
		if !ok || e.expired(time.Now()) {
			return "", nil
		}
		return e.value, nil
	}

	sugar.Debugf("Getting and deleting value of key [%s] from redis", key)

	value, err := redisClient.GetDel(redisCtx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return value, err
}

// Set stores the value. An expiration of 0 keeps it until deleted.
func Set(key string, value string, expiration time.Duration) error {
	if selfContained {
		sugar.Debugf("Setting value of key [%s] in hashmap", key)

		e := entry{value: value}
		if expiration > 0 {
			e.expires = time.Now().Add(expiration)
		}

		mutex.Lock()
		hashmap[key] = e
		mutex.Unlock()

		return nil
	}

	sugar.Debugf("Setting value of key [%s] in redis", key)
	return redisClient.Set(redisCtx, key, value, expiration).Err()
}

func Delete(key string) error {
	if selfContained {
		sugar.Debugf("Deleting key [%s] from hashmap", key)

		mutex.Lock()
		delete(hashmap, key)
		mutex.Unlock()

		return nil
	}

	sugar.Debugf("Deleting key [%s] from redis", key)
	return redisClient.Del(redisCtx, key).Err()
}

// Ping checks redis, the in-process map is always available.
func Ping(ctx context.Context) error {
	if selfContained {
		return nil
	}
	return redisClient.Ping(ctx).Err()
}
