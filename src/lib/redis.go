package lib

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

func GetRedisClient() *redis.Client {
	if redisClient != nil {
		return redisClient
	}
	redisHost := os.Getenv("REDIS_HOST")
	opt, err := redis.ParseURL(redisHost)
	if err != nil {
		log.Printf("[redis] Error parsing connection string: %s\n", err.Error())
		return nil
	}
	rdb := redis.NewClient(opt)
	redisClient = rdb
	return rdb
}

// NewRedisClient Replace redis instance with custom client implementation
func NewRedisClient(c *redis.Client) *redis.Client {
	redisClient = c
	return redisClient
}

// CacheJSON stores v under key for ttl. Failures are logged, never fatal;
// the cache is an optimization of the public catalog only.
func CacheJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	rdb := GetRedisClient()
	if rdb == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("[redis] Error serializing value for key %s: %s\n", key, err.Error())
		return
	}
	if err := rdb.Set(ctx, key, b, ttl).Err(); err != nil {
		log.Printf("[redis] Failed to set value for key %s: %s\n", key, err.Error())
	}
}

// GetCachedJSON loads key into v, reporting whether a value was found.
func GetCachedJSON(ctx context.Context, key string, v any) bool {
	rdb := GetRedisClient()
	if rdb == nil {
		return false
	}
	b, err := rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false
	} else if err != nil {
		log.Printf("[redis] Error retrieving value for %s: %s\n", key, err.Error())
		return false
	}
	if err := json.Unmarshal(b, v); err != nil {
		log.Printf("[redis] Error deserializing value for %s: %s\n", key, err.Error())
		return false
	}
	return true
}

// DropCached removes keys after a catalog mutation.
func DropCached(ctx context.Context, keys ...string) {
	rdb := GetRedisClient()
	if rdb == nil {
		return
	}
	if err := rdb.Del(ctx, keys...).Err(); err != nil {
		log.Printf("[redis] Failed to drop keys %v: %s\n", keys, err.Error())
	}
}
