package redis

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrRedisBadValue = errors.New("Bad value")

const (
	REDIS_MIN_RETRY_BACKOFF = 3 * time.Second
	REDIS_MAX_RETRY_BACKOFF = 5 * time.Second
	REDIS_DATABASE_AUTH     = 0
	REDIS_DATABASE_REPORTS  = 1
)

func NewClient(addr string, db int, name string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:            addr,
		Password:        "",
		DB:              db,
		MaxRetries:      0,
		MinRetryBackoff: REDIS_MIN_RETRY_BACKOFF,
		MaxRetryBackoff: REDIS_MAX_RETRY_BACKOFF,
		OnConnect: func(ctx context.Context, cn *redis.Conn) error {
			log.Println("redis:", "OnConnect()", name)
			return nil
		},
	})
}
