package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/craftfolio/backend/api/domain"
	"github.com/craftfolio/backend/api/util"
	"github.com/go-redis/redis/v8"
)

type AuthRedisCache struct {
	rdb         *redis.Client
	tokenExpiry time.Duration
}

func NewAuthRedisCache(rdb *redis.Client, tokenExpiry time.Duration) *AuthRedisCache {
	return &AuthRedisCache{
		rdb:         rdb,
		tokenExpiry: tokenExpiry,
	}
}

func (a *AuthRedisCache) GetUserByToken(ctx context.Context, token string) (string, int, error) {
	value, err := a.rdb.GetEx(ctx, token, a.tokenExpiry).Result()
	if err != nil {
		return "", 0, err
	}
	parts := strings.SplitN(value, "|", 2)
	if len(parts) != 2 {
		return "", 0, ErrRedisBadValue
	}
	id, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", 0, ErrRedisBadValue
	}
	return parts[1], id, nil
}

func (a *AuthRedisCache) GenerateAndSaveToken(ctx context.Context, email string, id int) (string, error) {
	token := util.RandomString(50)
	err := a.rdb.Set(ctx, token, fmt.Sprintf("%d|%s", id, email), a.tokenExpiry).Err()
	if err != nil {
		return "", err
	}
	return token, nil
}

func (a *AuthRedisCache) DeleteToken(ctx context.Context, token string) error {
	return a.rdb.Del(ctx, token).Err()
}

func (a *AuthRedisCache) GetTokenExpiry() time.Duration {
	return a.tokenExpiry
}

var _ domain.AuthCache = (*AuthRedisCache)(nil)
