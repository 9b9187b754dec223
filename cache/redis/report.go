package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/craftfolio/backend/api/domain"
	"github.com/go-redis/redis/v8"
)

// ReportRedisCache holds the financial-report projection per owner as one
// JSON blob. Entries never expire; they are dropped explicitly when the
// coordinator finishes a mutation, so a cached read is current until the
// next successful write.
type ReportRedisCache struct {
	rdb *redis.Client
}

func NewReportRedisCache(rdb *redis.Client) *ReportRedisCache {
	return &ReportRedisCache{
		rdb: rdb,
	}
}

func reportKey(ownerID int) string {
	return fmt.Sprintf("reports.%d", ownerID)
}

func (c *ReportRedisCache) GetByOwnerID(ctx context.Context, ownerID int) ([]domain.FinancialReportRow, error) {
	data, err := c.rdb.Get(ctx, reportKey(ownerID)).Result()
	if err != nil {
		return nil, err
	}
	rows := make([]domain.FinancialReportRow, 0)
	if err := json.Unmarshal([]byte(data), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *ReportRedisCache) Update(ctx context.Context, ownerID int, rows []domain.FinancialReportRow) error {
	data, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, reportKey(ownerID), data, 0).Err()
}

func (c *ReportRedisCache) Invalidate(ctx context.Context, ownerID int) error {
	return c.rdb.Del(ctx, reportKey(ownerID)).Err()
}

var _ domain.ReportCache = (*ReportRedisCache)(nil)
