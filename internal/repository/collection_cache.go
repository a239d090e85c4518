package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wicaksono/loan-servicing/internal/domain"
	customError "github.com/wicaksono/loan-servicing/pkg/errors"
)

type collectionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCollectionCache builds a redis-backed snapshot cache. Snapshots are
// derived data; a cache miss just means recompute.
func NewCollectionCache(client *redis.Client, ttl time.Duration) CollectionCache {
	return &collectionCache{client: client, ttl: ttl}
}

func snapshotKey(loanID string) string {
	return fmt.Sprintf("delinquency:%s", loanID)
}

func (c *collectionCache) SetSnapshot(ctx context.Context, snapshot *domain.LoanDelinquencySnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return customError.WrapCacheError(err)
	}
	if err := c.client.Set(ctx, snapshotKey(snapshot.Loan.LoanID), payload, c.ttl).Err(); err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}

func (c *collectionCache) GetSnapshot(ctx context.Context, loanID string) (*domain.LoanDelinquencySnapshot, error) {
	payload, err := c.client.Get(ctx, snapshotKey(loanID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, customError.WrapCacheError(err)
	}

	var snapshot domain.LoanDelinquencySnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, customError.WrapCacheError(err)
	}
	return &snapshot, nil
}
