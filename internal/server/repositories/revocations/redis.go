package revocations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/medaccount/internal/common"
	"github.com/dmitrijs2005/medaccount/internal/server/models"
	"github.com/redis/go-redis/v9"
)

const (
	tokenKeyPrefix   = "medaccount:revoked:jti:"
	subjectKeyPrefix = "medaccount:revoked:subject:"
)

// RedisRepository keeps the revocation set in Redis. Token entries expire
// together with the token they block, so Purge has nothing to do.
type RedisRepository struct {
	client redis.UniversalClient
}

func NewRedisRepository(client redis.UniversalClient) *RedisRepository {
	return &RedisRepository{client: client}
}

func redisError(err error) error {
	return fmt.Errorf("redis error: %w: %w", common.ErrStoreUnavailable, err)
}

func (r *RedisRepository) Revoke(ctx context.Context, rev models.Revocation) (bool, error) {
	ttl := rev.ExpiresAt.Sub(rev.RevokedAt)
	if ttl < time.Second {
		ttl = time.Second
	}

	inserted, err := r.client.SetNX(ctx, tokenKeyPrefix+rev.TokenID, rev.IdentityID, ttl).Result()
	if err != nil {
		return false, redisError(err)
	}
	return inserted, nil
}

func (r *RedisRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, tokenKeyPrefix+tokenID).Result()
	if err != nil {
		return false, redisError(err)
	}
	return n > 0, nil
}

// RevokeSubject stores the cutoff with an optimistic transaction so a
// concurrent writer can never move it backwards.
func (r *RedisRepository) RevokeSubject(ctx context.Context, identityID string, before time.Time) error {
	key := subjectKeyPrefix + identityID

	txf := func(tx *redis.Tx) error {
		current, ok, err := readCutoff(ctx, tx, key)
		if err != nil {
			return err
		}
		if ok && !before.After(current) {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, before.UTC().Format(time.RFC3339Nano), 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < 5; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return redisError(err)
		}
		return nil
	}
	return redisError(redis.TxFailedErr)
}

func (r *RedisRepository) SubjectCutoff(ctx context.Context, identityID string) (time.Time, bool, error) {
	t, ok, err := readCutoff(ctx, r.client, subjectKeyPrefix+identityID)
	if err != nil {
		return time.Time{}, false, redisError(err)
	}
	return t, ok, nil
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readCutoff(ctx context.Context, c stringGetter, key string) (time.Time, bool, error) {
	raw, err := c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt cutoff for %s: %w", key, err)
	}
	return t, true, nil
}

func (r *RedisRepository) Purge(context.Context, time.Time) (int64, error) {
	return 0, nil
}
