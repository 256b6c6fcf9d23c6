package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/officebrew/points-engine/ledger"
)

// Redis caches balance views as JSON under balance:<user> keys. Redis
// being down degrades every read to a store hit, never to an error.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{client: client, ttl: ttl}
}

func key(userID ledger.UserID) string {
	return "balance:" + string(userID)
}

func (r *Redis) Get(ctx context.Context, userID ledger.UserID) (View, error) {
	raw, err := r.client.Get(ctx, key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return View{}, ErrMiss
		}
		return View{}, ErrMiss
	}
	var v View
	if err := json.Unmarshal(raw, &v); err != nil {
		// Corrupt entry: drop it and report a miss.
		_ = r.client.Del(ctx, key(userID)).Err()
		return View{}, ErrMiss
	}
	return v, nil
}

func (r *Redis) Set(ctx context.Context, v View) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal balance view: %w", err)
	}
	return r.client.Set(ctx, key(v.UserID), raw, r.ttl).Err()
}

func (r *Redis) Invalidate(ctx context.Context, userID ledger.UserID) error {
	return r.client.Del(ctx, key(userID)).Err()
}
