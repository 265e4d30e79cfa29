package task

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// TodayCache caches the classified today view per user. Implementations are
// best-effort: a miss or a broken cache must never fail the request.
type TodayCache interface {
	GetToday(ctx context.Context, userID uuid.UUID, windowStart time.Time) ([]ClassifiedTask, bool)
	SetToday(ctx context.Context, userID uuid.UUID, windowStart time.Time, items []ClassifiedTask)
	Invalidate(ctx context.Context, userID uuid.UUID)
}

type cachedToday struct {
	WindowStart time.Time
	Items       []ClassifiedTask
}

// RedisTodayCache stores today views in Redis under one key per user. The
// payload remembers its window start, so a view cached before a reset
// boundary is treated as a miss after it.
type RedisTodayCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTodayCache builds a cache over an established client.
func NewRedisTodayCache(client *redis.Client, ttl time.Duration) *RedisTodayCache {
	return &RedisTodayCache{client: client, ttl: ttl}
}

func todayKey(userID uuid.UUID) string {
	return "sisyphus:today:" + userID.String()
}

func (c *RedisTodayCache) GetToday(ctx context.Context, userID uuid.UUID, windowStart time.Time) ([]ClassifiedTask, bool) {
	raw, err := c.client.Get(ctx, todayKey(userID)).Bytes()
	if err != nil {
		return nil, false
	}

	var payload cachedToday
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, false
	}
	if !payload.WindowStart.Equal(windowStart) {
		return nil, false
	}
	return payload.Items, true
}

func (c *RedisTodayCache) SetToday(ctx context.Context, userID uuid.UUID, windowStart time.Time, items []ClassifiedTask) {
	raw, err := json.Marshal(cachedToday{WindowStart: windowStart, Items: items})
	if err != nil {
		return
	}
	c.client.Set(ctx, todayKey(userID), raw, c.ttl)
}

func (c *RedisTodayCache) Invalidate(ctx context.Context, userID uuid.UUID) {
	c.client.Del(ctx, todayKey(userID))
}
