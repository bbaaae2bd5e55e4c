package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"issuecompass/internal/model"
)

// HistoryCache keeps the persisted history listing of each account. A dirty
// marker is set whenever a new version is published and not yet persisted,
// so readers go to MySQL until the worker has caught up.
type HistoryCache struct {
	client         redisv9.Cmdable
	historyTTL     time.Duration
	dirtyMarkerTTL time.Duration
}

func NewHistoryCache(client redisv9.Cmdable, historyTTL, dirtyMarkerTTL time.Duration) *HistoryCache {
	if historyTTL <= 0 {
		historyTTL = 60 * time.Second
	}
	if dirtyMarkerTTL <= 0 {
		dirtyMarkerTTL = 5 * time.Second
	}
	return &HistoryCache{
		client:         client,
		historyTTL:     historyTTL,
		dirtyMarkerTTL: dirtyMarkerTTL,
	}
}

func (c *HistoryCache) GetHistory(ctx context.Context, userID uint) ([]model.ResultDocument, bool, error) {
	raw, err := c.client.Get(ctx, historyKey(userID)).Bytes()
	if errors.Is(err, redisv9.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get history failed: %w", err)
	}

	var docs []model.ResultDocument
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached history failed: %w", err)
	}
	return docs, true, nil
}

func (c *HistoryCache) SetHistory(ctx context.Context, userID uint, docs []model.ResultDocument) error {
	payload, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("marshal history cache failed: %w", err)
	}
	if err := c.client.Set(ctx, historyKey(userID), payload, c.historyTTL).Err(); err != nil {
		return fmt.Errorf("redis set history failed: %w", err)
	}
	return nil
}

// Invalidate marks the listing dirty and drops it in one round trip.
func (c *HistoryCache) Invalidate(ctx context.Context, userID uint) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
		pipe.Set(ctx, dirtyKey(userID), "1", c.dirtyMarkerTTL)
		pipe.Del(ctx, historyKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate history failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) IsDirty(ctx context.Context, userID uint) (bool, error) {
	exists, err := c.client.Exists(ctx, dirtyKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	return exists > 0, nil
}

func historyKey(userID uint) string {
	return fmt.Sprintf("workspace:history:%d", userID)
}

func dirtyKey(userID uint) string {
	return fmt.Sprintf("workspace:history:dirty:%d", userID)
}
