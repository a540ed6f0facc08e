package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opseye/opseye/internal/alarm/model"
)

const (
	eventKeyPrefix = "alarm:event:"
	pendingIndex   = "alarm:index:pending"

	defaultEventTTL = 24 * time.Hour
)

// EventCache is a write-through redis cache in front of the event store.
// The read API serves hot events from here; the database stays the source
// of truth.
type EventCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewEventCache(rdb *redis.Client, ttl time.Duration) *EventCache {
	if ttl <= 0 {
		ttl = defaultEventTTL
	}
	return &EventCache{rdb: rdb, ttl: ttl}
}

// Put stores the event and keeps the pending index in step with its status.
func (c *EventCache) Put(ctx context.Context, ev *model.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	key := eventKeyPrefix + ev.ID
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache event: %w", err)
	}
	if ev.Status == model.StatusPending {
		err = c.rdb.SAdd(ctx, pendingIndex, ev.ID).Err()
	} else {
		err = c.rdb.SRem(ctx, pendingIndex, ev.ID).Err()
	}
	if err != nil {
		return fmt.Errorf("update pending index: %w", err)
	}
	return nil
}

// Get returns the cached event, or nil on a miss.
func (c *EventCache) Get(ctx context.Context, id string) (*model.Event, error) {
	val, err := c.rdb.Get(ctx, eventKeyPrefix+id).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached event: %w", err)
	}
	ev := new(model.Event)
	if err := json.Unmarshal([]byte(val), ev); err != nil {
		return nil, fmt.Errorf("unmarshal cached event: %w", err)
	}
	return ev, nil
}

// PendingIDs lists event ids currently indexed as pending.
func (c *EventCache) PendingIDs(ctx context.Context) ([]string, error) {
	ids, err := c.rdb.SMembers(ctx, pendingIndex).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("list pending index: %w", err)
	}
	return ids, nil
}
