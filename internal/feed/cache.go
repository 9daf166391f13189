package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"friendZoneAPI/internal/reconcile"
)

const viewPrefix = "friendzone:view:"

// putIfNewer stores the view only when no newer one is cached.
var putIfNewer = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'seq')
if current and tonumber(current) > tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'seq', ARGV[1], 'view', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// ViewCache shares computed views between API instances.
type ViewCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewViewCache(client *redis.Client, ttl time.Duration) *ViewCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ViewCache{client: client, ttl: ttl}
}

// Put reports whether the view was stored.
func (c *ViewCache) Put(ctx context.Context, view *reconcile.View) (bool, error) {
	data, err := json.Marshal(view)
	if err != nil {
		return false, fmt.Errorf("marshal view: %w", err)
	}
	stored, err := putIfNewer.Run(ctx, c.client, []string{viewPrefix + view.OwnerID},
		strconv.FormatUint(view.Seq, 10), data, c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("cache view: %w", err)
	}
	return stored == 1, nil
}

func (c *ViewCache) Get(ctx context.Context, ownerID string) (*reconcile.View, bool, error) {
	data, err := c.client.HGet(ctx, viewPrefix+ownerID, "view").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cached view: %w", err)
	}
	var view reconcile.View
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached view: %w", err)
	}
	return &view, true, nil
}

func (c *ViewCache) Invalidate(ctx context.Context, ownerID string) error {
	if err := c.client.Del(ctx, viewPrefix+ownerID).Err(); err != nil {
		return fmt.Errorf("invalidate view: %w", err)
	}
	return nil
}
