package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"feelings/models"

	"github.com/go-redis/redis/v8"
)

const (
	FEED_CACHE_TTL     = 24 * time.Hour // TTL for cached feed entries
	MAX_FEED_SIZE      = 1000           // cap on cached feed length
	FEED_INDEX_KEY     = "feed:index"   // sorted set of feeling ids, score = creation time
	FEELING_KEY_PREFIX = "feeling:"     // per-feeling JSON cache
)

// FeedCache keeps the shared feed in Redis so the list endpoint does not hit
// the database on every poll. All paths tolerate a missing Redis client.
type FeedCache struct{}

func NewFeedCache() *FeedCache {
	return &FeedCache{}
}

// CacheFeeling writes one feeling projection into the cache and keeps the
// index trimmed.
func (fc *FeedCache) CacheFeeling(ctx context.Context, feeling models.FeedFeeling) {
	if RedisClient == nil {
		return
	}

	data, err := json.Marshal(feeling)
	if err != nil {
		return
	}

	pipe := RedisClient.Pipeline()
	pipe.ZAdd(ctx, FEED_INDEX_KEY, &redis.Z{
		Score:  float64(feeling.CreatedAt.UnixNano()),
		Member: strconv.FormatInt(feeling.ID, 10),
	})
	pipe.Set(ctx, feelingKey(feeling.ID), data, FEED_CACHE_TTL)
	pipe.ZRemRangeByRank(ctx, FEED_INDEX_KEY, 0, -MAX_FEED_SIZE-1)
	pipe.Expire(ctx, FEED_INDEX_KEY, FEED_CACHE_TTL)
	pipe.Exec(ctx)
}

// GetFeed returns the cached feed, newest first. An empty result or any
// cache error sends the caller to the database.
func (fc *FeedCache) GetFeed(ctx context.Context) ([]models.FeedFeeling, error) {
	if RedisClient == nil {
		return nil, fmt.Errorf("redis not available")
	}

	ids, err := RedisClient.ZRevRange(ctx, FEED_INDEX_KEY, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := RedisClient.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, FEELING_KEY_PREFIX+id)
	}
	_, err = pipe.Exec(ctx)
	if err != nil && err != redis.Nil {
		return nil, err
	}

	// A per-feeling key can expire while the index entry survives. A
	// partial feed must not be served, so any missing or unreadable entry
	// is a full cache miss and the DB path repopulates everything.
	feelings := make([]models.FeedFeeling, 0, len(ids))
	for i, cmd := range cmds {
		val, err := cmd.Result()
		if err != nil {
			return nil, fmt.Errorf("cached feeling %s missing", ids[i])
		}
		var feeling models.FeedFeeling
		if err := json.Unmarshal([]byte(val), &feeling); err != nil {
			return nil, fmt.Errorf("cached feeling %s unreadable: %w", ids[i], err)
		}
		feelings = append(feelings, feeling)
	}
	return feelings, nil
}

func (fc *FeedCache) GetFeeling(ctx context.Context, id int64) (*models.FeedFeeling, error) {
	if RedisClient == nil {
		return nil, fmt.Errorf("redis not available")
	}
	val, err := RedisClient.Get(ctx, feelingKey(id)).Result()
	if err != nil {
		return nil, err
	}
	var feeling models.FeedFeeling
	if err := json.Unmarshal([]byte(val), &feeling); err != nil {
		return nil, err
	}
	return &feeling, nil
}

// Invalidate drops the whole cached feed.
func (fc *FeedCache) Invalidate(ctx context.Context) error {
	if RedisClient == nil {
		return fmt.Errorf("redis not available")
	}

	ids, err := RedisClient.ZRange(ctx, FEED_INDEX_KEY, 0, -1).Result()
	if err != nil {
		return err
	}
	pipe := RedisClient.Pipeline()
	for _, id := range ids {
		pipe.Del(ctx, FEELING_KEY_PREFIX+id)
	}
	pipe.Del(ctx, FEED_INDEX_KEY)
	_, err = pipe.Exec(ctx)
	return err
}

// Rebuild repopulates the cache from the store.
func (fc *FeedCache) Rebuild(ctx context.Context, store *FeelingStore) error {
	if RedisClient == nil {
		return fmt.Errorf("redis not available")
	}

	feelings, err := store.ListAll(ctx)
	if err != nil {
		return err
	}
	if err := fc.Invalidate(ctx); err != nil {
		return err
	}
	for i := range feelings {
		fc.CacheFeeling(ctx, feelings[i].ToFeed())
	}
	return nil
}

func feelingKey(id int64) string {
	return fmt.Sprintf("%s%d", FEELING_KEY_PREFIX, id)
}
