package services

import (
	"context"
	"testing"
	"time"

	"feelings/db"
	"feelings/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupCacheRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)

	prev := RedisClient
	RedisClient = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		RedisClient.Close()
		RedisClient = prev
	})
	return mr
}

func setupCacheDB(t *testing.T) {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(database))
	db.ORM = database
}

func cachedFeeling(id int64, text string, createdAt time.Time) models.FeedFeeling {
	return models.FeedFeeling{
		ID:         id,
		Text:       text,
		Author:     "ann",
		AuthorRole: models.PARENT,
		Likes:      []models.Like{},
		Comments:   []models.Comment{},
		CreatedAt:  createdAt,
	}
}

func TestFeedCacheRoundTrip(t *testing.T) {
	setupCacheRedis(t)
	ctx := context.Background()
	cache := NewFeedCache()

	now := time.Now()
	cache.CacheFeeling(ctx, cachedFeeling(1, "first", now))
	cache.CacheFeeling(ctx, cachedFeeling(2, "second", now.Add(time.Minute)))

	feed, err := cache.GetFeed(ctx)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, int64(2), feed[0].ID)
	assert.Equal(t, int64(1), feed[1].ID)
}

// An index entry whose per-feeling key has expired makes the whole read a
// cache miss; a partial feed is never returned.
func TestFeedCachePartialMissIsFullMiss(t *testing.T) {
	mr := setupCacheRedis(t)
	ctx := context.Background()
	cache := NewFeedCache()

	now := time.Now()
	cache.CacheFeeling(ctx, cachedFeeling(1, "first", now))
	cache.CacheFeeling(ctx, cachedFeeling(2, "second", now.Add(time.Minute)))
	mr.Del(feelingKey(1))

	_, err := cache.GetFeed(ctx)
	require.Error(t, err)
}

// The list endpoint must serve the full feed from the database when the
// cache has lost an entry.
func TestListFeelingsFallsBackOnPartialCache(t *testing.T) {
	mr := setupCacheRedis(t)
	setupCacheDB(t)
	ctx := context.Background()

	store := NewFeelingStore()
	first, err := NewFeeling("first", "ann", models.PARENT)
	require.NoError(t, err)
	require.NoError(t, store.Insert(ctx, first))
	second, err := NewFeeling("second", "ben", models.CHILD)
	require.NoError(t, err)
	require.NoError(t, store.Insert(ctx, second))

	cache := NewFeedCache()
	cache.CacheFeeling(ctx, first.ToFeed())
	cache.CacheFeeling(ctx, second.ToFeed())
	mr.Del(feelingKey(first.ID))

	feed, err := NewFeedService().ListFeelings(ctx)
	require.NoError(t, err)
	assert.Len(t, feed, 2)
}
