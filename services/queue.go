package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/go-redis/redis/v8"
)

const (
	FEED_CACHE_QUEUE   = "feed_cache_queue"
	QUEUE_WORKER_COUNT = 3
)

// CacheRefreshTask asks a worker to re-read one feeling from the store and
// refresh its cached projection, or to rebuild the whole cached feed.
type CacheRefreshTask struct {
	FeelingID int64  `json:"feeling_id"`
	Action    string `json:"action"` // "upsert", "rebuild"
}

// QueueService moves cache maintenance off the mutation path. Mutations
// enqueue a task after the store write; workers pick tasks off a Redis list.
type QueueService struct {
	store *FeelingStore
	cache *FeedCache
}

func NewQueueService() *QueueService {
	return &QueueService{
		store: NewFeelingStore(),
		cache: NewFeedCache(),
	}
}

func (qs *QueueService) StartWorkers(ctx context.Context) {
	for i := 0; i < QUEUE_WORKER_COUNT; i++ {
		go qs.worker(ctx, i)
	}
}

func (qs *QueueService) worker(ctx context.Context, workerID int) {
	log.Printf("Feed cache worker %d started", workerID)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if RedisClient == nil {
			return
		}

		result, err := RedisClient.BRPop(ctx, 0, FEED_CACHE_QUEUE).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		var task CacheRefreshTask
		if err := json.Unmarshal([]byte(result[1]), &task); err != nil {
			log.Printf("ERROR: worker %d failed to unmarshal task: %v", workerID, err)
			continue
		}

		qs.process(ctx, workerID, task)
	}
}

func (qs *QueueService) process(ctx context.Context, workerID int, task CacheRefreshTask) {
	switch task.Action {
	case "rebuild":
		if err := qs.cache.Rebuild(ctx, qs.store); err != nil {
			log.Printf("ERROR: worker %d failed to rebuild feed cache: %v", workerID, err)
		}
	default:
		feeling, err := qs.store.Get(ctx, task.FeelingID)
		if err != nil {
			log.Printf("ERROR: worker %d failed to load feeling %d: %v", workerID, task.FeelingID, err)
			return
		}
		qs.cache.CacheFeeling(ctx, feeling.ToFeed())
	}
}

// EnqueueCacheRefresh queues a refresh task; callers fall back to a
// synchronous cache write when the queue is unavailable.
func (qs *QueueService) EnqueueCacheRefresh(ctx context.Context, task CacheRefreshTask) error {
	if RedisClient == nil {
		return errors.New("redis not available")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return RedisClient.LPush(ctx, FEED_CACHE_QUEUE, data).Err()
}

func (qs *QueueService) GetQueueStats(ctx context.Context) (int64, error) {
	if RedisClient == nil {
		return 0, errors.New("redis not available")
	}
	return RedisClient.LLen(ctx, FEED_CACHE_QUEUE).Result()
}
