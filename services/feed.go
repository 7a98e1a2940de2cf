package services

import (
	"context"
	"log"

	"feelings/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var feedBroadcastsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "feed_broadcasts_total",
		Help: "Total number of feed broadcasts published",
	},
	[]string{"event", "transport"},
)

// FeedService is the single mutation pipeline behind both gateway entry
// points. Whichever path delivers a mutation first wins; the second delivery
// of the same toggle just flips state again, which is the documented
// behavior, and the client engine reconciles duplicates of posts/comments.
type FeedService struct {
	store      *FeelingStore
	cache      *FeedCache
	hub        *SessionHub
	locks      *keyedLocks[int64]
	tokenLocks *keyedLocks[string]
}

func NewFeedService() *FeedService {
	return &FeedService{
		store:      NewFeelingStore(),
		cache:      NewFeedCache(),
		hub:        GlobalSessionHub,
		locks:      newKeyedLocks[int64](),
		tokenLocks: newKeyedLocks[string](),
	}
}

// CreateFeeling validates, persists and broadcasts a new feeling. The
// receiveFeeling broadcast skips the originating session: the originator
// reconciles through its own confirmation instead.
func (fs *FeedService) CreateFeeling(ctx context.Context, payload models.NewFeelingPayload, origin *Session) (*models.Feeling, error) {
	feeling, err := NewFeeling(payload.Text, payload.Author, payload.AuthorRole)
	if err != nil {
		return nil, err
	}
	feeling.ClientToken = payload.ClientToken

	// The client sends the same post over both gateway paths; the token
	// identifies the duplicate, which confirms the existing row instead of
	// creating a second one. The token lock keeps the two paths from both
	// passing the lookup.
	if payload.ClientToken != "" {
		fs.tokenLocks.Lock(payload.ClientToken)
		defer fs.tokenLocks.Unlock(payload.ClientToken)
		if existing, err := fs.store.FindByToken(ctx, payload.ClientToken); err == nil {
			return existing, nil
		}
	}

	if err := fs.store.Insert(ctx, feeling); err != nil {
		return nil, err
	}

	fs.refreshCache(feeling)
	fs.broadcast(ctx, models.EventReceiveFeeling, feeling.ToFeed(), origin, true)
	return feeling, nil
}

// ToggleLike runs the toggle under the per-feeling lock and broadcasts the
// authoritative counter to every session, originator included; the client
// reducer is idempotent so the duplicate confirmation is harmless and keeps
// other tabs of the same identity in sync.
func (fs *FeedService) ToggleLike(ctx context.Context, payload models.ToggleLikePayload, origin *Session) (*models.Feeling, bool, error) {
	fs.locks.Lock(payload.FeelingID)
	defer fs.locks.Unlock(payload.FeelingID)

	feeling, err := fs.store.GetFromMaster(ctx, payload.FeelingID)
	if err != nil {
		return nil, false, err
	}

	wasAdded, err := ToggleLike(feeling, payload.UserID, payload.UserRole)
	if err != nil {
		return nil, false, err
	}

	if err := fs.store.Replace(ctx, feeling); err != nil {
		return nil, false, err
	}

	fs.refreshCache(feeling)
	fs.broadcast(ctx, models.EventLikeUpdated, models.LikeUpdatedPayload{
		FeelingID:  feeling.ID,
		WasLiked:   wasAdded,
		LikesCount: feeling.LikesCount(),
		UserID:     payload.UserID,
		UserRole:   payload.UserRole,
	}, origin, false)
	return feeling, wasAdded, nil
}

// AddComment appends a comment under the per-feeling lock and broadcasts it
// to every session.
func (fs *FeedService) AddComment(ctx context.Context, payload models.NewCommentPayload, origin *Session) (*models.Feeling, *models.Comment, error) {
	fs.locks.Lock(payload.FeelingID)
	defer fs.locks.Unlock(payload.FeelingID)

	feeling, err := fs.store.GetFromMaster(ctx, payload.FeelingID)
	if err != nil {
		return nil, nil, err
	}

	comment, err := AddComment(feeling, payload.Text, payload.Author, payload.AuthorRole)
	if err != nil {
		return nil, nil, err
	}

	if err := fs.store.Replace(ctx, feeling); err != nil {
		return nil, nil, err
	}

	fs.refreshCache(feeling)
	fs.broadcast(ctx, models.EventCommentAdded, models.CommentAddedPayload{
		FeelingID: feeling.ID,
		Comment:   *comment,
	}, origin, false)
	return feeling, comment, nil
}

// ListFeelings serves the feed from cache when possible, newest first.
func (fs *FeedService) ListFeelings(ctx context.Context) ([]models.FeedFeeling, error) {
	cached, err := fs.cache.GetFeed(ctx)
	if err == nil && len(cached) > 0 {
		return cached, nil
	}

	feelings, err := fs.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	feed := make([]models.FeedFeeling, 0, len(feelings))
	for i := range feelings {
		projection := feelings[i].ToFeed()
		feed = append(feed, projection)
		go fs.cache.CacheFeeling(context.Background(), projection)
	}
	return feed, nil
}

func (fs *FeedService) GetFeeling(ctx context.Context, id int64) (*models.FeedFeeling, error) {
	if cached, err := fs.cache.GetFeeling(ctx, id); err == nil {
		return cached, nil
	}

	feeling, err := fs.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	projection := feeling.ToFeed()
	go fs.cache.CacheFeeling(context.Background(), projection)
	return &projection, nil
}

// refreshCache updates the cached projection, through the queue when it is
// running and synchronously otherwise.
func (fs *FeedService) refreshCache(feeling *models.Feeling) {
	if QueueServiceInstance != nil && RedisClient != nil {
		task := CacheRefreshTask{FeelingID: feeling.ID, Action: "upsert"}
		go func() {
			if err := QueueServiceInstance.EnqueueCacheRefresh(context.Background(), task); err != nil {
				fs.cache.CacheFeeling(context.Background(), feeling.ToFeed())
			}
		}()
		return
	}
	go fs.cache.CacheFeeling(context.Background(), feeling.ToFeed())
}

// broadcast publishes one client frame through RabbitMQ so every instance
// fans it out, falling back to the local hub when the broker is down. A
// failed mutation never reaches this point, so there is no partial broadcast.
func (fs *FeedService) broadcast(ctx context.Context, event string, payload interface{}, origin *Session, exceptOrigin bool) {
	frame, err := models.NewWSEnvelope(event, payload)
	if err != nil {
		log.Printf("ERROR: failed to encode %s broadcast: %v", event, err)
		return
	}

	originID := ""
	if origin != nil {
		originID = origin.ID
	}

	err = PublishBroadcast(ctx, BroadcastEvent{
		Event:        event,
		Origin:       originID,
		ExceptOrigin: exceptOrigin,
		Frame:        frame,
	})
	if err == nil {
		feedBroadcastsTotal.WithLabelValues(event, "rabbitmq").Inc()
		return
	}

	feedBroadcastsTotal.WithLabelValues(event, "local").Inc()
	if exceptOrigin {
		fs.hub.BroadcastExceptID(originID, frame)
	} else {
		fs.hub.BroadcastAll(frame)
	}
}
