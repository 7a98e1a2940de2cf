package feedclient

import (
	"testing"
	"time"

	"feelings/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func confirmedFeeling(id int64, text, author string, role models.Role) models.FeedFeeling {
	return models.FeedFeeling{
		ID:         id,
		Text:       text,
		Author:     author,
		AuthorRole: role,
		Likes:      []models.Like{},
		Comments:   []models.Comment{},
		CreatedAt:  time.Now(),
	}
}

func TestReloadReplacesView(t *testing.T) {
	view := NewFeedView("ann", models.PARENT)
	view.ApplyLocalPost("tok-1", "stale optimistic state")

	view.Reload([]models.FeedFeeling{
		confirmedFeeling(1, "hello", "ben", models.CHILD),
		confirmedFeeling(2, "world", "kim", models.PARENT),
	})

	feed := view.Feelings()
	require.Len(t, feed, 2)
	assert.Equal(t, int64(1), feed[0].ID)
	assert.False(t, view.IsProvisional("tok-1"))
}

func TestConfirmPostReplacesProvisional(t *testing.T) {
	view := NewFeedView("ann", models.PARENT)
	view.ApplyLocalPost("tok-1", "hi")
	require.True(t, view.IsProvisional("tok-1"))

	confirmed := confirmedFeeling(7, "hi", "ann", models.PARENT)
	confirmed.ClientToken = "tok-1"
	view.ConfirmPost("tok-1", confirmed)

	feed := view.Feelings()
	require.Len(t, feed, 1)
	assert.Equal(t, int64(7), feed[0].ID)
	assert.False(t, view.IsProvisional("tok-1"))
}

// A broadcast for one's own post arriving before the request/response call
// returns must leave exactly one confirmed entry, not two.
func TestBroadcastBeforeConfirmation(t *testing.T) {
	view := NewFeedView("ann", models.PARENT)
	view.ApplyLocalPost("tok-1", "hi")

	broadcast := confirmedFeeling(7, "hi", "ann", models.PARENT)
	broadcast.ClientToken = "tok-1"
	view.MergeBroadcastFeeling(broadcast)

	feed := view.Feelings()
	require.Len(t, feed, 1)
	assert.Equal(t, int64(7), feed[0].ID)

	// The late confirmation must not insert a second entry
	view.ConfirmPost("tok-1", broadcast)
	feed = view.Feelings()
	require.Len(t, feed, 1)
	assert.Equal(t, int64(7), feed[0].ID)
}

// Without a token, a broadcast matching the provisional entry's content
// within the time window still counts as its confirmation.
func TestBroadcastContentFallback(t *testing.T) {
	view := NewFeedView("ann", models.PARENT)
	view.ApplyLocalPost("tok-1", "hi")

	broadcast := confirmedFeeling(7, "hi", "ann", models.PARENT)
	view.MergeBroadcastFeeling(broadcast)

	feed := view.Feelings()
	require.Len(t, feed, 1)
	assert.Equal(t, int64(7), feed[0].ID)
	assert.False(t, view.IsProvisional("tok-1"))
}

func TestBroadcastFromOtherClientInserts(t *testing.T) {
	view := NewFeedView("ann", models.PARENT)
	view.ApplyLocalPost("tok-1", "hi")

	view.MergeBroadcastFeeling(confirmedFeeling(3, "something else", "ben", models.CHILD))

	feed := view.Feelings()
	require.Len(t, feed, 2)
	assert.True(t, view.IsProvisional("tok-1"))
}

func TestDiscardPost(t *testing.T) {
	view := NewFeedView("ann", models.PARENT)
	view.ApplyLocalPost("tok-1", "hi")

	assert.True(t, view.DiscardPost("tok-1"))
	assert.Empty(t, view.Feelings())

	// Already confirmed by a broadcast: nothing to discard
	view.ApplyLocalPost("tok-2", "again")
	broadcast := confirmedFeeling(9, "again", "ann", models.PARENT)
	broadcast.ClientToken = "tok-2"
	view.MergeBroadcastFeeling(broadcast)
	assert.False(t, view.DiscardPost("tok-2"))
	require.Len(t, view.Feelings(), 1)
}

// Delivering the same broadcast twice leaves the view identical to
// delivering it once.
func TestMergeFeelingIdempotent(t *testing.T) {
	view := NewFeedView("ann", models.PARENT)
	broadcast := confirmedFeeling(5, "hello", "ben", models.CHILD)

	view.MergeBroadcastFeeling(broadcast)
	view.MergeBroadcastFeeling(broadcast)

	require.Len(t, view.Feelings(), 1)
}

func TestMergeLikeUpdateIdempotent(t *testing.T) {
	view := NewFeedView("ann", models.PARENT)
	view.Reload([]models.FeedFeeling{confirmedFeeling(5, "hello", "ben", models.CHILD)})

	update := models.LikeUpdatedPayload{FeelingID: 5, WasLiked: true, LikesCount: 1, UserID: "kim"}
	view.MergeLikeUpdate(update)
	view.MergeLikeUpdate(update)

	feeling, ok := view.Get(5)
	require.True(t, ok)
	assert.Equal(t, 1, feeling.LikesCount)
	assert.Len(t, feeling.Likes, 1)
}

func TestMergeCommentIdempotent(t *testing.T) {
	view := NewFeedView("ann", models.PARENT)
	view.Reload([]models.FeedFeeling{confirmedFeeling(5, "hello", "ben", models.CHILD)})

	added := models.CommentAddedPayload{
		FeelingID: 5,
		Comment: models.Comment{
			Text:       "nice",
			Author:     "kim",
			AuthorRole: models.PARENT,
			CreatedAt:  time.Now(),
		},
	}
	view.MergeCommentAdded(added)
	view.MergeCommentAdded(added)

	feeling, ok := view.Get(5)
	require.True(t, ok)
	assert.Len(t, feeling.Comments, 1)
}

func TestOptimisticToggleAndRollback(t *testing.T) {
	view := NewFeedView("ann", models.PARENT)
	view.Reload([]models.FeedFeeling{confirmedFeeling(5, "hello", "ben", models.CHILD)})

	liked, ok := view.ApplyLocalToggle(5)
	require.True(t, ok)
	assert.True(t, liked)
	feeling, _ := view.Get(5)
	assert.Equal(t, 1, feeling.LikesCount)

	view.RollbackToggle(5)
	feeling, _ = view.Get(5)
	assert.Equal(t, 0, feeling.LikesCount)
}

func TestOptimisticToggleOffAndBack(t *testing.T) {
	view := NewFeedView("ann", models.PARENT)
	feeling := confirmedFeeling(5, "hello", "ben", models.CHILD)
	feeling.Likes = []models.Like{{UserID: "ann", UserRole: models.PARENT, CreatedAt: time.Now()}}
	feeling.LikesCount = 1
	view.Reload([]models.FeedFeeling{feeling})

	liked, ok := view.ApplyLocalToggle(5)
	require.True(t, ok)
	assert.False(t, liked)
	got, _ := view.Get(5)
	assert.Equal(t, 0, got.LikesCount)

	view.RollbackToggle(5)
	got, _ = view.Get(5)
	assert.Equal(t, 1, got.LikesCount)
}

// The confirmation carries the authoritative counter; the optimistic state
// is kept but the count is reconciled.
func TestMergeLikeUpdateReconcilesOptimisticState(t *testing.T) {
	view := NewFeedView("ann", models.PARENT)
	view.Reload([]models.FeedFeeling{confirmedFeeling(5, "hello", "ben", models.CHILD)})

	view.ApplyLocalToggle(5)
	view.MergeLikeUpdate(models.LikeUpdatedPayload{FeelingID: 5, WasLiked: true, LikesCount: 2, UserID: "ann"})

	feeling, _ := view.Get(5)
	assert.Equal(t, 2, feeling.LikesCount)
	assert.Len(t, feeling.Likes, 1)
}

func TestLocalCommentRollback(t *testing.T) {
	view := NewFeedView("ann", models.PARENT)
	view.Reload([]models.FeedFeeling{confirmedFeeling(5, "hello", "ben", models.CHILD)})

	require.True(t, view.ApplyLocalComment(5, "hope you feel better"))
	feeling, _ := view.Get(5)
	require.Len(t, feeling.Comments, 1)

	view.RollbackComment(5, "hope you feel better")
	feeling, _ = view.Get(5)
	assert.Empty(t, feeling.Comments)
}

// The server's copy of an optimistic comment replaces it instead of
// appending a duplicate.
func TestMergeCommentMatchesOptimisticCopy(t *testing.T) {
	view := NewFeedView("ann", models.PARENT)
	view.Reload([]models.FeedFeeling{confirmedFeeling(5, "hello", "ben", models.CHILD)})

	require.True(t, view.ApplyLocalComment(5, "hope you feel better"))
	view.MergeCommentAdded(models.CommentAddedPayload{
		FeelingID: 5,
		Comment: models.Comment{
			ID:         12,
			FeelingID:  5,
			Text:       "hope you feel better",
			Author:     "ann",
			AuthorRole: models.PARENT,
			CreatedAt:  time.Now(),
		},
	})

	feeling, _ := view.Get(5)
	require.Len(t, feeling.Comments, 1)
	assert.Equal(t, int64(12), feeling.Comments[0].ID)
}

// The merged like entry carries the liker's role, matching the server's
// like list.
func TestMergeLikeUpdateCarriesRole(t *testing.T) {
	view := NewFeedView("ann", models.PARENT)
	view.Reload([]models.FeedFeeling{confirmedFeeling(5, "hello", "ben", models.CHILD)})

	view.MergeLikeUpdate(models.LikeUpdatedPayload{
		FeelingID:  5,
		WasLiked:   true,
		LikesCount: 1,
		UserID:     "kim",
		UserRole:   models.CHILD,
	})

	feeling, _ := view.Get(5)
	require.Len(t, feeling.Likes, 1)
	assert.Equal(t, "kim", feeling.Likes[0].UserID)
	assert.Equal(t, models.CHILD, feeling.Likes[0].UserRole)
}

func TestNoDuplicateConfirmedIDs(t *testing.T) {
	view := NewFeedView("ann", models.PARENT)
	view.Reload([]models.FeedFeeling{confirmedFeeling(5, "hello", "ben", models.CHILD)})

	view.MergeBroadcastFeeling(confirmedFeeling(5, "hello edited", "ben", models.CHILD))

	feed := view.Feelings()
	require.Len(t, feed, 1)
	assert.Equal(t, "hello edited", feed[0].Text)
}
