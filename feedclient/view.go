package feedclient

import (
	"sync"
	"time"

	"feelings/models"
)

// Entry lifecycle states. A provisional entry becomes confirmed when its
// correlation token (or content match) meets a server result; it may instead
// be discarded when its request fails and no broadcast claims it.
type EntryState int

const (
	Provisional EntryState = iota
	Confirmed
)

// contentMatchWindow bounds the content-based fallback matching of a
// provisional entry against a broadcast: same author, role and text within
// this window count as the same logical post.
const contentMatchWindow = 10 * time.Second

// commentMatchWindow bounds duplicate-comment detection on merge.
const commentMatchWindow = 10 * time.Second

type Entry struct {
	State   EntryState
	Token   string
	Feeling models.FeedFeeling
}

// FeedView is the client's local copy of the feed: a reducer over local
// actions, request confirmations/failures and server broadcasts. It keeps
// two invariants: no two entries ever share a confirmed id, and a
// provisional entry is replaced, never duplicated, by its confirmation.
type FeedView struct {
	mu       sync.Mutex
	entries  []Entry
	identity string
	role     models.Role
}

func NewFeedView(identity string, role models.Role) *FeedView {
	return &FeedView{
		identity: identity,
		role:     role,
	}
}

// Reload replaces the whole view with a server snapshot. Used on initial
// load and after reconnect: stale optimistic state is not to be trusted.
func (v *FeedView) Reload(feed []models.FeedFeeling) {
	v.mu.Lock()
	defer v.mu.Unlock()
	entries := make([]Entry, 0, len(feed))
	for _, feeling := range feed {
		entries = append(entries, Entry{State: Confirmed, Feeling: feeling})
	}
	v.entries = entries
}

// ApplyLocalPost inserts a provisional entry at the head of the view.
func (v *FeedView) ApplyLocalPost(token, text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	entry := Entry{
		State: Provisional,
		Token: token,
		Feeling: models.FeedFeeling{
			Text:        text,
			Author:      v.identity,
			AuthorRole:  v.role,
			ClientToken: token,
			Likes:       []models.Like{},
			Comments:    []models.Comment{},
			CreatedAt:   time.Now(),
		},
	}
	v.entries = append([]Entry{entry}, v.entries...)
}

// ConfirmPost resolves a provisional entry with the request/response result.
// If a broadcast already confirmed the same feeling, the provisional entry
// is dropped instead of inserting a second confirmed one.
func (v *FeedView) ConfirmPost(token string, confirmed models.FeedFeeling) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.findConfirmedLocked(confirmed.ID) >= 0 {
		v.removeProvisionalLocked(token)
		return
	}

	for i := range v.entries {
		if v.entries[i].State == Provisional && v.entries[i].Token == token {
			v.entries[i] = Entry{State: Confirmed, Feeling: confirmed}
			return
		}
	}

	// Provisional already gone (discarded or claimed by a matching
	// broadcast); the confirmation is still authoritative.
	v.entries = append([]Entry{{State: Confirmed, Feeling: confirmed}}, v.entries...)
}

// DiscardPost removes a provisional entry after its request failed. Returns
// whether anything was removed (false when a broadcast confirmed it first).
func (v *FeedView) DiscardPost(token string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.removeProvisionalLocked(token)
}

// MergeBroadcastFeeling folds a receiveFeeling broadcast into the view.
// Token match takes precedence; content matching within the time window is
// the fallback for peers that post without a token. Duplicate delivery of
// an already-confirmed feeling updates the entry in place.
func (v *FeedView) MergeBroadcastFeeling(feeling models.FeedFeeling) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if i := v.findConfirmedLocked(feeling.ID); i >= 0 {
		v.entries[i].Feeling = feeling
		return
	}

	if feeling.ClientToken != "" {
		for i := range v.entries {
			if v.entries[i].State == Provisional && v.entries[i].Token == feeling.ClientToken {
				v.entries[i] = Entry{State: Confirmed, Feeling: feeling}
				return
			}
		}
	}

	for i := range v.entries {
		if v.entries[i].State != Provisional {
			continue
		}
		if v.contentMatchesLocked(v.entries[i].Feeling, feeling) {
			v.entries[i] = Entry{State: Confirmed, Feeling: feeling}
			return
		}
	}

	v.entries = append([]Entry{{State: Confirmed, Feeling: feeling}}, v.entries...)
}

// ApplyLocalToggle flips the caller's like optimistically. Returns the new
// liked state and false when the feeling is unknown.
func (v *FeedView) ApplyLocalToggle(feelingID int64) (bool, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	i := v.findConfirmedLocked(feelingID)
	if i < 0 {
		return false, false
	}
	return v.toggleOwnLikeLocked(i), true
}

// RollbackToggle inverts a failed optimistic toggle.
func (v *FeedView) RollbackToggle(feelingID int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	i := v.findConfirmedLocked(feelingID)
	if i < 0 {
		return
	}
	v.toggleOwnLikeLocked(i)
}

func (v *FeedView) toggleOwnLikeLocked(i int) bool {
	feeling := &v.entries[i].Feeling
	for j, like := range feeling.Likes {
		if like.UserID == v.identity {
			feeling.Likes = append(feeling.Likes[:j], feeling.Likes[j+1:]...)
			feeling.LikesCount = len(feeling.Likes)
			return false
		}
	}
	feeling.Likes = append(feeling.Likes, models.Like{
		UserID:    v.identity,
		UserRole:  v.role,
		CreatedAt: time.Now(),
	})
	feeling.LikesCount = len(feeling.Likes)
	return true
}

// MergeLikeUpdate reconciles the authoritative like state from a broadcast
// or a request confirmation. Idempotent: the per-liker uniqueness makes a
// repeat delivery a no-op.
func (v *FeedView) MergeLikeUpdate(update models.LikeUpdatedPayload) {
	v.mu.Lock()
	defer v.mu.Unlock()
	i := v.findConfirmedLocked(update.FeelingID)
	if i < 0 {
		return
	}
	feeling := &v.entries[i].Feeling

	present := -1
	for j, like := range feeling.Likes {
		if like.UserID == update.UserID {
			present = j
			break
		}
	}
	if update.WasLiked && present < 0 {
		feeling.Likes = append(feeling.Likes, models.Like{
			UserID:    update.UserID,
			UserRole:  update.UserRole,
			CreatedAt: time.Now(),
		})
	}
	if !update.WasLiked && present >= 0 {
		feeling.Likes = append(feeling.Likes[:present], feeling.Likes[present+1:]...)
	}
	feeling.LikesCount = update.LikesCount
}

// ApplyLocalComment appends an optimistic comment. Returns false when the
// feeling is unknown.
func (v *FeedView) ApplyLocalComment(feelingID int64, text string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	i := v.findConfirmedLocked(feelingID)
	if i < 0 {
		return false
	}
	feeling := &v.entries[i].Feeling
	feeling.Comments = append(feeling.Comments, models.Comment{
		FeelingID:  feelingID,
		Text:       text,
		Author:     v.identity,
		AuthorRole: v.role,
		CreatedAt:  time.Now(),
	})
	return true
}

// RollbackComment removes the optimistic copy of a failed comment.
func (v *FeedView) RollbackComment(feelingID int64, text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	i := v.findConfirmedLocked(feelingID)
	if i < 0 {
		return
	}
	feeling := &v.entries[i].Feeling
	for j := len(feeling.Comments) - 1; j >= 0; j-- {
		c := feeling.Comments[j]
		if c.Author == v.identity && c.Text == text {
			feeling.Comments = append(feeling.Comments[:j], feeling.Comments[j+1:]...)
			return
		}
	}
}

// MergeCommentAdded folds a commentAdded broadcast or confirmation into the
// view. A comment already present under the (author, text, near timestamp)
// identity is updated, not appended, so duplicate delivery is idempotent.
func (v *FeedView) MergeCommentAdded(added models.CommentAddedPayload) {
	v.mu.Lock()
	defer v.mu.Unlock()
	i := v.findConfirmedLocked(added.FeelingID)
	if i < 0 {
		return
	}
	feeling := &v.entries[i].Feeling
	for j, c := range feeling.Comments {
		if c.Author == added.Comment.Author && c.Text == added.Comment.Text &&
			within(c.CreatedAt, added.Comment.CreatedAt, commentMatchWindow) {
			feeling.Comments[j] = added.Comment
			return
		}
	}
	feeling.Comments = append(feeling.Comments, added.Comment)
}

// IsProvisional reports whether the token still names a provisional entry.
func (v *FeedView) IsProvisional(token string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, entry := range v.entries {
		if entry.State == Provisional && entry.Token == token {
			return true
		}
	}
	return false
}

// Feelings returns a snapshot of the view in display order.
func (v *FeedView) Feelings() []models.FeedFeeling {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]models.FeedFeeling, 0, len(v.entries))
	for _, entry := range v.entries {
		out = append(out, entry.Feeling)
	}
	return out
}

// Get returns the entry for a confirmed feeling id.
func (v *FeedView) Get(feelingID int64) (models.FeedFeeling, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	i := v.findConfirmedLocked(feelingID)
	if i < 0 {
		return models.FeedFeeling{}, false
	}
	return v.entries[i].Feeling, true
}

func (v *FeedView) findConfirmedLocked(id int64) int {
	for i := range v.entries {
		if v.entries[i].State == Confirmed && v.entries[i].Feeling.ID == id {
			return i
		}
	}
	return -1
}

func (v *FeedView) removeProvisionalLocked(token string) bool {
	for i := range v.entries {
		if v.entries[i].State == Provisional && v.entries[i].Token == token {
			v.entries = append(v.entries[:i], v.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (v *FeedView) contentMatchesLocked(local, remote models.FeedFeeling) bool {
	return local.Author == remote.Author &&
		local.AuthorRole == remote.AuthorRole &&
		local.Text == remote.Text &&
		within(local.CreatedAt, remote.CreatedAt, contentMatchWindow)
}

func within(a, b time.Time, window time.Duration) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= window
}
