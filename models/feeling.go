package models

import "time"

type Role string

const (
	CHILD  Role = "child"
	PARENT Role = "parent"
)

func (r Role) Valid() bool {
	return r == CHILD || r == PARENT
}

// Feeling - a single feed entry with embedded likes and comments
type Feeling struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Text        string    `gorm:"type:text" json:"text"`
	Author      string    `gorm:"size:255;index" json:"author"`
	AuthorRole  Role      `gorm:"size:16" json:"authorRole"`
	ClientToken string    `gorm:"size:64" json:"clientToken,omitempty"`
	Likes       []Like    `gorm:"foreignKey:FeelingID" json:"likes"`
	Comments    []Comment `gorm:"foreignKey:FeelingID" json:"comments"`
	CreatedAt   time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Feeling) TableName() string {
	return "feelings"
}

// LikesCount is derived from the like list, never stored separately.
func (f *Feeling) LikesCount() int {
	return len(f.Likes)
}

func (f *Feeling) IsLikedBy(userID string) bool {
	for _, like := range f.Likes {
		if like.UserID == userID {
			return true
		}
	}
	return false
}

// Like - per-identity endorsement of a feeling, toggled on repeat action.
// The match key for toggling is UserID only.
type Like struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	FeelingID int64     `gorm:"index" json:"-"`
	UserID    string    `gorm:"size:255;index" json:"userId"`
	UserRole  Role      `gorm:"size:16" json:"userRole"`
	CreatedAt time.Time `json:"timestamp"`
}

func (Like) TableName() string {
	return "likes"
}

// Comment - appended text reply, never edited or removed.
type Comment struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	FeelingID  int64     `gorm:"index" json:"-"`
	Text       string    `gorm:"type:text" json:"text"`
	Author     string    `gorm:"size:255" json:"author"`
	AuthorRole Role      `gorm:"size:16" json:"authorRole"`
	CreatedAt  time.Time `json:"timestamp"`
}

func (Comment) TableName() string {
	return "comments"
}

// FeedFeeling - wire projection of a feeling with the derived likes count
type FeedFeeling struct {
	ID          int64     `json:"id"`
	Text        string    `json:"text"`
	Author      string    `json:"author"`
	AuthorRole  Role      `json:"authorRole"`
	ClientToken string    `json:"clientToken,omitempty"`
	Likes       []Like    `json:"likes"`
	Comments    []Comment `json:"comments"`
	LikesCount  int       `json:"likesCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (f *Feeling) ToFeed() FeedFeeling {
	likes := f.Likes
	if likes == nil {
		likes = []Like{}
	}
	comments := f.Comments
	if comments == nil {
		comments = []Comment{}
	}
	return FeedFeeling{
		ID:          f.ID,
		Text:        f.Text,
		Author:      f.Author,
		AuthorRole:  f.AuthorRole,
		ClientToken: f.ClientToken,
		Likes:       likes,
		Comments:    comments,
		LikesCount:  len(f.Likes),
		CreatedAt:   f.CreatedAt,
	}
}

// FeedResponse - API response for the full feed
type FeedResponse struct {
	Feelings []FeedFeeling `json:"feelings"`
}
