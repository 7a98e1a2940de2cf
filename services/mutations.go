package services

import (
	"fmt"
	"strings"
	"time"

	"feelings/models"
)

// Pure mutation logic. Each function is deterministic and does no I/O, so
// both the websocket path and the REST path run exactly the same rules.

// NewFeeling builds a feeling ready for insertion.
func NewFeeling(text, author string, role models.Role) (*models.Feeling, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is required", ErrValidation)
	}
	if author == "" {
		return nil, fmt.Errorf("%w: author is required", ErrValidation)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: authorRole must be child or parent", ErrValidation)
	}
	now := time.Now()
	return &models.Feeling{
		Text:       text,
		Author:     author,
		AuthorRole: role,
		Likes:      []models.Like{},
		Comments:   []models.Comment{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// ToggleLike flips the like state of userID on the feeling in place.
// The match key is the liker identity only: a repeat call with a different
// role still toggles the same entry. Returns whether a like was added.
func ToggleLike(feeling *models.Feeling, userID string, role models.Role) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("%w: userId is required", ErrValidation)
	}
	if !role.Valid() {
		return false, fmt.Errorf("%w: userRole must be child or parent", ErrValidation)
	}
	if userID == feeling.Author {
		return false, fmt.Errorf("%w: cannot like own feeling", ErrSelfAction)
	}

	for i, like := range feeling.Likes {
		if like.UserID == userID {
			feeling.Likes = append(feeling.Likes[:i], feeling.Likes[i+1:]...)
			return false, nil
		}
	}

	feeling.Likes = append(feeling.Likes, models.Like{
		FeelingID: feeling.ID,
		UserID:    userID,
		UserRole:  role,
		CreatedAt: time.Now(),
	})
	return true, nil
}

// AddComment appends a comment to the feeling in place.
func AddComment(feeling *models.Feeling, text, author string, role models.Role) (*models.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is required", ErrValidation)
	}
	if author == "" {
		return nil, fmt.Errorf("%w: author is required", ErrValidation)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: authorRole must be child or parent", ErrValidation)
	}
	if author == feeling.Author {
		return nil, fmt.Errorf("%w: cannot comment on own feeling", ErrSelfAction)
	}

	comment := models.Comment{
		FeelingID:  feeling.ID,
		Text:       text,
		Author:     author,
		AuthorRole: role,
		CreatedAt:  time.Now(),
	}
	feeling.Comments = append(feeling.Comments, comment)
	return &feeling.Comments[len(feeling.Comments)-1], nil
}
