package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"feelings/db"
	"feelings/models"

	"gorm.io/gorm"
)

// FeelingStore is the durable collection of feelings. Callers serialize
// Get->mutate->Replace per feeling id (see FeedService locks); the store
// itself assumes no cross-operation transactions.
type FeelingStore struct{}

func NewFeelingStore() *FeelingStore {
	return &FeelingStore{}
}

func (s *FeelingStore) Insert(ctx context.Context, feeling *models.Feeling) error {
	if err := db.GetWriteDB(ctx).Create(feeling).Error; err != nil {
		return fmt.Errorf("%w: failed to insert feeling: %v", ErrStore, err)
	}
	return nil
}

func (s *FeelingStore) Get(ctx context.Context, id int64) (*models.Feeling, error) {
	var feeling models.Feeling
	err := db.GetReadOnlyDB(ctx).
		Preload("Likes", func(tx *gorm.DB) *gorm.DB { return tx.Order("likes.id ASC") }).
		Preload("Comments", func(tx *gorm.DB) *gorm.DB { return tx.Order("comments.id ASC") }).
		First(&feeling, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: feeling %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: failed to get feeling %d: %v", ErrStore, id, err)
	}
	return &feeling, nil
}

// FindByToken looks a feeling up by its client correlation token. Used to
// make duplicate delivery of the same post over the two gateway paths a
// no-op instead of a second row.
func (s *FeelingStore) FindByToken(ctx context.Context, token string) (*models.Feeling, error) {
	var feeling models.Feeling
	err := db.GetWriteDB(ctx).
		Preload("Likes", func(tx *gorm.DB) *gorm.DB { return tx.Order("likes.id ASC") }).
		Preload("Comments", func(tx *gorm.DB) *gorm.DB { return tx.Order("comments.id ASC") }).
		Where("client_token = ?", token).
		First(&feeling).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: token %s", ErrNotFound, token)
		}
		return nil, fmt.Errorf("%w: failed to look up token: %v", ErrStore, err)
	}
	return &feeling, nil
}

// GetFromMaster reads through the write connection. Mutations use it so the
// read->apply->replace cycle never starts from a stale replica row.
func (s *FeelingStore) GetFromMaster(ctx context.Context, id int64) (*models.Feeling, error) {
	var feeling models.Feeling
	err := db.GetWriteDB(ctx).
		Preload("Likes", func(tx *gorm.DB) *gorm.DB { return tx.Order("likes.id ASC") }).
		Preload("Comments", func(tx *gorm.DB) *gorm.DB { return tx.Order("comments.id ASC") }).
		First(&feeling, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: feeling %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: failed to get feeling %d: %v", ErrStore, id, err)
	}
	return &feeling, nil
}

// ListAll returns every feeling, newest first.
func (s *FeelingStore) ListAll(ctx context.Context) ([]models.Feeling, error) {
	var feelings []models.Feeling
	err := db.GetReadOnlyDB(ctx).
		Preload("Likes", func(tx *gorm.DB) *gorm.DB { return tx.Order("likes.id ASC") }).
		Preload("Comments", func(tx *gorm.DB) *gorm.DB { return tx.Order("comments.id ASC") }).
		Order("created_at DESC, id DESC").
		Find(&feelings).Error
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list feelings: %v", ErrStore, err)
	}
	return feelings, nil
}

// Replace writes back a mutated feeling: the like list is rewritten to match
// the in-memory state and new comments are appended.
func (s *FeelingStore) Replace(ctx context.Context, feeling *models.Feeling) error {
	err := db.GetWriteDB(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Feeling{}).
			Where("id = ?", feeling.ID).
			Update("updated_at", time.Now())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if err := tx.Where("feeling_id = ?", feeling.ID).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		for i := range feeling.Likes {
			feeling.Likes[i].FeelingID = feeling.ID
			if err := tx.Create(&feeling.Likes[i]).Error; err != nil {
				return err
			}
		}

		for i := range feeling.Comments {
			if feeling.Comments[i].ID != 0 {
				continue
			}
			feeling.Comments[i].FeelingID = feeling.ID
			if err := tx.Create(&feeling.Comments[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: feeling %d", ErrNotFound, feeling.ID)
		}
		return fmt.Errorf("%w: failed to replace feeling %d: %v", ErrStore, feeling.ID, err)
	}
	return nil
}
