package repository

import (
	"fmt"
	"slices"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"issuecompass/internal/model"
)

type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create inserts record; a replayed entry id is ignored.
func (r *ActivityRepository) Create(record *model.ActivityRecord) error {
	if err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(record).Error; err != nil {
		return fmt.Errorf("create activity record failed: %w", err)
	}
	return nil
}

// ListByUserID returns the latest limit records, oldest first.
func (r *ActivityRepository) ListByUserID(userID uint, limit int) ([]model.ActivityRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}

	var records []model.ActivityRecord
	if err := r.db.Where("user_id = ?", userID).Order("logged_at DESC, id DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list activity records failed: %w", err)
	}
	slices.Reverse(records)
	return records, nil
}
