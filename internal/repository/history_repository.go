package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"issuecompass/internal/model"
)

type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Upsert stores record unless a row with the same document id already holds
// the same or a newer version. Queue redelivery can replay old versions.
func (r *HistoryRepository) Upsert(record *model.HistoryRecord) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing model.HistoryRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("document_id = ?", record.DocumentID).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(record).Error
		}
		if err != nil {
			return err
		}
		if existing.UserID != record.UserID || existing.Version >= record.Version {
			return nil
		}
		return tx.Model(&existing).Updates(map[string]any{
			"query":          record.Query,
			"version":        record.Version,
			"item_count":     record.ItemCount,
			"detailed_count": record.DetailedCount,
			"snapshot":       record.Snapshot,
		}).Error
	})
	if err != nil {
		return fmt.Errorf("upsert history record failed: %w", err)
	}
	return nil
}

// ListByUserID returns the most recent records of a user, oldest first.
func (r *HistoryRepository) ListByUserID(userID uint, limit int) ([]model.HistoryRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	var records []model.HistoryRecord
	if err := r.db.Where("user_id = ?", userID).Order("id DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list history records failed: %w", err)
	}
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}
