package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// HistoryRecord persists the latest version of a ResultDocument per account.
type HistoryRecord struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	DocumentID    string    `gorm:"size:36;not null;uniqueIndex" json:"document_id"`
	UserID        uint      `gorm:"not null;index" json:"user_id"`
	Query         string    `gorm:"type:text;not null" json:"query"`
	Version       int       `gorm:"not null" json:"version"`
	ItemCount     int       `gorm:"not null" json:"item_count"`
	DetailedCount int       `gorm:"not null" json:"detailed_count"`
	Snapshot      string    `gorm:"type:longtext;not null" json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func NewHistoryRecord(userID uint, doc ResultDocument) (HistoryRecord, error) {
	snapshot, err := json.Marshal(doc)
	if err != nil {
		return HistoryRecord{}, fmt.Errorf("marshal history snapshot failed: %w", err)
	}
	return HistoryRecord{
		DocumentID:    doc.ID,
		UserID:        userID,
		Query:         doc.Query,
		Version:       doc.Version,
		ItemCount:     len(doc.Items),
		DetailedCount: doc.DetailedCount(),
		Snapshot:      string(snapshot),
	}, nil
}

func (r HistoryRecord) Document() (ResultDocument, error) {
	var doc ResultDocument
	if err := json.Unmarshal([]byte(r.Snapshot), &doc); err != nil {
		return ResultDocument{}, fmt.Errorf("decode history snapshot %s failed: %w", r.DocumentID, err)
	}
	return doc, nil
}
