package model

import "time"

type ActivityRecord struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	EntryID  string    `gorm:"size:36;not null;uniqueIndex" json:"entry_id"`
	UserID   uint      `gorm:"not null;index" json:"user_id"`
	Kind     string    `gorm:"size:16;not null;index" json:"kind"`
	Message  string    `gorm:"type:text;not null" json:"message"`
	Details  string    `gorm:"type:text" json:"details"`
	LoggedAt time.Time `gorm:"not null;index" json:"logged_at"`
}

func NewActivityRecord(userID uint, entry LogEntry) ActivityRecord {
	return ActivityRecord{
		EntryID:  entry.ID,
		UserID:   userID,
		Kind:     string(entry.Kind),
		Message:  entry.Message,
		Details:  entry.Details,
		LoggedAt: entry.Timestamp,
	}
}

func (r ActivityRecord) Entry() LogEntry {
	return LogEntry{
		ID:        r.EntryID,
		Timestamp: r.LoggedAt,
		Kind:      LogKind(r.Kind),
		Message:   r.Message,
		Details:   r.Details,
	}
}
