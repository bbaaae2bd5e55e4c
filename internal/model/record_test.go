package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryRecordSnapshot(t *testing.T) {
	doc := ResultDocument{
		ID:      "doc-1",
		Version: 4,
		Query:   "rent",
		Items: []SuggestionItem{
			{ID: "a", Title: "A", Details: &ItemDetails{Analysis: "x", Steps: []string{"s"}, Risks: "r"}},
			{ID: "b", Title: "B"},
		},
	}

	record, err := NewHistoryRecord(7, doc)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", record.DocumentID)
	assert.Equal(t, uint(7), record.UserID)
	assert.Equal(t, 2, record.ItemCount)
	assert.Equal(t, 1, record.DetailedCount)

	decoded, err := record.Document()
	require.NoError(t, err)
	assert.Equal(t, doc.Items, decoded.Items)
	assert.Equal(t, 4, decoded.Version)
}

func TestHistoryRecordBadSnapshot(t *testing.T) {
	_, err := HistoryRecord{DocumentID: "x", Snapshot: "{"}.Document()
	assert.Error(t, err)
}

func TestActivityRecordEntry(t *testing.T) {
	entry := LogEntry{ID: "e", Timestamp: time.Unix(10, 0).UTC(), Kind: LogWarning, Message: "m", Details: "d"}
	assert.Equal(t, entry, NewActivityRecord(3, entry).Entry())
}
