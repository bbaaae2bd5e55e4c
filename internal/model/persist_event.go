package model

// HistoryEvent and ActivityEvent are the queue payloads that carry workspace
// changes to the persistence worker.
type HistoryEvent struct {
	UserID   uint           `json:"user_id"`
	Document ResultDocument `json:"document"`
}

type ActivityEvent struct {
	UserID uint     `json:"user_id"`
	Entry  LogEntry `json:"entry"`
}
