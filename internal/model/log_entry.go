package model

import "time"

type LogKind string

const (
	LogInfo    LogKind = "info"
	LogWarning LogKind = "warning"
	LogError   LogKind = "error"
	LogSystem  LogKind = "system"
)

type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      LogKind   `json:"kind"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
}
