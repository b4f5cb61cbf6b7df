package model

import (
	"encoding/json"
	"time"
)

// SnapshotRecord is one stored version of a chat's analyzer state.
type SnapshotRecord struct {
	ID         string          `json:"id"`
	ChatID     string          `json:"chat_id"`
	Version    int             `json:"version"`
	Supersedes string          `json:"supersedes,omitempty"`
	Messages   int             `json:"messages"`
	Data       json.RawMessage `json:"data,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	DeletedAt  *time.Time      `json:"deleted_at,omitempty"`
}
