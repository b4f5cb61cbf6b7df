package model

import "time"

// Message is one chat message as delivered by the host.
type Message struct {
	Index    int        `json:"index"`
	Name     string     `json:"name"`
	IsUser   bool       `json:"is_user"`
	IsSystem bool       `json:"is_system"`
	Text     string     `json:"text"`
	SentAt   *time.Time `json:"sent_at,omitempty"`
}

// Analyzable reports whether the message is AI-authored prose that should be
// fed to the analyzer.
func (m Message) Analyzable() bool {
	return !m.IsUser && !m.IsSystem && m.Text != ""
}
