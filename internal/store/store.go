// Package store persists analyzer snapshots and rules in SQLite.
package store

import (
	"context"
	"errors"

	"github.com/rcliao/prosepolisher/internal/model"
)

// ErrNotFound is returned when no live snapshot matches.
var ErrNotFound = errors.New("not found")

// SaveSnapshotParams holds parameters for storing a snapshot.
type SaveSnapshotParams struct {
	ChatID   string
	Messages int
	Data     []byte
}

// GetSnapshotParams holds parameters for retrieving snapshots.
type GetSnapshotParams struct {
	ChatID  string
	History bool
	Version int // 0 means latest
}

// ListChatsParams holds parameters for listing chats.
type ListChatsParams struct {
	Limit    int
	WithData bool
}

// RmSnapshotParams holds parameters for deleting snapshots.
type RmSnapshotParams struct {
	ChatID      string
	AllVersions bool
	Hard        bool
}

// Store defines the persistence interface.
type Store interface {
	// SaveSnapshot stores a new version of a chat's snapshot.
	SaveSnapshot(ctx context.Context, p SaveSnapshotParams) (*model.SnapshotRecord, error)

	// GetSnapshot returns the latest (or a specific) version, or every
	// version newest first with History.
	GetSnapshot(ctx context.Context, p GetSnapshotParams) ([]model.SnapshotRecord, error)

	// ListChats returns the latest snapshot of each chat, newest first.
	ListChats(ctx context.Context, p ListChatsParams) ([]model.SnapshotRecord, error)

	// RmSnapshot soft-deletes (or hard-deletes) snapshots.
	RmSnapshot(ctx context.Context, p RmSnapshotParams) error

	// LoadRules returns every saved rule, static overrides first.
	LoadRules(ctx context.Context) ([]model.Rule, error)

	// SaveRules replaces the saved rule set in one transaction.
	SaveRules(ctx context.Context, rules []model.Rule) error

	// Close closes the store.
	Close() error
}
