package analyzer

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rcliao/prosepolisher/internal/model"
)

// SnapshotVersion is the current Serialize format.
const SnapshotVersion = 1

// Snapshot is the persisted form of a session.
type Snapshot struct {
	Version     int                `json:"version"`
	Messages    int                `json:"messages"`
	Processed   []int              `json:"processed"`
	Entries     []model.NgramEntry `json:"entries"`
	Leaderboard *model.Leaderboard `json:"leaderboard,omitempty"`
}

// Snapshot returns the current session state.
func (a *Analyzer) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	processed := make([]int, 0, len(a.processed))
	for i := range a.processed {
		processed = append(processed, i)
	}
	sort.Ints(processed)

	snap := Snapshot{
		Version:   SnapshotVersion,
		Messages:  a.messages,
		Processed: processed,
		Entries:   a.tracker.Entries(),
	}
	if a.leaderboard != nil {
		lb := a.leaderboard.Clone()
		snap.Leaderboard = &lb
	}
	return snap
}

// Serialize encodes the session as versioned JSON.
func (a *Analyzer) Serialize() ([]byte, error) {
	data, err := json.Marshal(a.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("serialize analyzer: %w", err)
	}
	return data, nil
}

// Deserialize replaces the session with a Serialize blob. On error the
// current state is kept.
func (a *Analyzer) Deserialize(blob []byte) error {
	var snap Snapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return fmt.Errorf("deserialize analyzer: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return fmt.Errorf("deserialize analyzer: unsupported version %d", snap.Version)
	}
	a.Restore(snap)
	return nil
}

// Restore replaces the session with snap.
func (a *Analyzer) Restore(snap Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.tracker.Restore(snap.Entries)
	a.processed = make(map[int]struct{}, len(snap.Processed))
	for _, i := range snap.Processed {
		a.processed[i] = struct{}{}
	}
	a.messages = snap.Messages
	a.leaderboard = nil
	if snap.Leaderboard != nil {
		lb := snap.Leaderboard.Clone()
		a.leaderboard = &lb
	}
	a.state = Tracking
	if a.messages == 0 && len(snap.Entries) == 0 {
		a.state = Idle
	}
}
