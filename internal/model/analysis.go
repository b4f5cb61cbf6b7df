package model

import (
	"sort"
)

// NgramEntry is a tracked candidate repeated phrase.
type NgramEntry struct {
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
	Count    int     `json:"count"`
	LastSeen int     `json:"last_seen"`
}

// Leaderboard is a point-in-time view of repeated phrases. A phrase appears
// in at most one of Merged and Remaining.
type Leaderboard struct {
	Merged     map[string]float64 `json:"merged"`
	Remaining  map[string]float64 `json:"remaining"`
	ComputedAt int                `json:"computed_at"`
	Fallback   bool               `json:"fallback,omitempty"`
}

// LeaderboardRow is one ranked leaderboard line.
type LeaderboardRow struct {
	Phrase string  `json:"phrase"`
	Score  float64 `json:"score"`
	Merged bool    `json:"merged"`
}

// NewLeaderboard returns an empty leaderboard.
func NewLeaderboard() Leaderboard {
	return Leaderboard{
		Merged:    map[string]float64{},
		Remaining: map[string]float64{},
	}
}

// Clone returns a deep copy so callers can never mutate a published snapshot.
func (l Leaderboard) Clone() Leaderboard {
	c := Leaderboard{
		Merged:     make(map[string]float64, len(l.Merged)),
		Remaining:  make(map[string]float64, len(l.Remaining)),
		ComputedAt: l.ComputedAt,
		Fallback:   l.Fallback,
	}
	for k, v := range l.Merged {
		c.Merged[k] = v
	}
	for k, v := range l.Remaining {
		c.Remaining[k] = v
	}
	return c
}

// Empty reports whether the leaderboard holds no phrases.
func (l Leaderboard) Empty() bool {
	return len(l.Merged) == 0 && len(l.Remaining) == 0
}

// Score looks a phrase up in either tier.
func (l Leaderboard) Score(phrase string) (float64, bool) {
	if s, ok := l.Merged[phrase]; ok {
		return s, true
	}
	s, ok := l.Remaining[phrase]
	return s, ok
}

// Rows returns all phrases ranked by score (desc), merged before remaining on
// equal score, then by phrase.
func (l Leaderboard) Rows() []LeaderboardRow {
	rows := make([]LeaderboardRow, 0, len(l.Merged)+len(l.Remaining))
	for p, s := range l.Merged {
		rows = append(rows, LeaderboardRow{Phrase: p, Score: s, Merged: true})
	}
	for p, s := range l.Remaining {
		rows = append(rows, LeaderboardRow{Phrase: p, Score: s})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		if rows[i].Merged != rows[j].Merged {
			return rows[i].Merged
		}
		return rows[i].Phrase < rows[j].Phrase
	})
	return rows
}

// SortEntries orders entries by score desc, then text.
func SortEntries(entries []NgramEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Text < entries[j].Text
	})
}
