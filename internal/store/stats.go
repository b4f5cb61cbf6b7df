package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath          string      `json:"db_path"`
	DBSizeBytes     int64       `json:"db_size_bytes"`
	TotalSnapshots  int         `json:"total_snapshots"`
	ActiveSnapshots int         `json:"active_snapshots"`
	DynamicRules    int         `json:"dynamic_rules"`
	StaticOverrides int         `json:"static_overrides"`
	DisabledRules   int         `json:"disabled_rules"`
	Chats           []ChatStats `json:"chats"`
}

// ChatStats holds per-chat counts.
type ChatStats struct {
	ChatID   string `json:"chat_id"`
	Versions int    `json:"versions"`
	Messages int    `json:"messages"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	// DB file size
	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&st.TotalSnapshots)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots WHERE deleted_at IS NULL`).Scan(&st.ActiveSnapshots)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rules WHERE is_static = 0`).Scan(&st.DynamicRules)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rules WHERE is_static = 1`).Scan(&st.StaticOverrides)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rules WHERE disabled = 1`).Scan(&st.DisabledRules)

	rows, err := s.db.QueryContext(ctx, `
		SELECT chat_id, COUNT(*) AS versions, MAX(messages) AS messages
		FROM snapshots WHERE deleted_at IS NULL
		GROUP BY chat_id ORDER BY versions DESC, chat_id`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var c ChatStats
		rows.Scan(&c.ChatID, &c.Versions, &c.Messages)
		st.Chats = append(st.Chats, c)
	}

	return st, nil
}
