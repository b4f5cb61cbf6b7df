package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rcliao/prosepolisher/internal/analyzer"
	"github.com/rcliao/prosepolisher/internal/config"
	"github.com/rcliao/prosepolisher/internal/logging"
	"github.com/rcliao/prosepolisher/internal/model"
	"github.com/rcliao/prosepolisher/internal/store"
)

func newAnalyzer(cfg *config.Config, logs *logging.Factory, extra ...analyzer.Option) *analyzer.Analyzer {
	opts := []analyzer.Option{
		analyzer.WithLogger(logs.ForComponent("analyzer")),
	}
	if cfg.Completions.MaxPhrases > 0 {
		opts = append(opts, analyzer.WithMaxPhrases(cfg.Completions.MaxPhrases))
	}
	if cfg.Completions.TimeoutSec > 0 {
		opts = append(opts, analyzer.WithGenerateTimeout(time.Duration(cfg.Completions.TimeoutSec)*time.Second))
	}
	return analyzer.New(&cfg.Settings, append(opts, extra...)...)
}

// loadSession restores the stored snapshot for chatID into an. A missing
// snapshot leaves an untouched and returns false.
func loadSession(ctx context.Context, s store.Store, an *analyzer.Analyzer, chatID string, version int) (bool, error) {
	recs, err := s.GetSnapshot(ctx, store.GetSnapshotParams{ChatID: chatID, Version: version})
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(recs) == 0 {
		return false, nil
	}
	if err := an.Deserialize(recs[0].Data); err != nil {
		return false, err
	}
	return true, nil
}

func saveSession(ctx context.Context, s store.Store, an *analyzer.Analyzer, chatID string) (*model.SnapshotRecord, error) {
	data, err := an.Serialize()
	if err != nil {
		return nil, err
	}
	return s.SaveSnapshot(ctx, store.SaveSnapshotParams{
		ChatID:   chatID,
		Messages: an.Messages(),
		Data:     data,
	})
}

// finalLeaderboard merges once more after a batch run so the tail past the
// last cycle is counted. Sessions shorter than one merge cycle keep the
// unmerged fallback view.
func finalLeaderboard(an *analyzer.Analyzer) model.Leaderboard {
	if an.Messages() < an.Settings().LeaderboardUpdateCycle {
		return an.Leaderboard()
	}
	return an.RefreshLeaderboard()
}

func topRows(lb model.Leaderboard, top int) []model.LeaderboardRow {
	rows := lb.Rows()
	if top > 0 && top < len(rows) {
		rows = rows[:top]
	}
	return rows
}

func printLeaderboard(lb model.Leaderboard, top int) {
	title := "leaderboard"
	if lb.Fallback {
		title += " " + warnColor("(unmerged)")
	}
	fmt.Printf("%s after %d messages\n", headColor(title), lb.ComputedAt)
	rows := topRows(lb, top)
	if len(rows) == 0 {
		fmt.Println(mutedColor("  no repeated phrases yet"))
		return
	}
	for i, r := range rows {
		tag := "   "
		if r.Merged {
			tag = okColor("[m]")
		}
		fmt.Printf("%3d. %s %6.1f  %s\n", i+1, tag, r.Score, r.Phrase)
	}
}

func printRules(list []model.Rule) {
	for _, r := range list {
		state := okColor("on ")
		if r.Disabled {
			state = warnColor("off")
		}
		kind := "dynamic"
		if r.IsStatic {
			kind = "static"
		}
		fmt.Printf("%s %-28s %s  %s\n", state, r.ID, r.ScriptName, mutedColor(kind))
	}
}
