package analyzer

import (
	"context"
	"fmt"

	"github.com/rcliao/prosepolisher/internal/generate"
	"github.com/rcliao/prosepolisher/internal/model"
	"github.com/rcliao/prosepolisher/internal/rules"
)

// GenerateRules asks gen for rules targeting the current leaderboard and
// adds them to store. Either every returned rule is added or none is.
// The active rule set is read once, before the call.
func (a *Analyzer) GenerateRules(ctx context.Context, gen generate.Generator, store *rules.Store) ([]model.Rule, error) {
	if gen == nil || store == nil {
		a.logger.Warn("rule generation unavailable", "generator", gen != nil, "store", store != nil)
		return nil, fmt.Errorf("generate rules: %w", ErrMissingDependency)
	}

	phrases := a.CandidatePhrases(a.maxPhrases)
	if len(phrases) == 0 {
		a.logger.Info("no repeated phrases to generate rules for")
		return nil, nil
	}
	active := store.Active(a.Settings())
	names := make([]string, len(active))
	for i, r := range active {
		names[i] = r.ScriptName
	}

	ctx, cancel := context.WithTimeout(ctx, a.generateTimeout)
	defer cancel()

	raw, err := gen.Generate(ctx, generate.Request{
		Phrases:       phrases,
		ExistingRules: names,
		MaxRules:      len(phrases),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", generate.ErrGenerationFailed, err)
	}
	drafts, err := generate.ParseRules(raw)
	if err != nil {
		a.logger.Warn("generated rules rejected", "err", err)
		return nil, err
	}
	added, err := store.AddAll(drafts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", generate.ErrGenerationFailed, err)
	}
	a.logger.Info("generated rules added", "count", len(added), "phrases", len(phrases))
	return added, nil
}
