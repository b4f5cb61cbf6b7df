package config

import (
	"strings"

	"github.com/samber/lo"

	"github.com/rcliao/prosepolisher/internal/model"
)

// Settings is the extension's persisted option blob. JSON keys match the
// host's settings object so a blob exported from the host loads unchanged.
type Settings struct {
	IsStaticEnabled          bool           `toml:"is_static_enabled" json:"isStaticEnabled" yaml:"isStaticEnabled"`
	IsDynamicEnabled         bool           `toml:"is_dynamic_enabled" json:"isDynamicEnabled" yaml:"isDynamicEnabled"`
	DynamicTriggerCount      int            `toml:"dynamic_trigger_count" json:"dynamicTriggerCount" yaml:"dynamicTriggerCount"`
	SlopThreshold            float64        `toml:"slop_threshold" json:"slopThreshold" yaml:"slopThreshold"`
	LeaderboardUpdateCycle   int            `toml:"leaderboard_update_cycle" json:"leaderboardUpdateCycle" yaml:"leaderboardUpdateCycle"`
	PruningCycle             int            `toml:"pruning_cycle" json:"pruningCycle" yaml:"pruningCycle"`
	NgramMax                 int            `toml:"ngram_max" json:"ngramMax" yaml:"ngramMax"`
	PatternMinCommon         int            `toml:"pattern_min_common" json:"patternMinCommon" yaml:"patternMinCommon"`
	Whitelist                []string       `toml:"whitelist" json:"whitelist" yaml:"whitelist"`
	Blacklist                map[string]int `toml:"blacklist" json:"blacklist" yaml:"blacklist"`
	IntegrateWithGlobalRegex bool           `toml:"integrate_with_global_regex" json:"integrateWithGlobalRegex" yaml:"integrateWithGlobalRegex"`
	DynamicRules             []model.Rule   `toml:"dynamic_rules" json:"dynamicRules" yaml:"dynamicRules"`
}

// Setting defaults and bounds.
const (
	DefaultDynamicTriggerCount    = 30
	DefaultSlopThreshold          = 3.0
	DefaultLeaderboardUpdateCycle = 10
	DefaultPruningCycle           = 20
	DefaultNgramMax               = 10
	DefaultPatternMinCommon       = 3

	MinPruningCycle     = 5
	MinNgramMax         = 3
	MaxNgramMax         = 20
	MinPatternMinCommon = 2
	MaxPatternMinCommon = 10
	MinBlacklistWeight  = 1
	MaxBlacklistWeight  = 10
)

// DefaultSettings returns the settings used for any key the host omits.
func DefaultSettings() Settings {
	return Settings{
		IsStaticEnabled:          true,
		IsDynamicEnabled:         false,
		DynamicTriggerCount:      DefaultDynamicTriggerCount,
		SlopThreshold:            DefaultSlopThreshold,
		LeaderboardUpdateCycle:   DefaultLeaderboardUpdateCycle,
		PruningCycle:             DefaultPruningCycle,
		NgramMax:                 DefaultNgramMax,
		PatternMinCommon:         DefaultPatternMinCommon,
		Whitelist:                []string{},
		Blacklist:                map[string]int{},
		IntegrateWithGlobalRegex: true,
		DynamicRules:             []model.Rule{},
	}
}

// Normalize returns a copy with every numeric option clamped into range,
// zero values replaced by defaults, and list terms trimmed and lowercased.
func (s Settings) Normalize() Settings {
	n := s
	if n.DynamicTriggerCount < 1 {
		n.DynamicTriggerCount = DefaultDynamicTriggerCount
	}
	if n.SlopThreshold < 1 {
		n.SlopThreshold = DefaultSlopThreshold
	}
	if n.LeaderboardUpdateCycle < 1 {
		n.LeaderboardUpdateCycle = DefaultLeaderboardUpdateCycle
	}
	switch {
	case n.PruningCycle == 0:
		n.PruningCycle = DefaultPruningCycle
	case n.PruningCycle < MinPruningCycle:
		n.PruningCycle = MinPruningCycle
	}
	switch {
	case n.NgramMax == 0:
		n.NgramMax = DefaultNgramMax
	case n.NgramMax < MinNgramMax:
		n.NgramMax = MinNgramMax
	case n.NgramMax > MaxNgramMax:
		n.NgramMax = MaxNgramMax
	}
	switch {
	case n.PatternMinCommon == 0:
		n.PatternMinCommon = DefaultPatternMinCommon
	case n.PatternMinCommon < MinPatternMinCommon:
		n.PatternMinCommon = MinPatternMinCommon
	case n.PatternMinCommon > MaxPatternMinCommon:
		n.PatternMinCommon = MaxPatternMinCommon
	}

	n.Whitelist = lo.Uniq(lo.FilterMap(s.Whitelist, func(t string, _ int) (string, bool) {
		t = strings.ToLower(strings.TrimSpace(t))
		return t, t != ""
	}))
	n.Blacklist = make(map[string]int, len(s.Blacklist))
	for term, w := range s.Blacklist {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		n.Blacklist[term] = max(MinBlacklistWeight, min(MaxBlacklistWeight, w))
	}
	if n.DynamicRules == nil {
		n.DynamicRules = []model.Rule{}
	}
	return n
}
