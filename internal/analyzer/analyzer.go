// Package analyzer coordinates phrase tracking, leaderboard merging,
// pruning and rule generation for one chat session.
package analyzer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/rcliao/prosepolisher/internal/config"
	"github.com/rcliao/prosepolisher/internal/logging"
	"github.com/rcliao/prosepolisher/internal/model"
	"github.com/rcliao/prosepolisher/internal/ngram"
	"github.com/rcliao/prosepolisher/internal/pattern"
	"github.com/rcliao/prosepolisher/internal/session"
)

// ErrMissingDependency is logged when a collaborator is nil; the call
// returns a safe default instead of failing hard.
var ErrMissingDependency = errors.New("missing dependency")

const (
	DefaultFallbackSize    = 20
	DefaultGenerateTimeout = 60 * time.Second
	DefaultMaxPhrases      = 25
)

// State is the position of a session in its processing cycle.
type State int

const (
	Idle State = iota
	Tracking
	Merging
	Pruning
)

func (s State) String() string {
	switch s {
	case Tracking:
		return "tracking"
	case Merging:
		return "merging"
	case Pruning:
		return "pruning"
	default:
		return "idle"
	}
}

// Result reports what one RecordMessage call did.
type Result struct {
	// Deferred is set when the session was not ready; the message is queued.
	Deferred bool `json:"deferred,omitempty"`
	// Duplicate is set when the message index was already processed.
	Duplicate bool `json:"duplicate,omitempty"`
	// Phrases is the number of phrase occurrences counted.
	Phrases int `json:"phrases"`
	// Merged is set when the leaderboard was recomputed.
	Merged bool `json:"merged,omitempty"`
	// Pruned is the number of entries removed by pruning.
	Pruned int `json:"pruned,omitempty"`
	// GenerationDue is set when dynamic rule generation should run.
	GenerationDue bool `json:"generation_due,omitempty"`
}

// Analyzer owns the tracker and the published leaderboard of a session.
// Safe for concurrent use.
type Analyzer struct {
	mu          sync.Mutex
	settings    config.Settings
	tracker     *ngram.Tracker
	gate        *session.Gate
	leaderboard *model.Leaderboard
	processed   map[int]struct{}
	messages    int
	state       State
	onMerge     []func(model.Leaderboard)

	logger          *log.Logger
	fallbackSize    int
	generateTimeout time.Duration
	maxPhrases      int
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the analyzer logger.
func WithLogger(l *log.Logger) Option {
	return func(a *Analyzer) { a.logger = logging.OrDiscard(l) }
}

// WithGate installs a readiness gate; messages recorded before it is ready
// are deferred. Without one the analyzer is ready immediately.
func WithGate(g *session.Gate) Option {
	return func(a *Analyzer) { a.gate = g }
}

// WithFallbackSize sets how many raw entries the fallback leaderboard holds.
func WithFallbackSize(n int) Option {
	return func(a *Analyzer) { a.fallbackSize = n }
}

// WithGenerateTimeout bounds one rule-generation round.
func WithGenerateTimeout(d time.Duration) Option {
	return func(a *Analyzer) { a.generateTimeout = d }
}

// WithMaxPhrases caps the phrases sent to the rule generator.
func WithMaxPhrases(n int) Option {
	return func(a *Analyzer) { a.maxPhrases = n }
}

// New creates an analyzer. A nil settings pointer is reported as
// ErrMissingDependency and defaults are used.
func New(settings *config.Settings, opts ...Option) *Analyzer {
	a := &Analyzer{
		processed:       map[int]struct{}{},
		logger:          logging.Discard(),
		fallbackSize:    DefaultFallbackSize,
		generateTimeout: DefaultGenerateTimeout,
		maxPhrases:      DefaultMaxPhrases,
	}
	for _, o := range opts {
		o(a)
	}
	if a.gate == nil {
		a.gate = session.NewReadyGate()
	}

	s := config.DefaultSettings()
	if settings == nil {
		a.logger.Warn("no settings supplied, using defaults", "err", ErrMissingDependency)
	} else {
		s = *settings
	}
	a.tracker = ngram.New(ngram.Options{})
	a.applySettings(s)
	return a
}

// UpdateSettings normalizes and applies new settings. Tracked entries are
// kept; list changes affect later messages only.
func (a *Analyzer) UpdateSettings(s config.Settings) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applySettings(s)
	a.logger.Debug("settings updated", "threshold", a.settings.SlopThreshold, "ngram_max", a.settings.NgramMax)
}

func (a *Analyzer) applySettings(s config.Settings) {
	a.settings = s.Normalize()
	a.tracker.SetOptions(ngram.Options{
		NgramMax:  a.settings.NgramMax,
		Retention: a.settings.PruningCycle,
		Floor:     a.settings.SlopThreshold,
	})
	a.tracker.SetLists(a.settings.Whitelist, a.settings.Blacklist)
}

// Settings returns the normalized settings in effect.
func (a *Analyzer) Settings() config.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return cloneSettings(a.settings)
}

// Gate returns the readiness gate.
func (a *Analyzer) Gate() *session.Gate {
	return a.gate
}

// OnMerge registers a callback run with a copy of each new leaderboard.
func (a *Analyzer) OnMerge(fn func(model.Leaderboard)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onMerge = append(a.onMerge, fn)
}

// RecordMessage processes one AI-authored message. index is the message's
// position in the chat and identifies it for duplicate detection.
func (a *Analyzer) RecordMessage(text string, index int) Result {
	if a.gate.Defer(func() { a.record(text, index) }) {
		a.logger.Debug("session not ready, deferring message", "index", index)
		return Result{Deferred: true}
	}
	return a.record(text, index)
}

func (a *Analyzer) record(text string, index int) (res Result) {
	var merged *model.Leaderboard
	var hooks []func(model.Leaderboard)

	a.mu.Lock()
	func() {
		defer a.mu.Unlock()
		defer func() {
			if r := recover(); r != nil {
				a.logger.Error("record message panicked", "index", index, "panic", fmt.Sprint(r))
				a.state = Tracking
			}
		}()

		if _, seen := a.processed[index]; seen {
			res.Duplicate = true
			return
		}
		a.processed[index] = struct{}{}
		a.state = Tracking
		a.messages++
		res.Phrases = a.tracker.Observe(text, a.messages)

		if a.messages%a.settings.PruningCycle == 0 {
			a.state = Pruning
			res.Pruned = a.tracker.Prune(a.messages)
			a.logger.Debug("pruned", "removed", res.Pruned, "remaining", a.tracker.Len())
		}
		if a.messages%a.settings.LeaderboardUpdateCycle == 0 {
			a.state = Merging
			lb := a.merge()
			res.Merged = true
			merged = &lb
			hooks = append(hooks, a.onMerge...)
		}
		if a.settings.IsDynamicEnabled && a.messages%a.settings.DynamicTriggerCount == 0 {
			res.GenerationDue = true
		}
		a.state = Tracking
	}()

	if merged != nil {
		for _, fn := range hooks {
			fn(merged.Clone())
		}
	}
	return res
}

// merge recomputes and publishes the leaderboard. Caller holds a.mu.
func (a *Analyzer) merge() model.Leaderboard {
	lb := pattern.Merge(a.tracker.Entries(), pattern.Options{
		MinCommon: a.settings.PatternMinCommon,
		Threshold: a.settings.SlopThreshold,
	})
	lb.ComputedAt = a.messages
	a.leaderboard = &lb
	a.logger.Debug("leaderboard updated", "merged", len(lb.Merged), "remaining", len(lb.Remaining))
	return lb.Clone()
}

// Leaderboard returns a copy of the latest leaderboard. Before the first
// merge it returns the top raw entries in Remaining, with Fallback set.
func (a *Analyzer) Leaderboard() model.Leaderboard {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.leaderboard != nil {
		return a.leaderboard.Clone()
	}
	lb := model.NewLeaderboard()
	lb.Fallback = true
	lb.ComputedAt = a.messages
	for _, e := range a.tracker.Top(a.fallbackSize) {
		lb.Remaining[e.Text] = e.Score
	}
	return lb
}

// RefreshLeaderboard recomputes the leaderboard now.
func (a *Analyzer) RefreshLeaderboard() model.Leaderboard {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev := a.state
	a.state = Merging
	lb := a.merge()
	a.state = prev
	return lb
}

// CandidatePhrases returns up to n leaderboard phrases, highest first.
func (a *Analyzer) CandidatePhrases(n int) []string {
	rows := a.Leaderboard().Rows()
	if n > 0 && n < len(rows) {
		rows = rows[:n]
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Phrase
	}
	return out
}

// Entries returns a copy of every tracked entry.
func (a *Analyzer) Entries() []model.NgramEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tracker.Entries()
}

// Messages returns the number of messages processed since the last reset.
func (a *Analyzer) Messages() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.messages
}

// State returns the current processing state.
func (a *Analyzer) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Reset clears all session data for a chat switch and returns to Idle.
// The readiness gate is left alone; reset it separately if the host needs
// to signal readiness again.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tracker.Clear()
	a.leaderboard = nil
	a.processed = map[int]struct{}{}
	a.messages = 0
	a.state = Idle
	a.logger.Debug("session reset")
}

func cloneSettings(s config.Settings) config.Settings {
	c := config.Config{Settings: s}
	return c.Clone().Settings
}
