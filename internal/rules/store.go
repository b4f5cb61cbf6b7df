// Package rules holds the static and dynamic rewrite rules and keeps the
// host regex pipeline in sync with them.
package rules

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/oklog/ulid/v2"

	"github.com/rcliao/prosepolisher/internal/config"
	"github.com/rcliao/prosepolisher/internal/logging"
	"github.com/rcliao/prosepolisher/internal/model"
)

// PersistFunc saves the full rule set after a mutation. Static rules are
// included so their disabled flags survive restarts.
type PersistFunc func(all []model.Rule) error

// Store owns the static and dynamic rule collections. Safe for concurrent
// use; every accessor returns deep copies.
type Store struct {
	mu       sync.RWMutex
	static   []model.Rule
	dynamic  []model.Rule
	onChange []func()
	persist  PersistFunc
	newID    func() string
	logger   *log.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = logging.OrDiscard(l) }
}

// WithPersist registers a hook called after every mutation. A failing hook
// rolls the mutation back.
func WithPersist(fn PersistFunc) Option {
	return func(s *Store) { s.persist = fn }
}

// WithIDGenerator overrides the ulid-based id source for dynamic rules.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		logger: logging.Discard(),
		newID:  func() string { return ulid.Make().String() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// OnChange registers an invalidation callback run after every mutation,
// typically the regex cache's Clear.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// LoadStatic replaces the static rules with a JSON array seed. Ids are
// derived from script names; rules with invalid patterns stay listed.
func (s *Store) LoadStatic(seed []byte) error {
	var raw []model.Rule
	if err := json.Unmarshal(seed, &raw); err != nil {
		return fmt.Errorf("parse static rules: %w", err)
	}
	loaded := make([]model.Rule, 0, len(raw))
	seen := map[string]bool{}
	for _, r := range raw {
		r.ID = ""
		r = model.NormalizeRule(r, true, nil)
		if r.ScriptName == "" {
			s.logger.Warn("skipping unnamed static rule", "find", r.FindRegex)
			continue
		}
		if seen[r.ID] {
			return fmt.Errorf("duplicate static rule %q", r.ID)
		}
		seen[r.ID] = true
		if err := Validate(r); err != nil {
			s.logger.Warn("static rule does not validate", "rule", r.ID, "err", err)
		}
		loaded = append(loaded, r)
	}

	s.mu.Lock()
	s.static = loaded
	s.mu.Unlock()
	s.changed()
	s.logger.Debug("loaded static rules", "count", len(loaded))
	return nil
}

// LoadDefaultStatic loads the built-in seed.
func (s *Store) LoadDefaultStatic() error {
	return s.LoadStatic(staticSeed)
}

// Restore applies previously saved rules: dynamic rules replace the current
// set and saved disabled flags are carried onto matching static rules.
// Persistence is not triggered.
func (s *Store) Restore(saved []model.Rule) {
	disabled := map[string]bool{}
	var dynamic []model.Rule
	for _, r := range saved {
		if r.IsStatic || strings.HasPrefix(r.ID, model.StaticIDPrefix) {
			disabled[r.ID] = r.Disabled
			continue
		}
		dynamic = append(dynamic, model.NormalizeRule(r, false, s.newID))
	}

	s.mu.Lock()
	for i := range s.static {
		if d, ok := disabled[s.static[i].ID]; ok {
			s.static[i].Disabled = d
		}
	}
	s.dynamic = dynamic
	s.mu.Unlock()
	s.changed()
}

// Static returns the built-in rules.
func (s *Store) Static() []model.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.static)
}

// Dynamic returns the user and generated rules.
func (s *Store) Dynamic() []model.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.dynamic)
}

// All returns static then dynamic rules, disabled ones included.
func (s *Store) All() []model.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(cloneAll(s.static), cloneAll(s.dynamic)...)
}

// Active returns the enabled rules in application order: static first when
// enabled, then dynamic when enabled, each group sorted by script name with
// id as tiebreak.
func (s *Store) Active(settings config.Settings) []model.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Rule
	if settings.IsStaticEnabled {
		out = append(out, enabledSorted(s.static)...)
	}
	if settings.IsDynamicEnabled {
		out = append(out, enabledSorted(s.dynamic)...)
	}
	return out
}

// Get returns one rule by id.
func (s *Store) Get(id string) (model.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r := s.ref(id); r != nil {
		return r.Clone(), nil
	}
	return model.Rule{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
}

// Create validates and adds a dynamic rule, returning it with its new id.
func (s *Store) Create(draft model.Rule) (model.Rule, error) {
	if err := Validate(draft); err != nil {
		return model.Rule{}, fmt.Errorf("create rule: %w", err)
	}
	draft.ID = ""
	r := model.NormalizeRule(draft, false, s.newID)

	err := s.mutate(func() error {
		s.dynamic = append(s.dynamic, r)
		return nil
	})
	if err != nil {
		return model.Rule{}, fmt.Errorf("create rule: %w", err)
	}
	s.logger.Info("rule created", "rule", r.ID, "name", r.ScriptName)
	return r.Clone(), nil
}

// Update replaces the editable fields of a dynamic rule. The id is kept.
func (s *Store) Update(id string, draft model.Rule) (model.Rule, error) {
	if err := Validate(draft); err != nil {
		return model.Rule{}, fmt.Errorf("update %s: %w", id, err)
	}
	draft.ID = id
	updated := model.NormalizeRule(draft, false, nil)

	err := s.mutate(func() error {
		r := s.ref(id)
		if r == nil {
			return ErrNotFound
		}
		if r.IsStatic {
			return ErrStaticRule
		}
		*r = updated
		return nil
	})
	if err != nil {
		return model.Rule{}, fmt.Errorf("update %s: %w", id, err)
	}
	return updated.Clone(), nil
}

// Delete removes a dynamic rule.
func (s *Store) Delete(id string) error {
	err := s.mutate(func() error {
		r := s.ref(id)
		if r == nil {
			return ErrNotFound
		}
		if r.IsStatic {
			return ErrStaticRule
		}
		next := make([]model.Rule, 0, len(s.dynamic)-1)
		for _, d := range s.dynamic {
			if d.ID != id {
				next = append(next, d)
			}
		}
		s.dynamic = next
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	s.logger.Info("rule deleted", "rule", id)
	return nil
}

// SetDisabled sets the disabled flag of any rule. Setting the current value
// is a no-op that still succeeds.
func (s *Store) SetDisabled(id string, disabled bool) error {
	err := s.mutate(func() error {
		r := s.ref(id)
		if r == nil {
			return ErrNotFound
		}
		r.Disabled = disabled
		return nil
	})
	if err != nil {
		return fmt.Errorf("set disabled %s: %w", id, err)
	}
	return nil
}

// Toggle flips the disabled flag and returns the new value.
func (s *Store) Toggle(id string) (bool, error) {
	r, err := s.Get(id)
	if err != nil {
		return false, fmt.Errorf("toggle: %w", err)
	}
	if err := s.SetDisabled(id, !r.Disabled); err != nil {
		return false, fmt.Errorf("toggle: %w", err)
	}
	return !r.Disabled, nil
}

// ReplaceDynamic swaps the whole dynamic set, e.g. from a settings blob.
// Rules are normalized but not validated so broken rules remain editable.
func (s *Store) ReplaceDynamic(rules []model.Rule) error {
	next := make([]model.Rule, 0, len(rules))
	for _, r := range rules {
		next = append(next, model.NormalizeRule(r, false, s.newID))
	}
	if err := s.mutate(func() error { s.dynamic = next; return nil }); err != nil {
		return fmt.Errorf("replace dynamic rules: %w", err)
	}
	return nil
}

// AddAll validates every draft and adds them as dynamic rules, or adds
// none when any draft is rejected.
func (s *Store) AddAll(drafts []model.Rule) ([]model.Rule, error) {
	added := make([]model.Rule, 0, len(drafts))
	for i, d := range drafts {
		if err := Validate(d); err != nil {
			return nil, fmt.Errorf("rule %d (%q): %w", i, d.ScriptName, err)
		}
		d.ID = ""
		added = append(added, model.NormalizeRule(d, false, s.newID))
	}
	if len(added) == 0 {
		return added, nil
	}
	if err := s.mutate(func() error { s.dynamic = append(s.dynamic, added...); return nil }); err != nil {
		return nil, fmt.Errorf("add rules: %w", err)
	}
	s.logger.Info("rules added", "count", len(added))
	return cloneAll(added), nil
}

// mutate runs fn under the write lock, then persists; a persistence
// failure rolls the change back. Invalidation callbacks run after the lock
// is released.
func (s *Store) mutate(fn func() error) error {
	s.mu.Lock()
	prevStatic, prevDynamic := cloneAll(s.static), cloneAll(s.dynamic)
	if err := fn(); err != nil {
		s.static, s.dynamic = prevStatic, prevDynamic
		s.mu.Unlock()
		return err
	}
	if s.persist != nil {
		if err := s.persist(append(cloneAll(s.static), cloneAll(s.dynamic)...)); err != nil {
			s.static, s.dynamic = prevStatic, prevDynamic
			s.mu.Unlock()
			return fmt.Errorf("persist rules: %w", err)
		}
	}
	s.mu.Unlock()
	s.changed()
	return nil
}

func (s *Store) changed() {
	s.mu.RLock()
	hooks := append([]func(){}, s.onChange...)
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn()
	}
}

func (s *Store) ref(id string) *model.Rule {
	for i := range s.static {
		if s.static[i].ID == id {
			return &s.static[i]
		}
	}
	for i := range s.dynamic {
		if s.dynamic[i].ID == id {
			return &s.dynamic[i]
		}
	}
	return nil
}

func enabledSorted(in []model.Rule) []model.Rule {
	out := make([]model.Rule, 0, len(in))
	for _, r := range in {
		if !r.Disabled {
			out = append(out, r.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].ScriptName), strings.ToLower(out[j].ScriptName)
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func cloneAll(in []model.Rule) []model.Rule {
	out := make([]model.Rule, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
