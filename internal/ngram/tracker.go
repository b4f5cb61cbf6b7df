// Package ngram tracks repeated phrases across a chat transcript.
package ngram

import (
	"sort"
	"strings"

	"github.com/rcliao/prosepolisher/internal/model"
	"github.com/rcliao/prosepolisher/internal/segment"
)

const (
	DefaultNgramMin   = 2
	DefaultNgramMax   = 10
	DefaultRetention  = 20
	DefaultDecay      = 0.5
	DefaultFloor      = 3.0
	DefaultMaxEntries = 50000
)

// Options configures a Tracker.
type Options struct {
	// NgramMin and NgramMax bound the window lengths, in tokens.
	NgramMin int
	NgramMax int
	// Retention is the number of messages after which an unseen entry is stale.
	Retention int
	// Decay multiplies the score of stale entries that are still at or
	// above Floor.
	Decay float64
	// Floor is the score below which stale entries are evicted.
	Floor float64
	// MaxEntries caps the table; the lowest scores go first.
	MaxEntries int
	Segment    segment.Options
}

// DefaultOptions returns default tracker options.
func DefaultOptions() Options {
	return Options{
		NgramMin:   DefaultNgramMin,
		NgramMax:   DefaultNgramMax,
		Retention:  DefaultRetention,
		Decay:      DefaultDecay,
		Floor:      DefaultFloor,
		MaxEntries: DefaultMaxEntries,
		Segment:    segment.DefaultOptions(),
	}
}

type term struct {
	tokens []string
	weight int
}

// occurrence is a whitelist or blacklist term found in a sentence,
// covering tokens [start, end).
type occurrence struct {
	start, end int
	weight     int
	veto       bool
}

// Tracker maintains phrase -> entry counts. It is not safe for concurrent
// use; the analyzer serializes access.
type Tracker struct {
	opts      Options
	entries   map[string]*model.NgramEntry
	whitelist []term
	blacklist []term
}

// New creates a tracker. Zero option fields take their defaults.
func New(opts Options) *Tracker {
	t := &Tracker{entries: map[string]*model.NgramEntry{}}
	t.SetOptions(opts)
	return t
}

// SetOptions replaces the tracker options, filling zero fields with defaults.
func (t *Tracker) SetOptions(opts Options) {
	d := DefaultOptions()
	if opts.NgramMin <= 0 {
		opts.NgramMin = d.NgramMin
	}
	if opts.NgramMax <= 0 {
		opts.NgramMax = d.NgramMax
	}
	if opts.NgramMax < opts.NgramMin {
		opts.NgramMax = opts.NgramMin
	}
	if opts.Retention <= 0 {
		opts.Retention = d.Retention
	}
	if opts.Decay <= 0 || opts.Decay >= 1 {
		opts.Decay = d.Decay
	}
	if opts.Floor <= 0 {
		opts.Floor = d.Floor
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = d.MaxEntries
	}
	if opts.Segment == (segment.Options{}) {
		opts.Segment = d.Segment
	}
	t.opts = opts
}

// Options returns the effective options.
func (t *Tracker) Options() Options {
	return t.opts
}

// SetLists installs the whitelist terms and blacklist weights. Terms may
// span several words; they are tokenized like message text.
func (t *Tracker) SetLists(whitelist []string, blacklist map[string]int) {
	t.whitelist = t.whitelist[:0]
	for _, w := range whitelist {
		if toks := Tokenize(w); len(toks) > 0 {
			t.whitelist = append(t.whitelist, term{tokens: toks})
		}
	}
	t.blacklist = t.blacklist[:0]
	keys := make([]string, 0, len(blacklist))
	for k := range blacklist {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if toks := Tokenize(k); len(toks) > 0 {
			t.blacklist = append(t.blacklist, term{tokens: toks, weight: max(1, blacklist[k])})
		}
	}
}

// Observe records every candidate phrase of one AI message. It returns the
// number of phrase occurrences counted.
func (t *Tracker) Observe(text string, index int) int {
	counted := 0
	for _, sentence := range segment.Split(text, t.opts.Segment) {
		counted += t.observeTokens(Tokenize(sentence), index)
	}
	return counted
}

func (t *Tracker) observeTokens(tokens []string, index int) int {
	if len(tokens) == 0 {
		return 0
	}
	occ := t.findTerms(tokens)
	counted := 0

	// Blacklisted terms shorter than the minimum window are tracked on
	// their own so a single flagged word can surface.
	for _, o := range occ {
		if o.veto || o.end-o.start >= t.opts.NgramMin {
			continue
		}
		if vetoed(occ, o.start, o.end) {
			continue
		}
		t.record(strings.Join(tokens[o.start:o.end], " "), float64(o.weight), index)
		counted++
	}

	maxN := min(t.opts.NgramMax, len(tokens))
	for n := t.opts.NgramMin; n <= maxN; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			window := tokens[i : i+n]
			if AllStopwords(window) || vetoed(occ, i, i+n) {
				continue
			}
			w := 1
			for _, o := range occ {
				if !o.veto && o.start >= i && o.end <= i+n && o.weight > w {
					w = o.weight
				}
			}
			t.record(strings.Join(window, " "), float64(w), index)
			counted++
		}
	}
	return counted
}

func vetoed(occ []occurrence, start, end int) bool {
	for _, o := range occ {
		if o.veto && o.start >= start && o.end <= end {
			return true
		}
	}
	return false
}

func (t *Tracker) findTerms(tokens []string) []occurrence {
	var occ []occurrence
	scan := func(list []term, veto bool) {
		for _, tm := range list {
			n := len(tm.tokens)
			for i := 0; i+n <= len(tokens); i++ {
				if matchTerm(tokens[i:i+n], tm.tokens) {
					occ = append(occ, occurrence{start: i, end: i + n, weight: tm.weight, veto: veto})
				}
			}
		}
	}
	scan(t.whitelist, true)
	scan(t.blacklist, false)
	return occ
}

// matchTerm compares a window with a term token by token. A window token
// also matches when its possessive suffix is dropped, so "alice's" hits
// the term "alice".
func matchTerm(window, term []string) bool {
	for i, tok := range term {
		if window[i] != tok && StripPossessive(window[i]) != tok {
			return false
		}
	}
	return true
}

func (t *Tracker) record(phrase string, weight float64, index int) {
	e, ok := t.entries[phrase]
	if !ok {
		e = &model.NgramEntry{Text: phrase}
		t.entries[phrase] = e
	}
	e.Count++
	e.Score += weight
	if index > e.LastSeen || e.Count == 1 {
		e.LastSeen = index
	}
}

// Prune evicts stale low scorers, decays stale high scorers and enforces
// MaxEntries. It returns the number of entries removed.
func (t *Tracker) Prune(current int) int {
	removed := 0
	for k, e := range t.entries {
		if current-e.LastSeen < t.opts.Retention {
			continue
		}
		if e.Score < t.opts.Floor {
			delete(t.entries, k)
			removed++
			continue
		}
		e.Score *= t.opts.Decay
	}

	if over := len(t.entries) - t.opts.MaxEntries; over > 0 {
		all := make([]*model.NgramEntry, 0, len(t.entries))
		for _, e := range t.entries {
			all = append(all, e)
		}
		sort.Slice(all, func(i, j int) bool {
			if all[i].Score != all[j].Score {
				return all[i].Score < all[j].Score
			}
			if all[i].LastSeen != all[j].LastSeen {
				return all[i].LastSeen < all[j].LastSeen
			}
			return all[i].Text < all[j].Text
		})
		for _, e := range all[:over] {
			delete(t.entries, e.Text)
			removed++
		}
	}
	return removed
}

// Get returns a copy of one entry.
func (t *Tracker) Get(phrase string) (model.NgramEntry, bool) {
	e, ok := t.entries[phrase]
	if !ok {
		return model.NgramEntry{}, false
	}
	return *e, true
}

// Entries returns copies of all entries ordered by score desc, then text.
func (t *Tracker) Entries() []model.NgramEntry {
	out := make([]model.NgramEntry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e)
	}
	model.SortEntries(out)
	return out
}

// Top returns the n highest-scoring entries.
func (t *Tracker) Top(n int) []model.NgramEntry {
	all := t.Entries()
	if n >= 0 && n < len(all) {
		all = all[:n]
	}
	return all
}

// Len returns the number of tracked entries.
func (t *Tracker) Len() int {
	return len(t.entries)
}

// Clear drops every entry.
func (t *Tracker) Clear() {
	t.entries = map[string]*model.NgramEntry{}
}

// Restore replaces the table with entries, e.g. from a saved snapshot.
func (t *Tracker) Restore(entries []model.NgramEntry) {
	t.entries = make(map[string]*model.NgramEntry, len(entries))
	for _, e := range entries {
		if e.Text == "" {
			continue
		}
		c := e
		t.entries[e.Text] = &c
	}
}
