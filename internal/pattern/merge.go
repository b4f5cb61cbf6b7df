// Package pattern collapses overlapping n-grams into a two-tier leaderboard.
package pattern

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/rcliao/prosepolisher/internal/model"
	"github.com/rcliao/prosepolisher/internal/ngram"
)

const (
	DefaultMinCommon = 3
	DefaultThreshold = 3.0
)

// Options configures Merge.
type Options struct {
	// MinCommon is the number of shared distinct content tokens that links
	// two phrases.
	MinCommon int
	// Threshold is the display floor; entries below it are dropped.
	Threshold float64
}

type candidate struct {
	text   string
	score  float64
	tokens []string
	words  map[string]struct{}
}

// Merge groups overlapping phrases and returns the leaderboard. Keys of
// Merged and Remaining are disjoint and every entry scoring at least
// Threshold is accounted for in exactly one of them.
func Merge(entries []model.NgramEntry, opts Options) model.Leaderboard {
	if opts.MinCommon <= 0 {
		opts.MinCommon = DefaultMinCommon
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}

	cands := candidates(entries, opts.Threshold)
	lb := model.NewLeaderboard()
	if len(cands) == 0 {
		return lb
	}

	uf := newUnionFind(len(cands))
	for i := range cands {
		for j := i + 1; j < len(cands); j++ {
			if linked(cands[i], cands[j], opts.MinCommon) {
				uf.union(i, j)
			}
		}
	}

	groups := map[int][]int{}
	for i := range cands {
		root := uf.find(i)
		groups[root] = append(groups[root], i)
	}
	roots := lo.Keys(groups)
	sort.Ints(roots)

	for _, root := range roots {
		idx := groups[root]
		if len(idx) == 1 {
			c := cands[idx[0]]
			lb.Remaining[c.text] += c.score
			continue
		}
		members := make([]candidate, len(idx))
		for k, i := range idx {
			members[k] = cands[i]
		}
		key, score := representative(members, opts.Threshold)
		lb.Merged[key] += score
	}

	for k := range lb.Merged {
		delete(lb.Remaining, k)
	}
	return lb
}

func candidates(entries []model.NgramEntry, threshold float64) []candidate {
	byText := map[string]float64{}
	for _, e := range entries {
		if e.Score < threshold || e.Text == "" {
			continue
		}
		byText[e.Text] += e.Score
	}
	texts := lo.Keys(byText)
	sort.Strings(texts)

	out := make([]candidate, 0, len(texts))
	for _, t := range texts {
		toks := ngram.Tokenize(t)
		if len(toks) == 0 {
			continue
		}
		words := map[string]struct{}{}
		for _, tok := range toks {
			if !ngram.IsStopword(tok) {
				words[tok] = struct{}{}
			}
		}
		out = append(out, candidate{text: t, score: byText[t], tokens: toks, words: words})
	}
	return out
}

func linked(a, b candidate, minCommon int) bool {
	if related(a.tokens, b.tokens) {
		return true
	}
	small, large := a.words, b.words
	if len(small) > len(large) {
		small, large = large, small
	}
	common := 0
	for w := range small {
		if _, ok := large[w]; ok {
			common++
			if common >= minCommon {
				return true
			}
		}
	}
	return false
}

// related reports whether either token run contains the other.
func related(a, b []string) bool {
	return ngram.ContainsSeq(a, b) || ngram.ContainsSeq(b, a)
}

// representative picks the key for a group of at least two members and
// computes the group score.
func representative(members []candidate, threshold float64) (string, float64) {
	maximal := maximalMembers(members)

	if rep, ok := containingAll(members); ok {
		return rep.text, rep.score + unrelatedScore(maximal, rep.tokens)
	}

	if run, ok := commonRun(members); ok {
		key := strings.Join(run, " ")
		for _, m := range members {
			if m.text == key {
				return key, m.score + unrelatedScore(maximal, run)
			}
		}
		// Every member holds the run, so every maximal member counts.
		total := 0.0
		for _, m := range maximal {
			total += m.score
		}
		return key, total
	}

	eligible := lo.Filter(members, func(m candidate, _ int) bool { return m.score >= threshold })
	if len(eligible) == 0 {
		eligible = members
	}
	sort.Slice(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if len(a.tokens) != len(b.tokens) {
			return len(a.tokens) > len(b.tokens)
		}
		if a.score != b.score {
			return a.score > b.score
		}
		return a.text < b.text
	})
	rep := eligible[0]
	return rep.text, rep.score + unrelatedScore(maximal, rep.tokens)
}

func containingAll(members []candidate) (candidate, bool) {
	longest := members[0]
	for _, m := range members[1:] {
		if len(m.tokens) > len(longest.tokens) {
			longest = m
		}
	}
	for _, m := range members {
		if !ngram.ContainsSeq(longest.tokens, m.tokens) {
			return candidate{}, false
		}
	}
	return longest, true
}

// commonRun finds the longest contiguous token run present in every member
// that holds at least one content word. Equal lengths resolve lexically.
func commonRun(members []candidate) ([]string, bool) {
	shortest := members[0]
	for _, m := range members[1:] {
		if len(m.tokens) < len(shortest.tokens) {
			shortest = m
		}
	}
	toks := shortest.tokens
	for n := len(toks); n >= 1; n-- {
		var best []string
		for i := 0; i+n <= len(toks); i++ {
			run := toks[i : i+n]
			if ngram.AllStopwords(run) {
				continue
			}
			if !lo.EveryBy(members, func(m candidate) bool { return ngram.ContainsSeq(m.tokens, run) }) {
				continue
			}
			if best == nil || strings.Join(run, " ") < strings.Join(best, " ") {
				best = run
			}
		}
		if best != nil {
			return best, true
		}
	}
	return nil, false
}

// maximalMembers returns members not contained in any other member.
func maximalMembers(members []candidate) []candidate {
	var out []candidate
	for i, m := range members {
		contained := false
		for j, o := range members {
			if i != j && len(o.tokens) > len(m.tokens) && ngram.ContainsSeq(o.tokens, m.tokens) {
				contained = true
				break
			}
		}
		if !contained {
			out = append(out, m)
		}
	}
	return out
}

func unrelatedScore(maximal []candidate, rep []string) float64 {
	total := 0.0
	for _, m := range maximal {
		if !related(m.tokens, rep) {
			total += m.score
		}
	}
	return total
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

// union keeps the smaller index as root so group order follows input order.
func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		u.parent[rb] = ra
	} else {
		u.parent[ra] = rb
	}
}
