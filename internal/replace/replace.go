// Package replace applies ordered rule lists to message text.
package replace

import (
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dlclark/regexp2"

	"github.com/rcliao/prosepolisher/internal/logging"
	"github.com/rcliao/prosepolisher/internal/model"
	"github.com/rcliao/prosepolisher/internal/regexcache"
)

var groupRef = regexp.MustCompile(`\$(\$|&|\d+)`)

// Engine rewrites text with rules compiled through a shared cache.
type Engine struct {
	cache  *regexcache.Cache
	logger *log.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the random source used for {{random:...}} choices.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rnd = r }
}

// WithLogger sets the engine logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = logging.OrDiscard(l) }
}

// New creates an engine over cache.
func New(cache *regexcache.Cache, opts ...Option) *Engine {
	e := &Engine{
		cache:  cache,
		logger: logging.Discard(),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Apply runs rules over text in order; each rule sees the previous rule's
// output. Rules whose pattern does not compile are skipped. Apply never
// panics: a failure inside one rule leaves the text as it was before it.
func (e *Engine) Apply(text string, rules []model.Rule) string {
	if text == "" || len(rules) == 0 {
		return text
	}
	for _, r := range rules {
		text = e.applyOne(text, r)
	}
	return text
}

func (e *Engine) applyOne(text string, r model.Rule) (out string) {
	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("rule panicked", "rule", r.ID, "panic", p)
			out = text
		}
	}()

	re, ok := e.cache.Pattern(r)
	if !ok {
		return text
	}

	var (
		res string
		err error
	)
	if opts, ok := e.cache.RandomOptions(r); ok && len(opts) > 0 {
		res, err = re.ReplaceFunc(text, func(m regexp2.Match) string {
			return expand(e.pick(opts), m, r.TrimStrings)
		}, -1, -1)
	} else if len(r.TrimStrings) > 0 {
		res, err = re.ReplaceFunc(text, func(m regexp2.Match) string {
			return expand(r.ReplaceString, m, r.TrimStrings)
		}, -1, -1)
	} else {
		res, err = re.Replace(text, r.ReplaceString, -1, -1)
	}
	if err != nil {
		e.logger.Warn("rule failed", "rule", r.ID, "err", err)
		return text
	}
	return res
}

func (e *Engine) pick(opts []string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return opts[e.rnd.Intn(len(opts))]
}

// expand substitutes $N (capture group N, empty when it did not participate),
// $& (whole match) and $$ (literal dollar) in tmpl. A multi-digit $N that
// names no group uses its longest valid prefix, so "$10" with one group is
// group 1 followed by "0"; a reference with no valid prefix stays literal.
func expand(tmpl string, m regexp2.Match, trim []string) string {
	groups := m.GroupCount() - 1
	return groupRef.ReplaceAllStringFunc(tmpl, func(ref string) string {
		switch name := ref[1:]; name {
		case "$":
			return "$"
		case "&":
			return trimAll(m.String(), trim)
		default:
			for k := len(name); k > 0; k-- {
				n, err := strconv.Atoi(name[:k])
				if err != nil || n < 1 || n > groups {
					continue
				}
				return groupText(m, n, trim) + name[k:]
			}
			return ref
		}
	})
}

func groupText(m regexp2.Match, n int, trim []string) string {
	g := m.GroupByNumber(n)
	if g == nil || len(g.Captures) == 0 {
		return ""
	}
	return trimAll(g.String(), trim)
}

func trimAll(s string, trim []string) string {
	for _, t := range trim {
		if t != "" {
			s = strings.ReplaceAll(s, t, "")
		}
	}
	return s
}
