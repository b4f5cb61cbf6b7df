// Package regexcache compiles and memoizes rule patterns and parsed
// {{random:...}} option lists.
package regexcache

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dlclark/regexp2"

	"github.com/rcliao/prosepolisher/internal/logging"
	"github.com/rcliao/prosepolisher/internal/model"
)

// Flags every rule pattern is compiled with. Rule patterns are authored in
// the JavaScript dialect (lookarounds, backreferences), which RE2 cannot
// express.
const Flags = regexp2.ECMAScript | regexp2.IgnoreCase

// DefaultMatchTimeout bounds catastrophic backtracking in user patterns.
const DefaultMatchTimeout = 250 * time.Millisecond

var randomBlock = regexp.MustCompile(`(?s)\{\{random:(.*?)\}\}`)

type patternEntry struct {
	re      *regexp2.Regexp
	invalid bool
}

// Cache memoizes compiled patterns keyed by (rule id, findRegex) and option
// lists keyed by (rule id, replaceString). Safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	patterns map[string]patternEntry
	options  map[string][]string
	timeout  time.Duration
	logger   *log.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for invalid-pattern warnings.
func WithLogger(l *log.Logger) Option {
	return func(c *Cache) { c.logger = logging.OrDiscard(l) }
}

// WithMatchTimeout overrides DefaultMatchTimeout.
func WithMatchTimeout(d time.Duration) Option {
	return func(c *Cache) { c.timeout = d }
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		patterns: map[string]patternEntry{},
		options:  map[string][]string{},
		timeout:  DefaultMatchTimeout,
		logger:   logging.Discard(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func cacheKey(id, src string) string {
	return id + "\x00" + src
}

// Pattern returns the compiled findRegex of r. The second result is false
// when the pattern does not compile; that outcome is cached until Clear.
func (c *Cache) Pattern(r model.Rule) (*regexp2.Regexp, bool) {
	key := cacheKey(r.ID, r.FindRegex)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.patterns[key]; ok {
		return e.re, !e.invalid
	}

	re, err := Compile(r.FindRegex)
	if err != nil {
		c.logger.Warn("invalid rule pattern", "rule", r.ID, "name", r.ScriptName, "err", err)
		c.patterns[key] = patternEntry{invalid: true}
		return nil, false
	}
	re.MatchTimeout = c.timeout
	c.patterns[key] = patternEntry{re: re}
	return re, true
}

// RandomOptions returns the trimmed, non-empty options of the first
// {{random:...}} block in r.ReplaceString. The second result is false when
// the replacement has no such block.
func (c *Cache) RandomOptions(r model.Rule) ([]string, bool) {
	key := cacheKey(r.ID, r.ReplaceString)

	c.mu.Lock()
	defer c.mu.Unlock()

	if opts, ok := c.options[key]; ok {
		return opts, opts != nil
	}
	opts := ParseRandomOptions(r.ReplaceString)
	c.options[key] = opts
	return opts, opts != nil
}

// Clear drops both caches. Call on any rule-set change.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.patterns = map[string]patternEntry{}
	c.options = map[string][]string{}
}

// Len reports the number of cached pattern entries, valid or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.patterns)
}

// Compile compiles a rule pattern with the rule flags.
func Compile(pattern string) (*regexp2.Regexp, error) {
	return regexp2.Compile(pattern, Flags)
}

// ParseRandomOptions parses a {{random:a,b,c}} template. It returns nil when
// there is no block, and an empty non-nil slice when the block lists no
// usable option.
func ParseRandomOptions(replace string) []string {
	m := randomBlock.FindStringSubmatch(replace)
	if m == nil {
		return nil
	}
	opts := []string{}
	for _, o := range strings.Split(m[1], ",") {
		if o = strings.TrimSpace(o); o != "" {
			opts = append(opts, o)
		}
	}
	return opts
}
