// Package logging builds the charmbracelet loggers used across prosepolisher.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Config holds logging options.
type Config struct {
	// Level is one of debug, info, warn, error.
	Level string
	// Format is text, json or logfmt.
	Format string
	// Output defaults to stderr.
	Output io.Writer
	// Timestamps adds a time field to each line.
	Timestamps bool
}

// New creates a logger from cfg. Unknown levels fall back to info.
func New(cfg Config) *log.Logger {
	w := cfg.Output
	if w == nil {
		w = os.Stderr
	}
	level, err := log.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = log.InfoLevel
	}
	opts := log.Options{
		Level:           level,
		ReportTimestamp: cfg.Timestamps,
		TimeFormat:      time.Kitchen,
	}
	switch strings.ToLower(cfg.Format) {
	case "json":
		opts.Formatter = log.JSONFormatter
	case "logfmt":
		opts.Formatter = log.LogfmtFormatter
	default:
		opts.Formatter = log.TextFormatter
	}
	return log.NewWithOptions(w, opts)
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// Factory hands out component loggers sharing one base logger.
type Factory struct {
	base *log.Logger

	mu     sync.Mutex
	levels map[string]log.Level
	cache  map[string]*log.Logger
}

// NewFactory creates a factory over base.
func NewFactory(base *log.Logger) *Factory {
	return &Factory{
		base:   OrDiscard(base),
		levels: map[string]log.Level{},
		cache:  map[string]*log.Logger{},
	}
}

// SetLevel overrides the level for one component. Must be called before the
// component's logger is first requested.
func (f *Factory) SetLevel(component, level string) error {
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levels[component] = lvl
	return nil
}

// ForComponent returns the logger for a component, prefixed with its id.
func (f *Factory) ForComponent(id string) *log.Logger {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.cache[id]; ok {
		return l
	}
	l := f.base.WithPrefix(id)
	if lvl, ok := f.levels[id]; ok {
		l.SetLevel(lvl)
	}
	f.cache[id] = l
	return l
}
