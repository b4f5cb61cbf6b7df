package transcript

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/rcliao/prosepolisher/internal/logging"
	"github.com/rcliao/prosepolisher/internal/model"
)

const defaultDebounce = 100 * time.Millisecond

type followOptions struct {
	fromStart bool
	debounce  time.Duration
	logger    *log.Logger
}

// FollowOption configures Follow.
type FollowOption func(*followOptions)

// FromStart delivers the messages already in the file before following.
func FromStart() FollowOption {
	return func(o *followOptions) { o.fromStart = true }
}

// WithDebounce sets how long Follow waits for writes to settle.
func WithDebounce(d time.Duration) FollowOption {
	return func(o *followOptions) { o.debounce = d }
}

// WithLogger sets the follower logger.
func WithLogger(l *log.Logger) FollowOption {
	return func(o *followOptions) { o.logger = logging.OrDiscard(l) }
}

// Follow calls fn for every message appended to the chat file at path until
// ctx is done or fn returns an error. The host rewrites the whole file on
// save, so the file is re-read on each change and only messages past the
// last delivered index are passed on. A file that shrinks (messages
// deleted) resets the cursor to its new length without redelivery.
func Follow(ctx context.Context, path string, fn func(model.Message) error, opts ...FollowOption) error {
	o := followOptions{debounce: defaultDebounce, logger: logging.Discard()}
	for _, opt := range opts {
		opt(&o)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch directory: %w", err)
	}

	delivered := 0
	if !o.fromStart {
		if chat, err := ReadFile(path); err == nil {
			delivered = len(chat.Messages)
		}
	}
	deliver := func() error {
		chat, err := ReadFile(path)
		if err != nil {
			// Mid-write reads can be truncated; the next event retries.
			o.logger.Debug("chat not readable yet", "path", path, "err", err)
			return nil
		}
		if len(chat.Messages) < delivered {
			o.logger.Info("chat shrank, resetting cursor", "from", delivered, "to", len(chat.Messages))
			delivered = len(chat.Messages)
			return nil
		}
		for _, m := range chat.Messages[delivered:] {
			if err := fn(m); err != nil {
				return err
			}
			delivered = m.Index + 1
		}
		return nil
	}
	if o.fromStart {
		if err := deliver(); err != nil {
			return err
		}
	}

	timer := time.NewTimer(o.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	base := filepath.Base(path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			timer.Reset(o.debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			o.logger.Warn("watch error", "err", err)
		case <-timer.C:
			if err := deliver(); err != nil {
				return err
			}
		}
	}
}
