package chatwatch

import (
	"fmt"
	"log/slog"

	"github.com/requestify/requestify-go/pkg/chatwatch/event"
)

// WatchOption configures Watch behavior using the functional options pattern.
type WatchOption func(*watchConfig)

// watchConfig holds internal configuration for the watcher.
type watchConfig struct {
	path           string
	fromStart      bool
	poll           bool
	includeRawLine bool
	logger         *slog.Logger
	filter         *compiledFilter
}

// defaultWatchConfig returns a watchConfig with sensible defaults.
func defaultWatchConfig() *watchConfig {
	return &watchConfig{
		// Polling survives editors and game clients that truncate the file
		// in place, where inotify watches can silently go stale.
		poll: true,
	}
}

// applyWatchOptions applies functional options to a watchConfig.
func applyWatchOptions(opts []WatchOption) *watchConfig {
	cfg := defaultWatchConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// validate checks for invalid option combinations.
func (c *watchConfig) validate() error {
	if c.path == "" {
		return fmt.Errorf("%w: use WithPath", ErrNoLogPath)
	}
	return nil
}

// WithPath sets the console log file to watch. Required.
func WithPath(path string) WatchOption {
	return func(c *watchConfig) {
		c.path = path
	}
}

// WithFromStart reads the whole existing file before tailing new lines.
// Default: only new lines (tail -f behavior).
func WithFromStart(fromStart bool) WatchOption {
	return func(c *watchConfig) {
		c.fromStart = fromStart
	}
}

// WithPolling toggles polling the file for changes instead of relying on
// filesystem notifications. Default: true.
func WithPolling(poll bool) WatchOption {
	return func(c *watchConfig) {
		c.poll = poll
	}
}

// WithIncludeRawLine includes the original log line in Event.RawLine.
// Default: false.
func WithIncludeRawLine(include bool) WatchOption {
	return func(c *watchConfig) {
		c.includeRawLine = include
	}
}

// WithLogger sets a custom logger for debug output.
// If logger is nil, logging is disabled (default behavior).
func WithLogger(logger *slog.Logger) WatchOption {
	return func(c *watchConfig) {
		c.logger = logger
	}
}

// WithIncludeTypes filters events to only include the specified types.
// If called multiple times, only the last call takes effect.
func WithIncludeTypes(types ...event.Type) WatchOption {
	return func(c *watchConfig) {
		if c.filter == nil {
			c.filter = &compiledFilter{}
		}
		c.filter.include = make(map[event.Type]struct{}, len(types))
		for _, t := range types {
			c.filter.include[t] = struct{}{}
		}
	}
}

// WithExcludeTypes filters out events of the specified types.
// Exclude takes precedence over include.
// If called multiple times, only the last call takes effect.
func WithExcludeTypes(types ...event.Type) WatchOption {
	return func(c *watchConfig) {
		if c.filter == nil {
			c.filter = &compiledFilter{}
		}
		c.filter.exclude = make(map[event.Type]struct{}, len(types))
		for _, t := range types {
			c.filter.exclude[t] = struct{}{}
		}
	}
}

// compiledFilter holds include/exclude sets for event types.
type compiledFilter struct {
	include map[event.Type]struct{}
	exclude map[event.Type]struct{}
}

// Allows reports whether events of type t pass the filter.
func (f *compiledFilter) Allows(t event.Type) bool {
	if f == nil {
		return true
	}
	if _, excluded := f.exclude[t]; excluded {
		return false
	}
	if len(f.include) == 0 {
		return true
	}
	_, included := f.include[t]
	return included
}
