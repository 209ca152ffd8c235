// Package tailer follows an append-only console log. It is a thin wrapper
// around nxadm/tail configured for a live game log: the file may not exist
// yet, is rewritten in place on game restart, and is written without line
// atomicity.
package tailer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nxadm/tail"
)

// ErrLogUnavailable reports that the log file became permanently
// unreadable. It is the only fatal condition the tailer produces; everything
// else (missing file, truncation, partial writes) is handled in place.
var ErrLogUnavailable = errors.New("log file unavailable")

// lineBuffer is the capacity of the Lines channel. The game can flush many
// lines in one write; a small buffer keeps the tail goroutine from stalling
// while the consumer parses.
const lineBuffer = 64

// Config controls tailing behavior.
type Config struct {
	// FromStart reads the file from offset 0 instead of seeking to the
	// end. Normal operation tails from the end: the log is a live event
	// source, not a store to replay.
	FromStart bool

	// Poll forces polling instead of inotify. Polling is the safe choice
	// for files on case-insensitive or network mounts (Proton prefixes).
	Poll bool
}

// DefaultConfig returns the tailing configuration for a live session.
func DefaultConfig() Config {
	return Config{FromStart: false, Poll: true}
}

// Tailer emits complete lines appended to a single file.
type Tailer struct {
	t     *tail.Tail
	lines chan string
	errs  chan error
}

// New starts tailing path. The file does not have to exist yet; tailing
// begins once it appears. Truncation resets the read offset to the new
// beginning. Lines are only emitted once terminated, so partial writes
// stay buffered.
func New(ctx context.Context, path string, cfg Config) (*Tailer, error) {
	var location *tail.SeekInfo
	if !cfg.FromStart {
		location = &tail.SeekInfo{Whence: io.SeekEnd}
	}

	t, err := tail.TailFile(path, tail.Config{
		Follow:        true,
		ReOpen:        true,
		MustExist:     false,
		Poll:          cfg.Poll,
		CompleteLines: true,
		Location:      location,
		Logger:        tail.DiscardingLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("tailing %s: %w", path, err)
	}

	tl := &Tailer{
		t:     t,
		lines: make(chan string, lineBuffer),
		errs:  make(chan error, 1),
	}
	go tl.run(ctx)
	return tl, nil
}

// Lines returns the channel of complete lines. Closed when the context is
// cancelled or the tail fails fatally.
func (tl *Tailer) Lines() <-chan string { return tl.lines }

// Errors returns the channel of fatal tail errors. At most one error is
// sent, wrapped in ErrLogUnavailable.
func (tl *Tailer) Errors() <-chan error { return tl.errs }

// Stop halts tailing and releases the file handle.
func (tl *Tailer) Stop() error {
	return tl.t.Stop()
}

func (tl *Tailer) run(ctx context.Context) {
	defer close(tl.lines)
	defer close(tl.errs)
	defer tl.t.Cleanup()

	for {
		select {
		case <-ctx.Done():
			_ = tl.t.Stop()
			return
		case line, ok := <-tl.t.Lines:
			if !ok {
				// Channel closed: either Stop was called or the
				// tail died. Err distinguishes the two.
				if err := tl.t.Err(); err != nil {
					tl.errs <- fmt.Errorf("%w: %v", ErrLogUnavailable, err)
				}
				return
			}
			if line.Err != nil {
				tl.errs <- fmt.Errorf("%w: %v", ErrLogUnavailable, line.Err)
				_ = tl.t.Stop()
				return
			}
			text := strings.TrimRight(line.Text, "\r")
			select {
			case tl.lines <- text:
			case <-ctx.Done():
				_ = tl.t.Stop()
				return
			}
		}
	}
}
