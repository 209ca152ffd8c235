package chatwatch

import (
	"errors"
	"fmt"
)

var (
	// ErrWatcherClosed is returned when Watch is called on a closed watcher.
	ErrWatcherClosed = errors.New("watcher is closed")
	// ErrAlreadyWatching is returned when Watch is called twice.
	ErrAlreadyWatching = errors.New("watcher is already watching")
	// ErrNoLogPath is returned when no log file path was configured.
	ErrNoLogPath = errors.New("no log file path configured")
)

// WatchOp identifies the watcher operation an error occurred in.
type WatchOp string

const (
	WatchOpTail  WatchOp = "tail"
	WatchOpParse WatchOp = "parse"
)

// WatchError wraps an error from the watch loop with its operation and the
// file it concerns.
type WatchError struct {
	Op   WatchOp
	Path string
	Err  error
}

func (e *WatchError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("chatwatch %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("chatwatch %s: %v", e.Op, e.Err)
}

func (e *WatchError) Unwrap() error { return e.Err }

// ParseError wraps a parse failure with the offending line.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing line %q: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
