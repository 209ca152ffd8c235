package tailer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// collect drains lines from the tailer into a slice for assertions.
func collect(t *testing.T, tl *Tailer) func() []string {
	t.Helper()
	var mu sync.Mutex
	var lines []string
	go func() {
		for line := range tl.Lines() {
			mu.Lock()
			lines = append(lines, line)
			mu.Unlock()
		}
	}()
	return func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), lines...)
	}
}

func appendFile(t *testing.T, path, data string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(data)
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())
}

func TestTailEmitsAppendedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "console.log")
	appendFile(t, path, "old line\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tl, err := New(ctx, path, DefaultConfig())
	require.NoError(t, err)
	defer tl.Stop()

	got := collect(t, tl)

	// Give the tail a moment to seek to the end before appending.
	time.Sleep(200 * time.Millisecond)
	appendFile(t, path, "first\nsecond\n")

	require.Eventually(t, func() bool {
		return len(got()) == 2
	}, 5*time.Second, 50*time.Millisecond)

	lines := got()
	require.Equal(t, []string{"first", "second"}, lines)
}

func TestTailWaitsForMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "console.log")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tl, err := New(ctx, path, DefaultConfig())
	require.NoError(t, err)
	defer tl.Stop()

	got := collect(t, tl)

	time.Sleep(200 * time.Millisecond)
	appendFile(t, path, "late arrival\n")

	require.Eventually(t, func() bool {
		lines := got()
		return len(lines) == 1 && lines[0] == "late arrival"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestTailPartialWriteBuffersUntilTerminator(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "console.log")
	appendFile(t, path, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tl, err := New(ctx, path, DefaultConfig())
	require.NoError(t, err)
	defer tl.Stop()

	got := collect(t, tl)

	time.Sleep(200 * time.Millisecond)
	appendFile(t, path, "half a ")
	time.Sleep(300 * time.Millisecond)
	require.Empty(t, got(), "no line should be emitted before the terminator")

	appendFile(t, path, "line\n")
	require.Eventually(t, func() bool {
		lines := got()
		return len(lines) == 1 && lines[0] == "half a line"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestTailTruncationResetsOffset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "console.log")
	appendFile(t, path, "pre-truncation content\nmore content\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tl, err := New(ctx, path, DefaultConfig())
	require.NoError(t, err)
	defer tl.Stop()

	got := collect(t, tl)
	time.Sleep(200 * time.Millisecond)

	// Truncate (game restart rewrites the log) and append a fresh line.
	require.NoError(t, os.Truncate(path, 0))
	time.Sleep(300 * time.Millisecond)
	appendFile(t, path, "fresh line\n")

	require.Eventually(t, func() bool {
		lines := got()
		return len(lines) == 1 && lines[0] == "fresh line"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestTailStripsCarriageReturn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "console.log")
	appendFile(t, path, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tl, err := New(ctx, path, DefaultConfig())
	require.NoError(t, err)
	defer tl.Stop()

	got := collect(t, tl)
	time.Sleep(200 * time.Millisecond)
	appendFile(t, path, "windows line\r\n")

	require.Eventually(t, func() bool {
		lines := got()
		return len(lines) == 1 && lines[0] == "windows line"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestTailContextCancelClosesChannels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "console.log")
	appendFile(t, path, "")

	ctx, cancel := context.WithCancel(context.Background())
	tl, err := New(ctx, path, DefaultConfig())
	require.NoError(t, err)

	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-tl.Lines():
			return !ok
		default:
			return false
		}
	}, 5*time.Second, 50*time.Millisecond)
}
