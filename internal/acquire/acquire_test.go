package acquire

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/kkdai/youtube/v2"

	"github.com/requestify/requestify-go/internal/audio"
)

// stubBinary writes an executable shell script and returns its path.
func stubBinary(t *testing.T, name, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatalf("writing stub %s: %v", name, err)
	}
	return path
}

func TestIsYouTubeURL(t *testing.T) {
	tests := []struct {
		arg  string
		want bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"https://youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", true},
		{"https://music.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"http://m.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"https://example.com/watch?v=dQw4w9WgXcQ", false},
		{"https://soundcloud.com/some/track", false},
		{"youtube.com/watch?v=dQw4w9WgXcQ", false},
		{"darude sandstorm", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isYouTubeURL(tt.arg); got != tt.want {
			t.Errorf("isYouTubeURL(%q) = %v, want %v", tt.arg, got, tt.want)
		}
	}
}

func TestIsURL(t *testing.T) {
	tests := []struct {
		arg  string
		want bool
	}{
		{"https://soundcloud.com/some/track", true},
		{"http://example.com/file.mp3", true},
		{"ftp://example.com/file.mp3", false},
		{"never gonna give you up", false},
		{"https://", false},
	}
	for _, tt := range tests {
		if got := isURL(tt.arg); got != tt.want {
			t.Errorf("isURL(%q) = %v, want %v", tt.arg, got, tt.want)
		}
	}
}

func TestFirstLine(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://cdn.example/a\n", "https://cdn.example/a"},
		{"first\nsecond\n", "first"},
		{"  padded  \n", "padded"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := firstLine(tt.in); got != tt.want {
			t.Errorf("firstLine(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBestAudioFormat(t *testing.T) {
	formats := youtube.FormatList{
		{MimeType: "video/mp4", AudioChannels: 2, Bitrate: 900000},
		{MimeType: "audio/webm", AudioChannels: 2, Bitrate: 64000},
		{MimeType: "audio/mp4", AudioChannels: 2, Bitrate: 128000},
		{MimeType: "video/webm", AudioChannels: 0, Bitrate: 2000000},
	}
	best := bestAudioFormat(formats)
	if best == nil {
		t.Fatal("no format picked")
	}
	if best.MimeType != "audio/mp4" || best.Bitrate != 128000 {
		t.Errorf("picked %s at %d, want audio/mp4 at 128000", best.MimeType, best.Bitrate)
	}

	if got := bestAudioFormat(youtube.FormatList{{MimeType: "video/webm", AudioChannels: 0}}); got != nil {
		t.Errorf("picked a silent format: %+v", got)
	}

	// Without an audio-only stream the muxed one is still usable.
	muxed := bestAudioFormat(youtube.FormatList{{MimeType: "video/mp4", AudioChannels: 2, Bitrate: 900000}})
	if muxed == nil || muxed.MimeType != "video/mp4" {
		t.Errorf("muxed fallback not picked: %+v", muxed)
	}
}

func TestErrorFormatting(t *testing.T) {
	inner := errors.New("boom")
	err := newError(KindNotFound, "some song", inner)
	if !errors.Is(err, inner) {
		t.Error("Unwrap does not reach the inner error")
	}
	var typed *Error
	if !errors.As(error(err), &typed) {
		t.Fatal("errors.As failed for *Error")
	}
	if typed.Kind != KindNotFound || typed.Arg != "some song" {
		t.Errorf("got %+v", typed)
	}
}

func TestFetchEmptyArgument(t *testing.T) {
	p, err := New(audio.DefaultFormat)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = p.Fetch(context.Background(), "   ")
	var typed *Error
	if !errors.As(err, &typed) || typed.Kind != KindNotFound {
		t.Errorf("Fetch(blank) err = %v, want KindNotFound", err)
	}
}

func TestResolveYtdlp(t *testing.T) {
	ytdlp := stubBinary(t, "yt-dlp", `echo "https://cdn.example/stream"`)
	p, err := New(audio.DefaultFormat, WithYtdlpPath(ytdlp))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := p.resolveYtdlp(context.Background(), "darude sandstorm")
	if err != nil {
		t.Fatalf("resolveYtdlp: %v", err)
	}
	if got != "https://cdn.example/stream" {
		t.Errorf("stream URL = %q", got)
	}
}

func TestResolveYtdlpFailure(t *testing.T) {
	ytdlp := stubBinary(t, "yt-dlp", `echo "ERROR: nothing matched" >&2; exit 1`)
	p, err := New(audio.DefaultFormat, WithYtdlpPath(ytdlp))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = p.resolveYtdlp(context.Background(), "no such song")
	var typed *Error
	if !errors.As(err, &typed) || typed.Kind != KindNotFound {
		t.Fatalf("err = %v, want KindNotFound", err)
	}
}

func TestResolveYtdlpEmptyOutput(t *testing.T) {
	ytdlp := stubBinary(t, "yt-dlp", `exit 0`)
	p, err := New(audio.DefaultFormat, WithYtdlpPath(ytdlp))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = p.resolveYtdlp(context.Background(), "anything")
	var typed *Error
	if !errors.As(err, &typed) || typed.Kind != KindNotFound {
		t.Errorf("err = %v, want KindNotFound", err)
	}
}

func TestResolveYtdlpMissingBinary(t *testing.T) {
	p, err := New(audio.DefaultFormat, WithYtdlpPath(filepath.Join(t.TempDir(), "missing")))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = p.resolveYtdlp(context.Background(), "anything")
	if err == nil {
		t.Fatal("expected an error")
	}
	var typed *Error
	if errors.As(err, &typed) {
		t.Errorf("missing binary classified as %v, want a plain error", typed.Kind)
	}
}

func TestTranscode(t *testing.T) {
	// 1024 zero bytes of s16le is 256 stereo frames of silence.
	ffmpeg := stubBinary(t, "ffmpeg", `head -c 1024 /dev/zero`)
	p, err := New(audio.DefaultFormat, WithFFmpegPath(ffmpeg))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	buf, err := p.transcode(context.Background(), "arg", "https://cdn.example/stream")
	if err != nil {
		t.Fatalf("transcode: %v", err)
	}
	if len(buf.Samples) != 512 {
		t.Errorf("got %d samples, want 512", len(buf.Samples))
	}
	if buf.Format != audio.DefaultFormat {
		t.Errorf("format = %+v", buf.Format)
	}
}

func TestTranscodeFailure(t *testing.T) {
	ffmpeg := stubBinary(t, "ffmpeg", `echo "stream: Invalid data found" >&2; exit 1`)
	p, err := New(audio.DefaultFormat, WithFFmpegPath(ffmpeg))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = p.transcode(context.Background(), "arg", "https://cdn.example/stream")
	var typed *Error
	if !errors.As(err, &typed) || typed.Kind != KindDecode {
		t.Fatalf("err = %v, want KindDecode", err)
	}
}

func TestTranscodeEmptyOutput(t *testing.T) {
	ffmpeg := stubBinary(t, "ffmpeg", `exit 0`)
	p, err := New(audio.DefaultFormat, WithFFmpegPath(ffmpeg))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = p.transcode(context.Background(), "arg", "https://cdn.example/stream")
	var typed *Error
	if !errors.As(err, &typed) || typed.Kind != KindDecode {
		t.Errorf("err = %v, want KindDecode", err)
	}
}

func TestTranscodeDurationCap(t *testing.T) {
	// Two seconds of cap at 48kHz stereo is about 576KiB plus slack; emit
	// well past that.
	ffmpeg := stubBinary(t, "ffmpeg", `head -c 1200000 /dev/zero`)
	p, err := New(audio.DefaultFormat, WithFFmpegPath(ffmpeg), WithMaxDuration(2*time.Second))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = p.transcode(context.Background(), "arg", "https://cdn.example/stream")
	var typed *Error
	if !errors.As(err, &typed) || typed.Kind != KindUnsupported {
		t.Errorf("err = %v, want KindUnsupported", err)
	}
}

func TestTranscodeContextCancelled(t *testing.T) {
	ffmpeg := stubBinary(t, "ffmpeg", `sleep 30`)
	p, err := New(audio.DefaultFormat, WithFFmpegPath(ffmpeg))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = p.transcode(ctx, "arg", "https://cdn.example/stream")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
}
