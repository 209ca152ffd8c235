// Package acquire turns a request argument, a URL or free-text search, into
// decoded PCM ready for the playback engine. YouTube links are resolved
// in-process; everything else goes through yt-dlp. The resolved stream is
// transcoded by ffmpeg into the engine's sample format.
package acquire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"

	"github.com/requestify/requestify-go/internal/audio"
)

// Kind classifies an acquisition failure.
type Kind int

const (
	// KindNotFound: the argument resolved to nothing playable.
	KindNotFound Kind = iota
	// KindNetwork: the source was found but could not be reached.
	KindNetwork
	// KindUnsupported: the source exists but cannot be played, e.g. it
	// exceeds the duration cap.
	KindUnsupported
	// KindDecode: the stream was fetched but transcoding failed.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindNetwork:
		return "network"
	case KindUnsupported:
		return "unsupported"
	case KindDecode:
		return "decode"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a classified acquisition failure for one argument.
type Error struct {
	Kind Kind
	Arg  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("acquire %q: %s: %v", e.Arg, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, arg string, err error) *Error {
	return &Error{Kind: kind, Arg: arg, Err: err}
}

// Defaults for the external tools and the length cap.
const (
	DefaultYtdlpPath   = "yt-dlp"
	DefaultFFmpegPath  = "ffmpeg"
	DefaultMaxDuration = 10 * time.Minute
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Pipeline resolves and transcodes request arguments.
type Pipeline struct {
	yt          *youtube.Client
	ytdlpPath   string
	ffmpegPath  string
	maxDuration time.Duration
	format      audio.Format
	log         *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithYtdlpPath overrides the yt-dlp binary name or path.
func WithYtdlpPath(path string) Option {
	return func(p *Pipeline) { p.ytdlpPath = path }
}

// WithFFmpegPath overrides the ffmpeg binary name or path.
func WithFFmpegPath(path string) Option {
	return func(p *Pipeline) { p.ffmpegPath = path }
}

// WithMaxDuration caps how much audio is transcoded per request.
func WithMaxDuration(d time.Duration) Option {
	return func(p *Pipeline) { p.maxDuration = d }
}

// WithLogger sets the pipeline logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

// New builds a pipeline producing audio in the given format.
func New(format audio.Format, opts ...Option) (*Pipeline, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		yt:          &youtube.Client{},
		ytdlpPath:   DefaultYtdlpPath,
		ffmpegPath:  DefaultFFmpegPath,
		maxDuration: DefaultMaxDuration,
		format:      format,
		log:         discardLogger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Fetch resolves arg to a stream and returns its transcoded audio. Failures
// tied to the argument come back as *Error; operator problems such as a
// missing ffmpeg binary come back as plain errors.
func (p *Pipeline) Fetch(ctx context.Context, arg string) (*audio.Buffer, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil, newError(KindNotFound, arg, errors.New("empty argument"))
	}

	streamURL, err := p.resolve(ctx, arg)
	if err != nil {
		return nil, err
	}
	p.log.Debug("resolved stream", "arg", arg)

	buf, err := p.transcode(ctx, arg, streamURL)
	if err != nil {
		return nil, err
	}
	p.log.Debug("transcoded stream", "arg", arg, "duration", buf.Duration())
	return buf, nil
}

func (p *Pipeline) resolve(ctx context.Context, arg string) (string, error) {
	if isYouTubeURL(arg) {
		return p.resolveYouTube(ctx, arg)
	}
	return p.resolveYtdlp(ctx, arg)
}

func (p *Pipeline) resolveYouTube(ctx context.Context, arg string) (string, error) {
	video, err := p.yt.GetVideoContext(ctx, arg)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", newError(KindNotFound, arg, err)
	}

	format := bestAudioFormat(video.Formats)
	if format == nil {
		return "", newError(KindUnsupported, arg, errors.New("no audio-only format available"))
	}

	streamURL, err := p.yt.GetStreamURLContext(ctx, video, format)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", newError(KindNetwork, arg, err)
	}
	return streamURL, nil
}

// bestAudioFormat picks the highest-bitrate format that carries audio,
// preferring audio-only streams.
func bestAudioFormat(formats youtube.FormatList) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if f.AudioChannels == 0 {
			continue
		}
		audioOnly := !strings.HasPrefix(f.MimeType, "video/")
		if best == nil {
			best = f
			continue
		}
		bestAudioOnly := !strings.HasPrefix(best.MimeType, "video/")
		if audioOnly != bestAudioOnly {
			if audioOnly {
				best = f
			}
			continue
		}
		if f.Bitrate > best.Bitrate {
			best = f
		}
	}
	return best
}

func (p *Pipeline) resolveYtdlp(ctx context.Context, arg string) (string, error) {
	args := []string{"--no-playlist", "-f", "bestaudio/best", "--get-url"}
	if !isURL(arg) {
		args = append(args, "--default-search", "ytsearch1")
	}
	args = append(args, arg)

	cmd := exec.CommandContext(ctx, p.ytdlpPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", newError(KindNotFound, arg, fmt.Errorf("yt-dlp: %s", firstLine(stderr.String())))
		}
		return "", fmt.Errorf("running %s: %w", p.ytdlpPath, err)
	}

	streamURL := firstLine(stdout.String())
	if streamURL == "" {
		return "", newError(KindNotFound, arg, errors.New("yt-dlp returned no stream URL"))
	}
	return streamURL, nil
}

// transcode pulls the stream through ffmpeg into raw interleaved s16le at
// the pipeline format. The duration cap is enforced by ffmpeg's -t, with a
// byte limit as backstop in case the container lies about its length.
func (p *Pipeline) transcode(ctx context.Context, arg, streamURL string) (*audio.Buffer, error) {
	maxBytes := int64(p.maxDuration.Seconds()+1) * int64(p.format.SampleRate) * int64(p.format.BytesPerFrame())

	cmd := exec.CommandContext(ctx, p.ffmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-i", streamURL,
		"-t", fmt.Sprintf("%.0f", p.maxDuration.Seconds()),
		"-f", "s16le",
		"-ar", fmt.Sprint(p.format.SampleRate),
		"-ac", fmt.Sprint(p.format.Channels),
		"-vn", "pipe:1",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", p.ffmpegPath, err)
	}

	raw, readErr := io.ReadAll(io.LimitReader(stdout, maxBytes+1))
	waitErr := cmd.Wait()

	switch {
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case readErr != nil:
		return nil, newError(KindDecode, arg, readErr)
	case int64(len(raw)) > maxBytes:
		return nil, newError(KindUnsupported, arg, fmt.Errorf("stream exceeds %v cap", p.maxDuration))
	case waitErr != nil:
		return nil, newError(KindDecode, arg, fmt.Errorf("ffmpeg: %s", firstLine(stderr.String())))
	case len(raw) == 0:
		return nil, newError(KindDecode, arg, errors.New("ffmpeg produced no audio"))
	}

	return &audio.Buffer{Samples: audio.SamplesFromBytes(raw), Format: p.format}, nil
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

var youtubeHosts = map[string]bool{
	"youtube.com":       true,
	"www.youtube.com":   true,
	"m.youtube.com":     true,
	"music.youtube.com": true,
	"youtu.be":          true,
}

func isYouTubeURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	return youtubeHosts[strings.ToLower(u.Host)]
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
