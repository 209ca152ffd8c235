// Package synth turns chat text into speech audio. It fetches MP3 speech
// from the Google Translate TTS endpoint, decodes it, resamples to the
// engine format, and applies a gain boost so speech cuts through whatever
// is playing underneath.
package synth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/requestify/requestify-go/internal/audio"
	"github.com/requestify/requestify-go/internal/audio/resample"
)

var (
	// ErrEmptyText is returned for blank input.
	ErrEmptyText = errors.New("empty text")
	// ErrTextTooLong is returned when the text exceeds the endpoint's
	// per-request limit.
	ErrTextTooLong = errors.New("text too long")
)

const (
	// DefaultBaseURL is the public Translate endpoint.
	DefaultBaseURL = "https://translate.google.com"
	// DefaultLang is the speech language.
	DefaultLang = "en"
	// DefaultGainDB boosts speech above regular playback.
	DefaultGainDB = 6.0

	// maxTextLen is the endpoint's practical per-request text limit.
	maxTextLen = 200
	// maxBodyBytes caps the fetched MP3.
	maxBodyBytes = 4 << 20

	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"
)

// Client fetches and decodes speech audio.
type Client struct {
	httpClient *http.Client
	baseURL    string
	lang       string
	gainDB     float64
	format     audio.Format
}

// Option configures a Client.
type Option func(*Client)

// WithLang sets the speech language code, e.g. "en" or "de".
func WithLang(lang string) Option {
	return func(c *Client) { c.lang = lang }
}

// WithGainDB sets the gain applied to decoded speech, in decibels.
func WithGainDB(db float64) Option {
	return func(c *Client) { c.gainDB = db }
}

// WithBaseURL overrides the endpoint. Test use.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(base, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New builds a client producing audio in the given format.
func New(format audio.Format, opts ...Option) (*Client, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    DefaultBaseURL,
		lang:       DefaultLang,
		gainDB:     DefaultGainDB,
		format:     format,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Speak synthesizes text into audio in the client's format.
func (c *Client) Speak(ctx context.Context, text string) (*audio.Buffer, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if utf8.RuneCountInString(text) > maxTextLen {
		return nil, ErrTextTooLong
	}

	raw, err := c.fetch(ctx, text)
	if err != nil {
		return nil, err
	}

	buf, err := decodeMP3(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding speech: %w", err)
	}

	buf = resample.Buffer(buf, c.format)
	applyGain(buf.Samples, c.gainDB)
	return buf, nil
}

func (c *Client) fetch(ctx context.Context, text string) ([]byte, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", c.lang)
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/translate_tts?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching speech: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("speech endpoint returned %s", resp.Status)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading speech body: %w", err)
	}
	if len(raw) > maxBodyBytes {
		return nil, errors.New("speech body exceeds size cap")
	}
	if len(raw) == 0 {
		return nil, errors.New("speech endpoint returned an empty body")
	}
	return raw, nil
}

// decodeMP3 decodes an MP3 into PCM. The decoder always emits stereo s16le
// at the file's native rate.
func decodeMP3(raw []byte) (*audio.Buffer, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, err
	}
	if len(pcm) == 0 {
		return nil, errors.New("no audio frames")
	}
	return &audio.Buffer{
		Samples: audio.SamplesFromBytes(pcm),
		Format:  audio.Format{SampleRate: dec.SampleRate(), Channels: 2},
	}, nil
}

// applyGain scales samples by db decibels, clamping at the int16 range.
func applyGain(samples []int16, db float64) {
	if db == 0 {
		return
	}
	factor := math.Pow(10, db/20)
	for i, s := range samples {
		samples[i] = audio.ClampInt32(int32(float64(s) * factor))
	}
}
