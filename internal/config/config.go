// Package config loads and validates the application configuration from an
// optional YAML file, a .env file, and REQUESTIFY_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// MaxConfigFileSize is the maximum allowed size for a config file (1MB).
// This limit prevents unbounded reads from a misconfigured path.
const MaxConfigFileSize = 1 * 1024 * 1024

// Environment variable names. REQUESTIFY_LOGFILE is consumed by the log
// path resolver, not here.
const (
	EnvPrefix  = "REQUESTIFY_PREFIX"
	EnvAdmins  = "REQUESTIFY_ADMINS"
	EnvBackend = "REQUESTIFY_BACKEND"
	EnvDevice  = "REQUESTIFY_DEVICE"
)

// TTS configures speech synthesis.
type TTS struct {
	Lang   string  `yaml:"lang"`
	GainDB float64 `yaml:"gain_db"`
}

// Audio configures the output device.
type Audio struct {
	// Backend is "oto" for the default device or "malgo" for device
	// selection.
	Backend string `yaml:"backend"`
	// Device is a case-insensitive substring of the playback device name.
	// Only meaningful with the malgo backend.
	Device string `yaml:"device"`
}

// Tools names the external binaries.
type Tools struct {
	Ytdlp  string `yaml:"ytdlp"`
	FFmpeg string `yaml:"ffmpeg"`
}

// Config is the full application configuration.
type Config struct {
	// LogFile is the console log to watch. Empty means auto-detect.
	LogFile string `yaml:"log_file"`
	// GameDir is the game directory to look for the log in when LogFile is
	// empty.
	GameDir string `yaml:"game_dir"`
	// LogFileName is the log file name looked for under GameDir or the
	// auto-detected game directory.
	LogFileName string `yaml:"log_file_name"`

	Prefix string   `yaml:"prefix"`
	Admins []string `yaml:"admins"`

	CooldownSeconds        int `yaml:"cooldown_seconds"`
	DuplicateWindowSeconds int `yaml:"duplicate_window_seconds"`
	QueueLimit             int `yaml:"queue_limit"`
	MaxTrackMinutes        int `yaml:"max_track_minutes"`

	TTS   TTS   `yaml:"tts"`
	Audio Audio `yaml:"audio"`
	Tools Tools `yaml:"tools"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Prefix:                 "!",
		CooldownSeconds:        30,
		DuplicateWindowSeconds: 3,
		QueueLimit:             16,
		MaxTrackMinutes:        10,
		TTS:                    TTS{Lang: "en", GainDB: 6},
		Audio:                  Audio{Backend: "oto"},
		Tools:                  Tools{Ytdlp: "yt-dlp", FFmpeg: "ffmpeg"},
	}
}

// Cooldown returns the per-user cooldown as a duration.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// DuplicateWindow returns the duplicate suppression window as a duration.
func (c *Config) DuplicateWindow() time.Duration {
	return time.Duration(c.DuplicateWindowSeconds) * time.Second
}

// MaxTrackDuration returns the per-track length cap as a duration.
func (c *Config) MaxTrackDuration() time.Duration {
	return time.Duration(c.MaxTrackMinutes) * time.Minute
}

// Load builds the configuration: defaults, then the YAML file at path (may
// be empty for defaults only), then a .env file in the working directory if
// present, then REQUESTIFY_* variables. Later sources win.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	// A missing .env is not an error.
	_ = godotenv.Load()
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile strictly decodes the YAML file into cfg. Unknown keys are
// rejected so typos surface instead of silently using defaults.
func loadFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	// Stat the file descriptor (not the path) to avoid TOCTOU
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("checking config file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return errors.New("config file must be a regular file")
	}
	if info.Size() > MaxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxConfigFileSize)
	}

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileSize+1))
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if len(data) > MaxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", len(data), MaxConfigFileSize)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvPrefix); v != "" {
		cfg.Prefix = v
	}
	if v := os.Getenv(EnvAdmins); v != "" {
		cfg.Admins = cfg.Admins[:0]
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.Admins = append(cfg.Admins, name)
			}
		}
	}
	if v := os.Getenv(EnvBackend); v != "" {
		cfg.Audio.Backend = v
	}
	if v := os.Getenv(EnvDevice); v != "" {
		cfg.Audio.Device = v
	}
}

// Validate checks the configuration for values the rest of the program
// cannot work with.
func (c *Config) Validate() error {
	if len(c.Prefix) != 1 || c.Prefix == " " {
		return fmt.Errorf("prefix must be a single character, got %q", c.Prefix)
	}
	if c.CooldownSeconds < 0 {
		return fmt.Errorf("cooldown_seconds must be non-negative, got %d", c.CooldownSeconds)
	}
	if c.DuplicateWindowSeconds < 0 {
		return fmt.Errorf("duplicate_window_seconds must be non-negative, got %d", c.DuplicateWindowSeconds)
	}
	if c.QueueLimit <= 0 {
		return fmt.Errorf("queue_limit must be positive, got %d", c.QueueLimit)
	}
	if c.MaxTrackMinutes <= 0 {
		return fmt.Errorf("max_track_minutes must be positive, got %d", c.MaxTrackMinutes)
	}
	switch c.Audio.Backend {
	case "oto", "malgo":
	default:
		return fmt.Errorf("audio backend must be oto or malgo, got %q", c.Audio.Backend)
	}
	if c.Audio.Backend == "oto" && c.Audio.Device != "" {
		return errors.New("audio device selection requires the malgo backend")
	}
	if c.TTS.Lang == "" {
		return errors.New("tts lang must not be empty")
	}
	if c.Tools.Ytdlp == "" || c.Tools.FFmpeg == "" {
		return errors.New("tool paths must not be empty")
	}
	return nil
}
