package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "requestify.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvPrefix, EnvAdmins, EnvBackend, EnvDevice} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Prefix != "!" {
		t.Errorf("prefix = %q, want !", cfg.Prefix)
	}
	if cfg.Cooldown() != 30*time.Second {
		t.Errorf("cooldown = %v, want 30s", cfg.Cooldown())
	}
	if cfg.DuplicateWindow() != 3*time.Second {
		t.Errorf("duplicate window = %v, want 3s", cfg.DuplicateWindow())
	}
	if cfg.Audio.Backend != "oto" {
		t.Errorf("backend = %q, want oto", cfg.Audio.Backend)
	}
	if cfg.TTS.Lang != "en" || cfg.TTS.GainDB != 6 {
		t.Errorf("tts = %+v", cfg.TTS)
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
prefix: "."
admins:
  - AdminUser
  - OtherAdmin
game_dir: /opt/tf2
log_file_name: console2.log
cooldown_seconds: 10
audio:
  backend: malgo
  device: "USB Speakers"
tts:
  lang: de
  gain_db: 3
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Prefix != "." {
		t.Errorf("prefix = %q", cfg.Prefix)
	}
	if len(cfg.Admins) != 2 || cfg.Admins[0] != "AdminUser" {
		t.Errorf("admins = %v", cfg.Admins)
	}
	if cfg.CooldownSeconds != 10 {
		t.Errorf("cooldown_seconds = %d", cfg.CooldownSeconds)
	}
	// Values not present in the file keep their defaults.
	if cfg.DuplicateWindowSeconds != 3 {
		t.Errorf("duplicate_window_seconds = %d, want default 3", cfg.DuplicateWindowSeconds)
	}
	if cfg.Audio.Backend != "malgo" || cfg.Audio.Device != "USB Speakers" {
		t.Errorf("audio = %+v", cfg.Audio)
	}
	if cfg.TTS.Lang != "de" {
		t.Errorf("tts lang = %q", cfg.TTS.Lang)
	}
	if cfg.GameDir != "/opt/tf2" || cfg.LogFileName != "console2.log" {
		t.Errorf("log location = %q in %q", cfg.LogFileName, cfg.GameDir)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "prefxi: \"!\"\n")
	if _, err := Load(path); err == nil {
		t.Error("a misspelled key was silently accepted")
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("a missing config file was silently accepted")
	}
}

func TestLoadRejectsHugeFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "# "+strings.Repeat("x", MaxConfigFileSize)+"\n")
	if _, err := Load(path); err == nil {
		t.Error("an oversized config file was accepted")
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "prefix: \".\"\nadmins: [FileAdmin]\n")

	t.Setenv(EnvPrefix, "?")
	t.Setenv(EnvAdmins, "EnvAdmin, SecondAdmin")
	t.Setenv(EnvBackend, "malgo")
	t.Setenv(EnvDevice, "Headphones")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Prefix != "?" {
		t.Errorf("prefix = %q, want env override", cfg.Prefix)
	}
	if len(cfg.Admins) != 2 || cfg.Admins[0] != "EnvAdmin" || cfg.Admins[1] != "SecondAdmin" {
		t.Errorf("admins = %v, want env override", cfg.Admins)
	}
	if cfg.Audio.Backend != "malgo" || cfg.Audio.Device != "Headphones" {
		t.Errorf("audio = %+v", cfg.Audio)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{name: "multi-char prefix", mutate: func(c *Config) { c.Prefix = "!!" }, wantErr: true},
		{name: "empty prefix", mutate: func(c *Config) { c.Prefix = "" }, wantErr: true},
		{name: "negative cooldown", mutate: func(c *Config) { c.CooldownSeconds = -1 }, wantErr: true},
		{name: "zero cooldown allowed", mutate: func(c *Config) { c.CooldownSeconds = 0 }},
		{name: "zero queue limit", mutate: func(c *Config) { c.QueueLimit = 0 }, wantErr: true},
		{name: "unknown backend", mutate: func(c *Config) { c.Audio.Backend = "pulse" }, wantErr: true},
		{name: "device without malgo", mutate: func(c *Config) { c.Audio.Device = "USB" }, wantErr: true},
		{name: "device with malgo", mutate: func(c *Config) { c.Audio.Backend = "malgo"; c.Audio.Device = "USB" }},
		{name: "empty tts lang", mutate: func(c *Config) { c.TTS.Lang = "" }, wantErr: true},
		{name: "empty ffmpeg path", mutate: func(c *Config) { c.Tools.FFmpeg = "" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
