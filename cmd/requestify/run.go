package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/requestify/requestify-go/internal/acquire"
	"github.com/requestify/requestify-go/internal/audio"
	"github.com/requestify/requestify-go/internal/audio/output"
	"github.com/requestify/requestify-go/internal/authgate"
	"github.com/requestify/requestify-go/internal/command"
	"github.com/requestify/requestify-go/internal/config"
	"github.com/requestify/requestify-go/internal/dispatch"
	"github.com/requestify/requestify-go/internal/engine"
	"github.com/requestify/requestify-go/internal/logpath"
	"github.com/requestify/requestify-go/internal/synth"
	"github.com/requestify/requestify-go/internal/tailer"
	"github.com/requestify/requestify-go/pkg/chatwatch"
	"github.com/requestify/requestify-go/pkg/chatwatch/event"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch the console log and serve chat commands",
	Long: `Watch the game's console log and execute chat commands.

Examples:
  # Run with auto-detected log file and default settings
  requestify run

  # Use a config file
  requestify run --config requestify.yaml

  # Debug logging
  requestify run --verbose`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	logFile, err := logpath.Resolve(cfg.LogFile, cfg.GameDir, cfg.LogFileName)
	if err != nil {
		return fmt.Errorf("locating console log: %w", err)
	}
	log.Info("watching console log", "path", logFile)

	out, err := output.New(cfg.Audio.Backend, cfg.Audio.Device, log)
	if err != nil {
		return fmt.Errorf("opening audio backend: %w", err)
	}

	eng, err := engine.New(out, audio.DefaultFormat, engine.WithLogger(log))
	if err != nil {
		return err
	}
	if err := eng.Start(ctx); err != nil {
		return err
	}
	defer eng.Stop()

	fetcher, err := acquire.New(audio.DefaultFormat,
		acquire.WithYtdlpPath(cfg.Tools.Ytdlp),
		acquire.WithFFmpegPath(cfg.Tools.FFmpeg),
		acquire.WithMaxDuration(cfg.MaxTrackDuration()),
		acquire.WithLogger(log),
	)
	if err != nil {
		return err
	}

	speaker, err := synth.New(audio.DefaultFormat,
		synth.WithLang(cfg.TTS.Lang),
		synth.WithGainDB(cfg.TTS.GainDB),
	)
	if err != nil {
		return err
	}

	disp := dispatch.New(fetcher, speaker, dispatch.WrapEngine(eng),
		dispatch.WithLogger(log),
		dispatch.WithConsole(os.Stdout),
		dispatch.WithMaxPending(cfg.QueueLimit),
	)
	dispDone := make(chan struct{})
	go func() {
		defer close(dispDone)
		disp.Run(ctx)
	}()
	defer func() { <-dispDone }()

	gate := authgate.New(cfg.Admins,
		authgate.WithCooldown(cfg.Cooldown()),
		authgate.WithDuplicateWindow(cfg.DuplicateWindow()),
	)

	registry, err := command.NewRegistry(cfg.Prefix)
	if err != nil {
		return err
	}

	watcher, err := chatwatch.NewWatcher(
		chatwatch.WithPath(logFile),
		chatwatch.WithLogger(log),
	)
	if err != nil {
		return err
	}
	defer watcher.Close()

	events, errs, err := watcher.Watch(ctx)
	if err != nil {
		return err
	}

	log.Info("ready", "prefix", cfg.Prefix, "admins", len(cfg.Admins))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			handleEvent(log, registry, gate, disp, ev)
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			if errors.Is(err, tailer.ErrLogUnavailable) {
				return fmt.Errorf("console log became unavailable: %w", err)
			}
			log.Warn("watch error", "error", err)
		}
	}
}

func handleEvent(log *slog.Logger, registry *command.Registry, gate *authgate.Gate, disp *dispatch.Dispatcher, ev event.Event) {
	if ev.Type != event.Chat {
		logGameEvent(log, ev)
		return
	}

	cmd, ok := registry.Parse(ev)
	if !ok {
		return
	}

	decision := gate.Decide(cmd)
	switch decision.Verdict {
	case authgate.Allow:
		disp.Submit(cmd)
	case authgate.Throttle:
		log.Info("command throttled",
			"user", cmd.Username, "kind", cmd.Kind.String(),
			"retry_after", decision.RetryAfter)
	case authgate.Deny:
		log.Info("command denied",
			"user", cmd.Username, "kind", cmd.Kind.String(),
			"reason", decision.Reason.String())
	}
}

func logGameEvent(log *slog.Logger, ev event.Event) {
	switch ev.Type {
	case event.Kill:
		log.Debug("kill", "killer", ev.Killer, "victim", ev.Victim,
			"weapon", ev.Weapon, "crit", ev.Crit)
	case event.Connect:
		log.Debug("player connected", "user", ev.Username)
	case event.Suicide:
		log.Debug("suicide", "user", ev.Username)
	}
}
