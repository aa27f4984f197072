package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/chaz8081/whisperclip/internal/backend"
	"github.com/chaz8081/whisperclip/internal/capture"
	"github.com/chaz8081/whisperclip/internal/config"
	"github.com/chaz8081/whisperclip/internal/deliver"
	"github.com/chaz8081/whisperclip/internal/hotkey"
	"github.com/chaz8081/whisperclip/internal/housekeeping"
	"github.com/chaz8081/whisperclip/internal/logging"
	"github.com/chaz8081/whisperclip/internal/notify"
	"github.com/chaz8081/whisperclip/internal/pipeline"
	"github.com/chaz8081/whisperclip/internal/watcher"
)

// version is overridden by the linker for release builds.
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/whisperclip/config.yaml)")
	writeConfig := flag.Bool("write-config", false, "write a commented default config file and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("whisperclip", version)
		return
	}
	if *writeConfig {
		path, err := config.WriteDefault()
		if err != nil {
			fmt.Fprintln(os.Stderr, "writing config:", err)
			os.Exit(1)
		}
		if path == "" {
			fmt.Println("config already exists at", config.DefaultConfigPath())
			return
		}
		fmt.Println("wrote", path)
		return
	}

	cfg, err := config.Resolve(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config validation:", err)
		os.Exit(1)
	}

	log, closeLog, err := logging.Setup(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logging:", err)
		os.Exit(1)
	}
	defer closeLog()

	printBanner(cfg)

	notifier := notify.New(log)

	tr, err := backend.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("backend init failed")
	}

	pipe := pipeline.New(tr, deliver.New(cfg.Deliver.Mode, log), notifier, cfg.Transcribe.Timeout.Std(), log)

	recorder, err := capture.NewRecorder(cfg.Audio.SampleRate, cfg.Audio.Channels)
	if err != nil {
		log.Fatal().Err(err).Msg("audio init failed; check microphone permissions")
	}
	controller := capture.NewController(recorder, cfg.Audio, pipe.Submit, notifier, log)

	var watch *watcher.Watcher
	if cfg.Watch.Enabled {
		if err := os.MkdirAll(cfg.Watch.Dir, 0o755); err != nil {
			log.Warn().Err(err).Str("dir", cfg.Watch.Dir).Msg("watch dir unavailable, watching disabled")
		} else {
			watch = watcher.New(cfg.Watch.Dir, cfg.Watch.Extensions, pipe.Submit, log)
			if err := watch.Start(); err != nil {
				log.Warn().Err(err).Msg("watcher start failed, continuing without it")
				watch = nil
			}
		}
	}

	keeper := housekeeping.New(cfg.Housekeeping, cfg.Audio.RecordingsDir, pipe.CurrentPath, log)
	keeper.Start()

	listener := hotkey.NewListener(hotkey.Bindings{
		Record: cfg.Hotkeys.Record,
		Reset:  cfg.Hotkeys.Reset,
		Quit:   cfg.Hotkeys.Quit,
	}, log)
	go listener.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Info().
		Str("backend", tr.Name()).
		Str("record", cfg.Hotkeys.Record).
		Str("reset", cfg.Hotkeys.Reset).
		Str("quit", cfg.Hotkeys.Quit).
		Str("version", version).
		Msg("ready")

	shutdown := func() {
		controller.Stop()
		if watch != nil {
			watch.Stop()
		}
		keeper.Stop()
		pipe.Shutdown()
		recorder.Close()
		listener.Stop()

		c := pipe.Counters()
		log.Info().
			Int64("submitted", c.Submitted).
			Int64("completed", c.Completed).
			Int64("dropped", c.Dropped).
			Int64("failed", c.Failed).
			Msg("goodbye")
		closeLog()
	}

	actions := listener.Actions()
	for {
		select {
		case a, ok := <-actions:
			if !ok {
				log.Info().Msg("hotkey listener stopped")
				shutdown()
				return
			}
			guard(log, notifier, a.String(), func() {
				switch a {
				case hotkey.ActionRecord:
					controller.Toggle()
				case hotkey.ActionReset:
					pipe.Reset()
				case hotkey.ActionQuit:
					log.Info().Msg("quit hotkey pressed")
					shutdown()
					// Exit directly to avoid gohook's C cleanup crash.
					// The OS reclaims the event hook on process exit.
					os.Exit(0)
				}
			})

		case sig := <-sigCh:
			log.Info().Str("signal", sig.String()).Msg("shutting down")
			shutdown()
			os.Exit(0)
		}
	}
}

// errorNotifier is the slice of the notifier guard needs.
type errorNotifier interface {
	Error(category, hint string)
}

// guard runs one action handler, containing any panic so the event
// loop keeps serving the next hotkey or signal.
func guard(log zerolog.Logger, n errorNotifier, action string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("action", action).Msg("action handler crashed")
			n.Error("internal error", "recovered, still listening")
		}
	}()
	fn()
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	fmt.Println("=== whisperclip ===")
	fmt.Printf("  Backend:  %s\n", cfg.Transcribe.Backend)
	if cfg.Transcribe.Backend == "local" {
		fmt.Printf("  Model:    %s (%s)\n", cfg.Transcribe.Model, cfg.Transcribe.ModelsDir)
	}
	fmt.Printf("  Hotkeys:  record=%s reset=%s quit=%s\n", cfg.Hotkeys.Record, cfg.Hotkeys.Reset, cfg.Hotkeys.Quit)
	fmt.Printf("  Audio:    %dHz %dch -> %s\n", cfg.Audio.SampleRate, cfg.Audio.Channels, cfg.Audio.RecordingsDir)
	if cfg.Watch.Enabled {
		fmt.Printf("  Watch:    %s %v\n", cfg.Watch.Dir, cfg.Watch.Extensions)
	}
	fmt.Printf("  Deliver:  %s\n", cfg.Deliver.Mode)
	if cfg.Housekeeping.Enabled && cfg.Housekeeping.MaxAgeDays > 0 {
		fmt.Printf("  Cleanup:  recordings older than %d days\n", cfg.Housekeeping.MaxAgeDays)
	}
	fmt.Println("===================")
}
