// sandboxd is the bootstrap daemon of a container-sandbox runtime. At
// startup it forks a subreaper service that creates namespace-anchored
// sandbox leader processes on demand, then parks at the boundary where the
// sandbox-manager service loop takes over, forwarding reaped child exits to
// the monitor until a shutdown signal arrives.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/spf13/pflag"

	"github.com/nsfork/sandboxd"
	"github.com/nsfork/sandboxd/internal/version"
	"github.com/nsfork/sandboxd/monitor"
)

func main() {
	// Re-exec child modes (subreaper service, sandbox leaders) must be
	// dispatched before anything else runs.
	if sandboxd.MaybeChildInit() {
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sandboxd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		dir         string
		listen      string
		logLevel    string
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("sandboxd", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to YAML config file")
	flagSet.StringVar(&dir, "dir", "", "runtime state directory")
	flagSet.StringVar(&listen, "listen", "", "sandbox-manager listen address")
	flagSet.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flagSet.BoolVar(&showVersion, "version", false, "print version and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if showVersion {
		version.Print("sandboxd")
		return nil
	}

	cfg := sandboxd.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = sandboxd.LoadConfig(configPath); err != nil {
			return err
		}
	}
	// Flags override the config file.
	if flagSet.Changed("dir") {
		cfg.Dir = dir
	}
	if flagSet.Changed("listen") {
		cfg.Listen = listen
	}
	if flagSet.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := sandboxd.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.Dir, 0o711); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	// One daemon per state directory.
	lock := flock.New(filepath.Join(cfg.Dir, "sandboxd.lock"))
	held, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !held {
		return fmt.Errorf("another sandboxd is already running in %s", cfg.Dir)
	}
	defer lock.Unlock()

	// The subreaper service must be up before anything accepts lifecycle
	// calls; the handle stays valid for the whole process lifetime.
	handle, err := sandboxd.Start(logger)
	if err != nil {
		return err
	}
	defer handle.Close()

	mon := monitor.New()
	defer mon.Close()
	notifier := sandboxd.NewNotifier(mon, logger)
	defer notifier.Stop()
	go notifier.Run()

	logger.Info("sandboxd ready",
		"dir", cfg.Dir,
		"listen", cfg.Listen,
		"version", version.Version,
	)

	// The sandbox-manager service loop is an external collaborator driving
	// handle.Create from here on; this process stays alive to reap children
	// and to hold the bootstrap open until told to shut down.
	<-notifier.Done()
	logger.Info("shutting down")
	return nil
}
