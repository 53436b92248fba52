// Command bksd-sim runs the daemon against the synthetic adapter, driven
// by "add [uuid] [sizeGB]" / "rm [uuid]" commands typed on stdin, for
// manual testing and demos without real removable media.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joshgermon/bksd"
	"github.com/joshgermon/bksd/internal/adapter"
	"github.com/joshgermon/bksd/internal/config"
	"github.com/joshgermon/bksd/internal/logging"
)

func main() {
	cfg := config.Default()
	cfg.Simulation = true
	cfg.TransferEngine = config.EngineSimulated
	cfg.BackupDirectory = "/tmp/bksd-sim/backups"
	cfg.StorePath = "/tmp/bksd-sim/bksd.db"

	logConfig := logging.DefaultConfig()
	logConfig.Level = logging.LevelDebug
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	if err := os.MkdirAll(cfg.BackupDirectory, 0o755); err != nil {
		logger.Error("failed to create backup directory", "error", err)
		os.Exit(1)
	}

	synth := adapter.NewSynthetic(os.Stdin)
	daemon, err := bksd.New(cfg, &bksd.Options{Logger: logger, Adapter: synth})
	if err != nil {
		logger.Error("failed to build daemon", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	fmt.Println("bksd-sim: type \"add <uuid> [sizeGB]\" or \"rm <uuid>\", Ctrl+C to quit")

	if err := daemon.Run(ctx); err != nil {
		logger.Error("daemon exited with error", "error", err)
		os.Exit(1)
	}
	_ = daemon.Stop()
}
