// Command bksd watches for removable-storage attach events and backs
// each device up to a dated directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joshgermon/bksd"
	"github.com/joshgermon/bksd/internal/config"
	"github.com/joshgermon/bksd/internal/logging"
)

func main() {
	var (
		backupDir  = flag.String("backup-directory", "", "root path for dated job destinations (overrides default)")
		mountBase  = flag.String("mount-base", "", "root path for daemon-owned mount points (overrides default)")
		engineFlag = flag.String("transfer-engine", "", "native_copy, rsync, or simulated (overrides default)")
		simulate   = flag.Bool("simulation", false, "use the synthetic adapter and skip verification")
		verify     = flag.Bool("verify-transfers", true, "run the verifier after a copy completes")
		slackHook  = flag.String("slack-webhook-url", "", "Slack incoming webhook for job notifications")
		storePath  = flag.String("store-path", "", "SQLite database path (overrides default)")
		verbose    = flag.Bool("v", false, "verbose logging")
		logJSON    = flag.Bool("log-json", false, "emit structured JSON logs")
	)
	flag.Parse()

	cfg := config.Default()
	if *backupDir != "" {
		cfg.BackupDirectory = *backupDir
	}
	if *mountBase != "" {
		cfg.MountBase = *mountBase
	}
	if *engineFlag != "" {
		cfg.TransferEngine = config.EngineKind(*engineFlag)
	}
	if *storePath != "" {
		cfg.StorePath = *storePath
	}
	cfg.Simulation = *simulate
	cfg.VerifyTransfers = *verify
	cfg.SlackWebhookURL = *slackHook
	cfg.Verbose = *verbose
	cfg.LogJSON = *logJSON

	logger := logging.NewLogger(cfg.LogConfig())
	logging.SetDefault(logger)

	daemon, err := bksd.New(cfg, &bksd.Options{Logger: logger})
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
		logger.Info("received shutdown signal")
		cancel()
	}()

	logger.Info("bksd starting",
		"backup_directory", cfg.BackupDirectory,
		"transfer_engine", string(cfg.TransferEngine),
		"simulation", cfg.Simulation)
	fmt.Printf("bksd watching for removable storage; backing up to %s\n", cfg.BackupDirectory)

	if err := daemon.Run(ctx); err != nil {
		logger.Error("daemon exited with error", "error", err)
		os.Exit(1)
	}

	if err := daemon.Stop(); err != nil {
		logger.Error("error during shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("bksd stopped")
}
