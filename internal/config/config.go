// Package config defines and validates bksd's runtime configuration. The
// daemon's CLI front end and service-unit installer are out of scope; this
// package only owns the recognised option set and its defaults.
package config

import (
	"fmt"

	"github.com/joshgermon/bksd/internal/logging"
)

// EngineKind selects which transfer engine the orchestrator uses for new
// jobs.
type EngineKind string

const (
	EngineNativeCopy EngineKind = "native_copy"
	EngineRsync      EngineKind = "rsync"
	EngineSimulated  EngineKind = "simulated"
)

// Config holds the recognised configuration options. Fields mirror the
// options table: backup_directory, transfer_engine, mount_base,
// simulation, verify_transfers, retry_attempts, verbose, log_json.
type Config struct {
	BackupDirectory string     `json:"backup_directory"`
	TransferEngine  EngineKind `json:"transfer_engine"`
	MountBase       string     `json:"mount_base"`
	Simulation      bool       `json:"simulation"`
	VerifyTransfers bool       `json:"verify_transfers"`
	RetryAttempts   int        `json:"retry_attempts"`
	Verbose         bool       `json:"verbose"`
	LogJSON         bool       `json:"log_json"`

	// SlackWebhookURL configures the Slack notification channel. Empty
	// means no notifier is wired.
	SlackWebhookURL string `json:"slack_webhook_url"`

	// StorePath is the SQLite database file backing the Store.
	StorePath string `json:"store_path"`
}

// Default returns the daemon's baked-in defaults, which cmd/bksd
// overrides from command-line flags.
func Default() *Config {
	return &Config{
		BackupDirectory: "/var/backups/bksd",
		TransferEngine:  EngineNativeCopy,
		MountBase:       "/run/bksd/mounts",
		Simulation:      false,
		VerifyTransfers: true,
		RetryAttempts:   0,
		Verbose:         false,
		LogJSON:         false,
		StorePath:       "/var/lib/bksd/bksd.db",
	}
}

// Validate rejects a configuration that cannot be started. Configuration
// errors are caught at startup, never deep in the pipeline.
func (c *Config) Validate() error {
	if c.BackupDirectory == "" {
		return fmt.Errorf("config: backup_directory must not be empty")
	}
	if c.MountBase == "" {
		return fmt.Errorf("config: mount_base must not be empty")
	}
	switch c.TransferEngine {
	case EngineNativeCopy, EngineRsync, EngineSimulated:
	default:
		return fmt.Errorf("config: unrecognised transfer_engine %q", c.TransferEngine)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("config: retry_attempts must not be negative")
	}
	return nil
}

// LogConfig translates Verbose/LogJSON into an internal/logging.Config.
func (c *Config) LogConfig() *logging.Config {
	lc := logging.DefaultConfig()
	lc.JSON = c.LogJSON
	if c.Verbose {
		lc.Level = logging.LevelDebug
	}
	return lc
}
