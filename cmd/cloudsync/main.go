// Package main implements the cloudsync binary: background replication of
// the local practice database to the cloud store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/dentistedb/cloudsync/internal/log"
	"github.com/dentistedb/cloudsync/internal/remote"
	"github.com/dentistedb/cloudsync/internal/store"
	"github.com/dentistedb/cloudsync/internal/sync"
)

// Config holds the application configuration
type Config struct {
	LocalDB    string `short:"d" env:"CLOUDSYNC_LOCAL_DB" long:"local-db" description:"Path to the local practice database" default:"~/.dentistedb/patients.db"`
	RemoteDSN  string `short:"r" env:"CLOUDSYNC_REMOTE_DSN" long:"remote-dsn" description:"Cloud store connection string"`
	LogLevel   string `short:"l" env:"CLOUDSYNC_LOG_LEVEL" long:"log-level" description:"Log level: debug|info|warn|error" default:"info"`
	Interval   int    `short:"i" env:"CLOUDSYNC_INTERVAL" long:"interval" description:"Minutes between scheduled sync cycles" default:"30"`
	NoAutoSync bool   `env:"CLOUDSYNC_NO_AUTO_SYNC" long:"no-auto-sync" description:"Keep the worker idle; sync only on manual trigger"`
	Once       bool   `long:"once" description:"Run a single sync cycle and exit"`
	Version    bool   `short:"v" long:"version" description:"Show version information"`
	Help       bool
}

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ParseCLI parses command-line arguments and returns the configuration
func ParseCLI(args []string) (cmdOpts *Config, err error) {
	cmdOpts = new(Config)
	parser := flags.NewParser(cmdOpts, flags.HelpFlag)
	parser.SubcommandsOptional = true
	nonParsedArgs, err := parser.ParseArgs(args)
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			cmdOpts.Help = true
		}
		if !flags.WroteHelp(err) {
			parser.WriteHelp(os.Stdout)
		}
		return cmdOpts, err
	}
	if len(nonParsedArgs) > 0 { // we don't expect any non-parsed arguments
		return cmdOpts, fmt.Errorf("unknown argument(s): %v", nonParsedArgs)
	}
	return
}

// ShowVersion prints version information and exits
func ShowVersion() {
	fmt.Printf("cloudsync version %s\n", version)
	if commit != "none" && commit != "" {
		fmt.Printf("commit: %s\n", commit)
	}
	if date != "unknown" && date != "" {
		fmt.Printf("built: %s\n", date)
	}
}

// SetupLogging configures the logging system with structured output
func SetupLogging(logLevel string) error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(log.NewFormatter(false))

	logrus.WithFields(logrus.Fields{
		"version": version,
		"commit":  commit,
		"pid":     os.Getpid(),
	}).Info("cloudsync logging initialized")

	return nil
}

// SetupCloseHandler creates a 'listener' on a new goroutine which will notify the
// program if it receives an interrupt from the OS. We then handle this by calling
// our clean up procedure and exiting the program.
func SetupCloseHandler(cancel context.CancelFunc) {
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		logrus.Debug("SetupCloseHandler received an interrupt from OS. Closing session...")
		cancel()
	}()
}

// ExpandHome resolves a leading ~/ against the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}

func main() {
	// Quick check for version flags before full parsing
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-v" {
			ShowVersion()
			os.Exit(0)
		}
	}

	// Load credentials from .env if present, before flags read the environment
	if err := godotenv.Load(); err == nil {
		logrus.Debug("Loaded environment from .env")
	}

	config, err := ParseCLI(os.Args[1:])
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Printf("Error: %s\n", err)
		os.Exit(1)
	}

	if err := SetupLogging(config.LogLevel); err != nil {
		logrus.WithError(err).Fatal("Failed to setup logging")
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	SetupCloseHandler(cancel)

	localPath, err := ExpandHome(config.LocalDB)
	if err != nil {
		logrus.WithError(err).Fatal("Invalid local database path")
	}

	localStore, err := store.Open(localPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to open local database")
	}
	defer func() { _ = localStore.Close() }()

	cursors := store.NewCursorStore(localStore)
	if err := cursors.EnsureSchema(ctx); err != nil {
		logrus.WithError(err).Fatal("Failed to prepare cursor table")
	}

	// Connect to the cloud store with retry logic
	pool, err := remote.NewWithRetry(ctx, config.RemoteDSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to cloud store after retries")
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to acquire connection for migrations")
	}
	err = remote.ApplyMigrations(ctx, conn.Conn())
	conn.Release()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to apply remote schema migrations")
	}

	// Referenced entities before referencing ones: patients, then visits.
	engineCfg := sync.DefaultConfig()
	engineCfg.Interval = time.Duration(config.Interval) * time.Minute
	engineCfg.AutoSync = !config.NoAutoSync
	engine := sync.NewEngine(engineCfg, cursors,
		sync.NewPatientReplicator(localStore, pool),
		sync.NewVisitReplicator(localStore, pool),
	)

	if config.Once {
		result := engine.SyncNow(ctx, true)
		if result.Status != sync.StatusSuccess {
			logrus.WithField("error", result.Err).Fatal("Sync failed")
		}
		logrus.WithField("records", result.RecordsSynced).Info("Sync completed")
		return
	}

	engine.Start()
	<-ctx.Done()
	engine.Stop()

	logrus.Info("Graceful shutdown completed")
}
