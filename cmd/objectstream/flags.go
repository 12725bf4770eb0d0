package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration shared by all subcommands
type CLIConfig struct {
	ConfigPath     string
	configExplicit bool
	NATSURL        string
	Bucket         string
	LogLevel       string
	LogFormat      string
	MetricsPort    int
	Timeout        time.Duration
	ShowVersion    bool
}

func parseFlags() (*CLIConfig, []string) {
	cfg := &CLIConfig{}

	defaultConfig := getEnv("OBJECTSTREAM_CONFIG", "objectstream.yaml")

	// Define flags with environment variable fallback
	flag.StringVar(&cfg.ConfigPath, "config", defaultConfig,
		"Path to YAML configuration file (env: OBJECTSTREAM_CONFIG)")

	flag.StringVar(&cfg.NATSURL, "nats-url",
		getEnv("OBJECTSTREAM_NATS_URL", "nats://127.0.0.1:4222"),
		"NATS server URL (env: OBJECTSTREAM_NATS_URL)")

	flag.StringVar(&cfg.Bucket, "bucket",
		getEnv("OBJECTSTREAM_BUCKET", ""),
		"Object bucket name (env: OBJECTSTREAM_BUCKET)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("OBJECTSTREAM_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: OBJECTSTREAM_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("OBJECTSTREAM_LOG_FORMAT", "text"),
		"Log format: json, text (env: OBJECTSTREAM_LOG_FORMAT)")

	flag.IntVar(&cfg.MetricsPort, "metrics-port",
		getEnvInt("OBJECTSTREAM_METRICS_PORT", 0),
		"Prometheus metrics port for long-running commands, 0 to disable (env: OBJECTSTREAM_METRICS_PORT)")

	flag.DurationVar(&cfg.Timeout, "timeout",
		getEnvDuration("OBJECTSTREAM_TIMEOUT", 30*time.Second),
		"Per-operation timeout (env: OBJECTSTREAM_TIMEOUT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")

	flag.Usage = printDetailedHelp
	flag.Parse()

	cfg.configExplicit = cfg.ConfigPath != defaultConfig || os.Getenv("OBJECTSTREAM_CONFIG") != ""

	return cfg, flag.Args()
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion {
		return nil
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}

	if cfg.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - Object storage over NATS JetStream

Usage: %s [options] <command> [arguments]

Commands:
  put <name> [file]          Store a file (or stdin) as an object
  get <name> [file]          Read an object into a file (or stdout)
  info <name>                Show an object's metadata record
  rm <name>                  Soft-delete an object and purge its chunks
  rename <name> <new-name>   Rename an object without moving its data
  link <name> <target>       Create a link to an object (same or other bucket)
  watch                      Stream metadata updates for the bucket

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Store a file
  %s --bucket=files put release.tar.gz ./release.tar.gz

  # Stream stdin into an object
  cat dump.sql | %s --bucket=backups put dump.sql

  # Watch a bucket, new updates only
  %s --bucket=files watch --updates-only

  # Link to an object in another bucket
  %s --bucket=mirror link latest release.tar.gz --target-bucket=files

Version: %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
