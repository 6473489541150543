package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dbehnke/convfec/pkg/config"
	"github.com/dbehnke/convfec/pkg/logger"
	"github.com/dbehnke/convfec/pkg/web"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	// Parse command line flags
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	mode := flag.String("mode", "serve", "Run mode: encode, decode, sweep or serve")
	input := flag.String("input", "", "Bits to encode or symbols to decode (read from stdin when empty)")
	report := flag.String("report", "", "Write the sweep result as YAML to this file")
	showVersion := flag.Bool("version", false, "Show version information")
	validate := flag.Bool("validate", false, "Validate configuration and exit")
	flag.Parse()

	// Show version
	if *showVersion {
		fmt.Printf("convfec %s (commit %s, built %s)\n", version, commit, buildTime)
		os.Exit(0)
	}
	web.SetVersionInfo(version, commit, buildTime)

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		// No config means no logging section yet
		logger.New(logger.Config{Level: "info", Output: os.Stderr}).
			Error("Failed to load configuration", logger.Error(err))
		os.Exit(1)
	}

	// Stdout carries encode/decode output, so logs go to stderr
	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})

	// Validate only mode
	if *validate {
		log.Info("Configuration is valid", logger.String("config_file", *configFile))
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "encode":
		err = withInput(*input, func(in string) error { return runEncode(cfg, in, os.Stdout, log) })
	case "decode":
		err = withInput(*input, func(in string) error { return runDecode(cfg, in, os.Stdout) })
	case "sweep":
		err = runSweep(ctx, cfg, *report, os.Stdout, log)
	case "serve":
		log.Info("Starting convfec",
			logger.String("version", version),
			logger.String("build_time", buildTime))
		err = runServe(ctx, cfg, log)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil && err != context.Canceled {
		log.Error("convfec failed", logger.String("mode", *mode), logger.Error(err))
		os.Exit(1)
	}
}

// withInput calls fn with the -input value, or stdin when it was not given.
func withInput(flagValue string, fn func(string) error) error {
	if flagValue != "" {
		return fn(flagValue)
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("failed to read stdin: %w", err)
	}
	return fn(strings.TrimSpace(string(data)))
}
