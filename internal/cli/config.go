// Copyright (c) 2025, Gareth Watts
// All rights reserved.

package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/gwatts/macapps"
)

// Environment variables that provide defaults for the matching flags.
const (
	envFormat   = "MACAPPS_FORMAT"
	envProfiler = "MACAPPS_PROFILER"
	envStrict   = "MACAPPS_STRICT"
)

type config struct {
	input    string
	format   string
	profiler string
	strict   bool
	debugZip bool
	debugDir string
	verbose  bool
	trace    bool
}

func defaultConfig() config {
	return config{
		format:   formatText,
		profiler: macapps.DefaultProfiler,
	}
}

// loadConfig reads .env, applies environment defaults and then any flags
// set on the command line.
func loadConfig(cmd *cobra.Command) (config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()
	if v := os.Getenv(envFormat); v != "" {
		cfg.format = v
	}
	if v := os.Getenv(envProfiler); v != "" {
		cfg.profiler = v
	}
	if v := os.Getenv(envStrict); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid %s value %q: %w", envStrict, v, err)
		}
		cfg.strict = b
	}

	flags := cmd.Flags()
	var err error
	if cfg.input, err = flags.GetString("input"); err != nil {
		return cfg, err
	}
	if flags.Changed("format") {
		cfg.format, _ = flags.GetString("format")
	}
	if flags.Changed("profiler") {
		cfg.profiler, _ = flags.GetString("profiler")
	}
	if flags.Changed("strict") {
		cfg.strict, _ = flags.GetBool("strict")
	}
	cfg.debugZip = flags.Changed("debug-zip")
	cfg.debugDir, _ = flags.GetString("debug-zip")
	cfg.verbose, _ = flags.GetBool("verbose")
	cfg.trace, _ = flags.GetBool("trace")

	if !validFormat(cfg.format) {
		return cfg, fmt.Errorf("unknown output format %q", cfg.format)
	}
	return cfg, nil
}
