// Copyright (c) 2025, Gareth Watts
// All rights reserved.

package cli

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gwatts/macapps"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "macapps",
		Short: "List the applications installed on a Mac",
		Long: `macapps lists installed applications using system_profiler.

Vendors are derived from the App Store / Apple / Developer ID signing
information, and missing versions are read from each bundle's Info.plist.

Environment:
  MACAPPS_FORMAT    default output format
  MACAPPS_PROFILER  path to system_profiler
  MACAPPS_STRICT    reject malformed XML (true/false)

Values may also be supplied in a .env file in the working directory.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runList,
	}

	f := cmd.Flags()
	f.StringP("input", "i", "", "read a saved system_profiler XML export from `file` (- for stdin) instead of running system_profiler")
	f.StringP("format", "f", formatText, "output format: "+strings.Join(formats, ", "))
	f.String("profiler", macapps.DefaultProfiler, "system_profiler command to run")
	f.Bool("strict", false, "fail on malformed XML instead of parsing what is readable")
	f.String("debug-zip", "", "write "+macapps.DebugZipName+" to `dir` (defaults to the executable's or home directory)")
	f.Lookup("debug-zip").NoOptDefVal = " "
	f.BoolP("verbose", "v", false, "enable debug logging")
	f.Bool("trace", false, "enable trace logging, including skipped records")
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func logLevel(cfg config) slog.Level {
	switch {
	case cfg.trace:
		return macapps.LevelTrace
	case cfg.verbose:
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log := macapps.NewLogger(cmd.ErrOrStderr(), logLevel(cfg))
	inv := macapps.NewInventory(
		macapps.WithLogger(log),
		macapps.WithProfiler(cfg.profiler),
		macapps.WithStrictXML(cfg.strict),
	)

	var lines []string
	if cfg.input != "" {
		lines, err = readLines(cfg.input, cmd.InOrStdin())
		if err != nil {
			return err
		}
	} else {
		lines, err = inv.Lines(cmd.Context())
		if err != nil {
			log.Warn("unable to list installed apps", "err", err)
		}
	}

	apps := inv.Parse(lines)
	log.Debug("parsed installed apps", "count", len(apps))
	if err := writeRecords(cmd.OutOrStdout(), cfg.format, apps); err != nil {
		return err
	}

	if cfg.debugZip {
		fn, err := macapps.WriteDebugZip(strings.TrimSpace(cfg.debugDir), lines, apps, macapps.OSBundleReader{})
		if err != nil {
			return fmt.Errorf("failed to write debug information: %w", err)
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "Debug information written to", fn)
	}
	return nil
}

// readLines returns the lines of fn without their terminators.
func readLines(fn string, stdin io.Reader) ([]string, error) {
	var r io.Reader = stdin
	if fn != "-" {
		f, err := os.Open(fn)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", fn, err)
	}
	return lines, nil
}
