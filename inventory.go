// Copyright (c) 2025, Gareth Watts
// All rights reserved.

package macapps

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
)

// ErrUnsupportedOS is returned by Query on hosts without system_profiler.
var ErrUnsupportedOS = errors.New("installed application listing is only available on macOS")

// DefaultProfiler is the command used to list installed applications.
const DefaultProfiler = "system_profiler"

var profilerArgs = []string{"-xml", "SPApplicationsDataType"}

// Runner runs an external command and returns its output lines without
// line terminators.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]string, error)
}

// ExecRunner runs commands on the local host.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", name, err)
	}
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), len(out)+1)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

// Inventory lists installed applications.
type Inventory struct {
	runner     Runner
	profiler   string
	goos       string
	bundles    BundleReader
	strict     bool
	decoder    *Decoder
	normalizer *Normalizer
	log        *slog.Logger
}

// Option configures an Inventory.
type Option func(*Inventory)

// WithRunner replaces the command runner.
func WithRunner(r Runner) Option { return func(inv *Inventory) { inv.runner = r } }

// WithProfiler replaces the path of the system_profiler binary.
func WithProfiler(path string) Option { return func(inv *Inventory) { inv.profiler = path } }

// WithBundleReader replaces the reader used for the Info.plist fallback.
// A nil reader disables the fallback.
func WithBundleReader(b BundleReader) Option { return func(inv *Inventory) { inv.bundles = b } }

// WithStrictXML makes any XML error fail the whole parse.
func WithStrictXML(strict bool) Option { return func(inv *Inventory) { inv.strict = strict } }

func WithLogger(log *slog.Logger) Option { return func(inv *Inventory) { inv.log = log } }

func withGOOS(goos string) Option { return func(inv *Inventory) { inv.goos = goos } }

// NewInventory returns an Inventory that runs system_profiler and reads
// bundles from the local filesystem unless options say otherwise.
func NewInventory(opts ...Option) *Inventory {
	inv := &Inventory{
		runner:   ExecRunner{},
		profiler: DefaultProfiler,
		goos:     runtime.GOOS,
		bundles:  OSBundleReader{},
	}
	for _, opt := range opts {
		opt(inv)
	}
	inv.log = orDiscard(inv.log)
	inv.decoder = NewDecoder(!inv.strict, inv.log)
	inv.normalizer = NewNormalizer(inv.bundles, inv.decoder, inv.log)
	return inv
}

// Lines runs the profiler and returns its raw output.
func (inv *Inventory) Lines(ctx context.Context) ([]string, error) {
	if inv.goos != "darwin" {
		return nil, ErrUnsupportedOS
	}
	return inv.runner.Run(ctx, inv.profiler, profilerArgs...)
}

// Query runs the profiler and returns the installed applications.  Any
// failure is logged and produces an empty list.
func (inv *Inventory) Query(ctx context.Context) []AppRecord {
	lines, err := inv.Lines(ctx)
	if err != nil {
		inv.log.Debug("unable to list installed apps", "err", err)
		return []AppRecord{}
	}
	return inv.Parse(lines)
}

// Parse decodes profiler output lines, joined without separators, into a
// de-duplicated list of applications in discovery order.  Dicts that fail
// to normalize are skipped.  The result is never nil.
func (inv *Inventory) Parse(lines []string) []AppRecord {
	dicts, err := inv.decoder.DecodeItems(strings.Join(lines, ""))
	if err != nil {
		inv.log.Log(context.Background(), LevelTrace, "unable to read installed apps", "err", err)
		return []AppRecord{}
	}

	records := make([]AppRecord, 0, len(dicts))
	for _, d := range dicts {
		rec, err := inv.normalizer.Normalize(d)
		if err != nil {
			inv.log.Log(context.Background(), LevelTrace, "unable to parse dict values", "err", err, "dict", d.Map())
			continue
		}
		records = append(records, rec)
	}
	return Dedupe(records)
}
