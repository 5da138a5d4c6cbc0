package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
)

// Config holds the complete configuration for a restringer run. It maps
// directly to the command-line flags described by spec §6.
type Config struct {
	// InputFilename is the obfuscated JS source file to deobfuscate.
	InputFilename string `arg:"" help:"Path to the obfuscated JS file to process."`

	// Clean enables the dead-code elimination pass after the main loop.
	Clean bool `short:"c" name:"clean" help:"Run the dead-code elimination pass after deobfuscating."`

	// Quiet suppresses banner output; the result still prints to stdout
	// when Output is unset. Mutually exclusive with Verbose.
	Quiet bool `short:"q" name:"quiet" xor:"verbosity" help:"Suppress banner output; print the result to stdout only when -o is not given."`

	// Verbose emits per-pass diagnostics (match counts, unified diffs).
	// Mutually exclusive with Quiet.
	Verbose bool `short:"v" name:"verbose" xor:"verbosity" help:"Emit debug-level diagnostics, including per-pass diffs."`

	// Output writes the result to a file instead of stdout. nil means the
	// flag was never given; a non-nil empty string means it was given bare
	// (use the "<input>-deob.js" default).
	Output *string `short:"o" name:"output" optional:"" help:"Write the result to this file. Defaults to <input>-deob.js. Omit entirely to print to stdout instead."`

	// MaxIterations bounds the driver's outer fixpoint loop.
	MaxIterations int `short:"m" name:"max-iterations" help:"Positive cap on driver iterations." default:"500"`

	// ReportPath, if set, writes a JSON run report (package report) to this
	// path in addition to the deobfuscated source.
	ReportPath string `name:"report" help:"Optional path to write a JSON run report."`

	// BundleConfig optionally overrides the built-in processor-bundle
	// registry from a YAML document (package bundles).
	BundleConfig string `name:"bundle-config" help:"Optional YAML file overriding processor bundle rule lists."`

	Version kong.VersionFlag `short:"V" name:"version" help:"Print the version and exit."`
}

// ToFile reports whether the result should be written to a file: spec §6's
// "-q ... print result to stdout only when no -o supplied" implies a bare
// run with no -o at all writes to stdout, while any form of -o (bare or
// with a value) writes to a file.
func (c Config) ToFile() bool { return c.Output != nil }

// OutputPath resolves the -o flag's default: given bare (empty string),
// "<input>-deob.js" alongside the input file; given a value, that value
// verbatim. Only meaningful when ToFile is true.
func (c Config) OutputPath() string {
	if c.Output != nil && *c.Output != "" {
		return *c.Output
	}
	ext := filepath.Ext(c.InputFilename)
	return strings.TrimSuffix(c.InputFilename, ext) + "-deob.js"
}

// Validate reports the argument errors spec §6 calls out explicitly: a
// non-positive --max-iterations.
func (c Config) Validate() error {
	if c.MaxIterations <= 0 {
		return fmt.Errorf("--max-iterations must be a positive integer, got %d", c.MaxIterations)
	}
	return nil
}
