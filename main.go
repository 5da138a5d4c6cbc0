package main

import (
	"io"
	"log"
	"os"

	"github.com/alecthomas/kong"

	"github.com/ctrl-escp/restringer-go/pkg/bundles"
	"github.com/ctrl-escp/restringer-go/pkg/engine"
	"github.com/ctrl-escp/restringer-go/pkg/report"
)

// version is stamped at release time; left as a plain literal here since
// this module has no release pipeline of its own yet.
const version = "0.1.0"

// main is the CLI entry point.
func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// run parses arguments and executes the deobfuscation.
//
// args: Command line arguments.
// stdout: Writer for logs and output.
func run(args []string, stdout io.Writer) error {
	var cfg Config
	parser, err := kong.New(&cfg,
		kong.Name("restringer"),
		kong.Description("Deobfuscates obfuscated JavaScript source files."),
		kong.Writers(stdout, io.Discard),
		kong.Exit(func(int) {}),
		kong.Vars{"version": version},
	)
	if err != nil {
		return err
	}

	_, err = parser.Parse(args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := log.New(stdout, "", 0)

	src, err := os.ReadFile(cfg.InputFilename)
	if err != nil {
		return err
	}

	opts := engine.Options{
		MaxIterations: cfg.MaxIterations,
		Clean:         cfg.Clean,
		Verbose:       cfg.Verbose,
		Logger:        logger,
	}

	var rpt *report.Reporter
	if cfg.ReportPath != "" {
		rpt = report.New()
		opts.Reporter = rpt
	}
	if cfg.BundleConfig != "" {
		data, err := os.ReadFile(cfg.BundleConfig)
		if err != nil {
			return err
		}
		overrides, err := bundles.LoadOverrides(data, bundles.Registry(), builtinRulesByName())
		if err != nil {
			return err
		}
		opts.BundleOverrides = overrides
	}

	if !cfg.Quiet {
		logger.Printf("restringer: deobfuscating %s", cfg.InputFilename)
	}
	r := engine.New(string(src), opts)
	changed := r.Deobfuscate()
	if !cfg.Quiet {
		if r.Family != "" {
			logger.Printf("restringer: detected family %q", r.Family)
		}
		if r.LimitExceeded {
			logger.Printf("restringer: iteration ceiling hit before reaching a fixpoint")
		}
		if !changed {
			logger.Printf("restringer: no changes applied")
		}
	}

	if rpt != nil {
		f, err := os.Create(cfg.ReportPath)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := rpt.WriteJSON(f); err != nil {
			return err
		}
	}

	if cfg.ToFile() {
		out := cfg.OutputPath()
		if err := os.WriteFile(out, []byte(r.Script()), 0o644); err != nil {
			return err
		}
		if !cfg.Quiet {
			logger.Printf("restringer: wrote %s", out)
		}
		return nil
	}

	_, err = io.WriteString(stdout, r.Script()+"\n")
	return err
}
