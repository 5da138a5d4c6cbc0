// Package driver implements the engine's iterative fixpoint runner: apply a
// list of rules to an Arborist-owned tree, re-emit source, and stop once a
// full pass leaves it textually unchanged or the iteration ceiling is hit.
package driver

import (
	"fmt"
	"io"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"

	"github.com/ctrl-escp/restringer-go/pkg/arborist"
	"github.com/ctrl-escp/restringer-go/pkg/jsast"
	"github.com/ctrl-escp/restringer-go/pkg/jsparse"
	"github.com/ctrl-escp/restringer-go/pkg/rules"
)

// DefaultMaxIterations bounds the outer loop when the caller doesn't supply
// its own ceiling (spec §4.F: "default 500, decrementing on each use").
const DefaultMaxIterations = 500

// Result reports how ApplyIteratively finished.
type Result struct {
	Source        string
	Iterations    int
	LimitExceeded bool
}

// Options configures one ApplyIteratively run. A zero Options uses
// DefaultMaxIterations and no diagnostic output.
type Options struct {
	MaxIterations int
	Filter        rules.Filter
	// Verbose, when non-nil, receives a unified diff of each iteration's
	// change — the driver's only observable side channel, per spec's
	// "-v/--verbose ... debug-level diagnostics".
	Verbose io.Writer
	// OnRuleApplied, when non-nil, is called after every Rule.Run pass that
	// transformed at least one candidate — the hook package report uses to
	// tally per-rule statistics without the driver depending on it.
	OnRuleApplied func(ruleName string, applied int)
}

// ApplyIteratively runs ruleSet against source to a fixpoint: each outer
// iteration runs every rule in order (each rule itself looping internally
// to its own fixpoint via Rule.Run's match/transform/commit cycle until
// Match returns no further candidates), commits, and re-emits source. The
// loop terminates when a full iteration leaves the emitted source
// unchanged, or after MaxIterations iterations, whichever comes first.
func ApplyIteratively(source string, ruleSet []rules.Rule, opts Options) (Result, error) {
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	prog, err := jsparse.Parse(source)
	if err != nil {
		return Result{}, fmt.Errorf("driver: initial parse failed: %w", err)
	}
	ar := arborist.New(prog)
	current := source

	for iter := 1; iter <= maxIter; iter++ {
		for _, r := range ruleSet {
			runRuleToFixpoint(ar, r, opts.Filter, opts.OnRuleApplied)
		}

		next := jsparse.Print(ar.Program())
		if opts.Verbose != nil && next != current {
			writeDiff(opts.Verbose, current, next)
		}
		if next == current {
			return Result{Source: current, Iterations: iter}, nil
		}
		current = next

		// A rule may have staged structural changes too large for the
		// index's incremental invariants to keep sound; re-parsing from the
		// freshly emitted source is the conservative "full re-parse" path
		// spec §4.F reserves for those rules.
		prog, err = jsparse.Parse(current)
		if err != nil {
			return Result{Source: current, Iterations: iter}, fmt.Errorf("driver: re-parse failed: %w", err)
		}
		ar = arborist.New(prog)
	}

	return Result{Source: current, Iterations: maxIter, LimitExceeded: true}, nil
}

// maxRulePasses caps how many times a single rule may be re-run within one
// outer driver iteration. Well-behaved rules converge in a handful of
// passes; this is strictly a backstop against a misbehaving rule that
// oscillates forever (spec's "no rule may silently loop"), distinct from
// and much larger than the outer MaxIterations ceiling.
const maxRulePasses = 1000

// runRuleToFixpoint runs r repeatedly until a pass transforms nothing,
// honoring the "idempotent over one pass" shared rule invariant by relying
// on Rule.Run's own candidate-staleness bookkeeping within each pass.
func runRuleToFixpoint(ar *arborist.Arborist, r rules.Rule, filter rules.Filter, onApplied func(string, int)) {
	for pass := 0; pass < maxRulePasses; pass++ {
		applied := r.Run(ar, filter)
		if applied == 0 {
			return
		}
		if onApplied != nil {
			onApplied(r.Name, applied)
		}
	}
}

func writeDiff(w io.Writer, before, after string) {
	edits := myers.ComputeEdits(span.URIFromPath("source.js"), before, after)
	diff := gotextdiff.ToUnified("before", "after", before, edits)
	fmt.Fprint(w, diff)
}

// EnsureIndices is a small convenience for callers (e.g. package engine)
// that hold a *jsast.Program directly rather than going through Parse.
func EnsureIndices(prog *jsast.Program) *jsast.Indices {
	return jsast.BuildIndices(prog, 1)
}
