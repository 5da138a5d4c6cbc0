// Package engine implements the orchestrator of spec §4.H: the
// outward-facing façade that detects an obfuscation family, runs its
// bundle, loops the safe and unsafe rule sets to a fixpoint, and emits the
// deobfuscated source.
package engine

import (
	"io"
	"log"
	"sort"

	"github.com/maruel/natural"

	"github.com/ctrl-escp/restringer-go/pkg/bundles"
	"github.com/ctrl-escp/restringer-go/pkg/driver"
	"github.com/ctrl-escp/restringer-go/pkg/report"
	"github.com/ctrl-escp/restringer-go/pkg/rules"
	"github.com/ctrl-escp/restringer-go/pkg/rules/controlflow"
	"github.com/ctrl-escp/restringer-go/pkg/rules/functions"
	"github.com/ctrl-escp/restringer-go/pkg/rules/literals"
	"github.com/ctrl-escp/restringer-go/pkg/rules/unsafe"
	"github.com/ctrl-escp/restringer-go/pkg/rules/variables"
	"github.com/ctrl-escp/restringer-go/pkg/sandbox"
)

// Options configures one Restringer instance. A zero Options runs with no
// diagnostics, the default iteration ceiling, and no dead-code cleanup.
type Options struct {
	MaxIterations int
	Clean         bool
	Verbose       bool
	Logger        *log.Logger
	// BundleOverrides, if set, replaces the built-in processor registry
	// (spec §4.G: "the orchestrator runs apply_iteratively(... preprocessors)").
	BundleOverrides map[string]bundles.Processor
	// Reporter, if set, is populated with per-rule/per-stage statistics as
	// Deobfuscate runs.
	Reporter *report.Reporter
}

// Restringer is the orchestrator instance spec §4.H names: new(source),
// deobfuscate(), script, safe_methods/unsafe_methods.
type Restringer struct {
	script string
	opts   Options

	SafeMethods   []rules.Rule
	UnsafeMethods []rules.Rule

	LimitExceeded bool
	Family        string
}

// New parses source (deferred to the first Deobfuscate call, since parsing
// failure is the one fatal error this package reports) and builds the
// default ordered safe/unsafe rule lists, sorted by rule name with a
// natural-order comparator so numbered variants of the same rule family
// stay adjacent.
func New(source string, opts Options) *Restringer {
	cache := sandbox.NewCache()

	safe := []rules.Rule{
		literals.FoldBinaryLiterals,
		literals.CollapseStaticTemplateLiteral,
		literals.NormalizeComputedAccess,
		literals.DecodeBase64Call,
		variables.ConstantPropagation,
		variables.ProxyVariables,
		variables.FixedValueAfterDeclare,
		variables.ProxyMemberChains,
		variables.DirectAssignmentPropertyResolution,
		variables.ArrayIndexResolution,
		functions.FunctionShellReplacement,
		functions.IIFEShellValue,
		functions.UnwrapSimpleOperationWrapper,
		functions.ProxyCallFunction,
		functions.ResolveEvalOnLiteral,
		functions.CallReturnsIdentifierUnwrap,
		functions.FunctionShellViaApplyArguments,
		functions.IIFEUnwrapping,
		functions.ResolveFunctionConstructorCall,
		functions.ResolveNewFunctionLiteral,
		controlflow.SimplifyEmptyBranches,
		controlflow.ResolveDeterministicIf,
		controlflow.ShortCircuitStatementToIf,
		controlflow.RemoveRedundantBlock,
		controlflow.LinearizeLiteralSwitch,
		controlflow.SeparateChainedDeclarators,
		controlflow.NormalizeEmptyStatements,
		controlflow.RearrangeSequenceExpressionStatements,
		controlflow.ExtractLeadingSequenceEffects,
		controlflow.ResolveRedundantLogicalOpsInIf,
		controlflow.SimplifyCallApplyWithThis,
	}
	unsafeRules := []rules.Rule{
		unsafe.ResolveLiteralBinaryExpressions,
		unsafe.ResolveDeterministicConditional,
		unsafe.ResolveMemberOnLiteral,
		unsafe.ResolveBuiltinCalls,
		unsafe.NewResolveLocalCall(cache),
		unsafe.ResolveEvalOnNonLiteral,
		unsafe.ResolveMemberChainOnLocal,
		unsafe.ResolveMinimalAlphabet,
		unsafe.NewResolveInjectedPrototypeMethod(cache),
		unsafe.NormalizeRedundantNot,
		unsafe.NewResolveAugmentedFunctionWrappedArrays(cache),
	}
	sortRulesNaturally(safe)
	sortRulesNaturally(unsafeRules)

	return &Restringer{
		script:        source,
		opts:          opts,
		SafeMethods:   safe,
		UnsafeMethods: unsafeRules,
	}
}

func sortRulesNaturally(rs []rules.Rule) {
	sort.Slice(rs, func(i, j int) bool { return natural.Less(rs[i].Name, rs[j].Name) })
}

// Script returns the current (possibly deobfuscated) source text.
func (r *Restringer) Script() string { return r.script }

// Deobfuscate runs the full pipeline: detect family, run its preprocessors,
// loop safe rules, loop unsafe rules interleaved with a safe cleanup pass,
// run postprocessors, optionally strip dead code, and report whether the
// final source differs from the input.
func (r *Restringer) Deobfuscate() bool {
	original := r.script
	logf := r.logf

	registry := bundles.Registry()
	if r.opts.BundleOverrides != nil {
		registry = r.opts.BundleOverrides
	}
	r.Family = bundles.Detect(r.script)
	if r.opts.Reporter != nil {
		r.opts.Reporter.SetFamily(r.Family)
	}
	if proc, ok := registry[r.Family]; ok {
		logf("detected family %q, running %d preprocessor(s)", r.Family, len(proc.Preprocessors))
		r.script = r.runStage(proc.Preprocessors)

		for pass := 0; pass < 10; pass++ {
			before := r.script
			r.script = r.runStage(r.SafeMethods)
			r.script = r.runStage(unsafeRulesFor(r))
			if r.script == before {
				break
			}
		}

		logf("running %d postprocessor(s)", len(proc.Postprocessors))
		r.script = r.runStage(proc.Postprocessors)
	} else {
		// No recognized family: still run the main loop directly.
		r.runMainLoop(logf)
	}

	if r.opts.Clean {
		logf("running dead-code cleanup pass")
		r.script = r.runStage([]rules.Rule{variables.DeadCodeRemoval})
	}

	changed := r.script != original
	if r.opts.Reporter != nil {
		r.opts.Reporter.SetChanged(changed)
		r.opts.Reporter.SetLimitExceeded(r.LimitExceeded)
	}
	return changed
}

func unsafeRulesFor(r *Restringer) []rules.Rule { return r.UnsafeMethods }

// runMainLoop is the undetected-family path: safe rules to a fixpoint,
// then unsafe rules interleaved with safe cleanup passes, per spec §4.H
// ("loop safe rules to fixpoint; loop unsafe rules to fixpoint (interleaved
// with safe cleanup passes)").
func (r *Restringer) runMainLoop(logf func(string, ...interface{})) {
	logf("running safe rules to fixpoint")
	r.script = r.runStage(r.SafeMethods)

	for pass := 0; pass < 20; pass++ {
		before := r.script
		logf("unsafe pass %d", pass+1)
		r.script = r.runStage(r.UnsafeMethods)
		r.script = r.runStage(r.SafeMethods)
		if r.script == before {
			break
		}
	}
}

func (r *Restringer) runStage(rs []rules.Rule) string {
	if len(rs) == 0 {
		return r.script
	}
	var onApplied func(string, int)
	if r.opts.Reporter != nil {
		onApplied = r.opts.Reporter.RecordRuleApplied
	}
	var diffOut io.Writer
	if r.opts.Verbose && r.opts.Logger != nil {
		diffOut = r.opts.Logger.Writer()
		record := onApplied
		onApplied = func(name string, applied int) {
			r.logf("rule %s applied %d time(s)", name, applied)
			if record != nil {
				record(name, applied)
			}
		}
	}
	res, err := driver.ApplyIteratively(r.script, rs, driver.Options{
		MaxIterations: r.maxIterations(),
		Verbose:       diffOut,
		OnRuleApplied: onApplied,
	})
	if err != nil {
		r.logf("stage failed, keeping prior source: %v", err)
		return r.script
	}
	if res.LimitExceeded {
		r.LimitExceeded = true
	}
	if r.opts.Reporter != nil {
		r.opts.Reporter.AddIterations(res.Iterations)
	}
	return res.Source
}

func (r *Restringer) maxIterations() int {
	if r.opts.MaxIterations > 0 {
		return r.opts.MaxIterations
	}
	return driver.DefaultMaxIterations
}

func (r *Restringer) logf(format string, args ...interface{}) {
	if r.opts.Logger == nil || !r.opts.Verbose {
		return
	}
	r.opts.Logger.Printf(format, args...)
}
