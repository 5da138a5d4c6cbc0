// Package rules defines the uniform shape every rewrite rule exposes, and
// the single-pass runner the driver uses to apply one rule to a fixpoint
// boundary. Individual rules live in the literals, variables, functions,
// controlflow, and unsafe subpackages; none of them is a type hierarchy —
// each is a Rule value built from two free functions, per spec's "module
// registry" framing.
package rules

import (
	"sort"

	"github.com/ctrl-escp/restringer-go/pkg/arborist"
	"github.com/ctrl-escp/restringer-go/pkg/jsast"
)

// Safety marks whether a rule ever depends on runtime semantics (via
// package sandbox) or is pure AST algebra.
type Safety int

const (
	Safe Safety = iota
	Unsafe
)

func (s Safety) String() string {
	if s == Unsafe {
		return "unsafe"
	}
	return "safe"
}

// Filter narrows Match's candidates; a nil Filter matches everything. This is
// the "candidate_filter" parameter from spec §4.E.
type Filter func(jsast.Node) bool

// MatchFunc returns this rule's candidates without mutating anything. A
// rule that gathers several node kinds may list them kind by kind; Run puts
// the candidates into source order before transforming them.
type MatchFunc func(prog *jsast.Program, idx *jsast.Indices, filter Filter) []jsast.Node

// TransformFunc stages exactly one rewrite for n on ar. It must not commit.
type TransformFunc func(ar *arborist.Arborist, n jsast.Node)

// Rule is the uniform value every rewrite module is built from.
type Rule struct {
	Name      string
	Safety    Safety
	Match     MatchFunc
	Transform TransformFunc
}

// Run executes one full pass of r: a stable match snapshot, transforms
// applied in source order while skipping candidates made stale by an
// earlier transform in the same pass, then a single batch commit — the
// ordering guarantees of spec §5. It reports how many candidates were
// transformed.
func (r Rule) Run(ar *arborist.Arborist, filter Filter) int {
	candidates := r.Match(ar.Program(), ar.Indices(), filter)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Meta().NodeID < candidates[j].Meta().NodeID
	})
	var staged []jsast.Range
	applied := 0
	for _, n := range candidates {
		if isStale(n, staged) {
			continue
		}
		r.Transform(ar, n)
		staged = append(staged, n.Meta().Range)
		applied++
	}
	if ar.Pending() {
		ar.Commit()
	}
	return applied
}

// isStale reports whether n's range falls inside a range already staged
// earlier in this same pass (spec's StaleNode detection: "checking whether
// the node's range falls inside a range already modified"). A node built in
// memory rather than parsed has an empty Range that marks no source
// position, so an empty staged range never makes a candidate stale.
func isStale(n jsast.Node, staged []jsast.Range) bool {
	r := n.Meta().Range
	for _, s := range staged {
		if s.Start == s.End {
			continue
		}
		if s.Contains(r) {
			return true
		}
	}
	return false
}
