// Package report collects and serializes statistics about one deobfuscation
// run, for CI integration the way the teacher's reporter served its own
// error-handling-insertion tool.
package report

import (
	"encoding/json"
	"io"
	"sort"
	"sync"
)

// Data represents the structure of the JSON report output. It maps
// directly to the schema a caller scripting restringer in CI would parse.
type Data struct {
	// FamilyDetected is the processor-bundle family the orchestrator picked,
	// or "" if none matched.
	FamilyDetected string `json:"family_detected"`
	// RulesApplied maps each rule name that transformed at least one
	// candidate to how many candidates it transformed, summed across every
	// pass of the run.
	RulesApplied map[string]int `json:"rules_applied"`
	// IterationsRun is the total number of outer driver iterations, summed
	// over every stage the run executed.
	IterationsRun int `json:"iterations_run"`
	// LimitExceeded reports whether any stage hit its iteration ceiling
	// before reaching a fixpoint.
	LimitExceeded bool `json:"limit_exceeded"`
	// Changed reports whether the final source differs from the input.
	Changed bool `json:"changed"`
}

// Reporter collects statistics during a deobfuscation run and generates
// structured output. It is safe for concurrent use, though the engine
// itself is single-threaded (spec §5) and never needs that beyond
// defensive hygiene.
type Reporter struct {
	mu   sync.Mutex
	data Data
}

// New creates a new, empty Reporter.
func New() *Reporter {
	return &Reporter{data: Data{RulesApplied: make(map[string]int)}}
}

// RecordRuleApplied adds n to the running total for a rule's name.
func (r *Reporter) RecordRuleApplied(name string, n int) {
	if n == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data.RulesApplied[name] += n
}

// SetFamily records the detected processor-bundle family.
func (r *Reporter) SetFamily(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data.FamilyDetected = name
}

// AddIterations accumulates a stage's iteration count into the run total.
func (r *Reporter) AddIterations(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data.IterationsRun += n
}

// SetLimitExceeded latches true once any stage reports hitting its ceiling.
func (r *Reporter) SetLimitExceeded(v bool) {
	if !v {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data.LimitExceeded = true
}

// SetChanged records whether the run altered the source.
func (r *Reporter) SetChanged(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data.Changed = v
}

// WriteJSON serializes the collected statistics to w in indented JSON,
// sorting map keys the encoder already orders deterministically so the
// output never depends on map iteration order across runs.
func (r *Reporter) WriteJSON(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r.data)
}

// GetData returns a copy of the internal data structure, for testing or
// programmatic access aside from writing JSON.
func (r *Reporter) GetData() Data {
	r.mu.Lock()
	defer r.mu.Unlock()

	rules := make(map[string]int, len(r.data.RulesApplied))
	for k, v := range r.data.RulesApplied {
		rules[k] = v
	}
	names := make([]string, 0, len(rules))
	for k := range rules {
		names = append(names, k)
	}
	sort.Strings(names)

	return Data{
		FamilyDetected: r.data.FamilyDetected,
		RulesApplied:   rules,
		IterationsRun:  r.data.IterationsRun,
		LimitExceeded:  r.data.LimitExceeded,
		Changed:        r.data.Changed,
	}
}
