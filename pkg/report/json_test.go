package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
)

// TestReporterWorkflow verifies the full lifecycle of the reporter:
// accumulation across a run, and JSON generation.
func TestReporterWorkflow(t *testing.T) {
	r := New()

	r.SetFamily("augmented-array")
	r.RecordRuleApplied("fold-binary-literals", 3)
	r.RecordRuleApplied("fold-binary-literals", 2)
	r.RecordRuleApplied("resolve-deterministic-if", 1)
	r.AddIterations(4)
	r.AddIterations(2)
	r.SetLimitExceeded(false)
	r.SetChanged(true)

	data := r.GetData()
	if data.FamilyDetected != "augmented-array" {
		t.Errorf("FamilyDetected = %q, want augmented-array", data.FamilyDetected)
	}
	if data.RulesApplied["fold-binary-literals"] != 5 {
		t.Errorf("RulesApplied[fold-binary-literals] = %d, want 5", data.RulesApplied["fold-binary-literals"])
	}
	if data.RulesApplied["resolve-deterministic-if"] != 1 {
		t.Errorf("RulesApplied[resolve-deterministic-if] = %d, want 1", data.RulesApplied["resolve-deterministic-if"])
	}
	if data.IterationsRun != 6 {
		t.Errorf("IterationsRun = %d, want 6", data.IterationsRun)
	}
	if data.LimitExceeded {
		t.Error("LimitExceeded = true, want false")
	}
	if !data.Changed {
		t.Error("Changed = false, want true")
	}

	var buf bytes.Buffer
	if err := r.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	out := buf.String()
	for _, part := range []string{
		`"family_detected": "augmented-array"`,
		`"fold-binary-literals": 5`,
		`"iterations_run": 6`,
		`"changed": true`,
	} {
		if !strings.Contains(out, part) {
			t.Errorf("JSON output missing part %q. Got:\n%s", part, out)
		}
	}

	var decoded Data
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode generated JSON: %v", err)
	}
	if decoded.FamilyDetected != "augmented-array" {
		t.Error("decoded JSON has wrong family")
	}
}

// SetLimitExceeded latches true and never resets, since a single bad stage
// should mark the whole run even if a later stage converges cleanly.
func TestReporterLimitExceededLatches(t *testing.T) {
	r := New()
	r.SetLimitExceeded(true)
	r.SetLimitExceeded(false)

	if !r.GetData().LimitExceeded {
		t.Error("LimitExceeded should stay true once set, regardless of later calls")
	}
}

// RecordRuleApplied with n=0 must not create a zero-valued map entry.
func TestReporterRecordRuleAppliedIgnoresZero(t *testing.T) {
	r := New()
	r.RecordRuleApplied("never-fired", 0)

	data := r.GetData()
	if _, ok := data.RulesApplied["never-fired"]; ok {
		t.Error("RecordRuleApplied(name, 0) should not add an entry")
	}
}

func TestReporterConcurrency(t *testing.T) {
	r := New()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r.RecordRuleApplied("concurrent-rule", 1)
			r.AddIterations(1)
		}(i)
	}
	wg.Wait()

	data := r.GetData()
	if data.RulesApplied["concurrent-rule"] != 100 {
		t.Errorf("RulesApplied[concurrent-rule] = %d, want 100", data.RulesApplied["concurrent-rule"])
	}
	if data.IterationsRun != 100 {
		t.Errorf("IterationsRun = %d, want 100", data.IterationsRun)
	}
}

// GetData's map copy must be independent of the reporter's internal state.
func TestReporterGetDataReturnsIndependentCopy(t *testing.T) {
	r := New()
	r.RecordRuleApplied("a", 1)

	data := r.GetData()
	data.RulesApplied["a"] = 999
	data.RulesApplied["b"] = 1

	fresh := r.GetData()
	if fresh.RulesApplied["a"] != 1 {
		t.Error("mutating a GetData() copy must not affect the reporter's internal state")
	}
	if _, ok := fresh.RulesApplied["b"]; ok {
		t.Error("mutating a GetData() copy must not affect the reporter's internal state")
	}
}

func TestReporterEmpty(t *testing.T) {
	r := New()
	var buf bytes.Buffer
	if err := r.WriteJSON(&buf); err != nil {
		t.Fatal(err)
	}

	var decoded Data
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.FamilyDetected != "" {
		t.Error("expected empty family for an empty reporter")
	}
	if len(decoded.RulesApplied) != 0 {
		t.Error("expected empty rules-applied map")
	}
	if decoded.Changed {
		t.Error("expected Changed = false for an empty reporter")
	}
}
