// Package sandbox implements the isolated JS evaluator of the engine: a
// fragment of source goes in, either a converted AST node or the BadValue
// sentinel comes out. Nothing the fragment does can reach the host
// filesystem, network, or process — the runtime it evaluates against never
// exposes anything beyond the handful of deterministic globals this package
// registers itself.
package sandbox

import (
	"errors"
	"time"

	"github.com/dop251/goja"

	"github.com/ctrl-escp/restringer-go/pkg/jsast"
)

// DefaultTimeout bounds how long one EvalInVM call may run before the
// fragment is interrupted and treated as BAD_VALUE, per spec's "e.g. 10s"
// wall-clock budget.
const DefaultTimeout = 10 * time.Second

// MaxFragmentBytes stands in for the spec's memory budget: goja exposes no
// byte-level heap ceiling, so an oversized fragment is refused before it
// ever reaches the interpreter rather than measured while running.
const MaxFragmentBytes = 64 * 1024

// Sandbox wraps one goja.Runtime. A fresh Sandbox is cheap; a Prepared one
// has already run declaration code via Prepare and can be reused read-only
// by many EvalInVM calls (the rule that built it owns it).
type Sandbox struct {
	vm *goja.Runtime
}

// New builds a fresh sandbox with the deterministic host-safe globals the
// spec requires (atob/btoa) and nothing else — no require, no process, no
// filesystem or network bindings are ever registered.
func New() *Sandbox {
	vm := goja.New()
	registerGlobals(vm)
	return &Sandbox{vm: vm}
}

// Prepare runs declaration code in the sandbox (e.g. the enclosing
// var/function declarations a rule's context extractor gathered) so that a
// later fragment can reference those names. Errors are swallowed per the
// engine's "recoverable at rule granularity" error model — a failed
// preparation simply leaves the sandbox as it was.
func (s *Sandbox) Prepare(code string) {
	_, _ = s.vm.RunString(code)
}

// EvalInVM evaluates fragment in sb (a fresh Sandbox is used if sb is nil)
// and serializes the resulting runtime value back into an AST node. Parse
// errors, thrown exceptions, functions, promises, timeouts, and oversized
// fragments all report jsast.BadValue — callers must check jsast.IsBadValue
// before using the result.
func EvalInVM(fragment string, sb *Sandbox) jsast.Node {
	if len(fragment) > MaxFragmentBytes {
		return &jsast.BadValue{Reason: "fragment exceeds size budget"}
	}
	if sb == nil {
		sb = New()
	}

	done := make(chan struct{})
	timer := time.AfterFunc(DefaultTimeout, func() {
		sb.vm.Interrupt("eval timeout")
	})
	defer timer.Stop()
	defer sb.vm.ClearInterrupt()

	var (
		val goja.Value
		err error
	)
	go func() {
		val, err = sb.vm.RunString(fragment)
		close(done)
	}()
	<-done

	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return &jsast.BadValue{Reason: "eval timed out"}
		}
		return &jsast.BadValue{Reason: "eval failed: " + err.Error()}
	}
	return toNode(sb.vm, val)
}

func registerGlobals(vm *goja.Runtime) {
	_ = vm.Set("atob", func(call goja.FunctionCall) goja.Value {
		s := call.Argument(0).String()
		decoded, err := atobDecode(s)
		if err != nil {
			panic(vm.NewTypeError("atob: invalid input"))
		}
		return vm.ToValue(decoded)
	})
	_ = vm.Set("btoa", func(call goja.FunctionCall) goja.Value {
		s := call.Argument(0).String()
		return vm.ToValue(btoaEncode(s))
	})
}
