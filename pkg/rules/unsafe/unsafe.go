// Package unsafe implements the evaluator-backed rules of spec §4.E: every
// rule here calls the sandboxed evaluator (package sandbox) or otherwise
// depends on runtime semantics, which is what separates it from the safe
// rule families in literals/variables/functions/controlflow.
package unsafe

import (
	"strings"

	"github.com/ctrl-escp/restringer-go/pkg/arborist"
	"github.com/ctrl-escp/restringer-go/pkg/context"
	"github.com/ctrl-escp/restringer-go/pkg/jsast"
	"github.com/ctrl-escp/restringer-go/pkg/jsparse"
	"github.com/ctrl-escp/restringer-go/pkg/rules"
	"github.com/ctrl-escp/restringer-go/pkg/sandbox"
)

// source returns the most faithful fragment for n: its original slice of
// source when the parser stamped one, falling back to the generator for a
// node a rule synthesized.
func source(n jsast.Node) string {
	if s := n.Meta().Src; s != "" {
		return s
	}
	return jsparse.Fragment(n)
}

// contextScript joins the statements DeclarationWithContext gathers for node
// into one self-contained preparation script for sandbox.Sandbox.Prepare.
func contextScript(node jsast.Node, includeCallSiblings bool) string {
	stmts := context.DeclarationWithContext(node, includeCallSiblings)
	parts := make([]string, len(stmts))
	for i, s := range stmts {
		parts[i] = source(s)
	}
	return strings.Join(parts, "\n")
}

// ResolveLiteralBinaryExpressions folds a BinaryExpression whose operands
// are both Literal by sandbox evaluation rather than Go arithmetic, so that
// the engine's notion of "literal binary" matches JS semantics (string
// coercion, NaN, etc.) instead of reimplementing them.
var ResolveLiteralBinaryExpressions = rules.Rule{
	Name:   "resolve-literal-binary-expressions",
	Safety: rules.Unsafe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindBinaryExpression) {
			b := n.(*jsast.BinaryExpression)
			if _, ok := jsast.AsLiteral(b.Left); !ok {
				continue
			}
			if _, ok := jsast.AsLiteral(b.Right); !ok {
				continue
			}
			if filter != nil && !filter(n) {
				continue
			}
			out = append(out, n)
		}
		return out
	},
	Transform: func(ar *arborist.Arborist, n jsast.Node) {
		result := sandbox.EvalInVM(source(n), nil)
		if jsast.IsBadValue(result) {
			return
		}
		// EvalInVM already returns a negative number as one signed Literal;
		// a UnaryExpression{-, Literal} result is folded into one signed
		// numeric Literal here as well.
		if u, ok := result.(*jsast.UnaryExpression); ok && u.Operator == "-" {
			if f, ok := jsast.LiteralNumber(u.Argument); ok {
				ar.MarkReplace(n, jsast.NewNumberLiteral(-f))
				return
			}
		}
		ar.MarkReplace(n, result)
	},
}

// ResolveDeterministicConditional collapses `L ? x : y` to whichever branch
// JS truthiness of the Literal test selects.
var ResolveDeterministicConditional = rules.Rule{
	Name:   "resolve-deterministic-conditional",
	Safety: rules.Unsafe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindConditionalExpression) {
			c := n.(*jsast.ConditionalExpression)
			if _, ok := jsast.Truthiness(c.Test); !ok {
				continue
			}
			if filter != nil && !filter(n) {
				continue
			}
			out = append(out, n)
		}
		return out
	},
	Transform: func(ar *arborist.Arborist, n jsast.Node) {
		c := n.(*jsast.ConditionalExpression)
		truthy, ok := jsast.Truthiness(c.Test)
		if !ok {
			return
		}
		if truthy {
			ar.MarkReplace(n, jsast.Clone(c.Consequent))
		} else {
			ar.MarkReplace(n, jsast.Clone(c.Alternate))
		}
	},
}

// ResolveMemberOnLiteral evaluates `"abc"[0]`, `[1,2,3][1]`, `"hi".length`
// and similar member access on a literal/array whose result is not used as
// a call callee or mutated in place — both of those positions need the
// live object, not a snapshot of one property.
var ResolveMemberOnLiteral = rules.Rule{
	Name:   "resolve-member-on-literal",
	Safety: rules.Unsafe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindMemberExpression) {
			m := n.(*jsast.MemberExpression)
			switch m.Object.(type) {
			case *jsast.Literal, *jsast.ArrayExpression:
			default:
				continue
			}
			if _, isCallee := m.Meta().Parent.(*jsast.CallExpression); isCallee && m.Meta().ParentKey.Field == "Callee" {
				continue
			}
			if _, isUpdateArg := m.Meta().Parent.(*jsast.UpdateExpression); isUpdateArg {
				continue
			}
			if _, isAssign := m.Meta().Parent.(*jsast.AssignmentExpression); isAssign && m.Meta().ParentKey.Field == "Target" {
				continue
			}
			if filter != nil && !filter(n) {
				continue
			}
			out = append(out, n)
		}
		return out
	},
	Transform: func(ar *arborist.Arborist, n jsast.Node) {
		result := sandbox.EvalInVM(source(n), nil)
		if jsast.IsBadValue(result) {
			return
		}
		ar.MarkReplace(n, result)
	},
}

// builtinDenyList is never evaluated, sandboxed or not — these names reach
// outside a pure-value computation even inside goja's isolated runtime.
var builtinDenyList = map[string]bool{
	"Function": true, "eval": true, "Array": true, "Object": true,
	"fetch": true, "XMLHttpRequest": true, "Promise": true,
	"console": true, "performance": true, "$": true,
}

func calleeName(callee jsast.Node) (string, bool) {
	switch c := callee.(type) {
	case *jsast.Identifier:
		return c.Name, true
	case *jsast.MemberExpression:
		if id, ok := c.Property.(*jsast.Identifier); ok && !c.Computed {
			return id.Name, true
		}
	}
	return "", false
}

func allLiteralArgs(args []jsast.Node) bool {
	for _, a := range args {
		if _, ok := jsast.AsLiteral(a); !ok {
			return false
		}
	}
	return true
}

// ResolveBuiltinCalls evaluates, in the sandbox, a call to a global
// identifier or member expression whose arguments are all Literal. Every
// callee name outside builtinDenyList is tried; there is no allow-list, and
// only a callee identifier with a local declaration is skipped. atob/btoa
// go through the sandbox like any other call, where they resolve to the
// deterministic implementations package sandbox registers.
var ResolveBuiltinCalls = rules.Rule{
	Name:   "resolve-builtin-calls",
	Safety: rules.Unsafe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindCallExpression) {
			c := n.(*jsast.CallExpression)
			name, ok := calleeName(c.Callee)
			if !ok || builtinDenyList[name] {
				continue
			}
			if id, ok := c.Callee.(*jsast.Identifier); ok && id.DeclNode != nil {
				continue // shadowed by a local declaration, not the real global
			}
			if !allLiteralArgs(c.Arguments) {
				continue
			}
			if filter != nil && !filter(n) {
				continue
			}
			out = append(out, n)
		}
		return out
	},
	Transform: func(ar *arborist.Arborist, n jsast.Node) {
		result := sandbox.EvalInVM(source(n), nil)
		if jsast.IsBadValue(result) {
			return
		}
		ar.MarkReplace(n, result)
	},
}

// localCallGlobalSkipList names callees that always resolve outside the
// program's own declarations, so a "local call" match against them would be
// meaningless or unsafe to snapshot.
var localCallGlobalSkipList = map[string]bool{
	"window": true, "this": true, "self": true, "document": true, "module": true,
	"$": true, "jQuery": true, "navigator": true, "typeof": true, "new": true,
	"Date": true, "Math": true, "Promise": true, "Error": true, "fetch": true,
	"XMLHttpRequest": true, "performance": true, "globalThis": true,
}

// localCallPropertySkipList names properties/methods whose resolution is
// either meaningless (pure introspection the engine can't improve on) or
// actively unsafe to hoist out of their mutating context.
var localCallPropertySkipList = map[string]bool{
	"test": true, "exec": true, "match": true, "length": true, "freeze": true,
	"call": true, "apply": true, "create": true, "getTime": true, "now": true,
	"getMilliseconds": true,
	"push": true, "forEach": true, "pop": true, "insert": true, "add": true,
	"set": true, "delete": true, "shift": true, "unshift": true, "splice": true,
	"sort": true, "reverse": true, "fill": true, "copyWithin": true,
}

func containsThis(n jsast.Node) bool {
	if n == nil {
		return false
	}
	if _, ok := n.(*jsast.ThisExpression); ok {
		return true
	}
	for _, c := range jsast.Children(n) {
		if containsThis(c) {
			return true
		}
	}
	return false
}

// NewResolveLocalCall builds the "resolve local calls" rule against a
// shared cache: results are keyed by callee name plus the source text of
// the callee's declaration.
func NewResolveLocalCall(cache *sandbox.Cache) rules.Rule {
	return rules.Rule{
		Name:   "resolve-local-call",
		Safety: rules.Unsafe,
		Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
			var out []jsast.Node
			for _, n := range idx.TypeIndex.Of(jsast.KindCallExpression) {
				c := n.(*jsast.CallExpression)
				name, ok := calleeName(c.Callee)
				if !ok || localCallGlobalSkipList[name] || localCallPropertySkipList[name] {
					continue
				}
				id, ok := c.Callee.(*jsast.Identifier)
				if !ok || id.DeclNode == nil {
					continue
				}
				if containsThisInArgs(c.Arguments) {
					continue
				}
				if filter != nil && !filter(n) {
					continue
				}
				out = append(out, n)
			}
			return out
		},
		Transform: func(ar *arborist.Arborist, n jsast.Node) {
			c := n.(*jsast.CallExpression)
			id := c.Callee.(*jsast.Identifier)
			declStmt := id.DeclNode.Meta().Parent

			key := sandbox.Key("resolve-local-call", id.Name+"#"+source(declStmt))
			if cached, ok := cache.GetNode(key); ok {
				if !jsast.IsBadValue(cached) {
					ar.MarkReplace(n, jsast.Clone(cached))
				}
				return
			}

			sb := sandbox.New()
			sb.Prepare(contextScript(id.DeclNode, true))
			result := sandbox.EvalInVM(source(n), sb)
			cache.PutNode(key, result)
			if jsast.IsBadValue(result) {
				return
			}
			// resolution of `.toString` that begins with "function" is the
			// classic anti-debugging trap; treat it as unresolved.
			if s, ok := jsast.LiteralString(result); ok && strings.HasPrefix(s, "function") {
				return
			}
			ar.MarkReplace(n, result)
		},
	}
}

func containsThisInArgs(args []jsast.Node) bool {
	for _, a := range args {
		if containsThis(a) {
			return true
		}
	}
	return false
}

// ResolveEvalOnNonLiteral evaluates eval's argument with full context; when
// the runtime result is a string, it is re-parsed as JS (the original
// fragment's own logic, not the outer program's) and spliced in; an
// unparseable result is kept as a string Literal instead of discarded.
var ResolveEvalOnNonLiteral = rules.Rule{
	Name:   "resolve-eval-on-non-literal",
	Safety: rules.Unsafe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindCallExpression) {
			c := n.(*jsast.CallExpression)
			id, ok := c.Callee.(*jsast.Identifier)
			if !ok || id.Name != "eval" || id.DeclNode != nil || len(c.Arguments) != 1 {
				continue
			}
			if _, ok := jsast.AsLiteral(c.Arguments[0]); ok {
				continue // the literal-argument case is a safe-rule concern
			}
			if filter != nil && !filter(n) {
				continue
			}
			out = append(out, n)
		}
		return out
	},
	Transform: func(ar *arborist.Arborist, n jsast.Node) {
		c := n.(*jsast.CallExpression)
		sb := sandbox.New()
		sb.Prepare(contextScript(n, false))
		result := sandbox.EvalInVM(source(c.Arguments[0]), sb)
		if jsast.IsBadValue(result) {
			return
		}
		s, ok := jsast.LiteralString(result)
		if !ok {
			ar.MarkReplace(n, result)
			return
		}
		parsed, ok := tryParseExpression(s)
		if !ok {
			ar.MarkReplace(n, jsast.NewStringLiteral(s))
			return
		}
		ar.MarkReplace(n, parsed)
	},
}

// tryParseExpression attempts to parse s as a JS program, retrying once
// with newlines inserted after `)`/`}` not followed by `/` — a light-touch
// fix for ASI-sensitive fragments the evaluator stringified without them.
func tryParseExpression(s string) (jsast.Node, bool) {
	prog, err := jsparse.Parse(s)
	if err == nil && len(prog.Body) > 0 {
		return unwrapSingleStatement(prog), true
	}
	retried := insertRecoveryNewlines(s)
	prog, err = jsparse.Parse(retried)
	if err == nil && len(prog.Body) > 0 {
		return unwrapSingleStatement(prog), true
	}
	return nil, false
}

func unwrapSingleStatement(prog *jsast.Program) jsast.Node {
	if len(prog.Body) == 1 {
		if es, ok := prog.Body[0].(*jsast.ExpressionStatement); ok {
			return es.Expression
		}
		return prog.Body[0]
	}
	return &jsast.BlockStatement{Body: prog.Body}
}

func insertRecoveryNewlines(s string) string {
	var b strings.Builder
	for i, r := range s {
		b.WriteRune(r)
		if (r == ')' || r == '}') && i+1 < len(s) && s[i+1] != '/' {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// ResolveMemberChainOnLocal evaluates a member-expression chain rooted at a
// locally declared object/array in context, rejecting empty
// arrays/objects/strings and null/undefined as meaningless replacements —
// over-resolving those would erase information a later pass could use.
var ResolveMemberChainOnLocal = rules.Rule{
	Name:   "resolve-member-chain-on-local",
	Safety: rules.Unsafe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindMemberExpression) {
			m := n.(*jsast.MemberExpression)
			root := rootIdentifier(m)
			if root == nil || root.DeclNode == nil {
				continue
			}
			if _, isAssignTarget := m.Meta().Parent.(*jsast.AssignmentExpression); isAssignTarget && m.Meta().ParentKey.Field == "Target" {
				continue
			}
			if filter != nil && !filter(n) {
				continue
			}
			out = append(out, n)
		}
		return out
	},
	Transform: func(ar *arborist.Arborist, n jsast.Node) {
		m := n.(*jsast.MemberExpression)
		root := rootIdentifier(m)
		sb := sandbox.New()
		sb.Prepare(contextScript(root, false))
		result := sandbox.EvalInVM(source(n), sb)
		if jsast.IsBadValue(result) || isMeaningless(result) {
			return
		}
		ar.MarkReplace(n, result)
	},
}

func rootIdentifier(m *jsast.MemberExpression) *jsast.Identifier {
	obj := jsast.Node(m)
	for {
		switch v := obj.(type) {
		case *jsast.MemberExpression:
			obj = v.Object
		case *jsast.Identifier:
			return v
		default:
			return nil
		}
	}
}

func isMeaningless(n jsast.Node) bool {
	switch v := n.(type) {
	case *jsast.ArrayExpression:
		return len(v.Elements) == 0
	case *jsast.ObjectExpression:
		return len(v.Properties) == 0
	case *jsast.Literal:
		switch v.LitKind {
		case jsast.LitNull, jsast.LitUndefined:
			return true
		case jsast.LitString:
			s, _ := jsast.LiteralString(v)
			return s == ""
		}
	}
	return false
}

// ResolveMinimalAlphabet resolves JSFuck-style expressions built from only
// `[]`, `!`, `+` — unary operators on non-numeric literals/arrays, and
// binary `+` where neither operand is already numeric or `this`.
var ResolveMinimalAlphabet = rules.Rule{
	Name:   "resolve-minimal-alphabet",
	Safety: rules.Unsafe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindUnaryExpression) {
			u := n.(*jsast.UnaryExpression)
			if (u.Operator != "!" && u.Operator != "+") || containsThis(u) {
				continue
			}
			if !isMinimalAlphabetOperand(u.Argument) {
				continue
			}
			if filter != nil && !filter(n) {
				continue
			}
			out = append(out, n)
		}
		for _, n := range idx.TypeIndex.Of(jsast.KindBinaryExpression) {
			b := n.(*jsast.BinaryExpression)
			if b.Operator != "+" || containsThis(b) {
				continue
			}
			if jsast.IsLiteralOfKind(b.Left, jsast.LitNumber) || jsast.IsLiteralOfKind(b.Right, jsast.LitNumber) {
				continue
			}
			if filter != nil && !filter(n) {
				continue
			}
			out = append(out, n)
		}
		return out
	},
	Transform: func(ar *arborist.Arborist, n jsast.Node) {
		result := sandbox.EvalInVM(source(n), nil)
		if jsast.IsBadValue(result) {
			return
		}
		ar.MarkReplace(n, result)
	},
}

func isMinimalAlphabetOperand(n jsast.Node) bool {
	switch v := n.(type) {
	case *jsast.ArrayExpression:
		return true
	case *jsast.Literal:
		return v.LitKind != jsast.LitNumber
	case *jsast.UnaryExpression:
		return isMinimalAlphabetOperand(v.Argument)
	}
	return false
}

// NewResolveInjectedPrototypeMethod builds the rule for `X.prototype.m =
// fnOrId` assignments: every `something.m(args)` call elsewhere is
// evaluated in a context containing the assignment.
func NewResolveInjectedPrototypeMethod(cache *sandbox.Cache) rules.Rule {
	return rules.Rule{
		Name:   "resolve-injected-prototype-method",
		Safety: rules.Unsafe,
		Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
			methods := prototypeMethodAssignments(prog)
			if len(methods) == 0 {
				return nil
			}
			var out []jsast.Node
			for _, n := range idx.TypeIndex.Of(jsast.KindCallExpression) {
				c := n.(*jsast.CallExpression)
				name, ok := calleeName(c.Callee)
				if !ok {
					continue
				}
				if _, injected := methods[name]; !injected {
					continue
				}
				if filter != nil && !filter(n) {
					continue
				}
				out = append(out, n)
			}
			return out
		},
		Transform: func(ar *arborist.Arborist, n jsast.Node) {
			c := n.(*jsast.CallExpression)
			name, _ := calleeName(c.Callee)
			assign := prototypeMethodAssignments(topProgram(n))[name]
			if assign == nil {
				return
			}
			key := sandbox.Key("resolve-injected-prototype-method", name+"#"+source(assign))
			sb, ok := cache.GetSandbox(key)
			if !ok {
				sb = sandbox.New()
				sb.Prepare(source(assign))
				cache.PutSandbox(key, sb)
			}
			result := sandbox.EvalInVM(source(n), sb)
			if jsast.IsBadValue(result) {
				return
			}
			ar.MarkReplace(n, result)
		},
	}
}

func topProgram(n jsast.Node) *jsast.Program {
	lineage := n.Meta().Lineage
	if len(lineage) > 0 {
		if p, ok := lineage[0].(*jsast.Program); ok {
			return p
		}
	}
	if p, ok := n.(*jsast.Program); ok {
		return p
	}
	return nil
}

// prototypeMethodAssignments finds every `X.prototype.m = value` statement
// in prog, keyed by method name.
func prototypeMethodAssignments(prog *jsast.Program) map[string]jsast.Node {
	out := make(map[string]jsast.Node)
	if prog == nil {
		return out
	}
	var walk func(n jsast.Node)
	walk = func(n jsast.Node) {
		if n == nil {
			return
		}
		if assign, ok := n.(*jsast.AssignmentExpression); ok {
			if name, ok := prototypeMethodName(assign.Target); ok {
				out[name] = topLevelStatementOf(assign, prog)
			}
		}
		for _, c := range jsast.Children(n) {
			walk(c)
		}
	}
	walk(prog)
	return out
}

func topLevelStatementOf(n jsast.Node, prog *jsast.Program) jsast.Node {
	lineage := n.Meta().Lineage
	for i := len(lineage) - 1; i >= 0; i-- {
		if _, ok := lineage[i].Meta().Parent.(*jsast.Program); ok {
			return lineage[i]
		}
	}
	return n
}

func prototypeMethodName(target jsast.Node) (string, bool) {
	outer, ok := target.(*jsast.MemberExpression)
	if !ok || outer.Computed {
		return "", false
	}
	methodID, ok := outer.Property.(*jsast.Identifier)
	if !ok {
		return "", false
	}
	inner, ok := outer.Object.(*jsast.MemberExpression)
	if !ok || inner.Computed {
		return "", false
	}
	protoID, ok := inner.Property.(*jsast.Identifier)
	if !ok || protoID.Name != "prototype" {
		return "", false
	}
	return methodID.Name, true
}

// NormalizeRedundantNot evaluates `!x` when x is a Literal, Array, Object,
// a TemplateLiteral with no dynamic parts, the identifier `undefined`, or a
// nested Unary — shapes whose truthiness the evaluator can decide without
// any ambient context.
var NormalizeRedundantNot = rules.Rule{
	Name:   "normalize-redundant-not",
	Safety: rules.Unsafe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindUnaryExpression) {
			u := n.(*jsast.UnaryExpression)
			if u.Operator != "!" || !isRedundantNotOperand(u.Argument) {
				continue
			}
			if filter != nil && !filter(n) {
				continue
			}
			out = append(out, n)
		}
		return out
	},
	Transform: func(ar *arborist.Arborist, n jsast.Node) {
		result := sandbox.EvalInVM(source(n), nil)
		if jsast.IsBadValue(result) {
			return
		}
		ar.MarkReplace(n, result)
	},
}

func isRedundantNotOperand(n jsast.Node) bool {
	switch v := n.(type) {
	case *jsast.Literal, *jsast.ArrayExpression, *jsast.ObjectExpression:
		return true
	case *jsast.TemplateLiteral:
		return len(v.Expressions) == 0
	case *jsast.Identifier:
		return v.Name == "undefined" && v.DeclNode == nil
	case *jsast.UnaryExpression:
		return true
	}
	return false
}

// NewResolveAugmentedFunctionWrappedArrays builds the rule for the
// self-overwriting-FunctionDeclaration obfuscation shape: `function f(i){
// f = function(j){ return A[j]; }; return f(i); }` where A is an
// externally declared array additionally permuted elsewhere in the program
// by an augmented-array rotation IIFE
// (`(function(a,n){while(n--)a.push(a.shift())})(A, k)`). It locates the
// array's declaration and the rotation IIFE, primes a shared sandbox with
// the array declaration, f's own declaration, and the rotation IIFE, and
// resolves every later call to f against that sandbox — distinct from the
// bundle-level augmented-array preprocessor, which only resolves the
// array's own initializer, not calls through a self-overwriting shell
// function layered on top of it.
func NewResolveAugmentedFunctionWrappedArrays(cache *sandbox.Cache) rules.Rule {
	return rules.Rule{
		Name:   "resolve-augmented-function-wrapped-arrays",
		Safety: rules.Unsafe,
		Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
			var out []jsast.Node
			for _, n := range idx.TypeIndex.Of(jsast.KindCallExpression) {
				c := n.(*jsast.CallExpression)
				id, ok := c.Callee.(*jsast.Identifier)
				if !ok || id.DeclNode == nil {
					continue
				}
				fn, ok := id.DeclNode.Meta().Parent.(*jsast.FunctionDeclaration)
				if !ok || isWithinFunction(n, fn) {
					continue
				}
				if _, _, ok := augmentedFunctionWrapper(fn, prog); !ok {
					continue
				}
				if filter != nil && !filter(n) {
					continue
				}
				out = append(out, n)
			}
			return out
		},
		Transform: func(ar *arborist.Arborist, n jsast.Node) {
			c := n.(*jsast.CallExpression)
			id := c.Callee.(*jsast.Identifier)
			fn := id.DeclNode.Meta().Parent.(*jsast.FunctionDeclaration)
			if isWithinFunction(n, fn) {
				return
			}
			prog := topProgram(n)
			arrDecl, iifeStmt, ok := augmentedFunctionWrapper(fn, prog)
			if !ok {
				return
			}

			key := sandbox.Key("resolve-augmented-function-wrapped-arrays", id.Name+"#"+source(arrDecl)+"#"+source(iifeStmt))
			sb, cached := cache.GetSandbox(key)
			if !cached {
				sb = sandbox.New()
				sb.Prepare(source(arrDecl) + "\n" + source(fn) + "\n" + source(iifeStmt))
				cache.PutSandbox(key, sb)
			}
			result := sandbox.EvalInVM(source(n), sb)
			if jsast.IsBadValue(result) {
				return
			}
			ar.MarkReplace(n, result)
		},
	}
}

// isWithinFunction reports whether n is nested anywhere inside fn's own
// body — used to exclude fn's recursive self-call from the set of call
// sites this rule resolves against the sandbox, since that call is part of
// the pattern being matched, not a use of its result.
func isWithinFunction(n jsast.Node, fn *jsast.FunctionDeclaration) bool {
	for p := n.Meta().Parent; p != nil; p = p.Meta().Parent {
		if p == jsast.Node(fn) {
			return true
		}
	}
	return false
}

// augmentedFunctionWrapper reports the array declaration and rotation IIFE
// statement a self-overwriting FunctionDeclaration indirectly depends on:
// fn's body reassigns fn's own name to a new FunctionExpression, and that
// replacement function's body reads a MemberExpression chain rooted at an
// externally declared array which prog also permutes via an
// augmented-array rotation IIFE.
func augmentedFunctionWrapper(fn *jsast.FunctionDeclaration, prog *jsast.Program) (arrDecl jsast.Node, iife jsast.Node, ok bool) {
	if fn.ID == nil || prog == nil {
		return nil, nil, false
	}
	replacement, ok := selfOverwriteTarget(fn)
	if !ok {
		return nil, nil, false
	}
	arrID := memberChainArrayRoot(replacement)
	if arrID == nil || arrID.DeclNode == nil {
		return nil, nil, false
	}
	decl, ok := arrID.DeclNode.Meta().Parent.(*jsast.VariableDeclarator)
	if !ok || decl.Init == nil {
		return nil, nil, false
	}
	iifeStmt := findRotationIIFE(prog, arrID.DeclNode)
	if iifeStmt == nil {
		return nil, nil, false
	}
	return topLevelStatementOf(decl, prog), iifeStmt, true
}

// selfOverwriteTarget reports the FunctionExpression a FunctionDeclaration's
// body reassigns its own name to: `f = function(...){...};` as one of fn's
// top-level statements.
func selfOverwriteTarget(fn *jsast.FunctionDeclaration) (*jsast.FunctionExpression, bool) {
	if fn.Body == nil {
		return nil, false
	}
	for _, stmt := range fn.Body.Body {
		es, ok := stmt.(*jsast.ExpressionStatement)
		if !ok {
			continue
		}
		assign, ok := es.Expression.(*jsast.AssignmentExpression)
		if !ok || assign.Operator != "=" {
			continue
		}
		target, ok := assign.Target.(*jsast.Identifier)
		if !ok || target.DeclNode != fn.ID {
			continue
		}
		if replacement, ok := assign.Value.(*jsast.FunctionExpression); ok {
			return replacement, true
		}
	}
	return nil, false
}

// memberChainArrayRoot finds the first MemberExpression chain inside fn's
// body and reports its root Identifier.
func memberChainArrayRoot(fn *jsast.FunctionExpression) *jsast.Identifier {
	var found *jsast.Identifier
	var walk func(n jsast.Node)
	walk = func(n jsast.Node) {
		if n == nil || found != nil {
			return
		}
		if m, ok := n.(*jsast.MemberExpression); ok {
			if root := rootIdentifier(m); root != nil {
				found = root
				return
			}
		}
		for _, c := range jsast.Children(n) {
			walk(c)
		}
	}
	walk(fn.Body)
	return found
}

// findRotationIIFE locates the top-level statement housing an
// augmented-array rotation IIFE
// (`(function(a,n){while(n--)a.push(a.shift())})(A, k)`) anywhere in prog
// whose first argument resolves to arrID, or nil if there isn't one.
func findRotationIIFE(prog *jsast.Program, arrID *jsast.Identifier) jsast.Node {
	var found jsast.Node
	var walk func(n jsast.Node)
	walk = func(n jsast.Node) {
		if n == nil || found != nil {
			return
		}
		if c, ok := n.(*jsast.CallExpression); ok {
			if fn, ok := c.Callee.(*jsast.FunctionExpression); ok && len(c.Arguments) == 2 && isRotationIIFEBody(fn) {
				if id, ok := c.Arguments[0].(*jsast.Identifier); ok && id.DeclNode == arrID {
					found = topLevelStatementOf(n, prog)
					return
				}
			}
		}
		for _, ch := range jsast.Children(n) {
			walk(ch)
		}
	}
	walk(prog)
	return found
}

// isRotationIIFEBody reports whether fn's body is exactly
// `while(n--) arr.push(arr.shift())` — the single-statement function body
// the augmented-array cipher always uses.
func isRotationIIFEBody(fn *jsast.FunctionExpression) bool {
	if fn.Body == nil || len(fn.Body.Body) != 1 {
		return false
	}
	ws, ok := fn.Body.Body[0].(*jsast.WhileStatement)
	if !ok {
		return false
	}
	es, ok := ws.Body.(*jsast.ExpressionStatement)
	if !ok {
		return false
	}
	call, ok := es.Expression.(*jsast.CallExpression)
	if !ok {
		return false
	}
	name, ok := calleeName(call.Callee)
	return ok && name == "push"
}
