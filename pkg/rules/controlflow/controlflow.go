// Package controlflow implements the safe control-flow simplification
// rules: dead-branch elimination, redundant-block flattening,
// literal-state-machine switch linearization, chained-declarator
// separation, empty-statement/sequence-expression cleanup, and
// call/apply-with-this simplification.
package controlflow

import (
	"github.com/ctrl-escp/restringer-go/pkg/arborist"
	"github.com/ctrl-escp/restringer-go/pkg/jsast"
	"github.com/ctrl-escp/restringer-go/pkg/rules"
)

// SimplifyEmptyBranches rewrites if-statements with empty branches:
// if(t){}else{} -> t;  if(t){}else A -> if(!t) A  if(t) A else {} -> if(t) A
var SimplifyEmptyBranches = rules.Rule{
	Name:   "simplify-empty-branches",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindIfStatement) {
			ifs := n.(*jsast.IfStatement)
			if !isEmptyBranch(ifs.Consequent) && !isEmptyBranch(ifs.Alternate) {
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
		ifs := n.(*jsast.IfStatement)
		consEmpty := isEmptyBranch(ifs.Consequent)
		altEmpty := ifs.Alternate == nil || isEmptyBranch(ifs.Alternate)
		switch {
		case consEmpty && altEmpty:
			ar.MarkReplace(n, &jsast.ExpressionStatement{Expression: jsast.Clone(ifs.Test)})
		case consEmpty && !altEmpty:
			ar.MarkReplace(n, &jsast.IfStatement{
				Test:       &jsast.UnaryExpression{Operator: "!", Argument: jsast.Clone(ifs.Test), Prefix: true},
				Consequent: jsast.Clone(ifs.Alternate),
			})
		case !consEmpty && altEmpty && ifs.Alternate != nil:
			ar.MarkReplace(n, &jsast.IfStatement{Test: jsast.Clone(ifs.Test), Consequent: jsast.Clone(ifs.Consequent)})
		}
	},
}

func isEmptyBranch(n jsast.Node) bool {
	if n == nil {
		return false
	}
	switch v := n.(type) {
	case *jsast.EmptyStatement:
		return true
	case *jsast.BlockStatement:
		return len(v.Body) == 0
	}
	return false
}

// ResolveDeterministicIf collapses `if(L) A else B` to whichever branch JS
// truthiness of the Literal test selects; when that branch is absent the
// whole statement is deleted.
var ResolveDeterministicIf = rules.Rule{
	Name:   "resolve-deterministic-if",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindIfStatement) {
			ifs := n.(*jsast.IfStatement)
			if _, ok := jsast.Truthiness(ifs.Test); !ok {
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
		ifs := n.(*jsast.IfStatement)
		truthy, ok := jsast.Truthiness(ifs.Test)
		if !ok {
			return
		}
		branch := ifs.Consequent
		if !truthy {
			branch = ifs.Alternate
		}
		if branch == nil {
			ar.MarkDelete(n)
			return
		}
		ar.MarkReplace(n, jsast.Clone(branch))
	},
}

// ShortCircuitStatementToIf converts `a && b();` into `if(a) b();` and
// `a || b();` into `if(!a) b();`.
var ShortCircuitStatementToIf = rules.Rule{
	Name:   "short-circuit-statement-to-if",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindExpressionStatement) {
			es := n.(*jsast.ExpressionStatement)
			logical, ok := es.Expression.(*jsast.LogicalExpression)
			if !ok || (logical.Operator != "&&" && logical.Operator != "||") {
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
		es := n.(*jsast.ExpressionStatement)
		logical := es.Expression.(*jsast.LogicalExpression)
		test := jsast.Clone(logical.Left)
		if logical.Operator == "||" {
			test = &jsast.UnaryExpression{Operator: "!", Argument: test, Prefix: true}
		}
		ar.MarkReplace(n, &jsast.IfStatement{
			Test:       test,
			Consequent: &jsast.ExpressionStatement{Expression: jsast.Clone(logical.Right)},
		})
	},
}

// RemoveRedundantBlock flattens a BlockStatement nested directly inside
// Program or another BlockStatement into its parent's body.
var RemoveRedundantBlock = rules.Rule{
	Name:   "remove-redundant-block",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindBlockStatement) {
			switch n.Meta().Parent.(type) {
			case *jsast.Program, *jsast.BlockStatement:
			default:
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
		block := n.(*jsast.BlockStatement)
		replacements := make([]jsast.Node, len(block.Body))
		for i, stmt := range block.Body {
			replacements[i] = jsast.Clone(stmt)
		}
		ar.MarkReplaceMany(n, replacements)
	},
}

// SeparateChainedDeclarators splits `let a=1, b=2;` into `let a=1; let b=2;`
// outside for-loop heads, one VariableDeclaration per declarator.
var SeparateChainedDeclarators = rules.Rule{
	Name:   "separate-chained-declarators",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindVariableDeclaration) {
			d := n.(*jsast.VariableDeclaration)
			if len(d.Declarations) < 2 {
				continue
			}
			switch n.Meta().ParentKey.Field {
			case "Init", "Left":
				continue // for-loop head
			}
			if filter != nil && !filter(n) {
				continue
			}
			out = append(out, n)
		}
		return out
	},
	Transform: func(ar *arborist.Arborist, n jsast.Node) {
		d := n.(*jsast.VariableDeclaration)
		replacements := make([]jsast.Node, len(d.Declarations))
		for i, decl := range d.Declarations {
			replacements[i] = &jsast.VariableDeclaration{
				DeclKind:     d.DeclKind,
				Declarations: []*jsast.VariableDeclarator{jsast.Clone(decl).(*jsast.VariableDeclarator)},
			}
		}
		ar.MarkReplaceMany(n, replacements)
	},
}

// maxSwitchTraceSteps bounds the state-machine linearization below; a
// traced path longer than this is left alone rather than risk an infinite
// case-to-case hop on a malformed state machine.
const maxSwitchTraceSteps = 50

// LinearizeLiteralSwitch rearranges switches whose discriminant is an
// identifier declared with a Literal initializer: it statically traces the
// case chain by following assignments to the discriminant and replaces the
// whole switch with the linearized sequence of statements it would run.
var LinearizeLiteralSwitch = rules.Rule{
	Name:   "linearize-literal-switch",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindSwitchStatement) {
			sw := n.(*jsast.SwitchStatement)
			if _, ok := traceSwitch(sw); !ok {
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
		sw := n.(*jsast.SwitchStatement)
		stmts, ok := traceSwitch(sw)
		if !ok {
			return
		}
		ar.MarkReplace(n, &jsast.BlockStatement{Body: stmts})
	},
}

// traceSwitch walks sw's case chain starting from its discriminant's
// literal initializer, following reassignments of the discriminant to hop
// between cases, and returns the flattened statement sequence it would
// execute. It reports ok=false when the discriminant isn't a
// literal-initialized local, no case matches the traced value, the trace
// never reaches a terminal break, or the hop count exceeds
// maxSwitchTraceSteps.
func traceSwitch(sw *jsast.SwitchStatement) ([]jsast.Node, bool) {
	id, ok := sw.Discriminant.(*jsast.Identifier)
	if !ok || id.DeclNode == nil {
		return nil, false
	}
	decl, ok := id.DeclNode.Meta().Parent.(*jsast.VariableDeclarator)
	if !ok || decl.Init == nil {
		return nil, false
	}
	current, ok := jsast.AsLiteral(decl.Init)
	if !ok {
		return nil, false
	}

	var out []jsast.Node
	seen := map[*jsast.SwitchCase]bool{}
	for step := 0; ; step++ {
		if step >= maxSwitchTraceSteps {
			return nil, false
		}
		c := findCase(sw, current)
		if c == nil || seen[c] {
			return nil, false
		}
		seen[c] = true

		reassigned, stmts, next := runCaseBody(c.Consequent, id.DeclNode)
		out = append(out, stmts...)
		if !reassigned {
			for _, s := range c.Consequent {
				if _, ok := s.(*jsast.BreakStatement); ok {
					return out, true // terminal break: no further state change
				}
			}
			return nil, false // the case ends without a break
		}
		current = next
	}
}

// findCase returns the SwitchCase whose Test literal equals v, falling back
// to the default case (Test == nil) when no Test matches.
func findCase(sw *jsast.SwitchStatement, v *jsast.Literal) *jsast.SwitchCase {
	var def *jsast.SwitchCase
	for _, c := range sw.Cases {
		if c.Test == nil {
			def = c
			continue
		}
		test, ok := jsast.AsLiteral(c.Test)
		if !ok {
			continue
		}
		if literalsEqual(test, v) {
			return c
		}
	}
	return def
}

// runCaseBody executes one case's statement list at trace time: it collects
// every non-bookkeeping statement, and watches for an assignment to the
// discriminant (the marker that the next case should run) or a break (the
// marker that execution leaves the switch). It reports whether a
// reassignment was seen, the collected statements, and the literal to
// resume tracing from when reassigned=true.
func runCaseBody(body []jsast.Node, discriminant *jsast.Identifier) (reassigned bool, stmts []jsast.Node, next *jsast.Literal) {
	for _, s := range body {
		if _, ok := s.(*jsast.BreakStatement); ok {
			return reassigned, stmts, next
		}
		if es, ok := s.(*jsast.ExpressionStatement); ok {
			if assign, ok := es.Expression.(*jsast.AssignmentExpression); ok && assign.Operator == "=" {
				if target, ok := assign.Target.(*jsast.Identifier); ok && target.DeclNode == discriminant {
					if lit, ok := jsast.AsLiteral(assign.Value); ok {
						reassigned = true
						next = lit
						continue
					}
				}
			}
		}
		stmts = append(stmts, jsast.Clone(s))
	}
	return reassigned, stmts, next
}

// literalsEqual compares two Literal nodes by kind and Go value.
func literalsEqual(a, b *jsast.Literal) bool {
	return a.LitKind == b.LitKind && a.Value == b.Value
}

// NormalizeEmptyStatements deletes stray EmptyStatement nodes (a bare `;`)
// sitting directly in a statement list; they carry no semantics.
var NormalizeEmptyStatements = rules.Rule{
	Name:   "normalize-empty-statements",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindEmptyStatement) {
			if n.Meta().ParentKey.Index < 0 {
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
		ar.MarkDelete(n)
	},
}

// RearrangeSequenceExpressionStatements splits `a(), b(), c();` — a bare
// ExpressionStatement whose expression is a SequenceExpression — into
// `a(); b(); c();`, one ExpressionStatement per comma operand.
var RearrangeSequenceExpressionStatements = rules.Rule{
	Name:   "rearrange-sequence-expression-statements",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindExpressionStatement) {
			es := n.(*jsast.ExpressionStatement)
			if _, ok := es.Expression.(*jsast.SequenceExpression); !ok {
				continue
			}
			if n.Meta().ParentKey.Index < 0 {
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
		es := n.(*jsast.ExpressionStatement)
		seq := es.Expression.(*jsast.SequenceExpression)
		replacements := make([]jsast.Node, len(seq.Expressions))
		for i, e := range seq.Expressions {
			replacements[i] = &jsast.ExpressionStatement{Expression: jsast.Clone(e)}
		}
		ar.MarkReplaceMany(n, replacements)
	},
}

// ExtractLeadingSequenceEffects hoists the side-effecting leading operands
// of a SequenceExpression used as `return (a,b,c);` or `if((a,b,c)) ...`
// into separate ExpressionStatements ahead of the return/if, replacing the
// return argument or if test with just the sequence's last operand. Only
// matches when the return/if itself sits directly in a statement list, the
// only slot the leading statements can be spliced ahead of.
var ExtractLeadingSequenceEffects = rules.Rule{
	Name:   "extract-leading-sequence-effects",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindReturnStatement) {
			ret := n.(*jsast.ReturnStatement)
			seq, ok := ret.Argument.(*jsast.SequenceExpression)
			if !ok || len(seq.Expressions) < 2 || n.Meta().ParentKey.Index < 0 {
				continue
			}
			if filter != nil && !filter(n) {
				continue
			}
			out = append(out, n)
		}
		for _, n := range idx.TypeIndex.Of(jsast.KindIfStatement) {
			ifs := n.(*jsast.IfStatement)
			seq, ok := ifs.Test.(*jsast.SequenceExpression)
			if !ok || len(seq.Expressions) < 2 || n.Meta().ParentKey.Index < 0 {
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
		switch v := n.(type) {
		case *jsast.ReturnStatement:
			seq, ok := v.Argument.(*jsast.SequenceExpression)
			if !ok || len(seq.Expressions) < 2 {
				return
			}
			stmts := leadingEffectStatements(seq)
			stmts = append(stmts, &jsast.ReturnStatement{Argument: jsast.Clone(seq.Expressions[len(seq.Expressions)-1])})
			ar.MarkReplaceMany(n, stmts)
		case *jsast.IfStatement:
			seq, ok := v.Test.(*jsast.SequenceExpression)
			if !ok || len(seq.Expressions) < 2 {
				return
			}
			stmts := leadingEffectStatements(seq)
			stmts = append(stmts, &jsast.IfStatement{
				Test:       jsast.Clone(seq.Expressions[len(seq.Expressions)-1]),
				Consequent: jsast.Clone(v.Consequent),
				Alternate:  jsast.Clone(v.Alternate),
			})
			ar.MarkReplaceMany(n, stmts)
		}
	},
}

func leadingEffectStatements(seq *jsast.SequenceExpression) []jsast.Node {
	out := make([]jsast.Node, len(seq.Expressions)-1)
	for i, e := range seq.Expressions[:len(seq.Expressions)-1] {
		out[i] = &jsast.ExpressionStatement{Expression: jsast.Clone(e)}
	}
	return out
}

// ResolveRedundantLogicalOpsInIf simplifies an if-test's logical layer: a
// double negation `if(!!x)` collapses to `if(x)`, and a Literal left operand
// of `&&`/`||` that already decides the short-circuit (`true && x`, `false
// && x`, `true || x`, `false || x`) collapses to whichever side the
// operator's short-circuit semantics select.
var ResolveRedundantLogicalOpsInIf = rules.Rule{
	Name:   "resolve-redundant-logical-ops-in-if",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindIfStatement) {
			ifs := n.(*jsast.IfStatement)
			if _, ok := simplifiedIfTest(ifs.Test); !ok {
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
		ifs := n.(*jsast.IfStatement)
		simplified, ok := simplifiedIfTest(ifs.Test)
		if !ok {
			return
		}
		ar.MarkReplace(ifs.Test, jsast.Clone(simplified))
	},
}

// simplifiedIfTest reports a simpler equivalent of test when it is a double
// negation or a logical expression whose Literal left operand already
// decides the short-circuit outcome.
func simplifiedIfTest(test jsast.Node) (jsast.Node, bool) {
	switch t := test.(type) {
	case *jsast.UnaryExpression:
		if t.Operator != "!" {
			return nil, false
		}
		inner, ok := t.Argument.(*jsast.UnaryExpression)
		if !ok || inner.Operator != "!" {
			return nil, false
		}
		return inner.Argument, true
	case *jsast.LogicalExpression:
		truthy, ok := jsast.Truthiness(t.Left)
		if !ok {
			return nil, false
		}
		switch {
		case t.Operator == "&&" && truthy:
			return t.Right, true
		case t.Operator == "&&" && !truthy:
			return t.Left, true
		case t.Operator == "||" && truthy:
			return t.Left, true
		case t.Operator == "||" && !truthy:
			return t.Right, true
		}
	}
	return nil, false
}

// SimplifyCallApplyWithThis rewrites `f.call(this, a, b)` to `f(a, b)` and
// `f.apply(this, [a, b])` to `f(a, b)` — the common case where call/apply is
// only used to forward the ambient `this`, not to rebind it to something
// else.
var SimplifyCallApplyWithThis = rules.Rule{
	Name:   "simplify-call-apply-with-this",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindCallExpression) {
			c := n.(*jsast.CallExpression)
			if _, _, ok := callApplyTarget(c); !ok {
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
		target, args, ok := callApplyTarget(c)
		if !ok {
			return
		}
		cloned := make([]jsast.Node, len(args))
		for i, a := range args {
			cloned[i] = jsast.Clone(a)
		}
		ar.MarkReplace(n, &jsast.CallExpression{Callee: jsast.Clone(target), Arguments: cloned})
	},
}

// callApplyTarget reports the receiver function and flattened argument list
// of `f.call(this, a, b, ...)` or `f.apply(this, [a, b, ...])`.
func callApplyTarget(c *jsast.CallExpression) (jsast.Node, []jsast.Node, bool) {
	member, ok := c.Callee.(*jsast.MemberExpression)
	if !ok || member.Computed {
		return nil, nil, false
	}
	prop, ok := member.Property.(*jsast.Identifier)
	if !ok {
		return nil, nil, false
	}
	switch prop.Name {
	case "call":
		if len(c.Arguments) == 0 {
			return nil, nil, false
		}
		if _, ok := c.Arguments[0].(*jsast.ThisExpression); !ok {
			return nil, nil, false
		}
		return member.Object, c.Arguments[1:], true
	case "apply":
		if len(c.Arguments) != 2 {
			return nil, nil, false
		}
		if _, ok := c.Arguments[0].(*jsast.ThisExpression); !ok {
			return nil, nil, false
		}
		arr, ok := c.Arguments[1].(*jsast.ArrayExpression)
		if !ok {
			return nil, nil, false
		}
		return member.Object, arr.Elements, true
	}
	return nil, nil, false
}
