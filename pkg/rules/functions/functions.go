// Package functions implements the safe function-unwrapping rules: shell
// functions (declarations, arrows, and const function expressions alike)
// that exist only to return a value, IIFEs wrapping a value or a short
// statement sequence, thin proxy/pass-through wrappers, apply(this,
// arguments) forwarding shells, literal-eval, and the Function-constructor
// forms of the same idea.
package functions

import (
	"github.com/ctrl-escp/restringer-go/pkg/arborist"
	"github.com/ctrl-escp/restringer-go/pkg/jsast"
	"github.com/ctrl-escp/restringer-go/pkg/jsparse"
	"github.com/ctrl-escp/restringer-go/pkg/rules"
)

// FunctionShellReplacement replaces every *call* to a function whose entire
// body is `return <Literal-or-Identifier>;` with a clone of that value,
// leaving non-call references (e.g. passing the function by name) intact.
var FunctionShellReplacement = rules.Rule{
	Name:   "function-shell-replacement",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindCallExpression) {
			c := n.(*jsast.CallExpression)
			callee, ok := c.Callee.(*jsast.Identifier)
			if !ok || callee.DeclNode == nil {
				continue
			}
			if _, ok := shellReturnValue(callee.DeclNode); !ok {
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
		callee := c.Callee.(*jsast.Identifier)
		val, ok := shellReturnValue(callee.DeclNode)
		if !ok {
			return
		}
		ar.MarkReplace(n, jsast.Clone(val))
	},
}

// shellReturnValue reports the value a function-shaped declaration
// unconditionally returns, if its body is exactly one ReturnStatement whose
// argument is a Literal or Identifier.
func shellReturnValue(declID *jsast.Identifier) (jsast.Node, bool) {
	fn, ok := declID.Meta().Parent.(*jsast.FunctionDeclaration)
	if !ok {
		return nil, false
	}
	if fn.Body == nil || len(fn.Body.Body) != 1 {
		return nil, false
	}
	ret, ok := fn.Body.Body[0].(*jsast.ReturnStatement)
	if !ok || ret.Argument == nil {
		return nil, false
	}
	switch ret.Argument.(type) {
	case *jsast.Literal, *jsast.Identifier:
		return ret.Argument, true
	}
	return nil, false
}

// IIFEShellValue collapses `(function(){ return V; })()` with zero
// arguments into a clone of V.
var IIFEShellValue = rules.Rule{
	Name:   "iife-shell-value",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindCallExpression) {
			c := n.(*jsast.CallExpression)
			if len(c.Arguments) != 0 {
				continue
			}
			fn, ok := c.Callee.(*jsast.FunctionExpression)
			if !ok {
				continue
			}
			if _, ok := shellBodyValue(fn); !ok {
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
		fn := c.Callee.(*jsast.FunctionExpression)
		val, ok := shellBodyValue(fn)
		if !ok {
			return
		}
		ar.MarkReplace(n, jsast.Clone(val))
	},
}

func shellBodyValue(fn *jsast.FunctionExpression) (jsast.Node, bool) {
	if fn.Body == nil || len(fn.Body.Body) != 1 || len(fn.Params) != 0 {
		return nil, false
	}
	ret, ok := fn.Body.Body[0].(*jsast.ReturnStatement)
	if !ok || ret.Argument == nil {
		return nil, false
	}
	switch ret.Argument.(type) {
	case *jsast.Literal, *jsast.Identifier:
		return ret.Argument, true
	}
	return nil, false
}

// UnwrapSimpleOperationWrapper rewrites every call `op(x, y)` of a function
// shaped `function op(a,b){ return a <binop> b; }` into `x <binop> y`
// directly, enforcing that the call's argument count matches the
// declaration's parameter count.
var UnwrapSimpleOperationWrapper = rules.Rule{
	Name:   "unwrap-simple-operation-wrapper",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindCallExpression) {
			c := n.(*jsast.CallExpression)
			callee, ok := c.Callee.(*jsast.Identifier)
			if !ok || callee.DeclNode == nil {
				continue
			}
			fn, ok := callee.DeclNode.Meta().Parent.(*jsast.FunctionDeclaration)
			if !ok {
				continue
			}
			if _, ok := binOpWrapper(fn); !ok {
				continue
			}
			if len(c.Arguments) != len(fn.Params) {
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
		callee := c.Callee.(*jsast.Identifier)
		fn := callee.DeclNode.Meta().Parent.(*jsast.FunctionDeclaration)
		op, ok := binOpWrapper(fn)
		if !ok || len(c.Arguments) != 2 {
			return
		}
		ar.MarkReplace(n, &jsast.BinaryExpression{
			Operator: op,
			Left:     jsast.Clone(c.Arguments[0]),
			Right:    jsast.Clone(c.Arguments[1]),
		})
	},
}

// binOpWrapper reports the operator of a `function op(a,b){ return a op b; }`
// shaped declaration, requiring both parameters to feed directly into the
// binary expression in declared order.
func binOpWrapper(fn *jsast.FunctionDeclaration) (string, bool) {
	if len(fn.Params) != 2 || fn.Body == nil || len(fn.Body.Body) != 1 {
		return "", false
	}
	ret, ok := fn.Body.Body[0].(*jsast.ReturnStatement)
	if !ok || ret.Argument == nil {
		return "", false
	}
	bin, ok := ret.Argument.(*jsast.BinaryExpression)
	if !ok {
		return "", false
	}
	left, ok := bin.Left.(*jsast.Identifier)
	if !ok || fn.Params[0].Name == nil || left.DeclNode != fn.Params[0].Name {
		return "", false
	}
	right, ok := bin.Right.(*jsast.Identifier)
	if !ok || fn.Params[1].Name == nil || right.DeclNode != fn.Params[1].Name {
		return "", false
	}
	return bin.Operator, true
}

// ProxyCallFunction replaces every use of `outer` with `inner` when outer is
// shaped `function outer(a,b){ return inner(a,b); }` with parameters passed
// through in order and count.
var ProxyCallFunction = rules.Rule{
	Name:   "proxy-call-function",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindFunctionDeclaration) {
			fn := n.(*jsast.FunctionDeclaration)
			if fn.ID == nil {
				continue
			}
			if _, ok := passThroughTarget(fn); !ok {
				continue
			}
			for _, ref := range fn.ID.References {
				if filter != nil && !filter(ref) {
					continue
				}
				out = append(out, ref)
			}
		}
		return out
	},
	Transform: func(ar *arborist.Arborist, n jsast.Node) {
		ref := n.(*jsast.Identifier)
		fn, ok := ref.DeclNode.Meta().Parent.(*jsast.FunctionDeclaration)
		if !ok {
			return
		}
		target, ok := passThroughTarget(fn)
		if !ok {
			return
		}
		ar.MarkReplace(n, jsast.NewIdentifier(target))
	},
}

func passThroughTarget(fn *jsast.FunctionDeclaration) (string, bool) {
	if fn.Body == nil || len(fn.Body.Body) != 1 {
		return "", false
	}
	ret, ok := fn.Body.Body[0].(*jsast.ReturnStatement)
	if !ok || ret.Argument == nil {
		return "", false
	}
	call, ok := ret.Argument.(*jsast.CallExpression)
	if !ok {
		return "", false
	}
	inner, ok := call.Callee.(*jsast.Identifier)
	if !ok {
		return "", false
	}
	if len(call.Arguments) != len(fn.Params) {
		return "", false
	}
	for i, arg := range call.Arguments {
		id, ok := arg.(*jsast.Identifier)
		if !ok || fn.Params[i].Name == nil || id.DeclNode != fn.Params[i].Name {
			return "", false
		}
	}
	return inner.Name, true
}

// ResolveEvalOnLiteral replaces `eval("literal")` with the parsed contents
// of the literal. The special case `eval("Expr")(args)` → `Expr(args)`
// needs no separate match: when eval's call is itself the callee of an outer
// call, replacing it in its own slot puts the parsed expression in that
// outer callee position. A literal that
// parses to more than one top-level statement only matches when eval's call
// is a bare `ExpressionStatement` sitting directly in a statement list —
// the only shape from which the extra statements can be hoisted into the
// surrounding block with MarkReplaceMany; anywhere else (an argument, a
// declarator's init, an outer callee) the match is rejected rather than
// risking a non-expression node in expression position.
var ResolveEvalOnLiteral = rules.Rule{
	Name:   "resolve-eval-on-literal",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindCallExpression) {
			c := n.(*jsast.CallExpression)
			_, multi, ok := evalLiteralExpansion(c)
			if !ok {
				continue
			}
			if multi != nil && !hoistableStatementPosition(n) {
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
		single, multi, ok := evalLiteralExpansion(c)
		if !ok {
			return
		}
		if multi != nil {
			if !hoistableStatementPosition(n) {
				return
			}
			es := n.Meta().Parent.(*jsast.ExpressionStatement)
			cloned := make([]jsast.Node, len(multi))
			for i, s := range multi {
				cloned[i] = jsast.Clone(s)
			}
			ar.MarkReplaceMany(es, cloned)
			return
		}
		// eval("Expr")(args) → Expr(args): splice in as the outer callee.
		ar.MarkReplace(n, jsast.Clone(single))
	},
}

// evalLiteralExpansion parses a bare `eval("literal")` call's source and
// reports what it expands to: a single node to splice in n's own slot, or,
// when the literal holds more than one top-level statement, the full
// statement list to hoist in its place.
func evalLiteralExpansion(c *jsast.CallExpression) (single jsast.Node, multi []jsast.Node, ok bool) {
	src, ok := evalLiteralSource(c)
	if !ok {
		return nil, nil, false
	}
	parsed, err := jsparse.Parse(src)
	if err != nil || len(parsed.Body) == 0 {
		return nil, nil, false
	}
	if len(parsed.Body) > 1 {
		return nil, parsed.Body, true
	}
	if es, ok := parsed.Body[0].(*jsast.ExpressionStatement); ok {
		return es.Expression, nil, true
	}
	return parsed.Body[0], nil, true
}

// hoistableStatementPosition reports whether n is the sole Expression of an
// ExpressionStatement that itself sits in an array-valued statement field
// (Program.Body or a BlockStatement.Body) — the only position a
// MarkReplaceMany splice can target.
func hoistableStatementPosition(n jsast.Node) bool {
	es, ok := n.Meta().Parent.(*jsast.ExpressionStatement)
	if !ok || es.Expression != n {
		return false
	}
	return es.Meta().ParentKey.Index >= 0
}

// evalLiteralSource reports the string source of a bare `eval("literal")`
// call: callee named "eval", unbound, exactly one string-Literal argument.
func evalLiteralSource(c *jsast.CallExpression) (string, bool) {
	id, ok := c.Callee.(*jsast.Identifier)
	if !ok || id.Name != "eval" || id.DeclNode != nil || len(c.Arguments) != 1 {
		return "", false
	}
	return jsast.LiteralString(c.Arguments[0])
}

// CallReturnsIdentifierUnwrap replaces every zero-argument call `f()` with a
// clone of g, when f is declared `const f = () => g;` or `const f =
// function(){ return g; };` — the arrow/function-expression counterpart of
// FunctionShellReplacement, which only recognizes FunctionDeclaration
// shells. A call chained onto such a shell, e.g. `f()(args)`, is covered for
// free: the inner `f()` CallExpression is itself indexed and rewritten,
// leaving `g(args)` behind.
var CallReturnsIdentifierUnwrap = rules.Rule{
	Name:   "call-returns-identifier-unwrap",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindCallExpression) {
			c := n.(*jsast.CallExpression)
			callee, ok := c.Callee.(*jsast.Identifier)
			if !ok || callee.DeclNode == nil || len(c.Arguments) != 0 {
				continue
			}
			if _, ok := constShellReturnValue(callee.DeclNode); !ok {
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
		callee := c.Callee.(*jsast.Identifier)
		val, ok := constShellReturnValue(callee.DeclNode)
		if !ok {
			return
		}
		ar.MarkReplace(n, jsast.Clone(val))
	},
}

// constShellReturnValue reports the identifier a `const f = () => g;` or
// `const f = function(){ return g; };` declarator unconditionally evaluates
// to, when g is itself a bare Identifier.
func constShellReturnValue(declID *jsast.Identifier) (*jsast.Identifier, bool) {
	decl, ok := declID.Meta().Parent.(*jsast.VariableDeclarator)
	if !ok || decl.Init == nil {
		return nil, false
	}
	switch fn := decl.Init.(type) {
	case *jsast.ArrowFunctionExpression:
		if len(fn.Params) != 0 {
			return nil, false
		}
		if fn.ExprBody {
			id, ok := fn.Body.(*jsast.Identifier)
			return id, ok
		}
		block, ok := fn.Body.(*jsast.BlockStatement)
		if !ok {
			return nil, false
		}
		return blockReturnsIdentifier(block)
	case *jsast.FunctionExpression:
		if len(fn.Params) != 0 {
			return nil, false
		}
		return blockReturnsIdentifier(fn.Body)
	}
	return nil, false
}

func blockReturnsIdentifier(body *jsast.BlockStatement) (*jsast.Identifier, bool) {
	if body == nil || len(body.Body) != 1 {
		return nil, false
	}
	ret, ok := body.Body[0].(*jsast.ReturnStatement)
	if !ok || ret.Argument == nil {
		return nil, false
	}
	id, ok := ret.Argument.(*jsast.Identifier)
	return id, ok
}

// FunctionShellViaApplyArguments rewrites
// `function outer(p){ return (function inner(){...}).apply(this, arguments); }`
// by replacing the whole outer declaration with inner's body directly — the
// wrapper exists only to forward `this`/`arguments` to an inner function of
// identical effective arity. inner's own id/params win when it has them;
// otherwise outer's are kept so existing call sites still resolve.
var FunctionShellViaApplyArguments = rules.Rule{
	Name:   "function-shell-via-apply-arguments",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindFunctionDeclaration) {
			fn := n.(*jsast.FunctionDeclaration)
			if _, ok := applyArgumentsInner(fn); !ok {
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
		outer := n.(*jsast.FunctionDeclaration)
		inner, ok := applyArgumentsInner(outer)
		if !ok {
			return
		}
		id := inner.ID
		if id == nil {
			id = outer.ID
		}
		params := inner.Params
		if len(params) == 0 {
			params = outer.Params
		}
		replacement := &jsast.FunctionDeclaration{
			ID:     jsast.Clone(id).(*jsast.Identifier),
			Params: cloneParamList(params),
			Body:   jsast.Clone(inner.Body).(*jsast.BlockStatement),
		}
		ar.MarkReplace(n, replacement)
	},
}

// cloneParamList clones a parameter list the way jsast.Clone clones every
// other node: fresh Identifier/Default nodes, metadata reset.
func cloneParamList(params []jsast.Param) []jsast.Param {
	out := make([]jsast.Param, len(params))
	for i, p := range params {
		var name *jsast.Identifier
		if p.Name != nil {
			name = jsast.Clone(p.Name).(*jsast.Identifier)
		}
		var def jsast.Node
		if p.Default != nil {
			def = jsast.Clone(p.Default)
		}
		out[i] = jsast.Param{Name: name, Default: def}
	}
	return out
}

// applyArgumentsInner reports the anonymous/named function expression a
// FunctionDeclaration's body forwards to via `.apply(this, arguments)`:
// `return (function(...){...}).apply(this, arguments);`, nothing else.
func applyArgumentsInner(fn *jsast.FunctionDeclaration) (*jsast.FunctionExpression, bool) {
	if fn.Body == nil || len(fn.Body.Body) != 1 {
		return nil, false
	}
	ret, ok := fn.Body.Body[0].(*jsast.ReturnStatement)
	if !ok || ret.Argument == nil {
		return nil, false
	}
	call, ok := ret.Argument.(*jsast.CallExpression)
	if !ok || len(call.Arguments) != 2 {
		return nil, false
	}
	member, ok := call.Callee.(*jsast.MemberExpression)
	if !ok || member.Computed {
		return nil, false
	}
	prop, ok := member.Property.(*jsast.Identifier)
	if !ok || prop.Name != "apply" {
		return nil, false
	}
	inner, ok := member.Object.(*jsast.FunctionExpression)
	if !ok {
		return nil, false
	}
	if _, ok := call.Arguments[0].(*jsast.ThisExpression); !ok {
		return nil, false
	}
	argsID, ok := call.Arguments[1].(*jsast.Identifier)
	if !ok || argsID.Name != "arguments" || argsID.DeclNode != nil {
		return nil, false
	}
	return inner, true
}

// IIFEUnwrapping collapses `const v = (function(){ ...; return X; })();` and
// its arrow-function counterparts (`const v = (() => { ...; return X; })();`,
// concise-body `const v = (() => X)();`) into `const v = X;`, for any
// expression X — broader than IIFEShellValue, which only fires when X is a
// bare Literal or Identifier. When the function body has statements before
// the return, they are hoisted into the enclosing block ahead of the
// declaration, which requires that declaration to sit directly in a
// statement list.
var IIFEUnwrapping = rules.Rule{
	Name:   "iife-unwrapping",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindVariableDeclarator) {
			d := n.(*jsast.VariableDeclarator)
			call, ok := d.Init.(*jsast.CallExpression)
			if !ok || len(call.Arguments) != 0 {
				continue
			}
			_, leading, ok := iifeExpansion(call)
			if !ok {
				continue
			}
			if len(leading) > 0 && !hoistableDeclaratorPosition(d) {
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
		d := n.(*jsast.VariableDeclarator)
		call, ok := d.Init.(*jsast.CallExpression)
		if !ok {
			return
		}
		value, leading, ok := iifeExpansion(call)
		if !ok {
			return
		}
		if len(leading) == 0 {
			ar.MarkReplace(d.Init, jsast.Clone(value))
			return
		}
		declStmt, ok := d.Meta().Parent.(*jsast.VariableDeclaration)
		if !ok || !hoistableDeclaratorPosition(d) {
			return
		}
		replacementDecl := jsast.Clone(declStmt).(*jsast.VariableDeclaration)
		for _, rd := range replacementDecl.Declarations {
			if rd.ID != nil && d.ID != nil && rd.ID.Name == d.ID.Name {
				rd.Init = jsast.Clone(value)
			}
		}
		stmts := make([]jsast.Node, 0, len(leading)+1)
		for _, s := range leading {
			stmts = append(stmts, jsast.Clone(s))
		}
		stmts = append(stmts, replacementDecl)
		ar.MarkReplaceMany(declStmt, stmts)
	},
}

// iifeExpansion reports the tail value and leading side-effect statements of
// a zero-argument IIFE call: the FunctionExpression/ArrowFunctionExpression
// callee's body, when every statement but the last is a plain
// ExpressionStatement and the last is `return X;` — or, for a concise-body
// arrow `() => X`, X itself with no leading statements.
func iifeExpansion(call *jsast.CallExpression) (value jsast.Node, leading []jsast.Node, ok bool) {
	switch fn := call.Callee.(type) {
	case *jsast.FunctionExpression:
		return blockTailExpansion(fn.Body)
	case *jsast.ArrowFunctionExpression:
		if fn.ExprBody {
			return fn.Body, nil, fn.Body != nil
		}
		block, ok := fn.Body.(*jsast.BlockStatement)
		if !ok {
			return nil, nil, false
		}
		return blockTailExpansion(block)
	}
	return nil, nil, false
}

func blockTailExpansion(body *jsast.BlockStatement) (jsast.Node, []jsast.Node, bool) {
	if body == nil || len(body.Body) == 0 {
		return nil, nil, false
	}
	ret, ok := body.Body[len(body.Body)-1].(*jsast.ReturnStatement)
	if !ok || ret.Argument == nil {
		return nil, nil, false
	}
	for _, s := range body.Body[:len(body.Body)-1] {
		if _, ok := s.(*jsast.ExpressionStatement); !ok {
			return nil, nil, false
		}
	}
	return ret.Argument, body.Body[:len(body.Body)-1], true
}

// hoistableDeclaratorPosition reports whether d's enclosing
// VariableDeclaration sits directly in an array-valued statement field
// (Program.Body or BlockStatement.Body) — the only place leading IIFE
// statements can be spliced in ahead of it.
func hoistableDeclaratorPosition(d *jsast.VariableDeclarator) bool {
	declStmt, ok := d.Meta().Parent.(*jsast.VariableDeclaration)
	if !ok {
		return false
	}
	return declStmt.Meta().ParentKey.Index >= 0
}

// ResolveFunctionConstructorCall inlines `Function.constructor("a", "b",
// "return a+b;")` (all-Literal arguments, last one the body source, the rest
// parameter names) into an equivalent FunctionExpression, mirroring what the
// engine would do if it actually invoked the constructor.
var ResolveFunctionConstructorCall = rules.Rule{
	Name:   "resolve-function-constructor-call",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindCallExpression) {
			c := n.(*jsast.CallExpression)
			if _, ok := functionConstructorLiterals(c); !ok {
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
		lits, ok := functionConstructorLiterals(c)
		if !ok {
			return
		}
		fn, ok := buildFunctionFromLiterals(lits)
		if !ok {
			return
		}
		ar.MarkReplace(n, fn)
	},
}

// functionConstructorLiterals reports the string arguments of a
// `Function.constructor(...)` / `new Function.constructor(...)`-shaped call
// (also accepting the bare global `Function(...)`), requiring every
// argument to be a string Literal.
func functionConstructorLiterals(c *jsast.CallExpression) ([]string, bool) {
	if !isFunctionConstructorCallee(c.Callee) {
		return nil, false
	}
	if len(c.Arguments) == 0 {
		return nil, false
	}
	lits := make([]string, len(c.Arguments))
	for i, arg := range c.Arguments {
		s, ok := jsast.LiteralString(arg)
		if !ok {
			return nil, false
		}
		lits[i] = s
	}
	return lits, true
}

func isFunctionConstructorCallee(callee jsast.Node) bool {
	member, ok := callee.(*jsast.MemberExpression)
	if !ok || member.Computed {
		return false
	}
	obj, ok := member.Object.(*jsast.Identifier)
	if !ok || obj.Name != "Function" || obj.DeclNode != nil {
		return false
	}
	prop, ok := member.Property.(*jsast.Identifier)
	return ok && prop.Name == "constructor"
}

// buildFunctionFromLiterals builds the FunctionExpression equivalent to
// `new Function(params..., body)`: the last literal is parsed as the body of
// a function expression (so a `return` in it is accepted), the rest become
// identifier parameters in order.
func buildFunctionFromLiterals(lits []string) (*jsast.FunctionExpression, bool) {
	parsed, err := jsparse.Parse("(function(){\n" + lits[len(lits)-1] + "\n})")
	if err != nil || len(parsed.Body) != 1 {
		return nil, false
	}
	es, ok := parsed.Body[0].(*jsast.ExpressionStatement)
	if !ok {
		return nil, false
	}
	wrapper, ok := es.Expression.(*jsast.FunctionExpression)
	if !ok {
		return nil, false
	}
	params := make([]jsast.Param, len(lits)-1)
	for i, name := range lits[:len(lits)-1] {
		params[i] = jsast.Param{Name: jsast.NewIdentifier(name)}
	}
	return &jsast.FunctionExpression{Params: params, Body: wrapper.Body}, true
}

// ResolveNewFunctionLiteral replaces `new Function("source")()` — a single
// string-Literal argument, immediately invoked with no call arguments —
// with the parsed body of the literal, analogous to ResolveEvalOnLiteral but
// for the `new Function` constructor form.
var ResolveNewFunctionLiteral = rules.Rule{
	Name:   "resolve-new-function-literal",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindCallExpression) {
			c := n.(*jsast.CallExpression)
			if _, ok := newFunctionLiteralSource(c); !ok {
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
		src, ok := newFunctionLiteralSource(c)
		if !ok {
			return
		}
		parsed, err := jsparse.Parse("(function(){\n" + src + "\n})")
		if err != nil || len(parsed.Body) != 1 {
			return
		}
		es, ok := parsed.Body[0].(*jsast.ExpressionStatement)
		if !ok {
			return
		}
		wrapper, ok := es.Expression.(*jsast.FunctionExpression)
		if !ok || len(wrapper.Body.Body) != 1 {
			return
		}
		switch stmt := wrapper.Body.Body[0].(type) {
		case *jsast.ExpressionStatement:
			ar.MarkReplace(n, jsast.Clone(stmt.Expression))
		case *jsast.ReturnStatement:
			// The constructed function's body is almost always `return expr;` —
			// its value is what the call evaluates to, not the statement itself.
			if stmt.Argument == nil {
				return
			}
			ar.MarkReplace(n, jsast.Clone(stmt.Argument))
		}
	},
}

// newFunctionLiteralSource reports the source string of a bare
// `new Function("source")()` call: zero call arguments, callee is a
// `new Function(...)` NewExpression with exactly one string-Literal
// argument.
func newFunctionLiteralSource(c *jsast.CallExpression) (string, bool) {
	if len(c.Arguments) != 0 {
		return "", false
	}
	ne, ok := c.Callee.(*jsast.NewExpression)
	if !ok || len(ne.Arguments) != 1 {
		return "", false
	}
	callee, ok := ne.Callee.(*jsast.Identifier)
	if !ok || callee.Name != "Function" || callee.DeclNode != nil {
		return "", false
	}
	return jsast.LiteralString(ne.Arguments[0])
}
