package jsparse

import (
	"errors"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
	"github.com/dop251/goja/token"

	"github.com/ctrl-escp/restringer-go/pkg/jsast"
)

// Parser adapts goja's parser output into the annotated tree of package
// jsast. It covers the subset of ES5+ syntax the engine's rules operate
// over; generators, async functions, destructuring patterns, and
// try/catch are not modeled (tracked as an open question in DESIGN.md).
type Parser struct {
	src string
}

// Parse turns source into a *jsast.Program with each node's Src set to its
// exact slice of source and Range computed in byte offsets, ready for
// jsast.BuildIndices. Property and MethodDefinition nodes, and a declaration
// in a for-loop head, keep a zero Range and an empty Src. Syntax the adapter
// does not model is reported as an error.
func Parse(source string) (result *jsast.Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			msg, ok := r.(string)
			if !ok {
				panic(r)
			}
			result, err = nil, errors.New(msg)
		}
	}()
	prog, err := parser.ParseFile(nil, "", source, 0)
	if err != nil {
		return nil, err
	}
	p := &Parser{src: source}
	out := &jsast.Program{Body: p.statements(prog.Body)}
	p.stamp(out, int(prog.Idx0())-1, int(prog.Idx1())-1)
	return out, nil
}

func (p *Parser) stamp(n jsast.Node, start, end int) {
	if start < 0 {
		start = 0
	}
	if end > len(p.src) {
		end = len(p.src)
	}
	if end < start {
		end = start
	}
	m := n.Meta()
	m.Range = jsast.Range{Start: start, End: end}
	m.Src = p.src[start:end]
}

func (p *Parser) statements(list []ast.Statement) []jsast.Node {
	out := make([]jsast.Node, 0, len(list))
	for _, s := range list {
		if n := p.statement(s); n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (p *Parser) statement(s ast.Statement) jsast.Node {
	if s == nil {
		return nil
	}
	switch v := s.(type) {
	case *ast.VariableStatement:
		n := p.variableStatement(v.Var, v.List)
		p.stampStmt(n, v)
		return n
	case *ast.LexicalDeclaration:
		n := p.variableStatement(v.Token, v.List)
		p.stampStmt(n, v)
		return n
	case *ast.ExpressionStatement:
		n := &jsast.ExpressionStatement{Expression: p.expression(v.Expression)}
		p.stampStmt(n, v)
		return n
	case *ast.BlockStatement:
		return p.blockStatement(v)
	case *ast.FunctionDeclaration:
		n := p.functionLiteralAsDeclaration(v.Function)
		p.stampStmt(n, v)
		return n
	case *ast.ClassDeclaration:
		n := p.classLiteral(v.Class)
		p.stampStmt(n, v)
		return n
	case *ast.IfStatement:
		n := &jsast.IfStatement{
			Test:       p.expression(v.Test),
			Consequent: p.statement(v.Consequent),
			Alternate:  p.statement(v.Alternate),
		}
		p.stampStmt(n, v)
		return n
	case *ast.ForStatement:
		n := &jsast.ForStatement{
			Init:   p.forInit(v.Initializer),
			Test:   p.expression(v.Test),
			Update: p.expression(v.Update),
			Body:   p.statement(v.Body),
		}
		p.stampStmt(n, v)
		return n
	case *ast.ForInStatement:
		n := &jsast.ForInStatement{
			Left:  p.forIntoTarget(v.Into),
			Right: p.expression(v.Source),
			Body:  p.statement(v.Body),
		}
		p.stampStmt(n, v)
		return n
	case *ast.ForOfStatement:
		n := &jsast.ForOfStatement{
			Left:  p.forIntoTarget(v.Into),
			Right: p.expression(v.Source),
			Body:  p.statement(v.Body),
		}
		p.stampStmt(n, v)
		return n
	case *ast.WhileStatement:
		n := &jsast.WhileStatement{Test: p.expression(v.Test), Body: p.statement(v.Body)}
		p.stampStmt(n, v)
		return n
	case *ast.DoWhileStatement:
		n := &jsast.DoWhileStatement{Test: p.expression(v.Test), Body: p.statement(v.Body)}
		p.stampStmt(n, v)
		return n
	case *ast.SwitchStatement:
		n := &jsast.SwitchStatement{Discriminant: p.expression(v.Discriminant)}
		for _, c := range v.Body {
			sc := &jsast.SwitchCase{Test: p.expression(c.Test), Consequent: p.statements(c.Consequent)}
			p.stamp(sc, int(c.Idx0())-1, int(c.Idx1())-1)
			n.Cases = append(n.Cases, sc)
		}
		p.stampStmt(n, v)
		return n
	case *ast.ReturnStatement:
		n := &jsast.ReturnStatement{Argument: p.expression(v.Argument)}
		p.stampStmt(n, v)
		return n
	case *ast.BranchStatement:
		if v.Token != token.BREAK {
			// continue is not modeled (see DESIGN.md); only unlabelled break is.
			panic("jsparse: unsupported statement syntax: continue")
		}
		n := &jsast.BreakStatement{}
		p.stampStmt(n, v)
		return n
	case *ast.EmptyStatement:
		n := &jsast.EmptyStatement{}
		p.stampStmt(n, v)
		return n
	default:
		panic("jsparse: unsupported statement syntax")
	}
}

func (p *Parser) stampStmt(n jsast.Node, s ast.Statement) {
	p.stamp(n, int(s.Idx0())-1, int(s.Idx1())-1)
}

func (p *Parser) stampExpr(n jsast.Node, e ast.Expression) {
	p.stamp(n, int(e.Idx0())-1, int(e.Idx1())-1)
}

func (p *Parser) variableStatement(tok token.Token, list []*ast.Binding) *jsast.VariableDeclaration {
	kind := "var"
	switch tok {
	case token.LET:
		kind = "let"
	case token.CONST:
		kind = "const"
	}
	n := &jsast.VariableDeclaration{DeclKind: kind}
	for _, b := range list {
		ident, ok := b.Target.(*ast.Identifier)
		if !ok {
			panic("jsparse: unsupported syntax: destructuring declaration")
		}
		d := &jsast.VariableDeclarator{ID: p.identifier(ident), Init: p.expression(b.Initializer)}
		p.stamp(d, int(b.Idx0())-1, int(b.Idx1())-1)
		n.Declarations = append(n.Declarations, d)
	}
	return n
}

func (p *Parser) blockStatement(v *ast.BlockStatement) *jsast.BlockStatement {
	n := &jsast.BlockStatement{Body: p.statements(v.List)}
	p.stampStmt(n, v)
	return n
}

func (p *Parser) forInit(init ast.ForLoopInitializer) jsast.Node {
	switch v := init.(type) {
	case nil:
		return nil
	case *ast.ForLoopInitializerExpression:
		return p.expression(v.Expression)
	case *ast.ForLoopInitializerVarDeclList:
		return p.variableStatement(token.VAR, v.List)
	case *ast.ForLoopInitializerLexicalDecl:
		return p.variableStatement(v.LexicalDeclaration.Token, v.LexicalDeclaration.List)
	default:
		return nil
	}
}

func (p *Parser) forIntoTarget(into ast.ForInto) jsast.Node {
	switch v := into.(type) {
	case *ast.ForIntoExpression:
		return p.expression(v.Expression)
	case *ast.ForIntoVar:
		return p.variableStatement(token.VAR, []*ast.Binding{v.Binding})
	default:
		return nil
	}
}

func (p *Parser) identifier(id *ast.Identifier) *jsast.Identifier {
	if id == nil {
		return nil
	}
	n := &jsast.Identifier{Name: string(id.Name)}
	p.stamp(n, int(id.Idx0())-1, int(id.Idx1())-1)
	return n
}

func (p *Parser) params(list *ast.ParameterList) []jsast.Param {
	if list == nil {
		return nil
	}
	out := make([]jsast.Param, 0, len(list.List))
	for _, b := range list.List {
		ident, ok := b.Target.(*ast.Identifier)
		if !ok {
			panic("jsparse: unsupported syntax: destructuring parameter")
		}
		out = append(out, jsast.Param{Name: p.identifier(ident), Default: p.expression(b.Initializer)})
	}
	return out
}

func (p *Parser) functionLiteralAsDeclaration(fn *ast.FunctionLiteral) *jsast.FunctionDeclaration {
	return &jsast.FunctionDeclaration{
		ID:     p.identifier(fn.Name),
		Params: p.params(fn.ParameterList),
		Body:   p.blockStatement(fn.Body),
	}
}

func (p *Parser) functionLiteralAsExpression(fn *ast.FunctionLiteral) *jsast.FunctionExpression {
	n := &jsast.FunctionExpression{
		ID:     p.identifier(fn.Name),
		Params: p.params(fn.ParameterList),
		Body:   p.blockStatement(fn.Body),
	}
	p.stamp(n, int(fn.Idx0())-1, int(fn.Idx1())-1)
	return n
}

func (p *Parser) classLiteral(c *ast.ClassLiteral) *jsast.ClassDeclaration {
	n := &jsast.ClassDeclaration{ID: p.identifier(c.Name), Super: p.expression(c.SuperClass)}
	for _, elem := range c.Body {
		m, ok := elem.(*ast.MethodDefinition)
		if !ok {
			continue
		}
		fn, ok := m.Body.(*ast.FunctionLiteral)
		if !ok {
			continue
		}
		kind := "method"
		switch m.Kind {
		case ast.PropertyKindGet:
			kind = "get"
		case ast.PropertyKindSet:
			kind = "set"
		}
		md := &jsast.MethodDefinition{
			Key:      p.propertyKey(m.Key, m.Computed),
			Computed: m.Computed,
			Static:   m.Static,
			Kind_:    kind,
			Value:    p.functionLiteralAsExpression(fn),
		}
		n.Methods = append(n.Methods, md)
	}
	return n
}

func (p *Parser) propertyKey(e ast.Expression, computed bool) jsast.Node {
	if !computed {
		if ident, ok := e.(*ast.Identifier); ok {
			return p.identifier(ident)
		}
		if lit, ok := e.(*ast.StringLiteral); ok {
			n := &jsast.Literal{LitKind: jsast.LitString, Value: string(lit.Value)}
			p.stampExpr(n, e)
			return n
		}
	}
	return p.expression(e)
}

func (p *Parser) expression(e ast.Expression) jsast.Node {
	if e == nil {
		return nil
	}
	switch v := e.(type) {
	case *ast.Identifier:
		return p.identifier(v)
	case *ast.StringLiteral:
		n := &jsast.Literal{LitKind: jsast.LitString, Value: string(v.Value)}
		p.stampExpr(n, e)
		return n
	case *ast.NumberLiteral:
		f, _ := v.Value.(float64)
		n := &jsast.Literal{LitKind: jsast.LitNumber, Value: f}
		p.stampExpr(n, e)
		return n
	case *ast.BooleanLiteral:
		n := &jsast.Literal{LitKind: jsast.LitBool, Value: v.Value}
		p.stampExpr(n, e)
		return n
	case *ast.NullLiteral:
		n := &jsast.Literal{LitKind: jsast.LitNull}
		p.stampExpr(n, e)
		return n
	case *ast.RegExpLiteral:
		n := &jsast.Literal{LitKind: jsast.LitRegex, Value: jsast.RegexValue{Pattern: v.Pattern, Flags: v.Flags}}
		p.stampExpr(n, e)
		return n
	case *ast.ThisExpression:
		n := &jsast.ThisExpression{}
		p.stampExpr(n, e)
		return n
	case *ast.ArrayLiteral:
		n := &jsast.ArrayExpression{}
		for _, el := range v.Value {
			n.Elements = append(n.Elements, p.expression(el))
		}
		p.stampExpr(n, e)
		return n
	case *ast.ObjectLiteral:
		n := &jsast.ObjectExpression{}
		for _, prop := range v.Value {
			keyed, ok := prop.(*ast.PropertyKeyed)
			if !ok {
				continue
			}
			pr := &jsast.Property{
				Key:      p.propertyKey(keyed.Key, keyed.Computed),
				Value:    p.expression(keyed.Value),
				Computed: keyed.Computed,
			}
			n.Properties = append(n.Properties, pr)
		}
		p.stampExpr(n, e)
		return n
	case *ast.FunctionLiteral:
		return p.functionLiteralAsExpression(v)
	case *ast.ClassLiteral:
		n := p.classLiteral(v)
		p.stampExpr(n, e)
		return n
	case *ast.ArrowFunctionLiteral:
		n := &jsast.ArrowFunctionExpression{Params: p.params(v.ParameterList)}
		if body, ok := v.Body.(ast.Expression); ok {
			n.Body = p.expression(body)
			n.ExprBody = true
		} else if block, ok := v.Body.(*ast.BlockStatement); ok {
			n.Body = p.blockStatement(block)
		}
		p.stampExpr(n, e)
		return n
	case *ast.DotExpression:
		n := &jsast.MemberExpression{Object: p.expression(v.Left), Property: p.identifier(&v.Identifier), Computed: false}
		p.stampExpr(n, e)
		return n
	case *ast.BracketExpression:
		n := &jsast.MemberExpression{Object: p.expression(v.Left), Property: p.expression(v.Member), Computed: true}
		p.stampExpr(n, e)
		return n
	case *ast.CallExpression:
		n := &jsast.CallExpression{Callee: p.expression(v.Callee)}
		for _, a := range v.ArgumentList {
			n.Arguments = append(n.Arguments, p.expression(a))
		}
		p.stampExpr(n, e)
		return n
	case *ast.NewExpression:
		n := &jsast.NewExpression{Callee: p.expression(v.Callee)}
		for _, a := range v.ArgumentList {
			n.Arguments = append(n.Arguments, p.expression(a))
		}
		p.stampExpr(n, e)
		return n
	case *ast.AssignExpression:
		n := &jsast.AssignmentExpression{Operator: assignOperator(v.Operator), Target: p.expression(v.Left), Value: p.expression(v.Right)}
		p.stampExpr(n, e)
		return n
	case *ast.BinaryExpression:
		op := v.Operator.String()
		if op == "&&" || op == "||" {
			n := &jsast.LogicalExpression{Operator: op, Left: p.expression(v.Left), Right: p.expression(v.Right)}
			p.stampExpr(n, e)
			return n
		}
		n := &jsast.BinaryExpression{Operator: op, Left: p.expression(v.Left), Right: p.expression(v.Right)}
		p.stampExpr(n, e)
		return n
	case *ast.UnaryExpression:
		n := &jsast.UnaryExpression{Operator: v.Operator.String(), Argument: p.expression(v.Operand), Prefix: !v.Postfix}
		p.stampExpr(n, e)
		return n
	case *ast.ConditionalExpression:
		n := &jsast.ConditionalExpression{Test: p.expression(v.Test), Consequent: p.expression(v.Consequent), Alternate: p.expression(v.Alternate)}
		p.stampExpr(n, e)
		return n
	case *ast.SequenceExpression:
		n := &jsast.SequenceExpression{}
		for _, s := range v.Sequence {
			n.Expressions = append(n.Expressions, p.expression(s))
		}
		p.stampExpr(n, e)
		return n
	case *ast.TemplateLiteral:
		n := &jsast.TemplateLiteral{}
		for _, el := range v.Elements {
			n.Quasis = append(n.Quasis, el.Literal)
		}
		for _, ex := range v.Expressions {
			n.Expressions = append(n.Expressions, p.expression(ex))
		}
		p.stampExpr(n, e)
		return n
	default:
		panic("jsparse: unsupported expression syntax")
	}
}

func assignOperator(tok token.Token) string {
	if tok == token.ASSIGN {
		return "="
	}
	return tok.String() + "="
}
