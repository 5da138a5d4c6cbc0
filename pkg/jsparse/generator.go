// Package jsparse adapts between source text and the annotated AST of
// package jsast: Parse turns source into a *jsast.Program (via goja's
// parser), and Generator turns a *jsast.Program back into source text after
// rules have rewritten it.
package jsparse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ctrl-escp/restringer-go/pkg/jsast"
)

// Generator renders a jsast tree back to JavaScript source. Every node is
// printed from its structure; a node's original Src is not consulted, so
// the input's formatting is not kept, even for code the rules never touched.
type Generator struct {
	sb strings.Builder
}

// Print renders prog as a complete JavaScript program.
func Print(prog *jsast.Program) string {
	g := &Generator{}
	for i, stmt := range prog.Body {
		if i > 0 {
			g.sb.WriteByte('\n')
		}
		g.writeStatement(stmt)
	}
	return g.sb.String()
}

func (g *Generator) writeStatement(n jsast.Node) {
	if n == nil {
		return
	}
	switch v := n.(type) {
	case *jsast.VariableDeclaration:
		g.sb.WriteString(v.DeclKind)
		g.sb.WriteByte(' ')
		for i, d := range v.Declarations {
			if i > 0 {
				g.sb.WriteString(", ")
			}
			g.writeExpr(d.ID)
			if d.Init != nil {
				g.sb.WriteString(" = ")
				g.writeExpr(d.Init)
			}
		}
		g.sb.WriteByte(';')
	case *jsast.FunctionDeclaration:
		g.writeFunction("function", v.ID, v.Params, v.Body)
	case *jsast.ClassDeclaration:
		g.writeClass(v)
	case *jsast.ExpressionStatement:
		g.writeExpr(v.Expression)
		g.sb.WriteByte(';')
	case *jsast.BlockStatement:
		g.sb.WriteByte('{')
		for _, s := range v.Body {
			g.sb.WriteByte('\n')
			g.writeStatement(s)
		}
		if len(v.Body) > 0 {
			g.sb.WriteByte('\n')
		}
		g.sb.WriteByte('}')
	case *jsast.IfStatement:
		g.sb.WriteString("if (")
		g.writeExpr(v.Test)
		g.sb.WriteString(") ")
		g.writeStatement(v.Consequent)
		if v.Alternate != nil {
			g.sb.WriteString(" else ")
			g.writeStatement(v.Alternate)
		}
	case *jsast.ForStatement:
		g.sb.WriteString("for (")
		g.writeForClause(v.Init)
		g.sb.WriteString("; ")
		g.writeExpr(v.Test)
		g.sb.WriteString("; ")
		g.writeExpr(v.Update)
		g.sb.WriteString(") ")
		g.writeStatement(v.Body)
	case *jsast.ForInStatement:
		g.sb.WriteString("for (")
		g.writeForClause(v.Left)
		g.sb.WriteString(" in ")
		g.writeExpr(v.Right)
		g.sb.WriteString(") ")
		g.writeStatement(v.Body)
	case *jsast.ForOfStatement:
		g.sb.WriteString("for (")
		g.writeForClause(v.Left)
		g.sb.WriteString(" of ")
		g.writeExpr(v.Right)
		g.sb.WriteString(") ")
		g.writeStatement(v.Body)
	case *jsast.WhileStatement:
		g.sb.WriteString("while (")
		g.writeExpr(v.Test)
		g.sb.WriteString(") ")
		g.writeStatement(v.Body)
	case *jsast.DoWhileStatement:
		g.sb.WriteString("do ")
		g.writeStatement(v.Body)
		g.sb.WriteString(" while (")
		g.writeExpr(v.Test)
		g.sb.WriteString(");")
	case *jsast.SwitchStatement:
		g.sb.WriteString("switch (")
		g.writeExpr(v.Discriminant)
		g.sb.WriteString(") {\n")
		for _, c := range v.Cases {
			if c.Test != nil {
				g.sb.WriteString("case ")
				g.writeExpr(c.Test)
				g.sb.WriteByte(':')
			} else {
				g.sb.WriteString("default:")
			}
			for _, s := range c.Consequent {
				g.sb.WriteByte('\n')
				g.writeStatement(s)
			}
			g.sb.WriteByte('\n')
		}
		g.sb.WriteByte('}')
	case *jsast.ReturnStatement:
		g.sb.WriteString("return")
		if v.Argument != nil {
			g.sb.WriteByte(' ')
			g.writeExpr(v.Argument)
		}
		g.sb.WriteByte(';')
	case *jsast.BreakStatement:
		g.sb.WriteString("break;")
	case *jsast.EmptyStatement:
		g.sb.WriteByte(';')
	default:
		panic(fmt.Sprintf("jsparse: Generator: unhandled statement kind %T", n))
	}
}

// writeForClause prints the init/left slot of a for/for-in/for-of head,
// which may be a VariableDeclaration, a bare expression, or nil.
func (g *Generator) writeForClause(n jsast.Node) {
	if n == nil {
		return
	}
	if decl, ok := n.(*jsast.VariableDeclaration); ok {
		g.sb.WriteString(decl.DeclKind)
		g.sb.WriteByte(' ')
		for i, d := range decl.Declarations {
			if i > 0 {
				g.sb.WriteString(", ")
			}
			g.writeExpr(d.ID)
			if d.Init != nil {
				g.sb.WriteString(" = ")
				g.writeExpr(d.Init)
			}
		}
		return
	}
	g.writeExpr(n)
}

func (g *Generator) writeFunction(keyword string, id *jsast.Identifier, params []jsast.Param, body *jsast.BlockStatement) {
	g.sb.WriteString(keyword)
	if id != nil {
		g.sb.WriteByte(' ')
		g.sb.WriteString(id.Name)
	}
	g.writeParams(params)
	g.sb.WriteByte(' ')
	g.writeStatement(body)
}

func (g *Generator) writeParams(params []jsast.Param) {
	g.sb.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			g.sb.WriteString(", ")
		}
		if p.Name != nil {
			g.sb.WriteString(p.Name.Name)
		}
		if p.Default != nil {
			g.sb.WriteString(" = ")
			g.writeExpr(p.Default)
		}
	}
	g.sb.WriteByte(')')
}

func (g *Generator) writeClass(v *jsast.ClassDeclaration) {
	g.sb.WriteString("class")
	if v.ID != nil {
		g.sb.WriteByte(' ')
		g.sb.WriteString(v.ID.Name)
	}
	if v.Super != nil {
		g.sb.WriteString(" extends ")
		g.writeExpr(v.Super)
	}
	g.sb.WriteString(" {\n")
	for _, m := range v.Methods {
		if m.Static {
			g.sb.WriteString("static ")
		}
		switch m.Kind_ {
		case "get", "set":
			g.sb.WriteString(m.Kind_)
			g.sb.WriteByte(' ')
		}
		g.writeKey(m.Key, m.Computed)
		g.writeParams(m.Value.Params)
		g.sb.WriteByte(' ')
		g.writeStatement(m.Value.Body)
		g.sb.WriteByte('\n')
	}
	g.sb.WriteByte('}')
}

func (g *Generator) writeKey(key jsast.Node, computed bool) {
	if computed {
		g.sb.WriteByte('[')
		g.writeExpr(key)
		g.sb.WriteByte(']')
		return
	}
	if id, ok := key.(*jsast.Identifier); ok {
		g.sb.WriteString(id.Name)
		return
	}
	g.writeExpr(key)
}

func (g *Generator) writeExpr(n jsast.Node) {
	if n == nil {
		return
	}
	switch v := n.(type) {
	case *jsast.Literal:
		g.writeLiteral(v)
	case *jsast.Identifier:
		g.sb.WriteString(v.Name)
	case *jsast.ThisExpression:
		g.sb.WriteString("this")
	case *jsast.MemberExpression:
		g.writeExpr(v.Object)
		if v.Computed {
			g.sb.WriteByte('[')
			g.writeExpr(v.Property)
			g.sb.WriteByte(']')
		} else {
			g.sb.WriteByte('.')
			g.writeKey(v.Property, false)
		}
	case *jsast.CallExpression:
		g.writeExpr(v.Callee)
		g.writeArgs(v.Arguments)
	case *jsast.NewExpression:
		g.sb.WriteString("new ")
		g.writeExpr(v.Callee)
		g.writeArgs(v.Arguments)
	case *jsast.FunctionExpression:
		g.sb.WriteByte('(')
		g.writeFunction("function", v.ID, v.Params, v.Body)
		g.sb.WriteByte(')')
	case *jsast.ArrowFunctionExpression:
		g.writeParams(v.Params)
		g.sb.WriteString(" => ")
		if v.ExprBody {
			g.writeExpr(v.Body)
		} else {
			g.writeStatement(v.Body)
		}
	case *jsast.VariableDeclarator:
		g.writeExpr(v.ID)
		if v.Init != nil {
			g.sb.WriteString(" = ")
			g.writeExpr(v.Init)
		}
	case *jsast.AssignmentExpression:
		g.writeExpr(v.Target)
		g.sb.WriteByte(' ')
		g.sb.WriteString(v.Operator)
		g.sb.WriteByte(' ')
		g.writeExpr(v.Value)
	case *jsast.BinaryExpression:
		g.sb.WriteByte('(')
		g.writeExpr(v.Left)
		g.sb.WriteByte(' ')
		g.sb.WriteString(v.Operator)
		g.sb.WriteByte(' ')
		g.writeExpr(v.Right)
		g.sb.WriteByte(')')
	case *jsast.LogicalExpression:
		g.sb.WriteByte('(')
		g.writeExpr(v.Left)
		g.sb.WriteByte(' ')
		g.sb.WriteString(v.Operator)
		g.sb.WriteByte(' ')
		g.writeExpr(v.Right)
		g.sb.WriteByte(')')
	case *jsast.UnaryExpression:
		if v.Prefix {
			g.sb.WriteString(v.Operator)
			if isWordOperator(v.Operator) {
				g.sb.WriteByte(' ')
			}
			g.writeExpr(v.Argument)
		} else {
			g.writeExpr(v.Argument)
			g.sb.WriteString(v.Operator)
		}
	case *jsast.UpdateExpression:
		if v.Prefix {
			g.sb.WriteString(v.Operator)
			g.writeExpr(v.Argument)
		} else {
			g.writeExpr(v.Argument)
			g.sb.WriteString(v.Operator)
		}
	case *jsast.ConditionalExpression:
		g.sb.WriteByte('(')
		g.writeExpr(v.Test)
		g.sb.WriteString(" ? ")
		g.writeExpr(v.Consequent)
		g.sb.WriteString(" : ")
		g.writeExpr(v.Alternate)
		g.sb.WriteByte(')')
	case *jsast.SequenceExpression:
		g.sb.WriteByte('(')
		for i, e := range v.Expressions {
			if i > 0 {
				g.sb.WriteString(", ")
			}
			g.writeExpr(e)
		}
		g.sb.WriteByte(')')
	case *jsast.TemplateLiteral:
		g.sb.WriteByte('`')
		for i, q := range v.Quasis {
			g.sb.WriteString(q)
			if i < len(v.Expressions) {
				g.sb.WriteString("${")
				g.writeExpr(v.Expressions[i])
				g.sb.WriteByte('}')
			}
		}
		g.sb.WriteByte('`')
	case *jsast.ArrayExpression:
		g.sb.WriteByte('[')
		for i, e := range v.Elements {
			if i > 0 {
				g.sb.WriteString(", ")
			}
			g.writeExpr(e)
		}
		g.sb.WriteByte(']')
	case *jsast.ObjectExpression:
		g.sb.WriteString("{ ")
		for i, p := range v.Properties {
			if i > 0 {
				g.sb.WriteString(", ")
			}
			g.writeKey(p.Key, p.Computed)
			if !p.Shorthand {
				g.sb.WriteString(": ")
				g.writeExpr(p.Value)
			}
		}
		g.sb.WriteString(" }")
	case *jsast.ClassDeclaration:
		g.writeClass(v)
	default:
		panic(fmt.Sprintf("jsparse: Generator: unhandled expression kind %T", n))
	}
}

func isWordOperator(op string) bool {
	switch op {
	case "typeof", "void", "delete":
		return true
	}
	return false
}

func (g *Generator) writeArgs(args []jsast.Node) {
	g.sb.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			g.sb.WriteString(", ")
		}
		g.writeExpr(a)
	}
	g.sb.WriteByte(')')
}

func (g *Generator) writeLiteral(l *jsast.Literal) {
	switch l.LitKind {
	case jsast.LitString:
		s, _ := jsast.LiteralString(l)
		g.sb.WriteString(strconv.Quote(s))
	case jsast.LitNumber:
		f, _ := jsast.LiteralNumber(l)
		g.sb.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	case jsast.LitBool:
		b, _ := jsast.LiteralBool(l)
		g.sb.WriteString(strconv.FormatBool(b))
	case jsast.LitNull:
		g.sb.WriteString("null")
	case jsast.LitUndefined:
		g.sb.WriteString("undefined")
	case jsast.LitRegex:
		rv, _ := l.Value.(jsast.RegexValue)
		g.sb.WriteByte('/')
		g.sb.WriteString(rv.Pattern)
		g.sb.WriteByte('/')
		g.sb.WriteString(rv.Flags)
	}
}

// Fragment renders a single expression or statement node as a standalone
// source fragment, for feeding a synthesized (non-parsed) node to the
// sandbox evaluator.
func Fragment(n jsast.Node) string {
	g := &Generator{}
	switch n.(type) {
	case *jsast.ExpressionStatement, *jsast.VariableDeclaration, *jsast.FunctionDeclaration,
		*jsast.IfStatement, *jsast.ForStatement, *jsast.ForInStatement, *jsast.ForOfStatement,
		*jsast.WhileStatement, *jsast.DoWhileStatement, *jsast.SwitchStatement, *jsast.ReturnStatement,
		*jsast.BreakStatement, *jsast.EmptyStatement, *jsast.BlockStatement, *jsast.ClassDeclaration:
		g.writeStatement(n)
	default:
		g.writeExpr(n)
	}
	return g.sb.String()
}
