package context

import (
	"testing"

	"github.com/ctrl-escp/restringer-go/pkg/jsast"
)

// var a = 1; var b = a + 1; function f() { return b; }
// DeclarationWithContext(the `b` reference inside f) should gather both the
// `var b` and `var a` declarations in source order.
func TestDeclarationWithContextGathersTransitiveDecls(t *testing.T) {
	aDecl := &jsast.VariableDeclarator{ID: jsast.NewIdentifier("a"), Init: jsast.NewNumberLiteral(1)}
	aDeclStmt := &jsast.VariableDeclaration{DeclKind: "var", Declarations: []*jsast.VariableDeclarator{aDecl}}

	aUse := jsast.NewIdentifier("a")
	bDecl := &jsast.VariableDeclarator{
		ID:   jsast.NewIdentifier("b"),
		Init: &jsast.BinaryExpression{Operator: "+", Left: aUse, Right: jsast.NewNumberLiteral(1)},
	}
	bDeclStmt := &jsast.VariableDeclaration{DeclKind: "var", Declarations: []*jsast.VariableDeclarator{bDecl}}

	bUse := jsast.NewIdentifier("b")
	fn := &jsast.FunctionDeclaration{
		ID:   jsast.NewIdentifier("f"),
		Body: &jsast.BlockStatement{Body: []jsast.Node{&jsast.ReturnStatement{Argument: bUse}}},
	}

	prog := &jsast.Program{Body: []jsast.Node{aDeclStmt, bDeclStmt, fn}}
	jsast.BuildIndices(prog, 1)

	got := DeclarationWithContext(bUse, false)
	if len(got) != 2 {
		t.Fatalf("got %d statements, want 2: %#v", len(got), got)
	}
	if got[0] != aDeclStmt || got[1] != bDeclStmt {
		t.Fatalf("got %#v, want [aDeclStmt, bDeclStmt] in source order", got)
	}
}

// var c; c = 5; function f() { return c; } — a later assignment to a
// variable already in the set must also be pulled in.
func TestDeclarationWithContextGathersMutatingAssignment(t *testing.T) {
	cDecl := &jsast.VariableDeclarator{ID: jsast.NewIdentifier("c")}
	cDeclStmt := &jsast.VariableDeclaration{DeclKind: "var", Declarations: []*jsast.VariableDeclarator{cDecl}}

	assignStmt := &jsast.ExpressionStatement{Expression: &jsast.AssignmentExpression{
		Operator: "=", Target: jsast.NewIdentifier("c"), Value: jsast.NewNumberLiteral(5),
	}}

	cUse := jsast.NewIdentifier("c")
	fn := &jsast.FunctionDeclaration{
		ID:   jsast.NewIdentifier("f"),
		Body: &jsast.BlockStatement{Body: []jsast.Node{&jsast.ReturnStatement{Argument: cUse}}},
	}

	prog := &jsast.Program{Body: []jsast.Node{cDeclStmt, assignStmt, fn}}
	jsast.BuildIndices(prog, 1)

	got := DeclarationWithContext(cUse, false)
	if len(got) != 2 {
		t.Fatalf("got %d statements, want 2: %#v", len(got), got)
	}
	if got[0] != cDeclStmt || got[1] != assignStmt {
		t.Fatalf("got %#v, want [cDeclStmt, assignStmt] in source order", got)
	}
}

func TestDeclarationWithContextEmptyForUnboundIdentifier(t *testing.T) {
	use := &jsast.ExpressionStatement{Expression: jsast.NewIdentifier("undeclaredGlobal")}
	prog := &jsast.Program{Body: []jsast.Node{use}}
	jsast.BuildIndices(prog, 1)

	got := DeclarationWithContext(use.Expression, false)
	if len(got) != 0 {
		t.Fatalf("got %#v, want an empty set", got)
	}
}
