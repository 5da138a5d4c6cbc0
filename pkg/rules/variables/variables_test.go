package variables

import (
	"testing"

	"github.com/ctrl-escp/restringer-go/pkg/arborist"
	"github.com/ctrl-escp/restringer-go/pkg/jsast"
)

// var x = 1; x; x;
func TestConstantPropagation(t *testing.T) {
	decl := &jsast.VariableDeclarator{ID: jsast.NewIdentifier("x"), Init: jsast.NewNumberLiteral(1)}
	use1 := jsast.NewIdentifier("x")
	use2 := jsast.NewIdentifier("x")
	prog := &jsast.Program{Body: []jsast.Node{
		&jsast.VariableDeclaration{DeclKind: "var", Declarations: []*jsast.VariableDeclarator{decl}},
		&jsast.ExpressionStatement{Expression: use1},
		&jsast.ExpressionStatement{Expression: use2},
	}}
	ar := arborist.New(prog)
	n := ConstantPropagation.Run(ar, nil)
	if n != 2 {
		t.Fatalf("applied = %d, want 2", n)
	}
	body := ar.Program().Body
	f1, ok := jsast.LiteralNumber(body[1].(*jsast.ExpressionStatement).Expression)
	if !ok || f1 != 1 {
		t.Fatalf("body[1] = %#v, want literal 1", body[1])
	}
}

// let x = 1; x = 2; x; — x is reassigned so must not be propagated.
func TestConstantPropagationSkipsReassigned(t *testing.T) {
	decl := &jsast.VariableDeclarator{ID: jsast.NewIdentifier("x"), Init: jsast.NewNumberLiteral(1)}
	use := jsast.NewIdentifier("x")
	assignTarget := jsast.NewIdentifier("x")
	prog := &jsast.Program{Body: []jsast.Node{
		&jsast.VariableDeclaration{DeclKind: "let", Declarations: []*jsast.VariableDeclarator{decl}},
		&jsast.ExpressionStatement{Expression: &jsast.AssignmentExpression{Operator: "=", Target: assignTarget, Value: jsast.NewNumberLiteral(2)}},
		&jsast.ExpressionStatement{Expression: use},
	}}
	ar := arborist.New(prog)
	n := ConstantPropagation.Run(ar, nil)
	if n != 0 {
		t.Fatalf("applied = %d, want 0", n)
	}
}

// const b = a; b; — b should be replaced by a and its declaration removed.
func TestProxyVariablesReplacesUsesAndRemovesDecl(t *testing.T) {
	aUseInInit := jsast.NewIdentifier("a")
	bDecl := &jsast.VariableDeclarator{ID: jsast.NewIdentifier("b"), Init: aUseInInit}
	bUse := jsast.NewIdentifier("b")
	prog := &jsast.Program{Body: []jsast.Node{
		&jsast.VariableDeclaration{DeclKind: "var", Declarations: []*jsast.VariableDeclarator{{ID: jsast.NewIdentifier("a"), Init: jsast.NewNumberLiteral(1)}}},
		&jsast.VariableDeclaration{DeclKind: "const", Declarations: []*jsast.VariableDeclarator{bDecl}},
		&jsast.ExpressionStatement{Expression: bUse},
	}}
	ar := arborist.New(prog)
	n := ProxyVariables.Run(ar, nil)
	if n != 1 {
		t.Fatalf("applied = %d, want 1", n)
	}
	replaced, ok := ar.Program().Body[2].(*jsast.ExpressionStatement).Expression.(*jsast.Identifier)
	if !ok || replaced.Name != "a" {
		t.Fatalf("use site = %#v, want identifier \"a\"", ar.Program().Body[2])
	}
	if len(ar.Program().Body[1].(*jsast.VariableDeclaration).Declarations) != 0 {
		t.Fatalf("proxy declaration was not removed: %#v", ar.Program().Body[1])
	}
}

// function f() { var unused = 1; return 2; } — unused is nested (function
// scope, not program scope) and unreferenced, so it is dead code.
func TestDeadCodeRemovalDeletesUnreferencedNestedDeclarator(t *testing.T) {
	unused := &jsast.VariableDeclarator{ID: jsast.NewIdentifier("unused"), Init: jsast.NewNumberLiteral(1)}
	fn := &jsast.FunctionDeclaration{
		ID: jsast.NewIdentifier("f"),
		Body: &jsast.BlockStatement{Body: []jsast.Node{
			&jsast.VariableDeclaration{DeclKind: "var", Declarations: []*jsast.VariableDeclarator{unused}},
			&jsast.ReturnStatement{Argument: jsast.NewNumberLiteral(2)},
		}},
	}
	prog := &jsast.Program{Body: []jsast.Node{fn}}
	ar := arborist.New(prog)
	n := DeadCodeRemoval.Run(ar, nil)
	if n != 1 {
		t.Fatalf("applied = %d, want 1", n)
	}
	if len(fn.Body.Body) != 1 {
		t.Fatalf("fn.Body.Body = %#v, want the unused decl removed", fn.Body.Body)
	}
}

// var top = 1; — top-level declarations are never removed even if unused.
func TestDeadCodeRemovalSkipsTopLevel(t *testing.T) {
	top := &jsast.VariableDeclarator{ID: jsast.NewIdentifier("top"), Init: jsast.NewNumberLiteral(1)}
	prog := &jsast.Program{Body: []jsast.Node{
		&jsast.VariableDeclaration{DeclKind: "var", Declarations: []*jsast.VariableDeclarator{top}},
	}}
	ar := arborist.New(prog)
	n := DeadCodeRemoval.Run(ar, nil)
	if n != 0 {
		t.Fatalf("applied = %d, want 0", n)
	}
}

// let x; x = 5; x;
func TestFixedValueAfterDeclare(t *testing.T) {
	decl := &jsast.VariableDeclarator{ID: jsast.NewIdentifier("x")}
	assignTarget := jsast.NewIdentifier("x")
	use := jsast.NewIdentifier("x")
	prog := &jsast.Program{Body: []jsast.Node{
		&jsast.VariableDeclaration{DeclKind: "let", Declarations: []*jsast.VariableDeclarator{decl}},
		&jsast.ExpressionStatement{Expression: &jsast.AssignmentExpression{Operator: "=", Target: assignTarget, Value: jsast.NewNumberLiteral(5)}},
		&jsast.ExpressionStatement{Expression: use},
	}}
	ar := arborist.New(prog)
	n := FixedValueAfterDeclare.Run(ar, nil)
	if n != 1 {
		t.Fatalf("applied = %d, want 1", n)
	}
	got, ok := jsast.LiteralNumber(ar.Program().Body[2].(*jsast.ExpressionStatement).Expression)
	if !ok || got != 5 {
		t.Fatalf("body[2] = %#v, want literal 5", ar.Program().Body[2])
	}
}

// let x; x = 5; foo(x); x = 6; — written more than once, must not match.
func TestFixedValueAfterDeclareSkipsMultipleWrites(t *testing.T) {
	decl := &jsast.VariableDeclarator{ID: jsast.NewIdentifier("x")}
	assign1 := jsast.NewIdentifier("x")
	use := jsast.NewIdentifier("x")
	assign2 := jsast.NewIdentifier("x")
	prog := &jsast.Program{Body: []jsast.Node{
		&jsast.VariableDeclaration{DeclKind: "let", Declarations: []*jsast.VariableDeclarator{decl}},
		&jsast.ExpressionStatement{Expression: &jsast.AssignmentExpression{Operator: "=", Target: assign1, Value: jsast.NewNumberLiteral(5)}},
		&jsast.ExpressionStatement{Expression: &jsast.CallExpression{Callee: jsast.NewIdentifier("foo"), Arguments: []jsast.Node{use}}},
		&jsast.ExpressionStatement{Expression: &jsast.AssignmentExpression{Operator: "=", Target: assign2, Value: jsast.NewNumberLiteral(6)}},
	}}
	ar := arborist.New(prog)
	n := FixedValueAfterDeclare.Run(ar, nil)
	if n != 0 {
		t.Fatalf("applied = %d, want 0", n)
	}
}

// const b = a.x; b; — b should be replaced by a.x and its declaration removed.
func TestProxyMemberChainsReplacesUsesAndRemovesDecl(t *testing.T) {
	chain := &jsast.MemberExpression{Object: jsast.NewIdentifier("a"), Property: jsast.NewIdentifier("x")}
	bDecl := &jsast.VariableDeclarator{ID: jsast.NewIdentifier("b"), Init: chain}
	bUse := jsast.NewIdentifier("b")
	prog := &jsast.Program{Body: []jsast.Node{
		&jsast.VariableDeclaration{DeclKind: "var", Declarations: []*jsast.VariableDeclarator{{ID: jsast.NewIdentifier("a"), Init: &jsast.ObjectExpression{}}}},
		&jsast.VariableDeclaration{DeclKind: "const", Declarations: []*jsast.VariableDeclarator{bDecl}},
		&jsast.ExpressionStatement{Expression: bUse},
	}}
	ar := arborist.New(prog)
	n := ProxyMemberChains.Run(ar, nil)
	if n != 1 {
		t.Fatalf("applied = %d, want 1", n)
	}
	replaced, ok := ar.Program().Body[2].(*jsast.ExpressionStatement).Expression.(*jsast.MemberExpression)
	if !ok {
		t.Fatalf("use site = %#v, want a MemberExpression", ar.Program().Body[2])
	}
	prop, _ := memberPropertyName(replaced)
	if prop != "x" {
		t.Fatalf("replaced chain property = %q, want \"x\"", prop)
	}
	if len(ar.Program().Body[1].(*jsast.VariableDeclaration).Declarations) != 0 {
		t.Fatalf("proxy declaration was not removed: %#v", ar.Program().Body[1])
	}
}

// var obj = {}; obj.k = 1; obj.k;
func TestDirectAssignmentPropertyResolution(t *testing.T) {
	objDecl := &jsast.VariableDeclarator{ID: jsast.NewIdentifier("obj"), Init: &jsast.ObjectExpression{}}
	writeObj := jsast.NewIdentifier("obj")
	readObj := jsast.NewIdentifier("obj")
	write := &jsast.MemberExpression{Object: writeObj, Property: jsast.NewIdentifier("k")}
	read := &jsast.MemberExpression{Object: readObj, Property: jsast.NewIdentifier("k")}
	prog := &jsast.Program{Body: []jsast.Node{
		&jsast.VariableDeclaration{DeclKind: "var", Declarations: []*jsast.VariableDeclarator{objDecl}},
		&jsast.ExpressionStatement{Expression: &jsast.AssignmentExpression{Operator: "=", Target: write, Value: jsast.NewNumberLiteral(1)}},
		&jsast.ExpressionStatement{Expression: read},
	}}
	ar := arborist.New(prog)
	n := DirectAssignmentPropertyResolution.Run(ar, nil)
	if n != 1 {
		t.Fatalf("applied = %d, want 1", n)
	}
	got, ok := jsast.LiteralNumber(ar.Program().Body[2].(*jsast.ExpressionStatement).Expression)
	if !ok || got != 1 {
		t.Fatalf("body[2] = %#v, want literal 1", ar.Program().Body[2])
	}
}

// var arr = [10, 20, 30]; arr[1];
func TestArrayIndexResolution(t *testing.T) {
	arrDecl := &jsast.VariableDeclarator{
		ID: jsast.NewIdentifier("arr"),
		Init: &jsast.ArrayExpression{Elements: []jsast.Node{
			jsast.NewNumberLiteral(10), jsast.NewNumberLiteral(20), jsast.NewNumberLiteral(30),
		}},
	}
	access := &jsast.MemberExpression{Object: jsast.NewIdentifier("arr"), Property: jsast.NewNumberLiteral(1), Computed: true}
	prog := &jsast.Program{Body: []jsast.Node{
		&jsast.VariableDeclaration{DeclKind: "var", Declarations: []*jsast.VariableDeclarator{arrDecl}},
		&jsast.ExpressionStatement{Expression: access},
	}}
	ar := arborist.New(prog)
	n := ArrayIndexResolution.Run(ar, nil)
	if n != 1 {
		t.Fatalf("applied = %d, want 1", n)
	}
	got, ok := jsast.LiteralNumber(ar.Program().Body[1].(*jsast.ExpressionStatement).Expression)
	if !ok || got != 20 {
		t.Fatalf("body[1] = %#v, want literal 20", ar.Program().Body[1])
	}
}

// var arr = [10, 20, 30]; arr.push(40); arr[1]; — mutated array must not resolve.
func TestArrayIndexResolutionSkipsMutatedArray(t *testing.T) {
	arrDecl := &jsast.VariableDeclarator{
		ID: jsast.NewIdentifier("arr"),
		Init: &jsast.ArrayExpression{Elements: []jsast.Node{
			jsast.NewNumberLiteral(10), jsast.NewNumberLiteral(20), jsast.NewNumberLiteral(30),
		}},
	}
	pushCallee := &jsast.MemberExpression{Object: jsast.NewIdentifier("arr"), Property: jsast.NewIdentifier("push")}
	access := &jsast.MemberExpression{Object: jsast.NewIdentifier("arr"), Property: jsast.NewNumberLiteral(1), Computed: true}
	prog := &jsast.Program{Body: []jsast.Node{
		&jsast.VariableDeclaration{DeclKind: "var", Declarations: []*jsast.VariableDeclarator{arrDecl}},
		&jsast.ExpressionStatement{Expression: &jsast.CallExpression{Callee: pushCallee, Arguments: []jsast.Node{jsast.NewNumberLiteral(40)}}},
		&jsast.ExpressionStatement{Expression: access},
	}}
	ar := arborist.New(prog)
	n := ArrayIndexResolution.Run(ar, nil)
	if n != 0 {
		t.Fatalf("applied = %d, want 0", n)
	}
}
