package literals

import (
	"testing"

	"github.com/ctrl-escp/restringer-go/pkg/arborist"
	"github.com/ctrl-escp/restringer-go/pkg/jsast"
)

// 2 + 3
func TestFoldBinaryLiteralsNumeric(t *testing.T) {
	b := &jsast.BinaryExpression{Operator: "+", Left: jsast.NewNumberLiteral(2), Right: jsast.NewNumberLiteral(3)}
	prog := &jsast.Program{Body: []jsast.Node{&jsast.ExpressionStatement{Expression: b}}}
	ar := arborist.New(prog)

	n := FoldBinaryLiterals.Run(ar, nil)
	if n != 1 {
		t.Fatalf("applied = %d, want 1", n)
	}
	got, ok := jsast.LiteralNumber(ar.Program().Body[0].(*jsast.ExpressionStatement).Expression)
	if !ok || got != 5 {
		t.Fatalf("result = %#v, want literal 5", ar.Program().Body[0])
	}
}

// "foo" + "bar"
func TestFoldBinaryLiteralsStringConcat(t *testing.T) {
	b := &jsast.BinaryExpression{Operator: "+", Left: jsast.NewStringLiteral("foo"), Right: jsast.NewStringLiteral("bar")}
	prog := &jsast.Program{Body: []jsast.Node{&jsast.ExpressionStatement{Expression: b}}}
	ar := arborist.New(prog)

	FoldBinaryLiterals.Run(ar, nil)
	got, ok := jsast.LiteralString(ar.Program().Body[0].(*jsast.ExpressionStatement).Expression)
	if !ok || got != "foobar" {
		t.Fatalf("result = %#v, want literal \"foobar\"", ar.Program().Body[0])
	}
}

// 1 / 0 never folds: division by zero is left alone rather than producing Inf.
func TestFoldBinaryLiteralsSkipsDivideByZero(t *testing.T) {
	b := &jsast.BinaryExpression{Operator: "/", Left: jsast.NewNumberLiteral(1), Right: jsast.NewNumberLiteral(0)}
	prog := &jsast.Program{Body: []jsast.Node{&jsast.ExpressionStatement{Expression: b}}}
	ar := arborist.New(prog)

	if n := FoldBinaryLiterals.Run(ar, nil); n != 0 {
		t.Fatalf("applied = %d, want 0: division by zero is skipped", n)
	}
}

// `a${1}b`
func TestCollapseStaticTemplateLiteral(t *testing.T) {
	tl := &jsast.TemplateLiteral{Quasis: []string{"a", "b"}, Expressions: []jsast.Node{jsast.NewNumberLiteral(1)}}
	prog := &jsast.Program{Body: []jsast.Node{&jsast.ExpressionStatement{Expression: tl}}}
	ar := arborist.New(prog)

	n := CollapseStaticTemplateLiteral.Run(ar, nil)
	if n != 1 {
		t.Fatalf("applied = %d, want 1", n)
	}
	got, ok := jsast.LiteralString(ar.Program().Body[0].(*jsast.ExpressionStatement).Expression)
	if !ok || got != "a1b" {
		t.Fatalf("result = %#v, want literal \"a1b\"", ar.Program().Body[0])
	}
}

// `a${x}b` with a free identifier expression never collapses.
func TestCollapseStaticTemplateLiteralSkipsDynamicExpression(t *testing.T) {
	tl := &jsast.TemplateLiteral{Quasis: []string{"a", "b"}, Expressions: []jsast.Node{jsast.NewIdentifier("x")}}
	prog := &jsast.Program{Body: []jsast.Node{&jsast.ExpressionStatement{Expression: tl}}}
	ar := arborist.New(prog)

	if n := CollapseStaticTemplateLiteral.Run(ar, nil); n != 0 {
		t.Fatalf("applied = %d, want 0: a non-literal expression blocks collapsing", n)
	}
}

// obj["name"]
func TestNormalizeComputedAccessMemberExpression(t *testing.T) {
	m := &jsast.MemberExpression{Object: jsast.NewIdentifier("obj"), Computed: true, Property: jsast.NewStringLiteral("name")}
	prog := &jsast.Program{Body: []jsast.Node{&jsast.ExpressionStatement{Expression: m}}}
	ar := arborist.New(prog)

	n := NormalizeComputedAccess.Run(ar, nil)
	if n != 1 {
		t.Fatalf("applied = %d, want 1", n)
	}
	got := ar.Program().Body[0].(*jsast.ExpressionStatement).Expression.(*jsast.MemberExpression)
	if got.Computed {
		t.Fatal("Computed = true, want false")
	}
	id, ok := got.Property.(*jsast.Identifier)
	if !ok || id.Name != "name" {
		t.Fatalf("Property = %#v, want identifier \"name\"", got.Property)
	}
}

// obj["not-an-identifier"] never normalizes: the string isn't bare-identifier-shaped.
func TestNormalizeComputedAccessSkipsNonIdentifierString(t *testing.T) {
	m := &jsast.MemberExpression{Object: jsast.NewIdentifier("obj"), Computed: true, Property: jsast.NewStringLiteral("not-an-identifier")}
	prog := &jsast.Program{Body: []jsast.Node{&jsast.ExpressionStatement{Expression: m}}}
	ar := arborist.New(prog)

	if n := NormalizeComputedAccess.Run(ar, nil); n != 0 {
		t.Fatalf("applied = %d, want 0: \"not-an-identifier\" isn't bare-identifier-shaped", n)
	}
}

// ({ ["name"]: 1 })
func TestNormalizeComputedAccessProperty(t *testing.T) {
	prop := &jsast.Property{Key: jsast.NewStringLiteral("name"), Value: jsast.NewNumberLiteral(1), Computed: true}
	obj := &jsast.ObjectExpression{Properties: []*jsast.Property{prop}}
	prog := &jsast.Program{Body: []jsast.Node{&jsast.ExpressionStatement{Expression: obj}}}
	ar := arborist.New(prog)

	n := NormalizeComputedAccess.Run(ar, nil)
	if n != 1 {
		t.Fatalf("applied = %d, want 1", n)
	}
	got := ar.Program().Body[0].(*jsast.ExpressionStatement).Expression.(*jsast.ObjectExpression).Properties[0]
	if got.Computed {
		t.Fatal("Computed = true, want false")
	}
	id, ok := got.Key.(*jsast.Identifier)
	if !ok || id.Name != "name" {
		t.Fatalf("Key = %#v, want identifier \"name\"", got.Key)
	}
}

// atob("aGVsbG8=")
func TestDecodeBase64Call(t *testing.T) {
	call := &jsast.CallExpression{Callee: jsast.NewIdentifier("atob"), Arguments: []jsast.Node{jsast.NewStringLiteral("aGVsbG8=")}}
	prog := &jsast.Program{Body: []jsast.Node{&jsast.ExpressionStatement{Expression: call}}}
	ar := arborist.New(prog)

	n := DecodeBase64Call.Run(ar, nil)
	if n != 1 {
		t.Fatalf("applied = %d, want 1", n)
	}
	got, ok := jsast.LiteralString(ar.Program().Body[0].(*jsast.ExpressionStatement).Expression)
	if !ok || got != "hello" {
		t.Fatalf("result = %#v, want literal \"hello\"", ar.Program().Body[0])
	}
}

// function atob(s){ return s; } atob("x"); — a locally shadowed atob is
// never decoded, since it isn't the global function.
func TestDecodeBase64CallSkipsShadowedIdentifier(t *testing.T) {
	fn := &jsast.FunctionDeclaration{
		ID:     jsast.NewIdentifier("atob"),
		Params: []jsast.Param{{Name: jsast.NewIdentifier("s")}},
		Body:   &jsast.BlockStatement{Body: []jsast.Node{&jsast.ReturnStatement{Argument: jsast.NewIdentifier("s")}}},
	}
	call := &jsast.CallExpression{Callee: jsast.NewIdentifier("atob"), Arguments: []jsast.Node{jsast.NewStringLiteral("x")}}
	prog := &jsast.Program{Body: []jsast.Node{fn, &jsast.ExpressionStatement{Expression: call}}}
	ar := arborist.New(prog)

	if n := DecodeBase64Call.Run(ar, nil); n != 0 {
		t.Fatalf("applied = %d, want 0: a local atob shadows the global", n)
	}
}
