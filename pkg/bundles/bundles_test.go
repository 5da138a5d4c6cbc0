package bundles

import (
	"testing"

	"github.com/ctrl-escp/restringer-go/pkg/arborist"
	"github.com/ctrl-escp/restringer-go/pkg/jsast"
	"github.com/ctrl-escp/restringer-go/pkg/rules"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"obfuscatorIOMarker", `var x = "newState"; foo();`, "obfuscator.io"},
		{"obfuscatorIORemoveCookie", `var x = "removeCookie";`, "obfuscator.io"},
		{"augmentedArray", `(function(a,n){while(n--)a.push(a.shift())})(A,3);`, "augmented-array"},
		{"functionToArray", `function getArr() { return ["a", "b"]; }`, "function-to-array"},
		{"caesarPlus", `(function(){ return doWork(); })();`, "caesar-plus"},
		{"unrecognized", `const x = 1 + 2;`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.source); got != tt.want {
				t.Errorf("Detect(%q) = %q, want %q", tt.source, got, tt.want)
			}
		})
	}
}

func TestRegistryHasAllFourFamilies(t *testing.T) {
	reg := Registry()
	for _, name := range []string{"obfuscator.io", "augmented-array", "function-to-array", "caesar-plus"} {
		if _, ok := reg[name]; !ok {
			t.Errorf("Registry() missing family %q", name)
		}
	}
}

// function getArr(){ return ["a","b"]; } getArr();
func TestResolveFunctionToArray(t *testing.T) {
	fn := &jsast.FunctionDeclaration{
		ID: jsast.NewIdentifier("getArr"),
		Body: &jsast.BlockStatement{Body: []jsast.Node{&jsast.ReturnStatement{Argument: &jsast.ArrayExpression{
			Elements: []jsast.Node{jsast.NewStringLiteral("a"), jsast.NewStringLiteral("b")},
		}}}},
	}
	call := &jsast.CallExpression{Callee: jsast.NewIdentifier("getArr")}
	prog := &jsast.Program{Body: []jsast.Node{fn, &jsast.ExpressionStatement{Expression: call}}}
	ar := arborist.New(prog)

	n := resolveFunctionToArray.Run(ar, nil)
	if n != 1 {
		t.Fatalf("applied = %d, want 1", n)
	}
	arr, ok := ar.Program().Body[1].(*jsast.ExpressionStatement).Expression.(*jsast.ArrayExpression)
	if !ok || len(arr.Elements) != 2 {
		t.Fatalf("call site = %#v, want a 2-element ArrayExpression", ar.Program().Body[1])
	}
}

// (function(){ return doWork(); })();
func TestUnwrapCaesarLayer(t *testing.T) {
	inner := &jsast.CallExpression{Callee: jsast.NewIdentifier("doWork")}
	fn := &jsast.FunctionExpression{Body: &jsast.BlockStatement{Body: []jsast.Node{&jsast.ReturnStatement{Argument: inner}}}}
	outer := &jsast.CallExpression{Callee: fn}
	prog := &jsast.Program{Body: []jsast.Node{&jsast.ExpressionStatement{Expression: outer}}}
	ar := arborist.New(prog)

	n := unwrapCaesarLayer.Run(ar, nil)
	if n != 1 {
		t.Fatalf("applied = %d, want 1", n)
	}
	got, ok := ar.Program().Body[0].(*jsast.ExpressionStatement).Expression.(*jsast.CallExpression)
	if !ok {
		t.Fatalf("result = %#v, want a CallExpression", ar.Program().Body[0])
	}
	callee, ok := got.Callee.(*jsast.Identifier)
	if !ok || callee.Name != "doWork" {
		t.Fatalf("callee = %#v, want identifier \"doWork\"", got.Callee)
	}
}

func TestLoadOverridesReassignsRuleList(t *testing.T) {
	marker := rules.Rule{Name: "marker-rule", Safety: rules.Safe}
	byName := map[string]rules.Rule{"marker-rule": marker}
	base := Registry()

	yamlDoc := []byte("families:\n  caesar-plus:\n    preprocessors:\n      - marker-rule\n")
	out, err := LoadOverrides(yamlDoc, base, byName)
	if err != nil {
		t.Fatalf("LoadOverrides error: %v", err)
	}
	p := out["caesar-plus"]
	if len(p.Preprocessors) != 1 || p.Preprocessors[0].Name != "marker-rule" {
		t.Fatalf("caesar-plus preprocessors = %#v, want [marker-rule]", p.Preprocessors)
	}
	// Untouched families keep their base rule lists.
	if len(out["augmented-array"].Preprocessors) != len(base["augmented-array"].Preprocessors) {
		t.Error("augmented-array should be untouched by an override naming only caesar-plus")
	}
}

func TestLoadOverridesUnknownRuleNameIsSkipped(t *testing.T) {
	base := Registry()
	yamlDoc := []byte("families:\n  caesar-plus:\n    preprocessors:\n      - does-not-exist\n")
	out, err := LoadOverrides(yamlDoc, base, map[string]rules.Rule{})
	if err != nil {
		t.Fatalf("LoadOverrides error: %v", err)
	}
	if len(out["caesar-plus"].Preprocessors) != 0 {
		t.Errorf("preprocessors = %#v, want empty: unresolvable names are skipped, not errored", out["caesar-plus"].Preprocessors)
	}
}
