// Package bundles implements spec §4.G's processor bundles: family-specific
// ordered rule lists run before (preprocessors) and after (postprocessors)
// the main safe/unsafe loop, plus the obfuscation-pattern detector that
// picks which bundle applies.
package bundles

import (
	"regexp"
	"strings"

	"github.com/ctrl-escp/restringer-go/pkg/arborist"
	"github.com/ctrl-escp/restringer-go/pkg/jsast"
	"github.com/ctrl-escp/restringer-go/pkg/rules"
	"github.com/ctrl-escp/restringer-go/pkg/rules/variables"
	"github.com/ctrl-escp/restringer-go/pkg/sandbox"
	"github.com/goccy/go-yaml"
)

// Processor is the spec's "module exporting two ordered lists" shape.
type Processor struct {
	Name           string
	Preprocessors  []rules.Rule
	Postprocessors []rules.Rule
}

// bypassDebugTrap implements the obfuscator.io preprocessor: Literals whose
// value is "newState" or "removeCookie" mark debug-trap scaffolding that
// this replaces wholesale with a FunctionExpression that returns the
// string "bypassed!".
var bypassDebugTrap = rules.Rule{
	Name:   "obfuscator-io-bypass-debug-trap",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindLiteral) {
			s, ok := jsast.LiteralString(n)
			if !ok || (s != "newState" && s != "removeCookie") {
				continue
			}
			target := debugTrapTarget(n)
			if target == nil {
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
		target := debugTrapTarget(n)
		if target == nil {
			return
		}
		ar.MarkReplace(target, bypassFunctionLiteral())
	},
}

// debugTrapTarget finds the node the marker literal implicates: the
// enclosing FunctionExpression for the "newState" marker (the trap wraps
// itself in a state-machine closure), or the sibling property value for
// "removeCookie" (the marker sits in an object key position).
func debugTrapTarget(marker jsast.Node) jsast.Node {
	if s, _ := jsast.LiteralString(marker); s == "newState" {
		lineage := marker.Meta().Lineage
		for i := len(lineage) - 1; i >= 0; i-- {
			if fn, ok := lineage[i].(*jsast.FunctionExpression); ok {
				return fn
			}
		}
		return nil
	}
	if prop, ok := marker.Meta().Parent.(*jsast.Property); ok && prop.Key == marker {
		return prop.Value
	}
	return nil
}

func bypassFunctionLiteral() *jsast.FunctionExpression {
	body := &jsast.BlockStatement{Body: []jsast.Node{
		&jsast.ReturnStatement{Argument: jsast.NewStringLiteral("bypassed!")},
	}}
	return &jsast.FunctionExpression{Body: body}
}

// resolveAugmentedArrayIIFE implements the augmented-array preprocessor:
// `(function(arr, n){ while(n--) arr.push(arr.shift()) })(A, k)` is a
// rotation cipher on A's initializer; evaluating it once lets every later
// rule see A already in its final, de-rotated form.
var resolveAugmentedArrayIIFE = rules.Rule{
	Name:   "augmented-array-resolve-rotation-iife",
	Safety: rules.Unsafe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindCallExpression) {
			c := n.(*jsast.CallExpression)
			fn, ok := c.Callee.(*jsast.FunctionExpression)
			if !ok || len(c.Arguments) != 2 || !isRotationBody(fn) {
				continue
			}
			arrID, ok := c.Arguments[0].(*jsast.Identifier)
			if !ok || arrID.DeclNode == nil {
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
		arrID := c.Arguments[0].(*jsast.Identifier)
		decl := arrID.DeclNode.Meta().Parent.(*jsast.VariableDeclarator)
		if decl.Init == nil {
			return
		}

		sb := sandbox.New()
		sb.Prepare(declaratorSource(decl))
		result := sandbox.EvalInVM(fragmentSource(n), sb)
		if jsast.IsBadValue(result) {
			return
		}
		permuted := sandbox.EvalInVM(arrID.Name, sb)
		if jsast.IsBadValue(permuted) {
			return
		}
		ar.MarkReplace(decl.Init, permuted)
		ar.MarkDelete(n)
	},
}

func declaratorSource(d *jsast.VariableDeclarator) string {
	return "var " + d.ID.Name + " = " + fragmentSource(d.Init) + ";"
}

func fragmentSource(n jsast.Node) string {
	if s := n.Meta().Src; s != "" {
		return s
	}
	return ""
}

// isRotationBody recognizes the canonical `while(n--) arr.push(arr.shift())`
// single-statement function body the augmented-array cipher always uses.
func isRotationBody(fn *jsast.FunctionExpression) bool {
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

func calleeName(callee jsast.Node) (string, bool) {
	if m, ok := callee.(*jsast.MemberExpression); ok {
		if id, ok := m.Property.(*jsast.Identifier); ok && !m.Computed {
			return id.Name, true
		}
	}
	return "", false
}

// resolveFunctionToArray implements the function-to-array preprocessor: a
// FunctionDeclaration whose sole behavior is `return [literal, literal...]`
// is inlined at every call site as the array literal itself.
var resolveFunctionToArray = rules.Rule{
	Name:   "function-to-array-inline",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindCallExpression) {
			c := n.(*jsast.CallExpression)
			id, ok := c.Callee.(*jsast.Identifier)
			if !ok || id.DeclNode == nil {
				continue
			}
			if arrayReturnLiteral(id.DeclNode) == nil {
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
		lit := arrayReturnLiteral(id.DeclNode)
		if lit == nil {
			return
		}
		ar.MarkReplace(n, jsast.Clone(lit))
	},
}

func arrayReturnLiteral(declIdent *jsast.Identifier) *jsast.ArrayExpression {
	fn, ok := declIdent.Meta().Parent.(*jsast.FunctionDeclaration)
	if !ok || fn.Body == nil || len(fn.Body.Body) != 1 {
		return nil
	}
	ret, ok := fn.Body.Body[0].(*jsast.ReturnStatement)
	if !ok {
		return nil
	}
	arr, ok := ret.Argument.(*jsast.ArrayExpression)
	if !ok {
		return nil
	}
	for _, el := range arr.Elements {
		if _, ok := jsast.AsLiteral(el); !ok {
			return nil
		}
	}
	return arr
}

// unwrapCaesarLayer implements the caesar-plus preprocessor: a top-level
// IIFE whose entire body is `return <single expression>` is replaced by an
// ExpressionStatement of that expression, peeling the outer call-wrapping
// layer the cipher uses to hide its own entry point.
var unwrapCaesarLayer = rules.Rule{
	Name:   "caesar-plus-unwrap-outer-iife",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindCallExpression) {
			c := n.(*jsast.CallExpression)
			if _, ok := c.Callee.(*jsast.FunctionExpression); !ok || len(c.Arguments) != 0 {
				continue
			}
			stmt, ok := n.Meta().Parent.(*jsast.ExpressionStatement)
			if !ok {
				continue
			}
			if _, ok := stmt.Meta().Parent.(*jsast.Program); !ok {
				continue
			}
			if soleReturnExpression(c.Callee.(*jsast.FunctionExpression)) == nil {
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
		expr := soleReturnExpression(c.Callee.(*jsast.FunctionExpression))
		if expr == nil {
			return
		}
		parent, ok := n.Meta().Parent.(*jsast.ExpressionStatement)
		if !ok {
			return
		}
		ar.MarkReplace(parent.Expression, jsast.Clone(expr))
	},
}

func soleReturnExpression(fn *jsast.FunctionExpression) jsast.Node {
	if fn.Body == nil || len(fn.Body.Body) != 1 {
		return nil
	}
	ret, ok := fn.Body.Body[0].(*jsast.ReturnStatement)
	if !ok || ret.Argument == nil {
		return nil
	}
	return ret.Argument
}

// Registry lists the built-in processor families by name, per spec §4.G's
// "representative bundles".
func Registry() map[string]Processor {
	return map[string]Processor{
		"obfuscator.io": {
			Name:          "obfuscator.io",
			Preprocessors: []rules.Rule{bypassDebugTrap, resolveAugmentedArrayIIFE},
		},
		"augmented-array": {
			Name:          "augmented-array",
			Preprocessors: []rules.Rule{resolveAugmentedArrayIIFE},
		},
		"function-to-array": {
			Name:          "function-to-array",
			Preprocessors: []rules.Rule{resolveFunctionToArray},
		},
		"caesar-plus": {
			Name:           "caesar-plus",
			Preprocessors:  []rules.Rule{unwrapCaesarLayer},
			Postprocessors: []rules.Rule{variables.DeadCodeRemoval},
		},
	}
}

// functionToArrayShape and caesarPlusShape are the regex-level telltales
// for the two families with no fixed string marker: function-to-array
// hides behind an arbitrarily-named function returning an array literal,
// and caesar-plus behind an anonymous top-level IIFE returning a single
// expression. Both are cheap enough to run unconditionally on every
// Detect call.
var (
	functionToArrayShape = regexp.MustCompile(`function\s+\w+\s*\(\s*\)\s*\{\s*return\s*\[`)
	caesarPlusShape      = regexp.MustCompile(`^\s*\(\s*function\s*\(\s*\)\s*\{[\s\S]*?return[\s\S]*?\}\s*\)\s*\(\s*\)`)
)

// Detect implements the "external detector" spec §4.H delegates to: a
// cheap textual sniff for each family's telltale markers. It returns "" for
// unrecognized source, in which case the orchestrator runs no bundle.
func Detect(source string) string {
	switch {
	case strings.Contains(source, `"newState"`), strings.Contains(source, `"removeCookie"`):
		return "obfuscator.io"
	case strings.Contains(source, ".push(") && strings.Contains(source, ".shift())"):
		return "augmented-array"
	case functionToArrayShape.MatchString(source):
		return "function-to-array"
	case caesarPlusShape.MatchString(source):
		return "caesar-plus"
	default:
		return ""
	}
}

// overrideFile is the YAML shape --bundle-config accepts: a family name to
// a list of rule names for each of its ordered lists, letting an operator
// reassign which rules belong to which bundle without recompiling.
type overrideFile struct {
	Families map[string]struct {
		Preprocessors  []string `yaml:"preprocessors"`
		Postprocessors []string `yaml:"postprocessors"`
	} `yaml:"families"`
}

// LoadOverrides parses a --bundle-config YAML document and rebuilds the
// named families' rule lists from byName, leaving families/rules it doesn't
// mention untouched.
func LoadOverrides(data []byte, base map[string]Processor, byName map[string]rules.Rule) (map[string]Processor, error) {
	var doc overrideFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	out := make(map[string]Processor, len(base))
	for k, v := range base {
		out[k] = v
	}
	for family, lists := range doc.Families {
		p := out[family]
		p.Name = family
		if lists.Preprocessors != nil {
			p.Preprocessors = resolveNames(lists.Preprocessors, byName)
		}
		if lists.Postprocessors != nil {
			p.Postprocessors = resolveNames(lists.Postprocessors, byName)
		}
		out[family] = p
	}
	return out, nil
}

func resolveNames(names []string, byName map[string]rules.Rule) []rules.Rule {
	out := make([]rules.Rule, 0, len(names))
	for _, name := range names {
		if r, ok := byName[name]; ok {
			out = append(out, r)
		}
	}
	return out
}
