// Package literals implements the safe literal-and-string-algebra rules of
// spec §4.E: folding literal binary expressions, collapsing static template
// literals, normalizing computed member/property access, and decoding
// unbound atob() calls.
package literals

import (
	"regexp"
	"strconv"

	"github.com/ctrl-escp/restringer-go/pkg/arborist"
	"github.com/ctrl-escp/restringer-go/pkg/jsast"
	"github.com/ctrl-escp/restringer-go/pkg/rules"
	"github.com/ctrl-escp/restringer-go/pkg/sandbox"
)

var identifierLike = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// FoldBinaryLiterals folds `L1 op L2` into a single Literal for the
// arithmetic operators this implementation supports; unsupported operators
// are skipped, matching the spec's "unsupported operators skip" escape
// hatch rather than failing the rule.
var FoldBinaryLiterals = rules.Rule{
	Name:   "fold-binary-literals",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindBinaryExpression) {
			b := n.(*jsast.BinaryExpression)
			if !isLiteral(b.Left) || !isLiteral(b.Right) {
				continue
			}
			if _, ok := foldBinary(b); !ok {
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
		b := n.(*jsast.BinaryExpression)
		result, ok := foldBinary(b)
		if !ok {
			return
		}
		ar.MarkReplace(n, result)
	},
}

func isLiteral(n jsast.Node) bool {
	_, ok := n.(*jsast.Literal)
	return ok
}

func foldBinary(b *jsast.BinaryExpression) (*jsast.Literal, bool) {
	left, lok := b.Left.(*jsast.Literal)
	right, rok := b.Right.(*jsast.Literal)
	if !lok || !rok {
		return nil, false
	}
	if b.Operator == "+" {
		if ls, ok := left.Value.(string); ok {
			if rs, ok := right.Value.(string); ok {
				return jsast.NewStringLiteral(ls + rs), true
			}
		}
	}
	lf, lfOk := left.Value.(float64)
	rf, rfOk := right.Value.(float64)
	if !lfOk || !rfOk {
		return nil, false
	}
	switch b.Operator {
	case "+":
		return jsast.NewNumberLiteral(lf + rf), true
	case "-":
		return jsast.NewNumberLiteral(lf - rf), true
	case "*":
		return jsast.NewNumberLiteral(lf * rf), true
	case "/":
		if rf == 0 {
			return nil, false
		}
		return jsast.NewNumberLiteral(lf / rf), true
	}
	return nil, false
}

// CollapseStaticTemplateLiteral replaces a TemplateLiteral whose dynamic
// expressions are absent or all Literal with the concatenated string.
var CollapseStaticTemplateLiteral = rules.Rule{
	Name:   "collapse-static-template-literal",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindTemplateLiteral) {
			tl := n.(*jsast.TemplateLiteral)
			if !allLiteralOrEmpty(tl) {
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
		tl := n.(*jsast.TemplateLiteral)
		ar.MarkReplace(n, jsast.NewStringLiteral(collapseTemplate(tl)))
	},
}

func allLiteralOrEmpty(tl *jsast.TemplateLiteral) bool {
	for _, e := range tl.Expressions {
		if !isLiteral(e) {
			return false
		}
	}
	return true
}

func collapseTemplate(tl *jsast.TemplateLiteral) string {
	var out string
	for i, q := range tl.Quasis {
		out += q
		if i < len(tl.Expressions) {
			out += literalAsString(tl.Expressions[i].(*jsast.Literal))
		}
	}
	return out
}

func literalAsString(l *jsast.Literal) string {
	switch v := l.Value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// NormalizeComputedAccess rewrites obj["name"] to obj.name (and the
// equivalent computed Property/MethodDefinition key forms) whenever the
// string is a valid bare identifier, undoing the obfuscator's habit of
// routing every access through bracket notation.
var NormalizeComputedAccess = rules.Rule{
	Name:   "normalize-computed-access",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindMemberExpression) {
			m := n.(*jsast.MemberExpression)
			if !m.Computed {
				continue
			}
			if _, ok := computedName(m.Property); !ok {
				continue
			}
			if filter != nil && !filter(n) {
				continue
			}
			out = append(out, n)
		}
		for _, n := range idx.TypeIndex.Of(jsast.KindProperty) {
			p := n.(*jsast.Property)
			if !p.Computed {
				continue
			}
			if _, ok := computedName(p.Key); !ok {
				continue
			}
			if filter != nil && !filter(n) {
				continue
			}
			out = append(out, n)
		}
		for _, n := range idx.TypeIndex.Of(jsast.KindMethodDefinition) {
			md := n.(*jsast.MethodDefinition)
			if !md.Computed {
				continue
			}
			if _, ok := computedName(md.Key); !ok {
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
		case *jsast.MemberExpression:
			name, _ := computedName(v.Property)
			replacement := jsast.Clone(n).(*jsast.MemberExpression)
			replacement.Property = jsast.NewIdentifier(name)
			replacement.Computed = false
			ar.MarkReplace(n, replacement)
		case *jsast.Property:
			name, _ := computedName(v.Key)
			replacement := jsast.Clone(n).(*jsast.Property)
			replacement.Key = jsast.NewIdentifier(name)
			replacement.Computed = false
			ar.MarkReplace(n, replacement)
		case *jsast.MethodDefinition:
			name, _ := computedName(v.Key)
			replacement := jsast.Clone(n).(*jsast.MethodDefinition)
			replacement.Key = jsast.NewIdentifier(name)
			replacement.Computed = false
			ar.MarkReplace(n, replacement)
		}
	},
}

func computedName(n jsast.Node) (string, bool) {
	s, ok := jsast.LiteralString(n)
	if !ok || !identifierLike.MatchString(s) {
		return "", false
	}
	return s, true
}

// DecodeBase64Call replaces `atob("...")` — where atob is an unbound
// (global) identifier, not a local shadow — with the decoded Literal,
// swallowing decode errors by skipping the candidate entirely.
var DecodeBase64Call = rules.Rule{
	Name:   "decode-base64-call",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindCallExpression) {
			c := n.(*jsast.CallExpression)
			if !isUnboundCallTo(c, "atob") || len(c.Arguments) != 1 {
				continue
			}
			if _, ok := jsast.LiteralString(c.Arguments[0]); !ok {
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
		arg, _ := jsast.LiteralString(c.Arguments[0])
		result := sandbox.EvalInVM("atob("+strconv.Quote(arg)+")", nil)
		if jsast.IsBadValue(result) {
			return
		}
		ar.MarkReplace(n, result)
	},
}

func isUnboundCallTo(c *jsast.CallExpression, name string) bool {
	id, ok := c.Callee.(*jsast.Identifier)
	return ok && id.Name == name && id.DeclNode == nil
}
