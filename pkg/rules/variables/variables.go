// Package variables implements the safe variable-flow rules: constant
// propagation (at declaration and after a declare-then-assign), proxy
// elimination for bare identifiers and member chains, direct-assignment
// property resolution, array-index resolution, and dead-code removal for
// unreferenced local declarations.
package variables

import (
	"github.com/ctrl-escp/restringer-go/pkg/arborist"
	"github.com/ctrl-escp/restringer-go/pkg/jsast"
	"github.com/ctrl-escp/restringer-go/pkg/rules"
)

// ConstantPropagation replaces every read of an identifier whose declarator
// initializer is a Literal, and which is never reassigned, with a clone of
// that Literal. Property-key identifiers are excluded by construction since
// jsast.BuildIndices never gives them a DeclNode.
var ConstantPropagation = rules.Rule{
	Name:   "constant-propagation",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindIdentifier) {
			id := n.(*jsast.Identifier)
			if id.IsDeclaration() {
				continue
			}
			decl := id.DeclNode
			if decl == nil {
				continue
			}
			lit, ok := literalInit(decl)
			if !ok {
				continue
			}
			if referencesModified(decl) {
				continue
			}
			_ = lit
			if filter != nil && !filter(n) {
				continue
			}
			out = append(out, n)
		}
		return out
	},
	Transform: func(ar *arborist.Arborist, n jsast.Node) {
		id := n.(*jsast.Identifier)
		lit, ok := literalInit(id.DeclNode)
		if !ok {
			return
		}
		ar.MarkReplace(n, jsast.Clone(lit))
	},
}

func literalInit(declID *jsast.Identifier) (*jsast.Literal, bool) {
	decl, ok := declID.Meta().Parent.(*jsast.VariableDeclarator)
	if !ok {
		return nil, false
	}
	lit, ok := decl.Init.(*jsast.Literal)
	return lit, ok
}

// referencesModified reports whether declID is ever the target of an
// AssignmentExpression or UpdateExpression anywhere among its references.
func referencesModified(declID *jsast.Identifier) bool {
	for _, ref := range declID.References {
		switch p := ref.Meta().Parent.(type) {
		case *jsast.AssignmentExpression:
			if p.Target == ref {
				return true
			}
		case *jsast.UpdateExpression:
			if p.Argument == ref {
				return true
			}
		}
	}
	return false
}

// ProxyVariables resolves `const b = a;` where a is a plain identifier and
// neither a nor b is ever written: uses of b are replaced with a (or the
// declaration is removed outright if b has no uses). Circular proxies are
// rejected by requiring a's own declaration not be the proxy itself.
var ProxyVariables = rules.Rule{
	Name:   "proxy-variables",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindVariableDeclarator) {
			d := n.(*jsast.VariableDeclarator)
			if !isSimpleProxy(d) {
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
		target := d.Init.(*jsast.Identifier)
		for _, ref := range append([]*jsast.Identifier(nil), d.ID.References...) {
			ar.MarkReplace(ref, jsast.NewIdentifier(target.Name))
		}
		if len(d.ID.References) == 0 {
			ar.MarkDelete(d)
		}
	},
}

func isSimpleProxy(d *jsast.VariableDeclarator) bool {
	if d.ID == nil || d.Init == nil {
		return false
	}
	target, ok := d.Init.(*jsast.Identifier)
	if !ok {
		return false
	}
	decl, ok := d.Meta().Parent.(*jsast.VariableDeclaration)
	if !ok || decl.DeclKind != "const" {
		return false
	}
	if insideLoopHead(d) {
		return false
	}
	if referencesModified(d.ID) {
		return false
	}
	if target.DeclNode != nil && target.DeclNode == d.ID {
		return false // circular proxy: target resolves back to this declarator
	}
	if target.DeclNode != nil && referencesModified(target.DeclNode) {
		return false
	}
	return true
}

// insideLoopHead reports whether declarator d's enclosing VariableDeclaration
// occupies a loop head position: the Init clause of a ForStatement, or the
// Left clause of a ForIn/ForOfStatement.
func insideLoopHead(d *jsast.VariableDeclarator) bool {
	declStmt, ok := d.Meta().Parent.(*jsast.VariableDeclaration)
	if !ok {
		return false
	}
	switch declStmt.Meta().ParentKey.Field {
	case "Init", "Left":
		return true
	}
	return false
}

// DeadCodeRemoval deletes declarations at non-root (nested) scope that are
// never referenced: VariableDeclarator, FunctionDeclaration, and
// ClassDeclaration bindings with zero References. Top-level declarations are
// left alone since they may be exported implicitly.
var DeadCodeRemoval = rules.Rule{
	Name:   "dead-code-removal",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		add := func(n jsast.Node, id *jsast.Identifier) {
			if id == nil || len(id.References) != 0 {
				return
			}
			if id.Scope != nil && id.Scope.Kind == jsast.ScopeProgram {
				return
			}
			if filter != nil && !filter(n) {
				return
			}
			out = append(out, n)
		}
		for _, n := range idx.TypeIndex.Of(jsast.KindVariableDeclarator) {
			d := n.(*jsast.VariableDeclarator)
			add(n, d.ID)
		}
		for _, n := range idx.TypeIndex.Of(jsast.KindFunctionDeclaration) {
			f := n.(*jsast.FunctionDeclaration)
			add(n, f.ID)
		}
		for _, n := range idx.TypeIndex.Of(jsast.KindClassDeclaration) {
			c := n.(*jsast.ClassDeclaration)
			add(n, c.ID)
		}
		return out
	},
	Transform: func(ar *arborist.Arborist, n jsast.Node) {
		// A declarator that is its declaration's only one takes the whole
		// declaration with it, so no empty `var ;` is left behind.
		if d, ok := n.(*jsast.VariableDeclarator); ok && !insideLoopHead(d) {
			if decl, ok := d.Meta().Parent.(*jsast.VariableDeclaration); ok && len(decl.Declarations) == 1 {
				ar.MarkDelete(decl)
				return
			}
		}
		ar.MarkDelete(n)
	},
}

// FixedValueAfterDeclare resolves `let x; x = 5;` (or `var`): x is declared
// without an initializer, written exactly once via a plain `=`
// AssignmentExpression to a Literal, never written any other way, and every
// read occurs textually after that assignment. Each read is replaced with a
// clone of the Literal, mirroring ConstantPropagation's coverage of
// declare-with-initializer.
var FixedValueAfterDeclare = rules.Rule{
	Name:   "fixed-value-after-declare",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindIdentifier) {
			id := n.(*jsast.Identifier)
			if id.IsDeclaration() {
				continue
			}
			decl := id.DeclNode
			if decl == nil {
				continue
			}
			_, assignRef, ok := fixedValueAfterDeclare(decl)
			if !ok || id == assignRef {
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
		id := n.(*jsast.Identifier)
		lit, _, ok := fixedValueAfterDeclare(id.DeclNode)
		if !ok {
			return
		}
		ar.MarkReplace(n, jsast.Clone(lit))
	},
}

// fixedValueAfterDeclare reports the Literal a declare-then-assign pattern
// commits to, and the one reference that performs that assignment: declID's
// VariableDeclarator has no initializer, sits outside a loop head, is
// written exactly once by a plain `=` assignment to a Literal, is never
// updated any other way, and every other reference to it sits textually
// after that assignment.
func fixedValueAfterDeclare(declID *jsast.Identifier) (*jsast.Literal, *jsast.Identifier, bool) {
	decl, ok := declID.Meta().Parent.(*jsast.VariableDeclarator)
	if !ok || decl.Init != nil {
		return nil, nil, false
	}
	if insideLoopHead(decl) {
		return nil, nil, false
	}
	var assignRef *jsast.Identifier
	var lit *jsast.Literal
	for _, ref := range declID.References {
		assign, ok := ref.Meta().Parent.(*jsast.AssignmentExpression)
		if !ok || assign.Target != ref {
			continue
		}
		if assign.Operator != "=" || assignRef != nil {
			return nil, nil, false
		}
		l, ok := assign.Value.(*jsast.Literal)
		if !ok {
			return nil, nil, false
		}
		assignRef, lit = ref, l
	}
	if assignRef == nil {
		return nil, nil, false
	}
	for _, ref := range declID.References {
		if ref == assignRef {
			continue
		}
		if _, ok := ref.Meta().Parent.(*jsast.UpdateExpression); ok {
			return nil, nil, false
		}
		if ref.Meta().Range.Start < assignRef.Meta().Range.Start {
			return nil, nil, false // read occurs before the fixed assignment
		}
	}
	return lit, assignRef, true
}

// ProxyMemberChains resolves `const b = a.x.y;` where the initializer is a
// chain of non-computed MemberExpressions: uses of b are replaced with a
// clone of the chain and b's declarator is removed in the same pass.
// Mirrors ProxyVariables for member chains instead of bare
// identifiers.
var ProxyMemberChains = rules.Rule{
	Name:   "proxy-member-chains",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindVariableDeclarator) {
			d := n.(*jsast.VariableDeclarator)
			if !isMemberChainProxy(d) {
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
		if !isMemberChainProxy(d) {
			return
		}
		for _, ref := range append([]*jsast.Identifier(nil), d.ID.References...) {
			ar.MarkReplace(ref, jsast.Clone(d.Init))
		}
		if len(d.ID.References) == 0 {
			ar.MarkDelete(d)
		}
	},
}

func isMemberChainProxy(d *jsast.VariableDeclarator) bool {
	if d.ID == nil || d.Init == nil {
		return false
	}
	if _, ok := d.Init.(*jsast.MemberExpression); !ok {
		return false
	}
	decl, ok := d.Meta().Parent.(*jsast.VariableDeclaration)
	if !ok || decl.DeclKind != "const" {
		return false
	}
	if insideLoopHead(d) {
		return false
	}
	if referencesModified(d.ID) {
		return false
	}
	root := chainRootIdentifier(d.Init)
	if root == nil {
		return false
	}
	if root.DeclNode != nil && referencesModified(root.DeclNode) {
		return false
	}
	return true
}

// chainRootIdentifier walks a chain of non-computed MemberExpressions down
// to its root Identifier, or reports nil if the chain contains a computed
// index or any other node shape.
func chainRootIdentifier(n jsast.Node) *jsast.Identifier {
	switch v := n.(type) {
	case *jsast.Identifier:
		return v
	case *jsast.MemberExpression:
		if v.Computed {
			return nil
		}
		return chainRootIdentifier(v.Object)
	}
	return nil
}

// isWriteTarget reports whether m is itself the Target of an
// AssignmentExpression — a write, never a resolution candidate.
func isWriteTarget(m *jsast.MemberExpression) bool {
	assign, ok := m.Meta().Parent.(*jsast.AssignmentExpression)
	return ok && assign.Target == m
}

// memberPropertyName reports the static property name of a non-computed
// MemberExpression's Property identifier.
func memberPropertyName(m *jsast.MemberExpression) (string, bool) {
	id, ok := m.Property.(*jsast.Identifier)
	if !ok {
		return "", false
	}
	return id.Name, true
}

// DirectAssignmentPropertyResolution resolves `obj.prop` reads back to a
// Literal when obj is a local variable never reassigned and `obj.prop =
// <Literal>;` is that property's only write, appearing textually before
// the read.
var DirectAssignmentPropertyResolution = rules.Rule{
	Name:   "direct-assignment-property-resolution",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindMemberExpression) {
			m := n.(*jsast.MemberExpression)
			if isWriteTarget(m) {
				continue
			}
			if _, ok := soleObjectPropertyWrite(m); !ok {
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
		m := n.(*jsast.MemberExpression)
		lit, ok := soleObjectPropertyWrite(m)
		if !ok {
			return
		}
		ar.MarkReplace(n, jsast.Clone(lit))
	},
}

// soleObjectPropertyWrite reports the Literal value of m's property when obj
// is a local variable never reassigned, the property has exactly one plain
// `=` write anywhere among obj's references, that write's value is a
// Literal, and m's read occurs textually after it.
func soleObjectPropertyWrite(m *jsast.MemberExpression) (*jsast.Literal, bool) {
	if m.Computed {
		return nil, false
	}
	prop, ok := memberPropertyName(m)
	if !ok {
		return nil, false
	}
	obj, ok := m.Object.(*jsast.Identifier)
	if !ok || obj.DeclNode == nil {
		return nil, false
	}
	if referencesModified(obj.DeclNode) {
		return nil, false // obj itself is reassigned: property tracking unsafe
	}
	var lit *jsast.Literal
	var writeStart int
	found := false
	for _, ref := range obj.DeclNode.References {
		parentMember, ok := ref.Meta().Parent.(*jsast.MemberExpression)
		if !ok || parentMember.Object != ref || parentMember.Computed {
			continue
		}
		name, ok := memberPropertyName(parentMember)
		if !ok || name != prop {
			continue
		}
		if !isWriteTarget(parentMember) {
			continue
		}
		assign := parentMember.Meta().Parent.(*jsast.AssignmentExpression)
		if assign.Operator != "=" {
			return nil, false
		}
		l, ok := assign.Value.(*jsast.Literal)
		if !ok {
			return nil, false
		}
		if found {
			return nil, false // more than one write to this property
		}
		lit, writeStart, found = l, parentMember.Meta().Range.Start, true
	}
	if !found || m.Meta().Range.Start < writeStart {
		return nil, false
	}
	return lit, true
}

// arrayMutated reports whether declID is ever the object of an index-write
// (`arr[i] = x`) or a call to a mutating Array.prototype method.
func arrayMutated(declID *jsast.Identifier) bool {
	for _, ref := range declID.References {
		m, ok := ref.Meta().Parent.(*jsast.MemberExpression)
		if !ok || m.Object != ref {
			continue
		}
		if isWriteTarget(m) {
			return true
		}
		if call, ok := m.Meta().Parent.(*jsast.CallExpression); ok && call.Callee == m {
			if name, ok := memberPropertyName(m); ok {
				switch name {
				case "push", "pop", "shift", "unshift", "splice", "sort", "reverse", "fill":
					return true
				}
			}
		}
	}
	return false
}

// ArrayIndexResolution resolves `arr[i]` to a clone of the element at index
// i when arr is a never-reassigned, never-mutated local declared `= [lit,
// lit, ...]` (every element a Literal, no holes) and i is itself an integer
// Literal within bounds.
var ArrayIndexResolution = rules.Rule{
	Name:   "array-index-resolution",
	Safety: rules.Safe,
	Match: func(prog *jsast.Program, idx *jsast.Indices, filter rules.Filter) []jsast.Node {
		var out []jsast.Node
		for _, n := range idx.TypeIndex.Of(jsast.KindMemberExpression) {
			m := n.(*jsast.MemberExpression)
			if isWriteTarget(m) {
				continue
			}
			if _, ok := arrayIndexElement(m); !ok {
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
		m := n.(*jsast.MemberExpression)
		el, ok := arrayIndexElement(m)
		if !ok {
			return
		}
		ar.MarkReplace(n, jsast.Clone(el))
	},
}

// arrayIndexElement implements ArrayIndexResolution's match condition.
func arrayIndexElement(m *jsast.MemberExpression) (jsast.Node, bool) {
	if !m.Computed {
		return nil, false
	}
	obj, ok := m.Object.(*jsast.Identifier)
	if !ok || obj.DeclNode == nil {
		return nil, false
	}
	if referencesModified(obj.DeclNode) || arrayMutated(obj.DeclNode) {
		return nil, false
	}
	decl, ok := obj.DeclNode.Meta().Parent.(*jsast.VariableDeclarator)
	if !ok {
		return nil, false
	}
	arr, ok := decl.Init.(*jsast.ArrayExpression)
	if !ok {
		return nil, false
	}
	for _, el := range arr.Elements {
		if el == nil {
			return nil, false // hole
		}
		if _, ok := el.(*jsast.Literal); !ok {
			return nil, false
		}
	}
	idxNum, ok := jsast.LiteralNumber(m.Property)
	if !ok || idxNum != float64(int(idxNum)) || idxNum < 0 {
		return nil, false
	}
	i := int(idxNum)
	if i >= len(arr.Elements) {
		return nil, false
	}
	return arr.Elements[i], true
}
