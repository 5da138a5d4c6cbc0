package jsast

// TypeIndex buckets nodes by Kind in source order ("typeMap" in spec
// terminology), letting rules iterate candidates in O(matches) instead of
// walking the whole tree per rule.
type TypeIndex struct {
	buckets map[Kind][]Node
}

// Of returns the nodes of the given kind, in source order. Never nil.
func (t *TypeIndex) Of(k Kind) []Node {
	if b := t.buckets[k]; b != nil {
		return b
	}
	return []Node{}
}

// Indices bundles everything BuildIndices computes for one committed tree.
type Indices struct {
	Program   *Program
	TypeIndex *TypeIndex
	NextID    int
}

// BuildIndices re-derives every piece of per-node metadata from scratch:
// NodeID assignment, Parent/ParentKey back-links, the scope tree, Lineage,
// the type index, and the Identifier declaration/reference graph. The
// Arborist calls this once per commit; nothing else should need to.
func BuildIndices(prog *Program, startID int) *Indices {
	idx := &Indices{Program: prog, TypeIndex: &TypeIndex{buckets: make(map[Kind][]Node)}}
	nextID := startID

	var lineage []Node
	programScope := NewScope(ScopeProgram, nil, prog)

	var visit func(n Node, parent Node, key ParentKey, scope *Scope)
	visit = func(n Node, parent Node, key ParentKey, scope *Scope) {
		if n == nil {
			return
		}
		m := n.Meta()
		m.NodeID = nextID
		nextID++
		m.Parent = parent
		m.ParentKey = key
		m.Scope = scope
		m.Lineage = append([]Node(nil), lineage...)

		idx.TypeIndex.buckets[n.Kind()] = append(idx.TypeIndex.buckets[n.Kind()], n)

		childScope := scope
		switch v := n.(type) {
		case *Program:
			childScope = programScope
		case *FunctionDeclaration:
			childScope = NewScope(ScopeFunction, scope, n)
			if v.ID != nil {
				scope.Declare(v.ID.Name, v.ID) // function name visible in enclosing scope
			}
			declareParams(childScope, v.Params)
		case *FunctionExpression:
			childScope = NewScope(ScopeFunction, scope, n)
			if v.ID != nil {
				childScope.Declare(v.ID.Name, v.ID) // named function expr sees its own name
			}
			declareParams(childScope, v.Params)
		case *ArrowFunctionExpression:
			childScope = NewScope(ScopeFunction, scope, n)
			declareParams(childScope, v.Params)
		case *BlockStatement:
			childScope = NewScope(ScopeBlock, scope, n)
		case *ForStatement, *ForInStatement, *ForOfStatement:
			childScope = NewScope(ScopeBlock, scope, n)
		}

		lineage = append(lineage, n)
		for _, ref := range childRefs(n) {
			visit(ref.Node, n, ParentKey{Field: ref.Field, Index: ref.Index}, childScope)
		}
		lineage = lineage[:len(lineage)-1]

		// Declare var/let/const/class names into the scope that should see
		// them: `var` hoists to the nearest function/program scope, `let`/
		// `const`/class bindings live in the nearest block scope — both
		// already captured correctly by `scope` at statement-processing time
		// because BlockStatement/Function* push a new scope before recursing.
		switch v := n.(type) {
		case *VariableDeclarator:
			if v.ID != nil {
				declScope := scope
				if dd, ok := parent.(*VariableDeclaration); ok && dd.DeclKind == "var" {
					declScope = nearestFunctionOrProgramScope(scope)
				}
				declScope.Declare(v.ID.Name, v.ID)
			}
		case *ClassDeclaration:
			if v.ID != nil {
				scope.Declare(v.ID.Name, v.ID)
			}
		}
	}

	visit(prog, nil, ParentKey{Index: -1}, programScope)
	idx.NextID = nextID

	resolveReferences(idx.TypeIndex)
	return idx
}

func declareParams(scope *Scope, params []Param) {
	for _, p := range params {
		if p.Name != nil {
			scope.Declare(p.Name.Name, p.Name)
		}
	}
}

func nearestFunctionOrProgramScope(s *Scope) *Scope {
	for cur := s; cur != nil; cur = cur.Parent {
		if cur.Kind == ScopeFunction || cur.Kind == ScopeProgram {
			return cur
		}
	}
	return s
}

// resolveReferences walks every Identifier node and wires DeclNode/References
// per the reference-graph invariants in spec §3: every non-declaration
// Identifier either resolves to a unique enclosing declaration or is a
// free/global name (DeclNode == nil).
func resolveReferences(ti *TypeIndex) {
	idents := ti.buckets[KindIdentifier]
	for _, n := range idents {
		id := n.(*Identifier)
		id.References = nil
	}
	for _, n := range idents {
		id := n.(*Identifier)
		if IsPropertyKeyIdentifier(id) {
			// A non-computed property/method key is not a variable reference
			// at all; it must never resolve against an unrelated binding of
			// the same name in scope.
			id.DeclNode = nil
			continue
		}
		if isBindingPosition(id) {
			id.DeclNode = id // the declaration is its own DeclNode
			continue
		}
		if id.Scope == nil {
			id.DeclNode = nil
			continue
		}
		decl := id.Scope.Lookup(id.Name)
		id.DeclNode = decl
		if decl != nil {
			decl.References = append(decl.References, id)
		}
	}
}

// isBindingPosition reports whether id occupies a declaration slot: a
// VariableDeclarator.ID, FunctionDeclaration/FunctionExpression.ID, a
// parameter name, or a ClassDeclaration.ID. These are identified by
// ParentKey rather than by re-deriving scope membership.
func isBindingPosition(id *Identifier) bool {
	switch id.ParentKey.Field {
	case "ID", "ParamNames":
		return true
	}
	return false
}

// IsPropertyKeyIdentifier reports whether id is a non-computed object/class
// property or member-access key — a position where the name is a string
// label, not a variable reference, and so must never be resolved against
// scope. Constant propagation and similar variable-flow rules must skip
// these (spec: "Exclude identifiers that appear as an ObjectExpression
// property key").
func IsPropertyKeyIdentifier(id *Identifier) bool {
	parent := id.Meta().Parent
	switch p := parent.(type) {
	case *Property:
		return id.ParentKey.Field == "Key" && !p.Computed
	case *MethodDefinition:
		return id.ParentKey.Field == "Key" && !p.Computed
	case *MemberExpression:
		return id.ParentKey.Field == "Property" && !p.Computed
	}
	return false
}
