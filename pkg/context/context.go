// Package context implements the engine's context extractor: given a
// declaration node, gather the minimal set of top-level statements needed to
// evaluate an expression that references it.
package context

import "github.com/ctrl-escp/restringer-go/pkg/jsast"

// DeclarationWithContext implements spec §4.D's algorithm. It returns the
// enclosing top-level statement for node and everything node transitively
// depends on, in original source order, so the result can be handed to the
// sandbox as one self-contained preparation script. With
// includeCallSiblings false, the statement holding node and node's other
// ancestors are left out of the result, which may then be empty.
func DeclarationWithContext(node jsast.Node, includeCallSiblings bool) []jsast.Node {
	origin := topLevelStatementOf(node)
	if origin == nil {
		return nil
	}

	excluded := make(map[jsast.Node]bool)
	if !includeCallSiblings {
		for _, anc := range node.Meta().Lineage {
			excluded[anc] = true
		}
		excluded[node] = true
	}

	set := map[jsast.Node]bool{origin: true}
	order := []jsast.Node{origin}

	changed := true
	for changed {
		changed = false

		// Close under identifiers referenced by anything already in the set
		// that declare elsewhere.
		for _, stmt := range append([]jsast.Node(nil), order...) {
			for _, id := range identifiersIn(stmt) {
				decl := id.DeclNode
				if decl == nil || decl == id {
					continue
				}
				declStmt := topLevelStatementOf(decl)
				if declStmt == nil || excluded[declStmt] || set[declStmt] {
					continue
				}
				set[declStmt] = true
				order = append(order, declStmt)
				changed = true
			}
		}

		// Close under assignments elsewhere that mutate an identifier already
		// in the set.
		for name := range declaredNames(order) {
			for _, assign := range assignmentsTo(topProgramOf(origin), name) {
				declStmt := topLevelStatementOf(assign)
				if declStmt == nil || excluded[declStmt] || set[declStmt] {
					continue
				}
				set[declStmt] = true
				order = append(order, declStmt)
				changed = true
			}
		}
	}

	// The origin seeds the closure above but is emitted only if not excluded.
	result := order[:0]
	for _, stmt := range order {
		if !excluded[stmt] {
			result = append(result, stmt)
		}
	}
	sortBySourceOrder(result)
	return result
}

// topLevelStatementOf walks node's Lineage to find the Program-level
// statement that contains it (or node itself, if it is already top-level).
func topLevelStatementOf(node jsast.Node) jsast.Node {
	if node == nil {
		return nil
	}
	if _, isProgram := node.Meta().Parent.(*jsast.Program); isProgram {
		return node
	}
	lineage := node.Meta().Lineage
	for i := len(lineage) - 1; i >= 0; i-- {
		if _, isProgram := lineage[i].Meta().Parent.(*jsast.Program); isProgram {
			return lineage[i]
		}
	}
	if len(lineage) > 0 {
		return lineage[0]
	}
	return node
}

func topProgramOf(node jsast.Node) *jsast.Program {
	if p, ok := node.(*jsast.Program); ok {
		return p
	}
	if node.Meta().Parent == nil {
		return nil
	}
	lineage := node.Meta().Lineage
	if len(lineage) > 0 {
		if p, ok := lineage[0].(*jsast.Program); ok {
			return p
		}
	}
	return nil
}

func identifiersIn(root jsast.Node) []*jsast.Identifier {
	var out []*jsast.Identifier
	var walk func(n jsast.Node)
	walk = func(n jsast.Node) {
		if n == nil {
			return
		}
		if id, ok := n.(*jsast.Identifier); ok {
			out = append(out, id)
		}
		for _, c := range jsast.Children(n) {
			walk(c)
		}
	}
	walk(root)
	return out
}

func declaredNames(stmts []jsast.Node) map[string]bool {
	names := make(map[string]bool)
	for _, stmt := range stmts {
		for _, id := range identifiersIn(stmt) {
			if id.IsDeclaration() {
				names[id.Name] = true
			}
		}
	}
	return names
}

// assignmentsTo finds every AssignmentExpression anywhere in prog whose
// target is a plain Identifier named name.
func assignmentsTo(prog *jsast.Program, name string) []jsast.Node {
	if prog == nil {
		return nil
	}
	var out []jsast.Node
	var walk func(n jsast.Node)
	walk = func(n jsast.Node) {
		if n == nil {
			return
		}
		if assign, ok := n.(*jsast.AssignmentExpression); ok {
			if id, ok := assign.Target.(*jsast.Identifier); ok && id.Name == name {
				out = append(out, assign)
			}
		}
		for _, c := range jsast.Children(n) {
			walk(c)
		}
	}
	walk(prog)
	return out
}

// sortBySourceOrder orders nodes by NodeID, which BuildIndices assigns in
// preorder, so it holds for parsed and hand-built trees alike.
func sortBySourceOrder(nodes []jsast.Node) {
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && nodes[j].Meta().NodeID < nodes[j-1].Meta().NodeID; j-- {
			nodes[j], nodes[j-1] = nodes[j-1], nodes[j]
		}
	}
}
