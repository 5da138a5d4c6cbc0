// Package arborist stages AST edits proposed by rules and applies them in
// one bottom-up pass, so that no rule ever observes another rule's
// half-applied edit within the same iteration.
package arborist

import (
	"sort"

	"github.com/ctrl-escp/restringer-go/pkg/jsast"
)

type editKind int

const (
	editReplace editKind = iota
	editDelete
	editReplaceMany
)

type edit struct {
	parent       jsast.Node
	key          jsast.ParentKey
	kind         editKind
	replacement  jsast.Node
	replacements []jsast.Node
}

// Arborist owns one Program tree and a buffer of staged edits against it.
// Rules call MarkReplace/MarkDelete against nodes from the tree returned by
// Program/Indices; nothing is mutated until Commit runs.
type Arborist struct {
	prog    *jsast.Program
	indices *jsast.Indices
	pending map[jsast.Node]*edit
}

// New builds an Arborist over prog and runs the first indexing pass.
func New(prog *jsast.Program) *Arborist {
	a := &Arborist{prog: prog, pending: make(map[jsast.Node]*edit)}
	a.indices = jsast.BuildIndices(prog, 1)
	return a
}

// Program returns the tree as of the last Commit (or construction).
func (a *Arborist) Program() *jsast.Program { return a.prog }

// Indices returns the metadata computed by the last Commit (or construction).
func (a *Arborist) Indices() *jsast.Indices { return a.indices }

// MarkReplace stages target for replacement by replacement. A second mark
// against the same target before Commit overwrites the first — last marked
// wins.
func (a *Arborist) MarkReplace(target, replacement jsast.Node) {
	m := target.Meta()
	if m.Parent == nil {
		panic("arborist: cannot replace the Program root")
	}
	a.pending[target] = &edit{parent: m.Parent, key: m.ParentKey, kind: editReplace, replacement: replacement}
}

// MarkDelete stages target for removal.
func (a *Arborist) MarkDelete(target jsast.Node) {
	m := target.Meta()
	if m.Parent == nil {
		panic("arborist: cannot delete the Program root")
	}
	a.pending[target] = &edit{parent: m.Parent, key: m.ParentKey, kind: editDelete}
}

// MarkReplaceMany stages target — which must sit in an array-valued field
// (e.g. a statement list) — for replacement by the given sequence of nodes,
// splicing them into target's slot. Used to flatten a nested block into its
// parent's statement list or split a chained declaration into siblings.
func (a *Arborist) MarkReplaceMany(target jsast.Node, replacements []jsast.Node) {
	m := target.Meta()
	if m.Parent == nil {
		panic("arborist: cannot replace the Program root")
	}
	if m.ParentKey.Index < 0 {
		panic("arborist: MarkReplaceMany requires target to be in an array-valued field")
	}
	a.pending[target] = &edit{parent: m.Parent, key: m.ParentKey, kind: editReplaceMany, replacements: replacements}
}

// Pending reports whether any edit is staged.
func (a *Arborist) Pending() bool { return len(a.pending) > 0 }

// Discard drops every staged edit without applying it.
func (a *Arborist) Discard() { a.pending = make(map[jsast.Node]*edit) }

type arrayGroupKey struct {
	parent jsast.Node
	field  string
}

// Commit applies every staged edit and re-runs BuildIndices, producing a
// fresh, fully-consistent tree. Plain replacements are applied first since
// overwriting a slot in place never shifts a sibling's index. Deletions and
// many-for-one splices, which do shift later siblings, are grouped per
// (parent, field) and applied from the highest index down so that resolving
// one edit never invalidates another pending index in the same array. The
// pending buffer is cleared whether or not there was anything to apply.
func (a *Arborist) Commit() {
	defer func() { a.pending = make(map[jsast.Node]*edit) }()
	if len(a.pending) == 0 {
		return
	}

	type shiftingEdit struct {
		index int
		e     *edit
	}
	shifting := make(map[arrayGroupKey][]shiftingEdit)
	for _, e := range a.pending {
		switch e.kind {
		case editReplace:
			jsast.ReplaceChild(e.parent, e.key, e.replacement)
		case editDelete, editReplaceMany:
			if e.key.Index < 0 {
				jsast.DeleteChild(e.parent, e.key)
				continue
			}
			gk := arrayGroupKey{parent: e.parent, field: e.key.Field}
			shifting[gk] = append(shifting[gk], shiftingEdit{index: e.key.Index, e: e})
		}
	}
	for gk, edits := range shifting {
		sort.Slice(edits, func(i, j int) bool { return edits[i].index > edits[j].index })
		for _, se := range edits {
			key := jsast.ParentKey{Field: gk.field, Index: se.index}
			switch se.e.kind {
			case editDelete:
				jsast.DeleteChild(gk.parent, key)
			case editReplaceMany:
				jsast.ReplaceChildWithMany(gk.parent, key, se.e.replacements)
			}
		}
	}

	a.indices = jsast.BuildIndices(a.prog, 1)
}
