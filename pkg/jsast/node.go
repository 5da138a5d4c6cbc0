// Package jsast defines the annotated AST model the engine rewrites.
//
// The tree is owned exclusively by the Arborist (see package arborist); code
// outside that package must treat every Node as read-only. Node identity is
// used for equality throughout the engine (two structurally identical nodes
// with different NodeID are different nodes), matching the "identity, not
// structural" equality rule the rewrite engine relies on.
package jsast

// Kind tags the concrete type of a Node, mirroring the JS AST node kinds the
// engine understands. It exists mainly for fast dispatch in the type index;
// most code type-switches on the concrete Go type instead.
type Kind string

const (
	KindProgram                  Kind = "Program"
	KindLiteral                  Kind = "Literal"
	KindIdentifier               Kind = "Identifier"
	KindMemberExpression         Kind = "MemberExpression"
	KindCallExpression           Kind = "CallExpression"
	KindNewExpression             Kind = "NewExpression"
	KindFunctionDeclaration      Kind = "FunctionDeclaration"
	KindFunctionExpression       Kind = "FunctionExpression"
	KindArrowFunctionExpression  Kind = "ArrowFunctionExpression"
	KindVariableDeclaration      Kind = "VariableDeclaration"
	KindVariableDeclarator       Kind = "VariableDeclarator"
	KindAssignmentExpression     Kind = "AssignmentExpression"
	KindBinaryExpression         Kind = "BinaryExpression"
	KindLogicalExpression        Kind = "LogicalExpression"
	KindUnaryExpression          Kind = "UnaryExpression"
	KindUpdateExpression         Kind = "UpdateExpression"
	KindConditionalExpression    Kind = "ConditionalExpression"
	KindSequenceExpression       Kind = "SequenceExpression"
	KindTemplateLiteral          Kind = "TemplateLiteral"
	KindBlockStatement           Kind = "BlockStatement"
	KindExpressionStatement      Kind = "ExpressionStatement"
	KindIfStatement              Kind = "IfStatement"
	KindForStatement             Kind = "ForStatement"
	KindForInStatement           Kind = "ForInStatement"
	KindForOfStatement           Kind = "ForOfStatement"
	KindWhileStatement           Kind = "WhileStatement"
	KindDoWhileStatement         Kind = "DoWhileStatement"
	KindSwitchStatement          Kind = "SwitchStatement"
	KindSwitchCase               Kind = "SwitchCase"
	KindReturnStatement          Kind = "ReturnStatement"
	KindBreakStatement           Kind = "BreakStatement"
	KindEmptyStatement           Kind = "EmptyStatement"
	KindArrayExpression          Kind = "ArrayExpression"
	KindObjectExpression         Kind = "ObjectExpression"
	KindProperty                 Kind = "Property"
	KindMethodDefinition         Kind = "MethodDefinition"
	KindClassDeclaration         Kind = "ClassDeclaration"
	KindThisExpression           Kind = "ThisExpression"
	// KindBadValue is the sentinel kind for package sandbox's BAD_VALUE.
	KindBadValue Kind = "BadValue"
)

// Range is a half-open [Start, End) character offset pair into the original
// source, as in spec: siblings inside an array-valued parent field must be
// pairwise disjoint, and every node's Range must be contained by its parent's.
type Range struct {
	Start int
	End   int
}

// Contains reports whether r fully contains other.
func (r Range) Contains(other Range) bool {
	return r.Start <= other.Start && other.End <= r.End
}

// Overlaps reports whether r and other share any offset.
func (r Range) Overlaps(other Range) bool {
	return r.Start < other.End && other.Start < r.End
}

// ParentKey names the field of Parent that refers to this node. For
// array-valued fields (e.g. CallExpression.Arguments), Index is the position
// in that array; for scalar fields Index is -1.
type ParentKey struct {
	Field string
	Index int
}

// Meta holds the metadata every Node carries, shared across all kinds.
type Meta struct {
	NodeID    int
	Range     Range
	Src       string
	Parent    Node
	ParentKey ParentKey
	Scope     *Scope
	Lineage   []Node
}

func (m *Meta) meta() *Meta { return m }

// Node is implemented by every concrete AST node type. Meta returns the
// shared metadata block so generic code (indexing, the Arborist, rules) can
// operate without a type switch on every kind.
type Node interface {
	Kind() Kind
	Meta() *Meta
}

// baseNode is embedded by every concrete node type to satisfy Meta() once.
type baseNode struct {
	Meta
}

func (b *baseNode) Meta() *Meta { return &b.Meta }

// Clone produces a structural copy of n with a zero NodeID and ParentKey and
// nil Parent/Scope/Lineage — the Arborist assigns those at commit time.
// Rules must use Clone (never reuse the same Node value) whenever the same
// source construct is inserted in more than one place, per the "cloning"
// shared rule invariant.
func Clone(n Node) Node {
	if n == nil {
		return nil
	}
	c := cloneShallow(n)
	return c
}
