package jsast

// The New* helpers build detached nodes (no Parent/Scope/NodeID yet) for
// rules to hand to the Arborist as replacements. Commit populates the rest
// of the metadata.

// NewStringLiteral builds a string Literal node.
func NewStringLiteral(s string) *Literal {
	return &Literal{LitKind: LitString, Value: s}
}

// NewNumberLiteral builds a numeric Literal node.
func NewNumberLiteral(v float64) *Literal {
	return &Literal{LitKind: LitNumber, Value: v}
}

// NewBoolLiteral builds a boolean Literal node.
func NewBoolLiteral(b bool) *Literal {
	return &Literal{LitKind: LitBool, Value: b}
}

// NewNullLiteral builds the `null` Literal node.
func NewNullLiteral() *Literal {
	return &Literal{LitKind: LitNull, Value: nil}
}

// NewUndefinedLiteral builds the `undefined` Literal node.
func NewUndefinedLiteral() *Literal {
	return &Literal{LitKind: LitUndefined, Value: nil}
}

// NewIdentifier builds a free (unresolved) Identifier reference.
func NewIdentifier(name string) *Identifier {
	return &Identifier{Name: name}
}

// AsLiteral type-asserts n to *Literal, returning (nil, false) otherwise.
func AsLiteral(n Node) (*Literal, bool) {
	l, ok := n.(*Literal)
	return l, ok
}

// LiteralString returns the Go string held by a string Literal.
func LiteralString(n Node) (string, bool) {
	l, ok := AsLiteral(n)
	if !ok || l.LitKind != LitString {
		return "", false
	}
	s, ok := l.Value.(string)
	return s, ok
}

// LiteralNumber returns the Go float64 held by a numeric Literal.
func LiteralNumber(n Node) (float64, bool) {
	l, ok := AsLiteral(n)
	if !ok || l.LitKind != LitNumber {
		return 0, false
	}
	f, ok := l.Value.(float64)
	return f, ok
}

// LiteralBool returns the Go bool held by a boolean Literal.
func LiteralBool(n Node) (bool, bool) {
	l, ok := AsLiteral(n)
	if !ok || l.LitKind != LitBool {
		return false, false
	}
	b, ok := l.Value.(bool)
	return b, ok
}

// IsLiteralOfKind reports whether n is a Literal of the given LiteralKind.
func IsLiteralOfKind(n Node, k LiteralKind) bool {
	l, ok := AsLiteral(n)
	return ok && l.LitKind == k
}

// Truthiness reports JS truthiness for values the engine can prove
// deterministically: literals by their value, while arrays, objects,
// functions, and regex literals are always truthy per spec's "Resolve
// redundant logical ops" description (only their identity matters, not
// contents); everything else
// reports ok=false so callers fall back to leaving the expression alone.
func Truthiness(n Node) (truthy bool, ok bool) {
	switch v := n.(type) {
	case *Literal:
		switch v.LitKind {
		case LitString:
			s, _ := v.Value.(string)
			return s != "", true
		case LitNumber:
			f, _ := v.Value.(float64)
			return f != 0 && !isNaN(f), true
		case LitBool:
			b, _ := v.Value.(bool)
			return b, true
		case LitNull, LitUndefined:
			return false, true
		case LitRegex:
			return true, true
		}
	case *ArrayExpression, *ObjectExpression, *FunctionExpression, *FunctionDeclaration, *ArrowFunctionExpression:
		return true, true
	}
	return false, false
}

func isNaN(f float64) bool { return f != f }
