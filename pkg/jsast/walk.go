package jsast

// ChildRef names one structural child slot: Field is the struct field name
// (mirrors ParentKey.Field), Index is the position within an array-valued
// field or -1 for a scalar field.
type ChildRef struct {
	Field string
	Index int
	Node  Node
}

// childRefs enumerates n's immediate structural children in source order
// together with the field/index that reaches them from n. This is the single
// place that knows every kind's shape; indexing, the Arborist, and generic
// traversal all build on it instead of re-deriving it.
func childRefs(n Node) []ChildRef {
	var out []ChildRef
	scalar := func(field string, c Node) {
		if c != nil {
			out = append(out, ChildRef{Field: field, Index: -1, Node: c})
		}
	}
	array := func(field string, cs []Node) {
		for i, c := range cs {
			if c != nil {
				out = append(out, ChildRef{Field: field, Index: i, Node: c})
			}
		}
	}
	switch v := n.(type) {
	case *Program:
		array("Body", v.Body)
	case *Literal, *Identifier, *ThisExpression, *BreakStatement, *EmptyStatement:
		// leaves
	case *MemberExpression:
		scalar("Object", v.Object)
		scalar("Property", v.Property)
	case *CallExpression:
		scalar("Callee", v.Callee)
		array("Arguments", v.Arguments)
	case *NewExpression:
		scalar("Callee", v.Callee)
		array("Arguments", v.Arguments)
	case *FunctionDeclaration:
		scalar("ID", identNode(v.ID))
		addParams(&out, v.Params)
		scalar("Body", v.Body)
	case *FunctionExpression:
		scalar("ID", identNode(v.ID))
		addParams(&out, v.Params)
		scalar("Body", v.Body)
	case *ArrowFunctionExpression:
		addParams(&out, v.Params)
		scalar("Body", v.Body)
	case *VariableDeclarator:
		scalar("ID", identNode(v.ID))
		scalar("Init", v.Init)
	case *VariableDeclaration:
		for i, d := range v.Declarations {
			if d != nil {
				out = append(out, ChildRef{Field: "Declarations", Index: i, Node: d})
			}
		}
	case *AssignmentExpression:
		scalar("Target", v.Target)
		scalar("Value", v.Value)
	case *BinaryExpression:
		scalar("Left", v.Left)
		scalar("Right", v.Right)
	case *LogicalExpression:
		scalar("Left", v.Left)
		scalar("Right", v.Right)
	case *UnaryExpression:
		scalar("Argument", v.Argument)
	case *UpdateExpression:
		scalar("Argument", v.Argument)
	case *ConditionalExpression:
		scalar("Test", v.Test)
		scalar("Consequent", v.Consequent)
		scalar("Alternate", v.Alternate)
	case *SequenceExpression:
		array("Expressions", v.Expressions)
	case *TemplateLiteral:
		array("Expressions", v.Expressions)
	case *BlockStatement:
		array("Body", v.Body)
	case *ExpressionStatement:
		scalar("Expression", v.Expression)
	case *IfStatement:
		scalar("Test", v.Test)
		scalar("Consequent", v.Consequent)
		scalar("Alternate", v.Alternate)
	case *ForStatement:
		scalar("Init", v.Init)
		scalar("Test", v.Test)
		scalar("Update", v.Update)
		scalar("Body", v.Body)
	case *ForInStatement:
		scalar("Left", v.Left)
		scalar("Right", v.Right)
		scalar("Body", v.Body)
	case *ForOfStatement:
		scalar("Left", v.Left)
		scalar("Right", v.Right)
		scalar("Body", v.Body)
	case *WhileStatement:
		scalar("Test", v.Test)
		scalar("Body", v.Body)
	case *DoWhileStatement:
		scalar("Body", v.Body)
		scalar("Test", v.Test)
	case *SwitchCase:
		scalar("Test", v.Test)
		array("Consequent", v.Consequent)
	case *SwitchStatement:
		scalar("Discriminant", v.Discriminant)
		for i, c := range v.Cases {
			if c != nil {
				out = append(out, ChildRef{Field: "Cases", Index: i, Node: c})
			}
		}
	case *ReturnStatement:
		scalar("Argument", v.Argument)
	case *ArrayExpression:
		array("Elements", v.Elements)
	case *Property:
		scalar("Key", v.Key)
		scalar("Value", v.Value)
	case *ObjectExpression:
		for i, p := range v.Properties {
			if p != nil {
				out = append(out, ChildRef{Field: "Properties", Index: i, Node: p})
			}
		}
	case *MethodDefinition:
		scalar("Key", v.Key)
		if v.Value != nil {
			scalar("Value", v.Value)
		}
	case *ClassDeclaration:
		scalar("ID", identNode(v.ID))
		scalar("Super", v.Super)
		for i, m := range v.Methods {
			if m != nil {
				out = append(out, ChildRef{Field: "Methods", Index: i, Node: m})
			}
		}
	default:
		panic("jsast: childRefs: unhandled node kind")
	}
	return out
}

func identNode(id *Identifier) Node {
	if id == nil {
		return nil
	}
	return id
}

// addParams appends a function/arrow's parameter names and defaults as
// array-valued children under distinct field names so each can be located
// unambiguously by (Field, Index) for replacement/deletion.
func addParams(out *[]ChildRef, params []Param) {
	for i, p := range params {
		if p.Name != nil {
			*out = append(*out, ChildRef{Field: "ParamNames", Index: i, Node: p.Name})
		}
		if p.Default != nil {
			*out = append(*out, ChildRef{Field: "ParamDefaults", Index: i, Node: p.Default})
		}
	}
}

// Children returns n's immediate structural children in source order.
func Children(n Node) []Node {
	refs := childRefs(n)
	out := make([]Node, len(refs))
	for i, r := range refs {
		out[i] = r.Node
	}
	return out
}

// IsStatement reports whether n occupies a statement position (used by the
// Arborist to decide array-splice vs. demote-to-EmptyStatement on deletion).
func IsStatement(n Node) bool {
	switch n.(type) {
	case *ExpressionStatement, *IfStatement, *ForStatement, *ForInStatement, *ForOfStatement,
		*WhileStatement, *DoWhileStatement, *SwitchStatement, *ReturnStatement, *BreakStatement,
		*EmptyStatement, *BlockStatement, *VariableDeclaration, *FunctionDeclaration, *ClassDeclaration:
		return true
	}
	return false
}
