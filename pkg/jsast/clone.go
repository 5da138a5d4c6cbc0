package jsast

// cloneShallow deep-clones the structural children of n (every node reachable
// without leaving the construct) while resetting metadata that the Arborist
// will repopulate: NodeID, Parent, ParentKey, Scope, Lineage. Src/Range are
// copied as a best-effort display hint but are meaningless until re-indexed.
func cloneShallow(n Node) Node {
	switch v := n.(type) {
	case nil:
		return nil
	case *Program:
		c := &Program{Meta: resetMeta(v.Meta)}
		c.Body = cloneSlice(v.Body)
		return c
	case *Literal:
		c := *v
		c.Meta = resetMeta(v.Meta)
		return &c
	case *Identifier:
		c := &Identifier{Meta: resetMeta(v.Meta), Name: v.Name}
		// DeclNode/References are reference-graph data rebuilt at index time;
		// a freshly cloned identifier is never itself pre-wired as a declaration.
		return c
	case *ThisExpression:
		c := &ThisExpression{Meta: resetMeta(v.Meta)}
		return c
	case *MemberExpression:
		return &MemberExpression{
			Meta:     resetMeta(v.Meta),
			Object:   clone1(v.Object),
			Property: clone1(v.Property),
			Computed: v.Computed,
		}
	case *CallExpression:
		return &CallExpression{
			Meta:      resetMeta(v.Meta),
			Callee:    clone1(v.Callee),
			Arguments: cloneSlice(v.Arguments),
		}
	case *NewExpression:
		return &NewExpression{
			Meta:      resetMeta(v.Meta),
			Callee:    clone1(v.Callee),
			Arguments: cloneSlice(v.Arguments),
		}
	case *FunctionDeclaration:
		return &FunctionDeclaration{
			Meta:   resetMeta(v.Meta),
			ID:     cloneIdentPtr(v.ID),
			Params: cloneParams(v.Params),
			Body:   cloneBlock(v.Body),
		}
	case *FunctionExpression:
		return &FunctionExpression{
			Meta:   resetMeta(v.Meta),
			ID:     cloneIdentPtr(v.ID),
			Params: cloneParams(v.Params),
			Body:   cloneBlock(v.Body),
		}
	case *ArrowFunctionExpression:
		return &ArrowFunctionExpression{
			Meta:     resetMeta(v.Meta),
			Params:   cloneParams(v.Params),
			Body:     clone1(v.Body),
			ExprBody: v.ExprBody,
		}
	case *VariableDeclarator:
		return &VariableDeclarator{
			Meta: resetMeta(v.Meta),
			ID:   cloneIdentPtr(v.ID),
			Init: clone1(v.Init),
		}
	case *VariableDeclaration:
		decls := make([]*VariableDeclarator, len(v.Declarations))
		for i, d := range v.Declarations {
			decls[i] = cloneShallow(d).(*VariableDeclarator)
		}
		return &VariableDeclaration{Meta: resetMeta(v.Meta), DeclKind: v.DeclKind, Declarations: decls}
	case *AssignmentExpression:
		return &AssignmentExpression{
			Meta:     resetMeta(v.Meta),
			Operator: v.Operator,
			Target:   clone1(v.Target),
			Value:    clone1(v.Value),
		}
	case *BinaryExpression:
		return &BinaryExpression{
			Meta: resetMeta(v.Meta), Operator: v.Operator,
			Left: clone1(v.Left), Right: clone1(v.Right),
		}
	case *LogicalExpression:
		return &LogicalExpression{
			Meta: resetMeta(v.Meta), Operator: v.Operator,
			Left: clone1(v.Left), Right: clone1(v.Right),
		}
	case *UnaryExpression:
		return &UnaryExpression{
			Meta: resetMeta(v.Meta), Operator: v.Operator,
			Argument: clone1(v.Argument), Prefix: v.Prefix,
		}
	case *UpdateExpression:
		return &UpdateExpression{
			Meta: resetMeta(v.Meta), Operator: v.Operator,
			Argument: clone1(v.Argument), Prefix: v.Prefix,
		}
	case *ConditionalExpression:
		return &ConditionalExpression{
			Meta: resetMeta(v.Meta),
			Test: clone1(v.Test), Consequent: clone1(v.Consequent), Alternate: clone1(v.Alternate),
		}
	case *SequenceExpression:
		return &SequenceExpression{Meta: resetMeta(v.Meta), Expressions: cloneSlice(v.Expressions)}
	case *TemplateLiteral:
		quasis := append([]string(nil), v.Quasis...)
		return &TemplateLiteral{Meta: resetMeta(v.Meta), Quasis: quasis, Expressions: cloneSlice(v.Expressions)}
	case *BlockStatement:
		return cloneBlock(v)
	case *ExpressionStatement:
		return &ExpressionStatement{Meta: resetMeta(v.Meta), Expression: clone1(v.Expression)}
	case *IfStatement:
		return &IfStatement{
			Meta: resetMeta(v.Meta),
			Test: clone1(v.Test), Consequent: clone1(v.Consequent), Alternate: clone1(v.Alternate),
		}
	case *ForStatement:
		return &ForStatement{
			Meta: resetMeta(v.Meta),
			Init: clone1(v.Init), Test: clone1(v.Test), Update: clone1(v.Update), Body: clone1(v.Body),
		}
	case *ForInStatement:
		return &ForInStatement{Meta: resetMeta(v.Meta), Left: clone1(v.Left), Right: clone1(v.Right), Body: clone1(v.Body)}
	case *ForOfStatement:
		return &ForOfStatement{Meta: resetMeta(v.Meta), Left: clone1(v.Left), Right: clone1(v.Right), Body: clone1(v.Body)}
	case *WhileStatement:
		return &WhileStatement{Meta: resetMeta(v.Meta), Test: clone1(v.Test), Body: clone1(v.Body)}
	case *DoWhileStatement:
		return &DoWhileStatement{Meta: resetMeta(v.Meta), Body: clone1(v.Body), Test: clone1(v.Test)}
	case *SwitchCase:
		return &SwitchCase{Meta: resetMeta(v.Meta), Test: clone1(v.Test), Consequent: cloneSlice(v.Consequent)}
	case *SwitchStatement:
		cases := make([]*SwitchCase, len(v.Cases))
		for i, c := range v.Cases {
			cases[i] = cloneShallow(c).(*SwitchCase)
		}
		return &SwitchStatement{Meta: resetMeta(v.Meta), Discriminant: clone1(v.Discriminant), Cases: cases}
	case *ReturnStatement:
		return &ReturnStatement{Meta: resetMeta(v.Meta), Argument: clone1(v.Argument)}
	case *BreakStatement:
		return &BreakStatement{Meta: resetMeta(v.Meta)}
	case *EmptyStatement:
		return &EmptyStatement{Meta: resetMeta(v.Meta)}
	case *ArrayExpression:
		return &ArrayExpression{Meta: resetMeta(v.Meta), Elements: cloneSlice(v.Elements)}
	case *Property:
		return &Property{
			Meta: resetMeta(v.Meta), Key: clone1(v.Key), Value: clone1(v.Value),
			Computed: v.Computed, Shorthand: v.Shorthand,
		}
	case *ObjectExpression:
		props := make([]*Property, len(v.Properties))
		for i, p := range v.Properties {
			props[i] = cloneShallow(p).(*Property)
		}
		return &ObjectExpression{Meta: resetMeta(v.Meta), Properties: props}
	case *MethodDefinition:
		var val *FunctionExpression
		if v.Value != nil {
			val = cloneShallow(v.Value).(*FunctionExpression)
		}
		return &MethodDefinition{
			Meta: resetMeta(v.Meta), Key: clone1(v.Key), Computed: v.Computed,
			Static: v.Static, Kind_: v.Kind_, Value: val,
		}
	case *ClassDeclaration:
		methods := make([]*MethodDefinition, len(v.Methods))
		for i, m := range v.Methods {
			methods[i] = cloneShallow(m).(*MethodDefinition)
		}
		return &ClassDeclaration{Meta: resetMeta(v.Meta), ID: cloneIdentPtr(v.ID), Super: clone1(v.Super), Methods: methods}
	case *BadValue:
		return &BadValue{Meta: resetMeta(v.Meta), Reason: v.Reason}
	default:
		panic("jsast: Clone: unhandled node kind")
	}
}

func resetMeta(m Meta) Meta {
	return Meta{Range: m.Range, Src: m.Src}
}

func clone1(n Node) Node {
	if n == nil {
		return nil
	}
	return cloneShallow(n)
}

func cloneIdentPtr(id *Identifier) *Identifier {
	if id == nil {
		return nil
	}
	return cloneShallow(id).(*Identifier)
}

func cloneBlock(b *BlockStatement) *BlockStatement {
	if b == nil {
		return nil
	}
	return &BlockStatement{Meta: resetMeta(b.Meta), Body: cloneSlice(b.Body)}
}

func cloneParams(params []Param) []Param {
	out := make([]Param, len(params))
	for i, p := range params {
		out[i] = Param{Name: cloneIdentPtr(p.Name), Default: clone1(p.Default)}
	}
	return out
}

func cloneSlice(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = clone1(n)
	}
	return out
}
