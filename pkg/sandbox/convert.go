package sandbox

import (
	"regexp"
	"strconv"

	"github.com/dop251/goja"

	"github.com/ctrl-escp/restringer-go/pkg/jsast"
)

var identifierLike = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// toNode serializes a goja runtime value back into the subset of the AST the
// spec allows as a sandbox result: Literal, ArrayExpression, ObjectExpression.
// Anything else — functions, promises, symbols, thrown values already
// surfaced as a Go error before this is reached — becomes BadValue.
func toNode(vm *goja.Runtime, val goja.Value) jsast.Node {
	if val == nil || goja.IsUndefined(val) {
		return jsast.NewUndefinedLiteral()
	}
	if goja.IsNull(val) {
		return jsast.NewNullLiteral()
	}
	if obj, ok := val.(*goja.Object); ok {
		switch obj.ClassName() {
		case "Array":
			return arrayToNode(vm, obj)
		case "Object":
			return objectToNode(vm, obj)
		default:
			// Function, GeneratorFunction, Promise, RegExp, Date, Error, ...
			return &jsast.BadValue{Reason: "sandbox result of unsupported type: " + obj.ClassName()}
		}
	}
	switch exported := val.Export().(type) {
	case int64:
		return jsast.NewNumberLiteral(float64(exported))
	case float64:
		return jsast.NewNumberLiteral(exported)
	case string:
		return jsast.NewStringLiteral(exported)
	case bool:
		return jsast.NewBoolLiteral(exported)
	default:
		return &jsast.BadValue{Reason: "sandbox result of unsupported kind"}
	}
}

func arrayToNode(vm *goja.Runtime, obj *goja.Object) jsast.Node {
	length := int(obj.Get("length").ToInteger())
	elements := make([]jsast.Node, length)
	for i := 0; i < length; i++ {
		elements[i] = toNode(vm, obj.Get(strconv.Itoa(i)))
	}
	return &jsast.ArrayExpression{Elements: elements}
}

func objectToNode(vm *goja.Runtime, obj *goja.Object) jsast.Node {
	keys := obj.Keys()
	props := make([]*jsast.Property, 0, len(keys))
	for _, k := range keys {
		var key jsast.Node
		computed := false
		if identifierLike.MatchString(k) {
			key = jsast.NewIdentifier(k)
		} else {
			key = jsast.NewStringLiteral(k)
			computed = true
		}
		props = append(props, &jsast.Property{
			Key:      key,
			Value:    toNode(vm, obj.Get(k)),
			Computed: computed,
		})
	}
	return &jsast.ObjectExpression{Properties: props}
}
