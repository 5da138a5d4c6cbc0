package main

import (
	"github.com/ctrl-escp/restringer-go/pkg/rules"
	"github.com/ctrl-escp/restringer-go/pkg/rules/controlflow"
	"github.com/ctrl-escp/restringer-go/pkg/rules/functions"
	"github.com/ctrl-escp/restringer-go/pkg/rules/literals"
	"github.com/ctrl-escp/restringer-go/pkg/rules/unsafe"
	"github.com/ctrl-escp/restringer-go/pkg/rules/variables"
)

// builtinRulesByName lists every stateless rule --bundle-config may
// reference by name. The three unsafe rules that need a shared sandbox.Cache
// (resolve-local-call, resolve-injected-prototype-method,
// resolve-augmented-function-wrapped-arrays) are deliberately left out: a
// bundle-config override always gets a stateless instance, and those three
// can't be built without the engine's per-run cache.
func builtinRulesByName() map[string]rules.Rule {
	all := []rules.Rule{
		literals.FoldBinaryLiterals,
		literals.CollapseStaticTemplateLiteral,
		literals.NormalizeComputedAccess,
		literals.DecodeBase64Call,
		variables.ConstantPropagation,
		variables.ProxyVariables,
		variables.DeadCodeRemoval,
		variables.FixedValueAfterDeclare,
		variables.ProxyMemberChains,
		variables.DirectAssignmentPropertyResolution,
		variables.ArrayIndexResolution,
		functions.FunctionShellReplacement,
		functions.IIFEShellValue,
		functions.UnwrapSimpleOperationWrapper,
		functions.ProxyCallFunction,
		functions.ResolveEvalOnLiteral,
		functions.CallReturnsIdentifierUnwrap,
		functions.FunctionShellViaApplyArguments,
		functions.IIFEUnwrapping,
		functions.ResolveFunctionConstructorCall,
		functions.ResolveNewFunctionLiteral,
		controlflow.SimplifyEmptyBranches,
		controlflow.ResolveDeterministicIf,
		controlflow.ShortCircuitStatementToIf,
		controlflow.RemoveRedundantBlock,
		controlflow.LinearizeLiteralSwitch,
		controlflow.SeparateChainedDeclarators,
		controlflow.NormalizeEmptyStatements,
		controlflow.RearrangeSequenceExpressionStatements,
		controlflow.ExtractLeadingSequenceEffects,
		controlflow.ResolveRedundantLogicalOpsInIf,
		controlflow.SimplifyCallApplyWithThis,
		unsafe.ResolveLiteralBinaryExpressions,
		unsafe.ResolveDeterministicConditional,
		unsafe.ResolveMemberOnLiteral,
		unsafe.ResolveBuiltinCalls,
		unsafe.ResolveEvalOnNonLiteral,
		unsafe.ResolveMemberChainOnLocal,
		unsafe.ResolveMinimalAlphabet,
		unsafe.NormalizeRedundantNot,
	}
	out := make(map[string]rules.Rule, len(all))
	for _, r := range all {
		out[r.Name] = r
	}
	return out
}
