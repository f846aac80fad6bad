package codec

import (
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"

	"flowrunner/flow"
)

// operatorNames maps the expr-lang comparison operator spelling to
// FlowRunner's structured condition operator name.
var operatorNames = map[string]string{
	"==": "equals",
	"!=": "not_equals",
	">":  "greater_than",
	"<":  "less_than",
	">=": "greater_equals",
	"<=": "less_equals",
}

// callOperatorNames maps a builtin call name (used as `fn(left, right)` in
// the legacy string) to its structured-condition equivalent.
var callOperatorNames = map[string]string{
	"contains":   "contains",
	"startsWith": "starts_with",
	"endsWith":   "ends_with",
}

// ParseLegacyCondition recovers {variable, operator, value} from a legacy
// condition string on a best-effort basis, using expr-lang's parser purely
// to obtain an expression AST — never to evaluate. Anything that doesn't
// match one of the known comparison shapes falls back to a Preview-carrying
// structure, per the spec's "do not guess intent" rule for unparsed legacy
// strings.
func ParseLegacyCondition(raw string) flow.ConditionData {
	tree, err := parser.Parse(raw)
	if err != nil || tree == nil || tree.Node == nil {
		return flow.ConditionData{Preview: raw}
	}

	switch n := tree.Node.(type) {
	case *ast.BinaryNode:
		opName, ok := operatorNames[n.Operator]
		if !ok {
			return flow.ConditionData{Preview: raw}
		}
		variable, ok := nodeToPath(n.Left)
		if !ok {
			return flow.ConditionData{Preview: raw}
		}
		value, ok := nodeToLiteral(n.Right)
		if !ok {
			return flow.ConditionData{Preview: raw}
		}
		return flow.ConditionData{Variable: variable, Operator: opName, Value: value}

	case *ast.CallNode:
		callee, ok := n.Callee.(*ast.IdentifierNode)
		if !ok {
			return flow.ConditionData{Preview: raw}
		}
		opName, ok := callOperatorNames[callee.Value]
		if !ok || len(n.Arguments) != 2 {
			return flow.ConditionData{Preview: raw}
		}
		variable, ok := nodeToPath(n.Arguments[0])
		if !ok {
			return flow.ConditionData{Preview: raw}
		}
		value, ok := nodeToLiteral(n.Arguments[1])
		if !ok {
			return flow.ConditionData{Preview: raw}
		}
		return flow.ConditionData{Variable: variable, Operator: opName, Value: value}
	}

	return flow.ConditionData{Preview: raw}
}

// nodeToPath recovers a dotted variable path from an identifier or member
// access chain (e.g. body.user.id).
func nodeToPath(n ast.Node) (string, bool) {
	switch v := n.(type) {
	case *ast.IdentifierNode:
		return v.Value, true
	case *ast.MemberNode:
		base, ok := nodeToPath(v.Node)
		if !ok {
			return "", false
		}
		prop, ok := v.Property.(*ast.StringNode)
		if !ok {
			return "", false
		}
		return base + "." + prop.Value, true
	}
	return "", false
}

func nodeToLiteral(n ast.Node) (any, bool) {
	switch v := n.(type) {
	case *ast.StringNode:
		return v.Value, true
	case *ast.IntegerNode:
		return float64(v.Value), true
	case *ast.FloatNode:
		return v.Value, true
	case *ast.BoolNode:
		return v.Value, true
	case *ast.NilNode:
		return nil, true
	case *ast.UnaryNode:
		if v.Operator == "-" {
			inner, ok := nodeToLiteral(v.Node)
			if !ok {
				return nil, false
			}
			if f, ok := inner.(float64); ok {
				return -f, true
			}
		}
		return nil, false
	}
	return nil, false
}
