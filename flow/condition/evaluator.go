// Package condition evaluates the structured {variable, operator, value}
// condition used by Condition steps.
//
// Grounded on the teacher repo's own condition dispatch
// (runtime/executor.go's evaluateCondition), which delegates to a single
// general-purpose expression language (expr-lang for YAML flows, Risor for
// DSL flows). FlowRunner's conditions are authored through a GUI dropdown
// as structured data, not free-form code (see spec Non-goals: "sandboxed
// script evaluation inside condition values"), so this package narrows that
// generality into the fixed operator table spec §4.3 exhaustively lists.
package condition

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"flowrunner/flow"
	"flowrunner/flow/path"
	"flowrunner/flowerr"
)

// Evaluate resolves cond.Variable as a path against ctx, then applies
// cond.Operator to compare the resolved value with cond.Value.
func Evaluate(cond flow.ConditionData, ctx map[string]any) (bool, error) {
	left, _ := path.Evaluate(ctx, cond.Variable)
	right := cond.Value

	switch cond.Operator {
	case "equals":
		return equalsOp(left, right), nil
	case "not_equals":
		return !equalsOp(left, right), nil

	case "greater_than":
		return numericCompare(left, right, func(a, b float64) bool { return a > b })
	case "less_than":
		return numericCompare(left, right, func(a, b float64) bool { return a < b })
	case "greater_equals":
		return numericCompare(left, right, func(a, b float64) bool { return a >= b })
	case "less_equals":
		return numericCompare(left, right, func(a, b float64) bool { return a <= b })

	case "contains":
		return strings.Contains(toStringCoerce(left), toStringCoerce(right)), nil
	case "not_contains":
		return !strings.Contains(toStringCoerce(left), toStringCoerce(right)), nil
	case "starts_with":
		return strings.HasPrefix(toStringCoerce(left), toStringCoerce(right)), nil
	case "ends_with":
		return strings.HasSuffix(toStringCoerce(left), toStringCoerce(right)), nil

	case "matches_regex":
		return matchesRegex(left, right)
	case "not_matches_regex":
		ok, err := matchesRegex(left, right)
		if err != nil {
			// Invalid regex -> false for matches_regex, true for negated.
			return true, nil
		}
		return !ok, nil

	case "exists":
		return left != nil, nil
	case "not_exists":
		return left == nil, nil
	case "is_null":
		return left == nil, nil
	case "is_not_null":
		return left != nil, nil
	case "is_empty":
		return isEmpty(left), nil
	case "is_not_empty":
		return !isEmpty(left), nil
	case "is_number":
		_, ok := asFloat(left)
		return ok, nil
	case "is_text":
		_, ok := left.(string)
		return ok, nil
	case "is_boolean":
		_, ok := left.(bool)
		return ok, nil
	case "is_array":
		_, ok := left.([]any)
		return ok, nil
	case "is_object":
		_, ok := left.(map[string]any)
		return ok, nil
	case "is_true":
		b, ok := left.(bool)
		return ok && b, nil
	case "is_false":
		b, ok := left.(bool)
		return ok && !b, nil
	}

	return false, flowerr.New(flowerr.KindCondition, "UNKNOWN_OPERATOR",
		fmt.Sprintf("unknown condition operator %q", cond.Operator))
}

// equalsOp implements the equals/not_equals semantics: strict-equal first,
// retry as numeric compare when both sides are non-object non-nil.
func equalsOp(left, right any) bool {
	if left == nil && right == nil {
		return true
	}
	if strictEqual(left, right) {
		return true
	}
	if isScalar(left) && isScalar(right) {
		lf, lok := asFloat(left)
		rf, rok := asFloat(right)
		if lok && rok {
			return lf == rf
		}
	}
	return false
}

// strictEqual compares a and b without any cross-type numeric coercion:
// same Go type and equal value for scalars, deep equality for maps/slices.
func strictEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case map[string]any, []any:
		return reflect.DeepEqual(a, b)
	default:
		af, aok := asFloat(a)
		bf, bok := asFloat(b)
		if aok && bok {
			return fmt.Sprintf("%T", a) == fmt.Sprintf("%T", b) && af == bf
		}
		return reflect.DeepEqual(a, b)
	}
}

func isScalar(v any) bool {
	switch v.(type) {
	case map[string]any, []any, nil:
		return false
	default:
		return true
	}
}

func numericCompare(left, right any, cmp func(a, b float64) bool) (bool, error) {
	lf, lok := asFloat(left)
	rf, rok := asFloat(right)
	if !lok || !rok {
		return false, nil
	}
	return cmp(lf, rf), nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func toStringCoerce(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func matchesRegex(left, right any) (bool, error) {
	pattern, _ := right.(string)
	value := toStringCoerce(left)

	pattern = expandSlashPattern(pattern)

	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, nil
	}
	return re.MatchString(value), nil
}

// expandSlashPattern recognizes the optional /pattern/flags syntax and
// converts supported flags ("i", "m" and "s") into an inline Go regexp flag
// group, falling back to the pattern unchanged for any other flag.
func expandSlashPattern(pattern string) string {
	if len(pattern) < 2 || pattern[0] != '/' {
		return pattern
	}
	lastSlash := strings.LastIndexByte(pattern, '/')
	if lastSlash <= 0 {
		return pattern
	}
	body := pattern[1:lastSlash]
	flags := pattern[lastSlash+1:]
	if flags == "" {
		return body
	}
	valid := true
	for _, f := range flags {
		if f != 'i' && f != 'm' && f != 's' {
			valid = false
			break
		}
	}
	if !valid {
		return pattern
	}
	return "(?" + flags + ")" + body
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}
