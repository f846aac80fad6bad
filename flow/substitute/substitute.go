// Package substitute implements the variable substituter: it resolves
// `{{name}}` tokens in a step's URL/headers/condition-value/loop-source
// strings, and splices context values into a Request step's marker-bearing
// body without breaking JSON validity.
//
// Grounded on the teacher repo's own `${VAR}`/`${VAR:default}` token
// convention (cli/internal/config/envvar.go's envVarPattern), adapted here
// to `{{name}}` variable names instead of environment variables, and on
// the teacher's declared-but-unexercised gabs dependency for the generic
// JSON-tree walk the marker rewrite needs.
package substitute

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/Jeffail/gabs/v2"

	"flowrunner/flow"
	"flowrunner/flow/path"
)

var tokenPattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

var markerPattern = regexp.MustCompile(`^##VAR:(string|unquoted):(.+)##$`)

// Result is the outcome of substituting one step's fields.
type Result struct {
	Step                flow.Step
	UnquotedPlaceholders map[string]any
}

// Substitute resolves every `{{name}}` token and body marker in step against
// ctx, returning the processed step and the unquoted-placeholder map the
// interpreter splices into the stringified body just before transport.
func Substitute(step flow.Step, ctx map[string]any, now func() int64, counter *int) Result {
	out := step

	out.URL = substituteString(step.URL, ctx)

	if step.Headers != nil {
		headers := make(map[string]string, len(step.Headers))
		for k, v := range step.Headers {
			headers[k] = substituteString(v, ctx)
		}
		out.Headers = headers
	}

	if step.Condition != "" {
		out.Condition = substituteString(step.Condition, ctx)
	}
	if step.ConditionData.Variable != "" || step.ConditionData.Operator != "" {
		cd := step.ConditionData
		if s, ok := cd.Value.(string); ok {
			cd.Value = substituteString(s, ctx)
		}
		out.ConditionData = cd
	}

	if step.Source != "" {
		out.Source = substituteString(step.Source, ctx)
	}

	placeholders := map[string]any{}
	if step.Kind == flow.KindRequest && step.RawBodyWithMarkers != nil {
		out.RawBodyWithMarkers = substituteBody(deepCopy(step.RawBodyWithMarkers), ctx, now, counter, placeholders)
	}

	return Result{Step: out, UnquotedPlaceholders: placeholders}
}

// substituteString replaces every {{name}} occurrence in s by evaluating
// name against ctx. Unresolved tokens are left literal; non-string values
// are JSON-stringified.
func substituteString(s string, ctx map[string]any) string {
	return tokenPattern.ReplaceAllStringFunc(s, func(tok string) string {
		name := tokenPattern.FindStringSubmatch(tok)[1]
		v, ok := path.Evaluate(ctx, name)
		if !ok {
			return tok
		}
		return stringify(v)
	})
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return "null"
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

// substituteBody walks a deep-copied rawBodyWithMarkers tree, resolving
// each exact "##VAR:(string|unquoted):NAME##" leaf string against ctx.
func substituteBody(body any, ctx map[string]any, now func() int64, counter *int, placeholders map[string]any) any {
	return walkGabs(gabs.Wrap(body), ctx, now, counter, placeholders).Data()
}

func walkGabs(c *gabs.Container, ctx map[string]any, now func() int64, counter *int, placeholders map[string]any) *gabs.Container {
	switch v := c.Data().(type) {
	case map[string]any:
		for k, child := range v {
			v[k] = walkGabs(gabs.Wrap(child), ctx, now, counter, placeholders).Data()
		}
		return gabs.Wrap(v)
	case []any:
		for i, child := range v {
			v[i] = walkGabs(gabs.Wrap(child), ctx, now, counter, placeholders).Data()
		}
		return gabs.Wrap(v)
	default:
		return gabs.Wrap(substituteLeaf(v, ctx, now, counter, placeholders))
	}
}

func substituteLeaf(v any, ctx map[string]any, now func() int64, counter *int, placeholders map[string]any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	m := markerPattern.FindStringSubmatch(s)
	if m == nil {
		return v
	}
	kind, name := m[1], m[2]
	resolved, found := path.Evaluate(ctx, name)

	switch kind {
	case "string":
		if !found {
			return nil
		}
		return resolved

	case "unquoted":
		placeholder := fmt.Sprintf("__FLOWRUNNER_UNQUOTED_%d_%d", now(), nextCount(counter))
		if !found {
			placeholders[placeholder] = nil
		} else {
			placeholders[placeholder] = resolved
		}
		return placeholder
	}
	return v
}

func nextCount(counter *int) int {
	*counter++
	return *counter
}

// deepCopy round-trips v through JSON to produce an independent copy,
// mirroring the "deep-copy rawBodyWithMarkers before substitution" rule.
func deepCopy(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

// SpliceUnquoted replaces every quoted occurrence of each placeholder key in
// jsonBody with its raw value's JSON literal form (string as-is, others as
// their JSON literal), per the request-step body construction rule.
func SpliceUnquoted(jsonBody string, placeholders map[string]any) string {
	for placeholder, raw := range placeholders {
		quoted := strconv.Quote(placeholder)
		jsonBody = regexp.MustCompile(regexp.QuoteMeta(quoted)).ReplaceAllStringFunc(jsonBody, func(string) string {
			return literalForm(raw)
		})
	}
	return jsonBody
}

func literalForm(raw any) string {
	switch v := raw.(type) {
	case nil:
		return "null"
	case string:
		return v
	case float64, int, int64, bool:
		b, _ := json.Marshal(v)
		return string(b)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "null"
		}
		return string(b)
	}
}
