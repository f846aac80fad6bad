// Package codec implements the flow model's bidirectional JSON
// serialization: marker rewriting for `{{name}}` placeholders inside a
// Request step's body, on-disk/Flow struct conversion, and validation.
//
// Grounded on the teacher repo's own `mapToStruct`/`structToMap` JSON/
// mapstructure round-trip (runtime/converter.go) for conversions, and its
// `InitializeConfig` defaults->merge->validate pipeline (runtime/config.go)
// for the shape of Validate.
package codec

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/Jeffail/gabs/v2"

	"flowrunner/flow"
	"flowrunner/flowerr"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)
var markerPattern = regexp.MustCompile(`^##VAR:(string|unquoted):([A-Za-z_][A-Za-z0-9_]*)##$`)

// wireFlow / wireStep mirror the on-disk JSON shape. Unlike the in-memory
// flow.Step, a Request step's body on disk is the *parsed marker-form*
// structure, not the UI-facing template string, so the wire shape needs its
// own Body field typed any instead of flow.Step's string field.
type wireFlow struct {
	ID           string            `json:"id,omitempty"`
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	StaticVars   map[string]any    `json:"staticVars,omitempty"`
	Steps        []wireStep        `json:"steps"`
	VisualLayout map[string]flow.Coord `json:"visualLayout,omitempty"`
}

type wireStep struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Kind flow.Kind `json:"type"`

	Method    string            `json:"method,omitempty"`
	URL       string            `json:"url,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      any               `json:"body,omitempty"`
	Extract   map[string]string `json:"extract,omitempty"`
	OnFailure flow.OnFailure    `json:"onFailure,omitempty"`

	Condition     string            `json:"condition,omitempty"`
	ConditionData flow.ConditionData `json:"conditionData,omitempty"`
	ThenSteps     []wireStep        `json:"thenSteps,omitempty"`
	ElseSteps     []wireStep        `json:"elseSteps,omitempty"`

	Source       string     `json:"source,omitempty"`
	LoopVariable string     `json:"loopVariable,omitempty"`
	LoopSteps    []wireStep `json:"steps,omitempty"`
}

// Serialize converts f into the on-disk JSON bytes: each Request step's
// UI-facing body string is preprocessed into marker form and parsed, and
// onFailure defaults to "stop".
func Serialize(f *flow.Flow) ([]byte, error) {
	w := wireFlow{
		ID:           f.ID,
		Name:         f.Name,
		Description:  f.Description,
		Headers:      f.Headers,
		StaticVars:   f.StaticVars,
		Steps:        toWireSteps(f.Steps),
		VisualLayout: f.VisualLayout,
	}
	out, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return nil, flowerr.Wrap(flowerr.KindModel, "SERIALIZE_FAILED", "failed to serialize flow", err)
	}
	return out, nil
}

func toWireSteps(steps []flow.Step) []wireStep {
	out := make([]wireStep, len(steps))
	for i, s := range steps {
		out[i] = toWireStep(s)
	}
	return out
}

func toWireStep(s flow.Step) wireStep {
	w := wireStep{
		ID:   s.ID,
		Name: s.Name,
		Kind: s.Kind,
	}
	switch s.Kind {
	case flow.KindRequest:
		w.Method = s.Method
		w.URL = s.URL
		w.Headers = s.Headers
		w.Extract = s.Extract
		w.OnFailure = s.OnFailure
		if w.OnFailure == "" {
			w.OnFailure = flow.OnFailureStop
		}
		w.Body = bodyToMarkerStructure(s.Body)
	case flow.KindCondition:
		w.Condition = s.Condition
		w.ConditionData = s.ConditionData
		w.ThenSteps = toWireSteps(s.ThenSteps)
		w.ElseSteps = toWireSteps(s.ElseSteps)
	case flow.KindLoop:
		w.Source = s.Source
		w.LoopVariable = s.LoopVariable
		w.LoopSteps = toWireSteps(s.LoopSteps)
	}
	return w
}

// bodyToMarkerStructure rewrites every `{{name}}` occurrence in the
// UI-facing body string into a marker ("##VAR:string:NAME##" inside a
// string literal, `"##VAR:unquoted:NAME##"` at a bare value position), then
// parses the result. If the body isn't syntactically valid JSON even after
// marker substitution, the marker-bearing string is carried through
// unparsed so the author can still load and fix it.
func bodyToMarkerStructure(body string) any {
	if strings.TrimSpace(body) == "" {
		return nil
	}
	marked := markerize(body)
	var parsed any
	if err := json.Unmarshal([]byte(marked), &parsed); err == nil {
		return parsed
	}
	return marked
}

func markerize(body string) string {
	var out strings.Builder
	inString := false
	escaped := false

	i := 0
	for i < len(body) {
		if rest := body[i:]; strings.HasPrefix(rest, "{{") {
			if m := tokenPattern.FindStringSubmatch(rest); m != nil && strings.HasPrefix(rest, m[0]) {
				name := m[1]
				if inString {
					out.WriteString("##VAR:string:" + name + "##")
				} else {
					out.WriteString(`"##VAR:unquoted:` + name + `##"`)
				}
				i += len(m[0])
				continue
			}
		}

		c := body[i]
		out.WriteByte(c)
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
		} else if c == '"' {
			inString = true
		}
		i++
	}
	return out.String()
}

// Deserialize converts on-disk JSON bytes into a Flow: for each Request
// step, the stored body becomes rawBodyWithMarkers, and a parallel decoded
// copy (markers rewritten back to `{{NAME}}`) is pretty-printed into the
// UI-facing body string. A legacy condition string with no structured
// conditionData is parsed by the best-effort parser.
func Deserialize(data []byte) (*flow.Flow, error) {
	var w wireFlow
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, flowerr.Wrap(flowerr.KindModel, "INVALID_JSON", "flow file is not valid JSON", err)
	}
	f := &flow.Flow{
		ID:           w.ID,
		Name:         w.Name,
		Description:  w.Description,
		Headers:      w.Headers,
		StaticVars:   w.StaticVars,
		Steps:        fromWireSteps(w.Steps),
		VisualLayout: w.VisualLayout,
	}
	return f, nil
}

func fromWireSteps(steps []wireStep) []flow.Step {
	out := make([]flow.Step, len(steps))
	for i, s := range steps {
		out[i] = fromWireStep(s)
	}
	return out
}

func fromWireStep(w wireStep) flow.Step {
	s := flow.Step{
		ID:   w.ID,
		Name: w.Name,
		Kind: w.Kind,
	}
	switch w.Kind {
	case flow.KindRequest:
		s.Method = w.Method
		s.URL = w.URL
		s.Headers = w.Headers
		s.Extract = w.Extract
		s.OnFailure = w.OnFailure
		if s.OnFailure == "" {
			s.OnFailure = flow.OnFailureStop
		}
		if w.Body != nil {
			s.RawBodyWithMarkers = deepCopyAny(w.Body)
			s.Body = decodedBodyString(w.Body)
		}
	case flow.KindCondition:
		s.Condition = w.Condition
		s.ConditionData = w.ConditionData
		s.ThenSteps = fromWireSteps(w.ThenSteps)
		s.ElseSteps = fromWireSteps(w.ElseSteps)
		if s.ConditionData.Variable == "" && s.ConditionData.Operator == "" && s.Condition != "" {
			s.ConditionData = ParseLegacyCondition(s.Condition)
		}
	case flow.KindLoop:
		s.Source = w.Source
		s.LoopVariable = w.LoopVariable
		if s.LoopVariable == "" {
			s.LoopVariable = "item"
		}
		s.LoopSteps = fromWireSteps(w.LoopSteps)
	}
	return s
}

// decodedBodyString rewrites every exact marker string back to `{{NAME}}`
// and pretty-prints the result for display in the body editor.
func decodedBodyString(body any) string {
	decoded := decodeMarkers(deepCopyAny(body))
	b, err := json.MarshalIndent(decoded, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}

func decodeMarkers(v any) any {
	c := gabs.Wrap(v)
	switch data := c.Data().(type) {
	case map[string]any:
		for k, child := range data {
			data[k] = decodeMarkers(child)
		}
		return data
	case []any:
		for i, child := range data {
			data[i] = decodeMarkers(child)
		}
		return data
	case string:
		if m := markerPattern.FindStringSubmatch(data); m != nil {
			return "{{" + m[2] + "}}"
		}
		return data
	default:
		return data
	}
}

func deepCopyAny(v any) any {
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
