package codec

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"flowrunner/flow"
)

var validate = validator.New()

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidationError is one problem collected by Validate. It is never raised
// as a Go error on its own — Validate always returns a full ValidationResult
// regardless of how many problems it finds.
type ValidationError struct {
	StepID  string `json:"stepId,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult is the outcome of validating a flow.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors"`
}

func (r *ValidationResult) add(stepID, field, message string) {
	r.Valid = false
	r.Errors = append(r.Errors, ValidationError{StepID: stepID, Field: field, Message: message})
}

// validatableFlow / validatableRequestStep carry the struct-tag presence rules
// that validator/v10 checks mechanically, grounded on the teacher's own
// `validateConfig` struct-tag pipeline (runtime/config.go).
type validatableFlow struct {
	Name string `validate:"required"`
}

type validatableRequestStep struct {
	Name string `validate:"required"`
	URL  string `validate:"required"`
}

// Validate checks f against every rule in spec §4.4: presence, variable
// reachability, body JSON-validity, extraction/loop/condition well-formedness.
func Validate(f *flow.Flow) ValidationResult {
	result := ValidationResult{Valid: true}

	if err := validate.Struct(validatableFlow{Name: f.Name}); err != nil {
		result.add("", "name", "flow name is required")
	}

	scope := newScope(f.StaticVars)
	validateSteps(f.Steps, scope, &result)

	return result
}

// scope tracks which variable names are reachable at the current point in a
// depth-first walk of the step tree: static vars plus every ancestor's
// extractions and enclosing loop variables.
type scope struct {
	names map[string]bool
}

func newScope(staticVars map[string]any) *scope {
	s := &scope{names: map[string]bool{}}
	for k := range staticVars {
		s.names[k] = true
	}
	return s
}

func (s *scope) clone() *scope {
	out := &scope{names: make(map[string]bool, len(s.names))}
	for k := range s.names {
		out.names[k] = true
	}
	return out
}

func (s *scope) add(name string) {
	s.names[name] = true
}

func (s *scope) has(name string) bool {
	return s.names[name]
}

func validateSteps(steps []flow.Step, sc *scope, result *ValidationResult) {
	// Extractions and loop variables accumulate as siblings execute in
	// order, so later steps in the same branch see earlier steps' output.
	running := sc.clone()
	for _, s := range steps {
		validateStep(s, running, result)
		switch s.Kind {
		case flow.KindRequest:
			for varName := range s.Extract {
				running.add(varName)
			}
		}
	}
}

func validateStep(s flow.Step, sc *scope, result *ValidationResult) {
	if s.Name == "" {
		result.add(s.ID, "name", "step name is required")
	}

	switch s.Kind {
	case flow.KindRequest:
		if err := validate.Struct(validatableRequestStep{Name: s.Name, URL: s.URL}); err != nil {
			if s.URL == "" {
				result.add(s.ID, "url", "request URL is required")
			}
		}
		checkTemplateRefs(s.URL, sc, s.ID, "url", result)
		for k, v := range s.Headers {
			checkTemplateRefs(v, sc, s.ID, "headers."+k, result)
		}
		if strings.TrimSpace(s.Body) != "" && !json.Valid([]byte(markerize(s.Body))) {
			result.add(s.ID, "body", "request body is not valid JSON")
		}
		if s.RawBodyWithMarkers != nil {
			checkBodyMarkerRefs(s.RawBodyWithMarkers, sc, s.ID, result)
		}
		for varName, path := range s.Extract {
			if !identifierPattern.MatchString(varName) {
				result.add(s.ID, "extract", fmt.Sprintf("extraction variable %q is not a valid identifier", varName))
			}
			if path == "" {
				result.add(s.ID, "extract", fmt.Sprintf("extraction path for %q is empty", varName))
			}
		}
		if s.OnFailure != "" && s.OnFailure != flow.OnFailureStop && s.OnFailure != flow.OnFailureContinue {
			result.add(s.ID, "onFailure", fmt.Sprintf("unknown onFailure value %q", s.OnFailure))
		}

	case flow.KindCondition:
		if s.ConditionData.Operator == "" && s.ConditionData.Preview == "" {
			result.add(s.ID, "conditionData", "condition operator is required")
		}
		if s.ConditionData.Operator != "" && !knownOperators[s.ConditionData.Operator] {
			result.add(s.ID, "conditionData.operator", fmt.Sprintf("unknown condition operator %q", s.ConditionData.Operator))
		}
		if operatorRequiresValue(s.ConditionData.Operator) && s.ConditionData.Value == nil {
			result.add(s.ID, "conditionData.value", fmt.Sprintf("operator %q requires a value", s.ConditionData.Operator))
		}
		checkTemplateRefs(s.ConditionData.Variable, sc, s.ID, "conditionData.variable", result)
		validateSteps(s.ThenSteps, sc, result)
		validateSteps(s.ElseSteps, sc, result)

	case flow.KindLoop:
		if s.Source == "" {
			result.add(s.ID, "source", "loop source is required")
		} else {
			checkTemplateRefs(s.Source, sc, s.ID, "source", result)
		}
		varName := s.LoopVariable
		if varName == "" {
			varName = "item"
		}
		if !identifierPattern.MatchString(varName) {
			result.add(s.ID, "loopVariable", fmt.Sprintf("loop variable %q is not a valid identifier", varName))
		}
		inner := sc.clone()
		inner.add(varName)
		validateSteps(s.LoopSteps, inner, result)
	}
}

// knownOperators mirrors flow/condition's Evaluate switch: every operator
// name that evaluator actually understands.
var knownOperators = map[string]bool{
	"equals": true, "not_equals": true,
	"greater_than": true, "less_than": true, "greater_equals": true, "less_equals": true,
	"contains": true, "not_contains": true, "starts_with": true, "ends_with": true,
	"matches_regex": true, "not_matches_regex": true,
	"exists": true, "not_exists": true, "is_null": true, "is_not_null": true,
	"is_empty": true, "is_not_empty": true, "is_number": true, "is_text": true,
	"is_boolean": true, "is_array": true, "is_object": true, "is_true": true, "is_false": true,
}

// checkBodyMarkerRefs walks a Request step's rawBodyWithMarkers tree, and
// for every "##VAR:kind:NAME##" leaf, checks that NAME is reachable from sc.
func checkBodyMarkerRefs(body any, sc *scope, stepID string, result *ValidationResult) {
	switch v := body.(type) {
	case map[string]any:
		for _, child := range v {
			checkBodyMarkerRefs(child, sc, stepID, result)
		}
	case []any:
		for _, child := range v {
			checkBodyMarkerRefs(child, sc, stepID, result)
		}
	case string:
		if m := markerPattern.FindStringSubmatch(v); m != nil {
			name := m[2]
			if !sc.has(name) {
				result.add(stepID, "body", fmt.Sprintf("variable %q is not reachable at this point", name))
			}
		}
	}
}

func operatorRequiresValue(op string) bool {
	switch op {
	case "exists", "not_exists", "is_null", "is_not_null", "is_empty", "is_not_empty",
		"is_number", "is_text", "is_boolean", "is_array", "is_object", "is_true", "is_false", "":
		return false
	default:
		return true
	}
}

func checkTemplateRefs(s string, sc *scope, stepID, field string, result *ValidationResult) {
	for _, m := range tokenPattern.FindAllStringSubmatch(s, -1) {
		name := m[1]
		if !sc.has(name) {
			result.add(stepID, field, fmt.Sprintf("variable %q is not reachable at this point", name))
		}
	}
}
