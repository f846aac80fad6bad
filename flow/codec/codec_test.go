package codec

import (
	"strings"
	"testing"

	"flowrunner/flow"
)

func TestMarkerize_QuotedAndUnquotedPositions(t *testing.T) {
	body := `{"name": "{{userName}}", "age": {{userAge}}, "tags": [{{tag}}]}`
	got := markerize(body)

	if !strings.Contains(got, `"name": "##VAR:string:userName##"`) {
		t.Errorf("expected quoted marker for userName, got %s", got)
	}
	if !strings.Contains(got, `"age": "##VAR:unquoted:userAge##"`) {
		t.Errorf("expected unquoted marker for userAge, got %s", got)
	}
	if !strings.Contains(got, `"##VAR:unquoted:tag##"`) {
		t.Errorf("expected unquoted marker for tag, got %s", got)
	}
}

func TestSerializeDeserialize_RoundTrip(t *testing.T) {
	f := &flow.Flow{
		Name: "demo",
		StaticVars: map[string]any{
			"count": float64(3),
		},
		Steps: []flow.Step{
			{
				ID:   "s1",
				Name: "create",
				Kind: flow.KindRequest,
				URL:  "https://api.example.com",
				Body: `{"n": {{count}}, "label": "{{count}}"}`,
			},
		},
	}

	data, err := Serialize(f)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	back, err := Deserialize(data)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	if back.Name != "demo" {
		t.Errorf("got name %q", back.Name)
	}
	if len(back.Steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(back.Steps))
	}
	step := back.Steps[0]
	if step.OnFailure != flow.OnFailureStop {
		t.Errorf("expected onFailure to default to stop, got %q", step.OnFailure)
	}
	if !strings.Contains(step.Body, "{{count}}") {
		t.Errorf("expected decoded body to contain {{count}}, got %s", step.Body)
	}
	m, ok := step.RawBodyWithMarkers.(map[string]any)
	if !ok {
		t.Fatalf("expected map rawBodyWithMarkers, got %T", step.RawBodyWithMarkers)
	}
	if m["label"] != "##VAR:string:count##" {
		t.Errorf("expected preserved string marker, got %v", m["label"])
	}
}

func TestValidate_MissingFields(t *testing.T) {
	f := &flow.Flow{
		Steps: []flow.Step{
			{ID: "s1", Kind: flow.KindRequest},
		},
	}
	result := Validate(f)
	if result.Valid {
		t.Fatal("expected invalid flow")
	}
	if len(result.Errors) < 2 {
		t.Errorf("expected at least 2 errors (flow name, step name/url), got %d: %+v", len(result.Errors), result.Errors)
	}
}

func TestValidate_UnreachableVariable(t *testing.T) {
	f := &flow.Flow{
		Name: "demo",
		Steps: []flow.Step{
			{ID: "s1", Name: "req", Kind: flow.KindRequest, URL: "https://x/{{missingVar}}"},
		},
	}
	result := Validate(f)
	found := false
	for _, e := range result.Errors {
		if strings.Contains(e.Message, "missingVar") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an error about missingVar, got %+v", result.Errors)
	}
}

func TestValidate_ExtractedVariableReachableLater(t *testing.T) {
	f := &flow.Flow{
		Name: "demo",
		Steps: []flow.Step{
			{ID: "s1", Name: "req1", Kind: flow.KindRequest, URL: "https://x", Extract: map[string]string{"id": "body.id"}},
			{ID: "s2", Name: "req2", Kind: flow.KindRequest, URL: "https://x/{{id}}"},
		},
	}
	result := Validate(f)
	for _, e := range result.Errors {
		if strings.Contains(e.Message, "\"id\"") {
			t.Errorf("did not expect id to be unreachable: %+v", e)
		}
	}
}

func TestParseLegacyCondition(t *testing.T) {
	cd := ParseLegacyCondition(`body.status == "ok"`)
	if cd.Variable != "body.status" || cd.Operator != "equals" || cd.Value != "ok" {
		t.Errorf("got %+v", cd)
	}

	cd2 := ParseLegacyCondition(`not a real condition at all!!`)
	if cd2.Preview == "" {
		t.Errorf("expected preview fallback, got %+v", cd2)
	}
}
