package substitute

import (
	"testing"

	"flowrunner/flow"
)

func fixedClock() func() int64 {
	return func() int64 { return 1000 }
}

func TestSubstitute_URLAndHeaders(t *testing.T) {
	step := flow.Step{
		Kind:    flow.KindRequest,
		URL:     "https://api.example.com/users/{{userId}}",
		Headers: map[string]string{"Authorization": "Bearer {{token}}"},
	}
	ctx := map[string]any{"userId": float64(7), "token": "abc123"}

	counter := 0
	res := Substitute(step, ctx, fixedClock(), &counter)
	if res.Step.URL != "https://api.example.com/users/7" {
		t.Errorf("got url %q", res.Step.URL)
	}
	if res.Step.Headers["Authorization"] != "Bearer abc123" {
		t.Errorf("got header %q", res.Step.Headers["Authorization"])
	}
}

func TestSubstitute_UnresolvedTokenLeftLiteral(t *testing.T) {
	step := flow.Step{Kind: flow.KindRequest, URL: "https://x/{{missing}}"}
	counter := 0
	res := Substitute(step, map[string]any{}, fixedClock(), &counter)
	if res.Step.URL != "https://x/{{missing}}" {
		t.Errorf("expected literal token preserved, got %q", res.Step.URL)
	}
}

func TestSubstitute_BodyMarkers(t *testing.T) {
	step := flow.Step{
		Kind: flow.KindRequest,
		RawBodyWithMarkers: map[string]any{
			"name":   "##VAR:string:userName##",
			"age":    "##VAR:unquoted:userAge##",
			"static": "hello",
		},
	}
	ctx := map[string]any{"userName": "alice", "userAge": float64(30)}

	counter := 0
	res := Substitute(step, ctx, fixedClock(), &counter)
	body := res.Step.RawBodyWithMarkers.(map[string]any)
	if body["name"] != "alice" {
		t.Errorf("got name %v", body["name"])
	}
	if body["static"] != "hello" {
		t.Errorf("got static %v", body["static"])
	}
	placeholder, ok := body["age"].(string)
	if !ok {
		t.Fatalf("expected placeholder string, got %T", body["age"])
	}
	raw, ok := res.UnquotedPlaceholders[placeholder]
	if !ok {
		t.Fatalf("expected placeholder %q recorded", placeholder)
	}
	if raw != float64(30) {
		t.Errorf("got raw value %v", raw)
	}
}

func TestSubstitute_UnresolvedMarkerVariants(t *testing.T) {
	step := flow.Step{
		Kind: flow.KindRequest,
		RawBodyWithMarkers: map[string]any{
			"a": "##VAR:string:missing##",
			"b": "##VAR:unquoted:missing##",
		},
	}
	counter := 0
	res := Substitute(step, map[string]any{}, fixedClock(), &counter)
	body := res.Step.RawBodyWithMarkers.(map[string]any)
	if body["a"] != nil {
		t.Errorf("expected nil for unresolved string marker, got %v", body["a"])
	}
	placeholder := body["b"].(string)
	if raw, ok := res.UnquotedPlaceholders[placeholder]; !ok || raw != nil {
		t.Errorf("expected placeholder with nil raw value, got %v (ok=%v)", raw, ok)
	}
}

func TestSpliceUnquoted(t *testing.T) {
	body := `{"age":"__FLOWRUNNER_UNQUOTED_1_1","active":"__FLOWRUNNER_UNQUOTED_1_2"}`
	placeholders := map[string]any{
		"__FLOWRUNNER_UNQUOTED_1_1": float64(30),
		"__FLOWRUNNER_UNQUOTED_1_2": true,
	}
	got := SpliceUnquoted(body, placeholders)
	want := `{"age":30,"active":true}`
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}
