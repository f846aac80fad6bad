package condition

import (
	"testing"

	"flowrunner/flow"
)

func TestEvaluate(t *testing.T) {
	ctx := map[string]any{
		"body": map[string]any{
			"ok":    "true",
			"count": float64(3),
			"name":  "alice",
			"tags":  []any{"a", "b"},
		},
	}

	tests := []struct {
		name string
		cond flow.ConditionData
		want bool
	}{
		{"equals string", flow.ConditionData{Variable: "ok", Operator: "equals", Value: "true"}, true},
		{"equals numeric coercion", flow.ConditionData{Variable: "count", Operator: "equals", Value: "3"}, true},
		{"not_equals", flow.ConditionData{Variable: "name", Operator: "not_equals", Value: "bob"}, true},
		{"greater_than", flow.ConditionData{Variable: "count", Operator: "greater_than", Value: 2}, true},
		{"less_than false", flow.ConditionData{Variable: "count", Operator: "less_than", Value: 2}, false},
		{"contains", flow.ConditionData{Variable: "name", Operator: "contains", Value: "lic"}, true},
		{"starts_with", flow.ConditionData{Variable: "name", Operator: "starts_with", Value: "ali"}, true},
		{"ends_with", flow.ConditionData{Variable: "name", Operator: "ends_with", Value: "ce"}, true},
		{"matches_regex", flow.ConditionData{Variable: "name", Operator: "matches_regex", Value: "^a.*e$"}, true},
		{"matches_regex with flags", flow.ConditionData{Variable: "name", Operator: "matches_regex", Value: "/ALICE/i"}, true},
		{"exists", flow.ConditionData{Variable: "name", Operator: "exists"}, true},
		{"not_exists missing", flow.ConditionData{Variable: "missing", Operator: "not_exists"}, true},
		{"is_empty missing", flow.ConditionData{Variable: "missing", Operator: "is_empty"}, true},
		{"is_number", flow.ConditionData{Variable: "count", Operator: "is_number"}, true},
		{"is_array", flow.ConditionData{Variable: "tags", Operator: "is_array"}, true},
		{"is_true coercion fails on string", flow.ConditionData{Variable: "ok", Operator: "is_true"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.cond, ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluate_UnknownOperator(t *testing.T) {
	_, err := Evaluate(flow.ConditionData{Variable: "x", Operator: "bogus"}, map[string]any{})
	if err == nil {
		t.Fatal("expected error for unknown operator")
	}
}

func TestEvaluate_InvalidRegexFalse(t *testing.T) {
	got, err := Evaluate(flow.ConditionData{Variable: "name", Operator: "matches_regex", Value: "("}, map[string]any{"name": "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got {
		t.Error("invalid regex should evaluate to false")
	}

	got, err = Evaluate(flow.ConditionData{Variable: "name", Operator: "not_matches_regex", Value: "("}, map[string]any{"name": "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Error("invalid regex negated should evaluate to true")
	}
}
