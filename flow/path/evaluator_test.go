package path

import (
	"reflect"
	"testing"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name string
		data any
		path string
		want any
		ok   bool
	}{
		{
			name: "dot status",
			data: map[string]any{"status": 200, "body": map[string]any{"x": 1}},
			path: ".status",
			want: 200,
			ok:   true,
		},
		{
			name: "body field",
			data: map[string]any{"body": map[string]any{"x": 1}},
			path: "x",
			want: 1,
			ok:   true,
		},
		{
			name: "bracket index",
			data: map[string]any{"items": []any{map[string]any{"name": "a"}}},
			path: "items[0].name",
			want: "a",
			ok:   true,
		},
		{
			name: "headers case insensitive",
			data: map[string]any{"headers": map[string]any{"Content-Type": "application/json"}},
			path: "headers.content-type",
			want: "application/json",
			ok:   true,
		},
		{
			name: "single segment status",
			data: map[string]any{"status": 404},
			path: "status",
			want: 404,
			ok:   true,
		},
		{
			name: "missing property",
			data: map[string]any{"body": map[string]any{"x": 1}},
			path: "y",
			want: nil,
			ok:   false,
		},
		{
			name: "index on non-array",
			data: map[string]any{"x": 1},
			path: "x[0]",
			want: nil,
			ok:   false,
		},
		{
			name: "out of bounds index",
			data: map[string]any{"items": []any{1, 2}},
			path: "items[5]",
			want: nil,
			ok:   false,
		},
		{
			name: "body first property routing",
			data: map[string]any{"status": 200, "body": map[string]any{"user": map[string]any{"id": 7}}},
			path: "user.id",
			want: 7,
			ok:   true,
		},
		{
			name: "braces stripped",
			data: map[string]any{"body": map[string]any{"x": 9}},
			path: "{{x}}",
			want: 9,
			ok:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Evaluate(tt.data, tt.path)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
