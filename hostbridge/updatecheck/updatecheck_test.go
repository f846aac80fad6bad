package updatecheck

import "testing"

func TestIsNewer(t *testing.T) {
	cases := []struct {
		latest, current string
		want            bool
	}{
		{"1.2.0", "1.1.9", true},
		{"1.1.9", "1.2.0", false},
		{"1.2.0", "1.2.0", false},
		{"2.0", "1.9.9", true},
		{"1.2", "1.2.0", false},
		{"1.2.1", "1.2", true},
	}
	for _, tc := range cases {
		got, err := isNewer(tc.latest, tc.current)
		if err != nil {
			t.Fatalf("isNewer(%q, %q): %v", tc.latest, tc.current, err)
		}
		if got != tc.want {
			t.Errorf("isNewer(%q, %q) = %v, want %v", tc.latest, tc.current, got, tc.want)
		}
	}
}

func TestIsNewer_InvalidSegment(t *testing.T) {
	if _, err := isNewer("abc", "1.0.0"); err == nil {
		t.Error("expected error for non-numeric version segment")
	}
}
