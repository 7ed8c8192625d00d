package validators

import "testing"

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"trims whitespace", "  merch  ", 100, "merch"},
		{"drops control characters", "mer\x00ch\n", 100, "merch"},
		{"caps length in runes", "célébration", 4, "célé"},
		{"zero max means unbounded", "celebration", 0, "celebration"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeString(tc.input, tc.maxLen); got != tc.want {
				t.Fatalf("SanitizeString(%q, %d) = %q, want %q", tc.input, tc.maxLen, got, tc.want)
			}
		})
	}
}
