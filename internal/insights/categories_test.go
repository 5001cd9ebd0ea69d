package insights

import "testing"

func TestNormalizeCategory(t *testing.T) {
	cases := []struct {
		raw        string
		want       string
		recognized bool
	}{
		{"regulatory", "regulatory", true},
		{"Clinical Trial", "clinical_trial", true},
		{"clinical-trial", "clinical_trial", true},
		{"FDA decision", "regulatory", true},
		{"merger announcement", "partnership", true},
		{"Q2 earnings", "financial", true},
		{"", "general", true},
		{"astrology", "general", false},
	}
	for _, tc := range cases {
		got, recognized := NormalizeCategory(tc.raw)
		if got != tc.want || recognized != tc.recognized {
			t.Errorf("NormalizeCategory(%q) = (%q, %v), want (%q, %v)", tc.raw, got, recognized, tc.want, tc.recognized)
		}
	}
}
