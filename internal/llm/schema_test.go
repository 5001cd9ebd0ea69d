package llm

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseAnalysisOutputValid(t *testing.T) {
	raw := json.RawMessage(`{
		"insights": [
			{"category": "regulatory", "title": "FDA approval", "summary": "Approved for phase 3.", "priority": "high", "confidence_score": 0.85}
		],
		"summary": "Strong quarter",
		"confidence_score": 0.8
	}`)
	out, err := ParseAnalysisOutput(raw)
	if err != nil {
		t.Fatalf("ParseAnalysisOutput: %v", err)
	}
	if len(out.Insights) != 1 || out.Insights[0].Category != "regulatory" {
		t.Fatalf("unexpected output: %+v", out)
	}
}

func TestParseAnalysisOutputEmptyInsightsIsValid(t *testing.T) {
	raw := json.RawMessage(`{"insights": [], "summary": "quiet period", "confidence_score": 0.5}`)
	out, err := ParseAnalysisOutput(raw)
	if err != nil {
		t.Fatalf("ParseAnalysisOutput: %v", err)
	}
	if len(out.Insights) != 0 {
		t.Fatalf("expected no insights, got %d", len(out.Insights))
	}
}

func TestParseAnalysisOutputRejections(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"not json", "not json at all"},
		{"confidence above one", `{"insights": [], "summary": "x", "confidence_score": 1.5}`},
		{"negative confidence", `{"insights": [], "summary": "x", "confidence_score": -0.1}`},
		{"insight missing title", `{"insights": [{"summary": "s", "confidence_score": 0.5}], "confidence_score": 0.5}`},
		{"insight missing summary", `{"insights": [{"title": "t", "confidence_score": 0.5}], "confidence_score": 0.5}`},
		{"insight bad confidence", `{"insights": [{"title": "t", "summary": "s", "confidence_score": 2}], "confidence_score": 0.5}`},
		{"insight bad priority", `{"insights": [{"title": "t", "summary": "s", "priority": "urgent", "confidence_score": 0.5}], "confidence_score": 0.5}`},
	}
	for _, tc := range cases {
		_, err := ParseAnalysisOutput(json.RawMessage(tc.raw))
		var validation *ValidationError
		if !errors.As(err, &validation) {
			t.Errorf("%s: expected ValidationError, got %v", tc.name, err)
		}
	}
}
