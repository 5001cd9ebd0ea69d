package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// InsightOutput is one insight in the provider's structured response.
type InsightOutput struct {
	Category        string   `json:"category"`
	Title           string   `json:"title"`
	Summary         string   `json:"summary"`
	FullContent     string   `json:"full_content,omitempty"`
	Priority        string   `json:"priority"`
	ConfidenceScore float64  `json:"confidence_score"`
	ImpactScore     float64  `json:"impact_score,omitempty"`
	SourceURLs      []string `json:"source_urls,omitempty"`
}

// CompanyAnalysisOutput is the structured response schema the provider must
// return.
type CompanyAnalysisOutput struct {
	Insights        []InsightOutput `json:"insights"`
	Summary         string          `json:"summary"`
	ConfidenceScore float64         `json:"confidence_score"`
}

// ParseAnalysisOutput decodes and validates a raw provider response. All
// failures are ValidationErrors and must not be retried.
func ParseAnalysisOutput(raw json.RawMessage) (CompanyAnalysisOutput, error) {
	var out CompanyAnalysisOutput
	if len(raw) == 0 {
		return out, &ValidationError{Reason: "empty response"}
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	if err := dec.Decode(&out); err != nil {
		return out, &ValidationError{Reason: "unparseable response: " + err.Error()}
	}
	if out.ConfidenceScore < 0 || out.ConfidenceScore > 1 {
		return out, &ValidationError{Reason: fmt.Sprintf("confidence_score %v outside [0,1]", out.ConfidenceScore)}
	}
	for i, insight := range out.Insights {
		if strings.TrimSpace(insight.Title) == "" {
			return out, &ValidationError{Reason: fmt.Sprintf("insight %d missing title", i)}
		}
		if strings.TrimSpace(insight.Summary) == "" {
			return out, &ValidationError{Reason: fmt.Sprintf("insight %d missing summary", i)}
		}
		if insight.ConfidenceScore < 0 || insight.ConfidenceScore > 1 {
			return out, &ValidationError{Reason: fmt.Sprintf("insight %d confidence_score %v outside [0,1]", i, insight.ConfidenceScore)}
		}
		switch strings.ToLower(insight.Priority) {
		case "high", "medium", "low", "":
		default:
			return out, &ValidationError{Reason: fmt.Sprintf("insight %d has unknown priority %q", i, insight.Priority)}
		}
	}
	return out, nil
}
