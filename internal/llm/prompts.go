package llm

import (
	"fmt"
	"strings"
)

// Message is one chat message in a provider prompt.
type Message struct {
	Role    string
	Content string
}

const analysisSystemPrompt = `You are a biotech industry analyst monitoring company developments.
Analyze the supplied news and filings for the given company and extract discrete insights.
Respond with a single JSON object matching this schema:
{
  "insights": [
    {
      "category": "clinical_trial|regulatory|partnership|financial|leadership|product|legal|market|general",
      "title": "short headline",
      "summary": "2-3 sentence summary",
      "full_content": "optional longer analysis",
      "priority": "high|medium|low",
      "confidence_score": 0.0,
      "impact_score": 0.0,
      "source_urls": []
    }
  ],
  "summary": "overall assessment of the period",
  "confidence_score": 0.0
}
Scores are between 0 and 1. Only report insights supported by the source material. Return an empty insights array when nothing material happened.`

// BuildAnalysisPrompt assembles the chat messages for a company analysis
// request.
func BuildAnalysisPrompt(input AnalyzeInput) []Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s\n", input.CompanyName)
	if input.TickerSymbol != "" {
		fmt.Fprintf(&b, "Ticker: %s\n", input.TickerSymbol)
	}
	if input.Description != "" {
		fmt.Fprintf(&b, "Profile: %s\n", input.Description)
	}
	if len(input.TherapeuticAreas) > 0 {
		fmt.Fprintf(&b, "Therapeutic areas: %s\n", strings.Join(input.TherapeuticAreas, ", "))
	}
	b.WriteString("\nSource material:\n")
	if strings.TrimSpace(input.NewsContext) == "" {
		b.WriteString("(no new material collected for this period)\n")
	} else {
		b.WriteString(input.NewsContext)
		b.WriteString("\n")
	}

	return []Message{
		{Role: "system", Content: analysisSystemPrompt},
		{Role: "user", Content: b.String()},
	}
}
