package insights

import "time"

// Priority levels for insights.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// StatusNew is the initial lifecycle status for stored insights.
const StatusNew = "new"

// Insight is one discrete finding extracted for a company.
type Insight struct {
	ID               string
	CompanyID        string
	AnalysisResultID string
	Category         string
	Title            string
	Summary          string
	FullContent      string
	Priority         string
	ConfidenceScore  float64
	ImpactScore      float64
	SourceURLs       []string
	Status           string
	ContentHash      string
	EventDate        *time.Time
	PublishedDate    *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
