package companies

import "time"

// Priority tiers for monitored companies. Higher tiers are analyzed first.
const (
	TierLow    = 0
	TierMedium = 1
	TierHigh   = 2
)

// Company is a monitored entity.
type Company struct {
	ID               string
	Name             string
	TickerSymbol     string
	Description      string
	TherapeuticAreas []string
	IsActive         bool
	MonitoringOn     bool
	PriorityTier     int
	LastAnalyzedAt   *time.Time

	// Denormalized rollups maintained by the pipeline.
	TotalInsights        int
	HighPriorityInsights int

	CreatedAt time.Time
	UpdatedAt time.Time
}
