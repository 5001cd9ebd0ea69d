package runs

import "time"

// Run statuses. A run only advances: pending -> running -> terminal.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Run types.
const (
	TypeScheduled = "scheduled"
	TypeManual    = "manual"
	TypeTriggered = "triggered"
)

// Per-company result statuses.
const (
	ResultPending    = "pending"
	ResultProcessing = "processing"
	ResultCompleted  = "completed"
	ResultFailed     = "failed"
)

// CancelledByUser is the error message recorded on user-cancelled runs.
const CancelledByUser = "Cancelled by user"

// Config captures the per-run knobs supplied at trigger time.
type Config struct {
	CompanyIDs []string `json:"company_ids,omitempty"`
	ForceRerun bool     `json:"force_rerun,omitempty"`
	BatchSize  int      `json:"batch_size,omitempty"`
}

// AnalysisRun is one orchestrated pass over the monitored companies.
type AnalysisRun struct {
	ID              string
	RunType         string
	Status          string
	StartedAt       *time.Time
	CompletedAt     *time.Time
	DurationSeconds *int

	TotalCompanies       int
	ProcessedCompanies   int
	FailedCompanies      int
	InsightsGenerated    int
	HighPriorityInsights int
	ErrorCount           int
	ErrorMessage         *string

	Config      Config
	TriggeredBy string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Terminal reports whether the run reached a final status.
func (r AnalysisRun) Terminal() bool {
	switch r.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// AnalysisResult is the per-company outcome within a run. Exactly one exists
// per (run, company) and it is finalized once.
type AnalysisResult struct {
	ID        string
	RunID     string
	CompanyID string
	Status    string

	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	ModelUsed        string
	Temperature      float64

	RawResponse      string
	ParsedData       map[string]any
	ValidationStatus string

	ProcessingSeconds float64
	RetryCount        int
	ErrorMessage      string
	ErrorType         string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Progress is the counter delta committed at the end of each company task.
type Progress struct {
	Processed            int
	Failed               int
	InsightsGenerated    int
	HighPriorityInsights int
	Errors               int
}

// Stats aggregates run history for the stats endpoint.
type Stats struct {
	TotalRuns       int           `json:"total_runs"`
	CompletedRuns   int           `json:"completed_runs"`
	FailedRuns      int           `json:"failed_runs"`
	CancelledRuns   int           `json:"cancelled_runs"`
	InsightsTotal   int           `json:"insights_total"`
	AvgDurationSecs float64       `json:"avg_duration_seconds"`
	RecentRuns      []AnalysisRun `json:"-"`
}
