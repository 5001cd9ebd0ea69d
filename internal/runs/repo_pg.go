package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PGRunRepo implements RunRepo using Postgres. Counter updates and status
// transitions are single conditional statements, so concurrent company tasks
// never lose increments.
type PGRunRepo struct {
	DB *sql.DB
}

// Create inserts a new run.
func (r *PGRunRepo) Create(ctx context.Context, run AnalysisRun) error {
	cfg, err := json.Marshal(run.Config)
	if err != nil {
		return err
	}
	const query = `
INSERT INTO analysis_runs (id, run_type, status, configuration, triggered_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = r.DB.ExecContext(ctx, query,
		run.ID, run.RunType, run.Status, cfg, nullStr(run.TriggeredBy), run.CreatedAt)
	return err
}

// GetByID returns a run by ID.
func (r *PGRunRepo) GetByID(ctx context.Context, runID string) (AnalysisRun, error) {
	row := r.DB.QueryRowContext(ctx, selectRunQuery+` WHERE id = $1 LIMIT 1`, runID)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AnalysisRun{}, ErrNotFound
		}
		return AnalysisRun{}, err
	}
	return run, nil
}

// List returns runs newest-first.
func (r *PGRunRepo) List(ctx context.Context, limit, offset int) ([]AnalysisRun, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.DB.QueryContext(ctx, selectRunQuery+` ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AnalysisRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// MarkRunning transitions pending -> running.
func (r *PGRunRepo) MarkRunning(ctx context.Context, runID string, startedAt time.Time, totalCompanies int) error {
	const query = `
UPDATE analysis_runs
SET status = 'running',
    started_at = $1,
    total_companies = $2,
    updated_at = now()
WHERE id = $3 AND status = 'pending'`
	res, err := r.DB.ExecContext(ctx, query, startedAt, totalCompanies, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, getErr := r.GetByID(ctx, runID); getErr != nil {
			return getErr
		}
		return ErrAlreadyStarted
	}
	return nil
}

// AddProgress atomically folds counters into the run row.
func (r *PGRunRepo) AddProgress(ctx context.Context, runID string, delta Progress) error {
	const query = `
UPDATE analysis_runs
SET processed_companies = processed_companies + $1,
    failed_companies = failed_companies + $2,
    insights_generated = insights_generated + $3,
    high_priority_insights = high_priority_insights + $4,
    error_count = error_count + $5,
    updated_at = now()
WHERE id = $6`
	res, err := r.DB.ExecContext(ctx, query,
		delta.Processed, delta.Failed, delta.InsightsGenerated, delta.HighPriorityInsights, delta.Errors, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Finish moves a non-terminal run to a terminal status. The status guard
// keeps a racing cancel and completion from overwriting each other.
func (r *PGRunRepo) Finish(ctx context.Context, runID, status string, completedAt time.Time, errorMessage *string) error {
	const query = `
UPDATE analysis_runs
SET status = $1,
    completed_at = $2,
    duration_seconds = CASE
        WHEN started_at IS NOT NULL THEN EXTRACT(EPOCH FROM ($2::timestamptz - started_at))::int
        ELSE duration_seconds
    END,
    error_message = COALESCE($3::text, error_message),
    updated_at = now()
WHERE id = $4 AND status IN ('pending', 'running')`
	res, err := r.DB.ExecContext(ctx, query, status, completedAt, errorMessage, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, getErr := r.GetByID(ctx, runID); getErr != nil {
			return getErr
		}
		return ErrNotCancellable
	}
	return nil
}

// DeleteOlderThan removes terminal runs and their results before the cutoff.
func (r *PGRunRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	const deleteResults = `
DELETE FROM analysis_results
WHERE analysis_run_id IN (
	SELECT id FROM analysis_runs
	WHERE created_at < $1 AND status IN ('completed', 'failed', 'cancelled')
)`
	if _, err := tx.ExecContext(ctx, deleteResults, cutoff); err != nil {
		return 0, err
	}

	const deleteRuns = `
DELETE FROM analysis_runs
WHERE created_at < $1 AND status IN ('completed', 'failed', 'cancelled')`
	res, err := tx.ExecContext(ctx, deleteRuns, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(n), nil
}

// Stats aggregates run history.
func (r *PGRunRepo) Stats(ctx context.Context, recent int) (Stats, error) {
	const query = `
SELECT count(*),
       count(*) FILTER (WHERE status = 'completed'),
       count(*) FILTER (WHERE status = 'failed'),
       count(*) FILTER (WHERE status = 'cancelled'),
       COALESCE(sum(insights_generated), 0),
       COALESCE(avg(duration_seconds), 0)
FROM analysis_runs`
	var stats Stats
	err := r.DB.QueryRowContext(ctx, query).Scan(
		&stats.TotalRuns,
		&stats.CompletedRuns,
		&stats.FailedRuns,
		&stats.CancelledRuns,
		&stats.InsightsTotal,
		&stats.AvgDurationSecs,
	)
	if err != nil {
		return Stats{}, err
	}
	if recent > 0 {
		stats.RecentRuns, err = r.List(ctx, recent, 0)
		if err != nil {
			return Stats{}, err
		}
	}
	return stats, nil
}

var _ RunRepo = (*PGRunRepo)(nil)

const selectRunQuery = `
SELECT id, run_type, status, started_at, completed_at, duration_seconds,
       total_companies, processed_companies, failed_companies,
       insights_generated, high_priority_insights, error_count, error_message,
       configuration, triggered_by, created_at, updated_at
FROM analysis_runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (AnalysisRun, error) {
	var run AnalysisRun
	var startedAt, completedAt sql.NullTime
	var duration sql.NullInt64
	var errorMessage, configuration, triggeredBy sql.NullString
	err := row.Scan(
		&run.ID,
		&run.RunType,
		&run.Status,
		&startedAt,
		&completedAt,
		&duration,
		&run.TotalCompanies,
		&run.ProcessedCompanies,
		&run.FailedCompanies,
		&run.InsightsGenerated,
		&run.HighPriorityInsights,
		&run.ErrorCount,
		&errorMessage,
		&configuration,
		&triggeredBy,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		return AnalysisRun{}, err
	}
	if startedAt.Valid {
		run.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if duration.Valid {
		secs := int(duration.Int64)
		run.DurationSeconds = &secs
	}
	if errorMessage.Valid {
		run.ErrorMessage = &errorMessage.String
	}
	if configuration.Valid {
		_ = json.Unmarshal([]byte(configuration.String), &run.Config)
	}
	if triggeredBy.Valid {
		run.TriggeredBy = triggeredBy.String
	}
	return run, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// PGResultRepo implements ResultRepo using Postgres.
type PGResultRepo struct {
	DB *sql.DB
}

// Create inserts the processing marker row. The unique constraint on
// (run, company) rejects duplicate tasks for the same pair.
func (r *PGResultRepo) Create(ctx context.Context, result AnalysisResult) error {
	const query = `
INSERT INTO analysis_results (id, analysis_run_id, company_id, status, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (analysis_run_id, company_id) DO NOTHING`
	_, err := r.DB.ExecContext(ctx, query,
		result.ID, result.RunID, result.CompanyID, result.Status, result.CreatedAt)
	return err
}

// Finalize writes the terminal fields once; already-finalized rows are left
// untouched.
func (r *PGResultRepo) Finalize(ctx context.Context, result AnalysisResult) error {
	parsed, err := marshalNullable(result.ParsedData)
	if err != nil {
		return err
	}
	const query = `
UPDATE analysis_results
SET status = $1,
    prompt_tokens = $2,
    completion_tokens = $3,
    total_tokens = $4,
    model_used = $5,
    temperature = $6,
    raw_response = $7,
    parsed_data = $8,
    validation_status = $9,
    processing_time_seconds = $10,
    retry_count = $11,
    error_message = $12,
    error_type = $13,
    updated_at = now()
WHERE analysis_run_id = $14 AND company_id = $15
  AND status NOT IN ('completed', 'failed')`
	_, err = r.DB.ExecContext(ctx, query,
		result.Status,
		result.PromptTokens,
		result.CompletionTokens,
		result.TotalTokens,
		nullStr(result.ModelUsed),
		result.Temperature,
		nullStr(result.RawResponse),
		parsed,
		nullStr(result.ValidationStatus),
		result.ProcessingSeconds,
		result.RetryCount,
		nullStr(result.ErrorMessage),
		nullStr(result.ErrorType),
		result.RunID,
		result.CompanyID,
	)
	return err
}

// ListByRun returns results for a run.
func (r *PGResultRepo) ListByRun(ctx context.Context, runID string) ([]AnalysisResult, error) {
	const query = `
SELECT id, analysis_run_id, company_id, status,
       COALESCE(prompt_tokens, 0), COALESCE(completion_tokens, 0), COALESCE(total_tokens, 0),
       model_used, COALESCE(temperature, 0), raw_response, parsed_data, validation_status,
       COALESCE(processing_time_seconds, 0), retry_count, error_message, error_type,
       created_at, updated_at
FROM analysis_results
WHERE analysis_run_id = $1
ORDER BY company_id`
	rows, err := r.DB.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AnalysisResult
	for rows.Next() {
		var result AnalysisResult
		var modelUsed, rawResponse, parsedData, validationStatus, errorMessage, errorType sql.NullString
		if err := rows.Scan(
			&result.ID,
			&result.RunID,
			&result.CompanyID,
			&result.Status,
			&result.PromptTokens,
			&result.CompletionTokens,
			&result.TotalTokens,
			&modelUsed,
			&result.Temperature,
			&rawResponse,
			&parsedData,
			&validationStatus,
			&result.ProcessingSeconds,
			&result.RetryCount,
			&errorMessage,
			&errorType,
			&result.CreatedAt,
			&result.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if modelUsed.Valid {
			result.ModelUsed = modelUsed.String
		}
		if rawResponse.Valid {
			result.RawResponse = rawResponse.String
		}
		if parsedData.Valid {
			_ = json.Unmarshal([]byte(parsedData.String), &result.ParsedData)
		}
		if validationStatus.Valid {
			result.ValidationStatus = validationStatus.String
		}
		if errorMessage.Valid {
			result.ErrorMessage = errorMessage.String
		}
		if errorType.Valid {
			result.ErrorType = errorType.String
		}
		out = append(out, result)
	}
	return out, rows.Err()
}

var _ ResultRepo = (*PGResultRepo)(nil)

func marshalNullable(value map[string]any) (any, error) {
	if value == nil {
		return nil, nil
	}
	return json.Marshal(value)
}
