package runs

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"insights-backend/internal/companies"
	"insights-backend/internal/insights"
	"insights-backend/internal/llm"
	"insights-backend/internal/shared/metrics"
	"insights-backend/internal/shared/telemetry"
)

// DefaultBatchSize is the number of companies analyzed concurrently per batch.
const DefaultBatchSize = 10

// SourceProvider supplies the collected source material for a company. The
// collection pipeline lives outside this service; a provider adapts whatever
// feed is available.
type SourceProvider interface {
	Collect(ctx context.Context, company companies.Company) (string, error)
}

// StaticSource returns fixed material per company ID. Companies without an
// entry get an empty corpus, which the provider treats as a quiet period.
type StaticSource struct {
	ByCompany map[string]string
}

// Collect returns the configured material for the company.
func (s *StaticSource) Collect(ctx context.Context, company companies.Company) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s == nil || s.ByCompany == nil {
		return "", nil
	}
	return s.ByCompany[company.ID], nil
}

// Executor drives one analysis run: sequential fixed-size batches with
// per-company fan-out inside each batch. A company failure or panic never
// fails the run; it is recorded on the result row and the run counters.
type Executor struct {
	Runs      RunRepo
	Results   ResultRepo
	Companies companies.Repo
	Insights  insights.Repo
	LLM       llm.Client
	Source    SourceProvider

	Temperature float64
	BatchSize   int
	Now         func() time.Time
}

// Execute processes the worklist. It returns cancelled=true only when the run
// was cancelled by a user, which the executor observes at batch boundaries so
// in-flight company tasks always finish. A dead worker context is not a
// cancellation; it surfaces as an error for the caller to record as a
// run-level fault.
func (e *Executor) Execute(ctx context.Context, runID string, worklist []companies.Company) (bool, error) {
	batchSize := e.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	dedup := insights.NewDeduplicator()

	for start := 0; start < len(worklist); start += batchSize {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		current, err := e.Runs.GetByID(ctx, runID)
		if err != nil {
			return false, err
		}
		if current.Status == StatusCancelled {
			telemetry.Info("run.cancelled", map[string]any{
				"run_id":    runID,
				"processed": current.ProcessedCompanies,
				"failed":    current.FailedCompanies,
			})
			return true, nil
		}

		end := start + batchSize
		if end > len(worklist) {
			end = len(worklist)
		}
		batch := worklist[start:end]

		var wg sync.WaitGroup
		for _, company := range batch {
			wg.Add(1)
			go func(company companies.Company) {
				defer wg.Done()
				e.processCompany(ctx, runID, company, dedup)
			}(company)
		}
		wg.Wait()

		telemetry.Info("run.batch", map[string]any{
			"run_id":     runID,
			"batch_from": start,
			"batch_size": len(batch),
			"total":      len(worklist),
		})
	}
	return false, nil
}

func (e *Executor) processCompany(ctx context.Context, runID string, company companies.Company, dedup *insights.Deduplicator) {
	startedAt := e.now()
	defer func() {
		if r := recover(); r != nil {
			e.failCompany(ctx, runID, company.ID, ErrorTypePanic, llm.Result{}, fmt.Errorf("panic: %v", r), startedAt)
		}
	}()

	marker := AnalysisResult{
		ID:        uuid.NewString(),
		RunID:     runID,
		CompanyID: company.ID,
		Status:    ResultProcessing,
		CreatedAt: startedAt,
	}
	if err := e.Results.Create(ctx, marker); err != nil {
		e.failCompany(ctx, runID, company.ID, ErrorTypeStorage, llm.Result{}, fmt.Errorf("result create: %w", err), startedAt)
		return
	}

	source := ""
	if e.Source != nil {
		var err error
		source, err = e.Source.Collect(ctx, company)
		if err != nil {
			e.failCompany(ctx, runID, company.ID, ErrorTypeInternal, llm.Result{}, fmt.Errorf("source collect: %w", err), startedAt)
			return
		}
	}

	llmResult, err := e.LLM.AnalyzeCompany(ctx, llm.AnalyzeInput{
		CompanyName:      company.Name,
		TickerSymbol:     company.TickerSymbol,
		Description:      company.Description,
		TherapeuticAreas: company.TherapeuticAreas,
		NewsContext:      source,
	})
	if err != nil {
		e.failCompany(ctx, runID, company.ID, llm.ErrorCode(err), llmResult, err, startedAt)
		return
	}

	output, err := llm.ParseAnalysisOutput(llmResult.Raw)
	if err != nil {
		e.failCompany(ctx, runID, company.ID, ErrorTypeValidation, llmResult, err, startedAt)
		return
	}

	stored, highPriority := e.storeInsights(ctx, company.ID, marker.ID, output, dedup)

	completedAt := e.now()
	final := marker
	final.Status = ResultCompleted
	final.PromptTokens = llmResult.Usage.PromptTokens
	final.CompletionTokens = llmResult.Usage.CompletionTokens
	final.TotalTokens = llmResult.Usage.TotalTokens
	final.ModelUsed = llmResult.Model
	final.Temperature = e.Temperature
	final.RawResponse = string(llmResult.Raw)
	final.ParsedData = map[string]any{
		"summary":          output.Summary,
		"confidence_score": output.ConfidenceScore,
		"insight_count":    len(output.Insights),
	}
	final.ValidationStatus = "valid"
	final.ProcessingSeconds = completedAt.Sub(startedAt).Seconds()
	final.RetryCount = llmResult.RetryCount
	if err := e.Results.Finalize(ctx, final); err != nil {
		e.failCompany(ctx, runID, company.ID, ErrorTypeStorage, llmResult, fmt.Errorf("result finalize: %w", err), startedAt)
		return
	}

	if err := e.Companies.MarkAnalyzed(ctx, company.ID, completedAt, stored, highPriority); err != nil {
		telemetry.Error("company.mark_analyzed", map[string]any{
			"run_id":     runID,
			"company_id": company.ID,
			"error":      sanitizeError(err),
		})
	}

	if err := e.Runs.AddProgress(ctx, runID, Progress{
		Processed:            1,
		InsightsGenerated:    stored,
		HighPriorityInsights: highPriority,
	}); err != nil {
		telemetry.Error("run.progress", map[string]any{
			"run_id":     runID,
			"company_id": company.ID,
			"error":      sanitizeError(err),
		})
	}
	metrics.IncCompanyProcessed()
	metrics.ObserveCompanyDurationMs(float64(completedAt.Sub(startedAt).Milliseconds()))
	telemetry.Info("company.analyzed", map[string]any{
		"run_id":        runID,
		"company_id":    company.ID,
		"insights":      stored,
		"high_priority": highPriority,
		"retry_count":   llmResult.RetryCount,
		"total_tokens":  llmResult.Usage.TotalTokens,
	})
}

func (e *Executor) storeInsights(ctx context.Context, companyID, resultID string, output llm.CompanyAnalysisOutput, dedup *insights.Deduplicator) (stored, highPriority int) {
	now := e.now()
	for _, item := range output.Insights {
		category, recognized := insights.NormalizeCategory(item.Category)
		if !recognized {
			metrics.IncCategoryWarning()
			telemetry.Warn("insight.category_unrecognized", map[string]any{
				"company_id": companyID,
				"category":   item.Category,
			})
		}
		priority := strings.ToLower(item.Priority)
		if priority == "" {
			priority = insights.PriorityMedium
		}
		hash := insights.Fingerprint(item.Title, item.Summary)
		if dedup.Seen(companyID, hash) {
			metrics.IncInsightDuplicate()
			continue
		}
		inserted, err := e.Insights.InsertIfAbsent(ctx, insights.Insight{
			ID:               uuid.NewString(),
			CompanyID:        companyID,
			AnalysisResultID: resultID,
			Category:         category,
			Title:            item.Title,
			Summary:          item.Summary,
			FullContent:      item.FullContent,
			Priority:         priority,
			ConfidenceScore:  item.ConfidenceScore,
			ImpactScore:      item.ImpactScore,
			SourceURLs:       item.SourceURLs,
			Status:           insights.StatusNew,
			ContentHash:      hash,
			CreatedAt:        now,
		})
		if err != nil {
			telemetry.Error("insight.store", map[string]any{
				"company_id": companyID,
				"error":      sanitizeError(err),
			})
			continue
		}
		if !inserted {
			metrics.IncInsightDuplicate()
			continue
		}
		stored++
		if priority == insights.PriorityHigh {
			highPriority++
		}
	}
	metrics.AddInsightsGenerated(stored)
	return stored, highPriority
}

func (e *Executor) failCompany(ctx context.Context, runID, companyID, errType string, res llm.Result, err error, startedAt time.Time) {
	// Terminal result rows must land even when the failure was the worker
	// context dying mid-call.
	ctx = context.WithoutCancel(ctx)
	completedAt := e.now()
	final := AnalysisResult{
		ID:                uuid.NewString(),
		RunID:             runID,
		CompanyID:         companyID,
		Status:            ResultFailed,
		ValidationStatus:  "invalid",
		PromptTokens:      res.Usage.PromptTokens,
		CompletionTokens:  res.Usage.CompletionTokens,
		TotalTokens:       res.Usage.TotalTokens,
		ModelUsed:         res.Model,
		RawResponse:       string(res.Raw),
		ProcessingSeconds: completedAt.Sub(startedAt).Seconds(),
		RetryCount:        res.RetryCount,
		ErrorMessage:      sanitizeError(err),
		ErrorType:         errType,
		CreatedAt:         startedAt,
	}
	// The marker row may be missing when Create itself failed.
	marker := final
	marker.Status = ResultProcessing
	_ = e.Results.Create(ctx, marker)
	if finalizeErr := e.Results.Finalize(ctx, final); finalizeErr != nil {
		telemetry.Error("result.finalize", map[string]any{
			"run_id":     runID,
			"company_id": companyID,
			"error":      sanitizeError(finalizeErr),
		})
	}
	// Processed counts every attempted company, so processed == total holds
	// on completion even with failures.
	if progressErr := e.Runs.AddProgress(ctx, runID, Progress{Processed: 1, Failed: 1, Errors: 1}); progressErr != nil {
		telemetry.Error("run.progress", map[string]any{
			"run_id":     runID,
			"company_id": companyID,
			"error":      sanitizeError(progressErr),
		})
	}
	metrics.IncCompanyFailed()
	telemetry.Warn("company.failed", map[string]any{
		"run_id":       runID,
		"company_id":   companyID,
		"error_type":   errType,
		"retry_count":  res.RetryCount,
		"total_tokens": res.Usage.TotalTokens,
		"error":        sanitizeError(err),
	})
}

func (e *Executor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}
