package runs

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"insights-backend/internal/companies"
	"insights-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the runs service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches run routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analysis/runs", h.startRun)
	rg.GET("/analysis/runs", h.listRuns)
	rg.GET("/analysis/runs/:id", h.getRun)
	rg.GET("/analysis/runs/:id/results", h.getRunResults)
	rg.POST("/analysis/runs/:id/cancel", h.cancelRun)
	rg.GET("/analysis/stats", h.getStats)
}

type startRunRequest struct {
	CompanyIDs []string `json:"company_ids"`
	ForceRerun bool     `json:"force_rerun"`
	BatchSize  int      `json:"batch_size"`
	RunType    string   `json:"run_type"`
}

func (h *Handler) startRun(c *gin.Context) {
	var req startRunRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if req.BatchSize < 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "batch_size must be positive", nil)
		return
	}

	run, err := h.Svc.Start(c.Request.Context(), req.RunType, Config{
		CompanyIDs: req.CompanyIDs,
		ForceRerun: req.ForceRerun,
		BatchSize:  req.BatchSize,
	}, "api")
	if err != nil {
		var unknown *companies.UnknownIDsError
		if errors.As(err, &unknown) {
			respond.Error(c, http.StatusBadRequest, "validation_error", unknown.Error(), gin.H{
				"unknown_ids": unknown.IDs,
			})
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start analysis run", nil)
		return
	}

	respond.Accepted(c, gin.H{
		"run_id": run.ID,
		"status": run.Status,
	})
}

func (h *Handler) getRun(c *gin.Context) {
	run, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "run not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch run", nil)
		}
		return
	}
	respond.OK(c, runResponse(run))
}

func (h *Handler) getRunResults(c *gin.Context) {
	results, err := h.Svc.ResultsForRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "run not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch results", nil)
		}
		return
	}
	out := make([]gin.H, 0, len(results))
	for _, result := range results {
		item := gin.H{
			"company_id":              result.CompanyID,
			"status":                  result.Status,
			"total_tokens":            result.TotalTokens,
			"retry_count":             result.RetryCount,
			"processing_time_seconds": result.ProcessingSeconds,
		}
		if result.ErrorMessage != "" {
			item["error_message"] = result.ErrorMessage
			item["error_type"] = result.ErrorType
		}
		out = append(out, item)
	}
	respond.OK(c, out)
}

func (h *Handler) listRuns(c *gin.Context) {
	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}

	list, err := h.Svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list runs", nil)
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, run := range list {
		out = append(out, runResponse(run))
	}
	respond.OK(c, out)
}

func (h *Handler) cancelRun(c *gin.Context) {
	run, err := h.Svc.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "run not found", nil)
		case errors.Is(err, ErrNotCancellable):
			respond.Error(c, http.StatusConflict, "not_cancellable", "run already finished", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to cancel run", nil)
		}
		return
	}
	respond.OK(c, runResponse(run))
}

func (h *Handler) getStats(c *gin.Context) {
	stats, err := h.Svc.Stats(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch stats", nil)
		return
	}
	recent := make([]gin.H, 0, len(stats.RecentRuns))
	for _, run := range stats.RecentRuns {
		recent = append(recent, runResponse(run))
	}
	respond.OK(c, gin.H{
		"total_runs":           stats.TotalRuns,
		"completed_runs":       stats.CompletedRuns,
		"failed_runs":          stats.FailedRuns,
		"cancelled_runs":       stats.CancelledRuns,
		"insights_total":       stats.InsightsTotal,
		"avg_duration_seconds": stats.AvgDurationSecs,
		"recent_runs":          recent,
	})
}

func runResponse(run AnalysisRun) gin.H {
	resp := gin.H{
		"run_id":                 run.ID,
		"run_type":               run.RunType,
		"status":                 run.Status,
		"total_companies":        run.TotalCompanies,
		"processed_companies":    run.ProcessedCompanies,
		"failed_companies":       run.FailedCompanies,
		"insights_generated":     run.InsightsGenerated,
		"high_priority_insights": run.HighPriorityInsights,
		"error_count":            run.ErrorCount,
		"triggered_by":           run.TriggeredBy,
		"created_at":             run.CreatedAt,
	}
	if run.StartedAt != nil {
		resp["started_at"] = run.StartedAt
	}
	if run.CompletedAt != nil {
		resp["completed_at"] = run.CompletedAt
	}
	if run.DurationSeconds != nil {
		resp["duration_seconds"] = *run.DurationSeconds
	}
	if run.ErrorMessage != nil {
		resp["error_message"] = *run.ErrorMessage
	}
	return resp
}
