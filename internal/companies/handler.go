package companies

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"insights-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the companies repository.
type Handler struct {
	Repo Repo
	Now  func() time.Time
}

// NewHandler constructs a Handler.
func NewHandler(repo Repo) *Handler {
	return &Handler{Repo: repo, Now: time.Now}
}

// RegisterRoutes attaches company routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/companies", h.createCompany)
	rg.GET("/companies", h.listCompanies)
	rg.GET("/companies/:id", h.getCompany)
}

type createCompanyRequest struct {
	Name             string   `json:"name"`
	TickerSymbol     string   `json:"ticker_symbol"`
	Description      string   `json:"description"`
	TherapeuticAreas []string `json:"therapeutic_areas"`
	PriorityTier     int      `json:"priority_tier"`
}

func (h *Handler) createCompany(c *gin.Context) {
	var req createCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "name is required", nil)
		return
	}
	if req.PriorityTier < TierLow || req.PriorityTier > TierHigh {
		respond.Error(c, http.StatusBadRequest, "validation_error", "priority_tier out of range", nil)
		return
	}

	now := h.now()
	company := Company{
		ID:               uuid.NewString(),
		Name:             strings.TrimSpace(req.Name),
		TickerSymbol:     strings.TrimSpace(req.TickerSymbol),
		Description:      req.Description,
		TherapeuticAreas: req.TherapeuticAreas,
		IsActive:         true,
		MonitoringOn:     true,
		PriorityTier:     req.PriorityTier,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := h.Repo.Create(c.Request.Context(), company); err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create company", nil)
		return
	}
	respond.JSON(c, http.StatusCreated, companyResponse(company))
}

func (h *Handler) listCompanies(c *gin.Context) {
	list, err := h.Repo.ListMonitored(c.Request.Context(), ListFilter{})
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list companies", nil)
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, company := range list {
		out = append(out, companyResponse(company))
	}
	respond.OK(c, out)
}

func (h *Handler) getCompany(c *gin.Context) {
	company, err := h.Repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "company not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch company", nil)
		}
		return
	}
	respond.OK(c, companyResponse(company))
}

func companyResponse(company Company) gin.H {
	resp := gin.H{
		"id":                     company.ID,
		"name":                   company.Name,
		"ticker_symbol":          company.TickerSymbol,
		"description":            company.Description,
		"therapeutic_areas":      company.TherapeuticAreas,
		"is_active":              company.IsActive,
		"monitoring_enabled":     company.MonitoringOn,
		"priority_tier":          company.PriorityTier,
		"total_insights":         company.TotalInsights,
		"high_priority_insights": company.HighPriorityInsights,
		"created_at":             company.CreatedAt,
	}
	if company.LastAnalyzedAt != nil {
		resp["last_analyzed_at"] = company.LastAnalyzedAt
	}
	return resp
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}
