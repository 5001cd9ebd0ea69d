package insights

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"insights-backend/internal/shared/server/respond"
)

// Handler exposes read access to stored insights.
type Handler struct {
	Repo Repo
}

// NewHandler constructs a Handler.
func NewHandler(repo Repo) *Handler {
	return &Handler{Repo: repo}
}

// RegisterRoutes attaches insight routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/companies/:id/insights", h.listByCompany)
}

func (h *Handler) listByCompany(c *gin.Context) {
	limit := 50
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	list, err := h.Repo.ListByCompany(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list insights", nil)
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, insight := range list {
		item := gin.H{
			"id":               insight.ID,
			"company_id":       insight.CompanyID,
			"category":         insight.Category,
			"title":            insight.Title,
			"summary":          insight.Summary,
			"priority":         insight.Priority,
			"confidence_score": insight.ConfidenceScore,
			"status":           insight.Status,
			"created_at":       insight.CreatedAt,
		}
		if insight.EventDate != nil {
			item["event_date"] = insight.EventDate
		}
		out = append(out, item)
	}
	respond.OK(c, out)
}
