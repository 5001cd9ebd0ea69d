package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"insights-backend/internal/companies"
	"insights-backend/internal/insights"
	"insights-backend/internal/runs"
	"insights-backend/internal/shared/config"
	"insights-backend/internal/shared/metrics"
	"insights-backend/internal/shared/server/middleware"
	"insights-backend/internal/shared/server/respond"
	"insights-backend/internal/taskqueue"
)

// RouterDeps carries the handlers wired into the HTTP surface.
type RouterDeps struct {
	Config           config.Config
	CompaniesHandler *companies.Handler
	InsightsHandler  *insights.Handler
	RunsHandler      *runs.Handler
	TasksHandler     *taskqueue.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(middleware.RateLimitConfig{
			GroupFor: rateLimitGroup,
			Rules: map[string]middleware.RateLimitRule{
				"TRIGGER": {Rate: 1, Burst: 5},
				"POLLING": {Rate: 5, Burst: 20},
			},
		}),
	)

	r.GET("/healthz", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	if deps.CompaniesHandler != nil {
		deps.CompaniesHandler.RegisterRoutes(api)
	}
	if deps.InsightsHandler != nil {
		deps.InsightsHandler.RegisterRoutes(api)
	}
	if deps.RunsHandler != nil {
		deps.RunsHandler.RegisterRoutes(api)
	}
	if deps.TasksHandler != nil {
		deps.TasksHandler.RegisterRoutes(api)
	}

	return r
}

// rateLimitGroup throttles run triggers harder than status polling. Paths
// outside the analysis surface are not limited.
func rateLimitGroup(c *gin.Context) string {
	switch c.FullPath() {
	case "/api/v1/analysis/runs":
		if c.Request.Method == http.MethodPost {
			return "TRIGGER"
		}
		return "POLLING"
	case "/api/v1/analysis/runs/:id", "/api/v1/analysis/runs/:id/results", "/api/v1/analysis/stats":
		return "POLLING"
	}
	return ""
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
