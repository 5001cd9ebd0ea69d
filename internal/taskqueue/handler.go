package taskqueue

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"insights-backend/internal/shared/server/respond"
)

// Handler exposes dead-letter inspection and replay.
type Handler struct {
	Pool *Pool
}

// NewHandler constructs a Handler.
func NewHandler(pool *Pool) *Handler {
	return &Handler{Pool: pool}
}

// RegisterRoutes attaches task queue routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/tasks/dead-letter", h.listDeadLetters)
	rg.POST("/tasks/dead-letter/:id/replay", h.replayDeadLetter)
}

func (h *Handler) listDeadLetters(c *gin.Context) {
	entries := h.Pool.DeadLetters.List()
	out := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		out = append(out, gin.H{
			"id":         entry.Task.ID,
			"task":       entry.Task.Name,
			"lane":       entry.Task.Lane,
			"attempts":   entry.Task.Attempts,
			"last_error": entry.LastError,
			"dead_at":    entry.DeadAt,
			"expires_at": entry.ExpiresAt,
		})
	}
	respond.OK(c, out)
}

func (h *Handler) replayDeadLetter(c *gin.Context) {
	task, err := h.Pool.Replay(c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrDeadLetterNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "dead-letter entry not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to replay task", nil)
		}
		return
	}
	respond.Accepted(c, gin.H{
		"id":   task.ID,
		"task": task.Name,
		"lane": task.Lane,
	})
}
