package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/artsdesk/artsdesk-api/internal/models"
	"github.com/artsdesk/artsdesk-api/pkg/response"
)

type statsService interface {
	Moderation(ctx context.Context, actor *models.JWTClaims) (*models.ModerationStats, error)
}

// StatsHandler exposes moderation dashboard aggregates.
type StatsHandler struct {
	service statsService
}

// NewStatsHandler constructs the handler.
func NewStatsHandler(service statsService) *StatsHandler {
	return &StatsHandler{service: service}
}

// Moderation godoc
// @Summary Moderation queue statistics
// @Tags Stats
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /stats/moderation [get]
func (h *StatsHandler) Moderation(c *gin.Context) {
	stats, err := h.service.Moderation(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
