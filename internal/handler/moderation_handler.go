package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/artsdesk/artsdesk-api/internal/dto"
	"github.com/artsdesk/artsdesk-api/internal/models"
	appErrors "github.com/artsdesk/artsdesk-api/pkg/errors"
	"github.com/artsdesk/artsdesk-api/pkg/response"
)

type moderationService interface {
	Queue(ctx context.Context, query dto.QueueQuery, actor *models.JWTClaims) ([]models.Submission, error)
	PendingCounts(ctx context.Context, actor *models.JWTClaims) ([]models.PendingCount, error)
	Approve(ctx context.Context, req dto.ModerateRequest, actor *models.JWTClaims) (*models.ModerationResult, error)
	Deny(ctx context.Context, req dto.ModerateRequest, actor *models.JWTClaims) (*models.ModerationResult, error)
	History(ctx context.Context, filter models.ModerationActionFilter, actor *models.JWTClaims) ([]models.ModerationAction, error)
}

type statsInvalidator interface {
	Invalidate(ctx context.Context)
}

type decisionRecorder interface {
	RecordDecision(outcome string)
}

// ModerationHandler exposes the moderator queue and transition endpoints.
type ModerationHandler struct {
	service moderationService
	stats   statsInvalidator
	metrics decisionRecorder
}

// NewModerationHandler constructs the handler. Stats and metrics are optional.
func NewModerationHandler(service moderationService, stats statsInvalidator, metrics decisionRecorder) *ModerationHandler {
	return &ModerationHandler{service: service, stats: stats, metrics: metrics}
}

// Queue godoc
// @Summary List submissions awaiting a decision
// @Tags Moderation
// @Produce json
// @Param contentType query string false "Content type"
// @Param page query int false "Page number"
// @Success 200 {object} response.Envelope
// @Router /moderation/queue [get]
func (h *ModerationHandler) Queue(c *gin.Context) {
	query := dto.QueueQuery{Page: parsePage(c.Query("page"))}
	if rawType := c.Query("contentType"); rawType != "" {
		query.ContentType = models.ContentType(strings.ToUpper(strings.TrimSpace(rawType)))
	}
	submissions, err := h.service.Queue(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submissions, nil)
}

// PendingCounts godoc
// @Summary Pending submission counts per content type
// @Tags Moderation
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /moderation/queue/counts [get]
func (h *ModerationHandler) PendingCounts(c *gin.Context) {
	counts, err := h.service.PendingCounts(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, counts, nil)
}

// Approve godoc
// @Summary Publish the listed submissions
// @Tags Moderation
// @Accept json
// @Produce json
// @Param payload body dto.ModerateRequest true "Submission ids and optional reason"
// @Success 200 {object} response.Envelope
// @Router /moderation/approve [post]
func (h *ModerationHandler) Approve(c *gin.Context) {
	h.decide(c, h.service.Approve, "approved")
}

// Deny godoc
// @Summary Trash the listed submissions
// @Tags Moderation
// @Accept json
// @Produce json
// @Param payload body dto.ModerateRequest true "Submission ids and optional reason"
// @Success 200 {object} response.Envelope
// @Router /moderation/deny [post]
func (h *ModerationHandler) Deny(c *gin.Context) {
	h.decide(c, h.service.Deny, "denied")
}

// History godoc
// @Summary List the moderation audit trail
// @Tags Moderation
// @Produce json
// @Param submissionId query string false "Submission ID"
// @Param actorId query string false "Actor ID"
// @Param kind query string false "Action kind"
// @Success 200 {object} response.Envelope
// @Router /moderation/history [get]
func (h *ModerationHandler) History(c *gin.Context) {
	filter := models.ModerationActionFilter{
		SubmissionID: strings.TrimSpace(c.Query("submissionId")),
		ActorID:      strings.TrimSpace(c.Query("actorId")),
		Kind:         strings.ToUpper(strings.TrimSpace(c.Query("kind"))),
	}
	actions, err := h.service.History(c.Request.Context(), filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, actions, nil)
}

type decideFunc func(ctx context.Context, req dto.ModerateRequest, actor *models.JWTClaims) (*models.ModerationResult, error)

func (h *ModerationHandler) decide(c *gin.Context, fn decideFunc, outcome string) {
	var req dto.ModerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid moderation payload"))
		return
	}
	result, err := fn(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Processed > 0 {
		if h.metrics != nil {
			for i := 0; i < result.Processed; i++ {
				h.metrics.RecordDecision(outcome)
			}
		}
		if h.stats != nil {
			h.stats.Invalidate(c.Request.Context())
		}
	}
	response.JSON(c, http.StatusOK, result, nil)
}
