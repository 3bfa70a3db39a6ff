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

type upgradeService interface {
	Request(ctx context.Context, req dto.CreateUpgradeRequest, actor *models.JWTClaims) (*models.UpgradeRequest, error)
	Approve(ctx context.Context, id string, actor *models.JWTClaims) (*models.UpgradeRequest, error)
	Deny(ctx context.Context, id string, req dto.DenyUpgradeRequest, actor *models.JWTClaims) (*models.UpgradeRequest, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.UpgradeRequest, error)
	List(ctx context.Context, filter models.UpgradeFilter, actor *models.JWTClaims) ([]models.UpgradeRequest, error)
}

// UpgradeHandler exposes role upgrade request endpoints.
type UpgradeHandler struct {
	service upgradeService
}

// NewUpgradeHandler constructs the handler.
func NewUpgradeHandler(service upgradeService) *UpgradeHandler {
	return &UpgradeHandler{service: service}
}

// Create godoc
// @Summary Request a role upgrade
// @Tags Upgrades
// @Accept json
// @Produce json
// @Param payload body dto.CreateUpgradeRequest true "Upgrade payload"
// @Success 201 {object} response.Envelope
// @Router /upgrades [post]
func (h *UpgradeHandler) Create(c *gin.Context) {
	var req dto.CreateUpgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid upgrade payload"))
		return
	}
	req.TargetRole = models.UserRole(strings.ToUpper(string(req.TargetRole)))
	request, err := h.service.Request(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, request, nil)
}

// List godoc
// @Summary List upgrade requests
// @Tags Upgrades
// @Produce json
// @Param status query string false "Upgrade status"
// @Success 200 {object} response.Envelope
// @Router /upgrades [get]
func (h *UpgradeHandler) List(c *gin.Context) {
	filter := models.UpgradeFilter{}
	if rawStatus := c.Query("status"); rawStatus != "" {
		filter.Status = []models.UpgradeStatus{models.UpgradeStatus(strings.ToUpper(strings.TrimSpace(rawStatus)))}
	}
	requests, err := h.service.List(c.Request.Context(), filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Get godoc
// @Summary Get upgrade request detail
// @Tags Upgrades
// @Produce json
// @Param id path string true "Upgrade request ID"
// @Success 200 {object} response.Envelope
// @Router /upgrades/{id} [get]
func (h *UpgradeHandler) Get(c *gin.Context) {
	request, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Approve godoc
// @Summary Approve an upgrade request
// @Tags Upgrades
// @Produce json
// @Param id path string true "Upgrade request ID"
// @Success 200 {object} response.Envelope
// @Router /upgrades/{id}/approve [post]
func (h *UpgradeHandler) Approve(c *gin.Context) {
	request, err := h.service.Approve(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Deny godoc
// @Summary Deny an upgrade request
// @Tags Upgrades
// @Accept json
// @Produce json
// @Param id path string true "Upgrade request ID"
// @Param payload body dto.DenyUpgradeRequest true "Denial reason"
// @Success 200 {object} response.Envelope
// @Router /upgrades/{id}/deny [post]
func (h *UpgradeHandler) Deny(c *gin.Context) {
	var req dto.DenyUpgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid denial payload"))
		return
	}
	request, err := h.service.Deny(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}
