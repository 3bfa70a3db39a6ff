package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/artsdesk/artsdesk-api/internal/dto"
	"github.com/artsdesk/artsdesk-api/internal/models"
	"github.com/artsdesk/artsdesk-api/internal/service"
	appErrors "github.com/artsdesk/artsdesk-api/pkg/errors"
	"github.com/artsdesk/artsdesk-api/pkg/response"
)

type submissionService interface {
	Create(ctx context.Context, req dto.CreateSubmissionRequest, actor *models.JWTClaims) (*models.Submission, error)
	Update(ctx context.Context, id string, req dto.UpdateSubmissionRequest, actor *models.JWTClaims) (*models.Submission, error)
	Submit(ctx context.Context, id string, actor *models.JWTClaims) (*models.Submission, error)
	Withdraw(ctx context.Context, id string, actor *models.JWTClaims) error
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Submission, error)
	List(ctx context.Context, query dto.SubmissionQuery, actor *models.JWTClaims) ([]models.Submission, error)
}

type uploadService interface {
	Attach(ctx context.Context, submissionID string, uploads []service.GalleryUpload, actor *models.JWTClaims) (*models.Submission, error)
}

// SubmissionHandler exposes REST endpoints for the submission workflow.
type SubmissionHandler struct {
	service submissionService
	uploads uploadService
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(service submissionService, uploads uploadService) *SubmissionHandler {
	return &SubmissionHandler{service: service, uploads: uploads}
}

// Create godoc
// @Summary Submit a new directory item
// @Tags Submissions
// @Accept json
// @Produce json
// @Param payload body dto.CreateSubmissionRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Router /submissions [post]
func (h *SubmissionHandler) Create(c *gin.Context) {
	var req dto.CreateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid submission payload"))
		return
	}
	submission, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, submission, nil)
}

// List godoc
// @Summary List submissions
// @Tags Submissions
// @Produce json
// @Param contentType query string false "Content type"
// @Param status query string false "Comma separated statuses"
// @Param page query int false "Page number"
// @Success 200 {object} response.Envelope
// @Router /submissions [get]
func (h *SubmissionHandler) List(c *gin.Context) {
	query := dto.SubmissionQuery{
		Page: parsePage(c.Query("page")),
	}
	if rawType := c.Query("contentType"); rawType != "" {
		query.ContentType = models.ContentType(strings.ToUpper(strings.TrimSpace(rawType)))
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		parts := strings.Split(rawStatus, ",")
		statuses := make([]models.SubmissionStatus, 0, len(parts))
		for _, part := range parts {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			statuses = append(statuses, models.SubmissionStatus(part))
		}
		query.Status = statuses
	}
	submissions, err := h.service.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submissions, nil)
}

// Get godoc
// @Summary Get submission detail
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id} [get]
func (h *SubmissionHandler) Get(c *gin.Context) {
	submission, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// Update godoc
// @Summary Update an actionable submission
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body dto.UpdateSubmissionRequest true "Updated attributes"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id} [put]
func (h *SubmissionHandler) Update(c *gin.Context) {
	var req dto.UpdateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid submission payload"))
		return
	}
	submission, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// Submit godoc
// @Summary Move a draft into the moderation queue
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/submit [post]
func (h *SubmissionHandler) Submit(c *gin.Context) {
	submission, err := h.service.Submit(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// Withdraw godoc
// @Summary Withdraw an actionable submission
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 204 {object} response.Envelope
// @Router /submissions/{id}/withdraw [post]
func (h *SubmissionHandler) Withdraw(c *gin.Context) {
	if err := h.service.Withdraw(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UploadGallery godoc
// @Summary Attach gallery images to a submission
// @Tags Submissions
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Submission ID"
// @Param images formData file true "Image files"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/gallery [post]
func (h *SubmissionHandler) UploadGallery(c *gin.Context) {
	if h.uploads == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "upload service not configured"))
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "multipart form required"))
		return
	}
	files := form.File["images"]
	uploads := make([]service.GalleryUpload, 0, len(files))
	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "failed to read uploaded file"))
			return
		}
		defer file.Close()
		uploads = append(uploads, service.GalleryUpload{
			Filename: header.Filename,
			Size:     header.Size,
			Content:  file,
		})
	}
	submission, err := h.uploads.Attach(c.Request.Context(), c.Param("id"), uploads, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

func parsePage(raw string) int {
	page, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || page < 1 {
		return 1
	}
	return page
}
