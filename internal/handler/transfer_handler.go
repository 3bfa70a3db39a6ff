package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/artsdesk/artsdesk-api/internal/dto"
	"github.com/artsdesk/artsdesk-api/internal/models"
	"github.com/artsdesk/artsdesk-api/internal/service"
	appErrors "github.com/artsdesk/artsdesk-api/pkg/errors"
	"github.com/artsdesk/artsdesk-api/pkg/response"
)

type transferService interface {
	Export(ctx context.Context, req dto.ExportRequest, actor *models.JWTClaims) (*service.ExportResult, error)
	Download(ctx context.Context, token string) (*service.TransferDownload, error)
	Import(ctx context.Context, req dto.ImportRequest, r io.Reader, actor *models.JWTClaims) (*dto.ImportResult, error)
	SaveMapping(ctx context.Context, req dto.CreateMappingRequest, actor *models.JWTClaims) (*models.FieldMapping, error)
	ListMappings(ctx context.Context, contentType models.ContentType, actor *models.JWTClaims) ([]models.FieldMapping, error)
	DeleteMapping(ctx context.Context, id string, actor *models.JWTClaims) error
}

// TransferHandler exposes CSV/PDF export and CSV import endpoints.
type TransferHandler struct {
	service transferService
}

// NewTransferHandler constructs the handler.
func NewTransferHandler(service transferService) *TransferHandler {
	return &TransferHandler{service: service}
}

// Export godoc
// @Summary Export submissions to CSV or PDF
// @Tags Transfers
// @Produce json
// @Param contentType query string true "Content type"
// @Param preset query string false "Mapping preset name"
// @Param format query string false "csv or pdf"
// @Success 200 {object} response.Envelope
// @Router /transfers/export [get]
func (h *TransferHandler) Export(c *gin.Context) {
	req := dto.ExportRequest{
		ContentType: models.ContentType(strings.ToUpper(strings.TrimSpace(c.Query("contentType")))),
		Preset:      strings.TrimSpace(c.Query("preset")),
		Format:      strings.TrimSpace(c.Query("format")),
	}
	result, err := h.service.Export(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Download an export file via signed token
// @Tags Transfers
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /transfers/download [get]
func (h *TransferHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	download, err := h.service.Download(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export file"))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+download.Filename+`"`)
	c.DataFromReader(http.StatusOK, info.Size(), "application/octet-stream", download.File, nil)
}

// Import godoc
// @Summary Import submissions from a CSV file
// @Tags Transfers
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file"
// @Param contentType formData string true "Content type"
// @Param preset formData string false "Mapping preset name"
// @Param columns formData string false "JSON encoded column mappings"
// @Success 200 {object} response.Envelope
// @Router /transfers/import [post]
func (h *TransferHandler) Import(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "csv file is required"))
		return
	}
	req := dto.ImportRequest{
		ContentType: models.ContentType(strings.ToUpper(strings.TrimSpace(c.PostForm("contentType")))),
		Preset:      strings.TrimSpace(c.PostForm("preset")),
	}
	if rawColumns := c.PostForm("columns"); rawColumns != "" {
		if err := json.Unmarshal([]byte(rawColumns), &req.Columns); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "columns must be a JSON array of mappings"))
			return
		}
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "failed to read uploaded file"))
		return
	}
	defer file.Close()

	result, err := h.service.Import(c.Request.Context(), req, file, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// CreateMapping godoc
// @Summary Store a column mapping preset
// @Tags Transfers
// @Accept json
// @Produce json
// @Param payload body dto.CreateMappingRequest true "Mapping preset"
// @Success 201 {object} response.Envelope
// @Router /transfers/mappings [post]
func (h *TransferHandler) CreateMapping(c *gin.Context) {
	var req dto.CreateMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid mapping payload"))
		return
	}
	mapping, err := h.service.SaveMapping(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, mapping, nil)
}

// ListMappings godoc
// @Summary List mapping presets for a content type
// @Tags Transfers
// @Produce json
// @Param contentType query string true "Content type"
// @Success 200 {object} response.Envelope
// @Router /transfers/mappings [get]
func (h *TransferHandler) ListMappings(c *gin.Context) {
	contentType := models.ContentType(strings.ToUpper(strings.TrimSpace(c.Query("contentType"))))
	mappings, err := h.service.ListMappings(c.Request.Context(), contentType, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mappings, nil)
}

// DeleteMapping godoc
// @Summary Delete a mapping preset
// @Tags Transfers
// @Produce json
// @Param id path string true "Mapping preset ID"
// @Success 204 {object} response.Envelope
// @Router /transfers/mappings/{id} [delete]
func (h *TransferHandler) DeleteMapping(c *gin.Context) {
	if err := h.service.DeleteMapping(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
