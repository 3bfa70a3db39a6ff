package service

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/artsdesk/artsdesk-api/internal/dto"
	"github.com/artsdesk/artsdesk-api/internal/models"
	"github.com/artsdesk/artsdesk-api/internal/schema"
	appErrors "github.com/artsdesk/artsdesk-api/pkg/errors"
	"github.com/artsdesk/artsdesk-api/pkg/export"
)

type mappingStore interface {
	Create(ctx context.Context, mapping *models.FieldMapping) error
	GetByName(ctx context.Context, name string, contentType models.ContentType) (*models.FieldMapping, error)
	List(ctx context.Context, contentType models.ContentType) ([]models.FieldMapping, error)
	Delete(ctx context.Context, id string) error
}

type transferFileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
}

type transferSigner interface {
	Generate(refID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (refID, relPath string, expiresAt time.Time, err error)
}

// ExportResult describes a rendered export file and its signed download link.
type ExportResult struct {
	FileName  string    `json:"fileName"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
	Rows      int       `json:"rows"`
}

// TransferDownload bundles an open export file for streaming.
type TransferDownload struct {
	File      *os.File
	Filename  string
	ExpiresAt time.Time
}

// TransferServiceConfig tunes import/export behaviour.
type TransferServiceConfig struct {
	APIPrefix     string
	MaxImportRows int
}

// TransferService renders CSV and PDF exports and ingests CSV imports,
// translating columns through named field mapping presets.
type TransferService struct {
	subs     submissionStore
	mappings mappingStore
	storage  transferFileStorage
	signer   transferSigner
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
	cfg      TransferServiceConfig
}

// NewTransferService constructs the service.
func NewTransferService(subs submissionStore, mappings mappingStore, storage transferFileStorage, signer transferSigner, logger *zap.Logger, cfg TransferServiceConfig) *TransferService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	if cfg.MaxImportRows <= 0 {
		cfg.MaxImportRows = 5000
	}
	return &TransferService{
		subs:     subs,
		mappings: mappings,
		storage:  storage,
		signer:   signer,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
		cfg:      cfg,
	}
}

// Export renders every submission of the content type into a downloadable
// file. Preset mappings control the header row; without one the schema's
// field order is used.
func (s *TransferService) Export(ctx context.Context, req dto.ExportRequest, actor *models.JWTClaims) (*ExportResult, error) {
	if err := s.requireModerator(actor); err != nil {
		return nil, err
	}
	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "pdf" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	sch, err := schema.ForContentType(req.ContentType)
	if err != nil {
		return nil, err
	}
	headers, fieldOf, err := s.resolveHeaders(ctx, req.ContentType, req.Preset, sch)
	if err != nil {
		return nil, err
	}

	submissions, err := s.collectSubmissions(ctx, req.ContentType)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]string, 0, len(submissions))
	for _, submission := range submissions {
		attrs := map[string]interface{}{}
		if len(submission.Attrs) > 0 {
			if err := json.Unmarshal(submission.Attrs, &attrs); err != nil {
				s.logger.Warn("skipping submission with malformed attributes", zap.String("submission_id", submission.ID), zap.Error(err))
				continue
			}
		}
		row := make(map[string]string, len(headers))
		for _, header := range headers {
			row[header] = stringifyAttr(attrs[fieldOf[header]])
		}
		rows = append(rows, row)
	}

	dataset := export.Dataset{Headers: headers, Rows: rows}
	var data []byte
	if format == "csv" {
		data, err = s.csv.Render(dataset)
	} else {
		data, err = s.pdf.Render(dataset, fmt.Sprintf("%s directory export", req.ContentType))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	refID := uuid.NewString()
	relPath := fmt.Sprintf("transfers/%s-%s.%s", strings.ToLower(string(req.ContentType)), refID, format)
	if _, err := s.storage.Save(relPath, data); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export file")
	}
	token, expiresAt, err := s.signer.Generate(refID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	return &ExportResult{
		FileName:  relPath,
		URL:       fmt.Sprintf("%s/transfers/download?token=%s", base, token),
		ExpiresAt: expiresAt,
		Rows:      len(rows),
	}, nil
}

// Download validates a signed token and opens the referenced export file.
func (s *TransferService) Download(ctx context.Context, token string) (*TransferDownload, error) {
	_, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export file no longer available")
	}
	return &TransferDownload{
		File:      file,
		Filename:  relPath[strings.LastIndex(relPath, "/")+1:],
		ExpiresAt: expiresAt,
	}, nil
}

// Import ingests a CSV stream. Every row is validated against the content
// type schema; failing rows are reported by line number while the rest are
// created as pending submissions owned by the importer.
func (s *TransferService) Import(ctx context.Context, req dto.ImportRequest, r io.Reader, actor *models.JWTClaims) (*dto.ImportResult, error) {
	if err := s.requireModerator(actor); err != nil {
		return nil, err
	}
	sch, err := schema.ForContentType(req.ContentType)
	if err != nil {
		return nil, err
	}
	fieldByColumn, err := s.resolveImportColumns(ctx, req, sch)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "csv file is empty")
	}
	fieldAt := make([]string, len(header))
	mappedFields := make([]string, 0, len(header))
	for i, column := range header {
		column = strings.TrimSpace(column)
		if field, ok := fieldByColumn[column]; ok {
			fieldAt[i] = field
			mappedFields = append(mappedFields, field)
		} else if len(fieldByColumn) == 0 && sch.HasField(column) {
			fieldAt[i] = column
			mappedFields = append(mappedFields, column)
		}
	}
	if len(mappedFields) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no csv columns match the schema")
	}

	result := &dto.ImportResult{}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			result.Errors = append(result.Errors, dto.ImportRowError{Line: line, Message: "malformed csv row"})
			continue
		}
		if line-1 > s.cfg.MaxImportRows {
			result.Errors = append(result.Errors, dto.ImportRowError{
				Line:    line,
				Message: fmt.Sprintf("row limit of %d exceeded, remaining rows skipped", s.cfg.MaxImportRows),
			})
			break
		}
		raw := make(map[string]string, len(mappedFields))
		for i, value := range record {
			if i < len(fieldAt) && fieldAt[i] != "" {
				raw[fieldAt[i]] = value
			}
		}
		clean, err := sch.ValidateMapped(raw, mappedFields)
		if err != nil {
			result.Errors = append(result.Errors, dto.ImportRowError{Line: line, Message: appErrors.FromError(err).Error()})
			continue
		}
		title, _ := clean["title"].(string)
		attrs, err := json.Marshal(clean)
		if err != nil {
			result.Errors = append(result.Errors, dto.ImportRowError{Line: line, Message: "failed to encode row"})
			continue
		}
		submission := &models.Submission{
			ContentType: req.ContentType,
			OwnerID:     actor.UserID,
			Status:      models.SubmissionStatusPending,
			Title:       title,
			Attrs:       attrs,
		}
		if err := s.subs.Create(ctx, submission); err != nil {
			result.Errors = append(result.Errors, dto.ImportRowError{Line: line, Message: "failed to store row"})
			continue
		}
		result.Imported++
	}
	return result, nil
}

// SaveMapping stores a named column mapping preset.
func (s *TransferService) SaveMapping(ctx context.Context, req dto.CreateMappingRequest, actor *models.JWTClaims) (*models.FieldMapping, error) {
	if err := s.requireModerator(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "name is required")
	}
	if len(req.Columns) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "columns is required")
	}
	sch, err := schema.ForContentType(req.ContentType)
	if err != nil {
		return nil, err
	}
	var fieldErrs []appErrors.FieldError
	for _, column := range req.Columns {
		if strings.TrimSpace(column.Column) == "" {
			fieldErrs = append(fieldErrs, appErrors.FieldError{Field: column.Field, Message: "column header is required"})
			continue
		}
		if !sch.HasField(column.Field) {
			fieldErrs = append(fieldErrs, appErrors.FieldError{
				Field:   column.Field,
				Message: fmt.Sprintf("unknown field for %s", req.ContentType),
			})
		}
	}
	if len(fieldErrs) > 0 {
		return nil, appErrors.WithFields("invalid mapping preset", fieldErrs)
	}
	columns, err := json.Marshal(req.Columns)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode mapping")
	}
	mapping := &models.FieldMapping{
		Name:        strings.TrimSpace(req.Name),
		ContentType: req.ContentType,
		Columns:     columns,
		CreatedBy:   actor.UserID,
	}
	if err := s.mappings.Create(ctx, mapping); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store mapping preset")
	}
	return mapping, nil
}

// ListMappings returns presets for one content type.
func (s *TransferService) ListMappings(ctx context.Context, contentType models.ContentType, actor *models.JWTClaims) ([]models.FieldMapping, error) {
	if err := s.requireModerator(actor); err != nil {
		return nil, err
	}
	mappings, err := s.mappings.List(ctx, contentType)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list mapping presets")
	}
	return mappings, nil
}

// DeleteMapping removes a preset.
func (s *TransferService) DeleteMapping(ctx context.Context, id string, actor *models.JWTClaims) error {
	if err := s.requireModerator(actor); err != nil {
		return err
	}
	if err := s.mappings.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete mapping preset")
	}
	return nil
}

func (s *TransferService) resolveHeaders(ctx context.Context, contentType models.ContentType, preset string, sch *schema.Schema) ([]string, map[string]string, error) {
	fieldOf := make(map[string]string)
	if strings.TrimSpace(preset) == "" {
		headers := sch.FieldNames()
		for _, name := range headers {
			fieldOf[name] = name
		}
		return headers, fieldOf, nil
	}
	columns, err := s.loadPresetColumns(ctx, preset, contentType)
	if err != nil {
		return nil, nil, err
	}
	headers := make([]string, 0, len(columns))
	for _, column := range columns {
		headers = append(headers, column.Column)
		fieldOf[column.Column] = column.Field
	}
	return headers, fieldOf, nil
}

func (s *TransferService) resolveImportColumns(ctx context.Context, req dto.ImportRequest, sch *schema.Schema) (map[string]string, error) {
	columns := req.Columns
	if len(columns) == 0 && strings.TrimSpace(req.Preset) != "" {
		loaded, err := s.loadPresetColumns(ctx, req.Preset, req.ContentType)
		if err != nil {
			return nil, err
		}
		columns = loaded
	}
	fieldByColumn := make(map[string]string, len(columns))
	for _, column := range columns {
		if !sch.HasField(column.Field) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown field %q in mapping", column.Field))
		}
		fieldByColumn[column.Column] = column.Field
	}
	return fieldByColumn, nil
}

func (s *TransferService) loadPresetColumns(ctx context.Context, preset string, contentType models.ContentType) ([]models.MappingColumn, error) {
	mapping, err := s.mappings.GetByName(ctx, preset, contentType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mapping preset not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mapping preset")
	}
	var columns []models.MappingColumn
	if err := json.Unmarshal(mapping.Columns, &columns); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode mapping preset")
	}
	if len(columns) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "mapping preset has no columns")
	}
	return columns, nil
}

func (s *TransferService) collectSubmissions(ctx context.Context, contentType models.ContentType) ([]models.Submission, error) {
	const batch = 200
	all := make([]models.Submission, 0, batch)
	for offset := 0; ; offset += batch {
		page, err := s.subs.List(ctx, models.SubmissionFilter{
			ContentType: contentType,
			Limit:       batch,
			Offset:      offset,
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions for export")
		}
		all = append(all, page...)
		if len(page) < batch {
			return all, nil
		}
	}
}

func (s *TransferService) requireModerator(actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !canModerate(actor.Role) {
		return appErrors.ErrForbidden
	}
	return nil
}

func stringifyAttr(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, stringifyAttr(item))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprintf("%v", v)
	}
}
