package dto

import "github.com/artsdesk/artsdesk-api/internal/models"

// ExportRequest selects what to export and how.
type ExportRequest struct {
	ContentType models.ContentType
	Preset      string
	Format      string
}

// ImportRequest accompanies an uploaded CSV file.
type ImportRequest struct {
	ContentType models.ContentType     `json:"contentType"`
	Preset      string                 `json:"preset"`
	Columns     []models.MappingColumn `json:"columns,omitempty"`
}

// ImportRowError reports one rejected CSV line.
type ImportRowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// ImportResult summarises an import run.
type ImportResult struct {
	Imported int              `json:"imported"`
	Errors   []ImportRowError `json:"errors,omitempty"`
}

// CreateMappingRequest stores a named column mapping preset.
type CreateMappingRequest struct {
	Name        string                 `json:"name"`
	ContentType models.ContentType     `json:"contentType"`
	Columns     []models.MappingColumn `json:"columns"`
}
