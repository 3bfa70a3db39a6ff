package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/artsdesk/artsdesk-api/internal/models"
)

// MappingRepository persists named CSV column mapping presets.
type MappingRepository struct {
	db *sqlx.DB
}

// NewMappingRepository constructs the repository.
func NewMappingRepository(db *sqlx.DB) *MappingRepository {
	return &MappingRepository{db: db}
}

// Create inserts a preset. The (name, content_type) pair is unique.
func (r *MappingRepository) Create(ctx context.Context, mapping *models.FieldMapping) error {
	if mapping.ID == "" {
		mapping.ID = uuid.NewString()
	}
	if mapping.CreatedAt.IsZero() {
		mapping.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO field_mappings (id, name, content_type, columns, created_by, created_at)
	VALUES (:id, :name, :content_type, :columns, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, mapping); err != nil {
		return fmt.Errorf("create field mapping: %w", err)
	}
	return nil
}

// GetByName fetches a preset by name and content type.
func (r *MappingRepository) GetByName(ctx context.Context, name string, contentType models.ContentType) (*models.FieldMapping, error) {
	const query = `SELECT id, name, content_type, columns, created_by, created_at
	FROM field_mappings WHERE name = $1 AND content_type = $2 LIMIT 1`
	var mapping models.FieldMapping
	if err := r.db.GetContext(ctx, &mapping, query, name, contentType); err != nil {
		return nil, err
	}
	return &mapping, nil
}

// List returns presets for one content type, alphabetically.
func (r *MappingRepository) List(ctx context.Context, contentType models.ContentType) ([]models.FieldMapping, error) {
	const query = `SELECT id, name, content_type, columns, created_by, created_at
	FROM field_mappings WHERE content_type = $1 ORDER BY name`
	var mappings []models.FieldMapping
	if err := r.db.SelectContext(ctx, &mappings, query, contentType); err != nil {
		return nil, fmt.Errorf("list field mappings: %w", err)
	}
	return mappings, nil
}

// Delete removes a preset by identifier.
func (r *MappingRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM field_mappings WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete field mapping: %w", err)
	}
	return nil
}
