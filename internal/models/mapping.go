package models

import "time"

// MappingColumn binds one CSV column header to a schema field.
type MappingColumn struct {
	Column string `json:"column"`
	Field  string `json:"field"`
}

// FieldMapping is a named, ordered CSV column-to-field mapping preset
// for one content type. Column order defines the export header order.
type FieldMapping struct {
	ID          string      `db:"id" json:"id"`
	Name        string      `db:"name" json:"name"`
	ContentType ContentType `db:"content_type" json:"contentType"`
	Columns     []byte      `db:"columns" json:"columns"`
	CreatedBy   string      `db:"created_by" json:"createdBy"`
	CreatedAt   time.Time   `db:"created_at" json:"createdAt"`
}
