package schema

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/artsdesk/artsdesk-api/internal/models"
	appErrors "github.com/artsdesk/artsdesk-api/pkg/errors"
)

// FieldType enumerates the declared types a schema field can take.
type FieldType string

const (
	TypeString   FieldType = "string"
	TypeInteger  FieldType = "integer"
	TypeBoolean  FieldType = "boolean"
	TypeURL      FieldType = "url"
	TypeEmail    FieldType = "email"
	TypeDate     FieldType = "date"
	TypeRichText FieldType = "richtext"
	TypeIDList   FieldType = "id-list"
)

// DateLayout is the canonical wire format for date fields.
const DateLayout = "2006-01-02"

// Field declares one attribute of a content type.
type Field struct {
	Name      string
	Type      FieldType
	Required  bool
	MaxLength int
}

// Schema validates and sanitizes the attribute map of one content type.
type Schema struct {
	ContentType models.ContentType
	Fields      []Field

	// DateRange optionally names a (start, end) field pair that must be ordered.
	DateRangeStart string
	DateRangeEnd   string
}

var validate = validator.New()

// ForContentType returns the registered schema for a content type.
func ForContentType(ct models.ContentType) (*Schema, error) {
	s, ok := registry[ct]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported content type: %s", ct))
	}
	return s, nil
}

// FieldNames returns the declared field names in schema order, used as the
// default CSV export header.
func (s *Schema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}

// HasField reports whether the schema declares the named field.
func (s *Schema) HasField(name string) bool {
	for _, f := range s.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Validate sanitizes raw string values against the schema. All failures are
// collected and returned together as one aggregated validation error; the
// sanitized map is only returned when every field passed.
func (s *Schema) Validate(raw map[string]string) (map[string]interface{}, error) {
	return s.validateScoped(raw, nil)
}

// ValidateMapped behaves like Validate but limits required-field enforcement
// to the listed fields. CSV imports use it so a column mapping that covers
// only part of the schema does not reject every row over absent columns.
func (s *Schema) ValidateMapped(raw map[string]string, mapped []string) (map[string]interface{}, error) {
	scope := make(map[string]struct{}, len(mapped))
	for _, name := range mapped {
		scope[name] = struct{}{}
	}
	return s.validateScoped(raw, scope)
}

func (s *Schema) validateScoped(raw map[string]string, scope map[string]struct{}) (map[string]interface{}, error) {
	clean := make(map[string]interface{}, len(raw))
	var fieldErrs []appErrors.FieldError

	for _, field := range s.Fields {
		value := strings.TrimSpace(raw[field.Name])
		if value == "" {
			inScope := true
			if scope != nil {
				_, inScope = scope[field.Name]
			}
			if field.Required && inScope {
				fieldErrs = append(fieldErrs, appErrors.FieldError{
					Field:   field.Name,
					Message: fmt.Sprintf("%s is required", field.Name),
				})
			}
			continue
		}

		sanitized, err := sanitizeValue(field, value)
		if err != nil {
			fieldErrs = append(fieldErrs, appErrors.FieldError{Field: field.Name, Message: err.Error()})
			continue
		}
		clean[field.Name] = sanitized
	}

	if s.DateRangeStart != "" && s.DateRangeEnd != "" {
		start, okStart := clean[s.DateRangeStart].(string)
		end, okEnd := clean[s.DateRangeEnd].(string)
		if okStart && okEnd && start > end {
			fieldErrs = append(fieldErrs, appErrors.FieldError{
				Field:   s.DateRangeStart,
				Message: "Start date cannot be after end date",
			})
		}
	}

	if len(fieldErrs) > 0 {
		return nil, appErrors.WithFields(fmt.Sprintf("invalid %s submission", strings.ToLower(string(s.ContentType))), fieldErrs)
	}
	return clean, nil
}

func sanitizeValue(field Field, value string) (interface{}, error) {
	if field.MaxLength > 0 && len(value) > field.MaxLength {
		return nil, fmt.Errorf("%s exceeds %d characters", field.Name, field.MaxLength)
	}

	switch field.Type {
	case TypeInteger:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer", field.Name)
		}
		return n, nil
	case TypeBoolean:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be a boolean", field.Name)
		}
		return b, nil
	case TypeURL:
		if err := validate.Var(value, "url"); err != nil {
			return nil, fmt.Errorf("%s must be a valid URL", field.Name)
		}
		return value, nil
	case TypeEmail:
		if err := validate.Var(value, "email"); err != nil {
			return nil, fmt.Errorf("%s must be a valid email address", field.Name)
		}
		return strings.ToLower(value), nil
	case TypeDate:
		if _, err := time.Parse(DateLayout, value); err != nil {
			return nil, fmt.Errorf("%s must be a date in YYYY-MM-DD format", field.Name)
		}
		return value, nil
	case TypeIDList:
		parts := strings.Split(value, ",")
		ids := make([]string, 0, len(parts))
		for _, part := range parts {
			id := strings.TrimSpace(part)
			if id == "" {
				continue
			}
			if err := validate.Var(id, "uuid4"); err != nil {
				return nil, fmt.Errorf("%s contains an invalid identifier", field.Name)
			}
			ids = append(ids, id)
		}
		return ids, nil
	case TypeRichText:
		// Rich text keeps its markup; escaping happens at render time.
		return value, nil
	default:
		// Unknown declared types fall back to plain-text sanitization.
		return html.EscapeString(value), nil
	}
}

var registry = map[models.ContentType]*Schema{
	models.ContentTypeEvent: {
		ContentType: models.ContentTypeEvent,
		Fields: []Field{
			{Name: "title", Type: TypeString, Required: true, MaxLength: 200},
			{Name: "description", Type: TypeRichText},
			{Name: "event_start_date", Type: TypeDate, Required: true},
			{Name: "event_end_date", Type: TypeDate, Required: true},
			{Name: "venue", Type: TypeString, MaxLength: 200},
			{Name: "address", Type: TypeString, MaxLength: 300},
			{Name: "city", Type: TypeString, MaxLength: 100},
			{Name: "website", Type: TypeURL},
			{Name: "contact_email", Type: TypeEmail},
			{Name: "capacity", Type: TypeInteger},
			{Name: "free_entry", Type: TypeBoolean},
			{Name: "artist_ids", Type: TypeIDList},
		},
		DateRangeStart: "event_start_date",
		DateRangeEnd:   "event_end_date",
	},
	models.ContentTypeArtist: {
		ContentType: models.ContentTypeArtist,
		Fields: []Field{
			{Name: "title", Type: TypeString, Required: true, MaxLength: 200},
			{Name: "bio", Type: TypeRichText},
			{Name: "discipline", Type: TypeString, MaxLength: 100},
			{Name: "city", Type: TypeString, MaxLength: 100},
			{Name: "website", Type: TypeURL},
			{Name: "contact_email", Type: TypeEmail, Required: true},
		},
	},
	models.ContentTypeArtwork: {
		ContentType: models.ContentTypeArtwork,
		Fields: []Field{
			{Name: "title", Type: TypeString, Required: true, MaxLength: 200},
			{Name: "description", Type: TypeRichText},
			{Name: "medium", Type: TypeString, MaxLength: 100},
			{Name: "year", Type: TypeInteger},
			{Name: "for_sale", Type: TypeBoolean},
			{Name: "artist_ids", Type: TypeIDList},
		},
	},
	models.ContentTypeOrganization: {
		ContentType: models.ContentTypeOrganization,
		Fields: []Field{
			{Name: "title", Type: TypeString, Required: true, MaxLength: 200},
			{Name: "description", Type: TypeRichText},
			{Name: "address", Type: TypeString, MaxLength: 300},
			{Name: "city", Type: TypeString, MaxLength: 100},
			{Name: "website", Type: TypeURL},
			{Name: "contact_email", Type: TypeEmail, Required: true},
		},
	},
}
