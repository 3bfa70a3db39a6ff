package dto

import "github.com/artsdesk/artsdesk-api/internal/models"

// CreateSubmissionRequest payload for submitting a new directory item.
type CreateSubmissionRequest struct {
	ContentType models.ContentType `json:"contentType"`
	Attrs       map[string]string  `json:"attrs"`
	Draft       bool               `json:"draft"`
}

// UpdateSubmissionRequest payload for owner edits while still actionable.
type UpdateSubmissionRequest struct {
	Attrs map[string]string `json:"attrs"`
}

// SubmissionQuery mirrors supported listing filters.
type SubmissionQuery struct {
	ContentType models.ContentType
	Status      []models.SubmissionStatus
	Page        int
}
