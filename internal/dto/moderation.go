package dto

import "github.com/artsdesk/artsdesk-api/internal/models"

// ModerateRequest carries one bulk moderation action.
type ModerateRequest struct {
	IDs    []string `json:"ids"`
	Reason string   `json:"reason"`
}

// QueueQuery filters the moderation queue.
type QueueQuery struct {
	ContentType models.ContentType
	Page        int
}
