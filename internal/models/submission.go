package models

import "time"

// ContentType enumerates the submittable directory entities.
type ContentType string

const (
	ContentTypeEvent        ContentType = "EVENT"
	ContentTypeArtist       ContentType = "ARTIST"
	ContentTypeArtwork      ContentType = "ARTWORK"
	ContentTypeOrganization ContentType = "ORGANIZATION"
)

// ContentTypes lists every supported content type.
var ContentTypes = []ContentType{
	ContentTypeEvent,
	ContentTypeArtist,
	ContentTypeArtwork,
	ContentTypeOrganization,
}

// SubmissionStatus captures the moderation lifecycle of a submission.
// DRAFT and PENDING are actionable; PUBLISHED and TRASHED are terminal
// for that submission instance.
type SubmissionStatus string

const (
	SubmissionStatusDraft     SubmissionStatus = "DRAFT"
	SubmissionStatusPending   SubmissionStatus = "PENDING"
	SubmissionStatusPublished SubmissionStatus = "PUBLISHED"
	SubmissionStatusTrashed   SubmissionStatus = "TRASHED"
)

// ActionableStatuses are the statuses a moderator may still act on.
var ActionableStatuses = []SubmissionStatus{SubmissionStatusDraft, SubmissionStatusPending}

// Submission stores one user-submitted directory item awaiting or past moderation.
type Submission struct {
	ID            string           `db:"id" json:"id"`
	ContentType   ContentType      `db:"content_type" json:"contentType"`
	OwnerID       string           `db:"owner_id" json:"ownerId"`
	Status        SubmissionStatus `db:"status" json:"status"`
	Title         string           `db:"title" json:"title"`
	Attrs         []byte           `db:"attrs" json:"attrs"`
	FeaturedImage *string          `db:"featured_image" json:"featuredImage,omitempty"`
	Gallery       []byte           `db:"gallery" json:"gallery,omitempty"`
	SubmittedAt   time.Time        `db:"submitted_at" json:"submittedAt"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updatedAt"`
	DecidedBy     *string          `db:"decided_by" json:"decidedBy,omitempty"`
	DecidedAt     *time.Time       `db:"decided_at" json:"decidedAt,omitempty"`
	Reason        *string          `db:"reason" json:"reason,omitempty"`
}

// Actionable reports whether the submission may still be approved or denied.
func (s *Submission) Actionable() bool {
	return s.Status == SubmissionStatusDraft || s.Status == SubmissionStatusPending
}

// SubmissionFilter constrains listing queries.
type SubmissionFilter struct {
	ContentType ContentType
	Status      []SubmissionStatus
	OwnerID     string
	Limit       int
	Offset      int
}

// PendingCount aggregates actionable submissions per content type for queue badges.
type PendingCount struct {
	ContentType ContentType `db:"content_type" json:"contentType"`
	Count       int         `db:"count" json:"count"`
}
