package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/artsdesk/artsdesk-api/internal/models"
)

const submissionColumns = `id, content_type, owner_id, status, title, attrs, featured_image, gallery,
       submitted_at, updated_at, decided_by, decided_at, reason`

// SubmissionRepository persists directory submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create inserts a new submission row.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.Status == "" {
		submission.Status = models.SubmissionStatusPending
	}
	now := time.Now().UTC()
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = now
	}
	submission.UpdatedAt = now
	const query = `INSERT INTO submissions
	(id, content_type, owner_id, status, title, attrs, featured_image, gallery, submitted_at, updated_at, decided_by, decided_at, reason)
	VALUES (:id, :content_type, :owner_id, :status, :title, :attrs, :featured_image, :gallery, :submitted_at, :updated_at, :decided_by, :decided_at, :reason)`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// GetByID fetches a submission by identifier.
func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		return nil, err
	}
	return &submission, nil
}

// List returns submissions matching the filter (newest first).
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString(`SELECT ` + submissionColumns + ` FROM submissions`)

	conditions := make([]string, 0, 3)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.ContentType != "" {
		args = append(args, filter.ContentType)
		conditions = append(conditions, fmt.Sprintf("content_type = $%d", len(args)))
	}
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY submitted_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// UpdateAttrs replaces the sanitized attribute payload of a still actionable
// submission. Returns sql.ErrNoRows when the row is already decided.
func (r *SubmissionRepository) UpdateAttrs(ctx context.Context, id, title string, attrs []byte) error {
	const query = `UPDATE submissions SET title = $2, attrs = $3, updated_at = $4
	WHERE id = $1 AND status IN ('DRAFT', 'PENDING')`
	result, err := r.db.ExecContext(ctx, query, id, title, attrs, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update submission attrs: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check submission update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkPending promotes an owner draft into the moderation queue. Returns
// sql.ErrNoRows when the submission is not a draft.
func (r *SubmissionRepository) MarkPending(ctx context.Context, id string) error {
	const query = `UPDATE submissions SET status = 'PENDING', submitted_at = $2, updated_at = $2
	WHERE id = $1 AND status = 'DRAFT'`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark submission pending: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check submission pending rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateMedia stores the featured image and gallery references.
func (r *SubmissionRepository) UpdateMedia(ctx context.Context, id string, featuredImage *string, gallery []byte) error {
	const query = `UPDATE submissions SET featured_image = $2, gallery = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, featuredImage, gallery, time.Now().UTC()); err != nil {
		return fmt.Errorf("update submission media: %w", err)
	}
	return nil
}

// TransitionParams groups the columns written by a moderation decision.
type TransitionParams struct {
	ID        string
	Status    models.SubmissionStatus
	DecidedBy string
	DecidedAt time.Time
	Reason    *string
}

// Transition moves an actionable submission to a decided status. The status
// guard makes the transition single shot; a second attempt on the same row
// matches zero rows and surfaces sql.ErrNoRows.
func (r *SubmissionRepository) Transition(ctx context.Context, params TransitionParams) error {
	const query = `UPDATE submissions SET status = :status, decided_by = :decided_by, decided_at = :decided_at, reason = :reason, updated_at = :decided_at
	WHERE id = :id AND status IN ('DRAFT', 'PENDING')`
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":         params.ID,
		"status":     params.Status,
		"decided_by": params.DecidedBy,
		"decided_at": params.DecidedAt,
		"reason":     params.Reason,
	})
	if err != nil {
		return fmt.Errorf("transition submission: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check transition rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountPending tallies actionable submissions per content type.
func (r *SubmissionRepository) CountPending(ctx context.Context) ([]models.PendingCount, error) {
	const query = `SELECT content_type, COUNT(*) AS count FROM submissions
	WHERE status IN ('DRAFT', 'PENDING') GROUP BY content_type ORDER BY content_type`
	var counts []models.PendingCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count pending submissions: %w", err)
	}
	return counts, nil
}

// DecisionCounts returns daily decided totals since the given time.
func (r *SubmissionRepository) DecisionCounts(ctx context.Context, since time.Time) ([]models.DailyDecisionCount, error) {
	const query = `SELECT DATE(decided_at) AS day,
       COUNT(*) FILTER (WHERE status = 'PUBLISHED') AS approved,
       COUNT(*) FILTER (WHERE status = 'TRASHED') AS denied
	FROM submissions WHERE decided_at >= $1 GROUP BY DATE(decided_at) ORDER BY day DESC`
	var counts []models.DailyDecisionCount
	if err := r.db.SelectContext(ctx, &counts, query, since); err != nil {
		return nil, fmt.Errorf("count decisions: %w", err)
	}
	return counts, nil
}

// AverageDecisionHours computes the mean submit-to-decision latency since the given time.
func (r *SubmissionRepository) AverageDecisionHours(ctx context.Context, since time.Time) (float64, error) {
	const query = `SELECT COALESCE(AVG(EXTRACT(EPOCH FROM decided_at - submitted_at) / 3600), 0)
	FROM submissions WHERE decided_at >= $1`
	var hours float64
	if err := r.db.GetContext(ctx, &hours, query, since); err != nil {
		return 0, fmt.Errorf("average decision hours: %w", err)
	}
	return hours, nil
}
