package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/artsdesk/artsdesk-api/internal/models"
)

// ModerationRepository persists the append-only moderation audit trail.
// There are deliberately no update or delete methods.
type ModerationRepository struct {
	db *sqlx.DB
}

// NewModerationRepository constructs the repository.
func NewModerationRepository(db *sqlx.DB) *ModerationRepository {
	return &ModerationRepository{db: db}
}

// Create appends one audit row.
func (r *ModerationRepository) Create(ctx context.Context, action *models.ModerationAction) error {
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO moderation_actions (id, submission_id, actor_id, kind, reason, created_at)
	VALUES (:id, :submission_id, :actor_id, :kind, :reason, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, action); err != nil {
		return fmt.Errorf("create moderation action: %w", err)
	}
	return nil
}

// List returns audit rows matching the filter (newest first).
func (r *ModerationRepository) List(ctx context.Context, filter models.ModerationActionFilter) ([]models.ModerationAction, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 3)
	builder.WriteString(`SELECT id, submission_id, actor_id, kind, reason, created_at FROM moderation_actions`)

	conditions := make([]string, 0, 3)
	if filter.SubmissionID != "" {
		args = append(args, filter.SubmissionID)
		conditions = append(conditions, fmt.Sprintf("submission_id = $%d", len(args)))
	}
	if filter.ActorID != "" {
		args = append(args, filter.ActorID)
		conditions = append(conditions, fmt.Sprintf("actor_id = $%d", len(args)))
	}
	if filter.Kind != "" {
		args = append(args, filter.Kind)
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var actions []models.ModerationAction
	if err := r.db.SelectContext(ctx, &actions, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list moderation actions: %w", err)
	}
	return actions, nil
}
