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

const upgradeColumns = `id, user_id, target_role, draft_id, status, reason, requested_at, decided_by, decided_at`

// UpgradeRepository persists role upgrade requests.
type UpgradeRepository struct {
	db *sqlx.DB
}

// NewUpgradeRepository constructs the repository.
func NewUpgradeRepository(db *sqlx.DB) *UpgradeRepository {
	return &UpgradeRepository{db: db}
}

// Create inserts a new upgrade request.
func (r *UpgradeRepository) Create(ctx context.Context, request *models.UpgradeRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = models.UpgradeStatusPending
	}
	if request.RequestedAt.IsZero() {
		request.RequestedAt = time.Now().UTC()
	}
	const query = `INSERT INTO upgrade_requests (id, user_id, target_role, draft_id, status, reason, requested_at, decided_by, decided_at)
	VALUES (:id, :user_id, :target_role, :draft_id, :status, :reason, :requested_at, :decided_by, :decided_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create upgrade request: %w", err)
	}
	return nil
}

// GetByID fetches an upgrade request by identifier.
func (r *UpgradeRepository) GetByID(ctx context.Context, id string) (*models.UpgradeRequest, error) {
	query := `SELECT ` + upgradeColumns + ` FROM upgrade_requests WHERE id = $1`
	var request models.UpgradeRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// FindPendingByUserAndRole returns the user's open request for one target
// role, if any. Pending requests for other roles do not match.
func (r *UpgradeRepository) FindPendingByUserAndRole(ctx context.Context, userID string, role models.UserRole) (*models.UpgradeRequest, error) {
	query := `SELECT ` + upgradeColumns + ` FROM upgrade_requests WHERE user_id = $1 AND target_role = $2 AND status = 'PENDING' LIMIT 1`
	var request models.UpgradeRequest
	if err := r.db.GetContext(ctx, &request, query, userID, role); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns upgrade requests matching the filter (newest first).
func (r *UpgradeRepository) List(ctx context.Context, filter models.UpgradeFilter) ([]models.UpgradeRequest, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(`SELECT ` + upgradeColumns + ` FROM upgrade_requests`)

	conditions := make([]string, 0, 3)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.TargetRole != "" {
		args = append(args, filter.TargetRole)
		conditions = append(conditions, fmt.Sprintf("target_role = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY requested_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var requests []models.UpgradeRequest
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list upgrade requests: %w", err)
	}
	return requests, nil
}

// DecideUpgradeParams groups the columns written by an upgrade decision.
type DecideUpgradeParams struct {
	ID         string
	Status     models.UpgradeStatus
	DecidedBy  string
	DecidedAt  time.Time
	Reason     *string
	ClearDraft bool
}

// Decide closes a pending upgrade request. A request already decided matches
// zero rows and surfaces sql.ErrNoRows so callers can treat the retry as a no-op.
func (r *UpgradeRepository) Decide(ctx context.Context, params DecideUpgradeParams) error {
	setParts := []string{
		"status = :status",
		"decided_by = :decided_by",
		"decided_at = :decided_at",
		"reason = :reason",
	}
	if params.ClearDraft {
		setParts = append(setParts, "draft_id = NULL")
	}
	query := fmt.Sprintf("UPDATE upgrade_requests SET %s WHERE id = :id AND status = '%s'",
		strings.Join(setParts, ", "),
		models.UpgradeStatusPending,
	)
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":         params.ID,
		"status":     params.Status,
		"decided_by": params.DecidedBy,
		"decided_at": params.DecidedAt,
		"reason":     params.Reason,
	})
	if err != nil {
		return fmt.Errorf("decide upgrade request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check upgrade decide rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
