package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/artsdesk/artsdesk-api/internal/dto"
	"github.com/artsdesk/artsdesk-api/internal/models"
	"github.com/artsdesk/artsdesk-api/internal/repository"
	"github.com/artsdesk/artsdesk-api/internal/schema"
	appErrors "github.com/artsdesk/artsdesk-api/pkg/errors"
)

type submissionStore interface {
	Create(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error)
	UpdateAttrs(ctx context.Context, id, title string, attrs []byte) error
	MarkPending(ctx context.Context, id string) error
	Transition(ctx context.Context, params repository.TransitionParams) error
	CountPending(ctx context.Context) ([]models.PendingCount, error)
}

type actionStore interface {
	Create(ctx context.Context, action *models.ModerationAction) error
	List(ctx context.Context, filter models.ModerationActionFilter) ([]models.ModerationAction, error)
}

// decisionNotifier delivers outcome messages to submitters. Delivery is
// best effort; implementations log failures instead of returning them.
type decisionNotifier interface {
	NotifyDecision(ctx context.Context, userID string, template models.NotificationTemplate, title string, reason *string)
}

// SubmissionService handles member-facing submission workflows.
type SubmissionService struct {
	repo     submissionStore
	actions  actionStore
	logger   *zap.Logger
	pageSize int
}

// NewSubmissionService constructs the service.
func NewSubmissionService(repo submissionStore, actions actionStore, logger *zap.Logger, pageSize int) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return &SubmissionService{repo: repo, actions: actions, logger: logger, pageSize: pageSize}
}

// Create validates the attribute payload and stores a new submission. Members
// may park the entry as a draft before sending it into the moderation queue.
func (s *SubmissionService) Create(ctx context.Context, req dto.CreateSubmissionRequest, actor *models.JWTClaims) (*models.Submission, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	sch, err := schema.ForContentType(req.ContentType)
	if err != nil {
		return nil, err
	}
	clean, err := sch.Validate(req.Attrs)
	if err != nil {
		return nil, err
	}
	title, _ := clean["title"].(string)
	attrs, err := json.Marshal(clean)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode attributes")
	}

	status := models.SubmissionStatusPending
	if req.Draft {
		status = models.SubmissionStatusDraft
	}
	submission := &models.Submission{
		ContentType: req.ContentType,
		OwnerID:     actor.UserID,
		Status:      status,
		Title:       title,
		Attrs:       attrs,
	}
	if err := s.repo.Create(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create submission")
	}
	return submission, nil
}

// Update replaces the attribute payload of a still actionable submission.
func (s *SubmissionService) Update(ctx context.Context, id string, req dto.UpdateSubmissionRequest, actor *models.JWTClaims) (*models.Submission, error) {
	submission, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	sch, err := schema.ForContentType(submission.ContentType)
	if err != nil {
		return nil, err
	}
	clean, err := sch.Validate(req.Attrs)
	if err != nil {
		return nil, err
	}
	title, _ := clean["title"].(string)
	attrs, err := json.Marshal(clean)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode attributes")
	}
	if err := s.repo.UpdateAttrs(ctx, submission.ID, title, attrs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "submission already decided")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update submission")
	}
	submission.Title = title
	submission.Attrs = attrs
	submission.UpdatedAt = time.Now().UTC()
	return submission, nil
}

// Submit moves a draft into the moderation queue.
func (s *SubmissionService) Submit(ctx context.Context, id string, actor *models.JWTClaims) (*models.Submission, error) {
	submission, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if submission.OwnerID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	if err := s.repo.MarkPending(ctx, submission.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "submission is not a draft")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit draft")
	}
	submission.Status = models.SubmissionStatusPending
	submission.SubmittedAt = time.Now().UTC()
	return submission, nil
}

// Withdraw lets the owner pull an actionable submission out of the queue.
func (s *SubmissionService) Withdraw(ctx context.Context, id string, actor *models.JWTClaims) error {
	submission, err := s.Get(ctx, id, actor)
	if err != nil {
		return err
	}
	if submission.OwnerID != actor.UserID {
		return appErrors.ErrForbidden
	}
	now := time.Now().UTC()
	if err := s.repo.Transition(ctx, repository.TransitionParams{
		ID:        submission.ID,
		Status:    models.SubmissionStatusTrashed,
		DecidedBy: actor.UserID,
		DecidedAt: now,
	}); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "submission already decided")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw submission")
	}
	s.emitAction(ctx, &models.ModerationAction{
		SubmissionID: submission.ID,
		ActorID:      actor.UserID,
		Kind:         models.ModerationActionWithdraw,
	})
	return nil
}

// Get loads a submission enforcing owner or moderator access.
func (s *SubmissionService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Submission, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	submission, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if !canAccessSubmission(actor, submission.OwnerID) {
		return nil, appErrors.ErrForbidden
	}
	return submission, nil
}

// List returns submissions visible to the actor. Members only see their own.
func (s *SubmissionService) List(ctx context.Context, query dto.SubmissionQuery, actor *models.JWTClaims) ([]models.Submission, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	page := query.Page
	if page < 1 {
		page = 1
	}
	filter := models.SubmissionFilter{
		ContentType: query.ContentType,
		Status:      query.Status,
		Limit:       s.pageSize,
		Offset:      (page - 1) * s.pageSize,
	}
	if !canModerate(actor.Role) {
		filter.OwnerID = actor.UserID
	}
	submissions, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return submissions, nil
}

func (s *SubmissionService) emitAction(ctx context.Context, action *models.ModerationAction) {
	if s.actions == nil || action == nil {
		return
	}
	if err := s.actions.Create(ctx, action); err != nil {
		s.logger.Warn("failed to record moderation action", zap.Error(err), zap.String("submission_id", action.SubmissionID))
	}
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	v := strings.TrimSpace(value)
	return &v
}
