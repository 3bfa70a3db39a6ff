package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/artsdesk/artsdesk-api/internal/dto"
	"github.com/artsdesk/artsdesk-api/internal/models"
	"github.com/artsdesk/artsdesk-api/internal/repository"
	appErrors "github.com/artsdesk/artsdesk-api/pkg/errors"
)

// ModerationService drives the approve/deny transition engine for the queue.
type ModerationService struct {
	subs     submissionStore
	actions  actionStore
	notifier decisionNotifier
	logger   *zap.Logger
	pageSize int
}

// NewModerationService constructs the service.
func NewModerationService(subs submissionStore, actions actionStore, notifier decisionNotifier, logger *zap.Logger, pageSize int) *ModerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return &ModerationService{subs: subs, actions: actions, notifier: notifier, logger: logger, pageSize: pageSize}
}

// Queue lists submissions awaiting a decision, oldest entries on later pages.
func (s *ModerationService) Queue(ctx context.Context, query dto.QueueQuery, actor *models.JWTClaims) ([]models.Submission, error) {
	if err := s.requireModerator(actor); err != nil {
		return nil, err
	}
	page := query.Page
	if page < 1 {
		page = 1
	}
	submissions, err := s.subs.List(ctx, models.SubmissionFilter{
		ContentType: query.ContentType,
		Status:      []models.SubmissionStatus{models.SubmissionStatusDraft, models.SubmissionStatusPending},
		Limit:       s.pageSize,
		Offset:      (page - 1) * s.pageSize,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list moderation queue")
	}
	return submissions, nil
}

// PendingCounts returns queue badge totals per content type.
func (s *ModerationService) PendingCounts(ctx context.Context, actor *models.JWTClaims) ([]models.PendingCount, error) {
	if err := s.requireModerator(actor); err != nil {
		return nil, err
	}
	counts, err := s.subs.CountPending(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending submissions")
	}
	return counts, nil
}

// Approve publishes the listed submissions. Entries that are missing or no
// longer actionable are skipped without failing the batch.
func (s *ModerationService) Approve(ctx context.Context, req dto.ModerateRequest, actor *models.JWTClaims) (*models.ModerationResult, error) {
	return s.decide(ctx, req, actor, models.SubmissionStatusPublished)
}

// Deny trashes the listed submissions. A reason is optional; when present the
// submitter is invited to fix and resubmit, otherwise the entry is rejected.
func (s *ModerationService) Deny(ctx context.Context, req dto.ModerateRequest, actor *models.JWTClaims) (*models.ModerationResult, error) {
	return s.decide(ctx, req, actor, models.SubmissionStatusTrashed)
}

// History lists audit rows for the queue.
func (s *ModerationService) History(ctx context.Context, filter models.ModerationActionFilter, actor *models.JWTClaims) ([]models.ModerationAction, error) {
	if err := s.requireModerator(actor); err != nil {
		return nil, err
	}
	if filter.Limit <= 0 {
		filter.Limit = s.pageSize
	}
	actions, err := s.actions.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list moderation history")
	}
	return actions, nil
}

func (s *ModerationService) decide(ctx context.Context, req dto.ModerateRequest, actor *models.JWTClaims, status models.SubmissionStatus) (*models.ModerationResult, error) {
	if err := s.requireModerator(actor); err != nil {
		return nil, err
	}
	if len(req.IDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ids is required")
	}
	reason := optionalString(req.Reason)
	kind := actionKind(status, len(req.IDs) > 1)
	template := decisionTemplate(status, reason)

	result := &models.ModerationResult{}
	now := time.Now().UTC()
	for _, id := range req.IDs {
		submission, err := s.subs.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				result.Skipped = append(result.Skipped, id)
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
		}
		err = s.subs.Transition(ctx, repository.TransitionParams{
			ID:        submission.ID,
			Status:    status,
			DecidedBy: actor.UserID,
			DecidedAt: now,
			Reason:    reason,
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				// Already decided by someone else; treat like any other ineligible entry.
				result.Skipped = append(result.Skipped, id)
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to transition submission")
		}
		result.Processed++
		err = s.actions.Create(ctx, &models.ModerationAction{
			SubmissionID: submission.ID,
			ActorID:      actor.UserID,
			Kind:         kind,
			Reason:       reason,
		})
		if err != nil {
			// The transition is already committed; fail loudly so the missing
			// audit row is noticed instead of silently dropped.
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record moderation action")
		}
		if s.notifier != nil {
			s.notifier.NotifyDecision(ctx, submission.OwnerID, template, submission.Title, reason)
		}
	}
	return result, nil
}

func (s *ModerationService) requireModerator(actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !canModerate(actor.Role) {
		return appErrors.ErrForbidden
	}
	return nil
}

func actionKind(status models.SubmissionStatus, bulk bool) string {
	if status == models.SubmissionStatusPublished {
		if bulk {
			return models.ModerationActionBulkApprove
		}
		return models.ModerationActionApprove
	}
	if bulk {
		return models.ModerationActionBulkDeny
	}
	return models.ModerationActionDeny
}

func decisionTemplate(status models.SubmissionStatus, reason *string) models.NotificationTemplate {
	if status == models.SubmissionStatusPublished {
		return models.TemplateApproved
	}
	if reason != nil {
		return models.TemplateChangesRequested
	}
	return models.TemplateRejected
}
