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

type upgradeStore interface {
	Create(ctx context.Context, request *models.UpgradeRequest) error
	GetByID(ctx context.Context, id string) (*models.UpgradeRequest, error)
	FindPendingByUserAndRole(ctx context.Context, userID string, role models.UserRole) (*models.UpgradeRequest, error)
	List(ctx context.Context, filter models.UpgradeFilter) ([]models.UpgradeRequest, error)
	Decide(ctx context.Context, params repository.DecideUpgradeParams) error
}

type roleAssigner interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateRole(ctx context.Context, id string, role models.UserRole, updatedAt time.Time) error
}

// UpgradeService manages member requests to become artists or organizations.
type UpgradeService struct {
	repo     upgradeStore
	users    roleAssigner
	subs     submissionStore
	actions  actionStore
	notifier decisionNotifier
	logger   *zap.Logger
}

// NewUpgradeService constructs the service.
func NewUpgradeService(repo upgradeStore, users roleAssigner, subs submissionStore, actions actionStore, notifier decisionNotifier, logger *zap.Logger) *UpgradeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UpgradeService{repo: repo, users: users, subs: subs, actions: actions, notifier: notifier, logger: logger}
}

// Request opens an upgrade request, optionally bundling a draft profile that
// is published together with the approval.
func (s *UpgradeService) Request(ctx context.Context, req dto.CreateUpgradeRequest, actor *models.JWTClaims) (*models.UpgradeRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleMember {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only members can request an upgrade")
	}
	if !upgradeTargetAllowed(req.TargetRole) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target role must be ARTIST or ORGANIZATION")
	}
	if _, err := s.repo.FindPendingByUserAndRole(ctx, actor.UserID, req.TargetRole); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an upgrade request for this role is already pending")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending upgrades")
	}

	var draftID *string
	if len(req.Profile) > 0 {
		contentType, _ := contentTypeForRole(req.TargetRole)
		sch, err := schema.ForContentType(contentType)
		if err != nil {
			return nil, err
		}
		clean, err := sch.Validate(req.Profile)
		if err != nil {
			return nil, err
		}
		title, _ := clean["title"].(string)
		attrs, err := json.Marshal(clean)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode profile")
		}
		draft := &models.Submission{
			ContentType: contentType,
			OwnerID:     actor.UserID,
			Status:      models.SubmissionStatusDraft,
			Title:       title,
			Attrs:       attrs,
		}
		if err := s.subs.Create(ctx, draft); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create draft profile")
		}
		draftID = &draft.ID
	}

	request := &models.UpgradeRequest{
		UserID:     actor.UserID,
		TargetRole: req.TargetRole,
		DraftID:    draftID,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create upgrade request")
	}
	return request, nil
}

// Approve grants the requested role and publishes the linked draft profile.
// Approving a request that is already approved is a no-op and succeeds.
func (s *UpgradeService) Approve(ctx context.Context, id string, actor *models.JWTClaims) (*models.UpgradeRequest, error) {
	if err := s.requireModerator(actor); err != nil {
		return nil, err
	}
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status == models.UpgradeStatusApproved {
		// Idempotency is keyed on the role actually held, not on the request
		// status: a prior approval may have committed the decision and then
		// failed before the role was assigned.
		if err := s.ensureRole(ctx, request); err != nil {
			return nil, err
		}
		return request, nil
	}
	if request.Status == models.UpgradeStatusDenied {
		return nil, appErrors.Clone(appErrors.ErrConflict, "upgrade request already denied")
	}

	now := time.Now().UTC()
	err = s.repo.Decide(ctx, repository.DecideUpgradeParams{
		ID:        request.ID,
		Status:    models.UpgradeStatusApproved,
		DecidedBy: actor.UserID,
		DecidedAt: now,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "upgrade request already processed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve upgrade request")
	}
	if err := s.users.UpdateRole(ctx, request.UserID, request.TargetRole, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign role")
	}
	if request.DraftID != nil {
		err := s.subs.Transition(ctx, repository.TransitionParams{
			ID:        *request.DraftID,
			Status:    models.SubmissionStatusPublished,
			DecidedBy: actor.UserID,
			DecidedAt: now,
		})
		if err != nil {
			s.logger.Warn("failed to publish draft profile", zap.Error(err), zap.String("draft_id", *request.DraftID))
		}
	}

	request.Status = models.UpgradeStatusApproved
	request.DecidedBy = &actor.UserID
	request.DecidedAt = &now
	s.emitAction(ctx, &models.ModerationAction{
		SubmissionID: s.auditRef(request),
		ActorID:      actor.UserID,
		Kind:         models.ModerationActionUpgradeApprove,
	})
	if s.notifier != nil {
		s.notifier.NotifyDecision(ctx, request.UserID, models.TemplateUpgradeApproved, "", nil)
	}
	return request, nil
}

// Deny closes the request with a mandatory reason. Any linked draft profile is
// trashed and detached from the request.
func (s *UpgradeService) Deny(ctx context.Context, id string, req dto.DenyUpgradeRequest, actor *models.JWTClaims) (*models.UpgradeRequest, error) {
	if err := s.requireModerator(actor); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reason is required")
	}
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status != models.UpgradeStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "upgrade request already processed")
	}

	now := time.Now().UTC()
	err = s.repo.Decide(ctx, repository.DecideUpgradeParams{
		ID:         request.ID,
		Status:     models.UpgradeStatusDenied,
		DecidedBy:  actor.UserID,
		DecidedAt:  now,
		Reason:     &reason,
		ClearDraft: request.DraftID != nil,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "upgrade request already processed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deny upgrade request")
	}
	auditRef := s.auditRef(request)
	if request.DraftID != nil {
		err := s.subs.Transition(ctx, repository.TransitionParams{
			ID:        *request.DraftID,
			Status:    models.SubmissionStatusTrashed,
			DecidedBy: actor.UserID,
			DecidedAt: now,
			Reason:    &reason,
		})
		if err != nil {
			s.logger.Warn("failed to trash draft profile", zap.Error(err), zap.String("draft_id", *request.DraftID))
		}
	}

	request.Status = models.UpgradeStatusDenied
	request.DecidedBy = &actor.UserID
	request.DecidedAt = &now
	request.Reason = &reason
	request.DraftID = nil
	s.emitAction(ctx, &models.ModerationAction{
		SubmissionID: auditRef,
		ActorID:      actor.UserID,
		Kind:         models.ModerationActionUpgradeDeny,
		Reason:       &reason,
	})
	if s.notifier != nil {
		s.notifier.NotifyDecision(ctx, request.UserID, models.TemplateUpgradeDenied, "", &reason)
	}
	return request, nil
}

// Get returns a request for moderators or its requesting member.
func (s *UpgradeService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.UpgradeRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canModerate(actor.Role) && request.UserID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return request, nil
}

// List returns upgrade requests. Members only see their own.
func (s *UpgradeService) List(ctx context.Context, filter models.UpgradeFilter, actor *models.JWTClaims) ([]models.UpgradeRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !canModerate(actor.Role) {
		filter.UserID = actor.UserID
	}
	requests, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list upgrade requests")
	}
	return requests, nil
}

// ensureRole grants the target role of an approved request when the user does
// not hold it yet, repairing an approval that failed after its decision
// committed. Holding the role already makes this a no-op.
func (s *UpgradeService) ensureRole(ctx context.Context, request *models.UpgradeRequest) error {
	user, err := s.users.FindByID(ctx, request.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Role == request.TargetRole {
		return nil
	}
	if err := s.users.UpdateRole(ctx, request.UserID, request.TargetRole, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign role")
	}
	return nil
}

func (s *UpgradeService) load(ctx context.Context, id string) (*models.UpgradeRequest, error) {
	request, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load upgrade request")
	}
	return request, nil
}

func (s *UpgradeService) requireModerator(actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !canModerate(actor.Role) {
		return appErrors.ErrForbidden
	}
	return nil
}

// auditRef anchors upgrade audit rows to the draft when one exists, falling
// back to the request itself.
func (s *UpgradeService) auditRef(request *models.UpgradeRequest) string {
	if request.DraftID != nil {
		return *request.DraftID
	}
	return request.ID
}

func (s *UpgradeService) emitAction(ctx context.Context, action *models.ModerationAction) {
	if s.actions == nil || action == nil {
		return
	}
	if err := s.actions.Create(ctx, action); err != nil {
		s.logger.Warn("failed to record moderation action", zap.Error(err), zap.String("submission_id", action.SubmissionID))
	}
}
