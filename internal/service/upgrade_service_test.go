package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/artsdesk/artsdesk-api/internal/dto"
	"github.com/artsdesk/artsdesk-api/internal/models"
	"github.com/artsdesk/artsdesk-api/internal/repository"
	appErrors "github.com/artsdesk/artsdesk-api/pkg/errors"
)

type upgradeRepoStub struct {
	requests map[string]*models.UpgradeRequest
	seq      int
}

func newUpgradeRepoStub() *upgradeRepoStub {
	return &upgradeRepoStub{requests: make(map[string]*models.UpgradeRequest)}
}

func (u *upgradeRepoStub) Create(ctx context.Context, request *models.UpgradeRequest) error {
	if request.ID == "" {
		u.seq++
		request.ID = fmt.Sprintf("upg-%d", u.seq)
	}
	if request.Status == "" {
		request.Status = models.UpgradeStatusPending
	}
	clone := *request
	u.requests[request.ID] = &clone
	return nil
}

func (u *upgradeRepoStub) GetByID(ctx context.Context, id string) (*models.UpgradeRequest, error) {
	if request, ok := u.requests[id]; ok {
		clone := *request
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (u *upgradeRepoStub) FindPendingByUserAndRole(ctx context.Context, userID string, role models.UserRole) (*models.UpgradeRequest, error) {
	for _, request := range u.requests {
		if request.UserID == userID && request.TargetRole == role && request.Status == models.UpgradeStatusPending {
			clone := *request
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (u *upgradeRepoStub) List(ctx context.Context, filter models.UpgradeFilter) ([]models.UpgradeRequest, error) {
	result := make([]models.UpgradeRequest, 0, len(u.requests))
	for _, request := range u.requests {
		if filter.UserID != "" && request.UserID != filter.UserID {
			continue
		}
		result = append(result, *request)
	}
	return result, nil
}

func (u *upgradeRepoStub) Decide(ctx context.Context, params repository.DecideUpgradeParams) error {
	request, ok := u.requests[params.ID]
	if !ok || request.Status != models.UpgradeStatusPending {
		return sql.ErrNoRows
	}
	request.Status = params.Status
	request.DecidedBy = &params.DecidedBy
	request.DecidedAt = &params.DecidedAt
	request.Reason = params.Reason
	if params.ClearDraft {
		request.DraftID = nil
	}
	return nil
}

type roleAssignerStub struct {
	users       map[string]*models.User
	roles       map[string]models.UserRole
	failUpdates int
}

func newRoleAssignerStub() *roleAssignerStub {
	return &roleAssignerStub{users: make(map[string]*models.User), roles: make(map[string]models.UserRole)}
}

func (r *roleAssignerStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := r.users[id]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (r *roleAssignerStub) UpdateRole(ctx context.Context, id string, role models.UserRole, updatedAt time.Time) error {
	if r.failUpdates > 0 {
		r.failUpdates--
		return fmt.Errorf("role update unavailable")
	}
	r.roles[id] = role
	if user, ok := r.users[id]; ok {
		user.Role = role
	}
	return nil
}

func memberUser(id string) *models.User {
	return &models.User{ID: id, Role: models.RoleMember}
}

func artistProfile() map[string]string {
	return map[string]string{
		"title":         "Jo Brush",
		"contact_email": "jo@example.org",
	}
}

func TestUpgradeServiceRequestWithProfileDraft(t *testing.T) {
	upgrades := newUpgradeRepoStub()
	subs := newSubmissionRepoStub()
	svc := NewUpgradeService(upgrades, newRoleAssignerStub(), subs, &actionRepoStub{}, &notifierStub{}, nil)

	request, err := svc.Request(context.Background(), dto.CreateUpgradeRequest{
		TargetRole: models.RoleArtist,
		Profile:    artistProfile(),
	}, memberClaims("user-1"))
	require.NoError(t, err)
	require.Equal(t, models.UpgradeStatusPending, request.Status)
	require.NotNil(t, request.DraftID)

	draft := subs.subs[*request.DraftID]
	require.NotNil(t, draft)
	require.Equal(t, models.SubmissionStatusDraft, draft.Status)
	require.Equal(t, models.ContentTypeArtist, draft.ContentType)
	require.Equal(t, "user-1", draft.OwnerID)
}

func TestUpgradeServiceRequestRejectsDuplicatePending(t *testing.T) {
	upgrades := newUpgradeRepoStub()
	svc := NewUpgradeService(upgrades, newRoleAssignerStub(), newSubmissionRepoStub(), &actionRepoStub{}, &notifierStub{}, nil)

	_, err := svc.Request(context.Background(), dto.CreateUpgradeRequest{TargetRole: models.RoleArtist}, memberClaims("user-1"))
	require.NoError(t, err)

	_, err = svc.Request(context.Background(), dto.CreateUpgradeRequest{TargetRole: models.RoleArtist}, memberClaims("user-1"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	// A pending request for one role does not block a request for another.
	other, err := svc.Request(context.Background(), dto.CreateUpgradeRequest{TargetRole: models.RoleOrganization}, memberClaims("user-1"))
	require.NoError(t, err)
	require.Equal(t, models.UpgradeStatusPending, other.Status)
}

func TestUpgradeServiceRequestValidatesTargetRole(t *testing.T) {
	svc := NewUpgradeService(newUpgradeRepoStub(), newRoleAssignerStub(), newSubmissionRepoStub(), &actionRepoStub{}, &notifierStub{}, nil)

	_, err := svc.Request(context.Background(), dto.CreateUpgradeRequest{TargetRole: models.RoleAdmin}, memberClaims("user-1"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Request(context.Background(), dto.CreateUpgradeRequest{TargetRole: models.RoleArtist}, moderatorClaims("mod-1"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUpgradeServiceApprovePublishesDraftAndAssignsRole(t *testing.T) {
	upgrades := newUpgradeRepoStub()
	subs := newSubmissionRepoStub()
	users := newRoleAssignerStub()
	actions := &actionRepoStub{}
	notifier := &notifierStub{}
	svc := NewUpgradeService(upgrades, users, subs, actions, notifier, nil)

	request, err := svc.Request(context.Background(), dto.CreateUpgradeRequest{
		TargetRole: models.RoleArtist,
		Profile:    artistProfile(),
	}, memberClaims("user-1"))
	require.NoError(t, err)

	approved, err := svc.Approve(context.Background(), request.ID, moderatorClaims("mod-1"))
	require.NoError(t, err)
	require.Equal(t, models.UpgradeStatusApproved, approved.Status)
	require.Equal(t, models.RoleArtist, users.roles["user-1"])
	require.Equal(t, models.SubmissionStatusPublished, subs.subs[*request.DraftID].Status)

	require.Len(t, actions.actions, 1)
	require.Equal(t, models.ModerationActionUpgradeApprove, actions.actions[0].Kind)
	require.Equal(t, *request.DraftID, actions.actions[0].SubmissionID)
	require.Equal(t, []models.NotificationTemplate{models.TemplateUpgradeApproved}, notifier.sent)
}

func TestUpgradeServiceApproveIsIdempotent(t *testing.T) {
	upgrades := newUpgradeRepoStub()
	users := newRoleAssignerStub()
	users.users["user-1"] = memberUser("user-1")
	actions := &actionRepoStub{}
	svc := NewUpgradeService(upgrades, users, newSubmissionRepoStub(), actions, &notifierStub{}, nil)

	request, err := svc.Request(context.Background(), dto.CreateUpgradeRequest{TargetRole: models.RoleOrganization}, memberClaims("user-1"))
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), request.ID, moderatorClaims("mod-1"))
	require.NoError(t, err)

	again, err := svc.Approve(context.Background(), request.ID, moderatorClaims("mod-2"))
	require.NoError(t, err)
	require.Equal(t, models.UpgradeStatusApproved, again.Status)
	require.Len(t, actions.actions, 1)
}

func TestUpgradeServiceApproveRetryGrantsMissedRole(t *testing.T) {
	upgrades := newUpgradeRepoStub()
	users := newRoleAssignerStub()
	users.users["user-1"] = memberUser("user-1")
	users.failUpdates = 1
	svc := NewUpgradeService(upgrades, users, newSubmissionRepoStub(), &actionRepoStub{}, &notifierStub{}, nil)

	request, err := svc.Request(context.Background(), dto.CreateUpgradeRequest{TargetRole: models.RoleArtist}, memberClaims("user-1"))
	require.NoError(t, err)

	// The decision commits but the role grant fails; the user is left a member.
	_, err = svc.Approve(context.Background(), request.ID, moderatorClaims("mod-1"))
	require.Error(t, err)
	require.Equal(t, models.UpgradeStatusApproved, upgrades.requests[request.ID].Status)
	require.Equal(t, models.RoleMember, users.users["user-1"].Role)

	// Retrying the approval repairs the missing role grant.
	again, err := svc.Approve(context.Background(), request.ID, moderatorClaims("mod-1"))
	require.NoError(t, err)
	require.Equal(t, models.UpgradeStatusApproved, again.Status)
	require.Equal(t, models.RoleArtist, users.users["user-1"].Role)
}

func TestUpgradeServiceDenyRequiresReason(t *testing.T) {
	upgrades := newUpgradeRepoStub()
	svc := NewUpgradeService(upgrades, newRoleAssignerStub(), newSubmissionRepoStub(), &actionRepoStub{}, &notifierStub{}, nil)

	request, err := svc.Request(context.Background(), dto.CreateUpgradeRequest{TargetRole: models.RoleArtist}, memberClaims("user-1"))
	require.NoError(t, err)

	_, err = svc.Deny(context.Background(), request.ID, dto.DenyUpgradeRequest{Reason: "   "}, moderatorClaims("mod-1"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUpgradeServiceDenyTrashesAndUnlinksDraft(t *testing.T) {
	upgrades := newUpgradeRepoStub()
	subs := newSubmissionRepoStub()
	actions := &actionRepoStub{}
	notifier := &notifierStub{}
	svc := NewUpgradeService(upgrades, newRoleAssignerStub(), subs, actions, notifier, nil)

	request, err := svc.Request(context.Background(), dto.CreateUpgradeRequest{
		TargetRole: models.RoleArtist,
		Profile:    artistProfile(),
	}, memberClaims("user-1"))
	require.NoError(t, err)
	draftID := *request.DraftID

	denied, err := svc.Deny(context.Background(), request.ID, dto.DenyUpgradeRequest{Reason: "portfolio incomplete"}, moderatorClaims("mod-1"))
	require.NoError(t, err)
	require.Equal(t, models.UpgradeStatusDenied, denied.Status)
	require.Nil(t, denied.DraftID)
	require.Nil(t, upgrades.requests[request.ID].DraftID)
	require.Equal(t, models.SubmissionStatusTrashed, subs.subs[draftID].Status)

	require.Len(t, actions.actions, 1)
	require.Equal(t, models.ModerationActionUpgradeDeny, actions.actions[0].Kind)
	require.Equal(t, draftID, actions.actions[0].SubmissionID)
	require.Equal(t, []models.NotificationTemplate{models.TemplateUpgradeDenied}, notifier.sent)

	_, err = svc.Deny(context.Background(), request.ID, dto.DenyUpgradeRequest{Reason: "again"}, moderatorClaims("mod-1"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUpgradeServiceMemberScoping(t *testing.T) {
	upgrades := newUpgradeRepoStub()
	svc := NewUpgradeService(upgrades, newRoleAssignerStub(), newSubmissionRepoStub(), &actionRepoStub{}, &notifierStub{}, nil)

	request, err := svc.Request(context.Background(), dto.CreateUpgradeRequest{TargetRole: models.RoleArtist}, memberClaims("user-1"))
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), request.ID, memberClaims("user-2"))
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	own, err := svc.List(context.Background(), models.UpgradeFilter{}, memberClaims("user-2"))
	require.NoError(t, err)
	require.Empty(t, own)
}
