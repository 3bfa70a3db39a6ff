package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/artsdesk/artsdesk-api/internal/dto"
	"github.com/artsdesk/artsdesk-api/internal/middleware"
	"github.com/artsdesk/artsdesk-api/internal/models"
)

type fakeUpgradeSrv struct {
	request    *models.UpgradeRequest
	err        error
	lastCreate dto.CreateUpgradeRequest
	lastFilter models.UpgradeFilter
}

func (f *fakeUpgradeSrv) Request(_ context.Context, req dto.CreateUpgradeRequest, actor *models.JWTClaims) (*models.UpgradeRequest, error) {
	f.lastCreate = req
	return f.request, f.err
}

func (f *fakeUpgradeSrv) Approve(context.Context, string, *models.JWTClaims) (*models.UpgradeRequest, error) {
	return f.request, f.err
}

func (f *fakeUpgradeSrv) Deny(context.Context, string, dto.DenyUpgradeRequest, *models.JWTClaims) (*models.UpgradeRequest, error) {
	return f.request, f.err
}

func (f *fakeUpgradeSrv) Get(context.Context, string, *models.JWTClaims) (*models.UpgradeRequest, error) {
	return f.request, f.err
}

func (f *fakeUpgradeSrv) List(_ context.Context, filter models.UpgradeFilter, actor *models.JWTClaims) ([]models.UpgradeRequest, error) {
	f.lastFilter = filter
	return nil, f.err
}

func TestUpgradeHandlerListParsesStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeUpgradeSrv{}
	handler := NewUpgradeHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/upgrades?status=pending", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "mod-1", Role: models.RoleModerator})

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []models.UpgradeStatus{models.UpgradeStatusPending}, srv.lastFilter.Status)
}

func TestUpgradeHandlerCreateUppercasesTargetRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeUpgradeSrv{request: &models.UpgradeRequest{ID: "upg-1", Status: models.UpgradeStatusPending}}
	handler := NewUpgradeHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/upgrades", strings.NewReader(`{"targetRole":"artist"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleMember})

	handler.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, models.RoleArtist, srv.lastCreate.TargetRole)
}
