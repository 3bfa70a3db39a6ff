package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/artsdesk/artsdesk-api/internal/dto"
	"github.com/artsdesk/artsdesk-api/internal/middleware"
	"github.com/artsdesk/artsdesk-api/internal/models"
	appErrors "github.com/artsdesk/artsdesk-api/pkg/errors"
)

type fakeSubmissionSrv struct {
	created    *models.Submission
	createErr  error
	lastCreate dto.CreateSubmissionRequest
	lastQuery  dto.SubmissionQuery
	listResp   []models.Submission
}

func (f *fakeSubmissionSrv) Create(_ context.Context, req dto.CreateSubmissionRequest, actor *models.JWTClaims) (*models.Submission, error) {
	f.lastCreate = req
	return f.created, f.createErr
}

func (f *fakeSubmissionSrv) Update(context.Context, string, dto.UpdateSubmissionRequest, *models.JWTClaims) (*models.Submission, error) {
	return f.created, f.createErr
}

func (f *fakeSubmissionSrv) Submit(context.Context, string, *models.JWTClaims) (*models.Submission, error) {
	return f.created, f.createErr
}

func (f *fakeSubmissionSrv) Withdraw(context.Context, string, *models.JWTClaims) error {
	return f.createErr
}

func (f *fakeSubmissionSrv) Get(context.Context, string, *models.JWTClaims) (*models.Submission, error) {
	return f.created, f.createErr
}

func (f *fakeSubmissionSrv) List(_ context.Context, query dto.SubmissionQuery, actor *models.JWTClaims) ([]models.Submission, error) {
	f.lastQuery = query
	return f.listResp, nil
}

func TestSubmissionHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeSubmissionSrv{created: &models.Submission{ID: "sub-1", Status: models.SubmissionStatusPending}}
	handler := NewSubmissionHandler(srv, nil)

	body := `{"contentType":"ARTIST","attrs":{"title":"Jo Brush","contact_email":"jo@example.org"}}`
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/submissions", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleMember})

	handler.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, models.ContentTypeArtist, srv.lastCreate.ContentType)
	assert.Equal(t, "Jo Brush", srv.lastCreate.Attrs["title"])
}

func TestSubmissionHandlerCreateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewSubmissionHandler(&fakeSubmissionSrv{}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/submissions", strings.NewReader("{not json"))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmissionHandlerCreateServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeSubmissionSrv{createErr: appErrors.ErrForbidden}
	handler := NewSubmissionHandler(srv, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/submissions", strings.NewReader(`{"contentType":"ARTIST"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSubmissionHandlerListParsesQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeSubmissionSrv{listResp: []models.Submission{{ID: "sub-1"}}}
	handler := NewSubmissionHandler(srv, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/submissions?contentType=event&status=draft,pending&page=3", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleMember})

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ContentTypeEvent, srv.lastQuery.ContentType)
	assert.Equal(t, []models.SubmissionStatus{models.SubmissionStatusDraft, models.SubmissionStatusPending}, srv.lastQuery.Status)
	assert.Equal(t, 3, srv.lastQuery.Page)

	var envelope struct {
		Data []map[string]interface{} `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Len(t, envelope.Data, 1)
}

func TestSubmissionHandlerWithdrawNoContent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewSubmissionHandler(&fakeSubmissionSrv{}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/submissions/sub-1/withdraw", nil)
	c.Params = gin.Params{{Key: "id", Value: "sub-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleMember})

	handler.Withdraw(c)
	// Status written with no body; flush it to the recorder.
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, rec.Code)
}
