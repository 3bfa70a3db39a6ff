package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/artsdesk/artsdesk-api/internal/models"
)

func newSubmissionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSubmissionRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submissions")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	submission := &models.Submission{
		ContentType: models.ContentTypeEvent,
		OwnerID:     "user-1",
		Title:       "Gallery Night",
		Attrs:       []byte(`{"title":"Gallery Night"}`),
	}
	require.NoError(t, repo.Create(context.Background(), submission))
	require.NotEmpty(t, submission.ID)
	require.Equal(t, models.SubmissionStatusPending, submission.Status)

	rows := sqlmock.NewRows([]string{"id", "content_type", "owner_id", "status", "title", "attrs", "featured_image", "gallery", "submitted_at", "updated_at", "decided_by", "decided_at", "reason"}).
		AddRow(submission.ID, "EVENT", "user-1", "PENDING", "Gallery Night", `{"title":"Gallery Night"}`, nil, nil, time.Now(), time.Now(), nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, content_type, owner_id")).
		WithArgs(submission.ID).
		WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, submission.ID, found.ID)
	require.True(t, found.Actionable())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	rows := sqlmock.NewRows([]string{"id", "content_type", "owner_id", "status", "title", "attrs", "featured_image", "gallery", "submitted_at", "updated_at", "decided_by", "decided_at", "reason"}).
		AddRow("sub-1", "ARTIST", "user-2", "PENDING", "Jo Brush", `{}`, nil, nil, time.Now(), time.Now(), nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, content_type, owner_id")).
		WithArgs("PENDING", "ARTIST").
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.SubmissionFilter{
		Status:      []models.SubmissionStatus{models.SubmissionStatusPending},
		ContentType: models.ContentTypeArtist,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "sub-1", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryTransitionGuard(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET")).WillReturnResult(sqlmock.NewResult(0, 1))
	err := repo.Transition(context.Background(), TransitionParams{
		ID:        "sub-1",
		Status:    models.SubmissionStatusPublished,
		DecidedBy: "mod-1",
		DecidedAt: now,
	})
	require.NoError(t, err)

	// Second decision on the same row matches nothing.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.Transition(context.Background(), TransitionParams{
		ID:        "sub-1",
		Status:    models.SubmissionStatusTrashed,
		DecidedBy: "mod-2",
		DecidedAt: now,
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryUpdateAttrsRejectsDecided(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET title")).WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpdateAttrs(context.Background(), "sub-1", "New Title", []byte(`{}`))
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryCountPending(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()

	repo := NewSubmissionRepository(db)
	rows := sqlmock.NewRows([]string{"content_type", "count"}).
		AddRow("ARTIST", 2).
		AddRow("EVENT", 5)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT content_type, COUNT(*)")).WillReturnRows(rows)

	counts, err := repo.CountPending(context.Background())
	require.NoError(t, err)
	require.Len(t, counts, 2)
	require.Equal(t, 5, counts[1].Count)
	require.NoError(t, mock.ExpectationsWereMet())
}
