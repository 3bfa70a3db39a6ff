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

func newUpgradeRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestUpgradeRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newUpgradeRepoMock(t)
	defer cleanup()

	repo := NewUpgradeRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO upgrade_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	request := &models.UpgradeRequest{
		UserID:     "user-1",
		TargetRole: models.RoleArtist,
	}
	require.NoError(t, repo.Create(context.Background(), request))
	require.NotEmpty(t, request.ID)
	require.Equal(t, models.UpgradeStatusPending, request.Status)
	require.False(t, request.RequestedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpgradeRepositoryFindPendingByUserAndRole(t *testing.T) {
	db, mock, cleanup := newUpgradeRepoMock(t)
	defer cleanup()

	repo := NewUpgradeRepository(db)
	rows := sqlmock.NewRows([]string{"id", "user_id", "target_role", "draft_id", "status", "reason", "requested_at", "decided_by", "decided_at"}).
		AddRow("upg-1", "user-1", "ARTIST", nil, "PENDING", nil, time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, target_role")).
		WithArgs("user-1", models.RoleArtist).
		WillReturnRows(rows)

	found, err := repo.FindPendingByUserAndRole(context.Background(), "user-1", models.RoleArtist)
	require.NoError(t, err)
	require.Equal(t, "upg-1", found.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpgradeRepositoryDecideGuard(t *testing.T) {
	db, mock, cleanup := newUpgradeRepoMock(t)
	defer cleanup()

	repo := NewUpgradeRepository(db)
	now := time.Now().UTC()
	reason := "profile incomplete"

	mock.ExpectExec(regexp.QuoteMeta("UPDATE upgrade_requests SET")).WillReturnResult(sqlmock.NewResult(0, 1))
	err := repo.Decide(context.Background(), DecideUpgradeParams{
		ID:        "upg-1",
		Status:    models.UpgradeStatusDenied,
		DecidedBy: "admin-1",
		DecidedAt: now,
		Reason:    &reason,
	})
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE upgrade_requests SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.Decide(context.Background(), DecideUpgradeParams{
		ID:        "upg-1",
		Status:    models.UpgradeStatusApproved,
		DecidedBy: "admin-1",
		DecidedAt: now,
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
