package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/artsdesk/artsdesk-api/internal/models"
	appErrors "github.com/artsdesk/artsdesk-api/pkg/errors"
)

type statsStoreStub struct {
	pending   []models.PendingCount
	decisions []models.DailyDecisionCount
	avgHours  float64
	since     time.Time
	calls     int
}

func (s *statsStoreStub) CountPending(ctx context.Context) ([]models.PendingCount, error) {
	s.calls++
	return s.pending, nil
}

func (s *statsStoreStub) DecisionCounts(ctx context.Context, since time.Time) ([]models.DailyDecisionCount, error) {
	s.since = since
	return s.decisions, nil
}

func (s *statsStoreStub) AverageDecisionHours(ctx context.Context, since time.Time) (float64, error) {
	return s.avgHours, nil
}

func TestStatsServiceModerationWithoutCache(t *testing.T) {
	store := &statsStoreStub{
		pending:  []models.PendingCount{{ContentType: models.ContentTypeEvent, Count: 4}},
		avgHours: 18.5,
	}
	svc := NewStatsService(store, nil, nil, nil, 0)

	stats, err := svc.Moderation(context.Background(), moderatorClaims("mod-1"))
	require.NoError(t, err)
	require.Equal(t, store.pending, stats.Pending)
	require.Equal(t, 18.5, stats.AvgDecisionHours)
	require.False(t, stats.GeneratedAt.IsZero())

	// Thirty day window.
	require.WithinDuration(t, time.Now().UTC().Add(-30*24*time.Hour), store.since, time.Minute)

	// No cache configured, so a second call recomputes.
	_, err = svc.Moderation(context.Background(), moderatorClaims("mod-1"))
	require.NoError(t, err)
	require.Equal(t, 2, store.calls)
}

func TestStatsServiceModerationForbiddenForMembers(t *testing.T) {
	svc := NewStatsService(&statsStoreStub{}, nil, nil, nil, 0)

	_, err := svc.Moderation(context.Background(), memberClaims("user-1"))
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Moderation(context.Background(), nil)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestStatsServiceInvalidateWithoutRedisIsNoop(t *testing.T) {
	svc := NewStatsService(&statsStoreStub{}, nil, nil, nil, 0)
	svc.Invalidate(context.Background())
}
