package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/artsdesk/artsdesk-api/internal/models"
	appErrors "github.com/artsdesk/artsdesk-api/pkg/errors"
)

type statsSubmissionStore interface {
	CountPending(ctx context.Context) ([]models.PendingCount, error)
	DecisionCounts(ctx context.Context, since time.Time) ([]models.DailyDecisionCount, error)
	AverageDecisionHours(ctx context.Context, since time.Time) (float64, error)
}

type statsMetricsRecorder interface {
	RecordCacheOperation(hit bool, duration time.Duration)
	ObserveCacheWrite(duration time.Duration)
}

const (
	statsCacheKey = "artsdesk:stats:moderation"
	statsWindow   = 30 * 24 * time.Hour
)

// StatsService computes moderation dashboard aggregates with a Redis
// cache-aside layer in front of the heavier queries.
type StatsService struct {
	subs     statsSubmissionStore
	redis    *redis.Client
	metrics  statsMetricsRecorder
	logger   *zap.Logger
	cacheTTL time.Duration
}

// NewStatsService constructs the service. The Redis client may be nil, in
// which case every call recomputes.
func NewStatsService(subs statsSubmissionStore, redisClient *redis.Client, metrics statsMetricsRecorder, logger *zap.Logger, cacheTTL time.Duration) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &StatsService{subs: subs, redis: redisClient, metrics: metrics, logger: logger, cacheTTL: cacheTTL}
}

// Moderation returns queue totals, thirty days of decisions, and the average
// submit-to-decision latency.
func (s *StatsService) Moderation(ctx context.Context, actor *models.JWTClaims) (*models.ModerationStats, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !canModerate(actor.Role) {
		return nil, appErrors.ErrForbidden
	}

	if cached := s.fromCache(ctx); cached != nil {
		return cached, nil
	}

	since := time.Now().UTC().Add(-statsWindow)
	pending, err := s.subs.CountPending(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending submissions")
	}
	decisions, err := s.subs.DecisionCounts(ctx, since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load decision counts")
	}
	avgHours, err := s.subs.AverageDecisionHours(ctx, since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute decision latency")
	}

	stats := &models.ModerationStats{
		Pending:          pending,
		Decisions:        decisions,
		AvgDecisionHours: avgHours,
		GeneratedAt:      time.Now().UTC(),
	}
	s.toCache(ctx, stats)
	return stats, nil
}

// Invalidate drops the cached aggregate, called after bulk moderation runs.
func (s *StatsService) Invalidate(ctx context.Context) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, statsCacheKey).Err(); err != nil {
		s.logger.Warn("failed to invalidate stats cache", zap.Error(err))
	}
}

func (s *StatsService) fromCache(ctx context.Context) *models.ModerationStats {
	if s.redis == nil {
		return nil
	}
	start := time.Now()
	raw, err := s.redis.Get(ctx, statsCacheKey).Bytes()
	hit := err == nil
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(hit, time.Since(start))
	}
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("stats cache read failed", zap.Error(err))
		}
		return nil
	}
	var stats models.ModerationStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		s.logger.Warn("stats cache payload malformed", zap.Error(err))
		return nil
	}
	return &stats
}

func (s *StatsService) toCache(ctx context.Context, stats *models.ModerationStats) {
	if s.redis == nil {
		return
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		s.logger.Warn("failed to encode stats cache payload", zap.Error(err))
		return
	}
	start := time.Now()
	if err := s.redis.Set(ctx, statsCacheKey, raw, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("stats cache write failed", zap.Error(err))
		return
	}
	if s.metrics != nil {
		s.metrics.ObserveCacheWrite(time.Since(start))
	}
}
