package main

import (
	"context"

	"go.uber.org/zap"

	appanalytics "github.com/bryanwahyu/clickrank/src/app/analytics"
	rankingsvc "github.com/bryanwahyu/clickrank/src/app/ranking"
	"github.com/bryanwahyu/clickrank/src/config"
	"github.com/bryanwahyu/clickrank/src/domain/analytics"
	"github.com/bryanwahyu/clickrank/src/domain/ranking"
	infraanalytics "github.com/bryanwahyu/clickrank/src/infra/analytics"
	infraranking "github.com/bryanwahyu/clickrank/src/infra/ranking"
)

// openRepository selects Postgres when a database URL is configured and the
// in-memory store otherwise. The returned close func is always safe to call.
func openRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger, migrate bool) (ranking.Repository, func(), error) {
	if cfg.Database.URL == "" {
		logger.Warn("no database configured, rankings are kept in memory only")
		return infraranking.NewMemoryRepository(), func() {}, nil
	}

	repo, err := infraranking.OpenPostgresRepository(ctx, infraranking.PostgresOptions{
		URL:               cfg.Database.URL,
		MaxConns:          cfg.Database.MaxConns,
		MinConns:          cfg.Database.MinConns,
		MaxConnLifetime:   cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:   cfg.Database.MaxConnIdleTime,
		HealthCheckPeriod: cfg.Database.HealthCheckPeriod,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("connected to postgres")

	if migrate {
		applied, err := repo.EnsureSchema(ctx)
		if err != nil {
			repo.Close()
			return nil, nil, err
		}
		logger.Info("rankings schema ensured", zap.Int("migrations_applied", applied))
	}
	return repo, repo.Close, nil
}

func newDispatcher(cfg *config.Config, logger *zap.Logger) analytics.EventDispatcher {
	if cfg.Analytics.SegmentKey == "" {
		return infraanalytics.NoopDispatcher{}
	}
	logger.Info("score events enabled")
	return infraanalytics.NewSegmentDispatcher(cfg.Analytics.SegmentKey, cfg.Analytics.BaseURL)
}

func newRankingService(cfg *config.Config, repo ranking.Repository, events analytics.EventDispatcher, logger *zap.Logger) *rankingsvc.Service {
	var tracker rankingsvc.ScoreTracker
	if events != nil {
		tracker = appanalytics.NewService(events)
	}
	svc := rankingsvc.NewService(repo, tracker, logger)
	svc.Limits = ranking.Limits{
		MaxNicknameLength: cfg.Ranking.MaxNicknameLength,
		MaxScore:          cfg.Ranking.MaxScore,
	}
	svc.DefaultLimit = cfg.Ranking.DefaultLimit
	svc.MaxLimit = cfg.Ranking.MaxLimit
	return svc
}
