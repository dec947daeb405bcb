package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bryanwahyu/clickrank/src/config"
	"github.com/bryanwahyu/clickrank/src/domain/ranking"
	"github.com/bryanwahyu/clickrank/src/logging"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "clickrank",
		Short:         "Leaderboard backend for the click-the-streamer game",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	load := func() (*config.Config, *zap.Logger, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, nil, err
		}
		logger, err := logging.New(cfg.Log)
		if err != nil {
			return nil, nil, err
		}
		return cfg, logger, nil
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, logger, err := load()
				if err != nil {
					return err
				}
				defer func() { _ = logger.Sync() }()
				return serve(cmd.Context(), cfg, logger)
			},
		},
		&cobra.Command{
			Use:   "schema",
			Short: "Create the rankings table and indexes if missing",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, logger, err := load()
				if err != nil {
					return err
				}
				defer func() { _ = logger.Sync() }()
				if cfg.Database.URL == "" {
					return errors.New("database url is not configured")
				}
				_, closeRepo, err := openRepository(cmd.Context(), cfg, logger, true)
				if err != nil {
					return err
				}
				closeRepo()
				return nil
			},
		},
		newTopCommand(load),
	)
	return root
}

func newTopCommand(load func() (*config.Config, *zap.Logger, error)) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Print the leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			repo, closeRepo, err := openRepository(cmd.Context(), cfg, logger, false)
			if err != nil {
				return err
			}
			defer closeRepo()

			svc := newRankingService(cfg, repo, nil, logger)
			entries, err := svc.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printLeaderboard(cmd.OutOrStdout(), entriesToRows(entries))
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of entries to print")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	baseCtx, cancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	repo, closeRepo, err := openRepository(baseCtx, cfg, logger, cfg.Database.AutoMigrate)
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}
	defer closeRepo()

	var limiter *rateLimiter
	if cfg.RateLimit.RPS > 0 {
		limiter = newRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		trusted, err := cfg.RateLimit.TrustedProxyPrefixes()
		if err != nil {
			return err
		}
		limiter.TrustProxies(trusted)
		go limiter.Run(baseCtx)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := newRankingService(cfg, repo, newDispatcher(cfg, logger), logger)
	server := NewServer(ServerConfig{
		Logger:         logger,
		RankingService: svc,
		RateLimiter:    limiter,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Registry:       registry,
		MetricsEnabled: cfg.Metrics.Enabled,
	})

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("clickrank API listening", zap.String("addr", cfg.HTTP.Address))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-baseCtx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		return err
	}
	if err := svc.Wait(shutdownCtx); err != nil {
		logger.Warn("score events still pending at shutdown", zap.Error(err))
	}
	logger.Info("server shutdown complete")
	return nil
}

type leaderboardRow struct {
	Position int
	Nickname string
	Score    int
	At       time.Time
}

func printLeaderboard(w io.Writer, rows []leaderboardRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNICKNAME\tSCORE\tSET AT")
	for _, row := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", row.Position, row.Nickname, row.Score, row.At.Format(time.RFC3339))
	}
	return tw.Flush()
}

func entriesToRows(entries []ranking.Entry) []leaderboardRow {
	rows := make([]leaderboardRow, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, leaderboardRow{
			Position: i + 1,
			Nickname: e.Nickname.String(),
			Score:    e.Score,
			At:       e.CreatedAt,
		})
	}
	return rows
}
