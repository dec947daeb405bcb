package ranking

import (
	"context"
	"errors"
	"fmt"
	"time"

	migrate "github.com/heroiclabs/sql-migrate"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bryanwahyu/clickrank/src/domain/ranking"
	"github.com/bryanwahyu/clickrank/src/domain/shared"
)

// PostgresOptions configures the connection pool.
type PostgresOptions struct {
	URL               string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration
}

// PostgresRepository implements ranking.Repository on a single rankings table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository wraps an existing pool. The caller keeps ownership of the pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// OpenPostgresRepository creates a pool, verifies connectivity and returns a
// repository that owns it. Close releases the pool.
func OpenPostgresRepository(ctx context.Context, opts PostgresOptions) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = opts.MinConns
	}
	if opts.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = opts.MaxConnIdleTime
	}
	if opts.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = opts.HealthCheckPeriod
	}

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, classify(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, classify(err)
	}
	return &PostgresRepository{pool: pool}, nil
}

// Close releases the underlying pool.
func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// EnsureSchema applies pending migrations and reports how many ran. An
// up-to-date database applies none.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) (int, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, classify(err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockKey); err != nil {
		return 0, classify(err)
	}
	defer func() {
		_, _ = conn.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", migrationLockKey)
	}()

	applied, err := migrationSet.Exec(ctx, conn.Conn(), migrationSource, migrate.Up)
	if err != nil {
		return applied, classify(fmt.Errorf("apply migrations: %w", err))
	}
	return applied, nil
}

// Submit runs in one transaction. A new nickname is inserted with
// ON CONFLICT DO NOTHING; otherwise the existing row is locked and the score
// replaced only through the guarded UPDATE (score < new). Concurrent
// submissions for the same nickname serialize on the row lock, submissions for
// different nicknames touch different rows.
func (r *PostgresRepository) Submit(ctx context.Context, s ranking.Submission) (ranking.Outcome, error) {
	var outcome ranking.Outcome
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		created, err := scanEntry(tx.QueryRow(ctx, insertEntrySQL, s.Nickname.String(), s.Score, s.SubmittedAt))
		if err == nil {
			outcome = ranking.Created(created)
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		current, err := scanEntry(tx.QueryRow(ctx, lockEntrySQL, s.Nickname.String()))
		if err != nil {
			return err
		}

		improved := current
		err = tx.QueryRow(ctx, improveEntrySQL, current.ID, s.Score, s.SubmittedAt).Scan(&improved.Score, &improved.CreatedAt)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			outcome = ranking.NotImproved(current)
			return nil
		case err != nil:
			return err
		}
		improved.CreatedAt = improved.CreatedAt.UTC()
		outcome = ranking.Improved(current.Score, improved)
		return nil
	})
	if err != nil {
		return ranking.Outcome{}, classify(err)
	}
	return outcome, nil
}

func (r *PostgresRepository) List(ctx context.Context, limit int) ([]ranking.Entry, error) {
	if limit <= 0 {
		return nil, ranking.ErrInvalidLimit
	}

	rows, err := r.pool.Query(ctx, listEntriesSQL, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	entries := make([]ranking.Entry, 0, limit)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, classify(err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return entries, nil
}

func (r *PostgresRepository) Get(ctx context.Context, nickname shared.Nickname) (ranking.Entry, error) {
	entry, err := scanEntry(r.pool.QueryRow(ctx, getEntrySQL, nickname.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return ranking.Entry{}, ranking.ErrEntryNotFound
	}
	if err != nil {
		return ranking.Entry{}, classify(err)
	}
	return entry, nil
}

func (r *PostgresRepository) Position(ctx context.Context, entry ranking.Entry) (int, error) {
	var position int
	if err := r.pool.QueryRow(ctx, positionSQL, entry.Score, entry.CreatedAt, entry.ID).Scan(&position); err != nil {
		return 0, classify(err)
	}
	return position, nil
}

func (r *PostgresRepository) Stats(ctx context.Context) (ranking.Stats, error) {
	var stats ranking.Stats
	if err := r.pool.QueryRow(ctx, statsSQL).Scan(&stats.Players, &stats.TopScore); err != nil {
		return ranking.Stats{}, classify(err)
	}
	return stats, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return classify(r.pool.Ping(ctx))
}

func scanEntry(row pgx.Row) (ranking.Entry, error) {
	var (
		entry    ranking.Entry
		nickname string
	)
	if err := row.Scan(&entry.ID, &nickname, &entry.Score, &entry.CreatedAt); err != nil {
		return ranking.Entry{}, err
	}
	entry.Nickname = shared.Nickname(nickname)
	entry.CreatedAt = entry.CreatedAt.UTC()
	return entry, nil
}
