package ranking

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/clickrank/src/domain/ranking"
)

const testDatabaseURLEnv = "CLICKRANK_TEST_DATABASE_URL"

func TestPostgresRepository(t *testing.T) {
	url := os.Getenv(testDatabaseURLEnv)
	if url == "" {
		t.Skipf("%s not set", testDatabaseURLEnv)
	}

	ctx := context.Background()
	repo, err := OpenPostgresRepository(ctx, PostgresOptions{URL: url, MaxConns: 20})
	require.NoError(t, err)
	t.Cleanup(repo.Close)

	_, err = repo.EnsureSchema(ctx)
	require.NoError(t, err)
	// Applying twice must be harmless.
	applied, err := repo.EnsureSchema(ctx)
	require.NoError(t, err)
	require.Zero(t, applied)

	var recorded int
	require.NoError(t, repo.pool.QueryRow(ctx, "SELECT count(*) FROM "+migrationTable).Scan(&recorded))
	require.Equal(t, 1, recorded)

	runRepositoryContract(t, func(t *testing.T) ranking.Repository {
		_, err := repo.pool.Exec(ctx, "TRUNCATE rankings RESTART IDENTITY")
		require.NoError(t, err)
		return repo
	})
}
