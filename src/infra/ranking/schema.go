package ranking

import (
	"embed"

	migrate "github.com/heroiclabs/sql-migrate"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationTable = "clickrank_migrations"

// migrationLockKey serializes schema changes across instances sharing a database.
const migrationLockKey int64 = 0x636c69636b72616e

var (
	migrationSet    = migrate.MigrationSet{TableName: migrationTable}
	migrationSource = migrate.EmbedFileSystemMigrationSource{FileSystem: migrationFS, Root: "migrations"}
)

const (
	insertEntrySQL = `
INSERT INTO rankings (nickname, score, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (nickname) DO NOTHING
RETURNING id, nickname, score, created_at`

	lockEntrySQL = `
SELECT id, nickname, score, created_at
FROM rankings
WHERE nickname = $1
FOR UPDATE`

	improveEntrySQL = `
UPDATE rankings
SET score = $2, created_at = $3
WHERE id = $1 AND score < $2
RETURNING score, created_at`

	listEntriesSQL = `
SELECT id, nickname, score, created_at
FROM rankings
ORDER BY score DESC, created_at ASC, id ASC
LIMIT $1`

	getEntrySQL = `
SELECT id, nickname, score, created_at
FROM rankings
WHERE nickname = $1`

	positionSQL = `
SELECT count(*) + 1
FROM rankings
WHERE score > $1
   OR (score = $1 AND (created_at < $2 OR (created_at = $2 AND id < $3)))`

	statsSQL = `SELECT count(*), COALESCE(max(score), 0) FROM rankings`
)
