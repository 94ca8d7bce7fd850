package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFilesAreOrdered(t *testing.T) {
	files, err := migrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, "0001_auth_audit_events.sql", files[0])
	for i := 1; i < len(files); i++ {
		assert.Less(t, files[i-1], files[i])
	}
}

func TestMigration_Applied(t *testing.T) {
	now := time.Now()
	assert.False(t, Migration{Version: "0001"}.Applied())
	assert.True(t, Migration{Version: "0001", AppliedAt: &now}.Applied())
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// openTestDB connects to the local test database or skips.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		env("TEST_DB_USER", "console_auth"),
		env("TEST_DB_PASSWORD", "console_auth"),
		net.JoinHostPort(env("TEST_DB_HOST", "localhost"), env("TEST_DB_PORT", "55432")),
		env("TEST_DB_NAME", "console_auth"),
	)
	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		t.Skip("test database not available:", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunAndStatus_Integration(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, Run(ctx, db))
	require.NoError(t, Run(ctx, db), "second run is a no-op")

	status, err := Status(ctx, db)
	require.NoError(t, err)
	require.NotEmpty(t, status)
	for _, m := range status {
		assert.True(t, m.Applied(), m.Version)
	}
}
