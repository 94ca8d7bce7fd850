package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/console-auth/internal/tokenclaims"
)

func TestDefaultTestDBConfig(t *testing.T) {
	t.Run("defaults to local test database port 55432", func(t *testing.T) {
		for _, k := range []string{"TEST_DB_HOST", "TEST_DB_PORT", "TEST_DB_USER", "TEST_DB_PASSWORD", "TEST_DB_NAME"} {
			t.Setenv(k, "")
		}
		cfg := DefaultTestDBConfig()
		assert.Equal(t, TestDBConfig{
			Host:     "localhost",
			Port:     "55432",
			User:     "console_auth",
			Password: "console_auth",
			DBName:   "console_auth",
		}, cfg)
	})

	t.Run("respects TEST_DB_PORT environment variable", func(t *testing.T) {
		t.Setenv("TEST_DB_HOST", "postgres")
		t.Setenv("TEST_DB_PORT", "5432")
		cfg := DefaultTestDBConfig()
		assert.Equal(t, "postgres", cfg.Host)
		assert.Equal(t, "5432", cfg.Port)
	})
}

func TestTokensForDecode(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	toks := TokensFor(t, "alice", "sub-1", exp)

	id, err := tokenclaims.DecodeIdentity(toks)
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Username)
	assert.Equal(t, "sub-1", id.SubjectID)

	got, ok, err := tokenclaims.ExpiresAt(toks.IDToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, exp.Equal(got))
}
