package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Match.TopK)
	assert.Nil(t, cfg.Match.MinScore)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, 30*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, 2, cfg.Registration.DefaultCapacity)
}

func TestLoad_FileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
store: memory
match:
  top_k: 3
  min_score: 0.25
embedding:
  provider: hashing
  model: custom-model
  timeout: 5s
registration:
  default_capacity: 4
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, 3, cfg.Match.TopK)
	require.NotNil(t, cfg.Match.MinScore)
	assert.InDelta(t, 0.25, *cfg.Match.MinScore, 1e-9)
	assert.Equal(t, "hashing", cfg.Embedding.Provider)
	assert.Equal(t, "custom-model", cfg.Embedding.Model)
	assert.Equal(t, 5*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, 4, cfg.Registration.DefaultCapacity)
	// untouched fields keep defaults
	assert.Equal(t, 4, cfg.Embedding.MaxAttempts)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("match:\n  top_k: 3\n"), 0o644))

	t.Setenv("MATCH_TOP_K", "9")
	t.Setenv("MATCH_MIN_SCORE", "0.5")
	t.Setenv("EMBEDDING_TIMEOUT", "2s")
	t.Setenv("EMBEDDING_MODEL", "text-embedding-3-large")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Match.TopK)
	require.NotNil(t, cfg.Match.MinScore)
	assert.InDelta(t, 0.5, *cfg.Match.MinScore, 1e-9)
	assert.Equal(t, 2*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, "text-embedding-3-large", cfg.Embedding.Model)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown store", "store: mongo\n"},
		{"unknown provider", "embedding:\n  provider: magic\n"},
		{"gcs without bucket", "storage:\n  backend: gcs\n"},
		{"min score out of range", "match:\n  min_score: 2\n"},
		{"negative capacity", "registration:\n  default_capacity: -1\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.yaml), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestDSN(t *testing.T) {
	d := Default().Database
	assert.Equal(t, "host=localhost port=5432 user=postgres password=postgres dbname=advisormatch sslmode=disable", d.DSN())

	t.Setenv("DATABASE_URL", "postgres://app@db:5432/match")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://app@db:5432/match", cfg.Database.DSN())
}
