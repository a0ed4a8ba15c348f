package config

import (
	"testing"

	"selfheal/internal/predictor"
	"selfheal/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverrides(t *testing.T) {
	t.Run("paths and backend", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SELFHEAL_MODEL_PATH", "/models/v2.json")
		t.Setenv("SELFHEAL_TRAINING_PATH", "/data/corpus.db")
		t.Setenv("SELFHEAL_TRAINING_BACKEND", "SQLite")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/models/v2.json", cfg.Predictor.ModelPath)
		assert.Equal(t, "/data/corpus.db", cfg.Training.Path)
		assert.Equal(t, store.BackendSQLite, cfg.Training.Backend)
	})

	t.Run("GEMINI_API_KEY enables the genai backend to validate", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GEMINI_API_KEY", "gm-key")

		cfg := DefaultConfig()
		cfg.Predictor.Backend = predictor.BackendGenAI
		cfg.applyEnvOverrides()

		assert.Equal(t, "gm-key", cfg.Predictor.GenAIAPIKey)
		require.NoError(t, cfg.Validate())
	})

	t.Run("numeric and boolean values", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SELFHEAL_PARALLEL", "3")
		t.Setenv("SELFHEAL_HEADLESS", "false")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, 3, cfg.Runner.Parallel)
		assert.False(t, cfg.Browser.Headless)
	})

	t.Run("malformed values are ignored", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SELFHEAL_PARALLEL", "many")
		t.Setenv("SELFHEAL_HEADLESS", "sometimes")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, 1, cfg.Runner.Parallel)
		assert.True(t, cfg.Browser.Headless)
	})

	t.Run("empty values leave config alone", func(t *testing.T) {
		clearEnv(t)

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, DefaultConfig(), cfg)
	})
}
