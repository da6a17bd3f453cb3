package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpataki/figwalk/internal/models"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"FIGWALK_DATA_DIR", "FIGMA_TOKEN", "GEMINI_API_KEY", "API_KEY",
		"FIGWALK_MODEL", "FIGWALK_RPM", "FIGWALK_RPD", "FIGWALK_MAX_STEPS"} {
		t.Setenv(key, "")
	}
}

func TestNew_Defaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("FIGWALK_DATA_DIR", dir)

	c, err := New()
	require.NoError(t, err)

	assert.Equal(t, dir, c.DataDir)
	assert.Equal(t, filepath.Join(dir, "figwalk.db"), c.DBPath)
	assert.Equal(t, filepath.Join(dir, "workspaces"), c.WorkspacesDir())
	assert.Equal(t, []string{filepath.Join(dir, "challenges"), ".figwalk/challenges"}, c.ChallengeDirs())
	assert.Equal(t, DefaultModel, c.Model)
	assert.Equal(t, 20, c.PerMinute)
	assert.Equal(t, 1000, c.PerDay)
	assert.Equal(t, 10, c.MaxSteps)
	assert.Error(t, c.RequireFigma())

	require.NoError(t, c.EnsureDataDir())
	info, err := os.Stat(c.UserChallengeDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNew_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("FIGWALK_DATA_DIR", t.TempDir())
	t.Setenv("FIGMA_TOKEN", "figd_x")
	t.Setenv("API_KEY", "fallback")
	t.Setenv("FIGWALK_MODEL", "gemini-2.5-pro")
	t.Setenv("FIGWALK_RPM", "5")
	t.Setenv("FIGWALK_MAX_STEPS", "4")

	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, "figd_x", c.FigmaToken)
	assert.NoError(t, c.RequireFigma())
	assert.Equal(t, "fallback", c.GeminiAPIKey)
	assert.Equal(t, "gemini-2.5-pro", c.Model)
	assert.Equal(t, 5, c.PerMinute)
	assert.Equal(t, 4, c.MaxSteps)

	t.Setenv("GEMINI_API_KEY", "primary")
	c, err = New()
	require.NoError(t, err)
	assert.Equal(t, "primary", c.GeminiAPIKey)
}

func TestNew_BadNumber(t *testing.T) {
	clearEnv(t)
	t.Setenv("FIGWALK_DATA_DIR", t.TempDir())
	t.Setenv("FIGWALK_RPD", "lots")

	_, err := New()
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInput))
	assert.Contains(t, err.Error(), "FIGWALK_RPD")
}

func TestLoadEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("FIGWALK_RPM=7\nFIGMA_TOKEN=from-file\n"), 0644))

	// Already set variables are not overridden.
	t.Setenv("FIGMA_TOKEN", "from-env")
	// godotenv treats empty-but-set as set; unset so the file applies.
	os.Unsetenv("FIGWALK_RPM")
	t.Cleanup(func() { os.Unsetenv("FIGWALK_RPM") })

	require.NoError(t, LoadEnv(path))
	assert.Equal(t, "7", os.Getenv("FIGWALK_RPM"))
	assert.Equal(t, "from-env", os.Getenv("FIGMA_TOKEN"))

	assert.Error(t, LoadEnv(filepath.Join(t.TempDir(), "missing.env")))
}
