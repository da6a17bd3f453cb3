package challenge

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpataki/figwalk/internal/models"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestParseBytes(t *testing.T) {
	c, err := ParseBytes([]byte(`
name: checkout
persona: A teenager on a cracked phone
profile: |
  Lives in Toronto.
challenge: Buy the cheapest pair of shoes
flow: Checkout
runs: 3
max_steps: 6
`))
	require.NoError(t, err)

	assert.Equal(t, "checkout", c.Name)
	assert.Equal(t, "A teenager on a cracked phone", c.Persona)
	assert.Equal(t, "Lives in Toronto.\n", c.Profile)
	assert.Equal(t, "Checkout", c.Flow)
	assert.Equal(t, 3, c.Runs)
	assert.Equal(t, 6, c.MaxSteps)
	assert.NoError(t, Validate(c))
}

func TestParseBytes_Defaults(t *testing.T) {
	c, err := ParseBytes([]byte("name: quick\nchallenge: Find settings\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, c.Runs)
	assert.Equal(t, 10, c.MaxSteps)
	assert.Empty(t, c.Persona)
}

func TestParseBytes_Invalid(t *testing.T) {
	_, err := ParseBytes([]byte("name: [unclosed"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInput))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		c       Challenge
		wantErr string
	}{
		{name: "ok", c: Challenge{Name: "a", Challenge: "do it", Runs: 1, MaxSteps: 1}},
		{name: "no name", c: Challenge{Challenge: "do it", Runs: 1, MaxSteps: 1}, wantErr: "must have a name"},
		{name: "blank task", c: Challenge{Name: "a", Challenge: "  ", Runs: 1, MaxSteps: 1}, wantErr: "must describe a task"},
		{name: "too many runs", c: Challenge{Name: "a", Challenge: "x", Runs: 11, MaxSteps: 1}, wantErr: "runs must be between"},
		{name: "negative steps", c: Challenge{Name: "a", Challenge: "x", Runs: 1, MaxSteps: -2}, wantErr: "max_steps must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.c)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrInput))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadAll(t *testing.T) {
	user := t.TempDir()
	project := t.TempDir()

	writeFile(t, user, "onboarding.yaml", "challenge: Sign up\npersona: user-level\n")
	writeFile(t, user, "shared.yml", "name: shared\nchallenge: From user dir\n")
	writeFile(t, user, "notes.txt", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(user, "nested.yaml"), 0755))
	writeFile(t, project, "shared.yaml", "name: shared\nchallenge: From project dir\n")

	all, err := LoadAll([]string{user, filepath.Join(user, "missing"), project})
	require.NoError(t, err)

	require.Len(t, all, 2)
	require.Contains(t, all, "onboarding")
	assert.Equal(t, "onboarding", all["onboarding"].Name)
	assert.Equal(t, "Sign up", all["onboarding"].Challenge)
	assert.Equal(t, "From project dir", all["shared"].Challenge)
}

func TestLoadAll_BadFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "challenge: [oops")

	_, err := LoadAll([]string{dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.yaml")
}
