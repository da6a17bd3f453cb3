package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpataki/figwalk/internal/config"
	"github.com/mpataki/figwalk/internal/models"
	"github.com/mpataki/figwalk/internal/prototype"
)

func TestPickFlow(t *testing.T) {
	res := &prototype.Result{Flows: []*prototype.Flow{
		{Name: "Onboarding", Root: &prototype.Node{ID: "1:1"}},
		{Name: "Checkout", Root: &prototype.Node{ID: "2:1"}},
	}}

	flow, err := pickFlow(res, "Checkout", "")
	require.NoError(t, err)
	assert.Equal(t, "2:1", flow.Root.ID)

	flow, err = pickFlow(res, "", "1:1")
	require.NoError(t, err)
	assert.Equal(t, "Onboarding", flow.Name)

	_, err = pickFlow(res, "", "")
	assert.True(t, errors.Is(err, models.ErrInput))

	_, err = pickFlow(res, "Settings", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "have: Onboarding, Checkout")

	single := &prototype.Result{Flows: res.Flows[:1]}
	flow, err = pickFlow(single, "", "")
	require.NoError(t, err)
	assert.Equal(t, "Onboarding", flow.Name)
}

func TestResolveChallenge(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{UserChallengeDir: dir, ProjectChallengeDir: filepath.Join(dir, "missing"), MaxSteps: 10}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "checkout.yaml"), []byte(
		"challenge: Buy shoes\npersona: A student\nflow: Checkout\nruns: 3\nmax_steps: 6\n"), 0644))

	t.Run("from file with overrides", func(t *testing.T) {
		cmd := newWalkCommand()
		require.NoError(t, cmd.Flags().Set("file", "checkout"))
		require.NoError(t, cmd.Flags().Set("runs", "25"))

		ch, err := resolveChallenge(cmd, cfg)
		require.NoError(t, err)
		assert.Equal(t, "Buy shoes", ch.Challenge)
		assert.Equal(t, "A student", ch.Persona)
		assert.Equal(t, "Checkout", ch.Flow)
		assert.Equal(t, 10, ch.Runs)
		assert.Equal(t, 6, ch.MaxSteps)
	})

	t.Run("from flags", func(t *testing.T) {
		cmd := newWalkCommand()
		require.NoError(t, cmd.Flags().Set("challenge", "Find the help page"))

		ch, err := resolveChallenge(cmd, cfg)
		require.NoError(t, err)
		assert.Equal(t, 1, ch.Runs)
		assert.Equal(t, 10, ch.MaxSteps)
		assert.Empty(t, ch.Persona)
	})

	t.Run("missing task", func(t *testing.T) {
		_, err := resolveChallenge(newWalkCommand(), cfg)
		assert.True(t, errors.Is(err, models.ErrInput))
	})

	t.Run("unknown file", func(t *testing.T) {
		cmd := newWalkCommand()
		require.NoError(t, cmd.Flags().Set("file", "nope"))
		_, err := resolveChallenge(cmd, cfg)
		assert.True(t, errors.Is(err, models.ErrInput))
	})
}
