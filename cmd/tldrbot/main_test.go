package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleHourIsValidated(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--schedule", "24"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --schedule")
}

func TestRejectsPositionalArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"daily"})
	assert.Error(t, cmd.Execute())
}

func TestListCreatesDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "agent.json")

	cmd := newRootCmd()
	cmd.SetArgs([]string{
		"--config", configPath,
		"--log-path", filepath.Join(dir, "tldrbot.log"),
		"--list",
	})
	require.NoError(t, cmd.Execute())

	_, err := os.Stat(configPath)
	assert.NoError(t, err)
}
