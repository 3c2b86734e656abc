package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "reconcile", "integrity", "snapshot", "timeouts", "sync", "migrate", "seed"} {
		assert.True(t, names[want], want)
	}

	sub, _, err := rootCmd.Find([]string{"migrate", "version"})
	require.NoError(t, err)
	assert.Equal(t, "version", sub.Name())

	serve, _, err := rootCmd.Find([]string{"serve"})
	require.NoError(t, err)
	assert.NotNil(t, serve.Flags().Lookup("migrate"))
	assert.NotNil(t, serve.Flags().Lookup("no-jobs"))
}

func TestLoadConfig_InvalidGinMode(t *testing.T) {
	t.Setenv("GIN_MODE", "verbose")

	_, _, err := loadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GIN_MODE")
}
