package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewServeCmd verifies the serve command wiring.
func TestNewServeCmd(t *testing.T) {
	cmd := newServeCmd()
	assert.Equal(t, "serve", cmd.Use)
	require.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.Flags().Lookup("address"))
}

// TestNewAuditCmd verifies the audit command wiring and its flags.
func TestNewAuditCmd(t *testing.T) {
	cmd := newAuditCmd()
	assert.Equal(t, "audit [contract file]", cmd.Use)
	require.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.Flags().Lookup("enrich"))
	assert.NotNil(t, cmd.Flags().Lookup("report"))

	// Exactly one positional argument is required.
	assert.Error(t, cmd.Args(cmd, nil))
	assert.NoError(t, cmd.Args(cmd, []string{"Vault.sol"}))
}

// TestRootCmd_Subcommands verifies both subcommands are registered.
func TestRootCmd_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, sub := range rootCmd.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["audit"])
}
