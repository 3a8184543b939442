package config_test

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsentry/chainsentry/internal/config"
)

// TestNewDefaultConfig verifies the defaults produce a valid, usable config.
func TestNewDefaultConfig(t *testing.T) {
	cfg := config.NewDefaultConfig()
	require.NotNil(t, cfg)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "slither", cfg.Analyzer.Binary)
	assert.Equal(t, []string{"reentrancy-eth"}, cfg.Analyzer.Detectors)
	assert.Equal(t, 300*time.Second, cfg.Analyzer.Timeout)
	assert.Equal(t, ":8000", cfg.Server.Address)
	assert.Equal(t, config.ProviderGemini, cfg.LLM.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	assert.Equal(t, "0.0.6374135", cfg.Ledger.InboundTopicID)
	assert.Equal(t, "testnet", cfg.Ledger.Network)
	assert.Empty(t, cfg.Database.URL)
}

// TestNewConfigFromViper_Overrides verifies file/env style overrides land in
// the struct.
func TestNewConfigFromViper_Overrides(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("analyzer.timeout", "30s")
	v.Set("analyzer.detectors", []string{"reentrancy-eth", "tx-origin"})
	v.Set("server.address", ":9000")
	v.Set("llm.requests_per_second", 0.5)

	cfg, err := config.NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Analyzer.Timeout)
	assert.Equal(t, []string{"reentrancy-eth", "tx-origin"}, cfg.Analyzer.Detectors)
	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.InDelta(t, 0.5, cfg.LLM.RequestsPerSecond, 1e-9)
}

// TestValidate_Failures verifies each invalid field is caught.
func TestValidate_Failures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"empty analyzer binary", func(c *config.Config) { c.Analyzer.Binary = "" }},
		{"zero analyzer timeout", func(c *config.Config) { c.Analyzer.Timeout = 0 }},
		{"empty server address", func(c *config.Config) { c.Server.Address = "" }},
		{"negative rate limit", func(c *config.Config) { c.LLM.RequestsPerSecond = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.NewDefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

// TestNewConfigFromViper_APIKeyFromEnv verifies the key binds from the
// environment and never from defaults.
func TestNewConfigFromViper_APIKeyFromEnv(t *testing.T) {
	t.Setenv("CHAINSENTRY_LLM_API_KEY", "secret-from-env")

	v := viper.New()
	config.SetDefaults(v)
	cfg, err := config.NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "secret-from-env", cfg.LLM.APIKey)
}
