package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Analyzer AnalyzerConfig `mapstructure:"analyzer" yaml:"analyzer"`
	LLM      LLMConfig      `mapstructure:"llm" yaml:"llm"`
	Ledger   LedgerConfig   `mapstructure:"ledger" yaml:"ledger"`
	Report   ReportConfig   `mapstructure:"report" yaml:"report"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// ServerConfig configures the REST API server.
type ServerConfig struct {
	Address         string        `mapstructure:"address" yaml:"address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	AuditTimeout    time.Duration `mapstructure:"audit_timeout" yaml:"audit_timeout"`
}

// AnalyzerConfig configures the external static-analyzer invocation.
type AnalyzerConfig struct {
	// Binary is the analyzer executable name or path.
	Binary string `mapstructure:"binary" yaml:"binary"`
	// Detectors lists the detector rules passed via --detect.
	Detectors []string `mapstructure:"detectors" yaml:"detectors"`
	// Timeout bounds one subprocess invocation.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// LLMProvider identifies a supported language model backend.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
)

// LLMConfig configures the language model client used for enrichment.
type LLMConfig struct {
	Provider          LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model             string        `mapstructure:"model" yaml:"model"`
	APIKey            string        `mapstructure:"api_key" yaml:"-"`
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

// LedgerConfig configures the HCS-10 agent and its topic transport.
type LedgerConfig struct {
	Network          string `mapstructure:"network" yaml:"network"`
	OperatorID       string `mapstructure:"operator_id" yaml:"operator_id"`
	RegistryTopicID  string `mapstructure:"registry_topic_id" yaml:"registry_topic_id"`
	AgentName        string `mapstructure:"agent_name" yaml:"agent_name"`
	AgentDescription string `mapstructure:"agent_description" yaml:"agent_description"`
	InboundTopicID   string `mapstructure:"inbound_topic_id" yaml:"inbound_topic_id"`
	OutboundTopicID  string `mapstructure:"outbound_topic_id" yaml:"outbound_topic_id"`
	MetadataTopicID  string `mapstructure:"metadata_topic_id" yaml:"metadata_topic_id"`
	// RelayEndpoint is the HTTP topic relay. Empty selects the in-memory
	// transport, which records messages locally and issues mock transaction ids.
	RelayEndpoint string `mapstructure:"relay_endpoint" yaml:"relay_endpoint"`
}

// ReportConfig configures PDF report rendering.
type ReportConfig struct {
	Title  string `mapstructure:"title" yaml:"title"`
	Footer string `mapstructure:"footer" yaml:"footer"`
}

// DatabaseConfig holds the audit store connection details. An empty URL
// disables persistence.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"-"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "chainsentry")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Server --
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.audit_timeout", "15m")

	// -- Analyzer --
	v.SetDefault("analyzer.binary", "slither")
	v.SetDefault("analyzer.detectors", []string{"reentrancy-eth"})
	v.SetDefault("analyzer.timeout", "300s")

	// -- LLM --
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.api_timeout", "60s")
	v.SetDefault("llm.requests_per_second", 2.0)

	// -- Ledger --
	v.SetDefault("ledger.network", "testnet")
	v.SetDefault("ledger.agent_name", "ChainSentry")
	v.SetDefault("ledger.agent_description", "AI-powered auditing agent for Hedera smart contracts")
	v.SetDefault("ledger.inbound_topic_id", "0.0.6374135")
	v.SetDefault("ledger.outbound_topic_id", "0.0.6374137")
	v.SetDefault("ledger.metadata_topic_id", "0.0.6374143")
	v.SetDefault("ledger.relay_endpoint", "")

	// -- Report --
	v.SetDefault("report.title", "Smart Contract Audit Report")
	v.SetDefault("report.footer", "Generated by ChainSentry")
}

// NewDefaultConfig creates a configuration struct populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a validated configuration from a viper instance.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Sensitive values come from the environment, never config files.
	v.BindEnv("llm.api_key", "CHAINSENTRY_LLM_API_KEY")
	v.BindEnv("database.url", "CHAINSENTRY_DATABASE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Analyzer.Binary == "" {
		return fmt.Errorf("analyzer.binary must not be empty")
	}
	if c.Analyzer.Timeout <= 0 {
		return fmt.Errorf("analyzer.timeout must be a positive duration")
	}
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.LLM.RequestsPerSecond < 0 {
		return fmt.Errorf("llm.requests_per_second must not be negative")
	}
	return nil
}
