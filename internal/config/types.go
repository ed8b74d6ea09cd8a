package config

import "time"

// Config represents the complete wordbot configuration.
type Config struct {
	Service      ServiceConfig      `yaml:"service"`
	Discord      DiscordConfig      `yaml:"discord"`
	Webhook      WebhookConfig      `yaml:"webhook"`
	Registration RegistrationConfig `yaml:"registration"`
	Ops          OpsConfig          `yaml:"ops"`
	State        StateConfig        `yaml:"state"`
	Commands     []CommandConfig    `yaml:"commands"`

	// SourcePath is the absolute path of the loaded file; empty when the
	// configuration came from the environment only.
	SourcePath string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // json | text
}

// DiscordConfig defines how wordbot talks to the platform's REST API.
type DiscordConfig struct {
	APIBase       string `yaml:"api_base"`
	ApplicationID string `yaml:"application_id"`
	BotToken      string `yaml:"bot_token"`
	// PublicKey is the hex verifying key. When empty it is fetched once
	// from the application metadata at startup.
	PublicKey               string        `yaml:"public_key"`
	InteractionsEndpointURL string        `yaml:"interactions_endpoint_url"`
	RegisterCommands        bool          `yaml:"register_commands"`
	RequestTimeout          time.Duration `yaml:"request_timeout"`
}

// WebhookConfig defines the interactions listener.
type WebhookConfig struct {
	Listen      string `yaml:"listen"`
	MaxBodySize string `yaml:"max_body_size"` // e.g. "1MB", "65536"
	// MaxTimestampSkew rejects signed timestamps further than this from
	// the server clock. Zero disables the check.
	MaxTimestampSkew time.Duration `yaml:"max_timestamp_skew"`
}

// RegistrationConfig tunes the background endpoint registration retries.
type RegistrationConfig struct {
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	MaxAttempts    int           `yaml:"max_attempts"` // 0 = until success or shutdown
}

// OpsConfig defines the operator listener (health, metrics, event stream).
type OpsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	APIKey  string `yaml:"api_key"`
}

// StateConfig defines audit log storage.
type StateConfig struct {
	Path      string        `yaml:"path"` // empty disables the audit log
	Retention time.Duration `yaml:"retention"`
}

// CommandConfig defines a single slash command.
type CommandConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	// WordsFile is read relative to the config file. Empty selects the
	// word list built into the binary.
	WordsFile string `yaml:"words_file,omitempty"`
}

// DefaultAPIBase is the platform REST endpoint.
const DefaultAPIBase = "https://discord.com/api/v10"

// Defaults returns a Config with the values used when a key is absent.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "wordbot",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Discord: DiscordConfig{
			APIBase:          DefaultAPIBase,
			RegisterCommands: true,
			RequestTimeout:   10 * time.Second,
		},
		Webhook: WebhookConfig{
			Listen:      "0.0.0.0:3000",
			MaxBodySize: "1MB",
		},
		Registration: RegistrationConfig{
			InitialBackoff: 2 * time.Second,
			MaxBackoff:     5 * time.Minute,
		},
		Ops: OpsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8081",
		},
		State: StateConfig{
			Path:      "./data/wordbot.db",
			Retention: 30 * 24 * time.Hour,
		},
		Commands: []CommandConfig{
			{Name: "city", Description: "generate a random city"},
		},
	}
}
