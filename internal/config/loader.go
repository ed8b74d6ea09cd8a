package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/wordbot/internal/command"
	"github.com/mattjoyce/wordbot/internal/signature"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ErrNoConfig is returned by Discover when no configuration file exists.
var ErrNoConfig = errors.New("no config found (checked: $WORDBOT_CONFIG, ~/.config/wordbot/config.yaml, /etc/wordbot/config.yaml, ./config.yaml)")

// Load reads, interpolates, integrity-checks and validates a config file.
// A directory argument is resolved to <dir>/config.yaml.
func Load(configPath string) (*Config, error) {
	return load(configPath, true)
}

// LoadUnverified is Load without the .checksums check. It backs
// 'config lock', which must read a file whose hash has changed.
func LoadUnverified(configPath string) (*Config, error) {
	return load(configPath, false)
}

func load(configPath string, verify bool) (*Config, error) {
	absPath, err := ResolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfigFile(absPath)
	if err != nil {
		return nil, err
	}

	if verify {
		if err := VerifyChecksums(cfg); err != nil && !errors.Is(err, ErrNoChecksums) {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ResolveConfigPath returns the absolute config file path for a file or
// directory argument.
func ResolveConfigPath(configPath string) (string, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return "", fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}
	return absPath, nil
}

// Read parses a config file over the defaults without checking its
// integrity or validating it. Used by 'config check' to report every
// problem instead of stopping at the first.
func Read(configPath string) (*Config, error) {
	absPath, err := ResolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}
	return loadConfigFile(absPath)
}

// loadConfigFile parses a single file over the defaults without validating it.
func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML in %s: %w", path, err)
	}
	cfg.SourcePath = path
	return cfg, nil
}

// Discover finds the config file by checking standard locations.
// Priority order: $WORDBOT_CONFIG, ~/.config/wordbot/config.yaml,
// /etc/wordbot/config.yaml, ./config.yaml.
func Discover() (string, error) {
	if p := os.Getenv("WORDBOT_CONFIG"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(homeDir, ".config", "wordbot", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	for _, p := range []string{"/etc/wordbot/config.yaml", "./config.yaml"} {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", ErrNoConfig
}

// FromEnv builds a configuration from defaults plus environment variables,
// for deployments that carry no config file. lookup is usually os.LookupEnv.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Defaults()

	set := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	set("BOT_KEY", &cfg.Discord.BotToken)
	set("APPLICATION_ID", &cfg.Discord.ApplicationID)
	set("PUBLIC_KEY", &cfg.Discord.PublicKey)
	set("INTERACTION_ENDPOINTS_URL", &cfg.Discord.InteractionsEndpointURL)
	set("WORDBOT_API_BASE", &cfg.Discord.APIBase)
	set("WORDBOT_LISTEN", &cfg.Webhook.Listen)
	set("WORDBOT_LOG_LEVEL", &cfg.Service.LogLevel)
	set("WORDBOT_STATE_PATH", &cfg.State.Path)

	if v, ok := lookup("WORDBOT_REGISTER_COMMANDS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("WORDBOT_REGISTER_COMMANDS: %w", err)
		}
		cfg.Discord.RegisterCommands = b
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Unknown variables are left in place and caught by validation.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// UnresolvedEnvVars lists ${VAR} placeholders that survived interpolation.
func (c *Config) UnresolvedEnvVars() []string {
	fields := []string{
		c.Discord.APIBase, c.Discord.ApplicationID, c.Discord.BotToken,
		c.Discord.PublicKey, c.Discord.InteractionsEndpointURL,
		c.Webhook.Listen, c.Ops.Listen, c.Ops.APIKey, c.State.Path,
	}
	seen := make(map[string]bool)
	var out []string
	for _, f := range fields {
		for _, m := range envVarPattern.FindAllStringSubmatch(f, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				out = append(out, m[1])
			}
		}
	}
	return out
}

// Dir returns the directory relative paths in the config resolve against.
func (c *Config) Dir() string {
	if c.SourcePath == "" {
		if wd, err := os.Getwd(); err == nil {
			return wd
		}
		return "."
	}
	return filepath.Dir(c.SourcePath)
}

// ResolvePath makes p absolute relative to the config directory.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir(), p)
}

// MaxBodySizeLimit caps webhook.max_body_size. Interaction payloads are a few
// kilobytes.
const MaxBodySizeLimit = 64 << 20

// ParseSize parses size strings like "1MB", "64KB" or "2048576" to bytes.
func ParseSize(size string) (int64, error) {
	upper := strings.ToUpper(strings.TrimSpace(size))
	if upper == "" {
		return 0, fmt.Errorf("size is empty")
	}
	multiplier := int64(1)

	switch {
	case strings.HasSuffix(upper, "KB"):
		multiplier = 1024
		upper = strings.TrimSuffix(upper, "KB")
	case strings.HasSuffix(upper, "MB"):
		multiplier = 1024 * 1024
		upper = strings.TrimSuffix(upper, "MB")
	case strings.HasSuffix(upper, "GB"):
		multiplier = 1024 * 1024 * 1024
		upper = strings.TrimSuffix(upper, "GB")
	}

	value, err := strconv.ParseInt(strings.TrimSpace(upper), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %w", err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}

	result := value * multiplier
	if result/multiplier != value {
		return 0, fmt.Errorf("size too large")
	}
	return result, nil
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if vars := c.UnresolvedEnvVars(); len(vars) > 0 {
		add("unresolved environment variables: %s", strings.Join(vars, ", "))
	}

	switch strings.ToLower(c.Service.LogFormat) {
	case "json", "text":
	default:
		add("service.log_format: must be json or text, got %q", c.Service.LogFormat)
	}

	d := c.Discord
	if d.PublicKey != "" {
		if _, err := signature.ParseVerifyingKey(d.PublicKey); err != nil {
			add("discord.public_key: %v", err)
		}
	} else if d.BotToken == "" {
		add("discord.public_key: required when discord.bot_token is not set")
	}
	if d.RegisterCommands {
		if d.ApplicationID == "" {
			add("discord.application_id: required when register_commands is true")
		}
		if d.BotToken == "" {
			add("discord.bot_token: required when register_commands is true")
		}
	}
	if d.InteractionsEndpointURL != "" {
		if d.BotToken == "" {
			add("discord.bot_token: required when interactions_endpoint_url is set")
		}
		if err := checkHTTPURL(d.InteractionsEndpointURL); err != nil {
			add("discord.interactions_endpoint_url: %v", err)
		}
	}
	if err := checkHTTPURL(d.APIBase); err != nil {
		add("discord.api_base: %v", err)
	}
	if d.RequestTimeout <= 0 {
		add("discord.request_timeout: must be positive")
	}

	if c.Webhook.Listen == "" {
		add("webhook.listen: required")
	}
	if size, err := ParseSize(c.Webhook.MaxBodySize); err != nil {
		add("webhook.max_body_size: %v", err)
	} else if size > MaxBodySizeLimit {
		add("webhook.max_body_size: must not exceed %d bytes", int64(MaxBodySizeLimit))
	}
	if c.Webhook.MaxTimestampSkew < 0 {
		add("webhook.max_timestamp_skew: must not be negative")
	}

	r := c.Registration
	if r.InitialBackoff <= 0 {
		add("registration.initial_backoff: must be positive")
	}
	if r.MaxBackoff < r.InitialBackoff {
		add("registration.max_backoff: must be at least initial_backoff")
	}
	if r.MaxAttempts < 0 {
		add("registration.max_attempts: must not be negative")
	}

	if c.Ops.Enabled {
		if c.Ops.Listen == "" {
			add("ops.listen: required when ops is enabled")
		}
		if c.Ops.APIKey == "" {
			add("ops.api_key: required when ops is enabled")
		}
		if c.Ops.Listen == c.Webhook.Listen {
			add("ops.listen: must differ from webhook.listen")
		}
	}

	if c.State.Retention < 0 {
		add("state.retention: must not be negative")
	}

	if len(c.Commands) == 0 {
		add("commands: at least one command is required")
	}
	seen := make(map[string]bool, len(c.Commands))
	for i, cc := range c.Commands {
		if !command.ValidName(cc.Name) {
			add("commands[%d].name: invalid command name %q", i, cc.Name)
		}
		if seen[cc.Name] {
			add("commands[%d].name: duplicate command %q", i, cc.Name)
		}
		seen[cc.Name] = true
		if cc.Description == "" {
			add("commands[%d].description: required", i)
		}
		if cc.WordsFile == "" && !command.HasBuiltinWords(cc.Name) {
			add("commands[%d].words_file: required, no built-in word list for %q", i, cc.Name)
		}
	}

	return errors.Join(errs...)
}

func checkHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must be an http(s) URL, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

// BuildCommands loads every configured word list and returns the commands
// ready for command.NewRegistry.
func (c *Config) BuildCommands() ([]command.Command, error) {
	out := make([]command.Command, 0, len(c.Commands))
	for i, cc := range c.Commands {
		var (
			words []string
			err   error
		)
		if cc.WordsFile != "" {
			words, err = command.LoadWordsFile(c.ResolvePath(cc.WordsFile))
		} else {
			words, err = command.BuiltinWords(cc.Name)
		}
		if err != nil {
			return nil, fmt.Errorf("commands[%d] (%s): %w", i, cc.Name, err)
		}
		out = append(out, command.Command{
			Name:        cc.Name,
			Description: cc.Description,
			Words:       words,
		})
	}
	return out, nil
}
