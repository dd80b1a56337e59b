// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/seven/internal/energy"
	"github.com/jeranaias/seven/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete seven configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	Routing   RoutingConfig   `toml:"routing" json:"routing"`
	Local     LocalConfig     `toml:"local" json:"local"`
	Cloud     CloudConfig     `toml:"cloud" json:"cloud"`
	Realtime  RealtimeConfig  `toml:"realtime" json:"realtime"`
	Energy    EnergyConfig    `toml:"energy" json:"energy"`
	Telemetry TelemetryConfig `toml:"telemetry" json:"telemetry"`
	Logging   LoggingConfig   `toml:"logging" json:"logging"`
	Server    ServerConfig    `toml:"server" json:"server"`

	// envErrs collects malformed environment values for Validate.
	envErrs ValidateErrors
}

// RoutingConfig controls the escalation router.
type RoutingConfig struct {
	// AutoEscalate retries uncertain local answers once on the cloud backend.
	AutoEscalate bool `toml:"auto_escalate" json:"auto_escalate"`
	// EnableRealtime runs the live-data pipeline for API_CHECK prompts.
	EnableRealtime bool `toml:"enable_realtime" json:"enable_realtime"`
	// SynthesizeRealtime hands fetched data to the local model; when false
	// the raw provider text is returned.
	SynthesizeRealtime bool    `toml:"synthesize_realtime" json:"synthesize_realtime"`
	Temperature        float64 `toml:"temperature" json:"temperature"`
	MaxTokens          int     `toml:"max_tokens" json:"max_tokens"`
	// OfflineMode blocks everything except a loopback Lemonade server.
	OfflineMode bool `toml:"offline_mode" json:"offline_mode"`
}

// LocalConfig contains Lemonade server configuration.
type LocalConfig struct {
	BaseURL        string  `toml:"base_url" json:"base_url"`
	Model          string  `toml:"model" json:"model"`
	Recipe         string  `toml:"recipe" json:"recipe"`
	Device         string  `toml:"device" json:"device"`
	TimeoutSeconds float64 `toml:"timeout_seconds" json:"timeout_seconds"`
	MaxRetries     int     `toml:"max_retries" json:"max_retries"`
	BackoffSeconds float64 `toml:"backoff_seconds" json:"backoff_seconds"`
}

// Timeout returns the per-attempt HTTP timeout.
func (l LocalConfig) Timeout() time.Duration {
	return seconds(l.TimeoutSeconds)
}

// Backoff returns the initial retry delay.
func (l LocalConfig) Backoff() time.Duration {
	return seconds(l.BackoffSeconds)
}

// CloudConfig contains the OpenAI-compatible provider configuration.
type CloudConfig struct {
	BaseURL        string  `toml:"base_url" json:"base_url"`
	Model          string  `toml:"model" json:"model"`
	APIKey         string  `toml:"api_key" json:"api_key"`
	TimeoutSeconds float64 `toml:"timeout_seconds" json:"timeout_seconds"`
}

// Timeout returns the request timeout.
func (c CloudConfig) Timeout() time.Duration {
	return seconds(c.TimeoutSeconds)
}

// RealtimeConfig contains live-data provider settings.
type RealtimeConfig struct {
	OpenWeatherKey string `toml:"openweather_key" json:"openweather_key"`
	CoinDeskKey    string `toml:"coindesk_key" json:"coindesk_key"`
	NewsKey        string `toml:"news_key" json:"news_key"`

	WeatherURL string `toml:"weather_url" json:"weather_url"`
	CryptoURL  string `toml:"crypto_url" json:"crypto_url"`
	NewsURL    string `toml:"news_url" json:"news_url"`

	DefaultCity string `toml:"default_city" json:"default_city"`
	// RatePerMinute caps calls per provider.
	RatePerMinute  int     `toml:"rate_per_minute" json:"rate_per_minute"`
	TimeoutSeconds float64 `toml:"timeout_seconds" json:"timeout_seconds"`
}

// Timeout returns the provider request timeout.
func (r RealtimeConfig) Timeout() time.Duration {
	return seconds(r.TimeoutSeconds)
}

// EnergyConfig selects the energy profiles used for annotation.
type EnergyConfig struct {
	LocalProfile  string `toml:"local_profile" json:"local_profile"`
	CloudProfile  string `toml:"cloud_profile" json:"cloud_profile"`
	DefaultTokens int    `toml:"default_tokens" json:"default_tokens"`
}

// TelemetryConfig controls the energy ledger.
type TelemetryConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled"`
	DBPath  string `toml:"db_path" json:"db_path"`
}

// LoggingConfig controls process logging.
type LoggingConfig struct {
	Level  string `toml:"level" json:"level"`
	Format string `toml:"format" json:"format"`
	File   string `toml:"file" json:"file"`
}

// ServerConfig controls `seven serve`.
type ServerConfig struct {
	Port int `toml:"port" json:"port"`
	// RateLimit is requests per second per client IP; 0 disables limiting.
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"`
	Burst     int     `toml:"burst" json:"burst"`
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Routing: RoutingConfig{
			AutoEscalate:       true,
			EnableRealtime:     true,
			SynthesizeRealtime: true,
			Temperature:        0.7,
			MaxTokens:          512,
		},

		Local: LocalConfig{
			BaseURL:        "http://localhost:8000/api/v1",
			Model:          "Llama-3.2-1B-Instruct-Hybrid",
			TimeoutSeconds: 30,
			MaxRetries:     2,
			BackoffSeconds: 0.5,
		},

		Cloud: CloudConfig{
			BaseURL:        "https://api.openai.com/v1",
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 60,
		},

		Realtime: RealtimeConfig{
			WeatherURL:     "https://api.openweathermap.org/data/2.5/weather",
			CryptoURL:      "https://api.coindesk.com/v1/bpi/currentprice",
			NewsURL:        "https://newsapi.org/v2/top-headlines",
			DefaultCity:    "Toronto",
			RatePerMinute:  30,
			TimeoutSeconds: 10,
		},

		Energy: EnergyConfig{
			LocalProfile:  energy.DefaultLocalProfile,
			CloudProfile:  energy.DefaultCloudProfile,
			DefaultTokens: energy.DefaultTokens,
		},

		Telemetry: TelemetryConfig{
			Enabled: true,
		},

		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},

		Server: ServerConfig{
			Port:      8787,
			RateLimit: 5,
			Burst:     10,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the seven configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".seven"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// DefaultLedgerPath returns ~/.seven/ledger.db.
func DefaultLedgerPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "ledger.db"), nil
}

// ensureSecurePermissions tightens config files to 0600; they hold API keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from ~/.seven. Tries TOML first, then JSON, and
// falls back to defaults. Environment overrides are applied last.
// A file that fails to decode is reported alongside the default config.
func Load() (*Config, error) {
	var loadErr error

	if tomlPath, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			cfg, err := LoadFromPath(tomlPath)
			if err == nil {
				return cfg, nil
			}
			loadErr = err
		}
	}

	if jsonPath, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			cfg, err := LoadFromPath(jsonPath)
			if err == nil {
				return cfg, nil
			}
			if loadErr == nil {
				loadErr = err
			}
		}
	}

	cfg := Default()
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, loadErr
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file with env overrides,
// defaults, and validation. Keys absent from the file keep their defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) finish() error {
	c.ApplyEnvOverrides()
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# seven configuration file\n")
	buf.WriteString("# Generated by seven - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors as
// ValidateErrors.
func (c *Config) Validate() error {
	errs := append(ValidateErrors(nil), c.envErrs...)

	if c.Routing.Temperature < 0 || c.Routing.Temperature > 2 {
		errs = append(errs, ValidationError{
			Field:   "routing.temperature",
			Message: fmt.Sprintf("%.2f is out of range 0-2", c.Routing.Temperature),
		})
	}
	if c.Routing.MaxTokens <= 0 {
		errs = append(errs, ValidationError{Field: "routing.max_tokens", Message: "must be positive"})
	}

	errs = append(errs, validateURL("local.base_url", c.Local.BaseURL)...)
	if c.Local.Model == "" {
		errs = append(errs, ValidationError{Field: "local.model", Message: "must not be empty"})
	}
	if c.Local.MaxRetries < 0 || c.Local.MaxRetries > 10 {
		errs = append(errs, ValidationError{
			Field:   "local.max_retries",
			Message: fmt.Sprintf("%d is out of range 0-10", c.Local.MaxRetries),
		})
	}
	if c.Local.BackoffSeconds < 0 {
		errs = append(errs, ValidationError{Field: "local.backoff_seconds", Message: "must not be negative"})
	}

	errs = append(errs, validateURL("cloud.base_url", c.Cloud.BaseURL)...)
	errs = append(errs, validateURL("realtime.weather_url", c.Realtime.WeatherURL)...)
	errs = append(errs, validateURL("realtime.crypto_url", c.Realtime.CryptoURL)...)
	errs = append(errs, validateURL("realtime.news_url", c.Realtime.NewsURL)...)
	if c.Realtime.RatePerMinute < 0 {
		errs = append(errs, ValidationError{Field: "realtime.rate_per_minute", Message: "must not be negative"})
	}

	if _, ok := energy.LookupLocal(c.Energy.LocalProfile); !ok {
		errs = append(errs, ValidationError{
			Field:   "energy.local_profile",
			Message: fmt.Sprintf("unknown profile '%s'", c.Energy.LocalProfile),
		})
	}
	if _, ok := energy.LookupCloud(c.Energy.CloudProfile); !ok {
		errs = append(errs, ValidationError{
			Field:   "energy.cloud_profile",
			Message: fmt.Sprintf("unknown profile '%s'", c.Energy.CloudProfile),
		})
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid format '%s', must be one of: console, json", c.Logging.Format),
		})
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("%d is out of range 1-65535", c.Server.Port),
		})
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, ValidationError{Field: "server.rate_limit", Message: "must not be negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateURL(field, raw string) []ValidationError {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return []ValidationError{{Field: field, Message: fmt.Sprintf("invalid URL '%s'", raw)}}
	}
	return nil
}

// SetDefaults fills zero-value fields that have no meaningful zero.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Routing.MaxTokens == 0 {
		c.Routing.MaxTokens = defaults.Routing.MaxTokens
	}

	if c.Local.BaseURL == "" {
		c.Local.BaseURL = defaults.Local.BaseURL
	}
	if c.Local.Model == "" {
		c.Local.Model = defaults.Local.Model
	}
	if c.Local.TimeoutSeconds <= 0 {
		c.Local.TimeoutSeconds = defaults.Local.TimeoutSeconds
	}

	if c.Cloud.BaseURL == "" {
		c.Cloud.BaseURL = defaults.Cloud.BaseURL
	}
	if c.Cloud.Model == "" {
		c.Cloud.Model = defaults.Cloud.Model
	}
	if c.Cloud.TimeoutSeconds <= 0 {
		c.Cloud.TimeoutSeconds = defaults.Cloud.TimeoutSeconds
	}

	if c.Realtime.WeatherURL == "" {
		c.Realtime.WeatherURL = defaults.Realtime.WeatherURL
	}
	if c.Realtime.CryptoURL == "" {
		c.Realtime.CryptoURL = defaults.Realtime.CryptoURL
	}
	if c.Realtime.NewsURL == "" {
		c.Realtime.NewsURL = defaults.Realtime.NewsURL
	}
	if c.Realtime.DefaultCity == "" {
		c.Realtime.DefaultCity = defaults.Realtime.DefaultCity
	}
	if c.Realtime.TimeoutSeconds <= 0 {
		c.Realtime.TimeoutSeconds = defaults.Realtime.TimeoutSeconds
	}

	if c.Energy.LocalProfile == "" {
		c.Energy.LocalProfile = defaults.Energy.LocalProfile
	}
	if c.Energy.CloudProfile == "" {
		c.Energy.CloudProfile = defaults.Energy.CloudProfile
	}
	if c.Energy.DefaultTokens <= 0 {
		c.Energy.DefaultTokens = defaults.Energy.DefaultTokens
	}

	if c.Telemetry.DBPath == "" {
		if p, err := DefaultLedgerPath(); err == nil {
			c.Telemetry.DBPath = p
		}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
	}

	if c.Server.Port == 0 {
		c.Server.Port = defaults.Server.Port
	}
	if c.Server.Burst <= 0 {
		c.Server.Burst = defaults.Server.Burst
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - LEMONADE_BASE_URL, LEMONADE_MODEL, LEMONADE_RECIPE, LEMONADE_DEVICE
//   - LEMONADE_TIMEOUT_SECONDS, LEMONADE_MAX_RETRIES, LEMONADE_BACKOFF_SECONDS
//   - SEVEN_CLOUD_BASE_URL, SEVEN_CLOUD_MODEL
//   - SEVEN_CLOUD_API_KEY (falls back to OPENAI_API_KEY)
//   - OPENWEATHER_API_KEY, COINDESK_API_KEY, NEWS_API_KEY
//   - SEVEN_LOCAL_PROFILE, SEVEN_CLOUD_PROFILE
//   - SEVEN_OFFLINE: "1" or "true" enables offline mode
//   - SEVEN_LOG_LEVEL
//
// Malformed numeric values are reported by Validate.
func (c *Config) ApplyEnvOverrides() {
	c.envErrs = nil

	setString(&c.Local.BaseURL, "LEMONADE_BASE_URL")
	setString(&c.Local.Model, "LEMONADE_MODEL")
	setString(&c.Local.Recipe, "LEMONADE_RECIPE")
	setString(&c.Local.Device, "LEMONADE_DEVICE")
	c.setFloat(&c.Local.TimeoutSeconds, "LEMONADE_TIMEOUT_SECONDS")
	c.setInt(&c.Local.MaxRetries, "LEMONADE_MAX_RETRIES")
	c.setFloat(&c.Local.BackoffSeconds, "LEMONADE_BACKOFF_SECONDS")

	setString(&c.Cloud.BaseURL, "SEVEN_CLOUD_BASE_URL")
	setString(&c.Cloud.Model, "SEVEN_CLOUD_MODEL")
	if c.Cloud.APIKey == "" {
		setString(&c.Cloud.APIKey, "OPENAI_API_KEY")
	}
	setString(&c.Cloud.APIKey, "SEVEN_CLOUD_API_KEY")

	setString(&c.Realtime.OpenWeatherKey, "OPENWEATHER_API_KEY")
	setString(&c.Realtime.CoinDeskKey, "COINDESK_API_KEY")
	setString(&c.Realtime.NewsKey, "NEWS_API_KEY")

	setString(&c.Energy.LocalProfile, "SEVEN_LOCAL_PROFILE")
	setString(&c.Energy.CloudProfile, "SEVEN_CLOUD_PROFILE")

	if offline := os.Getenv("SEVEN_OFFLINE"); offline != "" {
		c.Routing.OfflineMode = offline == "1" || strings.EqualFold(offline, "true")
	}
	setString(&c.Logging.Level, "SEVEN_LOG_LEVEL")
}

func setString(dst *string, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*dst = v
	}
}

func (c *Config) setFloat(dst *float64, env string) {
	raw := strings.TrimSpace(os.Getenv(env))
	if raw == "" {
		return
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		c.envErrs = append(c.envErrs, ValidationError{Field: env, Message: fmt.Sprintf("invalid number '%s'", raw)})
		return
	}
	*dst = v
}

func (c *Config) setInt(dst *int, env string) {
	raw := strings.TrimSpace(os.Getenv(env))
	if raw == "" {
		return
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.envErrs = append(c.envErrs, ValidationError{Field: env, Message: fmt.Sprintf("invalid integer '%s'", raw)})
		return
	}
	*dst = v
}

// =============================================================================
// DOT-NOTATION ACCESS
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "local.max_retries").
func (c *Config) Get(key string) (interface{}, error) {
	if key == "" {
		return nil, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() || !field.CanInterface() {
			return nil, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field.Interface(), nil
		}
		if field.Kind() != reflect.Struct {
			return nil, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return nil, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts snake_case or kebab-case to a Go field name.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})
	var b strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

// =============================================================================
// COPY AND DISPLAY
// =============================================================================

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.envErrs = append(ValidateErrors(nil), c.envErrs...)
	return &clone
}

// Redacted returns a copy with every credential replaced.
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	for _, secret := range []*string{
		&safe.Cloud.APIKey,
		&safe.Realtime.OpenWeatherKey,
		&safe.Realtime.CoinDeskKey,
		&safe.Realtime.NewsKey,
	} {
		if *secret != "" {
			*secret = "[REDACTED]"
		}
	}
	return safe
}

// String returns the config as indented JSON with credentials redacted.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance, loading it on first
// access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
			cfg.SetDefaults()
		}
		globalConfigMu.Lock()
		globalConfig = cfg
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state between tests.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
