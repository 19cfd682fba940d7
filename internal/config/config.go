// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/secondme-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete secondme configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	Server    ServerConfig    `toml:"server" json:"server"`
	Chat      ChatConfig      `toml:"chat" json:"chat"`
	Training  TrainingConfig  `toml:"training" json:"training"`
	Storage   StorageConfig   `toml:"storage" json:"storage"`
	Broadcast BroadcastConfig `toml:"broadcast" json:"broadcast"`
	Log       LogConfig       `toml:"log" json:"log"`
	Metrics   MetricsConfig   `toml:"metrics" json:"metrics"`
	UI        UIConfig        `toml:"ui" json:"ui"`
}

// ServerConfig points at the backend.
type ServerConfig struct {
	BaseURL        string        `toml:"base_url" json:"base_url"`
	RequestTimeout time.Duration `toml:"request_timeout" json:"request_timeout"`
}

// ChatConfig holds the defaults for chat requests. Saved playground
// settings take precedence once they exist.
type ChatConfig struct {
	SystemPrompt      string        `toml:"system_prompt" json:"system_prompt"`
	Temperature       float64       `toml:"temperature" json:"temperature"`
	EnableL0Retrieval bool          `toml:"enable_l0_retrieval" json:"enable_l0_retrieval"`
	EnableL1Retrieval bool          `toml:"enable_l1_retrieval" json:"enable_l1_retrieval"`
	PumpInterval      time.Duration `toml:"pump_interval" json:"pump_interval"`
}

// TrainingConfig controls training polling.
type TrainingConfig struct {
	BaseModel    string        `toml:"base_model" json:"base_model"`
	PollInterval time.Duration `toml:"poll_interval" json:"poll_interval"`
	LogWindow    int           `toml:"log_window" json:"log_window"`
	MinMemories  int           `toml:"min_memories" json:"min_memories"`
}

// StorageConfig selects the local persistence backend.
type StorageConfig struct {
	// Backend is "file", "sqlite" or "memory".
	Backend string `toml:"backend" json:"backend"`
	// Dir is the data directory. Empty means ~/.secondme/data.
	Dir string `toml:"dir" json:"dir"`
}

// BroadcastConfig selects the cross-process channel backend.
type BroadcastConfig struct {
	// Backend is "file" or "redis".
	Backend   string `toml:"backend" json:"backend"`
	RedisAddr string `toml:"redis_addr" json:"redis_addr"`
	Channel   string `toml:"channel" json:"channel"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string `toml:"level" json:"level"`
	// File is the log sink. Empty means ~/.secondme/secondme.log.
	File string `toml:"file" json:"file"`
	JSON bool   `toml:"json" json:"json"`
}

// MetricsConfig controls the prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address; empty disables the endpoint.
	Addr string `toml:"addr" json:"addr"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	Theme    string `toml:"theme" json:"theme"`
	Markdown bool   `toml:"markdown" json:"markdown"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: "1",
		Server: ServerConfig{
			BaseURL:        "http://127.0.0.1:8002",
			RequestTimeout: 10 * time.Minute,
		},
		Chat: ChatConfig{
			Temperature:       0.3,
			EnableL0Retrieval: true,
			EnableL1Retrieval: true,
			PumpInterval:      10 * time.Millisecond,
		},
		Training: TrainingConfig{
			BaseModel:    "Qwen2.5-0.5B-Instruct",
			PollInterval: 3 * time.Second,
			LogWindow:    100,
			MinMemories:  3,
		},
		Storage: StorageConfig{
			Backend: "file",
		},
		Broadcast: BroadcastConfig{
			Backend: "file",
			Channel: "updateSpace",
		},
		Log: LogConfig{
			Level: "info",
		},
		UI: UIConfig{
			Theme:    "auto",
			Markdown: true,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the secondme configuration directory path. It honours
// SECONDME_HOME.
func ConfigDir() (string, error) {
	if dir := os.Getenv("SECONDME_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".secondme"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// DataDir returns the storage directory, resolving the default.
func (c *Config) DataDir() (string, error) {
	if c.Storage.Dir != "" {
		return c.Storage.Dir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "data"), nil
}

// LogFile returns the log sink path, resolving the default.
func (c *Config) LogFile() (string, error) {
	if c.Log.File != "" {
		return c.Log.File, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "secondme.log"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// loadDotEnv reads .env from the working directory and the config dir.
// Variables already set in the environment win.
func loadDotEnv() {
	candidates := []string{".env"}
	if dir, err := ConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, ".env"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
		}
	}
}

// Load loads ~/.secondme/config.toml, falling back to defaults when it does
// not exist. Environment overrides are applied last.
func Load() (*Config, error) {
	loadDotEnv()

	path, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadFromPath loads configuration from a specific file with full
// validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = defaults.Server.BaseURL
	}
	if cfg.Training.BaseModel == "" {
		cfg.Training.BaseModel = defaults.Training.BaseModel
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = defaults.Storage.Backend
	}
	if cfg.Broadcast.Backend == "" {
		cfg.Broadcast.Backend = defaults.Broadcast.Backend
	}
	if cfg.Broadcast.Channel == "" {
		cfg.Broadcast.Channel = defaults.Broadcast.Channel
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

const configHeader = "# secondme configuration file\n# Generated by secondme - edit with care\n\n"

// SaveTOML writes cfg atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	err := util.WriteAtomic(path, 0600, func(w io.Writer) error {
		if _, err := io.WriteString(w, configHeader); err != nil {
			return err
		}
		if err := toml.NewEncoder(w).Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		return nil
	})
	if err != nil {
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
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.Server.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "server.base_url",
			Message: fmt.Sprintf("invalid URL '%s', must be http(s)://host[:port]", c.Server.BaseURL),
		})
	}
	if c.Server.RequestTimeout < 0 {
		errs = append(errs, ValidationError{Field: "server.request_timeout", Message: "must not be negative"})
	}

	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		errs = append(errs, ValidationError{
			Field:   "chat.temperature",
			Message: fmt.Sprintf("%.2f is out of range [0, 2]", c.Chat.Temperature),
		})
	}
	if c.Chat.PumpInterval < time.Millisecond || c.Chat.PumpInterval > time.Second {
		errs = append(errs, ValidationError{Field: "chat.pump_interval", Message: "must be between 1ms and 1s"})
	}

	if c.Training.PollInterval < 100*time.Millisecond {
		errs = append(errs, ValidationError{Field: "training.poll_interval", Message: "must be at least 100ms"})
	}
	if c.Training.LogWindow < 1 || c.Training.LogWindow > 10000 {
		errs = append(errs, ValidationError{Field: "training.log_window", Message: "must be between 1 and 10000"})
	}
	if c.Training.MinMemories < 0 {
		errs = append(errs, ValidationError{Field: "training.min_memories", Message: "must not be negative"})
	}

	switch strings.ToLower(c.Storage.Backend) {
	case "file", "sqlite", "memory":
	default:
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: file, sqlite, memory", c.Storage.Backend),
		})
	}

	switch strings.ToLower(c.Broadcast.Backend) {
	case "file":
	case "redis":
		if c.Broadcast.RedisAddr == "" {
			errs = append(errs, ValidationError{Field: "broadcast.redis_addr", Message: "required for the redis backend"})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "broadcast.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: file, redis", c.Broadcast.Backend),
		})
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}

	switch strings.ToLower(c.UI.Theme) {
	case "auto", "dark", "light":
	default:
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero durations and counts that fillDefaults leaves
// alone because they may legitimately come from the environment.
func (c *Config) SetDefaults() {
	defaults := Default()
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = defaults.Server.RequestTimeout
	}
	if c.Chat.PumpInterval == 0 {
		c.Chat.PumpInterval = defaults.Chat.PumpInterval
	}
	if c.Training.PollInterval == 0 {
		c.Training.PollInterval = defaults.Training.PollInterval
	}
	if c.Training.LogWindow == 0 {
		c.Training.LogWindow = defaults.Training.LogWindow
	}
	if c.Training.MinMemories == 0 {
		c.Training.MinMemories = defaults.Training.MinMemories
	}
	c.Storage.Backend = strings.ToLower(c.Storage.Backend)
	c.Broadcast.Backend = strings.ToLower(c.Broadcast.Backend)
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - SECONDME_BASE_URL: overrides server.base_url
//   - SECONDME_BASE_MODEL: overrides training.base_model
//   - SECONDME_STORAGE: overrides storage.backend
//   - SECONDME_DATA_DIR: overrides storage.dir
//   - SECONDME_LOG_LEVEL: overrides log.level
//   - SECONDME_REDIS_ADDR: overrides broadcast.redis_addr and selects redis
//   - SECONDME_METRICS_ADDR: overrides metrics.addr
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("SECONDME_BASE_URL"); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv("SECONDME_BASE_MODEL"); v != "" {
		c.Training.BaseModel = v
	}
	if v := os.Getenv("SECONDME_STORAGE"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("SECONDME_DATA_DIR"); v != "" {
		c.Storage.Dir = v
	}
	if v := os.Getenv("SECONDME_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("SECONDME_REDIS_ADDR"); v != "" {
		c.Broadcast.RedisAddr = v
		c.Broadcast.Backend = "redis"
	}
	if v := os.Getenv("SECONDME_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g. "chat.temperature").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

var durationType = reflect.TypeOf(time.Duration(0))

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		if field.Type() == durationType {
			d, err := time.ParseDuration(strVal)
			if err != nil {
				return fmt.Errorf("invalid duration value: %v", err)
			}
			field.SetInt(int64(d))
			return nil
		}
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, err := parseBool(strVal)
			if err != nil {
				return err
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value: %q", s)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation, using the
// TOML names.
func GetAllKeys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := strings.Split(f.Tag.Get("toml"), ",")[0]
			if name == "" {
				continue
			}
			if f.Type.Kind() == reflect.Struct && f.Type != durationType {
				walk(f.Type, prefix+name+".")
				continue
			}
			keys = append(keys, prefix+name)
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	sort.Strings(keys)
	return keys
}

// Clone returns a copy of the config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns an indented JSON rendering for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
