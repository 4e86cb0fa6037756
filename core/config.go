package core

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Config holds the paths and tunables the registry loader, policy
// evaluator, and execution runtime need to start. It supports three-layer
// priority, lowest to highest: struct-tag defaults, environment variables,
// then functional options.
type Config struct {
	SkillsPath       string   `json:"skills_path" env:"SOR_SKILLS_PATH" default:"config/skills.json"`
	OpsPath          string   `json:"ops_path" env:"SOR_OPS_PATH" default:"config/ops.json"`
	CapabilitiesPath string   `json:"capabilities_path" env:"SOR_CAPABILITIES_PATH" default:"config/capabilities.json"`
	OverlayPaths     []string `json:"overlay_paths" env:"SOR_OVERLAY_PATHS"`

	AdapterTimeout     time.Duration `json:"adapter_timeout" env:"SOR_ADAPTER_TIMEOUT" default:"30s"`
	ApprovalTTLSeconds int           `json:"approval_ttl_seconds" env:"SOR_APPROVAL_TTL_SECONDS" default:"3600"`

	RedisURL       string `json:"redis_url" env:"SOR_REDIS_URL"`
	RedisNamespace string `json:"redis_namespace" env:"SOR_REDIS_NAMESPACE" default:"sor"`

	logger Logger
}

// Option mutates a Config during NewConfig.
type Option func(*Config) error

// defaultConfig applies every `default:` struct tag found on Config.
func defaultConfig() *Config {
	cfg := &Config{}
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if value := t.Field(i).Tag.Get("default"); value != "" {
			setFieldFromString(v.Field(i), value)
		}
	}
	return cfg
}

// loadFromEnv overwrites any field whose `env:` tag names a variable that
// is actually set.
func (c *Config) loadFromEnv() error {
	v := reflect.ValueOf(c).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		envKey := field.Tag.Get("env")
		if envKey == "" {
			continue
		}
		raw, ok := os.LookupEnv(envKey)
		if !ok {
			continue
		}
		setFieldFromString(v.Field(i), raw)
	}
	return nil
}

func setFieldFromString(field reflect.Value, raw string) {
	if !field.IsValid() || !field.CanSet() {
		return
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			if d, err := time.ParseDuration(raw); err == nil {
				field.Set(reflect.ValueOf(d))
			}
			return
		}
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			field.SetInt(n)
		}
	case reflect.Bool:
		if b, err := strconv.ParseBool(raw); err == nil {
			field.SetBool(b)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(raw, ",")
			out := make([]string, 0, len(parts))
			for _, p := range parts {
				if trimmed := strings.TrimSpace(p); trimmed != "" {
					out = append(out, trimmed)
				}
			}
			field.Set(reflect.ValueOf(out))
		}
	}
}

// NewConfig builds a Config from defaults, then environment variables,
// then the supplied functional options, in that increasing-priority
// order, and validates the result.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := defaultConfig()
	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("loading env config: %w", err)
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}
	if cfg.logger == nil {
		cfg.logger = NewJSONLogger(nil, "sor")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Logger returns the logger attached to this config, defaulting to a
// stdout JSONLogger if none was set.
func (c *Config) Logger() Logger { return c.logger }

// Validate checks invariants NewConfig can't express as struct tags.
func (c *Config) Validate() error {
	if c.SkillsPath == "" {
		return fmt.Errorf("skills_path must not be empty")
	}
	if c.OpsPath == "" {
		return fmt.Errorf("ops_path must not be empty")
	}
	if c.CapabilitiesPath == "" {
		return fmt.Errorf("capabilities_path must not be empty")
	}
	if c.AdapterTimeout <= 0 {
		return fmt.Errorf("adapter_timeout must be positive")
	}
	if c.ApprovalTTLSeconds <= 0 {
		return fmt.Errorf("approval_ttl_seconds must be positive")
	}
	return nil
}

// WithSkillsPath overrides the skill registry file path.
func WithSkillsPath(path string) Option {
	return func(c *Config) error { c.SkillsPath = path; return nil }
}

// WithOpsPath overrides the op registry file path.
func WithOpsPath(path string) Option {
	return func(c *Config) error { c.OpsPath = path; return nil }
}

// WithCapabilitiesPath overrides the capability registry file path.
func WithCapabilitiesPath(path string) Option {
	return func(c *Config) error { c.CapabilitiesPath = path; return nil }
}

// WithOverlays sets the ordered list of YAML overlay files merged on top
// of the base registries.
func WithOverlays(paths ...string) Option {
	return func(c *Config) error { c.OverlayPaths = paths; return nil }
}

// WithAdapterTimeout overrides the default per-dispatch adapter timeout.
func WithAdapterTimeout(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return fmt.Errorf("adapter timeout must be positive")
		}
		c.AdapterTimeout = d
		return nil
	}
}

// WithApprovalTTL overrides how long an issued approval token remains valid.
func WithApprovalTTL(seconds int) Option {
	return func(c *Config) error {
		if seconds <= 0 {
			return fmt.Errorf("approval ttl seconds must be positive")
		}
		c.ApprovalTTLSeconds = seconds
		return nil
	}
}

// WithRedis points the config at a shared Redis instance for cross-replica
// rate limiting and registry version coordination.
func WithRedis(url, namespace string) Option {
	return func(c *Config) error {
		c.RedisURL = url
		if namespace != "" {
			c.RedisNamespace = namespace
		}
		return nil
	}
}

// WithLogger attaches a pre-built Logger instead of the default stdout
// JSONLogger.
func WithLogger(logger Logger) Option {
	return func(c *Config) error { c.logger = logger; return nil }
}
