package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// lookupFunc reports the value of an environment variable and whether it
// is set. os.LookupEnv in production.
type lookupFunc func(key string) (string, bool)

var durationType = reflect.TypeOf(time.Duration(0))

// Load reads configuration from environment variables, applies defaults
// and validates the result. Every missing or malformed variable is
// reported in the returned error, not just the first.
func Load() (*Config, error) {
	return load(os.LookupEnv, true)
}

// LoadOffline is Load for commands that never open the database,
// such as dry-run validation. DATABASE_URL becomes optional.
func LoadOffline() (*Config, error) {
	return load(os.LookupEnv, false)
}

func load(lookup lookupFunc, needDatabase bool) (*Config, error) {
	cfg := &Config{}

	b := binder{lookup: lookup, enforceRequired: needDatabase}
	b.bind(reflect.ValueOf(cfg).Elem())
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("config load: %w", errors.Join(b.errs...))
	}

	cfg.Schema.Source = strings.ToLower(strings.TrimSpace(cfg.Schema.Source))
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)

	if err := cfg.validate(needDatabase); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// binder fills tagged struct fields from the environment.
//
// Tags: env names the variable, envAlt an older name read when env is
// unset, default the fallback text and required="true" marks variables
// that must be set. The only required variable is DATABASE_URL, which is
// why enforceRequired follows needDatabase.
type binder struct {
	lookup          lookupFunc
	enforceRequired bool
	errs            []error
}

func (b *binder) bind(v reflect.Value) {
	t := v.Type()
	for i := range t.NumField() {
		field, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if field.Type.Kind() == reflect.Struct {
			b.bind(fv)
			continue
		}

		name := field.Tag.Get("env")
		if name == "" {
			continue
		}
		raw, ok := b.value(name, field.Tag.Get("envAlt"))
		if !ok {
			if field.Tag.Get("required") == "true" && b.enforceRequired {
				b.errs = append(b.errs, fmt.Errorf("required environment variable %s is not set", name))
				continue
			}
			raw = field.Tag.Get("default")
		}
		if raw == "" {
			continue
		}

		parsed, err := parseValue(field.Type, raw)
		if err != nil {
			b.errs = append(b.errs, fmt.Errorf("%s=%q: %w", name, raw, err))
			continue
		}
		fv.Set(parsed)
	}
}

// value returns the first non-empty of name and alt.
func (b *binder) value(name, alt string) (string, bool) {
	for _, key := range []string{name, alt} {
		if key == "" {
			continue
		}
		if v, ok := b.lookup(key); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// parseValue converts raw into a value of type t.
func parseValue(t reflect.Type, raw string) (reflect.Value, error) {
	if t == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("invalid duration: %w", err)
		}
		return reflect.ValueOf(d), nil
	}

	out := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.String:
		out.SetString(raw)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, t.Bits())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("invalid integer: %w", err)
		}
		out.SetInt(n)
	case reflect.Bool:
		bv, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return reflect.Value{}, fmt.Errorf("invalid boolean: %w", err)
		}
		out.SetBool(bv)
	case reflect.Slice:
		if t.Elem().Kind() != reflect.String {
			return reflect.Value{}, fmt.Errorf("unsupported slice type: %s", t.Elem())
		}
		var items []string
		for item := range strings.SplitSeq(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		out.Set(reflect.ValueOf(items))
	default:
		return reflect.Value{}, fmt.Errorf("unsupported field type: %s", t)
	}
	return out, nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	return c.validate(true)
}

func (c *Config) validate(needDatabase bool) error {
	var errs []string

	if needDatabase {
		if c.Database.URL == "" {
			errs = append(errs, "DATABASE_URL is required")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Database.MaxConns, c.Database.MinConns))
		}
		if c.Database.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Database.MinConns < 0 {
			errs = append(errs, "DB_MIN_CONNS must be non-negative")
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	if c.Import.InputDir == "" {
		errs = append(errs, "IMPORT_INPUT_DIR is required")
	}
	if c.Import.ImportedDir == "" || c.Import.BrokenDir == "" {
		errs = append(errs, "IMPORT_IMPORTED_DIR and IMPORT_BROKEN_DIR are required")
	}
	if c.Import.PollInterval <= 0 {
		errs = append(errs, "IMPORT_POLL_INTERVAL must be positive")
	}
	if c.Import.MaxConcurrentFiles <= 0 {
		errs = append(errs, "IMPORT_MAX_CONCURRENT_FILES must be positive")
	}
	if c.Import.MaxFileSize <= 0 {
		errs = append(errs, "IMPORT_MAX_FILE_SIZE must be positive")
	}
	if c.Import.MaxWaitTime <= 0 {
		errs = append(errs, "IMPORT_MAX_WAIT_TIME must be positive")
	}

	switch strings.ToLower(c.Schema.Source) {
	case "file":
		if c.Schema.Path == "" {
			errs = append(errs, "SCHEMA_PATH is required when SCHEMA_SOURCE=file")
		}
	case "remote":
		if c.Schema.URL == "" {
			errs = append(errs, "SCHEMA_URL is required when SCHEMA_SOURCE=remote")
		}
		if c.Schema.Timeout <= 0 {
			errs = append(errs, "SCHEMA_TIMEOUT must be positive")
		}
		if c.Schema.RetryMax < 0 {
			errs = append(errs, "SCHEMA_RETRY_MAX must be non-negative")
		}
	default:
		errs = append(errs, fmt.Sprintf("SCHEMA_SOURCE (%q) must be one of: file, remote", c.Schema.Source))
	}

	if c.Notify.Enabled {
		if c.Notify.SMTPHost == "" {
			errs = append(errs, "SMTP_HOST is required when NOTIFY_ENABLED is true")
		}
		if c.Notify.SMTPPort <= 0 || c.Notify.SMTPPort > 65535 {
			errs = append(errs, fmt.Sprintf("SMTP_PORT (%d) must be 1-65535", c.Notify.SMTPPort))
		}
	}

	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}
	if c.Security.RateLimit < 0 {
		errs = append(errs, "RATE_LIMIT_PER_MINUTE must be non-negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs and credentials are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Import: {InputDir: %q, MaxConcurrentFiles: %d, PollInterval: %s}, ",
		c.Import.InputDir, c.Import.MaxConcurrentFiles, c.Import.PollInterval))
	b.WriteString(fmt.Sprintf("Schema: {Source: %q, Token: [MASKED]}, ", c.Schema.Source))
	b.WriteString(fmt.Sprintf("Notify: {Enabled: %v, SMTPHost: %q, SMTPPassword: [MASKED]}, ",
		c.Notify.Enabled, c.Notify.SMTPHost))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
