package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// BackupDir is the directory where pre-mutation rule backups are written.
	BackupDir string `koanf:"backup_dir" validate:"required"`

	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// HealthTTL is how long a composite health probe result is cached, in seconds.
	HealthTTL uint `koanf:"health_ttl" validate:"lte=300"`

	// JournalDB is the path of the bbolt database journaling unblock attempts.
	JournalDB string `koanf:"journal_db" validate:"required"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// Port is the port the control API listens on.
	Port int `koanf:"port" validate:"required,gte=1,lt=65536"`

	// UpstreamHost is the filtering service base URL without port, e.g. "http://127.0.0.1".
	UpstreamHost string `koanf:"upstream_host" validate:"required,base_url"`

	// UpstreamPort is the filtering service control API port.
	UpstreamPort int `koanf:"upstream_port" validate:"required,gte=1,lt=65536"`

	// UpstreamUser and UpstreamPass are optional credentials for the
	// filtering service. When both are set the client logs in and attaches
	// the resulting session cookie to every request.
	UpstreamUser string `koanf:"upstream_user"`
	UpstreamPass string `koanf:"upstream_pass"`

	// UpstreamTimeout bounds every upstream call, in seconds.
	UpstreamTimeout uint `koanf:"upstream_timeout" validate:"required,gte=1,lte=60"`
}

// DEFAULT_APP_CONFIG defines the default application configuration for the
// guardhome service. Upstream defaults match a local AdGuard Home install.
var DEFAULT_APP_CONFIG = AppConfig{
	BackupDir:       "/var/lib/guardhome/backups/",
	Env:             "prod",
	HealthTTL:       5,
	JournalDB:       "/var/lib/guardhome/journal.db",
	LogLevel:        "info",
	Port:            8000,
	UpstreamHost:    "http://127.0.0.1",
	UpstreamPort:    3000,
	UpstreamTimeout: 10,
}

// UpstreamBaseURL joins the configured upstream host and port.
func (c *AppConfig) UpstreamBaseURL() string {
	return fmt.Sprintf("%s:%d", strings.TrimSuffix(c.UpstreamHost, "/"), c.UpstreamPort)
}

// validBaseURL validates that the field is an absolute http or https URL
// with a host and no path, suitable as a base for the upstream control API.
func validBaseURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != "" && (u.Path == "" || u.Path == "/")
}

// envLoader loads environment variables with the prefix "GUARD_",
// lowercasing keys and trimming the prefix. It can be swapped in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "GUARD_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "GUARD_"))
			return key, strings.TrimSpace(value)
		},
	}), nil)
}

// defaultLoader loads default configuration values using the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the custom "base_url" validation tag.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("base_url", validBaseURL)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	err := defaultLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	err = envLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	err = registerValidation(validate)
	if err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	err = validate.Struct(&cfg)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
