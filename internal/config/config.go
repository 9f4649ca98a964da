package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"urlguard/internal/logging"
)

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Auth       AuthConfig       `koanf:"auth"`
	Permission PermissionConfig `koanf:"permission"`
	I18n       I18nConfig       `koanf:"i18n"`
	Cache      CacheConfig      `koanf:"cache"`
	Logging    LoggingConfig    `koanf:"logging"`
	Seed       SeedConfig       `koanf:"seed"`
}

type ServerConfig struct {
	Port string `koanf:"port" validate:"required,numeric"`
}

type DatabaseConfig struct {
	Driver string `koanf:"driver" validate:"oneof=mysql sqlite"`
	DSN    string `koanf:"dsn" validate:"required"`
}

type AuthConfig struct {
	JWTSecret string        `koanf:"jwt_secret" validate:"required"`
	TokenTTL  time.Duration `koanf:"token_ttl" validate:"required"`
}

// PermissionConfig is the switchboard of the enforcement middleware.
type PermissionConfig struct {
	// Enabled turns URL permission enforcement on or off globally.
	Enabled bool `koanf:"enabled"`
	// CheckAllRoutes checks every route instead of only guarded ones.
	CheckAllRoutes bool `koanf:"check_all_routes"`
	// ExemptURLs are path prefixes that skip enforcement.
	ExemptURLs []string `koanf:"exempt_urls"`
}

type I18nConfig struct {
	Languages       []string `koanf:"languages"`
	DefaultLanguage string   `koanf:"default_language"`
}

type CacheConfig struct {
	Backend       string        `koanf:"backend" validate:"oneof=none memory redis"`
	TTL           time.Duration `koanf:"ttl"`
	RedisAddr     string        `koanf:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db" validate:"gte=0"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

type SeedConfig struct {
	Enabled       bool   `koanf:"enabled"`
	AdminEmail    string `koanf:"admin_email" validate:"omitempty,email"`
	AdminPassword string `koanf:"admin_password"`
}

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/urlguard/config.yaml",
}

// ConfigPathEnvVar overrides the YAML config location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: "8080"},
		Database: DatabaseConfig{Driver: "mysql"},
		Auth: AuthConfig{
			JWTSecret: "dev-secret-only",
			TokenTTL:  24 * time.Hour,
		},
		Permission: PermissionConfig{
			Enabled:        true,
			CheckAllRoutes: false,
			ExemptURLs:     []string{"/api/v1/auth/", "/healthz", "/metrics"},
		},
		Cache: CacheConfig{
			Backend: "none",
			TTL:     time.Minute,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Seed: SeedConfig{
			Enabled:       true,
			AdminEmail:    "admin@example.com",
			AdminPassword: "admin123",
		},
	}
}

// Load reads .env, then layers defaults, an optional YAML file, and
// environment variables (highest priority) into a validated Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		logging.Debug().Msg(".env file not found, using system environment variables")
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks struct tags.
func (c Config) Validate() error {
	return validator.New().Struct(c)
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"permission.exempt_urls",
	"i18n.languages",
}

// processSliceFields splits comma separated env values into slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := []string{}
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"app_port":                       "server.port",
	"db_driver":                      "database.driver",
	"mysql_dsn":                      "database.dsn",
	"jwt_secret":                     "auth.jwt_secret",
	"token_ttl":                      "auth.token_ttl",
	"url_permission_required":        "permission.enabled",
	"url_permission_check_all_views": "permission.check_all_routes",
	"url_permission_exempt_urls":     "permission.exempt_urls",
	"languages":                      "i18n.languages",
	"language_code":                  "i18n.default_language",
	"cache_backend":                  "cache.backend",
	"cache_ttl":                      "cache.ttl",
	"redis_addr":                     "cache.redis_addr",
	"redis_password":                 "cache.redis_password",
	"redis_db":                       "cache.redis_db",
	"log_level":                      "logging.level",
	"log_format":                     "logging.format",
	"seed_enabled":                   "seed.enabled",
	"admin_email":                    "seed.admin_email",
	"admin_password":                 "seed.admin_password",
}

// envTransformFunc maps known variables to config paths; unknown ones
// return "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
