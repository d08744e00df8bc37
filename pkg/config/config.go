// Package config loads engine settings from config.yaml with environment
// overrides. Secrets are accepted from the environment only.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is read when UW_CONFIG_PATH is unset.
const DefaultPath = "config.yaml"

type Config struct {
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1" validate:"required"`
	Port     string `yaml:"port" env:"PORT" env-default:"3443" validate:"required,numeric"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	// BaseURL defaults to http(s)://localhost:<port>.
	BaseURL string `yaml:"base_url" env:"BASE_URL" validate:"omitempty,url"`
	Version string `yaml:"-"`

	// Serve HTTPS when both are set.
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" validate:"required_with=TLSKeyPath,omitempty,file"`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" validate:"required_with=TLSCertPath,omitempty,file"`

	Auth       AuthConfig       `yaml:"auth"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Clearance  ClearanceConfig  `yaml:"clearance"`
	Guidelines GuidelinesConfig `yaml:"guidelines"`
}

type AuthConfig struct {
	// EnableVerification=false accepts unsigned tokens. Local development only.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWKSEndpointsStr lists trusted issuers as "issuer1=url1,issuer2=url2".
	JWKSEndpointsStr string            `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS"`
	JWKSEndpoints    map[string]string `yaml:"-"`
}

type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost" validate:"required"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432" validate:"min=1,max=65535"`
	User           string `yaml:"user" env:"PGUSER" env-default:"underwriting" validate:"required"`
	Password       string `yaml:"-" env:"PGPASSWORD"`
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"underwriting_engine" validate:"required"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25" validate:"min=1"`
	MinConnections int32  `yaml:"min_connections" env:"PGMIN_CONNECTIONS" env-default:"0" validate:"min=0,ltefield=MaxConnections"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable" validate:"oneof=disable allow prefer require verify-ca verify-full"`
}

// RedisConfig configures the guideline cache. An empty host disables it.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST"`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379" validate:"min=1,max=65535"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0" validate:"min=0"`

	PoolSize    int           `yaml:"pool_size" env:"REDIS_POOL_SIZE" env-default:"10" validate:"min=1"`
	DialTimeout time.Duration `yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT" env-default:"5s"`
	// ReadTimeout also bounds writes. Cache calls fail fast and fall back to PostgreSQL.
	ReadTimeout time.Duration `yaml:"read_timeout" env:"REDIS_READ_TIMEOUT" env-default:"500ms"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json" validate:"oneof=json console"`
}

// ClearanceConfig holds duplicate-detection settings. Defaults come from
// DefaultClearanceConfig, and an explicit 0 in YAML or the environment is kept.
type ClearanceConfig struct {
	NameSimilarityThreshold    float64 `yaml:"name_similarity_threshold" env:"CLEARANCE_NAME_THRESHOLD" validate:"gt=0,lte=1"`
	AddressSimilarityThreshold float64 `yaml:"address_similarity_threshold" env:"CLEARANCE_ADDRESS_THRESHOLD" validate:"gt=0,lte=1"`
	// LookbackDays limits candidates to submissions received within this many days. 0 disables the limit.
	LookbackDays int `yaml:"lookback_days" env:"CLEARANCE_LOOKBACK_DAYS" validate:"min=0"`
	// MaxCandidates caps candidates per check, most recent first. 0 disables the cap.
	MaxCandidates int `yaml:"max_candidates" env:"CLEARANCE_MAX_CANDIDATES" validate:"min=0"`
	// MaxInputRunes bounds similarity work on very long strings. 0 means unbounded.
	MaxInputRunes      int `yaml:"max_input_runes" env:"CLEARANCE_MAX_INPUT_RUNES" validate:"min=0"`
	RecheckConcurrency int `yaml:"recheck_concurrency" env:"CLEARANCE_RECHECK_CONCURRENCY" validate:"min=1"`
}

// DefaultClearanceConfig returns the settings used for keys absent from both
// the file and the environment.
func DefaultClearanceConfig() ClearanceConfig {
	return ClearanceConfig{
		NameSimilarityThreshold:    0.75,
		AddressSimilarityThreshold: 0.85,
		LookbackDays:               365,
		MaxCandidates:              500,
		MaxInputRunes:              256,
		RecheckConcurrency:         4,
	}
}

type GuidelinesConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl" env:"GUIDELINES_CACHE_TTL" env-default:"5m"`
	// SeedFile is imported at startup for the tenant given by SeedTenantID.
	SeedFile     string `yaml:"seed_file" env:"GUIDELINES_SEED_FILE" validate:"omitempty,file"`
	SeedTenantID string `yaml:"seed_tenant_id" env:"GUIDELINES_SEED_TENANT_ID" validate:"required_with=SeedFile,omitempty,uuid"`
}

// Load reads the file named by UW_CONFIG_PATH, or config.yaml.
func Load(version string) (*Config, error) {
	path := os.Getenv("UW_CONFIG_PATH")
	if path == "" {
		path = DefaultPath
	}
	return LoadFile(path, version)
}

// LoadFile reads path, applies environment overrides and validates the result.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{Version: version, Clearance: DefaultClearanceConfig()}
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg.Auth.JWKSEndpoints = parseJWKSEndpoints(cfg.Auth.JWKSEndpointsStr)

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", describe(err))
	}

	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{Scheme: scheme, Host: net.JoinHostPort("localhost", cfg.Port)}).String()
	}
	return cfg, nil
}

var validate = newValidator()

// newValidator reports fields by their YAML names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fe.Namespace()
		if _, rest, ok := strings.Cut(msg, "."); ok {
			msg = rest
		}
		msg += " failed " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		msgs = append(msgs, msg)
	}
	return errors.New(strings.Join(msgs, "; "))
}

// parseJWKSEndpoints parses "issuer1=url1,issuer2=url2". Malformed pairs are skipped.
func parseJWKSEndpoints(value string) map[string]string {
	endpoints := make(map[string]string)
	for pair := range strings.SplitSeq(value, ",") {
		issuer, jwksURL, ok := strings.Cut(pair, "=")
		issuer, jwksURL = strings.TrimSpace(issuer), strings.TrimSpace(jwksURL)
		if ok && issuer != "" && jwksURL != "" {
			endpoints[issuer] = jwksURL
		}
	}
	return endpoints
}

// URL returns the database connection URL for pgx and golang-migrate.
func (c *DatabaseConfig) URL() string {
	return (&url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}).String()
}
