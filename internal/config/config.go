package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfig marks missing or invalid configuration. No network call is made
// when it is returned.
var ErrConfig = errors.New("invalid configuration")

type Config struct {
	API         APIConfig         `yaml:"api"`
	Auth        AuthConfig        `yaml:"auth"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Store       StoreConfig       `yaml:"store"`
	Output      OutputConfig      `yaml:"output"`
}

type APIConfig struct {
	BaseURL           string        `yaml:"base_url"`
	TokenURL          string        `yaml:"token_url"`
	Timeout           time.Duration `yaml:"timeout"`
	PerPage           int           `yaml:"per_page"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

type AuthConfig struct {
	RefreshMargin time.Duration `yaml:"refresh_margin"`
}

// CredentialsConfig seeds the credential store. The store's copy wins when it
// holds a later expiry.
type CredentialsConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	AccessToken  string `yaml:"access_token"`
	RefreshToken string `yaml:"refresh_token"`
	ExpiresAt    int64  `yaml:"expires_at"`
	TokenType    string `yaml:"token_type"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite, postgres or dotenv
	Path   string `yaml:"path"`   // sqlite database or dotenv file
	DSN    string `yaml:"dsn"`    // postgres
}

type OutputConfig struct {
	Dir string `yaml:"dir"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverDotenv   = "dotenv"
)

// Default returns a Config with every optional field populated.
func Default() *Config {
	storePath := "state.db"
	if home, err := os.UserHomeDir(); err == nil {
		storePath = filepath.Join(home, ".stravasummary", "state.db")
	}
	return &Config{
		API: APIConfig{
			BaseURL:  "https://www.strava.com/api/v3",
			TokenURL: "https://www.strava.com/oauth/token",
			Timeout:  30 * time.Second,
			PerPage:  200,
		},
		Auth: AuthConfig{RefreshMargin: 60 * time.Second},
		Credentials: CredentialsConfig{
			TokenType: "Bearer",
		},
		Store:  StoreConfig{Driver: DriverSQLite, Path: storePath},
		Output: OutputConfig{Dir: "summary"},
	}
}

// Load starts from Default, merges the YAML file at path (skipped when path is
// empty), then applies environment variable overrides.
// Env vars use the prefix STRAVASUMMARY_:
//
//	STRAVASUMMARY_API_BASE_URL, STRAVASUMMARY_API_TOKEN_URL, STRAVASUMMARY_API_TIMEOUT,
//	STRAVASUMMARY_API_PER_PAGE, STRAVASUMMARY_API_RPS, STRAVASUMMARY_REFRESH_MARGIN,
//	STRAVASUMMARY_STORE_DRIVER, STRAVASUMMARY_STORE_PATH, STRAVASUMMARY_STORE_DSN,
//	STRAVASUMMARY_OUTPUT_DIR
//
// Credentials use the unprefixed names of the classic .env layout:
// CLIENT_ID, CLIENT_SECRET, ACCESS_TOKEN, REFRESH_TOKEN, EXPIRES_AT, TOKEN_TYPE.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: reading config file: %v", ErrConfig, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing config file: %v", ErrConfig, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("STRAVASUMMARY_API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("STRAVASUMMARY_API_TOKEN_URL"); v != "" {
		cfg.API.TokenURL = v
	}
	if v := os.Getenv("STRAVASUMMARY_API_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: STRAVASUMMARY_API_TIMEOUT: %v", ErrConfig, err)
		}
		cfg.API.Timeout = d
	}
	if v := os.Getenv("STRAVASUMMARY_API_PER_PAGE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.API.PerPage = n
		}
	}
	if v := os.Getenv("STRAVASUMMARY_API_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.API.RequestsPerSecond = f
		}
	}
	if v := os.Getenv("STRAVASUMMARY_REFRESH_MARGIN"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: STRAVASUMMARY_REFRESH_MARGIN: %v", ErrConfig, err)
		}
		cfg.Auth.RefreshMargin = d
	}
	if v := os.Getenv("STRAVASUMMARY_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("STRAVASUMMARY_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("STRAVASUMMARY_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("STRAVASUMMARY_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}

	if v := os.Getenv("CLIENT_ID"); v != "" {
		cfg.Credentials.ClientID = v
	}
	if v := os.Getenv("CLIENT_SECRET"); v != "" {
		cfg.Credentials.ClientSecret = v
	}
	if v := os.Getenv("ACCESS_TOKEN"); v != "" {
		cfg.Credentials.AccessToken = v
	}
	if v := os.Getenv("REFRESH_TOKEN"); v != "" {
		cfg.Credentials.RefreshToken = v
	}
	if v := os.Getenv("EXPIRES_AT"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: EXPIRES_AT must be a unix timestamp, got %q", ErrConfig, v)
		}
		cfg.Credentials.ExpiresAt = n
	}
	if v := os.Getenv("TOKEN_TYPE"); v != "" {
		cfg.Credentials.TokenType = v
	}
	return nil
}

func (c *Config) validate() error {
	if c.Credentials.ClientID == "" {
		return fmt.Errorf("credentials.client_id (CLIENT_ID) is required")
	}
	if c.Credentials.ClientSecret == "" {
		return fmt.Errorf("credentials.client_secret (CLIENT_SECRET) is required")
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.TokenURL == "" {
		return fmt.Errorf("api.token_url is required")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	if c.API.PerPage <= 0 {
		return fmt.Errorf("api.per_page must be positive")
	}
	if c.API.RequestsPerSecond < 0 {
		return fmt.Errorf("api.requests_per_second must not be negative")
	}
	if c.Auth.RefreshMargin < 0 {
		return fmt.Errorf("auth.refresh_margin must not be negative")
	}
	switch c.Store.Driver {
	case DriverSQLite, DriverDotenv:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for driver %q", c.Store.Driver)
		}
	case DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver)
		}
	default:
		return fmt.Errorf("store.driver %q is not one of sqlite, postgres, dotenv", c.Store.Driver)
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}
	return nil
}
