// Package config loads and validates ingester configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/podcast-ingest/internal/headers"
	"github.com/JakeFAU/podcast-ingest/internal/logging"
	"github.com/JakeFAU/podcast-ingest/internal/spotify"
	"github.com/JakeFAU/podcast-ingest/internal/store"
	"github.com/JakeFAU/podcast-ingest/internal/transport"
)

// Archive providers.
const (
	ArchiveNone   = "none"
	ArchiveMemory = "memory"
	ArchiveLocal  = "local"
	ArchiveGCS    = "gcs"
)

// Config captures all ingester configuration knobs loaded via Viper.
type Config struct {
	DB       DBConfig       `mapstructure:"db"`
	Relay    RelayConfig    `mapstructure:"relay"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	DataDir  string         `mapstructure:"data_dir"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  logging.Config `mapstructure:"logging"`
}

// DBConfig controls access to Postgres. DSN wins over the discrete fields.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	Schema   string `mapstructure:"schema"`
	MaxConns int    `mapstructure:"max_conns"`
}

// RelayConfig toggles the ScrapeNinja relay.
type RelayConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
	Host     string `mapstructure:"host"`
}

// AuthConfig holds the opaque web player credentials.
type AuthConfig struct {
	Authorization string `mapstructure:"authorization"`
	ClientToken   string `mapstructure:"client_token"`
}

// UpstreamConfig describes the pathfinder endpoint and request shaping.
type UpstreamConfig struct {
	Endpoint          string   `mapstructure:"endpoint"`
	ShowHash          string   `mapstructure:"show_hash"`
	SearchHash        string   `mapstructure:"search_hash"`
	SearchLimit       int      `mapstructure:"search_limit"`
	UserAgent         string   `mapstructure:"user_agent"`
	TimeoutSeconds    int      `mapstructure:"timeout_seconds"`
	RequestsPerSecond float64  `mapstructure:"requests_per_second"`
	ExcludedDomains   []string `mapstructure:"excluded_domains"`
}

// PipelineConfig governs how pending items are processed.
type PipelineConfig struct {
	Concurrency       int  `mapstructure:"concurrency"`
	AbortOnAuthError  bool `mapstructure:"abort_on_auth_error"`
	MaxEpisodeLookups int  `mapstructure:"max_episode_lookups"`
	EpisodeLinks      bool `mapstructure:"episode_links"`
}

// ArchiveConfig selects where raw upstream responses are kept.
type ArchiveConfig struct {
	Provider string `mapstructure:"provider"`
	BaseDir  string `mapstructure:"base_dir"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
}

// NotifyConfig holds Pub/Sub settings for save notifications.
type NotifyConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// MetricsConfig controls the ops HTTP server.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// legacyEnv maps config keys to the environment names used by earlier
// deployments; the PODCAST_ prefixed name always takes precedence.
var legacyEnv = map[string]string{
	"db.host":             "DB_HOST",
	"db.port":             "DB_PORT",
	"db.user":             "DB_USER",
	"db.password":         "DB_PASSWORD",
	"db.name":             "DB_NAME",
	"relay.enabled":       "USE_SCRAPE_NINJA",
	"relay.api_key":       "SCRAPE_NINJA_API_KEY",
	"auth.authorization":  "SPOTIFY_AUTHORIZATION",
	"auth.client_token":   "SPOTIFY_CLIENT_TOKEN",
	"upstream.user_agent": "USER_AGENT",
	"data_dir":            "DATA_DIR",
}

// Load builds a Config from an optional .env file, an optional config file
// and the environment.
func Load(path, envFile string) (Config, error) {
	if err := loadDotEnv(envFile); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("PODCAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for key, legacy := range legacyEnv {
		prefixed := "PODCAST_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", legacy, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadDotEnv loads envFile, or ./.env when envFile is empty. Existing
// environment variables are never overridden.
func loadDotEnv(envFile string) error {
	explicit := envFile != ""
	if !explicit {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "scrapers")
	v.SetDefault("db.sslmode", "prefer")
	v.SetDefault("db.schema", store.DefaultSchema)
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("relay.enabled", false)
	v.SetDefault("relay.api_key", "")
	v.SetDefault("relay.endpoint", transport.DefaultRelayEndpoint)
	v.SetDefault("relay.host", transport.DefaultRelayHost)
	v.SetDefault("auth.authorization", "")
	v.SetDefault("auth.client_token", "")
	v.SetDefault("upstream.endpoint", transport.DefaultEndpoint)
	v.SetDefault("upstream.show_hash", spotify.ShowMetadataHash)
	v.SetDefault("upstream.search_hash", spotify.SearchDesktopHash)
	v.SetDefault("upstream.search_limit", 10)
	v.SetDefault("upstream.user_agent", headers.DefaultUserAgent)
	v.SetDefault("upstream.timeout_seconds", 30)
	v.SetDefault("upstream.requests_per_second", 0)
	v.SetDefault("upstream.excluded_domains", spotify.DefaultExcludedDomains)
	v.SetDefault("data_dir", "data")
	v.SetDefault("pipeline.concurrency", 1)
	v.SetDefault("pipeline.abort_on_auth_error", true)
	v.SetDefault("pipeline.max_episode_lookups", 0)
	v.SetDefault("pipeline.episode_links", false)
	v.SetDefault("archive.provider", ArchiveNone)
	v.SetDefault("archive.base_dir", filepath.Join("data", "raw"))
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.prefix", "raw")
	v.SetDefault("notify.project_id", "")
	v.SetDefault("notify.topic", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

func (c *Config) normalize() {
	c.Archive.Provider = strings.ToLower(strings.TrimSpace(c.Archive.Provider))
	if c.Archive.Provider == "" {
		c.Archive.Provider = ArchiveNone
	}
	c.DataDir = strings.TrimSpace(c.DataDir)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DB.DSN) == "" && (strings.TrimSpace(c.DB.Host) == "" || strings.TrimSpace(c.DB.Name) == "") {
		return errors.New("db.dsn or db.host and db.name must be set")
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		return errors.New("db.port must be between 1 and 65535")
	}
	if c.DB.MaxConns < 0 || c.DB.MaxConns > 1000 {
		return errors.New("db.max_conns must be between 0 and 1000")
	}
	if c.Relay.Enabled && strings.TrimSpace(c.Relay.APIKey) == "" {
		return errors.New("relay.api_key must be set when the relay is enabled")
	}
	if c.Upstream.TimeoutSeconds <= 0 {
		return errors.New("upstream.timeout_seconds must be > 0")
	}
	if c.Upstream.RequestsPerSecond < 0 {
		return errors.New("upstream.requests_per_second must be >= 0")
	}
	if c.Upstream.SearchLimit <= 0 {
		return errors.New("upstream.search_limit must be > 0")
	}
	if c.Pipeline.Concurrency <= 0 {
		return errors.New("pipeline.concurrency must be > 0")
	}
	if c.Pipeline.MaxEpisodeLookups < 0 {
		return errors.New("pipeline.max_episode_lookups must be >= 0")
	}
	switch c.Archive.Provider {
	case ArchiveNone, ArchiveMemory:
	case ArchiveLocal:
		if strings.TrimSpace(c.Archive.BaseDir) == "" {
			return errors.New("archive.base_dir must be set for the local archive")
		}
	case ArchiveGCS:
		if strings.TrimSpace(c.Archive.Bucket) == "" {
			return errors.New("archive.bucket must be set for the gcs archive")
		}
	default:
		return fmt.Errorf("archive.provider %q is not one of none, memory, local, gcs", c.Archive.Provider)
	}
	if c.Notify.Topic != "" && c.Notify.ProjectID == "" {
		return errors.New("notify.project_id must be set when notify.topic is set")
	}
	return nil
}

// PostgresDSN returns db.dsn or builds a URL from the discrete fields.
func (c DBConfig) PostgresDSN() string {
	if dsn := strings.TrimSpace(c.DSN); dsn != "" {
		return dsn
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Name,
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else if c.User != "" {
		u.User = url.User(c.User)
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}

// HeaderOverridesPath is the optional JSON file of header overrides.
func (c Config) HeaderOverridesPath() string {
	return filepath.Join(c.DataDir, "headers.json")
}

// Timeout converts upstream.timeout_seconds to a duration.
func (c UpstreamConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Credentials returns the header credentials from config.
func (c Config) Credentials() headers.Credentials {
	return headers.Credentials{
		Authorization: c.Auth.Authorization,
		ClientToken:   c.Auth.ClientToken,
		UserAgent:     c.Upstream.UserAgent,
	}
}

// TransportConfig maps upstream and relay settings onto the transport.
func (c Config) TransportConfig() transport.Config {
	return transport.Config{
		Endpoint: c.Upstream.Endpoint,
		Relay: transport.RelayConfig{
			Enabled:  c.Relay.Enabled,
			Endpoint: c.Relay.Endpoint,
			Host:     c.Relay.Host,
			APIKey:   c.Relay.APIKey,
		},
		Timeout:           c.Upstream.Timeout(),
		RequestsPerSecond: c.Upstream.RequestsPerSecond,
	}
}

// BuilderOptions maps the upstream hashes onto the request builder.
func (c Config) BuilderOptions() spotify.BuilderOptions {
	return spotify.BuilderOptions{
		ShowHash:    c.Upstream.ShowHash,
		SearchHash:  c.Upstream.SearchHash,
		SearchLimit: c.Upstream.SearchLimit,
	}
}
