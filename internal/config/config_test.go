package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/podcast-ingest/internal/spotify"
	"github.com/JakeFAU/podcast-ingest/internal/transport"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", "")
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.DB.Host)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, "spotify", cfg.DB.Schema)
	assert.False(t, cfg.Relay.Enabled)
	assert.Equal(t, transport.DefaultEndpoint, cfg.Upstream.Endpoint)
	assert.Equal(t, spotify.ShowMetadataHash, cfg.Upstream.ShowHash)
	assert.Equal(t, spotify.DefaultExcludedDomains, cfg.Upstream.ExcludedDomains)
	assert.Equal(t, 30*time.Second, cfg.Upstream.Timeout())
	assert.Equal(t, 1, cfg.Pipeline.Concurrency)
	assert.True(t, cfg.Pipeline.AbortOnAuthError)
	assert.Equal(t, ArchiveNone, cfg.Archive.Provider)
	assert.Equal(t, filepath.Join("data", "headers.json"), cfg.HeaderOverridesPath())
}

func TestLoadFromFile(t *testing.T) {
	path := writeFile(t, "config.yaml", `
db:
  dsn: postgres://u:p@db:5432/podcasts
  schema: ingest
pipeline:
  concurrency: 4
  episode_links: true
archive:
  provider: GCS
  bucket: raw-bucket
upstream:
  excluded_domains: [example.com]
`)

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/podcasts", cfg.DB.PostgresDSN())
	assert.Equal(t, "ingest", cfg.DB.Schema)
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	assert.True(t, cfg.Pipeline.EpisodeLinks)
	assert.Equal(t, ArchiveGCS, cfg.Archive.Provider)
	assert.Equal(t, []string{"example.com"}, cfg.Upstream.ExcludedDomains)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	require.Error(t, err)
}

func TestLegacyEnvironmentNames(t *testing.T) {
	t.Setenv("DB_HOST", "legacy-db")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("USE_SCRAPE_NINJA", "true")
	t.Setenv("SCRAPE_NINJA_API_KEY", "key")
	t.Setenv("SPOTIFY_AUTHORIZATION", "token")
	t.Setenv("SPOTIFY_CLIENT_TOKEN", "client")
	t.Setenv("DATA_DIR", "/srv/data")

	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, "legacy-db", cfg.DB.Host)
	assert.Equal(t, 6543, cfg.DB.Port)
	assert.True(t, cfg.Relay.Enabled)
	assert.Equal(t, "key", cfg.Relay.APIKey)
	assert.Equal(t, "token", cfg.Credentials().Authorization)
	assert.Equal(t, "client", cfg.Credentials().ClientToken)
	assert.Equal(t, "/srv/data/headers.json", cfg.HeaderOverridesPath())

	tc := cfg.TransportConfig()
	assert.True(t, tc.Relay.Enabled)
	assert.Equal(t, transport.DefaultRelayHost, tc.Relay.Host)
}

func TestPrefixedEnvironmentWins(t *testing.T) {
	t.Setenv("DB_HOST", "legacy-db")
	t.Setenv("PODCAST_DB_HOST", "prefixed-db")
	t.Setenv("PODCAST_PIPELINE_CONCURRENCY", "3")

	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, "prefixed-db", cfg.DB.Host)
	assert.Equal(t, 3, cfg.Pipeline.Concurrency)
}

func TestDotEnvFile(t *testing.T) {
	envFile := writeFile(t, "test.env", "PODCAST_DB_NAME=from_dotenv\n")
	t.Cleanup(func() { _ = os.Unsetenv("PODCAST_DB_NAME") })

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "from_dotenv", cfg.DB.Name)

	_, err = Load("", filepath.Join(t.TempDir(), "absent.env"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() Config {
		return Config{
			DB:       DBConfig{Host: "localhost", Port: 5432, Name: "scrapers"},
			Upstream: UpstreamConfig{TimeoutSeconds: 30, SearchLimit: 10},
			Pipeline: PipelineConfig{Concurrency: 1},
			Archive:  ArchiveConfig{Provider: ArchiveNone},
		}
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(*Config){
		"no database":      func(c *Config) { c.DB.Host = "" },
		"bad port":         func(c *Config) { c.DB.Port = 0 },
		"relay no key":     func(c *Config) { c.Relay.Enabled = true },
		"zero timeout":     func(c *Config) { c.Upstream.TimeoutSeconds = 0 },
		"negative rps":     func(c *Config) { c.Upstream.RequestsPerSecond = -1 },
		"zero concurrency": func(c *Config) { c.Pipeline.Concurrency = 0 },
		"negative lookups": func(c *Config) { c.Pipeline.MaxEpisodeLookups = -1 },
		"unknown archive":  func(c *Config) { c.Archive.Provider = "s3" },
		"gcs no bucket":    func(c *Config) { c.Archive.Provider = ArchiveGCS },
		"local no dir":     func(c *Config) { c.Archive.Provider = ArchiveLocal },
		"topic no project": func(c *Config) { c.Notify.Topic = "saved" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestPostgresDSNFromFields(t *testing.T) {
	t.Parallel()

	db := DBConfig{Host: "db", Port: 5432, User: "app", Password: "p@ss", Name: "scrapers", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:p%40ss@db:5432/scrapers?sslmode=disable", db.PostgresDSN())

	db.DSN = "  postgres://override  "
	assert.Equal(t, "postgres://override", db.PostgresDSN())
}
