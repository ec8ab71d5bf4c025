// Package app_test contains unit tests for the app package.
package app_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/podcast-ingest/internal/app"
	"github.com/JakeFAU/podcast-ingest/internal/config"
	"github.com/JakeFAU/podcast-ingest/internal/headers"
	"github.com/JakeFAU/podcast-ingest/internal/spotify"
)

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		DB:      config.DBConfig{Host: "localhost", Port: 5432, Name: "scrapers", Schema: "spotify"},
		Auth:    config.AuthConfig{Authorization: "token", ClientToken: "client"},
		DataDir: t.TempDir(),
		Upstream: config.UpstreamConfig{
			TimeoutSeconds:  5,
			SearchLimit:     10,
			ExcludedDomains: spotify.DefaultExcludedDomains,
		},
		Pipeline: config.PipelineConfig{Concurrency: 1, AbortOnAuthError: true},
		Archive:  config.ArchiveConfig{Provider: config.ArchiveMemory},
	}
}

func TestNewAppWithoutDatabase(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a, err := app.NewApp(ctx, baseConfig(t), zap.NewNop(), app.Options{SkipDatabase: true})
	require.NoError(t, err)

	assert.NotNil(t, a.GetPipeline())
	assert.NotNil(t, a.GetLogger())
	assert.Equal(t, "Bearer token", a.GetHeaders().Get(headers.Authorization))
	require.Error(t, a.Migrate(ctx))
	require.NoError(t, a.Close(ctx))
}

func TestNewAppAppliesHeaderOverrides(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	require.NoError(t, os.WriteFile(cfg.HeaderOverridesPath(),
		[]byte(`{"Client-Token": "from-file", "app-platform": ""}`), 0o600))

	a, err := app.NewApp(context.Background(), cfg, nil, app.Options{SkipDatabase: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	assert.Equal(t, "from-file", a.GetHeaders().Get(headers.ClientToken))
	assert.Equal(t, "WebPlayer", a.GetHeaders().Get("app-platform"))
}

func TestNewAppFallsBackOnBadHeaderFile(t *testing.T) {
	t.Parallel()

	for name, content := range map[string]string{
		"malformed":  "{not json",
		"not object": `["x", "y"]`,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := baseConfig(t)
			require.NoError(t, os.WriteFile(cfg.HeaderOverridesPath(), []byte(content), 0o600))
			core, logs := observer.New(zapcore.WarnLevel)

			ctx := context.Background()
			a, err := app.NewApp(ctx, cfg, zap.New(core), app.Options{SkipDatabase: true})
			require.NoError(t, err)
			t.Cleanup(func() { _ = a.Close(ctx) })

			assert.Equal(t, "client", a.GetHeaders().Get(headers.ClientToken))
			assert.Equal(t, "WebPlayer", a.GetHeaders().Get("app-platform"))
			warnings := logs.FilterMessage("Ignoring unreadable header overrides; using defaults").All()
			require.Len(t, warnings, 1)
			assert.Equal(t, cfg.HeaderOverridesPath(), warnings[0].ContextMap()["path"])
		})
	}
}

func TestNewAppLogsStartupHeadersAndDenylist(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	ctx := context.Background()
	a, err := app.NewApp(ctx, baseConfig(t), zap.New(core), app.Options{SkipDatabase: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(ctx) })

	ready := logs.FilterMessage("Request headers ready").All()
	require.Len(t, ready, 1)
	assert.EqualValues(t, a.GetHeaders().Len(), ready[0].ContextMap()["count"])
	assert.Contains(t, ready[0].ContextMap()["names"], "client-token")

	denylist := logs.FilterMessage("Link denylist ready").All()
	require.Len(t, denylist, 1)
	assert.Equal(t, []any{"patreon.com", "speaker.com"}, denylist[0].ContextMap()["excluded_domains"])
}

func TestNewAppLocalArchive(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	cfg.Archive = config.ArchiveConfig{Provider: config.ArchiveLocal, BaseDir: filepath.Join(t.TempDir(), "raw")}

	a, err := app.NewApp(context.Background(), cfg, nil, app.Options{SkipDatabase: true})
	require.NoError(t, err)
	require.NoError(t, a.Close(context.Background()))
	assert.DirExists(t, cfg.Archive.BaseDir)
}

func TestNewAppFailures(t *testing.T) {
	t.Parallel()

	cases := map[string]func(*config.Config){
		"relay without key": func(c *config.Config) { c.Relay.Enabled = true },
		"unknown archive":   func(c *config.Config) { c.Archive.Provider = "s3" },
		"bad database dsn":  func(c *config.Config) { c.DB.DSN = "::not a dsn::" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := baseConfig(t)
			mutate(&cfg)
			_, err := app.NewApp(context.Background(), cfg, nil, app.Options{})
			require.Error(t, err)
		})
	}
}

func TestRunUnknownVariant(t *testing.T) {
	t.Parallel()

	a, err := app.NewApp(context.Background(), baseConfig(t), nil, app.Options{SkipDatabase: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	_, err = a.Run(context.Background(), "episodes")
	require.Error(t, err)
}

func TestLookupValidatesCredentialsFirst(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	cfg.Auth = config.AuthConfig{}
	a, err := app.NewApp(context.Background(), cfg, nil, app.Options{SkipDatabase: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	_, err = a.Lookup(context.Background(), "https://open.spotify.com/show/abc")
	var validation *spotify.ValidationError
	require.ErrorAs(t, err, &validation)
}
