package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/podcast-ingest/internal/app"
	"github.com/JakeFAU/podcast-ingest/internal/config"
	"github.com/JakeFAU/podcast-ingest/internal/logging"
	"github.com/JakeFAU/podcast-ingest/internal/pipeline"
	"github.com/JakeFAU/podcast-ingest/internal/spotify"
)

// MockApp mocks the App interface.
type MockApp struct {
	mock.Mock
}

func (m *MockApp) Run(ctx context.Context, variant string) (pipeline.Summary, error) {
	args := m.Called(ctx, variant)
	return args.Get(0).(pipeline.Summary), args.Error(1)
}

func (m *MockApp) Lookup(ctx context.Context, input string) (*spotify.ShowProfile, error) {
	args := m.Called(ctx, input)
	profile, _ := args.Get(0).(*spotify.ShowProfile)
	return profile, args.Error(1)
}

func (m *MockApp) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockApp) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockApp) GetLogger() *zap.Logger {
	return zap.NewNop()
}

// withMockApp swaps the config loader and app factory for the test's lifetime.
// Tests using it must not run in parallel.
func withMockApp(t *testing.T, mockApp *MockApp) *app.Options {
	t.Helper()
	var captured app.Options

	prevLoad, prevNew := loadConfig, newApp
	t.Cleanup(func() { loadConfig, newApp = prevLoad, prevNew })

	loadConfig = func(string, string) (config.Config, error) {
		return config.Config{Logging: logging.Config{Level: "fatal"}}, nil
	}
	newApp = func(_ context.Context, _ config.Config, _ *zap.Logger, opts app.Options) (App, error) {
		captured = opts
		return mockApp, nil
	}
	return &captured
}

func TestProfilesCommandRunsVariant(t *testing.T) {
	mockApp := new(MockApp)
	opts := withMockApp(t, mockApp)
	mockApp.On("Run", mock.Anything, "profiles").Return(pipeline.Summary{RunID: "r", Saved: 2}, nil)
	mockApp.On("Close", mock.Anything).Return(nil)

	require.NoError(t, execute(context.Background(), []string{"profiles"}))
	assert.False(t, opts.SkipDatabase)
	mockApp.AssertExpectations(t)
}

func TestSearchCommandPropagatesRunError(t *testing.T) {
	mockApp := new(MockApp)
	withMockApp(t, mockApp)
	mockApp.On("Run", mock.Anything, "search").Return(pipeline.Summary{}, pipeline.ErrPersistence)
	mockApp.On("Close", mock.Anything).Return(nil)

	err := execute(context.Background(), []string{"search"})
	require.ErrorIs(t, err, pipeline.ErrPersistence)
	mockApp.AssertExpectations(t)
}

func TestLookupCommandPrintsJSON(t *testing.T) {
	mockApp := new(MockApp)
	opts := withMockApp(t, mockApp)
	profile := &spotify.ShowProfile{ShowName: "Show", HostName: "Host", URL: "https://open.spotify.com/show/abc"}
	mockApp.On("Lookup", mock.Anything, "spotify:show:abc").Return(profile, nil)
	mockApp.On("Close", mock.Anything).Return(nil)

	var out bytes.Buffer
	root := newRootCmd(&rootOptions{})
	root.SetOut(&out)
	root.SetArgs([]string{"lookup", "spotify:show:abc"})
	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.True(t, opts.SkipDatabase)

	var decoded spotify.ShowProfile
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, *profile, decoded)
}

func TestLookupCommandRequiresArgument(t *testing.T) {
	mockApp := new(MockApp)
	withMockApp(t, mockApp)

	require.Error(t, execute(context.Background(), []string{"lookup"}))
	mockApp.AssertNotCalled(t, "Lookup", mock.Anything, mock.Anything)
}

func TestMigrateCommandJoinsCloseError(t *testing.T) {
	mockApp := new(MockApp)
	withMockApp(t, mockApp)
	mockApp.On("Migrate", mock.Anything).Return(nil)
	mockApp.On("Close", mock.Anything).Return(errors.New("pool busy"))

	err := execute(context.Background(), []string{"migrate"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool busy")
}

func TestConfigErrorStopsBeforeApp(t *testing.T) {
	mockApp := new(MockApp)
	withMockApp(t, mockApp)
	loadConfig = func(string, string) (config.Config, error) {
		return config.Config{}, errors.New("db.port must be between 1 and 65535")
	}

	err := execute(context.Background(), []string{"profiles"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
	mockApp.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestResolveAppWithoutApp(t *testing.T) {
	t.Parallel()

	_, err := resolveApp(context.Background())
	require.Error(t, err)
}
