package headers

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/podcast-ingest/internal/spotify"
)

func TestBearerValue(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Bearer abc", BearerValue(" abc "))
	assert.Equal(t, "Bearer abc", BearerValue("Bearer abc"))
	assert.Equal(t, "bearer abc", BearerValue("bearer abc"))
	assert.Empty(t, BearerValue("   "))
}

func TestBuildOverlaysAndDropsEmpty(t *testing.T) {
	t.Parallel()

	defaults := Defaults(Credentials{Authorization: "tok", ClientToken: " ct "})
	set := Build(defaults, map[string]string{
		"User-Agent":   " custom-agent ",
		"X-Extra":      "1",
		"accept":       "   ",
		"Content-Type": "",
	})

	assert.Equal(t, "Bearer tok", set.Get(Authorization))
	assert.Equal(t, "ct", set.Get("Client-Token"))
	assert.Equal(t, "custom-agent", set.Get("user-agent"))
	assert.Equal(t, "1", set.Get("x-extra"))
	assert.Equal(t, "application/json", set.Get("accept"), "blank override must not clobber default")
	assert.Equal(t, "application/json;charset=UTF-8", set.Get("content-type"))
	for _, name := range set.Names() {
		assert.NotEmpty(t, set.Get(name), name)
	}
	assert.Equal(t, "custom-agent", set.HTTPHeader().Get("User-Agent"))
}

func TestBuildDropsMissingCredentials(t *testing.T) {
	t.Parallel()

	set := Build(Defaults(Credentials{}), nil)
	_, hasAuth := set.Map()[Authorization]
	assert.False(t, hasAuth)
	assert.Equal(t, DefaultUserAgent, set.Get("user-agent"))

	err := set.Validate()
	var validationErr *spotify.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Contains(t, err.Error(), "SPOTIFY_AUTHORIZATION")
	assert.Contains(t, err.Error(), "SPOTIFY_CLIENT_TOKEN")
}

func TestValidateWithOverriddenCredentials(t *testing.T) {
	t.Parallel()

	set := Build(Defaults(Credentials{}), map[string]string{
		"Authorization": "Bearer from-file",
		"CLIENT-TOKEN":  "ct-from-file",
	})
	require.NoError(t, set.Validate())
}

func TestSetMapIsCopy(t *testing.T) {
	t.Parallel()

	set := Build(map[string]string{"a": "1"}, nil)
	m := set.Map()
	m["a"] = "2"
	assert.Equal(t, "1", set.Get("a"))
	assert.Equal(t, 1, set.Len())
}

func TestLoadOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "headers.json")
	content := `{"Authorization": "Bearer file", "Client-Token": "ct", "x-count": 3, "nested": {"a": "b"}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	overrides, err := LoadOverrides(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"authorization": "Bearer file",
		"client-token":  "ct",
	}, overrides)
}

func TestLoadOverridesMissingFile(t *testing.T) {
	t.Parallel()

	overrides, err := LoadOverrides(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, overrides)

	overrides, err = LoadOverrides("")
	require.NoError(t, err)
	assert.Empty(t, overrides)
}

func TestLoadOverridesInvalidJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "headers.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

	overrides, err := LoadOverrides(path)
	require.Error(t, err)
	assert.Empty(t, overrides)
}
