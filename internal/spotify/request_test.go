package spotify

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildShowRequestEndToEnd(t *testing.T) {
	t.Parallel()

	env, err := BuildRequest(KindShow, "https://open.spotify.com/show/abc123")
	require.NoError(t, err)
	assert.Equal(t, KindShow, env.Kind())
	assert.Equal(t, "spotify:show:abc123", env.Variables()["uri"])
	assert.Equal(t, ShowMetadataHash, env.PersistedHash())
	assert.Empty(t, env.Query())

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"variables": {"uri": "spotify:show:abc123"},
		"operationName": "queryShowMetadataV2",
		"extensions": {"persistedQuery": {"version": 1, "sha256Hash": "`+ShowMetadataHash+`"}}
	}`, string(raw))
}

func TestBuildEpisodeRequestUsesInlineQuery(t *testing.T) {
	t.Parallel()

	env, err := BuildRequest(KindEpisode, "spotify:episode:e1")
	require.NoError(t, err)
	assert.Empty(t, env.PersistedHash())
	assert.Contains(t, env.Query(), "episodeUnionV2(uri: $uri)")
	assert.Contains(t, env.Query(), "... on UnknownEpisode")

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, EpisodeOperation, body["operationName"])
	assert.NotContains(t, body, "extensions")
	assert.Equal(t, map[string]any{"uri": "spotify:episode:e1"}, body["variables"])
}

func TestBuildSearchRequest(t *testing.T) {
	t.Parallel()

	env, err := BuildRequest(KindSearch, "  true crime  ")
	require.NoError(t, err)
	vars := env.Variables()
	assert.Equal(t, "true crime", vars["searchTerm"])
	assert.Equal(t, 0, vars["offset"])
	assert.Equal(t, 10, vars["limit"])
	assert.Equal(t, true, vars["includeAudiobooks"])
	assert.Equal(t, SearchDesktopHash, env.PersistedHash())
	assert.NotEqual(t, ShowMetadataHash, env.PersistedHash())
}

func TestBuilderOverrides(t *testing.T) {
	t.Parallel()

	b := NewBuilder(BuilderOptions{ShowHash: "show-hash", SearchHash: "search-hash", SearchLimit: 25})
	show, err := b.Build(KindShow, "spotify:show:x")
	require.NoError(t, err)
	assert.Equal(t, "show-hash", show.PersistedHash())

	search, err := b.Build(KindSearch, "q")
	require.NoError(t, err)
	assert.Equal(t, "search-hash", search.PersistedHash())
	assert.Equal(t, 25, search.Variables()["limit"])
}

func TestBuildRequestRejectsInvalidIdentifiers(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		kind  Kind
		input string
	}{
		{KindShow, ""},
		{KindShow, "https://open.spotify.com/show"},
		{KindEpisode, "not a url"},
		{KindSearch, "   "},
		{Kind(99), "spotify:show:x"},
	}
	for _, tc := range testCases {
		_, err := BuildRequest(tc.kind, tc.input)
		var validationErr *ValidationError
		require.True(t, errors.As(err, &validationErr), "%s %q: %v", tc.kind, tc.input, err)
	}
}

func TestEnvelopeVariablesAreCopied(t *testing.T) {
	t.Parallel()

	env, err := BuildRequest(KindShow, "spotify:show:x")
	require.NoError(t, err)
	vars := env.Variables()
	vars["uri"] = "mutated"
	assert.Equal(t, "spotify:show:x", env.Variables()["uri"])
}

func TestKindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "show", KindShow.String())
	assert.Equal(t, "episode", KindEpisode.String())
	assert.Equal(t, "search", KindSearch.String())
	assert.Equal(t, "kind(0)", Kind(0).String())
}
