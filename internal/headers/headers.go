// Package headers builds the immutable request header set sent to the
// pathfinder API: compiled browser-like defaults, credentials from config and
// optional overrides from a JSON file on disk.
package headers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/JakeFAU/podcast-ingest/internal/spotify"
)

// Header names that must be present before any upstream call.
const (
	Authorization = "authorization"
	ClientToken   = "client-token"
)

// DefaultUserAgent mimics the desktop web player.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36"

// Credentials are the opaque tokens copied from a logged-in web player session.
type Credentials struct {
	Authorization string
	ClientToken   string
	UserAgent     string
}

// Set is an immutable mapping of lowercase header names to non-empty values.
type Set struct {
	values map[string]string
}

// Defaults returns the compiled header defaults with credentials applied.
func Defaults(creds Credentials) map[string]string {
	userAgent := strings.TrimSpace(creds.UserAgent)
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return map[string]string{
		"accept":              "application/json",
		"accept-language":     "en",
		"app-platform":        "WebPlayer",
		Authorization:         BearerValue(creds.Authorization),
		ClientToken:           strings.TrimSpace(creds.ClientToken),
		"content-type":        "application/json;charset=UTF-8",
		"origin":              spotify.WebBaseURL,
		"priority":            "u=1, i",
		"referer":             spotify.WebBaseURL + "/",
		"sec-ch-ua":           `"Chromium";v="142", "Google Chrome";v="142", "Not_A Brand";v="99"`,
		"sec-ch-ua-mobile":    "?0",
		"sec-ch-ua-platform":  `"Windows"`,
		"sec-fetch-dest":      "empty",
		"sec-fetch-mode":      "cors",
		"sec-fetch-site":      "same-site",
		"spotify-app-version": "1.2.78.120.g186ece09",
		"user-agent":          userAgent,
	}
}

// BearerValue prefixes a raw token with "Bearer " unless it already has one.
func BearerValue(token string) string {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(trimmed), "bearer") {
		return trimmed
	}
	return "Bearer " + trimmed
}

// Build overlays overrides onto defaults. Override keys are case-folded;
// blank override values are ignored and blank results are dropped.
func Build(defaults, overrides map[string]string) Set {
	merged := make(map[string]string, len(defaults)+len(overrides))
	for key, value := range defaults {
		merged[strings.ToLower(key)] = strings.TrimSpace(value)
	}
	for key, value := range overrides {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			merged[strings.ToLower(key)] = trimmed
		}
	}
	for key, value := range merged {
		if value == "" {
			delete(merged, key)
		}
	}
	return Set{values: merged}
}

// LoadOverrides reads a JSON object of header overrides. A missing file
// yields no overrides and no error; non-string values are skipped.
func LoadOverrides(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return map[string]string{}, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return map[string]string{}, fmt.Errorf("stat header overrides: %w", err)
	}
	// Header names never nest, so use a delimiter that cannot appear in one.
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return map[string]string{}, fmt.Errorf("read header overrides: %w", err)
	}
	out := make(map[string]string)
	for key, value := range v.AllSettings() {
		if s, ok := value.(string); ok {
			out[strings.ToLower(key)] = s
		}
	}
	return out, nil
}

// Get returns the value for a header name, matched case-insensitively.
func (s Set) Get(name string) string {
	return s.values[strings.ToLower(name)]
}

// Len reports the number of headers.
func (s Set) Len() int {
	return len(s.values)
}

// Map returns a copy of the header values.
func (s Set) Map() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Names returns the header names in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s.values))
	for k := range s.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// HTTPHeader renders the set as an http.Header.
func (s Set) HTTPHeader() http.Header {
	h := make(http.Header, len(s.values))
	for k, v := range s.values {
		h.Set(k, v)
	}
	return h
}

// Validate fails when the credentials required by pathfinder are missing.
func (s Set) Validate() error {
	var missing []string
	if s.Get(Authorization) == "" {
		missing = append(missing,
			"authorization (Bearer token). Supply SPOTIFY_AUTHORIZATION env var or data/headers.json")
	}
	if s.Get(ClientToken) == "" {
		missing = append(missing,
			"client-token. Supply SPOTIFY_CLIENT_TOKEN env var or data/headers.json")
	}
	if len(missing) == 0 {
		return nil
	}
	return &spotify.ValidationError{
		Field: "auth headers",
		Message: fmt.Sprintf(
			"missing required Spotify auth headers: %s. Requests will fail with 401 until these are provided",
			strings.Join(missing, "; "),
		),
	}
}
