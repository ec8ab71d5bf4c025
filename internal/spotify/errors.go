package spotify

import (
	"errors"
	"fmt"
	"strings"
)

// authFailureMarker is what pathfinder answers with when the bearer or
// client token is missing or expired.
const authFailureMarker = "client is not defined"

// ValidationError reports input that can never succeed: a malformed
// identifier or missing credentials. It is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// AuthError means the upstream rejected the request credentials.
type AuthError struct {
	Context string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf(
		"spotify GraphQL error while fetching %s: %s. This usually means the authorization or client-token "+
			"headers are missing or expired. Update SPOTIFY_AUTHORIZATION and SPOTIFY_CLIENT_TOKEN (or data/headers.json)",
		e.Context, e.Message,
	)
}

// UpstreamError carries any other error list returned by the GraphQL API.
type UpstreamError struct {
	Context string
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("spotify API returned an error response while fetching %s", e.Context)
	}
	return fmt.Sprintf("spotify GraphQL error while fetching %s: %s", e.Context, e.Message)
}

// IsAuthError reports whether err wraps an *AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// CheckErrors inspects the top-level "errors" array of a GraphQL response.
// It returns nil when the array is absent or empty.
func CheckErrors(context string, doc map[string]any) error {
	list, ok := doc["errors"].([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	messages := make([]string, 0, len(list))
	for _, entry := range list {
		obj, _ := entry.(map[string]any)
		if msg := trimmedString(obj["message"]); msg != "" {
			messages = append(messages, msg)
		}
	}
	joined := strings.Join(messages, "; ")
	if strings.Contains(strings.ToLower(joined), authFailureMarker) {
		return &AuthError{Context: context, Message: joined}
	}
	return &UpstreamError{Context: context, Message: joined}
}
