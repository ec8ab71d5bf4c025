package spotify

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind names the upstream operation an envelope targets.
type Kind int

// Operation kinds understood by the request builder.
const (
	KindShow Kind = iota + 1
	KindEpisode
	KindSearch
)

func (k Kind) String() string {
	switch k {
	case KindShow:
		return "show"
	case KindEpisode:
		return "episode"
	case KindSearch:
		return "search"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Pinned pathfinder operations.
const (
	ShowMetadataHash   = "26d0c98fef216dad02d31c359075c07d605974af8d82834f26e90f917f32555a"
	SearchDesktopHash  = "4801118d4a100f756e833d33984436a3899cff359c532f8fd3aaf174b60b3b49"
	ShowOperation      = "queryShowMetadataV2"
	EpisodeOperation   = "getEpisodeDescription"
	SearchOperation    = "searchDesktop"
	persistedQueryVer  = 1
	defaultSearchLimit = 10
	episodeQuery       = "query getEpisodeDescription($uri: ID!) { episodeUnionV2(uri: $uri) { __typename " +
		"... on Episode { htmlDescription } ... on UnknownEpisode { htmlDescription } } }"
)

// Envelope is one immutable pathfinder request. Build it with a Builder.
type Envelope struct {
	kind          Kind
	operationName string
	variables     map[string]any
	persistedHash string
	query         string
}

// Kind returns the operation kind.
func (e Envelope) Kind() Kind { return e.kind }

// OperationName returns the GraphQL operation name.
func (e Envelope) OperationName() string { return e.operationName }

// PersistedHash returns the persisted-query hash, empty for inline queries.
func (e Envelope) PersistedHash() string { return e.persistedHash }

// Query returns the inline query text, empty for persisted queries.
func (e Envelope) Query() string { return e.query }

// Variables returns a copy of the request variables.
func (e Envelope) Variables() map[string]any {
	out := make(map[string]any, len(e.variables))
	for k, v := range e.variables {
		out[k] = v
	}
	return out
}

type persistedQuery struct {
	Version    int    `json:"version"`
	SHA256Hash string `json:"sha256Hash"`
}

type extensions struct {
	PersistedQuery persistedQuery `json:"persistedQuery"`
}

type wireBody struct {
	Variables     map[string]any `json:"variables"`
	OperationName string         `json:"operationName"`
	Query         string         `json:"query,omitempty"`
	Extensions    *extensions    `json:"extensions,omitempty"`
}

// MarshalJSON renders the envelope in the pathfinder wire format.
func (e Envelope) MarshalJSON() ([]byte, error) {
	body := wireBody{
		Variables:     e.variables,
		OperationName: e.operationName,
		Query:         e.query,
	}
	if e.persistedHash != "" {
		body.Extensions = &extensions{PersistedQuery: persistedQuery{
			Version:    persistedQueryVer,
			SHA256Hash: e.persistedHash,
		}}
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", e.kind, err)
	}
	return data, nil
}

// BuilderOptions overrides the compiled operation constants.
type BuilderOptions struct {
	ShowHash    string
	SearchHash  string
	SearchLimit int
}

// Builder produces request envelopes. The zero value is not usable; call NewBuilder.
type Builder struct {
	showHash    string
	searchHash  string
	searchLimit int
}

// NewBuilder returns a Builder, filling unset options with compiled defaults.
func NewBuilder(opts BuilderOptions) Builder {
	b := Builder{
		showHash:    strings.TrimSpace(opts.ShowHash),
		searchHash:  strings.TrimSpace(opts.SearchHash),
		searchLimit: opts.SearchLimit,
	}
	if b.showHash == "" {
		b.showHash = ShowMetadataHash
	}
	if b.searchHash == "" {
		b.searchHash = SearchDesktopHash
	}
	if b.searchLimit <= 0 {
		b.searchLimit = defaultSearchLimit
	}
	return b
}

var defaultBuilder = NewBuilder(BuilderOptions{})

// BuildRequest builds an envelope with the compiled defaults.
func BuildRequest(kind Kind, identifier string) (Envelope, error) {
	return defaultBuilder.Build(kind, identifier)
}

// Build returns the envelope for kind. For show and episode lookups the
// identifier is a URL or native URI; for search it is the search term.
func (b Builder) Build(kind Kind, identifier string) (Envelope, error) {
	switch kind {
	case KindShow:
		uri, ok := Normalize(identifier)
		if !ok {
			return Envelope{}, invalidIdentifier("show")
		}
		return Envelope{
			kind:          KindShow,
			operationName: ShowOperation,
			variables:     map[string]any{"uri": uri},
			persistedHash: b.showHash,
		}, nil
	case KindEpisode:
		uri, ok := Normalize(identifier)
		if !ok {
			return Envelope{}, invalidIdentifier("episode")
		}
		return Envelope{
			kind:          KindEpisode,
			operationName: EpisodeOperation,
			variables:     map[string]any{"uri": uri},
			query:         episodeQuery,
		}, nil
	case KindSearch:
		term := strings.TrimSpace(identifier)
		if term == "" {
			return Envelope{}, &ValidationError{Field: "search term", Message: "search term must not be blank"}
		}
		return Envelope{
			kind:          KindSearch,
			operationName: SearchOperation,
			variables:     b.searchVariables(term),
			persistedHash: b.searchHash,
		}, nil
	default:
		return Envelope{}, &ValidationError{Field: "kind", Message: fmt.Sprintf("unsupported operation %s", kind)}
	}
}

func (b Builder) searchVariables(term string) map[string]any {
	return map[string]any{
		"searchTerm":                    term,
		"offset":                        0,
		"limit":                         b.searchLimit,
		"numberOfTopResults":            5,
		"includeAudiobooks":             true,
		"includeArtistHasConcertsField": false,
		"includePreReleases":            true,
		"includeLocalConcertsField":     false,
		"includeAuthors":                false,
	}
}

func invalidIdentifier(resource string) *ValidationError {
	return &ValidationError{
		Field:   resource + " identifier",
		Message: "provide a spotify: URI or an open.spotify.com URL",
	}
}
