package spotify

import "strings"

// SearchShape is one known location of the podcast hit list in a search
// response. The upstream has moved this list between releases.
type SearchShape struct {
	Name string
	Path []string
}

// SearchShapes are probed in order; the first path holding an array wins.
var SearchShapes = []SearchShape{
	{Name: "searchV2.podcasts", Path: []string{"data", "searchV2", "podcasts", "items"}},
	{Name: "searchV2.podcastsAndEpisodes", Path: []string{"data", "searchV2", "podcastsAndEpisodes", "items"}},
	{Name: "searchV2.shows", Path: []string{"data", "searchV2", "shows", "items"}},
	{Name: "searchV2.topResultsV2", Path: []string{"data", "searchV2", "topResultsV2", "itemsV2"}},
	{Name: "searchV2.topResults", Path: []string{"data", "searchV2", "topResults", "items"}},
	{Name: "search.podcasts", Path: []string{"data", "search", "podcasts", "items"}},
	{Name: "search.shows", Path: []string{"data", "search", "shows", "items"}},
	{Name: "searchV2.episodes", Path: []string{"data", "searchV2", "episodes", "items"}},
}

// MatchSearchShape returns the first shape whose path resolves to an array,
// together with that array. An empty array still counts as a match.
func MatchSearchShape(doc map[string]any) (SearchShape, []any, bool) {
	for _, shape := range SearchShapes {
		if items, ok := lookup(doc, shape.Path...).([]any); ok {
			return shape, items, true
		}
	}
	return SearchShape{}, nil, false
}

// ExtractSearchResults turns a searchDesktop response into SearchResults for
// query. Items without a URI that renders as a URL are dropped.
func ExtractSearchResults(doc map[string]any, query string) ([]SearchResult, error) {
	if err := CheckErrors("search results", doc); err != nil {
		return nil, err
	}
	_, items, ok := MatchSearchShape(doc)
	if !ok {
		return nil, nil
	}
	results := make([]SearchResult, 0, len(items))
	for _, item := range items {
		if result, ok := searchResultFromItem(item, query); ok {
			results = append(results, result)
		}
	}
	return results, nil
}

func searchResultFromItem(item any, query string) (SearchResult, bool) {
	entity, ok := item.(map[string]any)
	if !ok {
		return SearchResult{}, false
	}
	if nested, ok := entity["data"].(map[string]any); ok {
		entity = nested
	}
	url, ok := IdentifierToURL(trimmedString(entity["uri"]))
	if !ok {
		return SearchResult{}, false
	}
	return SearchResult{
		AuthorName:   authorName(entity["publisher"]),
		ProfileTitle: trimmedString(entity["name"]),
		Query:        strings.TrimSpace(query),
		URL:          url,
	}, true
}

// authorName accepts both {"publisher": {"name": "..."}} and {"publisher": "..."}.
func authorName(publisher any) string {
	if name := trimmedString(lookup(publisher, "name")); name != "" {
		return name
	}
	return trimmedString(publisher)
}
