package spotify

import (
	"math"
	"strconv"
	"strings"
)

// ParseShow extracts a ShowProfile from a queryShowMetadataV2 response.
// It returns nil without error when the show name or publisher is missing.
func ParseShow(doc map[string]any) (*ShowProfile, error) {
	if err := CheckErrors("show metadata", doc); err != nil {
		return nil, err
	}
	podcast, ok := lookup(doc, "data", "podcastUnionV2").(map[string]any)
	if !ok {
		return nil, nil
	}

	profile := &ShowProfile{
		ShowName: trimmedString(podcast["name"]),
		HostName: trimmedString(lookup(podcast, "publisher", "name")),
		About:    trimmedString(podcast["description"]),
		Category: joinTopics(lookup(podcast, "topics", "items")),
		Rate:     formatRate(averageRating(podcast)),
		Reviews:  formatReviews(totalRatings(podcast)),
	}
	if profile.ShowName == "" || profile.HostName == "" {
		return nil, nil
	}
	return profile, nil
}

// EpisodeURIs lists the episode URIs of a show response in upstream order.
func EpisodeURIs(doc map[string]any) []string {
	items, _ := lookup(doc, "data", "podcastUnionV2", "episodesV2", "items").([]any)
	uris := make([]string, 0, len(items))
	for _, item := range items {
		if uri := trimmedString(lookup(item, "entity", "data", "uri")); uri != "" {
			uris = append(uris, uri)
		}
	}
	return uris
}

// ParseEpisodeDescription returns the trimmed HTML description of an
// getEpisodeDescription response, or "" when there is none.
func ParseEpisodeDescription(doc map[string]any) (string, error) {
	if err := CheckErrors("episode metadata", doc); err != nil {
		return "", err
	}
	return trimmedString(lookup(doc, "data", "episodeUnionV2", "htmlDescription")), nil
}

func joinTopics(raw any) string {
	items, ok := raw.([]any)
	if !ok {
		return ""
	}
	titles := make([]string, 0, len(items))
	for _, item := range items {
		if title := trimmedString(lookup(item, "title")); title != "" {
			titles = append(titles, title)
		}
	}
	return strings.Join(titles, ", ")
}

// averageRating prefers rating.averageRating.average and falls back to
// rating.average when the nested value is not a number.
func averageRating(podcast map[string]any) any {
	if v, ok := lookup(podcast, "rating", "averageRating", "average").(float64); ok {
		return v
	}
	return lookup(podcast, "rating", "average")
}

// totalRatings prefers rating.averageRating.totalRatings whenever it is present.
func totalRatings(podcast map[string]any) any {
	if v := lookup(podcast, "rating", "averageRating", "totalRatings"); v != nil {
		return v
	}
	return lookup(podcast, "rating", "totalRatings")
}

// formatRate floors to one decimal place: 4.567 becomes "4.5", never "4.6".
func formatRate(v any) string {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return strconv.FormatFloat(math.Floor(f*10)/10, 'f', 1, 64)
}

func formatReviews(v any) string {
	switch value := v.(type) {
	case float64:
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return ""
		}
		return strconv.FormatFloat(value, 'f', -1, 64)
	case string:
		return value
	default:
		return ""
	}
}

// lookup walks nested JSON objects; it returns nil when any step is missing
// or not an object.
func lookup(v any, path ...string) any {
	current := v
	for _, key := range path {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = obj[key]
		if !ok {
			return nil
		}
	}
	return current
}

func trimmedString(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}
