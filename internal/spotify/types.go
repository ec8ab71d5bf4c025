package spotify

// ShowProfile is the flat record persisted for one podcast show.
type ShowProfile struct {
	ShowName           string `json:"show_name"`
	HostName           string `json:"host_name"`
	About              string `json:"about"`
	Rate               string `json:"rate"`
	Reviews            string `json:"reviews"`
	Category           string `json:"category"`
	Links              string `json:"links"`
	URL                string `json:"url"`
	SearchID           string `json:"search_id,omitempty"`
	EpisodeDescription string `json:"episode_description,omitempty"`
}

// SearchResult is one podcast hit returned for a search term.
type SearchResult struct {
	AuthorName   string `json:"author_name"`
	ProfileTitle string `json:"profile_title"`
	Query        string `json:"query"`
	URL          string `json:"url"`
	SearchID     string `json:"search_id,omitempty"`
}
