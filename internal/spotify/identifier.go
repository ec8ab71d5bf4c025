package spotify

import (
	"net/url"
	"strings"
)

const (
	// Scheme is the prefix of every native identifier (spotify:show:<id>).
	Scheme = "spotify"
	// WebBaseURL is the public web player origin used to render identifiers as URLs.
	WebBaseURL = "https://open.spotify.com"

	nativePrefix = Scheme + ":"
)

// DefaultExcludedDomains are hosts whose links are never collected.
var DefaultExcludedDomains = []string{"patreon.com", "speaker.com"}

var defaultDenylist = NewDenylist(DefaultExcludedDomains)

// Normalize converts a web URL or native identifier into the canonical
// spotify:<type>:<id> form. Native identifiers pass through untouched.
func Normalize(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", false
	}
	if strings.HasPrefix(trimmed, nativePrefix) {
		return trimmed, true
	}
	return URIFromURL(trimmed)
}

// URIFromURL builds a native identifier from the first two path segments of
// an absolute web URL.
func URIFromURL(raw string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	segments := pathSegments(parsed.EscapedPath())
	if len(segments) < 2 {
		return "", false
	}
	return nativePrefix + segments[0] + ":" + segments[1], true
}

// IdentifierToURL renders a native identifier as its open.spotify.com URL.
// Resource ids may contain colons, so everything after the type is kept.
func IdentifierToURL(identifier string) (string, bool) {
	parts := strings.Split(strings.TrimSpace(identifier), ":")
	if len(parts) < 3 {
		return "", false
	}
	resourceType := parts[1]
	resourceID := strings.Join(parts[2:], ":")
	if resourceType == "" || resourceID == "" {
		return "", false
	}
	return WebBaseURL + "/" + resourceType + "/" + resourceID, true
}

// IsExcludedDomain reports whether rawURL points at one of the default
// excluded domains. Unparseable URLs are not excluded.
func IsExcludedDomain(rawURL string) bool {
	return defaultDenylist.Contains(rawURL)
}

func pathSegments(path string) []string {
	raw := strings.Split(path, "/")
	out := make([]string, 0, len(raw))
	for _, segment := range raw {
		if segment != "" {
			out = append(out, segment)
		}
	}
	return out
}

// Denylist matches hostnames against a set of domains, either exactly or as
// a subdomain.
type Denylist struct {
	exact    map[string]struct{}
	suffixes []string
}

// NewDenylist builds a Denylist. Entries may be written as "example.com",
// ".example.com" or "*.example.com"; all three also match subdomains.
func NewDenylist(domains []string) Denylist {
	list := Denylist{exact: make(map[string]struct{})}
	for _, raw := range domains {
		value := strings.TrimSpace(strings.ToLower(raw))
		value = strings.TrimPrefix(value, "*")
		value = strings.TrimPrefix(value, ".")
		if value == "" {
			continue
		}
		if _, seen := list.exact[value]; seen {
			continue
		}
		list.exact[value] = struct{}{}
		list.suffixes = append(list.suffixes, "."+value)
	}
	return list
}

// Domains returns the configured domains in insertion order.
func (d Denylist) Domains() []string {
	out := make([]string, 0, len(d.suffixes))
	for _, suffix := range d.suffixes {
		out = append(out, strings.TrimPrefix(suffix, "."))
	}
	return out
}

// Contains reports whether the host of rawURL is denied. It fails open:
// anything that does not parse to a hostname is allowed.
func (d Denylist) Contains(rawURL string) bool {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	return d.ContainsHost(parsed.Hostname())
}

// ContainsHost reports whether host equals or is a subdomain of a denied domain.
func (d Denylist) ContainsHost(host string) bool {
	host = strings.TrimSpace(strings.ToLower(host))
	if host == "" {
		return false
	}
	if _, ok := d.exact[host]; ok {
		return true
	}
	for _, suffix := range d.suffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}
