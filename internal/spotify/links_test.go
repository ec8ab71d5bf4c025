package spotify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractLinks(t *testing.T) {
	t.Parallel()

	deny := NewDenylist(DefaultExcludedDomains)
	testCases := []struct {
		name string
		text string
		want string
	}{
		{"denylist filtered", "See https://patreon.com/x and https://example.com/y", "https://example.com/y"},
		{
			"multiple joined",
			"a https://example.com/a, b HTTP://Other.org/b?x=1,2 c",
			"https://example.com/a," + LinkSeparator + "HTTP://Other.org/b?x=1,2",
		},
		{"stops at quotes and brackets", `<a href="https://example.com/q">x</a> 'https://e.org/z'`, "https://example.com/q" + LinkSeparator + "https://e.org/z"},
		{"subdomain denied", "https://www.speaker.com/ep https://speaker.community/ok", "https://speaker.community/ok"},
		{"ends at no-break space", "Visit https://example.com/y\u00a0for more", "https://example.com/y"},
		{"ends at vertical tab", "Visit https://example.com/y\vfor more", "https://example.com/y"},
		{"ends at line separator", "Visit https://example.com/y\u2028for more", "https://example.com/y"},
		{"ends at paragraph separator", "Visit https://example.com/y\u2029for more", "https://example.com/y"},
		{"ends at ideographic space", "Visit https://example.com/y\u3000for more", "https://example.com/y"},
		{"ends at byte order mark", "Visit https://example.com/y\ufefffor more", "https://example.com/y"},
		{"ends at narrow no-break space", "Visit https://example.com/y\u202ffor more", "https://example.com/y"},
		{"no links", "nothing here", ""},
		{"blank", "   ", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, ExtractLinks(tc.text, deny))
		})
	}
}

func TestExtractLinksKeepsUnparseableHosts(t *testing.T) {
	t.Parallel()

	got := ExtractLinks("broken http://%zz/path here", NewDenylist(DefaultExcludedDomains))
	assert.Equal(t, "http://%zz/path", got)
}

func TestMergeLinks(t *testing.T) {
	t.Parallel()

	a := "https://a.com" + LinkSeparator + "https://b.com"
	b := "https://b.com" + LinkSeparator + "https://c.com"
	assert.Equal(t, "https://a.com"+LinkSeparator+"https://b.com"+LinkSeparator+"https://c.com", MergeLinks(a, "", b))
	assert.Empty(t, MergeLinks("", ""))
}

func TestDescriptionTextExposesHrefs(t *testing.T) {
	t.Parallel()

	html := `<p>Support us <a href="https://patreon.com/show">here</a> or visit <a href="https://example.com/site">our site</a>.</p>`
	text := DescriptionText(html)
	assert.Contains(t, text, "Support us here or visit our site.")
	assert.Equal(t, "https://example.com/site", ExtractLinks(text, NewDenylist(DefaultExcludedDomains)))
	assert.Empty(t, DescriptionText("  "))
}
