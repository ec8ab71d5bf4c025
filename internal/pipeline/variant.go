package pipeline

import (
	"fmt"

	"github.com/JakeFAU/podcast-ingest/internal/spotify"
	"github.com/JakeFAU/podcast-ingest/internal/store"
)

// Variant names one kind of run. The pipeline is shared; a variant only
// selects the upstream operation and the table it reads from and writes to.
type Variant struct {
	Name  string
	Kind  spotify.Kind
	Noun  string
	Table store.Table
}

// ProfilesVariant fetches show metadata for every pending profile URL.
func ProfilesVariant(schema string) (Variant, error) {
	table, err := store.ProfilesTable(schema)
	if err != nil {
		return Variant{}, err
	}
	return Variant{Name: "profiles", Kind: spotify.KindShow, Noun: "profile", Table: table}, nil
}

// SearchVariant runs every pending search query.
func SearchVariant(schema string) (Variant, error) {
	table, err := store.SearchResultsTable(schema)
	if err != nil {
		return Variant{}, err
	}
	return Variant{Name: "search", Kind: spotify.KindSearch, Noun: "query", Table: table}, nil
}

// VariantByName resolves the CLI name of a variant.
func VariantByName(name, schema string) (Variant, error) {
	switch name {
	case "profiles":
		return ProfilesVariant(schema)
	case "search":
		return SearchVariant(schema)
	default:
		return Variant{}, fmt.Errorf("unknown variant %q", name)
	}
}

func (v Variant) plural(n int) string {
	if n == 1 {
		return v.Noun
	}
	if v.Noun == "query" {
		return "queries"
	}
	return v.Noun + "s"
}
