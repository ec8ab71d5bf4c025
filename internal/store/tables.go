package store

import (
	"errors"
	"fmt"
	"regexp"
)

// DefaultSchema is the Postgres schema holding the ingest tables.
const DefaultSchema = "spotify"

var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ErrInvalidSchema is returned for schema names that are not plain identifiers.
var ErrInvalidSchema = errors.New("invalid schema name")

// PendingItem is one unit of work read from a pending view. Value is a profile
// URL or a search query; AuxKey is the optional search id carried onto records.
type PendingItem struct {
	Value  string
	AuxKey string
}

// Table bundles the statements for one record type.
type Table struct {
	// Name is the qualified table name, e.g. spotify.profiles.
	Name string
	// PendingSQL selects two text columns: the item value and its aux key.
	PendingSQL string
	// InsertSQL inserts one record and ignores url conflicts.
	InsertSQL string
	// Migrations are additive statements applied in one transaction.
	Migrations []string
}

func checkSchema(schema string) (string, error) {
	if schema == "" {
		return DefaultSchema, nil
	}
	if !validIdentifier.MatchString(schema) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSchema, schema)
	}
	return schema, nil
}

// ProfilesTable describes <schema>.profiles and its pending view.
func ProfilesTable(schema string) (Table, error) {
	s, err := checkSchema(schema)
	if err != nil {
		return Table{}, err
	}
	name := s + ".profiles"
	return Table{
		Name: name,
		PendingSQL: fmt.Sprintf(
			"select coalesce(url, ''), coalesce(search_id::text, '') from %s.not_scraped_profiles_vw", s),
		InsertSQL: fmt.Sprintf(
			"insert into %s(show_name, host_name, about, rate, reviews, url, links, category, search_id, episode_description) "+
				"values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) on conflict (url) do nothing", name),
		Migrations: []string{
			fmt.Sprintf("alter table if exists %s add column if not exists url text", name),
			fmt.Sprintf("alter table if exists %s add column if not exists links text", name),
			fmt.Sprintf("alter table if exists %s add column if not exists category text", name),
			fmt.Sprintf("alter table if exists %s add column if not exists search_id text", name),
			fmt.Sprintf("alter table if exists %s add column if not exists episode_description text", name),
			fmt.Sprintf("create unique index if not exists profiles_url_key on %s(url)", name),
		},
	}, nil
}

// SearchResultsTable describes <schema>.search_results and its pending view.
func SearchResultsTable(schema string) (Table, error) {
	s, err := checkSchema(schema)
	if err != nil {
		return Table{}, err
	}
	name := s + ".search_results"
	return Table{
		Name: name,
		PendingSQL: fmt.Sprintf(
			"select coalesce(query, ''), coalesce(id::text, '') from %s.not_searched_queries_vw", s),
		InsertSQL: fmt.Sprintf(
			"insert into %s(author_name, profile_title, query, url, search_id) "+
				"values ($1, $2, $3, $4, $5) on conflict (url) do nothing", name),
		Migrations: []string{
			fmt.Sprintf("alter table if exists %s add column if not exists author_name text", name),
			fmt.Sprintf("alter table if exists %s add column if not exists profile_title text", name),
			fmt.Sprintf("alter table if exists %s add column if not exists query text", name),
			fmt.Sprintf("alter table if exists %s add column if not exists url text", name),
			fmt.Sprintf("alter table if exists %s add column if not exists search_id text", name),
			fmt.Sprintf("create unique index if not exists search_results_url_key on %s(url)", name),
		},
	}, nil
}
