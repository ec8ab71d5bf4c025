// Package spotify turns loosely-typed Spotify identifiers into pathfinder
// GraphQL request envelopes and normalises the upstream's shifting response
// shapes into flat records.
//
// Everything in this package is pure: no I/O, no globals beyond compiled
// constants. Transport lives in internal/transport and persistence in
// internal/storage/postgres.
package spotify
