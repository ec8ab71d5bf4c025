// The main package for the podcast-ingest executable.
//
// Architecture overview:
//   - Pending work: internal/storage/postgres reads profile URLs or search queries from a pending view and
//     upserts one record per item, each in its own transaction, ignoring url conflicts.
//   - Pipeline: internal/pipeline normalises each item into a spotify identifier, builds the pathfinder request,
//     sends it through internal/transport (direct or ScrapeNinja relay, paced per host) and parses the response.
//     Show runs also try episodes in order for a description and extract outbound links.
//   - Fan-out: items run sequentially by default; pipeline.concurrency > 1 uses the bounded dispatcher. Item
//     failures are logged and counted, while persistence failures and early credential rejection stop the run.
//   - Optional side channels: raw responses are archived to memory, local disk or GCS, and each saved record can
//     be announced on Pub/Sub. Prometheus metrics and /healthz are served when metrics.addr is set.
//
// Quick checklist:
//   - Set SPOTIFY_AUTHORIZATION and SPOTIFY_CLIENT_TOKEN (or data/headers.json) and the DB_* variables.
//   - Run: go run . profiles | search | lookup <url|uri> | migrate
package main

import (
	"github.com/JakeFAU/podcast-ingest/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
