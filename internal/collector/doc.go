// Package collector discovers repositories that depend on the tracked toolkit.
//
// Three collectors feed the shared repositories table:
//   - CodeSearch: REST code search for manifest files naming the toolkit
//   - RepoSearch: GraphQL repository search for mentions of the toolkit
//   - Dependents: scrape of the toolkit's dependents listing page
//
// Collectors run sequentially under a Runner, each producing a
// per-source tally. Discovery is deliberately not concurrent: search
// rate limits are the bottleneck, and sequential collection with
// politeness delays stays well inside them. The one concurrent stage is
// enrichment, which refreshes scrape-discovered rows through the REST
// API with a fixed-size errgroup worker pool.
//
// Deduplication across collectors needs no coordination here: every
// candidate is upserted against the unique full_name key, and the
// database keeps first-discovery attribution.
package collector
