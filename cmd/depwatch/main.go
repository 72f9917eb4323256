// Package main provides the entry point for the depwatch CLI.
//
// depwatch discovers repositories that depend on an open-source toolkit,
// stores their metadata in a local database, and serves a dashboard
// over the collected data.
//
// Usage:
//
//	depwatch collect
//	depwatch serve
//	depwatch export -o dependents.csv
//
// See --help for all available options.
package main

// main is the entry point for depwatch.
func main() {
	Execute()
}
