// Package server serves the dependents dashboard and its JSON API.
// The dashboard is a single server-rendered page; the API powers its
// table (pagination, sorting, search) and the CSV export.
package server
