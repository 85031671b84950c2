// Package graph accumulates the link graph and findings of a crawl and
// renders the result as Graphviz DOT.
//
// The Builder is append-only and safe for concurrent use. Its Report method
// returns a snapshot that can be written by any report writer or archived in
// the run history.
package graph
