// Package main provides the entry point for the spidercrab CLI.
//
// spidercrab crawls a static website from a seed URL, checks every link,
// image, script and stylesheet it references, and reports broken references
// and markup problems in a format suitable for CI.
//
// Usage:
//
//	spidercrab check https://example.com/
//	spidercrab check -d 2 -f markdown -o report.md https://example.com/
//
// See --help for all available options.
package main

// main is the entry point for spidercrab.
func main() {
	Execute()
}
