// Package report renders a model.CheckReport in the output formats the
// check command supports.
//
// Every format writes only unsuppressed findings in report order, so the
// same crawl produces the same bytes on every run:
//   - SimpleWriter: one "ERROR - SpiderError (rule): message" line per finding,
//     with an optional summary table
//   - JSONWriter: the full report including pages and edges
//   - MarkdownWriter: a shareable document with a per-rule chart
//   - CSVWriter: one row per finding for spreadsheets
package report
