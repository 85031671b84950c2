// Package model defines the data structures shared by the spidercrab packages.
//
// This package contains the following main types:
//   - Reference: a link, image, script or stylesheet found in an HTML page
//   - FetchOutcome: the classified result of fetching one URL
//   - Finding: a rule violation attributed to a page
//   - SuppressionRule: a (rule, URL) pair that silences a finding
//   - CheckReport: the serializable result of one crawl
//
// URL normalization also lives here because the frontier, the rule engine and
// the ignore-file loader must agree on what makes two URLs equal.
//
// All report types serialize to JSON for report output and the run history.
package model
