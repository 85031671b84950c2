// Package rules classifies fetched pages and their references into findings
// and filters findings through ignore rules.
//
// Evaluation is pure: the same page always yields the same findings in the
// same order. The http-error finding comes first, then missing-title, then
// one finding per offending reference in document order.
//
// A Suppressor drops findings whose (rule, URL) pair appears in the ignore
// file. Matching is exact on the normalized URL; there are no wildcards.
package rules
