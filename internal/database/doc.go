// Package database provides the SQLite run history for spidercrab.
//
// Each archived check stores its full report as JSON together with the
// counts needed to list runs without decoding every report. The database
// uses modernc.org/sqlite, a CGO-free driver, and lives in the XDG data
// directory unless another location is configured.
package database
