package crawler

import "errors"

// ErrInvalidSeed is returned by Spider.Check when the seed URL cannot be parsed,
// is not absolute, or does not use http or https. It is an engine fault: no crawl
// takes place.
var ErrInvalidSeed = errors.New("invalid seed URL")
