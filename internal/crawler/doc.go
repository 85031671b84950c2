// Package crawler implements the crawl engine of spidercrab.
//
// # Architecture
//
// The Spider coordinates a check. It owns no state between runs: every call
// to Check builds a Frontier, a graph.Builder and a rules.Suppressor and
// discards them when the report is returned.
//
// # Components
//
//   - Spider: drives the breadth-first traversal over a bounded worker pool
//   - Frontier: dedup set plus FIFO queue; a URL is admitted at most once
//   - HTTPFetcher: one GET per URL, classified as success, HTTP error or transport error
//   - Parser: extracts <a>, <link>, <img> and <script> references from HTML
//   - HostLimiter: optional per-host request rate
//
// # Traversal
//
// The frontier is processed one depth layer at a time. Items of a layer are
// fetched and evaluated concurrently; their results are then committed in
// discovery order. Children are enqueued at depth+1 and rejected once they
// exceed the maximum depth. Only HTML pages on allowed hosts are parsed;
// everything else is fetched to check that it is reachable.
//
// # Usage
//
//	fetcher := crawler.NewHTTPFetcher(crawler.WithTimeout(10 * time.Second))
//	spider := crawler.NewSpider(fetcher, crawler.WithMaxDepth(3))
//	report, err := spider.Check(ctx, "https://example.com")
package crawler
