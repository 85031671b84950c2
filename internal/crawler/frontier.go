package crawler

import "sync"

// Item is a URL waiting in the frontier.
type Item struct {
	// URL is the normalized URL to fetch.
	URL string

	// Depth is the hop count from the seed.
	Depth int

	// Parent is the page the URL was discovered on. Empty for the seed.
	Parent string
}

// Frontier is the dedup set and FIFO work queue of a crawl.
// Every URL is admitted at most once for the lifetime of the frontier,
// so no URL is ever dequeued twice.
type Frontier struct {
	// maxDepth is the deepest admitted depth. Negative means unbounded.
	maxDepth int

	// maxPages caps the number of admitted URLs. Zero means unlimited.
	maxPages int

	mu    sync.Mutex
	seen  map[string]struct{}
	queue []Item
}

// NewFrontier creates an empty frontier.
func NewFrontier(maxDepth, maxPages int) *Frontier {
	return &Frontier{
		maxDepth: maxDepth,
		maxPages: maxPages,
		seen:     make(map[string]struct{}),
	}
}

// Enqueue admits url at depth if it has not been seen before, the depth is
// within bounds and the page budget is not exhausted. The check and the
// insertion happen under one lock, so concurrent callers racing on the same
// URL see exactly one true result.
func (f *Frontier) Enqueue(url string, depth int, parent string) bool {
	if f.maxDepth >= 0 && depth > f.maxDepth {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.seen[url]; ok {
		return false
	}
	if f.maxPages > 0 && len(f.seen) >= f.maxPages {
		return false
	}
	f.seen[url] = struct{}{}
	f.queue = append(f.queue, Item{URL: url, Depth: depth, Parent: parent})
	return true
}

// Dequeue pops the oldest pending item.
func (f *Frontier) Dequeue() (Item, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return Item{}, false
	}
	item := f.queue[0]
	f.queue[0] = Item{}
	f.queue = f.queue[1:]
	return item, true
}

// DequeueLayer pops every pending item that shares the depth of the head of
// the queue, in discovery order. It returns nil when the frontier is empty.
func (f *Frontier) DequeueLayer() []Item {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return nil
	}
	depth := f.queue[0].Depth
	n := 0
	for n < len(f.queue) && f.queue[n].Depth == depth {
		n++
	}
	layer := make([]Item, n)
	copy(layer, f.queue[:n])
	f.queue = append(f.queue[:0:0], f.queue[n:]...)
	return layer
}

// Seen reports whether url was ever admitted.
func (f *Frontier) Seen(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen[url]
	return ok
}

// Len returns the number of pending items.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// Admitted returns the number of URLs ever admitted.
func (f *Frontier) Admitted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}
