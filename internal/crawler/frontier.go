package crawler

// Frontier is the per-crawl queue state: a double-ended queue of pending URLs plus the sets
// that keep a URL from being fetched twice. It is not safe for concurrent use.
type Frontier struct {
	pending  []string
	queued   map[string]struct{}
	visited  map[string]struct{}
	failed   map[string]struct{}
	maxPages int
}

// NewFrontier seeds the queue with a single URL.
func NewFrontier(seed string, maxPages int) *Frontier {
	f := &Frontier{
		queued:   map[string]struct{}{},
		visited:  map[string]struct{}{},
		failed:   map[string]struct{}{},
		maxPages: maxPages,
	}
	f.PushBack(seed)
	return f
}

// Next pops the front of the queue, skipping URLs already visited or failed. It reports false
// once the queue is drained or the page cap is reached.
func (f *Frontier) Next() (string, bool) {
	for len(f.pending) > 0 && !f.capped() {
		next := f.pending[0]
		f.pending = f.pending[1:]
		delete(f.queued, next)

		if _, ok := f.visited[next]; ok {
			continue
		}
		if _, ok := f.failed[next]; ok {
			continue
		}
		return next, true
	}
	return "", false
}

// MarkVisited records a successfully parsed page; only these count against the cap.
func (f *Frontier) MarkVisited(u string) {
	f.visited[u] = struct{}{}
}

// MarkFailed records a page whose fetch failed so it is not queued again in this crawl.
func (f *Frontier) MarkFailed(u string) {
	f.failed[u] = struct{}{}
}

// Known reports whether u is visited, failed or currently queued.
func (f *Frontier) Known(u string) bool {
	if _, ok := f.visited[u]; ok {
		return true
	}
	if _, ok := f.queued[u]; ok {
		return true
	}
	_, ok := f.failed[u]
	return ok
}

// PushFront prepends each URL in turn, so the last one given is fetched first.
func (f *Frontier) PushFront(urls ...string) {
	for _, u := range urls {
		if f.Known(u) {
			continue
		}
		f.pending = append([]string{u}, f.pending...)
		f.queued[u] = struct{}{}
	}
}

// PushBack appends URLs in order.
func (f *Frontier) PushBack(urls ...string) {
	for _, u := range urls {
		if f.Known(u) {
			continue
		}
		f.pending = append(f.pending, u)
		f.queued[u] = struct{}{}
	}
}

// Visited returns the number of successfully parsed pages.
func (f *Frontier) Visited() int {
	return len(f.visited)
}

// Pending returns a copy of the queue, front first.
func (f *Frontier) Pending() []string {
	return append([]string(nil), f.pending...)
}

func (f *Frontier) capped() bool {
	return f.maxPages > 0 && len(f.visited) >= f.maxPages
}
