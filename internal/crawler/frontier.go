package crawler

// Frontier is the BFS state of one crawl: a FIFO queue of URLs waiting to be
// processed plus the set of URLs already popped. A URL enters the queue at
// most once per run.
type Frontier struct {
	queue   []string
	pending map[string]struct{}
	visited map[string]struct{}
}

// NewFrontier returns a frontier holding only seed.
func NewFrontier(seed string) *Frontier {
	f := &Frontier{
		pending: make(map[string]struct{}),
		visited: make(map[string]struct{}),
	}
	f.Enqueue(seed)
	return f
}

// Pop removes and returns the front of the queue.
func (f *Frontier) Pop() (string, bool) {
	if len(f.queue) == 0 {
		return "", false
	}
	next := f.queue[0]
	f.queue[0] = ""
	f.queue = f.queue[1:]
	delete(f.pending, next)
	return next, true
}

// Visited reports whether rawURL has already been processed.
func (f *Frontier) Visited(rawURL string) bool {
	_, ok := f.visited[rawURL]
	return ok
}

// MarkVisited records rawURL as processed.
func (f *Frontier) MarkVisited(rawURL string) {
	f.visited[rawURL] = struct{}{}
}

// Enqueue appends rawURL unless it was visited or is already queued.
func (f *Frontier) Enqueue(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	if _, ok := f.visited[rawURL]; ok {
		return false
	}
	if _, ok := f.pending[rawURL]; ok {
		return false
	}
	f.pending[rawURL] = struct{}{}
	f.queue = append(f.queue, rawURL)
	return true
}

// Len returns the number of queued URLs.
func (f *Frontier) Len() int { return len(f.queue) }

// VisitedCount returns the number of processed URLs.
func (f *Frontier) VisitedCount() int { return len(f.visited) }

// Pending returns a copy of the queue in order.
func (f *Frontier) Pending() []string {
	out := make([]string, len(f.queue))
	copy(out, f.queue)
	return out
}
