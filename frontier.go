package main

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// FrontierTask is one unit of crawl work.
type FrontierTask struct {
	URL      string
	Depth    int
	Referrer string
}

// frontier owns the FIFO work queue together with the enqueued and visited
// sets of a single crawl run. All mutation happens under one mutex so that the
// "not yet enqueued" check and the mark are atomic.
type frontier struct {
	mu   sync.Mutex
	cond *sync.Cond

	queue    []FrontierTask
	enqueued map[string]struct{}
	visited  map[string]struct{}

	// pending counts tasks pushed and not yet finished by a worker.
	pending int
	// reserved counts page slots claimed for fetching, bounded by maxPages.
	reserved int
	maxPages int
	closed   bool
}

func newFrontier(maxPages int) *frontier {
	f := &frontier{
		enqueued: make(map[string]struct{}),
		visited:  make(map[string]struct{}),
		maxPages: maxPages,
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// push enqueues task unless its URL was enqueued before or the frontier is closed.
func (f *frontier) push(task FrontierTask) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	if _, seen := f.enqueued[task.URL]; seen {
		return false
	}
	f.enqueued[task.URL] = struct{}{}
	f.queue = append(f.queue, task)
	f.pending++
	f.cond.Signal()
	return true
}

// next blocks until a task is available. It reports false once the frontier is
// closed, or drained: the queue is empty and no popped task is still running.
func (f *frontier) next() (FrontierTask, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.queue) == 0 && f.pending > 0 && !f.closed {
		f.cond.Wait()
	}
	if f.closed || len(f.queue) == 0 {
		return FrontierTask{}, false
	}
	task := f.queue[0]
	f.queue[0] = FrontierTask{}
	f.queue = f.queue[1:]
	return task, true
}

// done marks a task returned by next as finished.
func (f *frontier) done() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending--
	if f.pending == 0 {
		f.cond.Broadcast()
	}
}

// reserve claims one of the maxPages fetch slots. Claiming the last one closes
// the frontier so idle workers stop while fetches in flight still complete.
func (f *frontier) reserve() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reserved >= f.maxPages {
		return false
	}
	f.reserved++
	if f.reserved >= f.maxPages {
		f.closeLocked()
	}
	return true
}

func (f *frontier) markVisited(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visited[url] = struct{}{}
}

func (f *frontier) isVisited(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[url]
	return ok
}

func (f *frontier) isEnqueued(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.enqueued[url]
	return ok
}

// close stops handing out tasks and wakes every waiting worker.
func (f *frontier) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeLocked()
}

func (f *frontier) closeLocked() {
	f.closed = true
	f.cond.Broadcast()
}

// visitedURLs returns the visited set sorted lexicographically.
func (f *frontier) visitedURLs() []string {
	f.mu.Lock()
	urls := lo.Keys(f.visited)
	f.mu.Unlock()
	sort.Strings(urls)
	return urls
}
