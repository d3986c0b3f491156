// Package portpool hands out unique ports from a bounded, inclusive range
// and reclaims them on release.
package portpool

import (
	"container/heap"
	"sync"

	"github.com/hiveforge/hived/internal/apperrors"
)

type minHeap []int

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)         { *h = append(*h, x.(int)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// Pool allocates ports from the inclusive range [lo, hi]. Safe for
// concurrent use by callers on or off the event loop.
type Pool struct {
	mu      sync.Mutex
	free    minHeap
	lo, hi  int
	inUse   map[int]struct{}
}

// New builds a Pool pre-populated with every port in [lo, hi].
func New(lo, hi int) *Pool {
	p := &Pool{lo: lo, hi: hi, inUse: make(map[int]struct{})}
	for port := lo; port <= hi; port++ {
		p.free = append(p.free, port)
	}
	heap.Init(&p.free)
	return p
}

// Acquire returns the smallest currently-free port and marks it in-use.
func (p *Pool) Acquire() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.free.Len() == 0 {
		return 0, apperrors.ResourceError("out of ports in range [%d, %d]", p.lo, p.hi)
	}
	port := heap.Pop(&p.free).(int)
	p.inUse[port] = struct{}{}
	return port, nil
}

// Release marks p free again. Idempotent if p was not in use; silently
// ignores ports outside the configured range.
func (p *Pool) Release(port int) {
	if port < p.lo || port > p.hi {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.inUse[port]; !ok {
		return
	}
	delete(p.inUse, port)
	heap.Push(&p.free, port)
}

// Available reports how many ports remain free, for metrics.
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.free.Len()
}
