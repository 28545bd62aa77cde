// Package ports allocates the server/client port pairs handed to parties and
// clients for a session: a fixed window reused across sharing sessions, and
// a rotating window for query sessions.
package ports

import (
	"fmt"
	"sync"
)

// Pair is a (server, client) port window, each side occupying N consecutive
// ports starting at its base.
type Pair struct {
	ServerBase int
	ClientBase int
}

// Allocator hands out port windows within [start, end]. All state is
// process-local and guarded by a mutex; the original design's "single
// threaded event loop" constraint is realized here as a plain lock since Go
// has no such loop.
type Allocator struct {
	mu sync.Mutex

	start, end int
	n          int // ports per side

	nextQueryBase int
}

// New constructs an Allocator over [start, end] handing out windows of n
// ports per side. The sharing pair always occupies [start, start+n) and
// [start+n, start+2n); query windows rotate starting at start+2n.
func New(start, end, n int) (*Allocator, error) {
	if n <= 0 {
		return nil, fmt.Errorf("ports: window size must be positive, got %d", n)
	}
	if end-start < 4*n {
		return nil, fmt.Errorf("ports: range [%d,%d] too small for sharing plus at least one query window of %d", start, end, n)
	}
	return &Allocator{
		start:         start,
		end:           end,
		n:             n,
		nextQueryBase: start + 2*n,
	}, nil
}

// SharingPair returns the fixed port pair reused for every sharing session.
// Safe to call without holding any external lock; callers still serialize
// sharing sessions via the coordinator's sharing mutex so that the reused
// ports are never shared by two concurrent sessions.
func (a *Allocator) SharingPair() Pair {
	return Pair{ServerBase: a.start, ClientBase: a.start + a.n}
}

// NextQueryPair advances the rotating query cursor and returns the next
// window, wrapping back to start+2n when the next window would exceed end.
func (a *Allocator) NextQueryPair() Pair {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.nextQueryBase+2*a.n > a.end {
		a.nextQueryBase = a.start + 2*a.n
	}
	pair := Pair{ServerBase: a.nextQueryBase, ClientBase: a.nextQueryBase + a.n}
	a.nextQueryBase += 2 * a.n
	return pair
}
