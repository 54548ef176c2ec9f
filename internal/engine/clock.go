package engine

import "sync/atomic"

// revisions hands out snapshot revisions: 0 for the loaded state, then
// 1, 2, ... for each published change. Callers hold Engine.mu when they
// advance it, so revisions are published in order.
type revisions struct {
	n atomic.Int64
}

func (r *revisions) next() int64    { return r.n.Add(1) }
func (r *revisions) current() int64 { return r.n.Load() }
