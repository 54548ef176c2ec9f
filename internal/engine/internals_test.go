package engine

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevisions_Monotonic(t *testing.T) {
	var r revisions
	assert.Equal(t, int64(0), r.current())
	assert.Equal(t, int64(1), r.next())
	assert.Equal(t, int64(2), r.next())
	assert.Equal(t, int64(2), r.current())
}

func TestRevisions_Concurrent(t *testing.T) {
	var r revisions
	const n = 100
	seen := make(chan int64, n)

	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- r.next()
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[int64]bool, n)
	for v := range seen {
		unique[v] = true
	}
	assert.Len(t, unique, n)
	assert.Equal(t, int64(n), r.current())
}

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()
	assert.NotEqual(t, a, b)

	u, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), u.Version())
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("dev", "e1")
	assert.Equal(t, "dev", g.Generate())
	assert.Equal(t, "e1", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestNotifyQueue_FIFO(t *testing.T) {
	q := newNotifyQueue()
	_, ok := q.pop()
	assert.False(t, ok)

	q.push(notification{change: Change{Op: "a", Revision: 1}})
	q.push(notification{change: Change{Op: "b", Revision: 2}})
	assert.Equal(t, 2, q.len())

	n, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, "a", n.change.Op)

	q.push(notification{change: Change{Op: "c", Revision: 3}})
	n, _ = q.pop()
	assert.Equal(t, "b", n.change.Op)
	n, _ = q.pop()
	assert.Equal(t, "c", n.change.Op)
	assert.Zero(t, q.len())
}
