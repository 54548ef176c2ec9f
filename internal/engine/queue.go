package engine

// notification is one queued delivery: the snapshot produced by a mutation
// and a description of the change.
type notification struct {
	state  *AppState
	change Change
}

// notifyQueue is a FIFO of pending notifications.
//
// Not thread-safe on its own: the Engine guards it with notifyMu.
type notifyQueue struct {
	items []notification
}

func newNotifyQueue() *notifyQueue {
	return &notifyQueue{items: make([]notification, 0, 8)}
}

func (q *notifyQueue) push(n notification) {
	q.items = append(q.items, n)
}

// pop removes and returns the front notification.
func (q *notifyQueue) pop() (notification, bool) {
	if len(q.items) == 0 {
		return notification{}, false
	}
	n := q.items[0]

	// Nil out the slot so the delivered snapshot can be collected while
	// the backing array is still in use.
	q.items[0] = notification{}

	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return n, true
}

func (q *notifyQueue) len() int {
	return len(q.items)
}
