package repository

import "sync"

// keyedQueue serializes work per key. Calls for the same key run strictly
// in arrival order; calls for different keys run independently. This is
// what prevents two overlapping updates for one entity id from interleaving
// their remote confirmations.
type keyedQueue struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
}

func newKeyedQueue() *keyedQueue {
	return &keyedQueue{tails: make(map[string]chan struct{})}
}

// run executes fn after every previously enqueued fn for the same key has
// finished. It blocks the calling goroutine until fn returns.
func (q *keyedQueue) run(key string, fn func()) {
	q.mu.Lock()
	prev := q.tails[key]
	turn := make(chan struct{})
	q.tails[key] = turn
	q.mu.Unlock()

	if prev != nil {
		<-prev
	}

	defer func() {
		close(turn)
		q.mu.Lock()
		if q.tails[key] == turn {
			delete(q.tails, key)
		}
		q.mu.Unlock()
	}()

	fn()
}
