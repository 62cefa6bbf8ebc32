package watchlist

import (
	"context"
	"sync"
)

type taskKey struct {
	watchlist string
	symbol    string
}

type task struct {
	id     uint64
	cancel context.CancelFunc
}

// taskSet tracks in-flight price refreshes, at most one per
// (watchlist, symbol). Starting a refresh for a busy key cancels the older
// one, and only the newest may report its result as current.
type taskSet struct {
	mu     sync.Mutex
	next   uint64
	tasks  map[taskKey]task
	closed bool
}

func newTaskSet() *taskSet {
	return &taskSet{tasks: make(map[taskKey]task)}
}

func (t *taskSet) start(parent context.Context, key taskKey) (context.Context, uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, 0, false
	}
	if prev, ok := t.tasks[key]; ok {
		prev.cancel()
	}

	ctx, cancel := context.WithCancel(parent)
	t.next++
	t.tasks[key] = task{id: t.next, cancel: cancel}
	return ctx, t.next, true
}

// finish releases the task and reports whether it was still the current one.
func (t *taskSet) finish(key taskKey, id uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.tasks[key]
	if !ok || cur.id != id {
		return false
	}
	cur.cancel()
	delete(t.tasks, key)
	return !t.closed
}

// cancel stops the task for key, if any.
func (t *taskSet) cancel(key taskKey) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cur, ok := t.tasks[key]; ok {
		cur.cancel()
		delete(t.tasks, key)
	}
}

// cancelWatchlist stops every task of the named watchlist.
func (t *taskSet) cancelWatchlist(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, cur := range t.tasks {
		if key.watchlist == name {
			cur.cancel()
			delete(t.tasks, key)
		}
	}
}

// close cancels everything, refuses new tasks and returns how many were
// still running.
func (t *taskSet) close() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	n := len(t.tasks)
	for key, cur := range t.tasks {
		cur.cancel()
		delete(t.tasks, key)
	}
	return n
}

func (t *taskSet) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
