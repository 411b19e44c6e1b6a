package retry

import (
	"container/heap"
	"time"
)

/* queue is an index-based binary heap keyed by the tuple
 * (priority descending, next_attempt ascending).
 * Not safe for concurrent use; the Scheduler serializes access.
 */
type queue struct {
	items []*Item
}

func newQueue() *queue {
	q := &queue{}
	heap.Init(q)
	return q
}

func (q *queue) Len() int { return len(q.items) }

func (q *queue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.NextAttempt.Before(b.NextAttempt)
}

func (q *queue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

func (q *queue) Push(x any) {
	item := x.(*Item)
	item.index = len(q.items)
	q.items = append(q.items, item)
}

func (q *queue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	q.items = old[:n-1]
	return item
}

// push adds an item maintaining heap order
func (q *queue) push(item *Item) {
	heap.Push(q, item)
}

/* popReady removes and returns up to max items whose next_attempt is at or
 * before now, in (priority, readiness) order. Items that are not yet
 * eligible are skipped and re-queued, so a high-priority item waiting on
 * its delay does not block ready lower-priority ones.
 */
func (q *queue) popReady(now time.Time, max int) []*Item {
	var ready, deferred []*Item
	for q.Len() > 0 && (max <= 0 || len(ready) < max) {
		item := heap.Pop(q).(*Item)
		if item.NextAttempt.After(now) {
			deferred = append(deferred, item)
			continue
		}
		ready = append(ready, item)
	}
	for _, item := range deferred {
		heap.Push(q, item)
	}
	return ready
}
