package common

import (
	"container/heap"
	"sync"
	"time"
)

// DeferredTask is a function scheduled to run once its due time has passed.
type DeferredTask struct {
	Due  time.Time
	Name string
	Run  func()

	seq uint64
}

type taskHeap []*DeferredTask

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].Due.Equal(h[j].Due) {
		return h[i].seq < h[j].seq
	}
	return h[i].Due.Before(h[j].Due)
}
func (h taskHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x interface{}) { *h = append(*h, x.(*DeferredTask)) }
func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// DeferredQueue is a min-heap of tasks ordered by due time. A single
// scheduler polls it, so the number of timers does not grow with the number
// of pending tasks. Tasks with equal due times run in insertion order.
type DeferredQueue struct {
	l     sync.Mutex
	tasks taskHeap
	seq   uint64
}

// NewDeferredQueue creates an empty queue.
func NewDeferredQueue() *DeferredQueue {
	return &DeferredQueue{}
}

// Schedule enqueues fn to run at or after due.
func (q *DeferredQueue) Schedule(due time.Time, name string, fn func()) {
	q.l.Lock()
	defer q.l.Unlock()

	q.seq++
	heap.Push(&q.tasks, &DeferredTask{Due: due, Name: name, Run: fn, seq: q.seq})
}

// PopDue removes and returns, in due order, every task due at or before now.
// The tasks are returned rather than run so callers can execute them outside
// their own critical sections.
func (q *DeferredQueue) PopDue(now time.Time) []*DeferredTask {
	q.l.Lock()
	defer q.l.Unlock()

	res := []*DeferredTask{}
	for q.tasks.Len() > 0 && !q.tasks[0].Due.After(now) {
		res = append(res, heap.Pop(&q.tasks).(*DeferredTask))
	}
	return res
}

// Len returns the number of pending tasks.
func (q *DeferredQueue) Len() int {
	q.l.Lock()
	defer q.l.Unlock()

	return q.tasks.Len()
}
