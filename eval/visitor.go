package eval

import (
	"container/heap"
	"context"
	"sync"
)

// workItem is one schedulable node evaluation: the key to evaluate and
// the priority governing its drain order. seq breaks priority ties in
// enqueue order so scheduling stays FIFO within a priority band.
type workItem struct {
	key      NodeKey
	priority int
	seq      uint64
}

// itemHeap orders work items highest-priority-first. Priority affects
// scheduling order only, never correctness.
type itemHeap []workItem

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x interface{}) {
	*h = append(*h, x.(workItem))
}

func (h *itemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[0 : n-1]
	return item
}

// NodeEntryVisitor is the bounded-concurrency executor driving node
// evaluations to a fixed point.
//
// Properties:
//   - (key, priority) enqueue with priority-ordered draining.
//   - Duplicate enqueues of a node are harmless: the task rejects
//     entries it cannot acquire, so a node is never evaluated twice
//     concurrently.
//   - A fatal task error aborts the visitor: queued work is dropped, the
//     task context is cancelled for prompt best-effort cancellation of
//     in-flight work, and no further enqueues are accepted.
//   - Wait blocks until quiescence and returns the first fatal error.
//
// The visitor is constructed lazily by the evaluation context on first
// use, so evaluations that need no computation never pay the pool
// startup cost.
type NodeEntryVisitor struct {
	run    func(ctx context.Context, key NodeKey, priority int) error
	ctx    context.Context
	cancel context.CancelFunc

	metrics *PrometheusMetrics

	mu       sync.Mutex
	cond     *sync.Cond
	queue    itemHeap
	seq      uint64
	pending  int // queued + running
	aborted  bool
	firstErr error
	stopped  bool
}

// newNodeEntryVisitor starts parallelism workers executing run. The
// given context is the parent of the task context; cancelling it aborts
// the visitor.
func newNodeEntryVisitor(ctx context.Context, parallelism int, metrics *PrometheusMetrics, run func(ctx context.Context, key NodeKey, priority int) error) *NodeEntryVisitor {
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}
	taskCtx, cancel := context.WithCancel(ctx)
	v := &NodeEntryVisitor{
		run:     run,
		ctx:     taskCtx,
		cancel:  cancel,
		metrics: metrics,
	}
	v.cond = sync.NewCond(&v.mu)
	heap.Init(&v.queue)
	for i := 0; i < parallelism; i++ {
		go v.worker()
	}
	return v
}

// EnqueueEvaluation submits a node for evaluation at the given priority.
// After an abort or Close the request is dropped.
func (v *NodeEntryVisitor) EnqueueEvaluation(key NodeKey, priority int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.aborted || v.stopped {
		return
	}
	v.seq++
	heap.Push(&v.queue, workItem{key: key, priority: priority, seq: v.seq})
	v.pending++
	v.metrics.UpdateQueueDepth(v.queue.Len())
	v.cond.Signal()
}

// Wait blocks until no work is queued or running, then returns the first
// fatal task error, if any.
func (v *NodeEntryVisitor) Wait() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for v.pending > 0 {
		v.cond.Wait()
	}
	return v.firstErr
}

// Close stops the workers. Queued work that has not started is dropped.
// Safe to call more than once.
func (v *NodeEntryVisitor) Close() {
	v.mu.Lock()
	if !v.stopped {
		v.stopped = true
		v.pending -= v.queue.Len()
		v.queue = nil
		v.cond.Broadcast()
	}
	v.mu.Unlock()
	v.cancel()
}

func (v *NodeEntryVisitor) worker() {
	for {
		v.mu.Lock()
		for v.queue.Len() == 0 && !v.stopped {
			v.cond.Wait()
		}
		if v.stopped && v.queue.Len() == 0 {
			v.mu.Unlock()
			return
		}
		item := heap.Pop(&v.queue).(workItem)
		v.metrics.UpdateQueueDepth(v.queue.Len())
		v.mu.Unlock()

		v.metrics.TaskStarted()
		err := v.run(v.ctx, item.key, item.priority)
		v.metrics.TaskFinished()

		v.mu.Lock()
		v.pending--
		if err != nil && !v.aborted {
			v.aborted = true
			v.firstErr = err
			// Drop queued work and cancel in-flight tasks; already
			// delivered signals stay delivered so bookkeeping holds for
			// post-abort diagnostics.
			v.pending -= v.queue.Len()
			v.queue = nil
			v.cancel()
		}
		if v.pending == 0 {
			v.cond.Broadcast()
		}
		v.mu.Unlock()
	}
}

// Aborted reports whether a fatal error stopped the visitor.
func (v *NodeEntryVisitor) Aborted() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.aborted
}
