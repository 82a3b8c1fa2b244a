package bus

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"concordlabs/concord/pkg/message"
	"concordlabs/concord/pkg/processing"
	"concordlabs/concord/pkg/telemetry/metrics"
)

// item is one admitted message awaiting a worker. done, when non-nil,
// receives the processed outcome; it must be buffered so a worker
// never blocks on a departed sender.
type item struct {
	msg      *message.Message
	enqueued time.Time
	seq      uint64
	done     chan *processing.Outcome
}

// conversation is the scheduling unit. Messages sharing a conversation
// id drain FIFO and never run concurrently; a conversation is held by
// at most one worker at a time. Messages without a conversation id get
// a unit of their own and run in parallel.
type conversation struct {
	key   string
	items []*item
	held  bool
	index int
}

func (c *conversation) head() *item { return c.items[0] }

// convHeap orders runnable conversations by head-message priority,
// admission order breaking ties.
type convHeap []*conversation

func (h convHeap) Len() int { return len(h) }

func (h convHeap) Less(i, j int) bool {
	pi, pj := h[i].head().msg.Priority, h[j].head().msg.Priority
	if pi != pj {
		return pi > pj
	}
	return h[i].head().seq < h[j].head().seq
}

func (h convHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *convHeap) Push(x any) {
	c := x.(*conversation)
	c.index = len(*h)
	*h = append(*h, c)
}

func (h *convHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	c.index = -1
	*h = old[:n-1]
	return c
}

// queue is the bounded admission queue in front of the workers.
type queue struct {
	capacity int

	// slots holds one token per admitted message; acquiring blocks
	// when the queue is full.
	slots chan struct{}

	// ready carries one signal per runnable conversation.
	ready chan struct{}

	mu     sync.Mutex
	convs  map[string]*conversation
	pq     convHeap
	seq    uint64
	size   int
	byPrio map[message.Priority]int
	closed bool

	bm *metrics.BusMetrics
}

func newQueue(capacity int, bm *metrics.BusMetrics) *queue {
	return &queue{
		capacity: capacity,
		slots:    make(chan struct{}, capacity),
		ready:    make(chan struct{}, capacity),
		convs:    make(map[string]*conversation),
		byPrio:   make(map[message.Priority]int),
		bm:       bm,
	}
}

// schedulingKey keys the scheduling unit for a message.
func schedulingKey(m *message.Message) string {
	if m.ConversationID != "" {
		return "conv:" + m.ConversationID
	}
	return "msg:" + m.ID
}

// push admits the message, blocking up to timeout for a free slot.
func (q *queue) push(ctx context.Context, m *message.Message, timeout time.Duration, done chan *processing.Outcome) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case q.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return &QueueFullError{Capacity: q.capacity, Waited: timeout}
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.slots
		return ErrStopped
	}
	q.seq++
	it := &item{msg: m, enqueued: time.Now(), seq: q.seq, done: done}

	key := schedulingKey(m)
	c, ok := q.convs[key]
	if !ok {
		c = &conversation{key: key, index: -1}
		q.convs[key] = c
	}
	c.items = append(c.items, it)
	q.size++
	q.byPrio[m.Priority]++

	runnable := !c.held && c.index == -1
	if runnable {
		heap.Push(&q.pq, c)
	}
	q.bm.SetQueueDepth(q.size)
	q.mu.Unlock()

	if runnable {
		q.ready <- struct{}{}
	}
	return nil
}

// pop hands the head message of the highest-priority runnable
// conversation to a worker. The caller must release the lease when the
// message settles.
func (q *queue) pop(ctx context.Context) (*item, *lease, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-q.ready:
		}

		q.mu.Lock()
		if q.pq.Len() == 0 {
			q.mu.Unlock()
			continue
		}
		c := heap.Pop(&q.pq).(*conversation)
		c.held = true
		it := c.head()
		c.items = c.items[1:]
		q.size--
		q.byPrio[it.msg.Priority]--
		q.bm.SetQueueDepth(q.size)
		q.mu.Unlock()

		return it, &lease{q: q, c: c}, nil
	}
}

// lease marks a conversation held by a worker.
type lease struct {
	q *queue
	c *conversation
}

// release returns the message's capacity slot and requeues the
// conversation when it still has messages.
func (l *lease) release() {
	q := l.q

	q.mu.Lock()
	l.c.held = false
	runnable := len(l.c.items) > 0
	if runnable {
		heap.Push(&q.pq, l.c)
	} else {
		delete(q.convs, l.c.key)
	}
	q.mu.Unlock()

	<-q.slots
	if runnable {
		q.ready <- struct{}{}
	}
}

// depth reports admitted, not yet picked up messages.
func (q *queue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// perPriority snapshots queue depth per priority.
func (q *queue) perPriority() map[string]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	counts := make(map[string]int, len(q.byPrio))
	for p, n := range q.byPrio {
		if n > 0 {
			counts[p.String()] = n
		}
	}
	return counts
}

// close stops admission. Queued messages still drain.
func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}
