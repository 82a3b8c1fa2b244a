package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"concordlabs/concord/pkg/message"
)

func queuedMessage(conversation string, p message.Priority) *message.Message {
	m := message.New("a", "b", message.TypeEvent)
	m.ConversationID = conversation
	m.Priority = p
	return m
}

func TestQueuePriorityOrder(t *testing.T) {
	q := newQueue(8, nil)
	ctx := context.Background()

	low := queuedMessage("", message.PriorityLow)
	crit := queuedMessage("", message.PriorityCritical)
	med := queuedMessage("", message.PriorityMedium)
	for _, m := range []*message.Message{low, crit, med} {
		if err := q.push(ctx, m, time.Second, nil); err != nil {
			t.Fatalf("push: %v", err)
		}
	}

	want := []*message.Message{crit, med, low}
	for i, expected := range want {
		it, l, err := q.pop(ctx)
		if err != nil {
			t.Fatalf("pop %d: %v", i, err)
		}
		if it.msg != expected {
			t.Fatalf("pop %d = %s priority %s, want %s", i, it.msg.ID, it.msg.Priority, expected.Priority)
		}
		l.release()
	}
}

func TestQueueConversationFIFO(t *testing.T) {
	q := newQueue(8, nil)
	ctx := context.Background()

	// Within a conversation, admission order beats priority.
	first := queuedMessage("conv-1", message.PriorityLow)
	second := queuedMessage("conv-1", message.PriorityCritical)
	if err := q.push(ctx, first, time.Second, nil); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := q.push(ctx, second, time.Second, nil); err != nil {
		t.Fatalf("push: %v", err)
	}

	it, l, err := q.pop(ctx)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if it.msg != first {
		t.Fatal("conversation head must drain first regardless of priority")
	}

	// The conversation is held: its next message is not runnable yet.
	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, _, err := q.pop(waitCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("pop on held conversation = %v, want deadline exceeded", err)
	}

	l.release()
	it, l2, err := q.pop(ctx)
	if err != nil {
		t.Fatalf("pop after release: %v", err)
	}
	if it.msg != second {
		t.Fatal("expected the second conversation message after release")
	}
	l2.release()

	if q.depth() != 0 {
		t.Fatalf("depth = %d, want 0", q.depth())
	}
}

func TestQueueParallelWithoutConversation(t *testing.T) {
	q := newQueue(8, nil)
	ctx := context.Background()

	if err := q.push(ctx, queuedMessage("", message.PriorityMedium), time.Second, nil); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := q.push(ctx, queuedMessage("", message.PriorityMedium), time.Second, nil); err != nil {
		t.Fatalf("push: %v", err)
	}

	// Both are independent scheduling units: two pops succeed without
	// releasing either lease.
	_, l1, err := q.pop(ctx)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	_, l2, err := q.pop(ctx)
	if err != nil {
		t.Fatalf("second pop: %v", err)
	}
	l1.release()
	l2.release()
}

func TestQueueFullTimesOut(t *testing.T) {
	q := newQueue(1, nil)
	ctx := context.Background()

	if err := q.push(ctx, queuedMessage("", message.PriorityMedium), time.Second, nil); err != nil {
		t.Fatalf("push: %v", err)
	}

	err := q.push(ctx, queuedMessage("", message.PriorityMedium), 50*time.Millisecond, nil)
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("push = %v, want ErrQueueFull", err)
	}
	var full *QueueFullError
	if !errors.As(err, &full) {
		t.Fatalf("push error type = %T", err)
	}
	if kind := message.KindOf(err); kind != message.KindQueueFull {
		t.Fatalf("kind = %s, want QUEUE_FULL", kind)
	}
}

func TestQueueReleaseFreesSlot(t *testing.T) {
	q := newQueue(1, nil)
	ctx := context.Background()

	if err := q.push(ctx, queuedMessage("", message.PriorityMedium), time.Second, nil); err != nil {
		t.Fatalf("push: %v", err)
	}
	_, l, err := q.pop(ctx)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	l.release()

	if err := q.push(ctx, queuedMessage("", message.PriorityMedium), 100*time.Millisecond, nil); err != nil {
		t.Fatalf("push after release: %v", err)
	}
}

func TestQueueClosedRejectsPush(t *testing.T) {
	q := newQueue(4, nil)
	q.close()

	err := q.push(context.Background(), queuedMessage("", message.PriorityMedium), time.Second, nil)
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("push = %v, want ErrStopped", err)
	}
	if q.depth() != 0 {
		t.Fatalf("depth = %d, want 0", q.depth())
	}
}
