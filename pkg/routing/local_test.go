package routing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"concordlabs/concord/pkg/message"
	"concordlabs/concord/pkg/registry"
)

func newTestRouter(t *testing.T, capacity int, agents ...*registry.AgentRecord) *LocalRouter {
	t.Helper()
	reg := registry.NewMemoryRegistry()
	for _, rec := range agents {
		if err := reg.Register(context.Background(), rec); err != nil {
			t.Fatal(err)
		}
	}
	r := NewLocalRouter(reg, capacity, nil)
	for _, rec := range agents {
		r.Open(rec.AgentID)
	}
	return r
}

func agent(id, tenant string) *registry.AgentRecord {
	return &registry.AgentRecord{AgentID: id, TenantID: tenant}
}

func TestRouteSingleTarget(t *testing.T) {
	r := newTestRouter(t, 4, agent("agent-a", "acme"), agent("agent-b", "acme"))

	m := message.New("agent-a", "agent-b", message.TypeQuery)
	m.TenantID = "acme"

	d, err := r.Route(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}
	if d.Broadcast || len(d.Targets) != 1 || d.Targets[0] != "agent-b" {
		t.Fatalf("delivery = %+v", d)
	}
}

func TestRoutePinOverridesToAgent(t *testing.T) {
	r := newTestRouter(t, 4, agent("agent-b", ""), agent("agent-c", ""))

	m := message.New("agent-a", "agent-b", message.TypeQuery)
	m.Routing.Target = "agent-c"

	targets, err := r.Targets(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 1 || targets[0] != "agent-c" {
		t.Fatalf("targets = %v, want [agent-c]", targets)
	}
}

func TestRouteErrors(t *testing.T) {
	r := newTestRouter(t, 4, agent("agent-b", "acme"))

	cases := []struct {
		name string
		mut  func(*message.Message)
	}{
		{"unknown target", func(m *message.Message) { m.ToAgent = "ghost" }},
		{"no target at all", func(m *message.Message) { m.ToAgent = "" }},
		{"cross-tenant target", func(m *message.Message) { m.TenantID = "rival" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := message.New("agent-a", "agent-b", message.TypeQuery)
			tc.mut(m)

			_, err := r.Route(context.Background(), m)
			if !errors.Is(err, ErrNoRoute) {
				t.Fatalf("err = %v, want ErrNoRoute", err)
			}
			if message.KindOf(err) != message.KindNoRoute {
				t.Fatalf("kind = %s, want NO_ROUTE", message.KindOf(err))
			}
		})
	}
}

func TestBroadcastExcludesSenderAndOtherTenants(t *testing.T) {
	r := newTestRouter(t, 4,
		agent("agent-a", "acme"),
		agent("agent-b", "acme"),
		agent("agent-c", "acme"),
		agent("agent-x", "rival"),
	)

	m := message.New("agent-a", "", message.TypeEvent)
	m.TenantID = "acme"
	m.Routing.Key = message.BroadcastKey

	d, err := r.Route(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Broadcast {
		t.Fatal("broadcast not recognized")
	}

	got := map[string]bool{}
	for _, target := range d.Targets {
		got[target] = true
	}
	if len(got) != 2 || !got["agent-b"] || !got["agent-c"] {
		t.Fatalf("targets = %v, want agent-b and agent-c", d.Targets)
	}
}

func TestDeliverAndReceive(t *testing.T) {
	r := newTestRouter(t, 4, agent("agent-b", ""))

	m := message.New("agent-a", "agent-b", message.TypeQuery)
	if err := r.Deliver(context.Background(), m); err != nil {
		t.Fatal(err)
	}

	got, err := r.Receive(context.Background(), "agent-b", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != m.ID {
		t.Fatalf("received %s, want %s", got.ID, m.ID)
	}
}

func TestDeliverBroadcastClonesPerTarget(t *testing.T) {
	r := newTestRouter(t, 4, agent("agent-a", ""), agent("agent-b", ""), agent("agent-c", ""))

	m := message.New("agent-a", "", message.TypeEvent)
	m.Routing.Key = message.BroadcastKey
	if err := r.Deliver(context.Background(), m); err != nil {
		t.Fatal(err)
	}

	for _, target := range []string{"agent-b", "agent-c"} {
		got, err := r.Receive(context.Background(), target, time.Second)
		if err != nil {
			t.Fatalf("%s: %v", target, err)
		}
		if got == m {
			t.Fatalf("%s received the original, want a clone", target)
		}
		if got.ToAgent != target {
			t.Fatalf("clone addressed to %q, want %q", got.ToAgent, target)
		}
	}
}

func TestFullInboxRejectsCommand(t *testing.T) {
	r := newTestRouter(t, 1, agent("agent-b", ""))

	first := message.New("agent-a", "agent-b", message.TypeCommand)
	if err := r.Deliver(context.Background(), first); err != nil {
		t.Fatal(err)
	}

	second := message.New("agent-a", "agent-b", message.TypeCommand)
	err := r.Deliver(context.Background(), second)
	if !errors.Is(err, ErrInboxFull) {
		t.Fatalf("err = %v, want ErrInboxFull", err)
	}
	if message.KindOf(err) != message.KindQueueFull {
		t.Fatalf("kind = %s, want QUEUE_FULL", message.KindOf(err))
	}
}

func TestFullInboxDropsOldestEvent(t *testing.T) {
	r := newTestRouter(t, 2, agent("agent-b", ""))

	var ids []string
	for i := 0; i < 3; i++ {
		m := message.New("agent-a", "agent-b", message.TypeEvent)
		m.Content = fmt.Sprintf("event %d", i)
		ids = append(ids, m.ID)
		if err := r.Deliver(context.Background(), m); err != nil {
			t.Fatalf("event %d: %v", i, err)
		}
	}

	// The oldest event was shed; the two newest remain in order.
	for _, want := range ids[1:] {
		got, err := r.Receive(context.Background(), "agent-b", time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if got.ID != want {
			t.Fatalf("received %s, want %s", got.ID, want)
		}
	}
}

func TestReceiveTimeout(t *testing.T) {
	r := newTestRouter(t, 4, agent("agent-b", ""))

	if _, err := r.Receive(context.Background(), "agent-b", 20*time.Millisecond); !errors.Is(err, ErrReceiveTimeout) {
		t.Fatalf("err = %v, want ErrReceiveTimeout", err)
	}
}

func TestReceiveClosedInbox(t *testing.T) {
	r := newTestRouter(t, 4, agent("agent-b", ""))
	r.Close("agent-b")

	if _, err := r.Receive(context.Background(), "agent-b", time.Second); !errors.Is(err, ErrInboxClosed) {
		t.Fatalf("err = %v, want ErrInboxClosed", err)
	}
}

func TestReceiveHonorsContext(t *testing.T) {
	r := newTestRouter(t, 4, agent("agent-b", ""))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if _, err := r.Receive(ctx, "agent-b", 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
