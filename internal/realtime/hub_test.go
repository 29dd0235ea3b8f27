package realtime

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func receive(t *testing.T, ch <-chan Change) (Change, bool) {
	t.Helper()
	select {
	case c, ok := <-ch:
		return c, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change")
		return Change{}, false
	}
}

func TestFilterMatches(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		change Change
		want   bool
	}{
		{"empty filter", Filter{}, Change{Entity: EntityTasks, GroupID: "g"}, true},
		{"entity match", Filter{Entity: EntityTasks}, Change{Entity: EntityTasks}, true},
		{"entity mismatch", Filter{Entity: EntityTasks}, Change{Entity: EntityInvitations}, false},
		{"group mismatch", Filter{Entity: EntityTasks, GroupID: "g"}, Change{Entity: EntityTasks, GroupID: "h"}, false},
		{"group match", Filter{GroupID: "g"}, Change{Entity: EntityMembers, GroupID: "g"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(tt.change); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMemoryHubDelivers(t *testing.T) {
	hub := NewMemoryHub()
	defer hub.Close()

	tasks, cancelTasks := hub.Subscribe(Filter{Entity: EntityTasks, GroupID: "g"})
	defer cancelTasks()
	all, cancelAll := hub.Subscribe(Filter{})
	defer cancelAll()

	ctx := context.Background()
	if err := hub.Publish(ctx, Change{Entity: EntityInvitations, GroupID: "g"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := hub.Publish(ctx, Change{Entity: EntityTasks, GroupID: "g"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	c, _ := receive(t, tasks)
	if c.Entity != EntityTasks || c.At.IsZero() {
		t.Errorf("task subscriber got %+v", c)
	}
	if c, _ := receive(t, all); c.Entity != EntityInvitations {
		t.Errorf("first change for catch-all = %+v, want invitations", c)
	}
	if c, _ := receive(t, all); c.Entity != EntityTasks {
		t.Errorf("second change for catch-all = %+v, want tasks", c)
	}
}

func TestMemoryHubCancelClosesChannel(t *testing.T) {
	hub := NewMemoryHub()
	ch, cancel := hub.Subscribe(Filter{})
	cancel()
	cancel()

	if _, ok := receive(t, ch); ok {
		t.Error("channel still open after cancel")
	}
	if err := hub.Publish(context.Background(), Change{Entity: EntityTasks}); err != nil {
		t.Errorf("Publish() after cancel error = %v", err)
	}
}

func TestMemoryHubFullBufferDoesNotBlock(t *testing.T) {
	hub := NewMemoryHub()
	defer hub.Close()
	_, cancel := hub.Subscribe(Filter{})
	defer cancel()

	done := make(chan struct{})
	go func() {
		for range subscriberBuffer * 3 {
			hub.Publish(context.Background(), Change{Entity: EntityTasks})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestMemoryHubClose(t *testing.T) {
	hub := NewMemoryHub()
	ch, cancel := hub.Subscribe(Filter{})
	hub.Close()
	cancel()

	if _, ok := receive(t, ch); ok {
		t.Error("channel still open after Close")
	}
	late, _ := hub.Subscribe(Filter{})
	if _, ok := receive(t, late); ok {
		t.Error("subscription after Close is open")
	}
}

func TestMemoryHubOverflowQueuesResync(t *testing.T) {
	hub := NewMemoryHub()
	defer hub.Close()
	ch, cancel := hub.Subscribe(Filter{Entity: EntityTasks})
	defer cancel()

	ctx := context.Background()
	for i := range subscriberBuffer + 5 {
		hub.Publish(ctx, Change{Entity: EntityTasks, GroupID: fmt.Sprintf("g%d", i)})
	}

	for i := range subscriberBuffer {
		c, _ := receive(t, ch)
		if want := fmt.Sprintf("g%d", i); c.GroupID != want {
			t.Fatalf("change %d = %+v, want group %s", i, c, want)
		}
	}
	if c, _ := receive(t, ch); c.Entity != EntityResync {
		t.Fatalf("after overflow got %+v, want resync", c)
	}

	// Once drained, regular delivery resumes.
	hub.Publish(ctx, Change{Entity: EntityTasks, GroupID: "after"})
	if c, _ := receive(t, ch); c.GroupID != "after" {
		t.Errorf("got %+v, want group after", c)
	}
}
