package feed

import (
	"context"
	"testing"
	"time"
)

func TestBusRoutesEventsByTable(t *testing.T) {
	bus := NewBus()
	tickets, err := bus.Subscribe("tickets")
	if err != nil {
		t.Fatal(err)
	}
	defer tickets.Close()
	clients, err := bus.Subscribe("clients")
	if err != nil {
		t.Fatal(err)
	}
	defer clients.Close()

	if err := bus.Publish(context.Background(), Event{Table: "tickets", Op: OpInsert, ID: "1"}); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-tickets.Events():
		if ev.ID != "1" || ev.Op != OpInsert {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("tickets subscriber got no event")
	}

	select {
	case ev := <-clients.Events():
		t.Errorf("clients subscriber got cross-table event %+v", ev)
	default:
	}
}

func TestBusFanoutDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()
	a, _ := bus.Subscribe("tickets")
	defer a.Close()
	b, _ := bus.Subscribe("tickets")
	defer b.Close()

	if err := bus.Publish(context.Background(), Event{Table: "tickets", Op: OpDelete, ID: "x"}); err != nil {
		t.Fatal(err)
	}
	for name, sub := range map[string]*Subscription{"a": a, "b": b} {
		select {
		case <-sub.Events():
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s got no event", name)
		}
	}
}

func TestSubscriptionCloseIsIdempotentAndUnregisters(t *testing.T) {
	bus := NewBus()
	sub, _ := bus.Subscribe("tickets")

	sub.Close()
	sub.Close()

	if _, ok := <-sub.Events(); ok {
		t.Error("events channel not closed")
	}

	// Publishing after close must not panic or deliver.
	if err := bus.Publish(context.Background(), Event{Table: "tickets", Op: OpInsert, ID: "1"}); err != nil {
		t.Fatal(err)
	}
	if got := bus.fan.tables(); len(got) != 0 {
		t.Errorf("subscription still registered for tables %v", got)
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBus()
	sub, _ := bus.Subscribe("tickets")
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriptionBuffer*2; i++ {
			_ = bus.Publish(context.Background(), Event{Table: "tickets", Op: OpInsert, ID: "x"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
	if bus.fan.dropped == 0 {
		t.Error("expected drops for a full buffer")
	}
}

func TestBusCloseClosesSubscriptions(t *testing.T) {
	bus := NewBus()
	sub, _ := bus.Subscribe("tickets")
	bus.Close()

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("events channel not closed by Bus.Close")
	}
}

func TestOpValidity(t *testing.T) {
	for _, tc := range []struct {
		op    Op
		valid bool
	}{
		{OpInsert, true},
		{OpUpdate, true},
		{OpDelete, true},
		{Op("truncate"), false},
		{Op(""), false},
	} {
		if got := tc.op.IsValid(); got != tc.valid {
			t.Errorf("Op(%q).IsValid() = %v, want %v", tc.op, got, tc.valid)
		}
	}
}
