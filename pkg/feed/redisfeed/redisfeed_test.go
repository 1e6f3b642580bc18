package redisfeed

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/archos-hq/archos/pkg/feed"
)

func newTestFeed(t *testing.T) *Feed {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client)
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	f := newTestFeed(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)
	defer f.Close()

	sub, err := f.Subscribe("tickets")
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	// PSubscribe setup races with the first publish; retry until the
	// subscription is live.
	row := json.RawMessage(`{"id":"t1","title":"Ship v1"}`)
	want := feed.Event{Table: "tickets", Op: feed.OpInsert, ID: "t1", Row: row}

	deadline := time.After(2 * time.Second)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case ev := <-sub.Events():
			if ev.Table != want.Table || ev.Op != want.Op || ev.ID != want.ID {
				t.Fatalf("event = %+v, want %+v", ev, want)
			}
			if string(ev.Row) != string(row) {
				t.Fatalf("post-image = %s, want %s", ev.Row, row)
			}
			return
		case <-tick.C:
			if err := f.Publish(context.Background(), want); err != nil {
				t.Fatal(err)
			}
		case <-deadline:
			t.Fatal("no event received")
		}
	}
}

func TestCrossTableIsolation(t *testing.T) {
	f := newTestFeed(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)
	defer f.Close()

	tickets, err := f.Subscribe("tickets")
	if err != nil {
		t.Fatal(err)
	}
	defer tickets.Close()
	clients, err := f.Subscribe("clients")
	if err != nil {
		t.Fatal(err)
	}
	defer clients.Close()

	deadline := time.After(2 * time.Second)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case ev := <-clients.Events():
			if ev.Table != "clients" {
				t.Fatalf("clients subscriber received %+v", ev)
			}
			select {
			case ev := <-tickets.Events():
				t.Fatalf("tickets subscriber received cross-table event %+v", ev)
			default:
			}
			return
		case <-tick.C:
			if err := f.Publish(context.Background(), feed.Event{Table: "clients", Op: feed.OpUpdate, ID: "c1"}); err != nil {
				t.Fatal(err)
			}
		case <-deadline:
			t.Fatal("no event received")
		}
	}
}
