package health

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeState struct {
	name   string
	loaded bool
	err    error
}

func (f fakeState) Name() string     { return f.name }
func (f fakeState) Loaded() bool     { return f.loaded }
func (f fakeState) LastError() error { return f.err }

func TestDatabaseChecker(t *testing.T) {
	c := Database(fakePinger{})
	if c.Name != "database" {
		t.Errorf("name = %q", c.Name)
	}
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("healthy pool: %v", err)
	}

	c = Database(fakePinger{err: errors.New("connection refused")})
	if err := c.Check(context.Background()); err == nil {
		t.Error("failing pool reported healthy")
	}
}

type fakeFeedState struct{ connected bool }

func (f fakeFeedState) Connected() bool { return f.connected }

func TestFeedChecker(t *testing.T) {
	c := Feed(fakeFeedState{connected: true})
	if c.Name != "feed" {
		t.Errorf("name = %q", c.Name)
	}
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("connected feed: %v", err)
	}
	if err := Feed(fakeFeedState{}).Check(context.Background()); err == nil {
		t.Error("disconnected feed reported healthy")
	}
}

func TestResourcesChecker(t *testing.T) {
	tests := []struct {
		name    string
		states  []LoadState
		wantErr string
	}{
		{
			name: "all loaded",
			states: []LoadState{
				fakeState{name: "tickets", loaded: true},
				fakeState{name: "clients", loaded: true},
			},
		},
		{
			name:   "no resources",
			states: nil,
		},
		{
			name: "load pending",
			states: []LoadState{
				fakeState{name: "tickets", loaded: true},
				fakeState{name: "clients"},
			},
			wantErr: "clients: initial load pending",
		},
		{
			name: "load error wins over pending",
			states: []LoadState{
				fakeState{name: "tickets", err: errors.New("db down")},
			},
			wantErr: "tickets: db down",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := Resources(func() []LoadState { return tc.states })
			err := c.Check(context.Background())
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}
