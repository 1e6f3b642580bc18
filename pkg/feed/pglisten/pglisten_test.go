package pglisten

import (
	"testing"

	"github.com/archos-hq/archos/pkg/feed"
)

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    feed.Event
		wantErr bool
	}{
		{
			name:    "insert with post-image",
			payload: `{"table":"tickets","op":"insert","id":"t1","row":{"id":"t1","title":"x"}}`,
			want:    feed.Event{Table: "tickets", Op: feed.OpInsert, ID: "t1"},
		},
		{
			name:    "delete without post-image",
			payload: `{"table":"tickets","op":"delete","id":"t1"}`,
			want:    feed.Event{Table: "tickets", Op: feed.OpDelete, ID: "t1"},
		},
		{
			name:    "oversized row sent with null post-image",
			payload: `{"table":"knowledge_vault","op":"update","id":"k1","row":null}`,
			want:    feed.Event{Table: "knowledge_vault", Op: feed.OpUpdate, ID: "k1"},
		},
		{
			name:    "not json",
			payload: `nope`,
			wantErr: true,
		},
		{
			name:    "missing table",
			payload: `{"op":"insert","id":"t1"}`,
			wantErr: true,
		},
		{
			name:    "unknown op",
			payload: `{"table":"tickets","op":"truncate","id":"t1"}`,
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := DecodePayload([]byte(tc.payload))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("DecodePayload(%q) succeeded, want error", tc.payload)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodePayload: %v", err)
			}
			if ev.Table != tc.want.Table || ev.Op != tc.want.Op || ev.ID != tc.want.ID {
				t.Errorf("event = %+v, want %+v", ev, tc.want)
			}
		})
	}
}

func TestRowPostImagePreserved(t *testing.T) {
	ev, err := DecodePayload([]byte(`{"table":"tickets","op":"insert","id":"t1","row":{"id":"t1","title":"x"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(ev.Row) == 0 {
		t.Fatal("post-image dropped during decode")
	}
}
