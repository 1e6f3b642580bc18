package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/archos-hq/archos/pkg/feed"
)

const (
	// wsSendBuffer is the per-client event queue. A client that cannot drain
	// this many events is dropped rather than allowed to stall the feed.
	wsSendBuffer = 64

	// wsWriteTimeout bounds a single frame write.
	wsWriteTimeout = 5 * time.Second

	// wsPingInterval keeps idle connections alive through proxies.
	wsPingInterval = 30 * time.Second
)

// handleWS streams change-feed events to a browser. The client names the
// tables it wants in ?tables= (comma-separated); with no parameter it gets
// every table.
func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	tables := g.hub.Names()
	if param := r.URL.Query().Get("tables"); param != "" {
		tables = tables[:0:0]
		for _, name := range strings.Split(param, ",") {
			name = strings.TrimSpace(name)
			if _, ok := g.hub.Resource(name); !ok {
				writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown resource " + name})
				return
			}
			tables = append(tables, name)
		}
	}

	// Subscribe before the upgrade completes so events published during the
	// handshake land in the subscription buffers instead of being missed.
	subs := make([]*feed.Subscription, 0, len(tables))
	defer func() {
		for _, sub := range subs {
			sub.Close()
		}
	}()
	for _, table := range tables {
		sub, err := g.feed.Subscribe(table)
		if err != nil {
			g.log.Warn("websocket subscribe failed", "table", table, "err", err)
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "subscribe failed"})
			return
		}
		subs = append(subs, sub)
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		g.log.Debug("websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	g.metrics.WSClients.Add(r.Context(), 1)
	defer g.metrics.WSClients.Add(context.Background(), -1)

	// The client never sends application data; CloseRead surfaces closes and
	// answers pings while cancelling ctx on disconnect.
	ctx, cancel := context.WithCancel(conn.CloseRead(r.Context()))
	defer cancel()

	out := make(chan feed.Event, wsSendBuffer)
	for _, sub := range subs {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-sub.Events():
					if !ok {
						return
					}
					select {
					case out <- ev:
					default:
						// Buffer full: the client is too slow to keep the
						// feed coherent, so disconnect it. It can reconnect
						// and refetch.
						cancel()
						return
					}
				}
			}
		}()
	}

	pings := time.NewTicker(wsPingInterval)
	defer pings.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "feed closed")
			return
		case <-pings.C:
			if err := g.ping(ctx, conn); err != nil {
				return
			}
		case ev := <-out:
			if err := g.write(ctx, conn, ev); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) write(ctx context.Context, conn *websocket.Conn, ev feed.Event) error {
	wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(wctx, conn, ev)
}

func (g *Gateway) ping(ctx context.Context, conn *websocket.Conn) error {
	pctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Ping(pctx)
}
