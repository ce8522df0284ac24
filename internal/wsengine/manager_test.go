package wsengine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/perpx/unified/pkg/unified"
)

type routedMsg struct {
	Channel string `json:"channel"`
	Data    string `json:"data"`
}

func routeByChannelField(raw []byte) (string, bool) {
	var m routedMsg
	if err := json.Unmarshal(raw, &m); err != nil || m.Channel == "" {
		return "", false
	}
	return m.Channel, true
}

// subscribeEchoServer records every inbound frame (treated as a subscribe
// request) and, on a control message, pushes a canned routed message for
// a channel back down the same socket via pushCh.
func subscribeEchoServer(t *testing.T, pushCh <-chan routedMsg, received chan<- []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				received <- msg
			}
		}()

		for {
			select {
			case m, ok := <-pushCh:
				if !ok {
					return
				}
				b, _ := json.Marshal(m)
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}))
}

func TestManagerMultiSubscribeFanOut(t *testing.T) {
	t.Parallel()
	push := make(chan routedMsg, 4)
	received := make(chan []byte, 16)
	srv := subscribeEchoServer(t, push, received)
	defer srv.Close()

	m := NewManager(Config{URL: wsURL(srv), Venue: "test", Heartbeat: HeartbeatConfig{Disabled: true}}, routeByChannelField, 16)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer m.Disconnect()

	subCtx1, cancel1 := context.WithCancel(context.Background())
	defer cancel1()
	subCtx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()

	ch1, err := m.Watch(subCtx1, unified.Subscription{ChannelKey: "book:BTC", SubscribePayload: []byte(`{"op":"sub","channel":"book:BTC"}`)})
	if err != nil {
		t.Fatalf("Watch 1: %v", err)
	}
	ch2, err := m.Watch(subCtx2, unified.Subscription{ChannelKey: "book:BTC", SubscribePayload: []byte(`{"op":"sub","channel":"book:BTC"}`)})
	if err != nil {
		t.Fatalf("Watch 2: %v", err)
	}

	// wait for the subscribe payload to reach the server; only the first
	// Watch sends it, since the second finds the channel key already exists.
	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("server never saw the subscribe payload")
	}

	push <- routedMsg{Channel: "book:BTC", Data: "snapshot-1"}

	for i, ch := range []<-chan []byte{ch1, ch2} {
		select {
		case msg := <-ch:
			var got routedMsg
			if err := json.Unmarshal(msg, &got); err != nil {
				t.Fatalf("subscriber %d: unmarshal: %v", i, err)
			}
			if got.Data != "snapshot-1" {
				t.Errorf("subscriber %d: data = %q, want snapshot-1", i, got.Data)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d never received fan-out message", i)
		}
	}
}

func TestManagerRefcountUnsubscribesAtZero(t *testing.T) {
	t.Parallel()
	push := make(chan routedMsg, 4)
	received := make(chan []byte, 16)
	srv := subscribeEchoServer(t, push, received)
	defer srv.Close()

	m := NewManager(Config{URL: wsURL(srv), Venue: "test", Heartbeat: HeartbeatConfig{Disabled: true}}, routeByChannelField, 16)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer m.Disconnect()

	subCtx, cancelSub := context.WithCancel(context.Background())
	_, err := m.Watch(subCtx, unified.Subscription{
		ChannelKey:         "trades:ETH",
		SubscribePayload:   []byte(`{"op":"sub","channel":"trades:ETH"}`),
		UnsubscribePayload: []byte(`{"op":"unsub","channel":"trades:ETH"}`),
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	select {
	case <-received: // subscribe payload
	case <-time.After(time.Second):
		t.Fatal("server never saw subscribe payload")
	}

	cancelSub()

	select {
	case msg := <-received:
		var m map[string]string
		json.Unmarshal(msg, &m)
		if m["op"] != "unsub" {
			t.Errorf("expected unsubscribe payload, got %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("server never saw unsubscribe payload after refcount hit zero")
	}
}

func TestManagerDropsUnroutedMessages(t *testing.T) {
	t.Parallel()
	push := make(chan routedMsg, 4)
	received := make(chan []byte, 16)
	srv := subscribeEchoServer(t, push, received)
	defer srv.Close()

	m := NewManager(Config{URL: wsURL(srv), Venue: "test", Heartbeat: HeartbeatConfig{Disabled: true}}, routeByChannelField, 16)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer m.Disconnect()

	subCtx, cancelSub := context.WithCancel(context.Background())
	defer cancelSub()
	ch, err := m.Watch(subCtx, unified.Subscription{ChannelKey: "book:BTC", SubscribePayload: []byte(`{"op":"sub","channel":"book:BTC"}`)})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	push <- routedMsg{Channel: "book:SOL", Data: "not-for-us"}
	push <- routedMsg{Channel: "book:BTC", Data: "for-us"}

	select {
	case msg := <-ch:
		var got routedMsg
		json.Unmarshal(msg, &got)
		if got.Data != "for-us" {
			t.Errorf("expected the one routed message, got %q", got.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("never received the routed message")
	}

	select {
	case extra := <-ch:
		t.Errorf("received unexpected second message: %s", extra)
	case <-time.After(100 * time.Millisecond):
		// expected: the unrouted message was dropped
	}
}

// rawPushServer writes whatever raw bytes arrive on pushCh directly to the
// socket, unlike subscribeEchoServer which always marshals a routedMsg.
func rawPushServer(t *testing.T, pushCh <-chan []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for b := range pushCh {
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}
	}))
}

// TestManagerBroadcastsNonJSONFramesToAllSubscribers covers spec.md §4.3's
// raw-string fallback: a frame that doesn't even parse as JSON (a
// heartbeat or status line some venues send on an otherwise JSON feed)
// must still reach every live subscriber instead of being silently
// dropped like an unrecognized-but-valid JSON frame is.
func TestManagerBroadcastsNonJSONFramesToAllSubscribers(t *testing.T) {
	t.Parallel()
	push := make(chan []byte, 4)
	srv := rawPushServer(t, push)
	defer srv.Close()

	m := NewManager(Config{URL: wsURL(srv), Venue: "test", Heartbeat: HeartbeatConfig{Disabled: true}}, routeByChannelField, 16)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer m.Disconnect()

	subCtx1, cancel1 := context.WithCancel(context.Background())
	defer cancel1()
	subCtx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()

	ch1, err := m.Watch(subCtx1, unified.Subscription{ChannelKey: "book:BTC", SubscribePayload: []byte(`{"op":"sub","channel":"book:BTC"}`)})
	if err != nil {
		t.Fatalf("Watch 1: %v", err)
	}
	ch2, err := m.Watch(subCtx2, unified.Subscription{ChannelKey: "book:ETH", SubscribePayload: []byte(`{"op":"sub","channel":"book:ETH"}`)})
	if err != nil {
		t.Fatalf("Watch 2: %v", err)
	}

	push <- []byte("pong")

	for i, ch := range []<-chan []byte{ch1, ch2} {
		select {
		case msg := <-ch:
			if string(msg) != "pong" {
				t.Errorf("subscriber %d: got %q, want raw \"pong\"", i, msg)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d never received the broadcast non-JSON frame", i)
		}
	}
}
