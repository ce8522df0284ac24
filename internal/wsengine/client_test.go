package wsengine

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// echoServer upgrades and echoes every text frame it receives back to the
// caller, closing when the connection errors.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.TextMessage {
				conn.WriteMessage(websocket.TextMessage, msg)
			}
		}
	}))
}

func TestClientConnectAndSendReceive(t *testing.T) {
	t.Parallel()
	srv := echoServer(t)
	defer srv.Close()

	received := make(chan []byte, 1)
	c := New(Config{
		URL:       wsURL(srv),
		Venue:     "test",
		Heartbeat: HeartbeatConfig{Disabled: true},
		OnMessage: func(raw []byte) { received <- raw },
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect()

	if c.State() != Connected {
		t.Fatalf("state = %v, want Connected", c.State())
	}

	if err := c.Send([]byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case msg := <-received:
		if string(msg) != "hello" {
			t.Errorf("received %q, want hello", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echo")
	}
}

func TestClientHeartbeatPongDisarmsTimeout(t *testing.T) {
	t.Parallel()
	// gorilla/websocket's server side auto-responds to pings with pongs
	// unless a custom PingHandler is installed, so a plain echo server
	// exercises the happy path: a ping-pong cycle must not trigger a
	// reconnect.
	srv := echoServer(t)
	defer srv.Close()

	var stateChanges []State
	c := New(Config{
		URL:       wsURL(srv),
		Venue:     "test",
		Heartbeat: HeartbeatConfig{Interval: 30 * time.Millisecond, Timeout: 200 * time.Millisecond},
		OnMessage: func([]byte) {},
		OnStateChange: func(s State) {
			stateChanges = append(stateChanges, s)
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Disconnect()

	time.Sleep(300 * time.Millisecond)

	for _, s := range stateChanges {
		if s == Reconnecting {
			t.Error("heartbeat pong should have disarmed the timeout, but client reconnected")
		}
	}
}

func TestClientDisconnectStopsReconnect(t *testing.T) {
	t.Parallel()
	srv := echoServer(t)
	defer srv.Close()

	c := New(Config{
		URL:       wsURL(srv),
		Venue:     "test",
		Heartbeat: HeartbeatConfig{Disabled: true},
		OnMessage: func([]byte) {},
	})

	ctx := context.Background()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := c.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	if c.State() != Disconnected {
		t.Fatalf("state = %v, want Disconnected", c.State())
	}
}

func TestReconnectDelayGrowsAndCaps(t *testing.T) {
	t.Parallel()
	cfg := ReconnectConfig{InitialDelay: 10 * time.Millisecond, MaxDelay: 40 * time.Millisecond, Multiplier: 2, Jitter: 0}
	rng := rand.New(rand.NewSource(1))

	d1 := reconnectDelay(cfg, 1, rng)
	d2 := reconnectDelay(cfg, 2, rng)
	d4 := reconnectDelay(cfg, 4, rng)

	if d1 != 10*time.Millisecond {
		t.Errorf("delay(1) = %v, want 10ms", d1)
	}
	if d2 != 20*time.Millisecond {
		t.Errorf("delay(2) = %v, want 20ms", d2)
	}
	if d4 != 40*time.Millisecond {
		t.Errorf("delay(4) should cap at 40ms, got %v", d4)
	}
}
