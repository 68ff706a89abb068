package live

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/net/websocket"
)

func startHub(t *testing.T, auth Authenticator) (*Hub, string, func()) {
	t.Helper()
	hub := NewHub(auth)
	srv := httptest.NewServer(hub.Handler())
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return hub, wsURL, srv.Close
}

func dialHub(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, err := websocket.Dial(wsURL, "", "http://localhost/")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func recvType(t *testing.T, conn *websocket.Conn, want MessageType) Message {
	t.Helper()
	var msg Message
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := websocket.JSON.Receive(conn, &msg); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if msg.Type != want {
		t.Fatalf("frame type = %q, want %q", msg.Type, want)
	}
	return msg
}

func TestHub_SubscribeAndBroadcast(t *testing.T) {
	hub, wsURL, stop := startHub(t, nil)
	defer stop()

	conn := dialHub(t, wsURL)
	defer conn.Close()
	recvType(t, conn, MsgConnection)

	websocket.JSON.Send(conn, Message{Type: MsgSubscribe, Channel: "campaign:c1"})
	sub := recvType(t, conn, MsgSubscribed)
	if sub.Channel != "campaign:c1" {
		t.Errorf("subscribed channel = %q", sub.Channel)
	}

	// A second session without the subscription must not receive the
	// broadcast.
	other := dialHub(t, wsURL)
	defer other.Close()
	recvType(t, other, MsgConnection)

	hub.Broadcast("campaign:c1", Message{Type: MsgAnalyticsUpdate, Payload: MarshalPayload(map[string]int{"clicks": 3})})

	update := recvType(t, conn, MsgAnalyticsUpdate)
	if update.Channel != "campaign:c1" {
		t.Errorf("update channel = %q", update.Channel)
	}

	other.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	var stray Message
	if err := websocket.JSON.Receive(other, &stray); err == nil {
		t.Errorf("unsubscribed session received %+v", stray)
	}
}

func TestHub_PingPong(t *testing.T) {
	_, wsURL, stop := startHub(t, nil)
	defer stop()

	conn := dialHub(t, wsURL)
	defer conn.Close()
	recvType(t, conn, MsgConnection)

	websocket.JSON.Send(conn, Message{Type: MsgPing})
	recvType(t, conn, MsgPong)
}

func TestHub_RejectsUnauthenticated(t *testing.T) {
	_, wsURL, stop := startHub(t, func(r *http.Request) (string, bool) { return "", false })
	defer stop()

	conn := dialHub(t, wsURL)
	defer conn.Close()

	msg := recvType(t, conn, MsgError)
	if msg.Error != "unauthorized" {
		t.Errorf("error = %q", msg.Error)
	}
}

// stateRecorder collects client state transitions for assertions.
type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) last() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return ""
	}
	return r.states[len(r.states)-1]
}

func waitForState(t *testing.T, c *Client, want State, within time.Duration) {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %q, want %q within %v", c.State(), want, within)
}

func TestClient_ConnectSubscribeReceive(t *testing.T) {
	hub, wsURL, stop := startHub(t, nil)
	defer stop()

	received := make(chan Message, 8)
	client := NewClient(wsURL, "http://localhost/", "")
	client.OnMessage(func(msg Message) { received <- msg })

	if err := client.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Disconnect()
	waitForState(t, client, StateOpen, time.Second)

	if err := client.Subscribe("campaign:c1"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	// connection frame, then subscribed ack.
	waitForFrame(t, received, MsgConnection)
	waitForFrame(t, received, MsgSubscribed)

	hub.Broadcast("campaign:c1", Message{Type: MsgAnalyticsUpdate})
	waitForFrame(t, received, MsgAnalyticsUpdate)
}

func waitForFrame(t *testing.T, ch <-chan Message, want MessageType) Message {
	t.Helper()
	select {
	case msg := <-ch:
		if msg.Type != want {
			t.Fatalf("frame = %q, want %q", msg.Type, want)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("no %q frame within deadline", want)
		return Message{}
	}
}

func TestClient_ExhaustedReconnectsGoTerminal(t *testing.T) {
	// A hub that immediately stops accepting.
	_, wsURL, stop := startHub(t, nil)
	stop()

	rec := &stateRecorder{}
	client := NewClient(wsURL, "http://localhost/", "")
	client.OnStateChange(rec.record)
	client.SetReconnect(10*time.Millisecond, 2)

	if err := client.Connect(); err == nil {
		t.Fatal("Connect() to a dead endpoint should error")
	}

	waitForState(t, client, StateError, 2*time.Second)
	if !client.Unavailable() {
		t.Error("Unavailable() = false in the terminal state")
	}
}

func TestClient_ManualRetryResetsAttempts(t *testing.T) {
	_, deadURL, stop := startHub(t, nil)
	stop()

	client := NewClient(deadURL, "http://localhost/", "")
	client.SetReconnect(10*time.Millisecond, 1)
	client.Connect()
	waitForState(t, client, StateError, 2*time.Second)

	// Manual retry leaves the terminal state even though the endpoint
	// is still down: the attempt budget is fresh. A long reconnect
	// interval keeps the next automatic attempt out of this test.
	client.SetReconnect(time.Minute, 1)
	client.Connect()
	if client.State() == StateError {
		t.Error("manual Connect() did not reset the attempt counter")
	}
	client.Disconnect()
}

func TestClient_StalePongForcesReconnect(t *testing.T) {
	// A server that accepts sessions and reads frames but never
	// answers pings. With no pongs arriving, the staleness check must
	// drop the connection and redial.
	var dials int64
	silent := httptest.NewServer(websocket.Handler(func(conn *websocket.Conn) {
		atomic.AddInt64(&dials, 1)
		for {
			var msg Message
			if err := websocket.JSON.Receive(conn, &msg); err != nil {
				return
			}
		}
	}))
	defer silent.Close()
	wsURL := "ws" + strings.TrimPrefix(silent.URL, "http")

	client := NewClient(wsURL, "http://localhost/", "")
	client.SetHeartbeat(20 * time.Millisecond)
	client.SetReconnect(10*time.Millisecond, 50)

	if err := client.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Disconnect()
	waitForState(t, client, StateOpen, time.Second)

	deadline := time.Now().Add(3 * time.Second)
	for atomic.LoadInt64(&dials) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("dials = %d, want at least 2 after pongs went stale", atomic.LoadInt64(&dials))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestClient_ConnectReportsChannelUnavailable(t *testing.T) {
	_, deadURL, stop := startHub(t, nil)
	stop()

	client := NewClient(deadURL, "http://localhost/", "")
	client.SetReconnect(time.Millisecond, 0)

	err := client.Connect()
	if !errors.Is(err, ErrChannelUnavailable) {
		t.Fatalf("Connect() error = %v, want ErrChannelUnavailable", err)
	}
	if client.State() != StateError {
		t.Errorf("State() = %v, want StateError", client.State())
	}
}

func TestClient_SubscriptionsSurviveReconnect(t *testing.T) {
	hub, wsURL, stop := startHub(t, nil)
	defer stop()

	received := make(chan Message, 16)
	client := NewClient(wsURL, "http://localhost/", "")
	client.OnMessage(func(msg Message) { received <- msg })
	client.SetReconnect(10*time.Millisecond, 5)

	if err := client.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Disconnect()
	waitForState(t, client, StateOpen, time.Second)
	client.Subscribe("campaign:c1")
	waitForFrame(t, received, MsgConnection)
	waitForFrame(t, received, MsgSubscribed)

	// Kill every server-side session; the client should redial and
	// re-subscribe on its own.
	hub.Broadcast("campaign:c1", Message{Type: MsgAlert})
	waitForFrame(t, received, MsgAlert)

	closeAllSessions(hub)
	waitForState(t, client, StateOpen, 3*time.Second)
	waitForFrame(t, received, MsgConnection)
	waitForFrame(t, received, MsgSubscribed)

	hub.Broadcast("campaign:c1", Message{Type: MsgAlert})
	waitForFrame(t, received, MsgAlert)
}

func closeAllSessions(h *Hub) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sess := range h.sessions {
		sess.conn.Close()
	}
}
