package hub

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// serveWebSocket upgrades one request and hands the server-side connection
// to the test through the returned channel.
func serveWebSocket(t *testing.T) (string, <-chan *WebSocketConnection) {
	t.Helper()
	conns := make(chan *WebSocketConnection, 1)
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- NewWebSocketConnection("client-1", ws, DefaultWebSocketOptions(), &mockLogger{})
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http"), conns
}

func TestWebSocketConnection_SendAndClose(t *testing.T) {
	url, conns := serveWebSocket(t)

	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	conn := <-conns
	if conn.Type() != TypeWebSocket || !strings.HasPrefix(conn.ID(), "ws-") {
		t.Errorf("identity: got type %q id %q", conn.Type(), conn.ID())
	}
	if conn.ClientID() != "client-1" {
		t.Errorf("client id: got %q", conn.ClientID())
	}

	if err := conn.Send(context.Background(), Message(`{"type":"drawing"}`)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if msgType != websocket.TextMessage || string(data) != `{"type":"drawing"}` {
		t.Errorf("received: type %d data %q", msgType, data)
	}

	if err := conn.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if !conn.IsClosed() {
		t.Error("IsClosed should be true after Close")
	}
	if err := conn.Send(context.Background(), Message("late")); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Send after close: got %v, want ErrConnectionClosed", err)
	}

	if _, _, err := client.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("client should observe a normal close, got %v", err)
	}
}

func TestWebSocketConnection_ReadMessage(t *testing.T) {
	url, conns := serveWebSocket(t)

	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()
	conn := <-conns
	defer conn.Close()

	if err := client.WriteMessage(websocket.TextMessage, []byte("stroke")); err != nil {
		t.Fatalf("client write: %v", err)
	}

	msgType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if msgType != websocket.TextMessage || string(data) != "stroke" {
		t.Errorf("read: type %d data %q", msgType, data)
	}
}

func TestWebSocketConnection_NotifyRemovedClosesDone(t *testing.T) {
	url, conns := serveWebSocket(t)

	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()
	conn := <-conns
	defer conn.Close()

	conn.NotifyRemoved()
	select {
	case <-conn.Done():
	case <-time.After(time.Second):
		t.Fatal("Done should close after NotifyRemoved")
	}
	if conn.IsClosed() {
		t.Error("NotifyRemoved must leave closing to the owner")
	}
}

func TestWebSocketOptions_WithDefaults(t *testing.T) {
	opts := WebSocketOptions{PongWait: 10 * time.Second, PingPeriod: 20 * time.Second}.withDefaults()
	if opts.PingPeriod >= opts.PongWait {
		t.Errorf("ping period %v should be below pong wait %v", opts.PingPeriod, opts.PongWait)
	}
	if opts.WriteTimeout != DefaultWebSocketOptions().WriteTimeout {
		t.Errorf("write timeout: got %v", opts.WriteTimeout)
	}
}

func TestSSEConnection_Send(t *testing.T) {
	rec := httptest.NewRecorder()
	conn := NewSSEConnection(context.Background(), rec, time.Second, &mockLogger{})

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type: got %q", got)
	}
	if conn.Type() != TypeSSE || !strings.HasPrefix(conn.ID(), "sse-") {
		t.Errorf("identity: got type %q id %q", conn.Type(), conn.ID())
	}

	if err := conn.Send(context.Background(), Message(`{"type":"analysis_result"}`)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "event:message\n") {
		t.Errorf("missing event line in %q", body)
	}
	if !strings.Contains(body, `data:{"type":"analysis_result"}`) {
		t.Errorf("missing data line in %q", body)
	}
	if !rec.Flushed {
		t.Error("event should be flushed")
	}
}

func TestSSEConnection_CloseAndRemoval(t *testing.T) {
	rec := httptest.NewRecorder()
	conn := NewSSEConnection(context.Background(), rec, time.Second, &mockLogger{})

	conn.NotifyRemoved()
	select {
	case <-conn.Done():
	default:
		t.Error("Done should close after NotifyRemoved")
	}

	_ = conn.Close()
	if err := conn.Send(context.Background(), Message("x")); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Send after close: got %v, want ErrConnectionClosed", err)
	}
}
