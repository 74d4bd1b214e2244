package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// testSocket dials a throwaway echo server and returns the client side
// plus a channel carrying everything the server receives.
func testSocket(t *testing.T) (*websocket.Conn, <-chan []byte) {
	t.Helper()

	received := make(chan []byte, 100)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- data
		}
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return conn, received
}

func TestConnectionInitialization(t *testing.T) {
	raw, _ := testSocket(t)

	conn := NewConnection(raw)
	defer conn.Close()

	if conn.ID() == "" {
		t.Error("connection must get an ID at construction")
	}
	if cap(conn.writeCh) != writeBufferSize {
		t.Errorf("expected write buffer %d, got %d", writeBufferSize, cap(conn.writeCh))
	}

	other := NewConnection(raw)
	defer other.Close()
	if other.ID() == conn.ID() {
		t.Error("connection IDs must be unique")
	}
}

func TestConnectionUsername(t *testing.T) {
	raw, _ := testSocket(t)
	conn := NewConnection(raw)
	defer conn.Close()

	if conn.Username() != "" {
		t.Errorf("expected empty initial username, got %q", conn.Username())
	}
	conn.SetUsername("Alice")
	if conn.Username() != "Alice" {
		t.Errorf("expected Alice, got %q", conn.Username())
	}
}

func TestWriteJSONDelivers(t *testing.T) {
	raw, received := testSocket(t)
	conn := NewConnection(raw)
	defer conn.Close()

	payload := map[string]string{"event": "system-message"}
	if err := conn.WriteJSON(payload); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	select {
	case data := <-received:
		var got map[string]string
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("received frame is not JSON: %v", err)
		}
		if got["event"] != "system-message" {
			t.Errorf("unexpected frame: %s", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("frame never arrived")
	}
}

func TestWriteJSONAfterClose(t *testing.T) {
	raw, _ := testSocket(t)
	conn := NewConnection(raw)

	if err := conn.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}

	if err := conn.WriteJSON(map[string]string{"k": "v"}); err != ErrConnectionClosed {
		t.Errorf("expected ErrConnectionClosed, got %v", err)
	}
}

func TestWriteJSONRejectsUnmarshalable(t *testing.T) {
	raw, _ := testSocket(t)
	conn := NewConnection(raw)
	defer conn.Close()

	if err := conn.WriteJSON(func() {}); err != ErrInvalidJSON {
		t.Errorf("expected ErrInvalidJSON, got %v", err)
	}
}
