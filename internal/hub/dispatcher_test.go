package hub

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"

	"quizroom/internal/ws"
)

var testUpgrader = gorilla.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// testMember registers a connection in the registry and returns the
// client side for asserting deliveries.
func testMember(t *testing.T, registry *ws.Registry, roomCode string) (*ws.Connection, *gorilla.Conn) {
	t.Helper()

	serverSide := make(chan *gorilla.Conn, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		serverSide <- conn
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := gorilla.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	conn := ws.NewConnection(<-serverSide)
	t.Cleanup(func() { conn.Close() })

	if err := registry.Register(conn); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if roomCode != "" {
		registry.Subscribe(conn.ID(), roomCode)
	}
	return conn, client
}

func readEvent(t *testing.T, client *gorilla.Conn) (string, json.RawMessage) {
	t.Helper()
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var env struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("bad frame: %s", data)
	}
	return env.Event, env.Data
}

func assertNothing(t *testing.T, client *gorilla.Conn) {
	t.Helper()
	_ = client.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	if _, _, err := client.ReadMessage(); err == nil {
		t.Error("unexpected frame delivered")
	}
}

func TestBroadcastToRoom(t *testing.T) {
	registry := ws.NewRegistry()
	dispatcher := NewDispatcher(registry)

	_, client1 := testMember(t, registry, "AB12CD")
	_, client2 := testMember(t, registry, "AB12CD")
	_, outsider := testMember(t, registry, "ZZ99XX")

	dispatcher.BroadcastToRoom("AB12CD", "system-message", map[string]string{"message": "hi"})

	for _, client := range []*gorilla.Conn{client1, client2} {
		event, data := readEvent(t, client)
		if event != "system-message" {
			t.Errorf("expected system-message, got %s", event)
		}
		var payload map[string]string
		if err := json.Unmarshal(data, &payload); err != nil || payload["message"] != "hi" {
			t.Errorf("unexpected payload: %s", data)
		}
	}
	assertNothing(t, outsider)
}

func TestSendToOthers(t *testing.T) {
	registry := ws.NewRegistry()
	dispatcher := NewDispatcher(registry)

	sender, senderClient := testMember(t, registry, "AB12CD")
	_, otherClient := testMember(t, registry, "AB12CD")

	dispatcher.SendToOthers("AB12CD", sender.ID(), "user-joined", map[string]string{"username": "Bob"})

	event, _ := readEvent(t, otherClient)
	if event != "user-joined" {
		t.Errorf("expected user-joined, got %s", event)
	}
	assertNothing(t, senderClient)
}

func TestSendToOne(t *testing.T) {
	registry := ws.NewRegistry()
	dispatcher := NewDispatcher(registry)

	target, targetClient := testMember(t, registry, "")
	_, otherClient := testMember(t, registry, "")

	dispatcher.SendToOne(target.ID(), "room-error", map[string]string{"message": "nope"})
	event, _ := readEvent(t, targetClient)
	if event != "room-error" {
		t.Errorf("expected room-error, got %s", event)
	}
	assertNothing(t, otherClient)

	// Unknown target is a no-op.
	dispatcher.SendToOne("unknown", "room-error", nil)
}

func TestBroadcastAll(t *testing.T) {
	registry := ws.NewRegistry()
	dispatcher := NewDispatcher(registry)

	_, client1 := testMember(t, registry, "AB12CD")
	_, client2 := testMember(t, registry, "")

	dispatcher.BroadcastAll("admin-call-status-changed", map[string]bool{"enabled": false})

	for _, client := range []*gorilla.Conn{client1, client2} {
		event, data := readEvent(t, client)
		if event != "admin-call-status-changed" {
			t.Errorf("expected status event, got %s", event)
		}
		var payload map[string]bool
		if err := json.Unmarshal(data, &payload); err != nil || payload["enabled"] {
			t.Errorf("unexpected payload: %s", data)
		}
	}
}

func TestBroadcastSurvivesClosedConnection(t *testing.T) {
	registry := ws.NewRegistry()
	dispatcher := NewDispatcher(registry)

	dead, _ := testMember(t, registry, "AB12CD")
	_, liveClient := testMember(t, registry, "AB12CD")

	dead.Close()

	dispatcher.BroadcastToRoom("AB12CD", "system-message", map[string]string{"message": "still here"})

	event, _ := readEvent(t, liveClient)
	if event != "system-message" {
		t.Errorf("live connection must still receive, got %s", event)
	}
}
