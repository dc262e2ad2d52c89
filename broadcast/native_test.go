package broadcast

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hiveboard/hiveboard/model"
)

func newTestServer(t *testing.T, m *NativeManager, tenantID string) (*httptest.Server, string) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.ServeWS(w, r, tenantID)
	}))
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	return server, wsURL
}

func TestNativeManagerDeliversSubscribedEvents(t *testing.T) {
	m := NewNativeManager(zerolog.Nop())
	server, wsURL := newTestServer(t, m, "acme")
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(clientMessage{Action: "subscribe", Channels: []string{"events"}}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	// Give the server a moment to register the subscription before broadcasting.
	time.Sleep(50 * time.Millisecond)
	m.BroadcastEvent("acme", model.Event{EventID: "evt-1", EventType: model.EventHeartbeat})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read message: %v", err)
	}
	if msg.Type != TypeEventNew {
		t.Fatalf("expected event.new message, got %s", msg.Type)
	}
}

func TestNativeManagerFiltersByEnvironment(t *testing.T) {
	m := NewNativeManager(zerolog.Nop())
	server, wsURL := newTestServer(t, m, "acme")
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(clientMessage{
		Action:   "subscribe",
		Channels: []string{"events"},
		Filters:  SubscriptionFilters{Environment: "staging"},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	m.BroadcastEvent("acme", model.Event{EventID: "evt-1", Environment: "prod"})
	m.BroadcastEvent("acme", model.Event{EventID: "evt-2", Environment: "staging"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read message: %v", err)
	}
	data, ok := msg.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected event data as a map, got %T", msg.Data)
	}
	if data["event_id"] != "evt-2" {
		t.Fatalf("expected only the staging event to be delivered, got %v", data["event_id"])
	}
}

func TestNativeManagerDoesNotDeliverAcrossTenants(t *testing.T) {
	m := NewNativeManager(zerolog.Nop())
	server, wsURL := newTestServer(t, m, "acme")
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := conn.WriteJSON(clientMessage{Action: "subscribe", Channels: []string{"events"}}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	m.BroadcastEvent("other-tenant", model.Event{EventID: "evt-1"})

	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var msg Message
	err = conn.ReadJSON(&msg)
	if err == nil {
		t.Fatalf("expected no message delivered for a different tenant, got %+v", msg)
	}
}
