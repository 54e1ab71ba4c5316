package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcastReachesClients(t *testing.T) {
	hub := NewWebSocketHub()
	go hub.Run()
	defer hub.Stop()

	first := &MockClient{SendChan: make(chan []byte, 4)}
	second := &MockClient{SendChan: make(chan []byte, 4)}
	hub.Register(first)
	hub.Register(second)

	hub.Broadcast(Event{
		Type:        EventCharacterActivated,
		CharacterID: "luna",
	})

	for _, client := range []*MockClient{first, second} {
		select {
		case msg := <-client.SendChan:
			var event Event
			require.NoError(t, json.Unmarshal(msg, &event))
			assert.Equal(t, EventCharacterActivated, event.Type)
			assert.Equal(t, "luna", event.CharacterID)
		case <-time.After(time.Second):
			t.Fatal("client did not receive broadcast")
		}
	}
}

func TestHubUnregisterStopsDelivery(t *testing.T) {
	hub := NewWebSocketHub()
	go hub.Run()
	defer hub.Stop()

	client := &MockClient{SendChan: make(chan []byte, 4)}
	hub.Register(client)
	hub.Unregister(client)

	hub.Broadcast(Event{Type: EventMemoryDeleted, CharacterID: "luna"})

	select {
	case msg, ok := <-client.SendChan:
		if ok {
			t.Fatalf("unexpected message after unregister: %s", msg)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestServeHTTP_RejectsBadOrigin(t *testing.T) {
	hub := NewWebSocketHub()
	go hub.Run()
	defer hub.Stop()

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
