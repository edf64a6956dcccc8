package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventHub_DeliversToClients(t *testing.T) {
	hub := NewEventHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Add(conn)
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish(Event{Type: EventAssetsScanned, At: time.Now().UTC(), Data: map[string]int{"queued": 2}})

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got struct {
		Type string         `json:"type"`
		Data map[string]int `json:"data"`
	}
	require.NoError(t, client.ReadJSON(&got))
	assert.Equal(t, EventAssetsScanned, got.Type)
	assert.Equal(t, 2, got.Data["queued"])
}

func TestEventHub_NilAndFullAreSafe(t *testing.T) {
	var hub *EventHub
	assert.NotPanics(t, func() { hub.Publish(Event{Type: EventHostMetrics}) })
	assert.NotPanics(t, func() { publish(nil, EventHostMetrics, nil) })

	hub = NewEventHub()
	for i := 0; i < 200; i++ {
		hub.Publish(Event{Type: EventHostMetrics})
	}
	assert.Zero(t, hub.ClientCount())
}
