package push

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/integrio/status-engine/internal/eventbus"
	"github.com/integrio/status-engine/internal/status"
)

func dial(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHub_RelaysBusEvents(t *testing.T) {
	t.Parallel()

	bus := eventbus.New(zap.NewNop().Sugar())
	t.Cleanup(func() { _ = bus.Close(context.Background()) })

	hub := NewHub(zap.NewNop().Sugar())
	t.Cleanup(hub.Close)
	unsubscribe := hub.Subscribe(bus)
	t.Cleanup(unsubscribe)

	conn := dial(t, hub)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	key := status.NewKey("orders", "dev", "orders")
	require.NoError(t, bus.Publish(context.Background(), eventbus.TopicContainerDeleted, key.String(), key))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Topic   eventbus.Topic    `json:"topic"`
		Key     string            `json:"key"`
		Payload status.GroupedKey `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, eventbus.TopicContainerDeleted, msg.Topic)
	assert.Equal(t, "orders:dev:orders", msg.Key)
	assert.Equal(t, key, msg.Payload)
}

func TestHub_DropsDisconnectedSubscribers(t *testing.T) {
	t.Parallel()

	hub := NewHub(zap.NewNop().Sugar())
	t.Cleanup(hub.Close)

	conn := dial(t, hub)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool {
		hub.Ping(context.Background())
		return hub.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_PingKeepsLiveSubscribers(t *testing.T) {
	t.Parallel()

	hub := NewHub(zap.NewNop().Sugar())
	t.Cleanup(hub.Close)

	conn := dial(t, hub)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	pinged := make(chan struct{}, 1)
	conn.SetPingHandler(func(string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return nil
	})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	assert.Zero(t, hub.Ping(context.Background()))
	select {
	case <-pinged:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber was not pinged")
	}
	assert.Equal(t, 1, hub.Len())
}

func TestHub_DropsSlowSubscriber(t *testing.T) {
	t.Parallel()

	hub := NewHub(zap.NewNop().Sugar(), WithBufferSize(1))
	t.Cleanup(hub.Close)

	s := &subscriber{id: "slow", send: make(chan Message, 1), done: make(chan struct{})}
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	s.conn = conn

	hub.mu.Lock()
	hub.subscribers[s.id] = s
	hub.mu.Unlock()

	ev := eventbus.Event{Topic: eventbus.TopicContainerUpdated, Key: "k"}
	hub.Broadcast(ev)
	hub.Broadcast(ev)

	hub.mu.RLock()
	_, ok := hub.subscribers["slow"]
	hub.mu.RUnlock()
	assert.False(t, ok)
}
