package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"barback/internal/models"
	"barback/internal/services"
)

func nullLog() *logrus.Entry {
	logger, _ := test.NewNullLogger()
	return logrus.NewEntry(logger)
}

// startHub поднимает хаб и HTTP сервер с /ws/orders
func startHub(t *testing.T) (*Hub, string, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewHub(nullLog())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	r := gin.New()
	r.GET("/ws/orders", NewWSController(hub, nullLog()).ServeWS)
	srv := httptest.NewServer(r)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/orders"
	return hub, url, func() {
		cancel()
		<-done
		srv.Close()
	}
}

func dial(t *testing.T, hub *Hub, url string, wantClients int) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.GetClientsCount() == wantClients }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func TestHubBroadcastsToAllClients(t *testing.T) {
	defer goleak.VerifyNone(t)
	hub, url, stop := startHub(t)
	defer stop()

	first := dial(t, hub, url, 1)
	defer first.Close()
	second := dial(t, hub, url, 2)
	defer second.Close()

	require.True(t, hub.BroadcastMessage([]byte(`{"type":"order.created"}`)))

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"order.created"}`, string(msg))
	}
}

func TestHubDropsDisconnectedClient(t *testing.T) {
	defer goleak.VerifyNone(t)
	hub, url, stop := startHub(t)
	defer stop()

	conn := dial(t, hub, url, 1)
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return hub.GetClientsCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)
	hub := NewHub(nullLog())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
}

func TestHubBroadcastDropsWhenQueueFull(t *testing.T) {
	hub := NewHub(nullLog())
	for i := 0; i < cap(hub.broadcast); i++ {
		require.True(t, hub.BroadcastMessage([]byte("x")))
	}
	assert.False(t, hub.BroadcastMessage([]byte("overflow")))
}

func TestHubPublisherSendsEventJSON(t *testing.T) {
	hub := NewHub(nullLog())
	pub := NewHubPublisher(hub)

	err := pub.Publish(context.Background(), services.Event{
		Type:    services.EventOrderStatusChanged,
		OrderID: "o-1",
		Status:  models.OrderStatusReady,
	})

	require.NoError(t, err)
	var ev services.Event
	require.NoError(t, json.Unmarshal(<-hub.broadcast, &ev))
	assert.Equal(t, services.EventOrderStatusChanged, ev.Type)
	assert.Equal(t, models.OrderStatusReady, ev.Status)
}
