package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Экраны бара открываются с разных хостов локальной сети
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WSController отдает события заказов экранам бара
type WSController struct {
	hub *Hub
	log *logrus.Entry
}

// NewWSController создает контроллер WebSocket
func NewWSController(hub *Hub, log *logrus.Entry) *WSController {
	return &WSController{hub: hub, log: log.WithField("component", "ws")}
}

// ServeWS обрабатывает WebSocket подключения экранов бара
// GET /ws/orders
func (wc *WSController) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		wc.log.WithError(err).Warn("⚠️ Ошибка обновления WebSocket соединения")
		return
	}

	wc.hub.AddClient(conn)
	wc.log.WithField("clients", wc.hub.GetClientsCount()).Info("📱 Экран бара подключен")

	defer func() {
		wc.hub.RemoveClient(conn)
		wc.log.WithField("clients", wc.hub.GetClientsCount()).Info("📱 Экран бара отключен")
	}()

	// Читаем сообщения от клиента (ping/pong для поддержания соединения)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				wc.log.WithError(err).Warn("⚠️ WebSocket ошибка")
			}
			return
		}
	}
}
