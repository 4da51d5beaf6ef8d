package feed

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler upgrades feed subscriptions and pumps events to them
type Handler struct {
	hub *Hub
	log *zap.Logger
}

func NewHandler(hub *Hub, log *zap.Logger) *Handler {
	return &Handler{hub: hub, log: log}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, validate origin properly
		return true
	},
}

// HandleWebSocketGin upgrades the connection and streams marketplace events
// until the client goes away.
func (h *Handler) HandleWebSocketGin(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("feed upgrade failed", zap.Error(err))
		return
	}

	id := uuid.NewString()
	client := h.hub.AddClient(id, conn)
	h.log.Debug("feed subscriber connected", zap.String("client_id", id))

	go h.readLoop(client)
	go h.writeLoop(client)
}

// GetStatusGin reports how many subscribers are connected
func (h *Handler) GetStatusGin(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"subscribers": h.hub.SubscriberCount()})
}

// readLoop drains the connection so ping/pong and close frames are
// processed; the feed accepts no client messages.
func (h *Handler) readLoop(client *Client) {
	defer func() {
		h.hub.RemoveClient(client.ID)
		client.Conn.Close()
		h.log.Debug("feed subscriber disconnected", zap.String("client_id", client.ID))
	}()

	client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		select {
		case <-client.Done:
			return
		default:
			if _, _, err := client.Conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}

func (h *Handler) writeLoop(client *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case <-client.Done:
			return
		case event := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
