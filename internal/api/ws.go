package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"barrobot/internal/bar"
	"barrobot/internal/dispense"
	"barrobot/internal/recipes"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// WebSocket upgrader configuration
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // same policy as the CORS middleware
	},
}

// streamMessage is one websocket frame of a dispense stream. Exactly one
// field is set.
type streamMessage struct {
	Event *dispense.Event `json:"event,omitempty"`
	Run   *bar.Run        `json:"run,omitempty"`
	Error string          `json:"error,omitempty"`
}

// wsConnection maintains the WebSocket connection with the client
type wsConnection struct {
	conn *websocket.Conn
	send chan []byte
	log  *zap.Logger
}

// StreamMake runs a dispense and streams every event as it happens. Closing
// the socket stops the dispense before its next action.
func (b *BarAPI) StreamMake(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		b.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	ws := &wsConnection{conn: conn, send: make(chan []byte, 64), log: b.log}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		ws.writePump()
		close(done)
	}()
	go ws.readPump(cancel)

	run, err := b.Bar.Make(ctx, c.Param("id"), func(e dispense.Event) {
		ws.push(ctx, streamMessage{Event: &e})
	})
	switch {
	case errors.Is(err, recipes.ErrNotFound):
		ws.push(ctx, streamMessage{Error: "Drink not found"})
	case err != nil:
		ws.push(ctx, streamMessage{Error: err.Error()})
	default:
		ws.push(ctx, streamMessage{Run: run})
	}

	close(ws.send)
	<-done
}

// push queues m, giving up once the client is gone.
func (c *wsConnection) push(ctx context.Context, m streamMessage) {
	data, err := json.Marshal(m)
	if err != nil {
		c.log.Error("marshal stream message", zap.Error(err))
		return
	}
	select {
	case c.send <- data:
	case <-ctx.Done():
	}
}

// readPump only watches for the client going away; clients send nothing.
func (c *wsConnection) readPump(cancel context.CancelFunc) {
	defer cancel()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("websocket closed", zap.Error(err))
			}
			return
		}
	}
}

// writePump pumps messages from the server to the WebSocket connection
func (c *wsConnection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				// keep draining so producers never block on a dead socket
				for range c.send {
				}
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				for range c.send {
				}
				return
			}
		}
	}
}
