package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	authWait       = 10 * time.Second
	maxMessageSize = 8192
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking for production
		return true
	},
}

// Client is one browser session attached to the hub. It only receives;
// the single inbound message it must send is the auth handshake.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *zap.Logger
}

type authEnvelope struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// authenticate waits for the first frame, which must carry a valid JWT.
// Returns false if the connection should be dropped.
func (c *Client) authenticate() bool {
	c.conn.SetReadDeadline(time.Now().Add(authWait))

	var env authEnvelope
	if err := c.conn.ReadJSON(&env); err != nil {
		c.logger.Debug("websocket handshake read failed", zap.Error(err))
		return false
	}
	if env.Type != "auth" || env.Token == "" {
		c.reject("First message must be an auth message with a token")
		return false
	}

	claims, err := c.hub.authService.ValidateToken(env.Token)
	if err != nil {
		c.logger.Warn("websocket authentication failed",
			zap.Error(err),
			zap.String("remote_addr", c.conn.RemoteAddr().String()))
		c.reject("Invalid or expired token")
		return false
	}

	reply, _ := json.Marshal(map[string]any{
		"type":      "auth_success",
		"email":     claims.Email,
		"timestamp": time.Now(),
	})
	c.send <- reply

	c.logger.Info("websocket client authenticated",
		zap.String("email", claims.Email),
		zap.String("remote_addr", c.conn.RemoteAddr().String()))
	return true
}

func (c *Client) reject(reason string) {
	msg, _ := json.Marshal(map[string]any{
		"type":      "auth_failed",
		"reason":    reason,
		"timestamp": time.Now(),
	})
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.TextMessage, msg)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	if !c.authenticate() {
		return
	}
	c.hub.register <- c

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Authenticated peers only listen; drain and drop anything else.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error",
					zap.Error(err),
					zap.String("remote_addr", c.conn.RemoteAddr().String()))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades the request and starts the client pumps.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("websocket upgrade failed",
			zap.Error(err),
			zap.String("remote_addr", r.RemoteAddr))
		return
	}

	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		logger: hub.logger,
	}

	go client.writePump()
	go client.readPump()
}
