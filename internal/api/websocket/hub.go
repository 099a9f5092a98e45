package websocket

import (
	"encoding/json"
	"sync"

	"github.com/openfactory/designcore/internal/auth"
	"go.uber.org/zap"
)

// Hub fans designer events (simulation ticks, project lifecycle, backend
// health) out to all authenticated clients. All client-set mutation happens
// on the Run goroutine; GetClientCount is the only concurrent reader.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client

	mu     sync.RWMutex
	logger *zap.Logger

	authService *auth.AuthService
}

func NewHub(logger *zap.Logger, authService *auth.AuthService) *Hub {
	return &Hub{
		clients:     make(map[*Client]struct{}),
		broadcast:   make(chan Message, 256),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		logger:      logger,
		authService: authService,
	}
}

// Run is the hub event loop. Call it once, on its own goroutine.
func (h *Hub) Run() {
	h.logger.Info("websocket hub started")
	for {
		select {
		case client := <-h.register:
			h.add(client)

		case client := <-h.unregister:
			h.remove(client)

		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("websocket client registered",
		zap.String("remote_addr", client.conn.RemoteAddr().String()),
		zap.Int("total_clients", total))
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.logger.Info("websocket client unregistered",
			zap.String("remote_addr", client.conn.RemoteAddr().String()),
			zap.Int("total_clients", total))
	}
}

func (h *Hub) fanOut(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message",
			zap.String("message_type", string(msg.Type)), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			// Send buffer full: the peer is slow or gone, drop it.
			close(client.send)
			delete(h.clients, client)
			h.logger.Warn("dropping slow websocket client",
				zap.String("remote_addr", client.conn.RemoteAddr().String()))
		}
	}
}

// Broadcast queues a message for delivery to every connected client.
// Never blocks; drops the message if the hub queue is full.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("hub broadcast queue full, message dropped",
			zap.String("message_type", string(msg.Type)))
	}
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
