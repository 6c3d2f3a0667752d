package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/aranyaherbals/storefront-backend/pkg/config"
	"github.com/aranyaherbals/storefront-backend/pkg/logger"
)

// Client is one connected socket. Admin clients see every event;
// customer clients see only events for their own orders.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	customerID uuid.UUID
	admin      bool
}

// Hub fans domain events out to connected sockets. A slow client is
// disconnected rather than allowed to stall the others.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	logg         *logger.Logger
	writeTimeout time.Duration
	pingInterval time.Duration
	sendBuffer   int
}

// NewHub wires the fan-out hub.
func NewHub(cfg config.RealtimeConfig, logg *logger.Logger) *Hub {
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	pingInterval := cfg.PingInterval
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	sendBuffer := cfg.SendBuffer
	if sendBuffer <= 0 {
		sendBuffer = 32
	}
	return &Hub{
		clients:      make(map[*Client]struct{}),
		logg:         logg,
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		sendBuffer:   sendBuffer,
	}
}

// Register attaches an upgraded connection and starts its pumps.
func (h *Hub) Register(ctx context.Context, conn *websocket.Conn, customerID uuid.UUID, admin bool) *Client {
	client := &Client{
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, h.sendBuffer),
		customerID: customerID,
		admin:      admin,
	}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	go client.writePump()
	go client.readPump()

	if h.logg != nil {
		logCtx := h.logg.WithFields(ctx, map[string]any{
			"customer_id": customerID.String(),
			"admin":       admin,
		})
		h.logg.Info(logCtx, "realtime client connected")
	}
	return client
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
}

// Broadcast routes one envelope to every socket allowed to see it.
func (h *Hub) Broadcast(envelope Envelope) {
	payload, err := json.Marshal(envelope)
	if err != nil {
		if h.logg != nil {
			h.logg.Error(context.Background(), "encoding realtime envelope", err)
		}
		return
	}

	// Sends happen under the read lock: close(client.send) needs the
	// write lock, so a concurrent disconnect can never close a channel
	// mid-send.
	h.mu.RLock()
	var slow []*Client
	for client := range h.clients {
		if !client.wants(envelope) {
			continue
		}
		select {
		case client.send <- payload:
		default:
			// Full buffer means the client stopped reading.
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.unregister(client)
		client.conn.Close()
	}
}

// ClientCount reports connected sockets, admin and customer alike.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
		client.conn.Close()
	}
	h.mu.Unlock()
}

func (c *Client) wants(envelope Envelope) bool {
	if c.admin {
		return true
	}
	return envelope.CustomerID != nil && *envelope.CustomerID == c.customerID
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection. The feed is one way; inbound frames
// only serve to detect a closed socket and answer pings.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	pongWait := c.hub.pingInterval * 2
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
