package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"memories/auth"
	"memories/events"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 512
	sendBuffer     = 256
)

// Message is the envelope of every frame sent to clients.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// Manager fans post events out to connected live feed clients. A client may
// narrow its feed to a single post with a subscribe message.
type Manager struct {
	clients    map[*Client]bool
	broadcast  chan events.Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

type Client struct {
	conn    *websocket.Conn
	userID  string
	manager *Manager

	mu     sync.Mutex
	send   chan []byte
	closed bool
	postID string
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan events.Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Start runs the hub until ctx is cancelled, then disconnects every client.
func (m *Manager) Start(ctx context.Context) {
	defer close(m.done)

	for {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			for client := range m.clients {
				client.close()
				delete(m.clients, client)
			}
			m.mu.Unlock()
			log.Println("WebSocket manager stopped")
			return

		case client := <-m.register:
			m.mu.Lock()
			m.clients[client] = true
			total := len(m.clients)
			m.mu.Unlock()
			log.Printf("✅ WebSocket client registered. Total clients: %d", total)

		case client := <-m.unregister:
			m.mu.Lock()
			if _, ok := m.clients[client]; ok {
				delete(m.clients, client)
				client.close()
			}
			total := len(m.clients)
			m.mu.Unlock()
			log.Printf("❌ WebSocket client unregistered. Total clients: %d", total)

		case ev := <-m.broadcast:
			msg, err := json.Marshal(Message{Type: ev.Type, Payload: ev})
			if err != nil {
				log.Printf("❌ Error marshaling WebSocket message: %v", err)
				continue
			}

			m.mu.Lock()
			for client := range m.clients {
				if !client.wants(ev.PostID) {
					continue
				}
				if !client.enqueue(msg) {
					// Slow consumer.
					client.close()
					delete(m.clients, client)
				}
			}
			m.mu.Unlock()
		}
	}
}

// Done is closed once Start has returned.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Publish queues ev for broadcast. Events are dropped when the queue is full
// or the hub has stopped.
func (m *Manager) Publish(ev events.Event) {
	select {
	case <-m.done:
	case m.broadcast <- ev:
	default:
		log.Printf("⚠️ WebSocket broadcast queue full, dropping %s for %s", ev.Type, ev.PostID)
	}
}

func (m *Manager) GetConnectedUsers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Handler upgrades the request. The token query parameter is optional; when
// present it must be a valid session token and identifies the client.
func Handler(manager *Manager, tokens TokenParser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var userID string
		if token := r.URL.Query().Get("token"); token != "" {
			claims, err := tokens.Parse(token)
			if err != nil {
				log.Printf("❌ WebSocket connection rejected: %v", err)
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}
			userID = claims.UserID
		}

		select {
		case <-manager.done:
			http.Error(w, "Shutting down", http.StatusServiceUnavailable)
			return
		default:
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("❌ WebSocket upgrade failed: %v", err)
			return
		}

		client := &Client{
			conn:    conn,
			userID:  userID,
			send:    make(chan []byte, sendBuffer),
			manager: manager,
		}

		select {
		case manager.register <- client:
		case <-manager.done:
			conn.Close()
			return
		}

		client.sendJSON(Message{Type: "connected", Payload: map[string]interface{}{
			"userId":  userID,
			"message": "WebSocket connected successfully",
			"time":    time.Now().Unix(),
		}})

		go client.writePump()
		go client.readPump()
	}
}

func (c *Client) wants(postID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.postID == "" || c.postID == postID
}

// enqueue reports false when the send buffer is full.
func (c *Client) enqueue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) sendJSON(v Message) {
	msg, err := json.Marshal(v)
	if err != nil {
		log.Printf("❌ Error marshaling %s: %v", v.Type, err)
		return
	}
	c.enqueue(msg)
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-c.manager.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("❌ WebSocket read error: %v", err)
			}
			return
		}

		var data struct {
			Type   string `json:"type"`
			PostID string `json:"postId"`
		}
		if err := json.Unmarshal(message, &data); err != nil {
			log.Printf("❌ WebSocket message unmarshal error: %v", err)
			continue
		}

		switch data.Type {
		case "subscribe":
			c.mu.Lock()
			c.postID = data.PostID
			c.mu.Unlock()
			c.sendJSON(Message{Type: "subscribed", Payload: map[string]interface{}{
				"postId": data.PostID,
				"time":   time.Now().Unix(),
			}})
		case "ping":
			c.sendJSON(Message{Type: "pong", Payload: map[string]interface{}{
				"time": time.Now().Unix(),
			}})
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
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
