package websocket

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"talentline/pkg/logger"
)

// Client represents one connected UI for an actor. The send channel is owned
// by the client: writers go through Send, which checks the closed flag under
// the client's lock, and shutdown is the only place the channel is closed.
// Pushes originate in session goroutines, so a send racing a close would take
// the whole process down.
type Client struct {
	ActorID string
	Conn    *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClient(actorID string, conn *websocket.Conn) *Client {
	return &Client{
		ActorID: actorID,
		Conn:    conn,
		send:    make(chan []byte, 256),
	}
}

// Send queues a frame for the write pump without blocking. It reports false
// when the client is closed or its buffer is full.
func (c *Client) Send(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Manager tracks the active WebSocket connections per actor. Incoming client
// frames are handed to OnClientMessage, which the API layer wires to the chat
// command dispatcher.
type Manager struct {
	clients    map[string][]*Client
	Register   chan *Client
	Unregister chan *Client
	mutex      sync.RWMutex

	OnClientMessage func(client *Client, message []byte)
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[string][]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Start runs the manager's main loop in a goroutine.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.Register:
				m.mutex.Lock()
				m.clients[client.ActorID] = append(m.clients[client.ActorID], client)
				m.mutex.Unlock()
				logger.Info("Client registered: %s", client.ActorID)

			case client := <-m.Unregister:
				m.mutex.Lock()
				m.removeClient(client)
				m.mutex.Unlock()
				logger.Info("Client unregistered: %s", client.ActorID)

			case <-ctx.Done():
				return
			}
		}
	}()
}

// removeClient drops one connection. Caller holds the lock.
func (m *Manager) removeClient(client *Client) {
	conns := m.clients[client.ActorID]
	for i, c := range conns {
		if c == client {
			c.shutdown()
			conns = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(conns) == 0 {
		delete(m.clients, client.ActorID)
		return
	}
	m.clients[client.ActorID] = conns
}

// SendToActor delivers a payload to every connection the actor has open.
func (m *Manager) SendToActor(actorID string, message []byte) {
	m.mutex.RLock()
	conns := append([]*Client(nil), m.clients[actorID]...)
	m.mutex.RUnlock()

	for _, client := range conns {
		if !client.Send(message) {
			// Closed or slow consumer; drop the frame rather than block.
			logger.Warn("Dropping frame for client of actor %s", actorID)
		}
	}
}

// ReadPump reads messages from the WebSocket connection.
func (c *Client) ReadPump(m *Manager) {
	defer func() {
		m.Unregister <- c
		c.Conn.Close()
	}()

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("websocket read: %v", err)
			}
			break
		}

		if m.OnClientMessage != nil {
			m.OnClientMessage(c, message)
		}
	}
}

// WritePump sends messages to the WebSocket connection.
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		message, ok := <-c.send
		if !ok {
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logger.Error("websocket write: %v", err)
			return
		}
	}
}
