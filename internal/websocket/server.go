// Package websocket pushes planning progress to connected clients. Clients
// submit plan requests as JSON messages and receive the planning event
// stream back on the same connection.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/skyplan/skyplan/pkg/logger"
)

// Message types pushed to clients.
const (
	MessageTypePlanProgress  = "plan_progress"
	MessageTypePlanPartial   = "plan_partial"
	MessageTypePlanDone      = "plan_done"
	MessageTypePlanError     = "plan_error"
	MessageTypePlanCancelled = "plan_cancelled"
)

// Message is the wire format in both directions.
type Message struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// MessageHandler handles messages received from clients.
type MessageHandler interface {
	HandleMessage(client *Client, messageType string, data map[string]any) error
}

// Server manages the set of connected clients.
type Server struct {
	clients        map[*Client]bool
	register       chan *Client
	unregister     chan *Client
	broadcast      chan *Message
	messageHandler MessageHandler
	upgrader       websocket.Upgrader
	log            *logger.Logger
}

// NewServer creates a websocket server.
func NewServer(log *logger.Logger) *Server {
	return &Server{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 64),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: log.Named("websocket"),
	}
}

// SetMessageHandler sets the handler for client messages. Must be called
// before the first connection.
func (s *Server) SetMessageHandler(handler MessageHandler) {
	s.messageHandler = handler
}

// Run processes register/unregister/broadcast events. Call in a goroutine.
func (s *Server) Run() {
	for {
		select {
		case client := <-s.register:
			s.clients[client] = true
			s.log.Info("Client connected",
				logger.String("remote", client.conn.RemoteAddr().String()),
				logger.Int("clients", len(s.clients)))

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
				s.log.Info("Client disconnected",
					logger.String("remote", client.conn.RemoteAddr().String()),
					logger.Int("clients", len(s.clients)))
			}

		case message := <-s.broadcast:
			for client := range s.clients {
				if !client.SendMessage(message) {
					s.log.Warn("Dropping broadcast for slow client",
						logger.String("remote", client.conn.RemoteAddr().String()))
				}
			}
		}
	}
}

// Broadcast sends a message to every connected client.
func (s *Server) Broadcast(message *Message) {
	s.broadcast <- message
}

// HandleConnection upgrades an HTTP request to a websocket connection and
// starts the client pumps.
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("Failed to upgrade connection", logger.Error(err))
		return
	}

	client := &Client{
		server:    s,
		conn:      conn,
		send:      make(chan *Message, 256),
		closeChan: make(chan struct{}),
	}

	s.register <- client

	go client.writePump()
	go client.readPump()
}

// Client is one websocket connection.
type Client struct {
	server    *Server
	conn      *websocket.Conn
	send      chan *Message
	closeChan chan struct{}
	mu        sync.Mutex
	closed    bool
}

// SendMessage queues a message for this client. Returns false if the client
// is closed or its send buffer is full.
func (c *Client) SendMessage(message *Message) bool {
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

// Close closes the client connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.closeChan)
	c.conn.Close()
}

// Closed reports whether the client connection has been closed.
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// readPump reads client messages and dispatches them to the handler.
func (c *Client) readPump() {
	defer func() {
		c.server.unregister <- c
		c.Close()
	}()

	for {
		if c.Closed() {
			break
		}

		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.server.log.Error("WebSocket read error", logger.Error(err))
			}
			break
		}

		var message Message
		if err := json.Unmarshal(raw, &message); err != nil {
			c.server.log.Error("Failed to parse WebSocket message", logger.Error(err))
			continue
		}

		c.server.log.Debug("Received WebSocket message",
			logger.String("type", message.Type),
			logger.String("client", c.conn.RemoteAddr().String()))

		if c.server.messageHandler != nil {
			if err := c.server.messageHandler.HandleMessage(c, message.Type, message.Data); err != nil {
				c.server.log.Error("Failed to handle WebSocket message",
					logger.Error(err),
					logger.String("type", message.Type))
			}
		}
	}
}

// writePump writes queued messages to the connection.
func (c *Client) writePump() {
	defer c.Close()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(message)
			if err != nil {
				c.server.log.Error("Failed to marshal message", logger.Error(err))
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-c.closeChan:
			return
		}
	}
}
