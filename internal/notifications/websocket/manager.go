package websocket

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

// Message types pushed to clients
const (
	MessageTypeNotification = "notification"
	MessageTypeStatus       = "status"
)

// ErrNotConnected is returned when the user has no live connection.
var ErrNotConnected = errors.New("user not connected")

// Message is the JSON frame written to clients
type Message struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Target    string                 `json:"target,omitempty"`
}

// Connection is one client socket owned by a user
type Connection struct {
	ID          string
	UserID      string
	ConnectedAt time.Time
	UserAgent   string
	IPAddress   string

	conn *websocket.Conn
	send chan Message
	once sync.Once
}

func (c *Connection) closeSend() {
	c.once.Do(func() { close(c.send) })
}

// Manager tracks live connections per user and routes messages to them
type Manager struct {
	mu       sync.RWMutex
	users    map[string]map[string]*Connection
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewManager creates a new WebSocket manager. allowedOrigins empty accepts
// any origin.
func NewManager(allowedOrigins []string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}

	return &Manager{
		users:  make(map[string]map[string]*Connection),
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				return origins[r.Header.Get("Origin")]
			},
		},
	}
}

// HandleConnection upgrades the request and registers the socket for userID
func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request, userID string) (*Connection, error) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	c := &Connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		ConnectedAt: time.Now().UTC(),
		UserAgent:   r.Header.Get("User-Agent"),
		IPAddress:   r.RemoteAddr,
		conn:        conn,
		send:        make(chan Message, sendBuffer),
	}
	c.send <- Message{
		Type:      MessageTypeStatus,
		Data:      map[string]interface{}{"status": "connected", "connection_id": c.ID},
		Timestamp: time.Now().UTC(),
		Target:    userID,
	}
	m.register(c)

	go m.writePump(c)
	go m.readPump(c)

	return c, nil
}

func (m *Manager) register(c *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.users[c.UserID] == nil {
		m.users[c.UserID] = make(map[string]*Connection)
	}
	m.users[c.UserID][c.ID] = c
	m.logger.Debug("Connection registered", zap.String("connection_id", c.ID), zap.String("user_id", c.UserID))
}

func (m *Manager) unregister(c *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conns, ok := m.users[c.UserID]; ok {
		if _, ok := conns[c.ID]; ok {
			delete(conns, c.ID)
			c.closeSend()
		}
		if len(conns) == 0 {
			delete(m.users, c.UserID)
		}
	}
	m.logger.Debug("Connection unregistered", zap.String("connection_id", c.ID), zap.String("user_id", c.UserID))
}

// readPump only services control frames; clients do not send commands.
func (m *Manager) readPump(c *Connection) {
	defer func() {
		m.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Warn("Unexpected websocket close", zap.String("connection_id", c.ID), zap.Error(err))
			}
			return
		}
	}
}

func (m *Manager) writePump(c *Connection) {
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
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

// SendToUser queues msg on every live connection of userID. A connection
// whose buffer is full is skipped. It returns the number of connections the
// message was queued on, or ErrNotConnected when there were none.
func (m *Manager) SendToUser(userID string, msg Message) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msg.Target = userID
	sent := 0
	for _, c := range m.users[userID] {
		select {
		case c.send <- msg:
			sent++
		default:
			m.logger.Warn("Connection buffer full, dropping message",
				zap.String("connection_id", c.ID), zap.String("user_id", userID))
		}
	}

	if sent == 0 {
		return 0, ErrNotConnected
	}
	return sent, nil
}

// GetConnectionCount returns the number of active connections
func (m *Manager) GetConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, conns := range m.users {
		n += len(conns)
	}
	return n
}

// GetUserConnections returns the live connections of a user
func (m *Manager) GetUserConnections(userID string) []*Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conns := make([]*Connection, 0, len(m.users[userID]))
	for _, c := range m.users[userID] {
		conns = append(conns, c)
	}
	return conns
}

// Close disconnects every client
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for userID, conns := range m.users {
		for _, c := range conns {
			c.closeSend()
		}
		delete(m.users, userID)
	}
}
