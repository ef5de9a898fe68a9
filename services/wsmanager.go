package services

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait = 10 * time.Second
	// wsSendBuffer frames may wait for a slow reader before it is disconnected
	wsSendBuffer = 64
)

// wsClient - соединение и его очередь на запись. Пишет только writer.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *wsClient) writer(userID int64) {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				slog.Debug("websocket write failed", "user_id", userID, "error", err)
				c.close()
				return
			}
		}
	}
}

// close stops the writer and closes the socket; the read loop of the handler
// then fails and unregisters the connection.
func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// WSConnManager keeps the open websocket connections of every user.
type WSConnManager struct {
	mu    sync.Mutex
	users map[int64][]*wsClient
}

func NewWSConnManager() *WSConnManager {
	return &WSConnManager{
		users: make(map[int64][]*wsClient),
	}
}

// Add registers conn and reports whether it is the first connection of the user.
func (m *WSConnManager) Add(userID int64, conn *websocket.Conn) bool {
	client := &wsClient{
		conn: conn,
		send: make(chan []byte, wsSendBuffer),
		done: make(chan struct{}),
	}
	go client.writer(userID)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID] = append(m.users[userID], client)
	return len(m.users[userID]) == 1
}

// Remove unregisters conn and reports whether the user has no connections left.
func (m *WSConnManager) Remove(userID int64, conn *websocket.Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	clients := m.users[userID]
	for i, c := range clients {
		if c.conn == conn {
			c.close()
			m.users[userID] = append(clients[:i:i], clients[i+1:]...)
			break
		}
	}
	if len(m.users[userID]) == 0 {
		delete(m.users, userID)
		return true
	}
	return false
}

func (m *WSConnManager) Connections(userID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users[userID])
}

// Send queues message for every connection of the user and never blocks. A
// connection whose queue is full is closed.
func (m *WSConnManager) Send(userID int64, message []byte) {
	m.mu.Lock()
	clients := append([]*wsClient(nil), m.users[userID]...)
	m.mu.Unlock()

	for _, c := range clients {
		select {
		case <-c.done:
		case c.send <- message:
		default:
			slog.Warn("websocket send queue is full, disconnecting", "user_id", userID)
			c.close()
		}
	}
}

// Frame is the envelope of every server push.
type Frame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

func (m *WSConnManager) Push(userID int64, event string, data interface{}) {
	if m == nil {
		return
	}
	payload, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		slog.Error("failed to marshal push frame", "event", event, "error", err)
		return
	}
	m.Send(userID, payload)
}
