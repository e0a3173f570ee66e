package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 64
)

// Message - конверт, который получает клиент.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Hub держит веб-сокет соединения, сгруппированные по пользователю.
// У одного пользователя может быть несколько открытых вкладок.
type Hub struct {
	logger *slog.Logger
	mu     sync.RWMutex
	rooms  map[int]map[*Client]struct{}
	closed bool
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		rooms:  make(map[int]map[*Client]struct{}),
	}
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID int
	once   sync.Once
}

// Serve регистрирует соединение пользователя и запускает его read/write циклы.
func (h *Hub) Serve(conn *websocket.Conn, userID int) {
	c := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		userID: userID,
	}
	if !h.register(c) {
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	room, ok := h.rooms[c.userID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[c.userID] = room
	}
	room[c] = struct{}{}
	h.logger.Debug("websocket client registered", slog.Int("user_id", c.userID), slog.Int("connections", len(room)))
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.userID]
	if !ok {
		return
	}
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	c.closeSend()
	if len(room) == 0 {
		delete(h.rooms, c.userID)
	}
	h.logger.Debug("websocket client unregistered", slog.Int("user_id", c.userID))
}

// Connections возвращает число открытых соединений пользователя.
func (h *Hub) Connections(userID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}

// PublishToUser отправляет сообщение во все соединения пользователя.
// Медленный клиент с полным буфером пропускает сообщение.
func (h *Hub) PublishToUser(userID int, messageType string, payload interface{}) {
	data, err := json.Marshal(Message{Type: messageType, Payload: payload})
	if err != nil {
		h.logger.Error("failed to marshal websocket message", slog.String("type", messageType), slog.Any("error", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[userID] {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("websocket send buffer full, message dropped", slog.Int("user_id", userID), slog.String("type", messageType))
		}
	}
}

// Run ждёт отмены контекста и закрывает все соединения.
func (h *Hub) Run(ctx context.Context) error {
	<-ctx.Done()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for userID, room := range h.rooms {
		for c := range room {
			c.closeSend()
		}
		delete(h.rooms, userID)
	}
	h.logger.Info("websocket hub stopped")
	return nil
}

func (c *Client) closeSend() {
	c.once.Do(func() { close(c.send) })
}

// readPump нужен только для ping/pong и обнаружения закрытия; входящие сообщения игнорируются.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket closed unexpectedly", slog.Int("user_id", c.userID), slog.Any("error", err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Warn("websocket write failed", slog.Int("user_id", c.userID), slog.Any("error", err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
