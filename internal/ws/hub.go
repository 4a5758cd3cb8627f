package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Client is one websocket connection. Writes are serialized.
type Client struct {
	conn *websocket.Conn
	info ConnInfo
	mu   sync.Mutex
}

func newClient(conn *websocket.Conn, info ConnInfo) *Client {
	return &Client{conn: conn, info: info}
}

// WriteJSON sends v as one text frame.
func (c *Client) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// Close sends a close frame with reason and closes the connection.
func (c *Client) Close(code int, reason string) {
	if c.conn == nil {
		return
	}
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
	_ = c.conn.Close()
}

// Hub tracks the open room connections.
type Hub struct {
	rooms map[string]map[*Client]struct{}
	mu    sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]struct{})}
}

// Add registers a connection under its room.
func (h *Hub) Add(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	roomID := client.info.RoomID
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]struct{})
	}
	h.rooms[roomID][client] = struct{}{}
}

// Remove unregisters a connection.
func (h *Hub) Remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	roomID := client.info.RoomID
	if clients, ok := h.rooms[roomID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Count returns the number of connections open on roomID.
func (h *Hub) Count(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Total returns the number of open connections.
func (h *Hub) Total() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, clients := range h.rooms {
		total += len(clients)
	}
	return total
}

// CloseAll closes every connection, for example on shutdown. Each
// connection's own read loop performs the cleanup.
func (h *Hub) CloseAll(reason string) {
	h.mu.RLock()
	var clients []*Client
	for _, room := range h.rooms {
		for client := range room {
			clients = append(clients, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.Close(websocket.CloseGoingAway, reason)
	}
}
