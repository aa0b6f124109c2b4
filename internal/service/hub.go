package service

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/Mokona5901/ChatApp/internal/metrics"
	"github.com/Mokona5901/ChatApp/internal/model"

	"github.com/gofiber/contrib/websocket"
)

// Client is one authenticated realtime connection. Username is bound at
// connect time and never changes; Channel is mutated only through
// Hub.SetChannel so a connection is never in two channels at once.
type Client struct {
	Conn     *websocket.Conn
	UserID   string
	Username string
	Channel  string
	Send     chan []byte
}

// Hub is the process-wide connection registry and channel membership
// router. Channel membership is not persisted anywhere; it is derived
// from the live Channel field of each registered client.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	mu         sync.RWMutex
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.ConnectionsActive.Inc()
			log.Printf("[Hub] %s connected (total: %d)", client.Username, h.OnlineCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				metrics.ConnectionsActive.Dec()
			}
			h.mu.Unlock()
			log.Printf("[Hub] %s disconnected (total: %d)", client.Username, h.OnlineCount())

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					// Slow client: drop it rather than block the hub.
					close(client.Send)
					delete(h.clients, client)
					metrics.ConnectionsActive.Dec()
				}
			}
			h.mu.Unlock()

		case <-h.done:
			return
		}
	}
}

func (h *Hub) Shutdown() {
	close(h.done)
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// SetChannel moves the client to a new channel. Leaving the old channel
// and joining the new one is a single write under the hub lock, so a
// concurrent broadcast sees the client in exactly one of the two.
func (h *Hub) SetChannel(client *Client, channel string) {
	h.mu.Lock()
	client.Channel = channel
	h.mu.Unlock()
}

// Broadcast delivers the event to every registered connection regardless
// of channel. Used for edits, deletes and presence snapshots.
func (h *Hub) Broadcast(event *model.WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	metrics.BroadcastsSent.WithLabelValues(event.Type).Inc()
	h.broadcast <- data
}

// BroadcastToChannel delivers the event to the connections whose current
// channel matches at the time of the call.
func (h *Hub) BroadcastToChannel(channel string, event *model.WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	metrics.BroadcastsSent.WithLabelValues(event.Type).Inc()

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.Channel == channel {
			select {
			case client.Send <- data:
			default:
			}
		}
	}
}

// SendTo delivers an event to a single client, dropping it if the
// client's buffer is full. The membership check under the lock keeps
// the send off a channel the hub has already closed: eviction and
// unregister both close Send while holding the write lock.
func (h *Hub) SendTo(client *Client, event *model.WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.clients[client] {
		return
	}
	select {
	case client.Send <- data:
	default:
	}
}

func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
