// Package websocket fans companion state changes out to connected browsers.
package websocket

import (
	"context"
	"log"
	"sort"
	"sync"
)

// Hub maintains the set of active clients and broadcasts messages to the
// ones subscribed to each message's topic.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu sync.RWMutex
}

type outbound struct {
	topic string
	data  []byte
}

// NewHub creates a new hub. Call Run to start delivering.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run is the hub's event loop. It returns when ctx is cancelled, closing
// every client's send channel.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for client := range h.clients {
			client.close()
			delete(h.clients, client)
		}
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client connected (total: %d)", n)

		case client := <-h.unregister:
			h.mu.Lock()
			if h.clients[client] {
				delete(h.clients, client)
				client.close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client disconnected (total: %d)", n)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.Wants(msg.topic) {
					continue
				}
				if !client.deliver(msg.data) {
					// Slow consumer; drop it rather than stall everyone else.
					client.close()
					delete(h.clients, client)
					log.Printf("WebSocket client dropped: send buffer full")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues data for every client subscribed to topic.
func (h *Hub) Broadcast(topic string, data []byte) {
	select {
	case h.broadcast <- outbound{topic: topic, data: data}:
	default:
		log.Println("Broadcast channel full, dropping message")
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client is one websocket connection's view of the hub.
type Client struct {
	hub  *Hub
	send chan []byte

	mu     sync.Mutex
	topics map[string]bool
	closed bool
}

// NewClient creates a client subscribed to every topic.
func NewClient(hub *Hub) *Client {
	return &Client{
		hub:    hub,
		send:   make(chan []byte, 256),
		topics: make(map[string]bool),
	}
}

// Send returns the channel the write pump drains. It is closed when the hub
// drops the client.
func (c *Client) Send() <-chan []byte {
	return c.send
}

// Subscribe restricts delivery to the given topics, in addition to any
// already subscribed. It returns the resulting subscription set.
func (c *Client) Subscribe(topics ...string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		if t != "" {
			c.topics[t] = true
		}
	}
	return c.topicsLocked()
}

// Unsubscribe removes topics. A client with no topics receives everything.
func (c *Client) Unsubscribe(topics ...string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		delete(c.topics, t)
	}
	return c.topicsLocked()
}

// Wants reports whether a message on topic should reach the client.
func (c *Client) Wants(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.topics) == 0 || c.topics[topic]
}

// Reply queues data for this client only. It reports false when the client
// is gone or its buffer is full.
func (c *Client) Reply(data []byte) bool {
	return c.deliver(data)
}

func (c *Client) deliver(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
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

func (c *Client) topicsLocked() []string {
	out := make([]string, 0, len(c.topics))
	for t := range c.topics {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
