package http

import (
	"encoding/json"
	"log"
	"sync"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// Hub implements app.Broadcaster over per-connection send channels. Each
// websocket connection registers once; its writer goroutine drains the
// channel. Sends never block: a connection with a full buffer is evicted
// rather than allowed to stall a broadcast.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]chan []byte
	rooms   map[app.Room]map[string]bool
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]chan []byte),
		rooms:   make(map[app.Room]map[string]bool),
	}
}

const sendBuffer = 32

// Register adds a connection and returns the channel its writer drains.
func (h *Hub) Register(connID string) <-chan []byte {
	ch := make(chan []byte, sendBuffer)
	h.mu.Lock()
	h.clients[connID] = ch
	h.mu.Unlock()
	return ch
}

// Unregister removes the connection from all rooms and closes its channel.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(connID)
}

func (h *Hub) Broadcast(room app.Room, event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("marshal event %s: %v", event.Type, err)
		return
	}

	var dead []string
	h.mu.RLock()
	for connID := range h.rooms[room] {
		ch, ok := h.clients[connID]
		if !ok {
			continue
		}
		select {
		case ch <- data:
		default:
			dead = append(dead, connID)
		}
	}
	h.mu.RUnlock()

	if len(dead) > 0 {
		h.mu.Lock()
		for _, connID := range dead {
			h.removeLocked(connID)
			log.Printf("removed stalled connection %s", connID)
		}
		h.mu.Unlock()
	}
}

func (h *Hub) Send(connID string, event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("marshal event %s: %v", event.Type, err)
		return
	}

	// The send happens under the read lock: removeLocked closes channels
	// under the write lock, so the channel cannot close mid-send.
	stalled := false
	h.mu.RLock()
	if ch, ok := h.clients[connID]; ok {
		select {
		case ch <- data:
		default:
			stalled = true
		}
	}
	h.mu.RUnlock()

	if stalled {
		h.mu.Lock()
		h.removeLocked(connID)
		h.mu.Unlock()
		log.Printf("removed stalled connection %s", connID)
	}
}

func (h *Hub) Subscribe(connID string, room app.Room) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[connID]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]bool)
		h.rooms[room] = members
	}
	members[connID] = true
}

func (h *Hub) InRoom(connID string, room app.Room) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[room][connID]
}

func (h *Hub) removeLocked(connID string) {
	ch, ok := h.clients[connID]
	if !ok {
		return
	}
	delete(h.clients, connID)
	for _, members := range h.rooms {
		delete(members, connID)
	}
	close(ch)
}
