// Package realtime pushes negotiation transitions to connected parties
// over WebSocket, one room per trip.
package realtime

import (
	"sync"

	"go.uber.org/zap"

	"github.com/movaride/negotiation/pkg/logger"
)

// MessageHandler processes one inbound client frame.
type MessageHandler func(client *Client, msg *Message)

// Hub tracks connected clients and trip rooms, and fans messages out to
// them. All membership mutations flow through Run's channels or the
// guarded helper methods.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan *Message

	mu       sync.RWMutex
	clients  map[string]*Client
	trips    map[string]map[string]*Client
	handlers map[string]MessageHandler

	// onDisconnect runs after a client is removed, outside the lock.
	onDisconnect func(clientID string)
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan *Message, 256),
		clients:    make(map[string]*Client),
		trips:      make(map[string]map[string]*Client),
		handlers:   make(map[string]MessageHandler),
	}
}

// OnDisconnect registers a cleanup callback invoked with the client id
// after each unregistration. Set before Run starts.
func (h *Hub) OnDisconnect(fn func(clientID string)) {
	h.onDisconnect = fn
}

// Run processes registrations and broadcasts until the process exits.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)
		case client := <-h.Unregister:
			h.unregisterClient(client)
		case msg := <-h.Broadcast:
			if msg.TripID != "" {
				h.SendToTrip(msg.TripID, msg)
			} else {
				h.SendToAll(msg)
			}
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	if existing, ok := h.clients[client.ID]; ok && existing != client {
		close(existing.Send)
		h.removeFromTripLocked(existing)
	}
	h.clients[client.ID] = client
	h.mu.Unlock()

	logger.Debug("websocket client registered",
		zap.String("client_id", client.ID), zap.String("role", client.Role))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	current, ok := h.clients[client.ID]
	if ok && current == client {
		delete(h.clients, client.ID)
		close(client.Send)
		h.removeFromTripLocked(client)
	}
	h.mu.Unlock()

	if ok && h.onDisconnect != nil {
		h.onDisconnect(client.ID)
	}
}

func (h *Hub) removeFromTripLocked(client *Client) {
	tripID := client.GetTrip()
	if tripID == "" {
		return
	}
	if room, ok := h.trips[tripID]; ok {
		delete(room, client.ID)
		if len(room) == 0 {
			delete(h.trips, tripID)
		}
	}
	client.setTrip("")
}

// AddClientToTrip places a registered client into a trip room, leaving
// any previous room first.
func (h *Hub) AddClientToTrip(clientID, tripID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[clientID]
	if !ok {
		return
	}
	h.removeFromTripLocked(client)

	room, ok := h.trips[tripID]
	if !ok {
		room = make(map[string]*Client)
		h.trips[tripID] = room
	}
	room[clientID] = client
	client.setTrip(tripID)
}

// RemoveClientFromTrip takes a client out of a trip room.
func (h *Hub) RemoveClientFromTrip(clientID, tripID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[clientID]
	if !ok || client.GetTrip() != tripID {
		return
	}
	h.removeFromTripLocked(client)
}

// SendToUser delivers a message to one connected client, if present.
func (h *Hub) SendToUser(clientID string, msg *Message) {
	h.mu.RLock()
	client, ok := h.clients[clientID]
	h.mu.RUnlock()
	if ok {
		client.SendMessage(msg)
	}
}

// SendToTrip delivers a message to every client in a trip room.
func (h *Hub) SendToTrip(tripID string, msg *Message) {
	for _, client := range h.GetClientsInTrip(tripID) {
		client.SendMessage(msg)
	}
}

// SendToAll delivers a message to every connected client.
func (h *Hub) SendToAll(msg *Message) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.SendMessage(msg)
	}
}

// GetClient returns a connected client by id.
func (h *Hub) GetClient(clientID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[clientID]
	return client, ok
}

// GetClientsInTrip returns the members of a trip room.
func (h *Hub) GetClientsInTrip(tripID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room := h.trips[tripID]
	clients := make([]*Client, 0, len(room))
	for _, client := range room {
		clients = append(clients, client)
	}
	return clients
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetTripCount returns the number of active trip rooms.
func (h *Hub) GetTripCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.trips)
}

// RegisterHandler binds a handler to an inbound message type.
func (h *Hub) RegisterHandler(msgType string, handler MessageHandler) {
	h.mu.Lock()
	h.handlers[msgType] = handler
	h.mu.Unlock()
}

// HandleMessage routes an inbound frame to its registered handler.
func (h *Hub) HandleMessage(client *Client, msg *Message) {
	h.mu.RLock()
	handler, ok := h.handlers[msg.Type]
	h.mu.RUnlock()

	if !ok {
		logger.Debug("unhandled websocket message type",
			zap.String("type", msg.Type), zap.String("client_id", client.ID))
		return
	}
	handler(client, msg)
}
