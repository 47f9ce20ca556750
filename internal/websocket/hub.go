package websocket

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Hub struct {
	clients    map[int64]map[*Client]bool
	mu         sync.RWMutex
	Register   chan *Client
	Unregister chan *Client
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)
		case client := <-h.Unregister:
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.PrincipalID]; !ok {
		h.clients[client.PrincipalID] = make(map[*Client]bool)
	}
	h.clients[client.PrincipalID][client] = true
	log.Printf("Client for principal %d registered", client.PrincipalID)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if principalClients, ok := h.clients[client.PrincipalID]; ok {
		if _, ok := principalClients[client]; ok {
			delete(principalClients, client)
			close(client.send)
			if len(principalClients) == 0 {
				delete(h.clients, client.PrincipalID)
			}
			log.Printf("Client for principal %d unregistered", client.PrincipalID)
		}
	}
}

func (h *Hub) PublishEvent(principalID int64, eventData []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if principalClients, ok := h.clients[principalID]; ok {
		for client := range principalClients {
			select {
			case client.send <- eventData:
			default:
				log.Printf("WARN: Client for principal %d send buffer is full. Dropping message.", principalID)
			}
		}
	}
}
