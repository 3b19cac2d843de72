package realtime

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// RoomAll receives every event regardless of location. Admin dashboards join it.
const RoomAll = "ALL"

const (
	TableShifts        = "active_shifts"
	TableArchives      = "shift_archives"
	TableCatalog       = "catalog"
	TableFeeRules      = "fee_rules"
	TableStock         = "stock"
	TableStockRequests = "stock_requests"
)

// Event is one change notification. Payload is the full, current record so a
// viewer can replace its copy without re-fetching.
type Event struct {
	Table   string          `json:"table"`
	Lokasi  string          `json:"lokasi,omitempty"`
	Payload json.RawMessage `json:"payload"`
	At      time.Time       `json:"at"`
}

type roomEvent struct {
	room    string
	message []byte
}

type Hub struct {
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan roomEvent
	done       chan struct{}

	mu sync.RWMutex

	subMu       sync.RWMutex
	subscribers map[string][]func(Event)
}

func NewHub() *Hub {
	return &Hub{
		rooms:       make(map[string]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan roomEvent, 256),
		done:        make(chan struct{}),
		subscribers: make(map[string][]func(Event)),
	}
}

// Run owns room membership and fan-out until ctx is done. It must be called
// once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.room] == nil {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			for client := range h.rooms[event.room] {
				select {
				case client.send <- event.message:
				default:
					// slow consumer
					h.removeLocked(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// join hands client to Run. It reports false once Run has returned.
func (h *Hub) join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.rooms[client.room]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.room)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.rooms {
		for client := range clients {
			h.removeLocked(client)
		}
	}
}

// OnChange registers fn for every event published on table. Subscribers run
// synchronously inside Publish, before the event reaches any socket.
func (h *Hub) OnChange(table string, fn func(Event)) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	h.subscribers[table] = append(h.subscribers[table], fn)
}

// Publish sends payload to the lokasi room and to RoomAll. An empty lokasi
// reaches RoomAll only. A full broadcast queue drops the event.
func (h *Hub) Publish(table string, lokasi string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[realtime] WARN: marshal %s event: %v", table, err)
		return
	}
	event := Event{Table: table, Lokasi: lokasi, Payload: raw, At: time.Now().UTC()}

	h.subMu.RLock()
	subscribers := append([]func(Event){}, h.subscribers[table]...)
	h.subMu.RUnlock()
	for _, fn := range subscribers {
		fn(event)
	}

	message, err := json.Marshal(event)
	if err != nil {
		log.Printf("[realtime] WARN: marshal %s envelope: %v", table, err)
		return
	}
	rooms := []string{RoomAll}
	if lokasi != "" && lokasi != RoomAll {
		rooms = append(rooms, lokasi)
	}
	for _, room := range rooms {
		select {
		case h.broadcast <- roomEvent{room: room, message: message}:
		default:
			log.Printf("[realtime] WARN: broadcast queue full, dropped %s event for %s", table, room)
		}
	}
}
