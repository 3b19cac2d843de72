package realtime

import (
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"saldokonter/backend/internal/domain"
)

type TokenParser interface {
	ParseToken(token string) (domain.Actor, error)
}

// NewRouter serves GET /ws/shifts/{lokasi}?token=JWT. Workers may only watch
// their own location; admins may watch any location or ALL.
func NewRouter(hub *Hub, tokens TokenParser, allowedOrigin string) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowedOrigin == "*" || origin == allowedOrigin
		},
	}

	r := chi.NewRouter()
	r.Get("/ws/shifts/{lokasi}", func(w http.ResponseWriter, r *http.Request) {
		serveWS(hub, tokens, upgrader, w, r)
	})
	return r
}

func serveWS(hub *Hub, tokens TokenParser, upgrader websocket.Upgrader, w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	actor, err := tokens.ParseToken(tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	room := strings.ToUpper(chi.URLParam(r, "lokasi"))
	if room != RoomAll && !domain.IsLocation(room) {
		http.Error(w, "unknown location", http.StatusBadRequest)
		return
	}
	if actor.Role != domain.RoleAdmin && actor.Lokasi != room {
		http.Error(w, "location access denied", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[realtime] websocket upgrade error: %v", err)
		return
	}

	client := &Client{
		hub:  hub,
		conn: conn,
		room: room,
		send: make(chan []byte, 256),
	}
	if !hub.join(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
