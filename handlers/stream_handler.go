package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"friendZoneAPI/internal/reconcile"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type ViewWatcher interface {
	Watch(ownerID string) (<-chan *reconcile.View, func())
}

type StreamHandler struct {
	views    ViewSource
	watchers ViewWatcher
}

func NewStreamHandler(views ViewSource, watchers ViewWatcher) *StreamHandler {
	return &StreamHandler{views: views, watchers: watchers}
}

// GET /api/v1/friends/stream upgrades to a websocket that receives the
// current friends view and then every newer one.
func (h *StreamHandler) StreamFriends(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	// Subscribe before reading so no change between the two is lost.
	updates, stop := h.watchers.Watch(userID)
	defer stop()

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	initial, err := h.views.View(ctx, userID)
	cancel()
	if err != nil {
		respondWithServiceError(w, "StreamFriends", err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("StreamFriends: could not upgrade connection: %v", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go readPump(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	var last *reconcile.View
	send := func(view *reconcile.View) bool {
		if last != nil && view.Seq <= last.Seq {
			return true
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(view); err != nil {
			return false
		}
		last = view
		return true
	}

	if !send(initial) {
		return
	}

	for {
		select {
		case view, ok := <-updates:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !send(view) {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-closed:
			return
		}
	}
}

// readPump consumes control frames until the peer goes away.
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("StreamFriends: read error: %v", err)
			}
			return
		}
	}
}
