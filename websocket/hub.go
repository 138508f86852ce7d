package websocket

import (
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

// Client is one candidate socket, tied to the session its token named.
type Client struct {
	AttemptID uuid.UUID
	SessionID uuid.UUID
	Conn      *websocket.Conn
}

// Notice tells sockets of an attempt that their session may be gone.
// Sockets holding ActiveSessionID, if set, are left alone.
type Notice struct {
	AttemptID       uuid.UUID
	Status          string
	ActiveSessionID *uuid.UUID
}

type revokedMessage struct {
	Type      string `json:"type"`
	AttemptID string `json:"attemptId"`
	Status    string `json:"status"`
}

var (
	clients   = make(map[uuid.UUID]map[*websocket.Conn]uuid.UUID)
	clientsMu sync.RWMutex
)

var (
	Register   = make(chan *Client)
	Unregister = make(chan *Client)
	notices    = make(chan Notice, 64)
)

// NotifyAttempt queues a notice without blocking the request that produced
// it. Notices are dropped when the hub is saturated; clients still find out
// on their next request.
func NotifyAttempt(n Notice) {
	select {
	case notices <- n:
	default:
		log.Printf("⚠️ Websocket notice for attempt %s dropped, hub busy", n.AttemptID)
	}
}

// ConnectedCount reports how many sockets are open for an attempt.
func ConnectedCount(attemptID uuid.UUID) int {
	clientsMu.RLock()
	defer clientsMu.RUnlock()
	return len(clients[attemptID])
}

func RunHub() {
	for {
		select {
		case client := <-Register:
			clientsMu.Lock()
			if clients[client.AttemptID] == nil {
				clients[client.AttemptID] = make(map[*websocket.Conn]uuid.UUID)
			}
			clients[client.AttemptID][client.Conn] = client.SessionID
			clientsMu.Unlock()
			log.Printf("Socket registered for attempt %s session %s", client.AttemptID, client.SessionID)

		case client := <-Unregister:
			clientsMu.Lock()
			if conns, ok := clients[client.AttemptID]; ok {
				delete(conns, client.Conn)
				if len(conns) == 0 {
					delete(clients, client.AttemptID)
				}
			}
			clientsMu.Unlock()

		case n := <-notices:
			deliver(n)
		}
	}
}

const writeWait = 5 * time.Second

func deliver(n Notice) {
	stale := detach(n)
	if len(stale) == 0 {
		return
	}
	msg := revokedMessage{Type: "SESSION_REVOKED", AttemptID: n.AttemptID.String(), Status: n.Status}
	for _, conn := range stale {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("Error notifying socket for attempt %s: %v", n.AttemptID, err)
		}
		conn.Close()
	}
}

// detach removes from the registry every socket of the attempt the notice
// no longer allows, and returns them.
func detach(n Notice) []*websocket.Conn {
	clientsMu.Lock()
	defer clientsMu.Unlock()

	conns := clients[n.AttemptID]
	var stale []*websocket.Conn
	for conn, sessionID := range conns {
		if n.ActiveSessionID != nil && sessionID == *n.ActiveSessionID {
			continue
		}
		stale = append(stale, conn)
		delete(conns, conn)
	}
	if len(conns) == 0 {
		delete(clients, n.AttemptID)
	}
	return stale
}
