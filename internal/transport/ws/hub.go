// Package ws provides live watching of a run's events over WebSocket.
package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/equalcollective/xray/domain"
)

// Connection represents a single watcher connection, bound to one run.
type Connection struct {
	ID    string
	RunID string
	Conn  *websocket.Conn
	Send  chan []byte
	mu    sync.Mutex
}

// Hub manages watcher connections and fans ingested events out to them.
// Fanout is best-effort: a watcher whose send buffer is full gets closed,
// it never backpressures the ingest path.
type Hub struct {
	connections map[string]*Connection

	// runs maps run_id to the set of connection IDs watching it
	runs map[string]map[string]bool

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *runMessage

	mu sync.RWMutex
}

type runMessage struct {
	RunID string
	Data  []byte
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		runs:        make(map[string]map[string]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan *runMessage, 256),
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.ID] = conn
			if h.runs[conn.RunID] == nil {
				h.runs[conn.RunID] = make(map[string]bool)
			}
			h.runs[conn.RunID][conn.ID] = true
			h.mu.Unlock()
			log.Printf("INFO: watcher %s registered for run %s", conn.ID, conn.RunID)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn.ID]; ok {
				delete(h.connections, conn.ID)
				if h.runs[conn.RunID] != nil {
					delete(h.runs[conn.RunID], conn.ID)
					if len(h.runs[conn.RunID]) == 0 {
						delete(h.runs, conn.RunID)
					}
				}
				close(conn.Send)
			}
			h.mu.Unlock()
			log.Printf("INFO: watcher %s unregistered", conn.ID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for connID := range h.runs[msg.RunID] {
				conn, exists := h.connections[connID]
				if !exists {
					continue
				}
				select {
				case conn.Send <- msg.Data:
				default:
					// Buffer full, close the connection
					log.Printf("WARN: watcher %s buffer full, closing", connID)
					go h.Unregister(conn)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// NewConnection creates a connection watching the given run.
func (h *Hub) NewConnection(ws *websocket.Conn, runID string) *Connection {
	return &Connection{
		ID:    uuid.New().String(),
		RunID: runID,
		Conn:  ws,
		Send:  make(chan []byte, 256),
	}
}

// Register registers a connection with the hub.
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister unregisters a connection from the hub.
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// NotifyRunEvent implements the service notifier: a stored event is fanned
// out to every watcher of its run. Non-blocking; dropped when the hub's
// broadcast queue is full.
func (h *Hub) NotifyRunEvent(runID string, event domain.IngestEvent) {
	h.mu.RLock()
	watched := len(h.runs[runID]) > 0
	h.mu.RUnlock()
	if !watched {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("WARN: failed to marshal watch event: %v", err)
		return
	}

	select {
	case h.broadcast <- &runMessage{RunID: runID, Data: data}:
	default:
		log.Printf("WARN: watch broadcast queue full, dropping event for run %s", runID)
	}
}

// WatcherCount reports how many connections are watching a run.
func (h *Hub) WatcherCount(runID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.runs[runID])
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// Close closes the connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}
