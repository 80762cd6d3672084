package notifiers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/daniacca/bouncefield/internal/bounce"
	"github.com/gorilla/websocket"
)

// WebSocketNotifier streams frames as JSON text messages to WebSocket clients.
// Each client may subscribe to a single simulation; an empty subscription
// receives frames from every simulation.
type WebSocketNotifier struct {
	id         string
	mu         sync.RWMutex
	clients    map[*websocket.Conn]bounce.SimulationID
	upgrader   websocket.Upgrader
	broadcast  chan bounce.Frame
	register   chan subscription
	unregister chan *websocket.Conn
	done       chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup
}

type subscription struct {
	conn  *websocket.Conn
	simID bounce.SimulationID
}

// NewWebSocketNotifier creates a new WebSocket notifier
func NewWebSocketNotifier(id string) *WebSocketNotifier {
	notifier := &WebSocketNotifier{
		id:         id,
		clients:    make(map[*websocket.Conn]bounce.SimulationID),
		broadcast:  make(chan bounce.Frame, 256),
		register:   make(chan subscription),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	// Start the broadcaster goroutine
	notifier.wg.Add(1)
	go notifier.run()

	return notifier
}

// ID returns the notifier ID
func (wsn *WebSocketNotifier) ID() string {
	return wsn.id
}

// Type returns the notifier type
func (wsn *WebSocketNotifier) Type() string {
	return "websocket"
}

// RegisterClient registers a client connection subscribed to simID
func (wsn *WebSocketNotifier) RegisterClient(conn *websocket.Conn, simID bounce.SimulationID) {
	select {
	case wsn.register <- subscription{conn: conn, simID: simID}:
	case <-wsn.done:
		conn.Close()
	}
}

// UnregisterClient unregisters and closes a client connection
func (wsn *WebSocketNotifier) UnregisterClient(conn *websocket.Conn) {
	select {
	case wsn.unregister <- conn:
	case <-wsn.done:
	}
}

// ClientCount returns the number of connected clients
func (wsn *WebSocketNotifier) ClientCount() int {
	wsn.mu.RLock()
	defer wsn.mu.RUnlock()
	return len(wsn.clients)
}

// Serve upgrades the request and keeps the client subscribed to simID until
// it disconnects. Incoming messages are discarded.
func (wsn *WebSocketNotifier) Serve(w http.ResponseWriter, r *http.Request, simID bounce.SimulationID) error {
	conn, err := wsn.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade failed: %w", err)
	}

	wsn.RegisterClient(conn, simID)
	defer wsn.UnregisterClient(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

// Notify queues the frame for all subscribed clients
func (wsn *WebSocketNotifier) Notify(ctx context.Context, frame bounce.Frame) error {
	select {
	case <-wsn.done:
		return fmt.Errorf("notifier %s is closed", wsn.id)
	default:
	}

	select {
	case wsn.broadcast <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-wsn.done:
		return fmt.Errorf("notifier %s is closed", wsn.id)
	case <-time.After(1 * time.Second):
		return fmt.Errorf("notification queue full")
	}
}

// run handles client registration/unregistration and frame broadcasting
func (wsn *WebSocketNotifier) run() {
	defer wsn.wg.Done()
	for {
		select {
		case <-wsn.done:
			return

		case sub := <-wsn.register:
			if sub.conn == nil {
				continue
			}
			wsn.mu.Lock()
			wsn.clients[sub.conn] = sub.simID
			wsn.mu.Unlock()

		case conn := <-wsn.unregister:
			if conn == nil {
				continue
			}
			wsn.mu.Lock()
			if _, ok := wsn.clients[conn]; ok {
				delete(wsn.clients, conn)
				conn.Close()
			}
			wsn.mu.Unlock()

		case frame := <-wsn.broadcast:
			wsn.send(frame)
		}
	}
}

// send writes one frame to every client subscribed to its simulation
func (wsn *WebSocketNotifier) send(frame bounce.Frame) {
	jsonData, err := frame.JSON()
	if err != nil {
		return
	}

	// Collect connections first, writes happen outside the lock
	wsn.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(wsn.clients))
	for conn, simID := range wsn.clients {
		if simID == "" || simID == frame.SimulationID {
			conns = append(conns, conn)
		}
	}
	wsn.mu.RUnlock()

	var toRemove []*websocket.Conn
	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, jsonData); err != nil {
			toRemove = append(toRemove, conn)
			conn.Close()
		}
	}

	if len(toRemove) > 0 {
		wsn.mu.Lock()
		for _, conn := range toRemove {
			delete(wsn.clients, conn)
		}
		wsn.mu.Unlock()
	}
}

// Close closes all WebSocket connections and stops the goroutine. It is safe
// to call more than once.
func (wsn *WebSocketNotifier) Close() error {
	wsn.closeOnce.Do(func() {
		close(wsn.done)
		wsn.wg.Wait()

		wsn.mu.Lock()
		for conn := range wsn.clients {
			conn.Close()
			delete(wsn.clients, conn)
		}
		wsn.mu.Unlock()
	})
	return nil
}

