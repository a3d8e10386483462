package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/quizroom/quizroom/internal/identity"
	"github.com/rs/zerolog/log"
)

// EventHandler receives parsed frames and disconnects from connections.
type EventHandler interface {
	HandleEvent(conn *Connection, data []byte)
	HandleDisconnect(conn *Connection)
}

// ConnectionManager manages WebSocket connections and the per-room pub/sub
// channels. A connection subscribes to a room when it joins and unsubscribes
// when it leaves, disconnects, or the room is dropped.
type ConnectionManager struct {
	roomConnections map[string]map[*Connection]bool
	connRoom        map[*Connection]string
	mu              sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan BroadcastMessage
}

// Connection represents a WebSocket connection to an identified client.
type Connection struct {
	ID       string
	Identity identity.Identity
	Send     chan []byte

	conn    *websocket.Conn
	manager *ConnectionManager
	handler EventHandler

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage represents a message to fan out to a room's subscribers.
type BroadcastMessage struct {
	Room    string
	Event   *Event
	Exclude *Connection // optional: skip the originating connection
}

// DefaultConnectionConfig returns default WebSocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		roomConnections: make(map[string]map[*Connection]bool),
		connRoom:        make(map[*Connection]string),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
}

// Start begins processing broadcast messages.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket for an already
// identified client and starts its pumps.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, ident identity.Identity, handler EventHandler) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Identity:    ident,
		Send:        make(chan []byte, 256),
		conn:        conn,
		manager:     cm,
		handler:     handler,
		ConnectedAt: time.Now(),
	}

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("username", ident.Username).
		Str("role", string(ident.Role)).
		Msg("WebSocket connection established")

	return nil
}

// Subscribe adds the connection to a room's channel, moving it out of any
// previous room first.
func (cm *ConnectionManager) Subscribe(room string, conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if prev, ok := cm.connRoom[conn]; ok && prev != room {
		cm.removeLocked(prev, conn)
	}
	if cm.roomConnections[room] == nil {
		cm.roomConnections[room] = make(map[*Connection]bool)
	}
	cm.roomConnections[room][conn] = true
	cm.connRoom[conn] = room

	log.Debug().
		Str("connection_id", conn.ID).
		Str("room", room).
		Int("subscribers", len(cm.roomConnections[room])).
		Msg("connection subscribed")
}

// Unsubscribe removes the connection from its current room, reporting which
// room it was in.
func (cm *ConnectionManager) Unsubscribe(conn *Connection) (string, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	room, ok := cm.connRoom[conn]
	if !ok {
		return "", false
	}
	cm.removeLocked(room, conn)
	return room, true
}

// RoomOf reports which room the connection is subscribed to.
func (cm *ConnectionManager) RoomOf(conn *Connection) (string, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	room, ok := cm.connRoom[conn]
	return room, ok
}

// DropRoom force-unsubscribes every connection from the room's channel.
func (cm *ConnectionManager) DropRoom(room string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for conn := range cm.roomConnections[room] {
		delete(cm.connRoom, conn)
	}
	delete(cm.roomConnections, room)

	log.Debug().Str("room", room).Msg("room channel dropped")
}

func (cm *ConnectionManager) removeLocked(room string, conn *Connection) {
	if connections, ok := cm.roomConnections[room]; ok {
		delete(connections, conn)
		if len(connections) == 0 {
			delete(cm.roomConnections, room)
		}
	}
	delete(cm.connRoom, conn)
}

// Broadcast sends an event to all connections subscribed to a room.
func (cm *ConnectionManager) Broadcast(room string, event *Event) {
	select {
	case cm.broadcastCh <- BroadcastMessage{Room: room, Event: event}:
	default:
		log.Warn().Str("room", room).Msg("broadcast channel full, dropping message")
	}
}

// BroadcastExcept sends an event to every subscriber except the originating
// connection.
func (cm *ConnectionManager) BroadcastExcept(room string, event *Event, except *Connection) {
	select {
	case cm.broadcastCh <- BroadcastMessage{Room: room, Event: event, Exclude: except}:
	default:
		log.Warn().Str("room", room).Msg("broadcast channel full, dropping message")
	}
}

// SendTo delivers an event privately to one connection.
func (cm *ConnectionManager) SendTo(conn *Connection, event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal private event")
		return
	}
	conn.deliver(data)
}

// handleBroadcast processes one fan-out.
func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	connections, exists := cm.roomConnections[message.Room]
	if !exists {
		cm.mu.RUnlock()
		return
	}

	// Snapshot so the lock is not held while writing
	targets := make([]*Connection, 0, len(connections))
	for conn := range connections {
		if conn == message.Exclude {
			continue
		}
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	data, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targets {
		conn.deliver(data)
	}

	log.Debug().
		Str("event_type", string(message.Event.Type)).
		Str("room", message.Room).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

// deliver pushes raw data onto the connection's send queue, closing slow or
// dead connections instead of blocking the fan-out.
func (c *Connection) deliver(data []byte) {
	select {
	case c.Send <- data:
	default:
		log.Warn().
			Str("connection_id", c.ID).
			Str("username", c.Identity.Username).
			Msg("connection send buffer full, closing connection")
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

// writePump handles sending messages to the WebSocket connection.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump reads client frames and hands them to the event handler.
func (c *Connection) readPump() {
	defer func() {
		c.handler.HandleDisconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.manager.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handler.HandleEvent(c, message)
		c.conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	}
}
