package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"dinepick/internal/metrics"
	"dinepick/pkg/interfaces"
	"dinepick/pkg/types"
)

// Registry tracks live connections and the rooms they subscribe to.
// It implements interfaces.Transport for the session engine.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]interfaces.Connection // connID -> Connection
	rooms       map[string]map[string]struct{}   // room -> connIDs
	memberOf    map[string]map[string]struct{}   // connID -> rooms
	logger      *slog.Logger
}

// NewRegistry creates a new connection registry
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		connections: make(map[string]interfaces.Connection),
		rooms:       make(map[string]map[string]struct{}),
		memberOf:    make(map[string]map[string]struct{}),
		logger:      logger.With("component", "registry"),
	}
}

// RegisterConnection adds a connection under its id.
func (r *Registry) RegisterConnection(conn interfaces.Connection) error {
	if conn == nil {
		return ErrNilConnection
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connections[conn.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateConnection, conn.ID())
	}
	r.connections[conn.ID()] = conn
	return nil
}

// UnregisterConnection removes a connection and all of its room subscriptions.
// RACE CONDITION FIX: Only removes the connection if it is the instance that
// is currently registered.
func (r *Registry) UnregisterConnection(conn interfaces.Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := conn.ID()
	registered, exists := r.connections[id]
	if !exists || registered != conn {
		return
	}
	delete(r.connections, id)

	for room := range r.memberOf[id] {
		r.removeMemberLocked(room, id)
	}
	delete(r.memberOf, id)
}

// gracefulCloser is a connection that can flush its queue before closing.
type gracefulCloser interface {
	CloseGracefully(timeout time.Duration) error
}

// CloseAll closes every registered connection, letting each write what is
// already queued for up to timeout. Their read pumps then run the usual
// disconnect path.
func (r *Registry) CloseAll(timeout time.Duration) int {
	r.mu.RLock()
	conns := make([]interfaces.Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func(conn interfaces.Connection) {
			defer wg.Done()
			if gc, ok := conn.(gracefulCloser); ok {
				_ = gc.CloseGracefully(timeout)
				return
			}
			_ = conn.Close()
		}(conn)
	}
	wg.Wait()
	return len(conns)
}

// GetConnection returns a registered connection.
func (r *Registry) GetConnection(connID string) (interfaces.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, exists := r.connections[connID]
	return conn, exists
}

// JoinRoom subscribes a registered connection to a room.
func (r *Registry) JoinRoom(room, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connections[connID]; !exists {
		return
	}
	if r.rooms[room] == nil {
		r.rooms[room] = make(map[string]struct{})
	}
	r.rooms[room][connID] = struct{}{}
	if r.memberOf[connID] == nil {
		r.memberOf[connID] = make(map[string]struct{})
	}
	r.memberOf[connID][room] = struct{}{}
}

// LeaveRoom unsubscribes a connection from a room.
func (r *Registry) LeaveRoom(room, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeMemberLocked(room, connID)
	if rooms, ok := r.memberOf[connID]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(r.memberOf, connID)
		}
	}
}

// CloseRoom drops every subscription of a room.
func (r *Registry) CloseRoom(room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for connID := range r.rooms[room] {
		if rooms, ok := r.memberOf[connID]; ok {
			delete(rooms, room)
			if len(rooms) == 0 {
				delete(r.memberOf, connID)
			}
		}
	}
	delete(r.rooms, room)
}

// RoomMembers returns the sorted connection ids subscribed to a room.
func (r *Registry) RoomMembers(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]string, 0, len(r.rooms[room]))
	for connID := range r.rooms[room] {
		members = append(members, connID)
	}
	sort.Strings(members)
	return members
}

// Broadcast encodes the event once and queues it on every room member.
// A member whose buffer is full is closed.
func (r *Registry) Broadcast(room, event string, payload interface{}) {
	data, err := encodeFrame(event, payload)
	if err != nil {
		r.logger.Error("failed to encode broadcast", "room", room, "event", event, "error", err)
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for connID := range r.rooms[room] {
		conn, ok := r.connections[connID]
		if !ok {
			continue
		}
		r.deliver(conn, event, data)
	}
}

// Send encodes the event and queues it on one connection.
func (r *Registry) Send(connID, event string, payload interface{}) error {
	data, err := encodeFrame(event, payload)
	if err != nil {
		return err
	}

	r.mu.RLock()
	conn, ok := r.connections[connID]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConnection, connID)
	}
	return r.deliver(conn, event, data)
}

func (r *Registry) deliver(conn interfaces.Connection, event string, data []byte) error {
	err := conn.Enqueue(data)
	if errors.Is(err, ErrSendBufferFull) {
		r.logger.Warn("dropping slow connection", "connection_id", conn.ID(), "event", event)
		metrics.ConnectionsDropped.WithLabelValues("slow_consumer").Inc()
		// Close asynchronously to avoid re-entering the registry lock.
		go func() {
			if closeErr := conn.Close(); closeErr != nil {
				r.logger.Debug("close after full buffer failed", "connection_id", conn.ID(), "error", closeErr)
			}
		}()
	}
	return err
}

// GetStats returns registry statistics for monitoring and debugging
func (r *Registry) GetStats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]int{
		"total_connections": len(r.connections),
		"active_rooms":      len(r.rooms),
	}
}

func (r *Registry) removeMemberLocked(room, connID string) {
	if members, ok := r.rooms[room]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
}

func encodeFrame(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(types.Frame{Event: event, Data: payload})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return data, nil
}
