package broadcaster

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/goevery/sitepush/internal/ierr"
	"github.com/goevery/sitepush/internal/notification"
	"go.uber.org/zap"
)

// Notifier is the surface offered to notification producers. Delivery is
// best effort: failures are handled inside the registry and never reported.
type Notifier interface {
	SendToUser(userId string, n notification.Notification)
	SendToUsers(userIds []string, n notification.Notification)
	Broadcast(n notification.Notification)
}

type Registry interface {
	Notifier

	Open(userId string, stream Stream) (*Connection, error)
	Close(userId string)
	Release(connection *Connection)

	ActiveConnectionCount() int
	ConnectedUserIds() []string
}

type InMemoryRegistry struct {
	logger  *zap.Logger
	options Options
	mu      sync.RWMutex

	connections map[string]*Connection
}

func NewInMemoryRegistry(
	logger *zap.Logger,
	options Options,
) *InMemoryRegistry {
	return &InMemoryRegistry{
		logger:      logger,
		options:     options,
		connections: make(map[string]*Connection),
	}
}

// Open registers stream for userId after writing the connected
// acknowledgement, and starts its heartbeat.
func (r *InMemoryRegistry) Open(userId string, stream Stream) (*Connection, error) {
	if r.options.DuplicatePolicy == RejectDuplicate && r.isConnected(userId) {
		return nil, r.rejectDuplicate(userId)
	}

	connection := newConnection(userId, stream)

	ack, err := json.Marshal(notification.Connected(time.Now()))
	if err != nil {
		return nil, err
	}

	if err := connection.send(ack); err != nil {
		connection.close()

		return nil, ierr.New(ierr.ErrorCodeUnavailable, fmt.Errorf("failed to acknowledge connection: %w", err))
	}

	r.mu.Lock()

	previous, replaced := r.connections[userId]
	if replaced && r.options.DuplicatePolicy == RejectDuplicate {
		r.mu.Unlock()
		connection.close()

		return nil, r.rejectDuplicate(userId)
	}

	r.connections[userId] = connection
	count := len(r.connections)

	r.mu.Unlock()

	if replaced {
		r.logger.Info("replacing previous connection",
			zap.String("userId", userId),
			zap.String("previousConnectionId", previous.Id),
			zap.String("connectionId", connection.Id))

		if err := previous.close(); err != nil {
			r.logger.Warn("failed to close previous connection",
				zap.String("connectionId", previous.Id),
				zap.Error(err))
		}
	}

	r.logger.Info("client connected",
		zap.String("userId", userId),
		zap.String("connectionId", connection.Id),
		zap.Int("activeConnections", count))

	if r.options.HeartbeatInterval > 0 {
		go r.keepAlive(connection)
	}

	return connection, nil
}

// Close removes whatever connection is registered for userId. Absent users
// are ignored.
func (r *InMemoryRegistry) Close(userId string) {
	r.mu.Lock()
	connection, ok := r.connections[userId]
	if ok {
		delete(r.connections, userId)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	r.closeConnection(connection)
}

// Release removes connection only while it is still the registered one, so
// the cleanup of a replaced connection cannot evict its successor.
func (r *InMemoryRegistry) Release(connection *Connection) {
	r.mu.Lock()
	current, ok := r.connections[connection.UserId]
	registered := ok && current == connection
	if registered {
		delete(r.connections, connection.UserId)
	}
	r.mu.Unlock()

	if registered {
		r.closeConnection(connection)

		return
	}

	connection.close()
}

// Shutdown closes every connection so that long-lived stream handlers return
// and the HTTP server can drain.
func (r *InMemoryRegistry) Shutdown() {
	r.mu.Lock()
	connections := r.connections
	r.connections = make(map[string]*Connection)
	r.mu.Unlock()

	for _, connection := range connections {
		r.closeConnection(connection)
	}
}

func (r *InMemoryRegistry) SendToUser(userId string, n notification.Notification) {
	payload, ok := r.encode(n)
	if !ok {
		return
	}

	r.sendPayload(userId, n.Type, payload)
}

func (r *InMemoryRegistry) SendToUsers(userIds []string, n notification.Notification) {
	payload, ok := r.encode(n)
	if !ok {
		return
	}

	for _, userId := range userIds {
		r.sendPayload(userId, n.Type, payload)
	}
}

func (r *InMemoryRegistry) Broadcast(n notification.Notification) {
	payload, ok := r.encode(n)
	if !ok {
		return
	}

	r.mu.RLock()
	connections := slices.Collect(maps.Values(r.connections))
	r.mu.RUnlock()

	sent, failed := 0, 0

	for _, connection := range connections {
		if r.deliver(connection, payload) {
			sent++
		} else {
			failed++
		}
	}

	r.logger.Info("broadcast complete",
		zap.String("type", n.Type.String()),
		zap.Int("sent", sent),
		zap.Int("failed", failed))
}

func (r *InMemoryRegistry) ActiveConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.connections)
}

func (r *InMemoryRegistry) ConnectedUserIds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.connections))
}

func (r *InMemoryRegistry) sendPayload(userId string, notificationType notification.Type, payload []byte) {
	r.mu.RLock()
	connection, ok := r.connections[userId]
	r.mu.RUnlock()

	if !ok {
		return
	}

	if r.deliver(connection, payload) {
		r.logger.Debug("notification sent",
			zap.String("userId", userId),
			zap.String("type", notificationType.String()))
	}
}

// deliver writes payload and drops the connection when the write fails.
func (r *InMemoryRegistry) deliver(connection *Connection, payload []byte) bool {
	err := connection.send(payload)
	if err == nil {
		return true
	}

	if errors.Is(err, errConnectionClosed) {
		return false
	}

	r.logger.Warn("failed to write notification, dropping connection",
		zap.String("userId", connection.UserId),
		zap.String("connectionId", connection.Id),
		zap.Error(err))

	r.Release(connection)

	return false
}

func (r *InMemoryRegistry) keepAlive(connection *Connection) {
	ticker := time.NewTicker(r.options.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-connection.Done():
			return
		case <-ticker.C:
			err := connection.heartbeat()
			if err == nil {
				continue
			}

			if !errors.Is(err, errConnectionClosed) {
				r.logger.Warn("heartbeat failed, dropping connection",
					zap.String("userId", connection.UserId),
					zap.String("connectionId", connection.Id),
					zap.Error(err))

				r.Release(connection)
			}

			return
		}
	}
}

func (r *InMemoryRegistry) encode(n notification.Notification) ([]byte, bool) {
	payload, err := json.Marshal(n)
	if err != nil {
		r.logger.Error("failed to encode notification",
			zap.String("type", n.Type.String()),
			zap.Error(err))

		return nil, false
	}

	return payload, true
}

func (r *InMemoryRegistry) isConnected(userId string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.connections[userId]

	return ok
}

func (r *InMemoryRegistry) rejectDuplicate(userId string) error {
	r.logger.Info("rejecting duplicate connection", zap.String("userId", userId))

	return ierr.New(ierr.ErrorCodeAlreadyExists, errors.New("user already has an open connection"))
}

// IMPORTANT: the connection must already be removed from the map.
func (r *InMemoryRegistry) closeConnection(connection *Connection) {
	if err := connection.close(); err != nil {
		r.logger.Warn("failed to close connection",
			zap.String("connectionId", connection.Id),
			zap.Error(err))
	}

	r.logger.Info("client disconnected",
		zap.String("userId", connection.UserId),
		zap.String("connectionId", connection.Id),
		zap.Int("activeConnections", r.ActiveConnectionCount()))
}
