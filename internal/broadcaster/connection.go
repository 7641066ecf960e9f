package broadcaster

import (
	"errors"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Stream is the transport side of a connection. Implementations need not be
// safe for concurrent use; the connection serializes every call.
type Stream interface {
	Send(payload []byte) error
	Heartbeat() error
	Close() error
}

var errConnectionClosed = errors.New("connection closed")

type Connection struct {
	Id     string
	UserId string

	mu     sync.Mutex
	stream Stream
	closed bool
	done   chan struct{}
}

func newConnection(userId string, stream Stream) *Connection {
	return &Connection{
		Id:     gonanoid.Must(),
		UserId: userId,
		stream: stream,
		done:   make(chan struct{}),
	}
}

// Done is closed once the connection leaves the registry. Transport handlers
// block on it to know when to end the response.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

func (c *Connection) send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errConnectionClosed
	}

	return c.stream.Send(payload)
}

func (c *Connection) heartbeat() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errConnectionClosed
	}

	return c.stream.Heartbeat()
}

// close waits for any in-flight write, so nothing touches the stream after
// it returns.
func (c *Connection) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	close(c.done)

	return c.stream.Close()
}
