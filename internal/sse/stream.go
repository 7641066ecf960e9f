package sse

import (
	"errors"
	"net/http"
	"time"
)

const heartbeatComment = "heartbeat"

// Stream writes framed events to a live response. The event-stream headers
// are set by the first write. It is not safe for concurrent use; callers
// serialize writes.
type Stream struct {
	w            http.ResponseWriter
	controller   *http.ResponseController
	writeTimeout time.Duration
	started      bool
}

func NewStream(w http.ResponseWriter, writeTimeout time.Duration) *Stream {
	return &Stream{
		w:            w,
		controller:   http.NewResponseController(w),
		writeTimeout: writeTimeout,
	}
}

func (s *Stream) Send(payload []byte) error {
	return s.write(Event(payload))
}

func (s *Stream) Heartbeat() error {
	return s.write(Comment(heartbeatComment))
}

// Started reports whether any bytes reached the response, after which the
// status code can no longer change.
func (s *Stream) Started() bool {
	return s.started
}

// Close is a no-op; the response ends when the handler returns.
func (s *Stream) Close() error {
	return nil
}

func (s *Stream) write(frame []byte) error {
	if s.writeTimeout > 0 {
		err := s.controller.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		if err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
	}

	if !s.started {
		PrepareHeaders(s.w)
		s.started = true
	}

	if _, err := s.w.Write(frame); err != nil {
		return err
	}

	return s.controller.Flush()
}
