package server

import (
	"errors"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/goevery/sitepush/internal/broadcaster"
	"github.com/goevery/sitepush/internal/ierr"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type OriginChecker struct {
	allowedOrigins []string
}

// NewOriginChecker allows every origin when allowedOrigins is empty or
// contains "*".
func NewOriginChecker(allowedOrigins []string) *OriginChecker {
	return &OriginChecker{
		allowedOrigins,
	}
}

func (c *OriginChecker) Check(r *http.Request) bool {
	if len(c.allowedOrigins) == 0 || slices.Contains(c.allowedOrigins, "*") {
		return true
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}

	return slices.Contains(c.allowedOrigins, u.Scheme+"://"+u.Host)
}

type WebSocketServer struct {
	logger       *zap.Logger
	upgrader     *websocket.Upgrader
	resolver     *SubscriberResolver
	registry     broadcaster.Registry
	writeTimeout time.Duration
}

func NewWebSocketServer(
	logger *zap.Logger,
	upgrader *websocket.Upgrader,
	resolver *SubscriberResolver,
	registry broadcaster.Registry,
	writeTimeout time.Duration,
) *WebSocketServer {
	return &WebSocketServer{
		logger,
		upgrader,
		resolver,
		registry,
		writeTimeout,
	}
}

func (s *WebSocketServer) Register(router *mux.Router) {
	router.HandleFunc("/notifications/websocket", s.handleWebSocket).Methods("GET")
}

func (s *WebSocketServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userId, err := s.resolver.Resolve(r)
	if err != nil {
		writeError(s.logger, w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn.SetReadLimit(1024)

	stream := NewWebSocketStream(conn, s.writeTimeout)

	connection, err := s.registry.Open(userId, stream)
	if err != nil {
		closeCode := websocket.CloseInternalServerErr
		if ierr.IsCode(err, ierr.ErrorCodeAlreadyExists) {
			closeCode = websocket.ClosePolicyViolation
		}

		stream.closeWithReason(closeCode, ierr.From(err).Message)
		return
	}

	defer s.registry.Release(connection)

	readErr := make(chan error, 1)
	go func() {
		readErr <- discardIncoming(conn)
	}()

	select {
	case err := <-readErr:
		if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			s.logger.Debug("websocket read loop ended", zap.String("userId", userId), zap.Error(err))
		}
	case <-connection.Done():
	}
}

// discardIncoming drains client frames so control frames are processed. The
// channel is push only.
func discardIncoming(conn *websocket.Conn) error {
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return err
		}
	}
}

type WebSocketStream struct {
	connection   *websocket.Conn
	writeTimeout time.Duration
}

func NewWebSocketStream(connection *websocket.Conn, writeTimeout time.Duration) *WebSocketStream {
	return &WebSocketStream{
		connection,
		writeTimeout,
	}
}

func (s *WebSocketStream) Send(payload []byte) error {
	if err := s.connection.SetWriteDeadline(s.deadline()); err != nil {
		return err
	}

	return s.connection.WriteMessage(websocket.TextMessage, payload)
}

func (s *WebSocketStream) Heartbeat() error {
	return s.connection.WriteControl(websocket.PingMessage, nil, s.deadline())
}

func (s *WebSocketStream) Close() error {
	return s.closeWithReason(websocket.CloseNormalClosure, "")
}

func (s *WebSocketStream) closeWithReason(code int, reason string) error {
	message := websocket.FormatCloseMessage(code, reason)
	err := s.connection.WriteControl(websocket.CloseMessage, message, s.deadline())
	if errors.Is(err, websocket.ErrCloseSent) {
		err = nil
	}

	return errors.Join(err, s.connection.Close())
}

func (s *WebSocketStream) deadline() time.Time {
	if s.writeTimeout <= 0 {
		return time.Time{}
	}

	return time.Now().Add(s.writeTimeout)
}
