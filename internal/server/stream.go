package server

import (
	"net/http"
	"time"

	"github.com/goevery/sitepush/internal/broadcaster"
	"github.com/goevery/sitepush/internal/sse"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type StreamServer struct {
	logger       *zap.Logger
	resolver     *SubscriberResolver
	registry     broadcaster.Registry
	writeTimeout time.Duration
}

func NewStreamServer(
	logger *zap.Logger,
	resolver *SubscriberResolver,
	registry broadcaster.Registry,
	writeTimeout time.Duration,
) *StreamServer {
	return &StreamServer{
		logger,
		resolver,
		registry,
		writeTimeout,
	}
}

func (s *StreamServer) Register(router *mux.Router) {
	router.HandleFunc("/notifications/stream", s.handleStream).Methods("GET")
}

func (s *StreamServer) handleStream(w http.ResponseWriter, r *http.Request) {
	userId, err := s.resolver.Resolve(r)
	if err != nil {
		writeError(s.logger, w, err)
		return
	}

	stream := sse.NewStream(w, s.writeTimeout)

	connection, err := s.registry.Open(userId, stream)
	if err != nil {
		if stream.Started() {
			return
		}

		writeError(s.logger, w, err)
		return
	}

	defer s.registry.Release(connection)

	select {
	case <-r.Context().Done():
	case <-connection.Done():
	}
}
