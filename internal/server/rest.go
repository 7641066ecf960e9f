package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/goevery/sitepush/internal/auth"
	"github.com/goevery/sitepush/internal/handler"
	"github.com/goevery/sitepush/internal/ierr"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxRequestBodySize = 1 << 20

type RESTServer struct {
	logger        *zap.Logger
	authenticator *auth.Authenticator

	notifyHandler      *handler.NotifyHandler
	connectionsHandler *handler.ConnectionsHandler
	historyHandler     *handler.HistoryHandler
	heartbeatHandler   *handler.HeartbeatHandler
}

func NewRESTServer(
	logger *zap.Logger,
	authenticator *auth.Authenticator,
	notifyHandler *handler.NotifyHandler,
	connectionsHandler *handler.ConnectionsHandler,
	historyHandler *handler.HistoryHandler,
	heartbeatHandler *handler.HeartbeatHandler,
) *RESTServer {
	return &RESTServer{
		logger,
		authenticator,
		notifyHandler,
		connectionsHandler,
		historyHandler,
		heartbeatHandler,
	}
}

func (s *RESTServer) Register(router *mux.Router) {
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(s.logger, w, http.StatusOK, s.heartbeatHandler.Handle())
	}).Methods("GET")

	api := router.PathPrefix("/notifications").Subrouter()
	api.Use(s.cors, s.authenticate)

	api.HandleFunc("/users", s.handleNotifyUsers).Methods("POST", "OPTIONS")
	api.HandleFunc("/users/{userId}", s.handleNotifyUser).Methods("POST", "OPTIONS")
	api.HandleFunc("/users/{userId}/history", s.handleHistory).Methods("GET", "OPTIONS")
	api.HandleFunc("/broadcast", s.handleBroadcast).Methods("POST", "OPTIONS")
	api.HandleFunc("/connections", s.handleConnections).Methods("GET", "OPTIONS")
}

func (s *RESTServer) handleNotifyUsers(w http.ResponseWriter, r *http.Request) {
	var req handler.NotifyUsersRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(s.logger, w, err)
		return
	}

	resp, err := s.notifyHandler.NotifyUsers(r.Context(), req)
	s.respond(w, http.StatusAccepted, resp, err)
}

func (s *RESTServer) handleNotifyUser(w http.ResponseWriter, r *http.Request) {
	var req handler.NotifyUserRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(s.logger, w, err)
		return
	}

	req.UserId = handler.UserId(mux.Vars(r)["userId"])

	resp, err := s.notifyHandler.NotifyUser(r.Context(), req)
	s.respond(w, http.StatusAccepted, resp, err)
}

func (s *RESTServer) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req handler.BroadcastRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(s.logger, w, err)
		return
	}

	resp, err := s.notifyHandler.Broadcast(r.Context(), req)
	s.respond(w, http.StatusAccepted, resp, err)
}

func (s *RESTServer) handleConnections(w http.ResponseWriter, r *http.Request) {
	resp, err := s.connectionsHandler.Handle(r.Context())
	s.respond(w, http.StatusOK, resp, err)
}

func (s *RESTServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	req := handler.HistoryRequest{
		UserId: mux.Vars(r)["userId"],
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(s.logger, w, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid limit")))
			return
		}

		req.Limit = limit
	}

	resp, err := s.historyHandler.Handle(r.Context(), req)
	s.respond(w, http.StatusOK, resp, err)
}

func (s *RESTServer) respond(w http.ResponseWriter, status int, body any, err error) {
	if err != nil {
		writeError(s.logger, w, err)
		return
	}

	writeJSON(s.logger, w, status, body)
}

func (s *RESTServer) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authenticate accepts an API key (producers) or, when enabled, a user JWT.
func (s *RESTServer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r)
		if !ok {
			writeError(s.logger, w, ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("missing bearer token")))
			return
		}

		authentication, err := s.authenticator.AuthenticateAPIKey(token)
		if err != nil && s.authenticator.JWTEnabled() {
			authentication, err = s.authenticator.AuthenticateJWT(token)
		}

		if err != nil {
			writeError(s.logger, w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithAuthentication(r.Context(), authentication)))
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid request body: "+err.Error()))
	}

	return nil
}
