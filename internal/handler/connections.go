package handler

import (
	"context"
	"errors"
	"time"

	"github.com/goevery/sitepush/internal/auth"
	"github.com/goevery/sitepush/internal/broadcaster"
	"github.com/goevery/sitepush/internal/ierr"
	"github.com/goevery/sitepush/internal/notification"
	"github.com/goevery/sitepush/internal/persistence"
)

type ConnectionsResponse struct {
	ActiveConnections int       `json:"activeConnections"`
	UserIds           []string  `json:"userIds"`
	Timestamp         time.Time `json:"timestamp"`
}

type ConnectionsHandler struct {
	registry broadcaster.Registry
}

func NewConnectionsHandler(registry broadcaster.Registry) *ConnectionsHandler {
	return &ConnectionsHandler{
		registry,
	}
}

func (h *ConnectionsHandler) Handle(ctx context.Context) (ConnectionsResponse, error) {
	if err := requirePublisher(ctx); err != nil {
		return ConnectionsResponse{}, err
	}

	userIds := h.registry.ConnectedUserIds()
	if userIds == nil {
		userIds = []string{}
	}

	return ConnectionsResponse{
		ActiveConnections: len(userIds),
		UserIds:           userIds,
		Timestamp:         time.Now(),
	}, nil
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type HistoryRequest struct {
	UserId string
	Limit  int
}

type HistoryResponse struct {
	Notifications []notification.Notification `json:"notifications"`
}

type HistoryHandler struct {
	userIdValidator   *UserIdValidator
	persistenceEngine persistence.Engine
}

func NewHistoryHandler(
	userIdValidator *UserIdValidator,
	persistenceEngine persistence.Engine,
) *HistoryHandler {
	return &HistoryHandler{
		userIdValidator,
		persistenceEngine,
	}
}

func (h *HistoryHandler) Handle(ctx context.Context, req HistoryRequest) (HistoryResponse, error) {
	authentication, ok := auth.AuthenticationFromContext(ctx)
	if !ok {
		return HistoryResponse{}, ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("user not authenticated"))
	}

	if !authentication.IsAdmin && authentication.Subject != req.UserId {
		return HistoryResponse{}, ierr.New(ierr.ErrorCodePermissionDenied, errors.New("history of another user"))
	}

	if err := h.userIdValidator.Validate(req.UserId); err != nil {
		return HistoryResponse{}, err
	}

	limit := req.Limit
	switch {
	case limit < 0:
		return HistoryResponse{}, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("limit cannot be negative"))
	case limit == 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}

	notifications, err := h.persistenceEngine.List(ctx, req.UserId, limit)
	if err != nil {
		return HistoryResponse{}, ierr.New(ierr.ErrorCodeUnavailable, err)
	}

	return HistoryResponse{
		Notifications: notifications,
	}, nil
}
