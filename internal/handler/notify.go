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
	"go.uber.org/zap"
)

const recordTimeout = 5 * time.Second

type NotificationContent struct {
	Type    notification.Type `json:"type"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Data    map[string]any    `json:"data,omitempty"`
}

func (c NotificationContent) build() (notification.Notification, error) {
	n, err := notification.New(c.Type, c.Title, c.Message, c.Data)
	if err != nil {
		return notification.Notification{}, ierr.New(ierr.ErrorCodeInvalidArgument, err)
	}

	return n, nil
}

type NotifyUsersRequest struct {
	UserIds []UserId `json:"userIds"`
	NotificationContent
}

type NotifyUserRequest struct {
	UserId UserId `json:"-"`
	NotificationContent
}

type BroadcastRequest struct {
	NotificationContent
}

// NotifyResponse echoes the accepted notification. Delivery outcome is not
// known to the producer.
type NotifyResponse struct {
	Notification notification.Notification `json:"notification"`
}

type NotifyHandler struct {
	logger            *zap.Logger
	userIdValidator   *UserIdValidator
	persistenceEngine persistence.Engine
	notifier          broadcaster.Notifier
}

func NewNotifyHandler(
	logger *zap.Logger,
	userIdValidator *UserIdValidator,
	persistenceEngine persistence.Engine,
	notifier broadcaster.Notifier,
) *NotifyHandler {
	return &NotifyHandler{
		logger,
		userIdValidator,
		persistenceEngine,
		notifier,
	}
}

func (h *NotifyHandler) NotifyUsers(ctx context.Context, req NotifyUsersRequest) (NotifyResponse, error) {
	if err := requirePublisher(ctx); err != nil {
		return NotifyResponse{}, err
	}

	userIds, err := h.userIdValidator.ValidateAll(req.UserIds)
	if err != nil {
		return NotifyResponse{}, err
	}

	n, err := req.build()
	if err != nil {
		return NotifyResponse{}, err
	}

	h.notifier.SendToUsers(userIds, n)
	h.record(ctx, userIds, n)

	return NotifyResponse{Notification: n}, nil
}

func (h *NotifyHandler) NotifyUser(ctx context.Context, req NotifyUserRequest) (NotifyResponse, error) {
	if err := requirePublisher(ctx); err != nil {
		return NotifyResponse{}, err
	}

	userId := string(req.UserId)
	if err := h.userIdValidator.Validate(userId); err != nil {
		return NotifyResponse{}, err
	}

	n, err := req.build()
	if err != nil {
		return NotifyResponse{}, err
	}

	h.notifier.SendToUser(userId, n)
	h.record(ctx, []string{userId}, n)

	return NotifyResponse{Notification: n}, nil
}

func (h *NotifyHandler) Broadcast(ctx context.Context, req BroadcastRequest) (NotifyResponse, error) {
	if err := requirePublisher(ctx); err != nil {
		return NotifyResponse{}, err
	}

	n, err := req.build()
	if err != nil {
		return NotifyResponse{}, err
	}

	h.notifier.Broadcast(n)
	h.record(ctx, []string{persistence.BroadcastAudience}, n)

	return NotifyResponse{Notification: n}, nil
}

// record stores the notification for the history view once it has been
// delivered. Failures are only logged.
func (h *NotifyHandler) record(ctx context.Context, userIds []string, n notification.Notification) {
	recordCtx, recordCtxCancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer recordCtxCancel()

	err := h.persistenceEngine.Save(recordCtx, persistence.SaveRequest{
		UserIds:      userIds,
		Notification: n,
	})
	if err != nil {
		h.logger.Error("failed to record notification",
			zap.String("notificationId", n.Id),
			zap.String("type", n.Type.String()),
			zap.Error(err))
	}
}

func requirePublisher(ctx context.Context) error {
	authentication, ok := auth.AuthenticationFromContext(ctx)
	if !ok {
		return ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("user not authenticated"))
	}

	if !authentication.IsPublisher() {
		return ierr.New(ierr.ErrorCodePermissionDenied, errors.New("user not authorized to publish notifications"))
	}

	return nil
}
