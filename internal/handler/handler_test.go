package handler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/goevery/sitepush/internal/auth"
	"github.com/goevery/sitepush/internal/broadcaster"
	"github.com/goevery/sitepush/internal/ierr"
	"github.com/goevery/sitepush/internal/notification"
	"github.com/goevery/sitepush/internal/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEngine struct {
	saved   []persistence.SaveRequest
	saveErr error
	onSave  func(ctx context.Context)
	listed  []notification.Notification
	limit   int
}

func (e *fakeEngine) Setup(ctx context.Context) error {
	return nil
}

func (e *fakeEngine) Save(ctx context.Context, request persistence.SaveRequest) error {
	if e.onSave != nil {
		e.onSave(ctx)
	}

	e.saved = append(e.saved, request)
	return e.saveErr
}

func (e *fakeEngine) List(ctx context.Context, userId string, limit int) ([]notification.Notification, error) {
	e.limit = limit
	return e.listed, nil
}

func publisherContext() context.Context {
	return auth.WithAuthentication(context.Background(), &auth.Authentication{
		Subject: "api",
		Scope:   []string{auth.ScopePublish},
		IsAdmin: true,
	})
}

func subscriberContext(userId string) context.Context {
	return auth.WithAuthentication(context.Background(), &auth.Authentication{
		Subject: userId,
		Scope:   []string{auth.ScopeSubscribe},
	})
}

func content() NotificationContent {
	return NotificationContent{
		Type:    notification.TypeTaskAssigned,
		Title:   "T",
		Message: "M",
	}
}

func TestUserId_UnmarshalJSON(t *testing.T) {
	var ids []UserId
	require.NoError(t, json.Unmarshal([]byte(`[1, "2", "user-3"]`), &ids))
	assert.Equal(t, []UserId{"1", "2", "user-3"}, ids)

	assert.Error(t, json.Unmarshal([]byte(`[1.5]`), &ids))
	assert.Error(t, json.Unmarshal([]byte(`[true]`), &ids))
}

func TestUserIdValidator(t *testing.T) {
	validator := NewUserIdValidator()

	assert.NoError(t, validator.Validate("42"))
	assert.NoError(t, validator.Validate("user_42-a"))
	assert.Error(t, validator.Validate(""))
	assert.Error(t, validator.Validate("a b"))
	assert.Error(t, validator.Validate("../42"))

	_, err := validator.ValidateAll(nil)
	assert.True(t, ierr.IsCode(err, ierr.ErrorCodeInvalidArgument))
}

func TestNotifyHandler_NotifyUsers(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	t.Run("records then fans out", func(t *testing.T) {
		registry := broadcaster.NewMockRegistry(t)
		engine := &fakeEngine{}
		h := NewNotifyHandler(logger, NewUserIdValidator(), engine, registry)

		registry.On("SendToUsers", []string{"1", "2", "3"}, mock.MatchedBy(func(n notification.Notification) bool {
			return n.Type == notification.TypeTaskAssigned && n.Title == "T" && n.Id != ""
		})).Return().Once()

		resp, err := h.NotifyUsers(publisherContext(), NotifyUsersRequest{
			UserIds:             []UserId{"1", "2", "3"},
			NotificationContent: content(),
		})

		require.NoError(t, err)
		assert.Equal(t, notification.TypeTaskAssigned, resp.Notification.Type)
		require.Len(t, engine.saved, 1)
		assert.Equal(t, []string{"1", "2", "3"}, engine.saved[0].UserIds)
		assert.Equal(t, resp.Notification.Id, engine.saved[0].Notification.Id)
	})

	t.Run("storage failure does not block delivery", func(t *testing.T) {
		registry := broadcaster.NewMockRegistry(t)
		engine := &fakeEngine{saveErr: errors.New("mongo down")}
		h := NewNotifyHandler(logger, NewUserIdValidator(), engine, registry)

		registry.On("SendToUsers", []string{"1"}, mock.Anything).Return().Once()

		_, err := h.NotifyUsers(publisherContext(), NotifyUsersRequest{
			UserIds:             []UserId{"1"},
			NotificationContent: content(),
		})

		assert.NoError(t, err)
	})

	t.Run("delivers before recording", func(t *testing.T) {
		registry := broadcaster.NewMockRegistry(t)
		delivered := false
		engine := &fakeEngine{
			onSave: func(ctx context.Context) {
				assert.True(t, delivered, "history written before delivery")

				deadline, ok := ctx.Deadline()
				assert.True(t, ok)
				assert.WithinDuration(t, time.Now().Add(recordTimeout), deadline, time.Second)
			},
		}
		h := NewNotifyHandler(logger, NewUserIdValidator(), engine, registry)

		registry.On("SendToUsers", []string{"1"}, mock.Anything).
			Run(func(args mock.Arguments) { delivered = true }).
			Return().
			Once()

		_, err := h.NotifyUsers(publisherContext(), NotifyUsersRequest{
			UserIds:             []UserId{"1"},
			NotificationContent: content(),
		})

		require.NoError(t, err)
		assert.Len(t, engine.saved, 1)
	})

	t.Run("recording outlives a cancelled request", func(t *testing.T) {
		registry := broadcaster.NewMockRegistry(t)
		engine := &fakeEngine{
			onSave: func(ctx context.Context) {
				assert.NoError(t, ctx.Err())
			},
		}
		h := NewNotifyHandler(logger, NewUserIdValidator(), engine, registry)

		registry.On("SendToUsers", []string{"1"}, mock.Anything).Return().Once()

		ctx, cancel := context.WithCancel(publisherContext())
		cancel()

		_, err := h.NotifyUsers(ctx, NotifyUsersRequest{
			UserIds:             []UserId{"1"},
			NotificationContent: content(),
		})

		require.NoError(t, err)
		assert.Len(t, engine.saved, 1)
	})

	t.Run("requires publish scope", func(t *testing.T) {
		registry := broadcaster.NewMockRegistry(t)
		h := NewNotifyHandler(logger, NewUserIdValidator(), &fakeEngine{}, registry)

		_, err := h.NotifyUsers(subscriberContext("1"), NotifyUsersRequest{
			UserIds:             []UserId{"1"},
			NotificationContent: content(),
		})
		assert.True(t, ierr.IsCode(err, ierr.ErrorCodePermissionDenied))

		_, err = h.NotifyUsers(context.Background(), NotifyUsersRequest{
			UserIds:             []UserId{"1"},
			NotificationContent: content(),
		})
		assert.True(t, ierr.IsCode(err, ierr.ErrorCodeUnauthenticated))
	})

	t.Run("rejects reserved type", func(t *testing.T) {
		registry := broadcaster.NewMockRegistry(t)
		h := NewNotifyHandler(logger, NewUserIdValidator(), &fakeEngine{}, registry)

		c := content()
		c.Type = notification.TypeConnected

		_, err := h.NotifyUsers(publisherContext(), NotifyUsersRequest{
			UserIds:             []UserId{"1"},
			NotificationContent: c,
		})
		assert.True(t, ierr.IsCode(err, ierr.ErrorCodeInvalidArgument))
	})

	t.Run("rejects invalid user ids", func(t *testing.T) {
		registry := broadcaster.NewMockRegistry(t)
		h := NewNotifyHandler(logger, NewUserIdValidator(), &fakeEngine{}, registry)

		_, err := h.NotifyUsers(publisherContext(), NotifyUsersRequest{
			UserIds:             []UserId{"1", "not valid"},
			NotificationContent: content(),
		})
		assert.True(t, ierr.IsCode(err, ierr.ErrorCodeInvalidArgument))
	})
}

func TestNotifyHandler_NotifyUser(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	registry := broadcaster.NewMockRegistry(t)
	h := NewNotifyHandler(logger, NewUserIdValidator(), &fakeEngine{}, registry)

	registry.On("SendToUser", "42", mock.Anything).Return().Once()

	_, err := h.NotifyUser(publisherContext(), NotifyUserRequest{
		UserId:              "42",
		NotificationContent: content(),
	})

	assert.NoError(t, err)
}

func TestNotifyHandler_Broadcast(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	registry := broadcaster.NewMockRegistry(t)
	delivered := false
	engine := &fakeEngine{
		onSave: func(ctx context.Context) {
			assert.True(t, delivered, "history written before delivery")
		},
	}
	h := NewNotifyHandler(logger, NewUserIdValidator(), engine, registry)

	registry.On("Broadcast", mock.Anything).
		Run(func(args mock.Arguments) { delivered = true }).
		Return().
		Once()

	_, err := h.Broadcast(publisherContext(), BroadcastRequest{NotificationContent: content()})

	assert.NoError(t, err)
	require.Len(t, engine.saved, 1)
	assert.Equal(t, []string{persistence.BroadcastAudience}, engine.saved[0].UserIds)
}

func TestConnectionsHandler(t *testing.T) {
	registry := broadcaster.NewMockRegistry(t)
	h := NewConnectionsHandler(registry)

	t.Run("no connections", func(t *testing.T) {
		registry.On("ConnectedUserIds").Return(nil).Once()

		resp, err := h.Handle(publisherContext())

		require.NoError(t, err)
		assert.Equal(t, 0, resp.ActiveConnections)
		assert.Equal(t, []string{}, resp.UserIds)
	})

	t.Run("count matches listed users", func(t *testing.T) {
		registry.On("ConnectedUserIds").Return([]string{"1", "7", "9"}).Once()

		resp, err := h.Handle(publisherContext())

		require.NoError(t, err)
		assert.Equal(t, 3, resp.ActiveConnections)
		assert.Len(t, resp.UserIds, resp.ActiveConnections)
	})
}

func TestHistoryHandler(t *testing.T) {
	t.Run("own history with default limit", func(t *testing.T) {
		engine := &fakeEngine{listed: []notification.Notification{notification.TaskOverdue(1, "Roof", 2)}}
		h := NewHistoryHandler(NewUserIdValidator(), engine)

		resp, err := h.Handle(subscriberContext("42"), HistoryRequest{UserId: "42"})

		require.NoError(t, err)
		assert.Len(t, resp.Notifications, 1)
		assert.Equal(t, defaultHistoryLimit, engine.limit)
	})

	t.Run("limit is capped", func(t *testing.T) {
		engine := &fakeEngine{}
		h := NewHistoryHandler(NewUserIdValidator(), engine)

		_, err := h.Handle(publisherContext(), HistoryRequest{UserId: "42", Limit: 10_000})

		require.NoError(t, err)
		assert.Equal(t, maxHistoryLimit, engine.limit)
	})

	t.Run("other users history is denied", func(t *testing.T) {
		h := NewHistoryHandler(NewUserIdValidator(), &fakeEngine{})

		_, err := h.Handle(subscriberContext("7"), HistoryRequest{UserId: "42"})

		assert.True(t, ierr.IsCode(err, ierr.ErrorCodePermissionDenied))
	})

	t.Run("negative limit", func(t *testing.T) {
		h := NewHistoryHandler(NewUserIdValidator(), &fakeEngine{})

		_, err := h.Handle(publisherContext(), HistoryRequest{UserId: "42", Limit: -1})

		assert.True(t, ierr.IsCode(err, ierr.ErrorCodeInvalidArgument))
	})
}
