package persistence

import (
	"context"

	"github.com/goevery/sitepush/internal/notification"
)

// BroadcastAudience is the recipient recorded for broadcast notifications.
const BroadcastAudience = "*"

// Engine records accepted notifications for the notification center. The
// delivery path never reads from it: missed events are not replayed.
type Engine interface {
	Setup(ctx context.Context) error
	Save(ctx context.Context, request SaveRequest) error
	List(ctx context.Context, userId string, limit int) ([]notification.Notification, error)
}

type SaveRequest struct {
	UserIds      []string
	Notification notification.Notification
}

type NopEngine struct{}

func NewNopEngine() *NopEngine {
	return &NopEngine{}
}

func (NopEngine) Setup(ctx context.Context) error {
	return nil
}

func (NopEngine) Save(ctx context.Context, request SaveRequest) error {
	return nil
}

func (NopEngine) List(ctx context.Context, userId string, limit int) ([]notification.Notification, error) {
	return []notification.Notification{}, nil
}
