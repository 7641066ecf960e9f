package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/goevery/sitepush/internal/notification"
	"github.com/goevery/sitepush/internal/sse"
	"go.uber.org/zap"
)

const DefaultRetryDelay = 5 * time.Second

type Handler func(n notification.Notification)

type Options struct {
	UserId     string
	Token      string
	RetryDelay time.Duration
}

// Subscriber keeps a notification stream open, reconnecting after a fixed
// delay. Events emitted while disconnected are lost.
type Subscriber struct {
	logger     *zap.Logger
	httpClient *http.Client
	streamURL  string
	options    Options
	handler    Handler

	connected atomic.Bool
}

func NewSubscriber(
	logger *zap.Logger,
	httpClient *http.Client,
	baseURL string,
	options Options,
	handler Handler,
) (*Subscriber, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	u = u.JoinPath("notifications", "stream")
	if options.UserId != "" {
		u.RawQuery = url.Values{"userId": {options.UserId}}.Encode()
	}

	if options.RetryDelay <= 0 {
		options.RetryDelay = DefaultRetryDelay
	}

	return &Subscriber{
		logger:     logger,
		httpClient: httpClient,
		streamURL:  u.String(),
		options:    options,
		handler:    handler,
	}, nil
}

// Connected is true between the connected acknowledgement and the next
// stream failure.
func (s *Subscriber) Connected() bool {
	return s.connected.Load()
}

// Run blocks until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		err := s.consume(ctx)
		s.connected.Store(false)

		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.logger.Info("notification stream closed, reconnecting",
			zap.Duration("retryDelay", s.options.RetryDelay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.options.RetryDelay):
		}
	}
}

func (s *Subscriber) consume(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", s.streamURL, nil)
	if err != nil {
		return err
	}

	req.Header.Set("Accept", "text/event-stream")
	if s.options.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.options.Token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	reader := sse.NewReader(resp.Body)

	for {
		data, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}

		if err != nil {
			return err
		}

		var n notification.Notification
		if err := json.Unmarshal(data, &n); err != nil {
			s.logger.Warn("failed to parse notification", zap.Error(err))
			continue
		}

		if n.Type == notification.TypeConnected {
			s.connected.Store(true)
			continue
		}

		s.handler(n)
	}
}
