package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/goevery/sitepush/internal/client"
	"github.com/goevery/sitepush/internal/notification"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Settings struct {
	URL        string        `env:"SITEPUSH_URL,default=http://localhost:8000"`
	UserId     string        `env:"USER_ID"`
	Token      string        `env:"TOKEN"`
	RetryDelay time.Duration `env:"RETRY_DELAY,default=5s"`
}

func main() {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	config := zap.NewDevelopmentConfig()
	config.EncoderConfig = encoderConfig

	logger, err := config.Build()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	var settings Settings
	if _, err := env.UnmarshalFromEnviron(&settings); err != nil {
		logger.Fatal("failed to parse settings from environment", zap.Error(err))
	}

	if settings.UserId == "" && settings.Token == "" {
		logger.Fatal("USER_ID or TOKEN is required")
	}

	subscriber, err := client.NewSubscriber(
		logger,
		// streams are long-lived, so no overall client timeout
		&http.Client{},
		settings.URL,
		client.Options{
			UserId:     settings.UserId,
			Token:      settings.Token,
			RetryDelay: settings.RetryDelay,
		},
		func(n notification.Notification) {
			logger.Info(n.Title,
				zap.String("id", n.Id),
				zap.String("type", n.Type.String()),
				zap.String("severity", string(n.Type.Severity())),
				zap.String("message", n.Message),
				zap.Any("data", n.Data),
				zap.Time("timestamp", n.Timestamp))
		},
	)
	if err != nil {
		logger.Fatal("failed to build subscriber", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	logger.Info("tailing notifications",
		zap.String("url", settings.URL),
		zap.String("userId", settings.UserId))

	err = subscriber.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("subscriber stopped", zap.Error(err))
	}
}
