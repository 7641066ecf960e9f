package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/goevery/sitepush/internal/auth"
	"github.com/goevery/sitepush/internal/broadcaster"
	"github.com/goevery/sitepush/internal/handler"
	"github.com/goevery/sitepush/internal/persistence"
	"github.com/goevery/sitepush/internal/persistence/mongodb"
	"github.com/goevery/sitepush/internal/server"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

type App struct {
	logger            *zap.Logger
	settings          Settings
	registry          *broadcaster.InMemoryRegistry
	persistenceEngine persistence.Engine
	streamServer      *server.StreamServer
	websocketServer   *server.WebSocketServer
	restServer        *server.RESTServer
}

func NewApp(logger *zap.Logger, settings Settings, persistenceEngine persistence.Engine) (*App, error) {
	duplicatePolicy, err := broadcaster.ParseDuplicatePolicy(settings.DuplicatePolicy)
	if err != nil {
		return nil, err
	}

	originChecker := server.NewOriginChecker(settings.AllowedOriginList())
	websocketUpgrader := &websocket.Upgrader{
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
		CheckOrigin:       originChecker.Check,
		EnableCompression: true,
	}

	authenticator := auth.NewAuthenticator(settings.JWTSecret, settings.APIKeyList())

	userIdValidator := handler.NewUserIdValidator()
	registry := broadcaster.NewInMemoryRegistry(logger, broadcaster.Options{
		HeartbeatInterval: settings.HeartbeatInterval,
		DuplicatePolicy:   duplicatePolicy,
	})

	notifyHandler := handler.NewNotifyHandler(logger, userIdValidator, persistenceEngine, registry)
	connectionsHandler := handler.NewConnectionsHandler(registry)
	historyHandler := handler.NewHistoryHandler(userIdValidator, persistenceEngine)
	heartbeatHandler := handler.NewHeartbeatHandler()

	subscriberResolver := server.NewSubscriberResolver(authenticator, userIdValidator)

	streamServer := server.NewStreamServer(
		logger,
		subscriberResolver,
		registry,
		settings.WriteTimeout,
	)
	websocketServer := server.NewWebSocketServer(
		logger,
		websocketUpgrader,
		subscriberResolver,
		registry,
		settings.WriteTimeout,
	)
	restServer := server.NewRESTServer(
		logger,
		authenticator,
		notifyHandler,
		connectionsHandler,
		historyHandler,
		heartbeatHandler,
	)

	return &App{
		logger,
		settings,
		registry,
		persistenceEngine,
		streamServer,
		websocketServer,
		restServer,
	}, nil
}

func (a *App) setup(ctx context.Context) error {
	setupCtx, setupCtxCancel := context.WithTimeout(ctx, 30*time.Second)
	defer setupCtxCancel()

	if err := a.persistenceEngine.Setup(setupCtx); err != nil {
		return fmt.Errorf("failed to setup persistence: %w", err)
	}

	a.startHttpServer(ctx)

	return nil
}

func (a *App) startHttpServer(ctx context.Context) {
	notifyCtx, notifyCtxCancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer notifyCtxCancel()

	address := fmt.Sprintf("0.0.0.0:%d", a.settings.Port)

	router := mux.NewRouter().
		PathPrefix(a.settings.BasePath).
		Subrouter()

	a.streamServer.Register(router)
	a.websocketServer.Register(router)
	a.restServer.Register(router)

	httpServer := &http.Server{
		Addr:              address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpServer.RegisterOnShutdown(a.registry.Shutdown)

	a.logger.Info("starting http server",
		zap.String("address", address),
		zap.Bool("jwtEnabled", a.settings.JWTSecret != ""),
		zap.Duration("heartbeatInterval", a.settings.HeartbeatInterval))

	go func() {
		err := httpServer.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("failed to start http server",
				zap.Error(err))
		}
	}()

	<-notifyCtx.Done()

	a.logger.Info("stopping http server",
		zap.Int("activeConnections", a.registry.ActiveConnectionCount()))

	shutdownCtx, shutdownCtxCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCtxCancel()

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Fatal("http server shutdown failed",
			zap.Error(err))
	}

	a.logger.Info("http server stopped")
}

func newPersistenceEngine(settings Settings) (persistence.Engine, func(context.Context) error, error) {
	if settings.MongoDBURI == "" {
		return persistence.NewNopEngine(), func(context.Context) error { return nil }, nil
	}

	client, err := mongo.Connect(options.Client().ApplyURI(settings.MongoDBURI))
	if err != nil {
		return nil, nil, err
	}

	return mongodb.NewPersistenceEngine(client, settings.MongoDBDatabase), client.Disconnect, nil
}

func main() {
	ctx := context.Background()

	var settings Settings
	_, err := env.UnmarshalFromEnviron(&settings)
	if err != nil {
		bootstrapLogger, _ := zap.NewDevelopment()
		bootstrapLogger.Fatal("failed to parse settings from environment", zap.Error(err))
	}

	logger, err := buildZapLogger(settings.LogEncoding, settings.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	persistenceEngine, disconnect, err := newPersistenceEngine(settings)
	if err != nil {
		logger.Fatal("failed to connect to mongodb", zap.Error(err))
	}
	defer func() {
		if err := disconnect(context.Background()); err != nil {
			logger.Warn("failed to disconnect from mongodb", zap.Error(err))
		}
	}()

	app, err := NewApp(logger, settings, persistenceEngine)
	if err != nil {
		logger.Fatal("failed to build app", zap.Error(err))
	}

	err = app.setup(ctx)
	if err != nil {
		logger.Fatal("failed to setup", zap.Error(err))
	}
}
