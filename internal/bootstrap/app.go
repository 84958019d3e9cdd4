package bootstrap

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"session-service/config"
	"session-service/infra/storage"
	"session-service/internal/api/ws/hub"
	"session-service/pkg/graceful"
)

type App struct {
	config       config.Config
	store        storage.Store
	hub          *hub.Hub
	fiberApp     *fiber.App
	closeEvents  func() error
	httpHandlers map[string]interface{}
	wsHandlers   map[string]interface{}
}

func NewApp(cfg config.Config) *App {
	app := &App{
		config: cfg,
	}
	app.initDependencies()
	return app
}

func (a *App) initDependencies() {
	a.store = InitStorage(a.config)
	events, closeEvents := SetupMessaging(a.config)
	a.closeEvents = closeEvents
	a.hub, _ = InitWebsocket(a.store, events)
	a.httpHandlers = SetupHTTPHandlers(a.store)
	a.wsHandlers = SetupWSHandlers(a.hub)
	a.fiberApp = SetupServer(a.config, a.httpHandlers, a.wsHandlers)
}

func (a *App) Start() {
	a.hub.StartPingLoop(hub.DefaultPingInterval)

	go func() {
		port := a.config.Server.Port
		if err := a.fiberApp.Listen(":" + port); err != nil {
			zap.L().Error("Failed to start server", zap.Error(err))
		}
	}()

	zap.L().Info("Server started on port", zap.String("port", a.config.Server.Port))

	defer func() {
		a.hub.StopPingLoop()
		if a.closeEvents != nil {
			if err := a.closeEvents(); err != nil {
				zap.L().Error("Failed to close event publisher", zap.Error(err))
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.store.Disconnect(ctx); err != nil {
			zap.L().Error("Failed to disconnect storage", zap.Error(err))
		}
	}()

	graceful.WaitForShutdown(a.fiberApp, 5*time.Second, context.Background())
}
