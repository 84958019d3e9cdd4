package bootstrap

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"session-service/config"
	httpHandler "session-service/internal/api/http/handler"
	wsHandler "session-service/internal/api/ws/handler"
	"session-service/internal/handler"
	"session-service/internal/server"
)

func SetupServer(cfg config.Config, httpHandlers map[string]interface{}, wsHandlers map[string]interface{}) *fiber.App {
	serverConfig := server.Config{
		Port:         cfg.Server.Port,
		IdleTimeout:  5 * time.Second,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	app := server.NewFiberApp(serverConfig)

	createRoomHandler := httpHandlers["create-room"].(*httpHandler.CreateRoomHandler)
	joinRoomHandler := httpHandlers["join-room"].(*httpHandler.JoinRoomHandler)
	leaveRoomHandler := httpHandlers["leave-room"].(*httpHandler.LeaveRoomHandler)
	listRoomsHandler := httpHandlers["list-rooms"].(*httpHandler.ListRoomsHandler)

	app.Post("/rooms", handler.HandleWithFiber[httpHandler.CreateRoomRequest, httpHandler.CreateRoomResponse](createRoomHandler))
	app.Post("/rooms/:room_id/join", handler.HandleWithFiber[httpHandler.JoinRoomRequest, httpHandler.JoinRoomResponse](joinRoomHandler))
	app.Post("/rooms/:room_id/leave", handler.HandleWithFiber[httpHandler.LeaveRoomRequest, httpHandler.LeaveRoomResponse](leaveRoomHandler))
	app.Get("/rooms", handler.HandleWithFiber[httpHandler.ListRoomsRequest, httpHandler.ListRoomsResponse](listRoomsHandler))

	gameConnectHandler := wsHandlers["game-connect"].(*wsHandler.GameConnectHandler)
	spectateHandler := wsHandlers["spectate"].(*wsHandler.SpectateHandler)

	wsRoute := app.Group("/ws")
	wsRoute.Get("/game/:room_id", handler.HandleWithFiberWS[wsHandler.GameConnectRequest](gameConnectHandler))
	wsRoute.Get("/spectate/:room_id", handler.HandleWithFiberWS[wsHandler.SpectateRequest](spectateHandler))

	return app
}
