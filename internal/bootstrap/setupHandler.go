package bootstrap

import (
	httpHandler "session-service/internal/api/http/handler"
	httpUsecase "session-service/internal/api/http/usecase"
	wsHandler "session-service/internal/api/ws/handler"

	"session-service/infra/storage"
)

func SetupHTTPHandlers(store storage.Store) map[string]interface{} {
	roomUseCase := httpUsecase.NewRoomUseCase(store)

	return map[string]interface{}{
		"create-room": httpHandler.NewCreateRoomHandler(roomUseCase),
		"join-room":   httpHandler.NewJoinRoomHandler(roomUseCase),
		"leave-room":  httpHandler.NewLeaveRoomHandler(roomUseCase),
		"list-rooms":  httpHandler.NewListRoomsHandler(roomUseCase),
	}
}

func SetupWSHandlers(registry wsHandler.Registry) map[string]interface{} {
	return map[string]interface{}{
		"game-connect": wsHandler.NewGameConnectHandler(registry),
		"spectate":     wsHandler.NewSpectateHandler(registry),
	}
}
