package httpHandler

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"session-service/domain"
	"session-service/internal/api/http/usecase"
)

type JoinRoomRequest struct {
	RoomID      string `params:"room_id" validate:"required,uuid"`
	PlayerName  string `json:"playerName" validate:"required,min=1,max=32"`
	PlayerColor string `json:"playerColor" validate:"required"`
}

type JoinRoomResponse struct {
	Room     *domain.Room `json:"room"`
	PlayerID string       `json:"playerId"`
}

type JoinRoomHandler struct {
	usecase usecase.RoomUseCase
}

func NewJoinRoomHandler(uc usecase.RoomUseCase) *JoinRoomHandler {
	return &JoinRoomHandler{usecase: uc}
}

func (h *JoinRoomHandler) Handle(fbrCtx *fiber.Ctx, ctx context.Context, req *JoinRoomRequest) (*JoinRoomResponse, int, error) {
	roomID, err := uuid.Parse(req.RoomID)
	if err != nil {
		return nil, fiber.StatusBadRequest, fmt.Errorf("invalid room id: %w", err)
	}

	room, playerID, err := h.usecase.JoinRoom(ctx, roomID, req.PlayerName, req.PlayerColor)
	if err != nil {
		return nil, statusFor(err), err
	}

	return &JoinRoomResponse{Room: room, PlayerID: playerID.String()}, fiber.StatusOK, nil
}
