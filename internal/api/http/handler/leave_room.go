package httpHandler

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"session-service/internal/api/http/usecase"
)

type LeaveRoomRequest struct {
	RoomID   string `params:"room_id" validate:"required,uuid"`
	PlayerID string `json:"playerId" validate:"required,uuid"`
}

type LeaveRoomResponse struct {
	Message string `json:"message"`
}

type LeaveRoomHandler struct {
	usecase usecase.RoomUseCase
}

func NewLeaveRoomHandler(uc usecase.RoomUseCase) *LeaveRoomHandler {
	return &LeaveRoomHandler{usecase: uc}
}

func (h *LeaveRoomHandler) Handle(fbrCtx *fiber.Ctx, ctx context.Context, req *LeaveRoomRequest) (*LeaveRoomResponse, int, error) {
	roomID, err := uuid.Parse(req.RoomID)
	if err != nil {
		return nil, fiber.StatusBadRequest, fmt.Errorf("invalid room id: %w", err)
	}
	playerID, err := uuid.Parse(req.PlayerID)
	if err != nil {
		return nil, fiber.StatusBadRequest, fmt.Errorf("invalid player id: %w", err)
	}

	if err := h.usecase.LeaveRoom(ctx, roomID, playerID); err != nil {
		return nil, statusFor(err), err
	}

	return &LeaveRoomResponse{Message: "left room"}, fiber.StatusOK, nil
}
