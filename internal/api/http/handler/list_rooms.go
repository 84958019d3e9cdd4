package httpHandler

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"session-service/domain"
	"session-service/internal/api/http/usecase"
)

type ListRoomsRequest struct {
	Phase string `query:"phase" validate:"omitempty,oneof=waiting ready playing finished"`
}

type ListRoomsResponse struct {
	Rooms []*domain.Room `json:"rooms"`
}

type ListRoomsHandler struct {
	usecase usecase.RoomUseCase
}

func NewListRoomsHandler(uc usecase.RoomUseCase) *ListRoomsHandler {
	return &ListRoomsHandler{usecase: uc}
}

func (h *ListRoomsHandler) Handle(fbrCtx *fiber.Ctx, ctx context.Context, req *ListRoomsRequest) (*ListRoomsResponse, int, error) {
	rooms, err := h.usecase.ListRooms(ctx, domain.RoomPhase(req.Phase))
	if err != nil {
		return nil, statusFor(err), err
	}

	if rooms == nil {
		rooms = []*domain.Room{}
	}
	return &ListRoomsResponse{Rooms: rooms}, fiber.StatusOK, nil
}
