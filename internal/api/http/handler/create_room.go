package httpHandler

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"session-service/domain"
	"session-service/internal/api/http/usecase"
)

type CreateRoomRequest struct {
	Name      string `json:"name" validate:"required,min=1,max=64"`
	HostName  string `json:"hostName" validate:"required,min=1,max=32"`
	HostColor string `json:"hostColor" validate:"required"`
}

type CreateRoomResponse struct {
	Room   *domain.Room `json:"room"`
	HostID string       `json:"hostId"`
}

type CreateRoomHandler struct {
	usecase usecase.RoomUseCase
}

func NewCreateRoomHandler(uc usecase.RoomUseCase) *CreateRoomHandler {
	return &CreateRoomHandler{usecase: uc}
}

func (h *CreateRoomHandler) Handle(fbrCtx *fiber.Ctx, ctx context.Context, req *CreateRoomRequest) (*CreateRoomResponse, int, error) {
	room, err := h.usecase.CreateRoom(ctx, req.Name, req.HostName, req.HostColor)
	if err != nil {
		return nil, statusFor(err), err
	}

	return &CreateRoomResponse{Room: room, HostID: room.HostID.String()}, fiber.StatusCreated, nil
}
