package usecase

import (
	"context"

	"github.com/google/uuid"

	"session-service/domain"
)

// RoomUseCase is the REST-facing room lifecycle surface. It exercises
// the Room state machine against the injected storage backend; in-game
// mutation stays with the websocket registry.
type RoomUseCase interface {
	CreateRoom(ctx context.Context, name, hostName, hostColor string) (*domain.Room, error)
	JoinRoom(ctx context.Context, roomID uuid.UUID, playerName, playerColor string) (*domain.Room, uuid.UUID, error)
	LeaveRoom(ctx context.Context, roomID, playerID uuid.UUID) error
	ListRooms(ctx context.Context, phase domain.RoomPhase) ([]*domain.Room, error)
}
