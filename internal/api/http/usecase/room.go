package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"session-service/domain"
	"session-service/infra/storage"
)

type roomUseCase struct {
	store storage.Store
}

func NewRoomUseCase(store storage.Store) RoomUseCase {
	return &roomUseCase{store: store}
}

func (u *roomUseCase) CreateRoom(ctx context.Context, name, hostName, hostColor string) (*domain.Room, error) {
	host := &domain.Player{
		ID:    uuid.New(),
		Name:  hostName,
		Color: hostColor,
	}
	room := domain.NewRoom(name, host)
	if err := u.store.SaveRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	return room, nil
}

func (u *roomUseCase) JoinRoom(ctx context.Context, roomID uuid.UUID, playerName, playerColor string) (*domain.Room, uuid.UUID, error) {
	room, err := u.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("join room: %w", err)
	}
	if room == nil {
		return nil, uuid.Nil, fmt.Errorf("%w: room %s", domain.ErrNotFound, roomID)
	}
	player := &domain.Player{
		ID:       uuid.New(),
		Name:     playerName,
		Color:    playerColor,
		LastSeen: time.Now(),
	}
	if err := room.AddPlayer(player); err != nil {
		return nil, uuid.Nil, err
	}
	if err := u.store.SaveRoom(ctx, room); err != nil {
		return nil, uuid.Nil, fmt.Errorf("join room: %w", err)
	}
	return room, player.ID, nil
}

func (u *roomUseCase) LeaveRoom(ctx context.Context, roomID, playerID uuid.UUID) error {
	room, err := u.store.GetRoom(ctx, roomID)
	if err != nil {
		return fmt.Errorf("leave room: %w", err)
	}
	if room == nil {
		return fmt.Errorf("%w: room %s", domain.ErrNotFound, roomID)
	}
	if err := room.RemovePlayer(playerID); err != nil {
		return err
	}
	if err := u.store.RemovePlayerSession(ctx, roomID, playerID); err != nil {
		return fmt.Errorf("leave room: %w", err)
	}
	if err := u.store.SaveRoom(ctx, room); err != nil {
		return fmt.Errorf("leave room: %w", err)
	}
	return nil
}

func (u *roomUseCase) ListRooms(ctx context.Context, phase domain.RoomPhase) ([]*domain.Room, error) {
	rooms, err := u.store.ListRooms(ctx, phase)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}
