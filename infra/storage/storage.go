// Package storage defines the persistence and pub/sub contract every
// backend implements identically. Backends are interchangeable: the
// registry and the API layer only ever see this interface.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"session-service/domain"
)

// MessageHandler receives raw pub/sub payloads for a game channel.
type MessageHandler func(payload []byte)

// TTLs carry the advisory expiries applied to hot data. They are cache
// hygiene, not correctness: the action log is the source of truth.
type TTLs struct {
	Room    time.Duration
	State   time.Duration
	Session time.Duration
}

func DefaultTTLs() TTLs {
	return TTLs{Room: 24 * time.Hour, State: time.Hour, Session: 24 * time.Hour}
}

type Store interface {
	// Connect/Disconnect bracket the adapter lifecycle. Disconnect
	// releases every resource (including live subscriptions) and leaves
	// the adapter safely re-connectable.
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool

	SaveRoom(ctx context.Context, room *domain.Room) error
	// GetRoom returns (nil, nil) when the room does not exist.
	GetRoom(ctx context.Context, id uuid.UUID) (*domain.Room, error)
	// DeleteRoom also purges state, actions, checkpoints, turn markers,
	// sessions and any pub/sub subscription for the id.
	DeleteRoom(ctx context.Context, id uuid.UUID) error
	// ListRooms returns rooms sorted by creation time descending,
	// optionally filtered by phase ("" means all).
	ListRooms(ctx context.Context, phase domain.RoomPhase) ([]*domain.Room, error)

	// SaveGameState fully overwrites the snapshot; no partial merge.
	SaveGameState(ctx context.Context, gameID uuid.UUID, state *domain.GameState) error
	// GetGameState returns (nil, nil) when no snapshot exists.
	GetGameState(ctx context.Context, gameID uuid.UUID) (*domain.GameState, error)

	// LogAction appends; actions are never reordered or deduplicated.
	LogAction(ctx context.Context, gameID uuid.UUID, action domain.StoredAction) error
	// GetActions returns actions with seq > fromSeq in ascending order.
	GetActions(ctx context.Context, gameID uuid.UUID, fromSeq int64) ([]domain.StoredAction, error)

	SaveCheckpoint(ctx context.Context, gameID uuid.UUID, cp domain.Checkpoint) error
	// GetCheckpoints returns checkpoints in ascending seq order.
	GetCheckpoints(ctx context.Context, gameID uuid.UUID) ([]domain.Checkpoint, error)

	SaveTurnMarker(ctx context.Context, gameID uuid.UUID, marker domain.TurnMarker) error
	GetTurnMarkers(ctx context.Context, gameID uuid.UUID) ([]domain.TurnMarker, error)

	AddPlayerSession(ctx context.Context, gameID, playerID uuid.UUID, sessionID string) error
	RemovePlayerSession(ctx context.Context, gameID, playerID uuid.UUID) error
	GetPlayerSessions(ctx context.Context, gameID uuid.UUID) (map[uuid.UUID]string, error)

	// Subscribe installs the at-most-one handler for a game channel on
	// this adapter instance; a second Subscribe replaces the first.
	Subscribe(ctx context.Context, gameID uuid.UUID, handler MessageHandler) error
	Unsubscribe(ctx context.Context, gameID uuid.UUID) error
	// Publish is best-effort fan-out. Publishing to a channel with no
	// local handler is a no-op, not an error, and a publisher never
	// observes synchronous delivery to its own subscribers.
	Publish(ctx context.Context, gameID uuid.UUID, payload []byte) error
}
