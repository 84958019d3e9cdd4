// Package postgres is the reserved relational backend. It connects and
// pings so configuration problems surface at startup, but every contract
// method returns ErrBackendNotImplemented until the schema lands.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"session-service/domain"
	"session-service/infra/storage"
)

type Options struct {
	Host     string
	Port     string
	User     string
	Password string
	DB       string
}

type Store struct {
	opts Options
	mu   sync.Mutex
	db   *sql.DB
}

var _ storage.Store = (*Store)(nil)

func New(opts Options) *Store {
	return &Store{opts: opts}
}

func (s *Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		s.opts.Host, s.opts.Port, s.opts.User, s.opts.Password, s.opts.DB)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("postgres open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("postgres ping: %w", err)
	}
	s.db = db
	return nil
}

func (s *Store) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db != nil
}

func (s *Store) SaveRoom(ctx context.Context, room *domain.Room) error {
	return domain.ErrBackendNotImplemented
}

func (s *Store) GetRoom(ctx context.Context, id uuid.UUID) (*domain.Room, error) {
	return nil, domain.ErrBackendNotImplemented
}

func (s *Store) DeleteRoom(ctx context.Context, id uuid.UUID) error {
	return domain.ErrBackendNotImplemented
}

func (s *Store) ListRooms(ctx context.Context, phase domain.RoomPhase) ([]*domain.Room, error) {
	return nil, domain.ErrBackendNotImplemented
}

func (s *Store) SaveGameState(ctx context.Context, gameID uuid.UUID, state *domain.GameState) error {
	return domain.ErrBackendNotImplemented
}

func (s *Store) GetGameState(ctx context.Context, gameID uuid.UUID) (*domain.GameState, error) {
	return nil, domain.ErrBackendNotImplemented
}

func (s *Store) LogAction(ctx context.Context, gameID uuid.UUID, action domain.StoredAction) error {
	return domain.ErrBackendNotImplemented
}

func (s *Store) GetActions(ctx context.Context, gameID uuid.UUID, fromSeq int64) ([]domain.StoredAction, error) {
	return nil, domain.ErrBackendNotImplemented
}

func (s *Store) SaveCheckpoint(ctx context.Context, gameID uuid.UUID, cp domain.Checkpoint) error {
	return domain.ErrBackendNotImplemented
}

func (s *Store) GetCheckpoints(ctx context.Context, gameID uuid.UUID) ([]domain.Checkpoint, error) {
	return nil, domain.ErrBackendNotImplemented
}

func (s *Store) SaveTurnMarker(ctx context.Context, gameID uuid.UUID, marker domain.TurnMarker) error {
	return domain.ErrBackendNotImplemented
}

func (s *Store) GetTurnMarkers(ctx context.Context, gameID uuid.UUID) ([]domain.TurnMarker, error) {
	return nil, domain.ErrBackendNotImplemented
}

func (s *Store) AddPlayerSession(ctx context.Context, gameID, playerID uuid.UUID, sessionID string) error {
	return domain.ErrBackendNotImplemented
}

func (s *Store) RemovePlayerSession(ctx context.Context, gameID, playerID uuid.UUID) error {
	return domain.ErrBackendNotImplemented
}

func (s *Store) GetPlayerSessions(ctx context.Context, gameID uuid.UUID) (map[uuid.UUID]string, error) {
	return nil, domain.ErrBackendNotImplemented
}

func (s *Store) Subscribe(ctx context.Context, gameID uuid.UUID, handler storage.MessageHandler) error {
	return domain.ErrBackendNotImplemented
}

func (s *Store) Unsubscribe(ctx context.Context, gameID uuid.UUID) error {
	return domain.ErrBackendNotImplemented
}

func (s *Store) Publish(ctx context.Context, gameID uuid.UUID, payload []byte) error {
	return domain.ErrBackendNotImplemented
}
