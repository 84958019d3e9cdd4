// Package memory is the in-process storage adapter used by tests and
// development. Pub/sub delivery is deliberately asynchronous (a fresh
// goroutine per publish) so it exhibits the same ordering a network
// backend would: a publisher never sees synchronous delivery to its own
// subscribers.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"session-service/domain"
	"session-service/infra/storage"
)

type Store struct {
	mu        sync.RWMutex
	connected bool

	rooms       map[uuid.UUID]*domain.Room
	states      map[uuid.UUID]*domain.GameState
	actions     map[uuid.UUID][]domain.StoredAction
	checkpoints map[uuid.UUID][]domain.Checkpoint
	markers     map[uuid.UUID][]domain.TurnMarker
	sessions    map[uuid.UUID]map[uuid.UUID]string
	handlers    map[uuid.UUID]storage.MessageHandler
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{}
}

func (s *Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return nil
	}
	s.rooms = make(map[uuid.UUID]*domain.Room)
	s.states = make(map[uuid.UUID]*domain.GameState)
	s.actions = make(map[uuid.UUID][]domain.StoredAction)
	s.checkpoints = make(map[uuid.UUID][]domain.Checkpoint)
	s.markers = make(map[uuid.UUID][]domain.TurnMarker)
	s.sessions = make(map[uuid.UUID]map[uuid.UUID]string)
	s.handlers = make(map[uuid.UUID]storage.MessageHandler)
	s.connected = true
	return nil
}

func (s *Store) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.rooms = nil
	s.states = nil
	s.actions = nil
	s.checkpoints = nil
	s.markers = nil
	s.sessions = nil
	s.handlers = nil
	return nil
}

func (s *Store) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *Store) guard() error {
	if !s.connected {
		return fmt.Errorf("memory store: %w", domain.ErrNotConnected)
	}
	return nil
}

// cloneRoom keeps stored rooms isolated from caller mutation.
func cloneRoom(r *domain.Room) (*domain.Room, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("clone room: %w", err)
	}
	var out domain.Room
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("clone room: %w", err)
	}
	return &out, nil
}

func (s *Store) SaveRoom(ctx context.Context, room *domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}
	copied, err := cloneRoom(room)
	if err != nil {
		return err
	}
	s.rooms[room.ID] = copied
	return nil
}

func (s *Store) GetRoom(ctx context.Context, id uuid.UUID) (*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guard(); err != nil {
		return nil, err
	}
	room, ok := s.rooms[id]
	if !ok {
		return nil, nil
	}
	return cloneRoom(room)
}

func (s *Store) DeleteRoom(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}
	delete(s.rooms, id)
	delete(s.states, id)
	delete(s.actions, id)
	delete(s.checkpoints, id)
	delete(s.markers, id)
	delete(s.sessions, id)
	delete(s.handlers, id)
	return nil
}

func (s *Store) ListRooms(ctx context.Context, phase domain.RoomPhase) ([]*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guard(); err != nil {
		return nil, err
	}
	out := make([]*domain.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		if phase != "" && room.Phase != phase {
			continue
		}
		copied, err := cloneRoom(room)
		if err != nil {
			return nil, err
		}
		out = append(out, copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) SaveGameState(ctx context.Context, gameID uuid.UUID, state *domain.GameState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}
	copied, err := state.Clone()
	if err != nil {
		return err
	}
	s.states[gameID] = copied
	return nil
}

func (s *Store) GetGameState(ctx context.Context, gameID uuid.UUID) (*domain.GameState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guard(); err != nil {
		return nil, err
	}
	state, ok := s.states[gameID]
	if !ok {
		return nil, nil
	}
	return state.Clone()
}

func (s *Store) LogAction(ctx context.Context, gameID uuid.UUID, action domain.StoredAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}
	s.actions[gameID] = append(s.actions[gameID], action)
	return nil
}

func (s *Store) GetActions(ctx context.Context, gameID uuid.UUID, fromSeq int64) ([]domain.StoredAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guard(); err != nil {
		return nil, err
	}
	var out []domain.StoredAction
	for _, a := range s.actions[gameID] {
		if a.Seq > fromSeq {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) SaveCheckpoint(ctx context.Context, gameID uuid.UUID, cp domain.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}
	state, err := cp.State.Clone()
	if err != nil {
		return err
	}
	cp.State = state
	s.checkpoints[gameID] = append(s.checkpoints[gameID], cp)
	sort.Slice(s.checkpoints[gameID], func(i, j int) bool {
		return s.checkpoints[gameID][i].Seq < s.checkpoints[gameID][j].Seq
	})
	return nil
}

func (s *Store) GetCheckpoints(ctx context.Context, gameID uuid.UUID) ([]domain.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guard(); err != nil {
		return nil, err
	}
	return append([]domain.Checkpoint(nil), s.checkpoints[gameID]...), nil
}

func (s *Store) SaveTurnMarker(ctx context.Context, gameID uuid.UUID, marker domain.TurnMarker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}
	s.markers[gameID] = append(s.markers[gameID], marker)
	return nil
}

func (s *Store) GetTurnMarkers(ctx context.Context, gameID uuid.UUID) ([]domain.TurnMarker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guard(); err != nil {
		return nil, err
	}
	return append([]domain.TurnMarker(nil), s.markers[gameID]...), nil
}

func (s *Store) AddPlayerSession(ctx context.Context, gameID, playerID uuid.UUID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}
	if s.sessions[gameID] == nil {
		s.sessions[gameID] = make(map[uuid.UUID]string)
	}
	s.sessions[gameID][playerID] = sessionID
	return nil
}

func (s *Store) RemovePlayerSession(ctx context.Context, gameID, playerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}
	delete(s.sessions[gameID], playerID)
	return nil
}

func (s *Store) GetPlayerSessions(ctx context.Context, gameID uuid.UUID) (map[uuid.UUID]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guard(); err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]string, len(s.sessions[gameID]))
	for k, v := range s.sessions[gameID] {
		out[k] = v
	}
	return out, nil
}

func (s *Store) Subscribe(ctx context.Context, gameID uuid.UUID, handler storage.MessageHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}
	s.handlers[gameID] = handler
	return nil
}

func (s *Store) Unsubscribe(ctx context.Context, gameID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}
	delete(s.handlers, gameID)
	return nil
}

func (s *Store) Publish(ctx context.Context, gameID uuid.UUID, payload []byte) error {
	s.mu.RLock()
	handler, ok := s.handlers[gameID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	copied := append([]byte(nil), payload...)
	go handler(copied)
	return nil
}
