package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type RoomPhase string

const (
	RoomWaiting  RoomPhase = "waiting"
	RoomReady    RoomPhase = "ready"
	RoomPlaying  RoomPhase = "playing"
	RoomFinished RoomPhase = "finished"
)

const MaxPlayers = 4

type Player struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Ready     bool      `json:"ready"`
	Connected bool      `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// Spectator is a read-only connection identity. It never appears in the
// roster and never mutates game state.
type Spectator struct {
	ID        uuid.UUID `json:"id"`
	Connected bool      `json:"connected"`
}

// Room is the in-process session container for one game. Its methods do
// not lock: the connection registry serializes all mutations for a given
// room on a single worker, so callers outside that worker must treat a
// Room as read-only.
type Room struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	HostID    uuid.UUID  `json:"host_id"`
	Phase     RoomPhase  `json:"phase"`
	Players   []*Player  `json:"players"`
	CreatedAt time.Time  `json:"created_at"`
	GameState *GameState `json:"game_state,omitempty"`
}

func NewRoom(name string, host *Player) *Room {
	host.Connected = true
	host.LastSeen = time.Now()
	return &Room{
		ID:        uuid.New(),
		Name:      name,
		HostID:    host.ID,
		Phase:     RoomWaiting,
		Players:   []*Player{host},
		CreatedAt: time.Now(),
	}
}

func (r *Room) Player(id uuid.UUID) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) AddPlayer(p *Player) error {
	if len(r.Players) >= MaxPlayers {
		return fmt.Errorf("%w: room %s", ErrRoomFull, r.ID)
	}
	for _, existing := range r.Players {
		if existing.ID == p.ID {
			return fmt.Errorf("%w: %s", ErrDuplicatePlayer, p.ID)
		}
		if existing.Color == p.Color {
			return fmt.Errorf("%w: %s", ErrColorTaken, p.Color)
		}
	}
	p.LastSeen = time.Now()
	r.Players = append(r.Players, p)
	return nil
}

func (r *Room) RemovePlayer(id uuid.UUID) error {
	if id == r.HostID {
		return fmt.Errorf("%w: %s", ErrCannotRemoveHost, id)
	}
	for i, p := range r.Players {
		if p.ID == id {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: player %s", ErrNotFound, id)
}

// SetPlayerReady is a no-op for unknown players.
func (r *Room) SetPlayerReady(id uuid.UUID, ready bool) {
	if p := r.Player(id); p != nil {
		p.Ready = ready
	}
}

func (r *Room) SetPlayerConnected(id uuid.UUID, connected bool) {
	if p := r.Player(id); p != nil {
		p.Connected = connected
		if connected {
			p.LastSeen = time.Now()
		}
	}
}

func (r *Room) UpdatePlayerLastSeen(id uuid.UUID) {
	if p := r.Player(id); p != nil {
		p.LastSeen = time.Now()
	}
}

// CheckReadyState transitions waiting→ready when at least two players are
// present and every one of them is ready. It is idempotent and never
// reverts an already-ready room. Returns true if the transition happened.
func (r *Room) CheckReadyState() bool {
	if r.Phase != RoomWaiting {
		return false
	}
	if len(r.Players) < 2 {
		return false
	}
	for _, p := range r.Players {
		if !p.Ready {
			return false
		}
	}
	r.Phase = RoomReady
	return true
}

// StartGame installs the initial snapshot and moves the room to playing.
func (r *Room) StartGame(initial *GameState) error {
	if r.Phase != RoomReady {
		return fmt.Errorf("%w: phase %s", ErrRoomNotReady, r.Phase)
	}
	r.Phase = RoomPlaying
	r.GameState = initial
	return nil
}

// UpdateGameState replaces the snapshot wholesale. This is the single
// mutation point for authoritative state; callers serialize per room.
func (r *Room) UpdateGameState(state *GameState) error {
	if r.Phase != RoomPlaying {
		return fmt.Errorf("%w: phase %s", ErrGameNotInProgress, r.Phase)
	}
	r.GameState = state
	return nil
}

func (r *Room) EndGame(scores map[uuid.UUID]int) {
	r.Phase = RoomFinished
	if r.GameState != nil {
		r.GameState.Scores = scores
	}
}
