package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type GamePhase string

// The core only distinguishes the landing and deployment phases; every
// later phase belongs to the external rule layer and passes through opaque.
const (
	PhaseLanding    GamePhase = "landing"
	PhaseDeployment GamePhase = "deployment"
)

// Hex is an axial board coordinate.
type Hex struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// Placement records a player's landed astronef and its towers.
type Placement struct {
	Astronef Hex   `json:"astronef"`
	Towers   []Hex `json:"towers"`
}

// GameState is the full authoritative snapshot. The core reads and writes
// Turn, Phase, CurrentPlayer, TurnOrder and the landing bookkeeping; Board
// is carried opaque for the rule applicator. A snapshot is replaced
// wholesale on every applied action, never mutated in place by two owners.
type GameState struct {
	GameID        uuid.UUID               `json:"game_id"`
	Turn          int                     `json:"turn"`
	Phase         GamePhase               `json:"phase"`
	CurrentPlayer uuid.UUID               `json:"current_player"`
	TurnOrder     []uuid.UUID             `json:"turn_order"`
	Placements    map[uuid.UUID]Placement `json:"placements,omitempty"`
	Landed        map[uuid.UUID]bool      `json:"landed,omitempty"`
	Scores        map[uuid.UUID]int       `json:"scores,omitempty"`
	Board         json.RawMessage         `json:"board,omitempty"`
}

// Clone is the single structural-clone primitive for snapshots. Every
// defensive copy in the repository goes through here.
func (s *GameState) Clone() (*GameState, error) {
	if s == nil {
		return nil, nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("clone game state: %w", err)
	}
	var out GameState
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("clone game state: %w", err)
	}
	return &out, nil
}

// StoredAction is one entry of the append-only action log. Seq starts at 1
// per game, strictly increasing, assigned centrally and never reused.
type StoredAction struct {
	Type      string          `json:"type"`
	PlayerID  uuid.UUID       `json:"player_id"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
	Seq       int64           `json:"seq"`
}

// Checkpoint is a cached full snapshot tagged with the seq after which it
// was taken. Purely a seek optimization; the log stays authoritative.
type Checkpoint struct {
	Seq   int64      `json:"seq"`
	State *GameState `json:"state"`
}

// TurnMarker maps a turn/player to the seq where that turn began.
type TurnMarker struct {
	Turn        int       `json:"turn"`
	PlayerID    uuid.UUID `json:"player_id"`
	PlayerName  string    `json:"player_name"`
	PlayerColor string    `json:"player_color"`
	StartSeq    int64     `json:"start_seq"`
}

// RuleApplicator is the external, deterministic, side-effect-free game
// rule function. The core never implements it beyond the landing phase.
type RuleApplicator func(state *GameState, action StoredAction) (*GameState, error)

// GameInitializer builds the initial snapshot at the ready→playing
// transition. Invoked exactly once per room.
type GameInitializer func(gameID uuid.UUID, players []*Player) (*GameState, error)
