package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// LandingActionType is the one action the session core applies itself.
const LandingActionType = "LAND_ASTRONEF"

// LandingHexCount is the astronef hex plus its three towers.
const LandingHexCount = 4

// NewLandingGame is the default GameInitializer: a fresh snapshot in the
// landing phase with the turn order following join order.
func NewLandingGame(gameID uuid.UUID, players []*Player) (*GameState, error) {
	if len(players) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 players", ErrRoomNotReady)
	}
	order := make([]uuid.UUID, 0, len(players))
	for _, p := range players {
		order = append(order, p.ID)
	}
	return &GameState{
		GameID:        gameID,
		Turn:          1,
		Phase:         PhaseLanding,
		CurrentPlayer: order[0],
		TurnOrder:     order,
		Placements:    make(map[uuid.UUID]Placement),
		Landed:        make(map[uuid.UUID]bool),
		Scores:        make(map[uuid.UUID]int),
	}, nil
}

// ApplyLanding validates and applies a landing action against a snapshot.
// It is pure: the input state is never touched, the result is a clone with
// the placement recorded and the landing pointer advanced. Once every
// player in the turn order has landed, the game moves to the deployment
// phase and the turn order resets to the first player.
//
// Replay re-runs submitted landing actions through this same function, so
// a logged-but-rejected landing replays as a no-op instead of corrupting
// reconstructed state.
func ApplyLanding(state *GameState, playerID uuid.UUID, hexes []Hex) (*GameState, error) {
	if state == nil {
		return nil, fmt.Errorf("%w: no game state", ErrInvalidLanding)
	}
	if state.Phase != PhaseLanding {
		return nil, fmt.Errorf("%w: phase is %s", ErrInvalidLanding, state.Phase)
	}
	if state.CurrentPlayer != playerID {
		return nil, fmt.Errorf("%w: not player %s's turn", ErrInvalidLanding, playerID)
	}
	if len(hexes) != LandingHexCount {
		return nil, fmt.Errorf("%w: expected %d hexes, got %d", ErrInvalidLanding, LandingHexCount, len(hexes))
	}
	if state.Landed[playerID] {
		return nil, fmt.Errorf("%w: player %s already landed", ErrInvalidLanding, playerID)
	}

	next, err := state.Clone()
	if err != nil {
		return nil, err
	}
	if next.Placements == nil {
		next.Placements = make(map[uuid.UUID]Placement)
	}
	if next.Landed == nil {
		next.Landed = make(map[uuid.UUID]bool)
	}
	next.Placements[playerID] = Placement{Astronef: hexes[0], Towers: hexes[1:]}
	next.Landed[playerID] = true

	if len(next.Landed) == len(next.TurnOrder) && len(next.TurnOrder) > 0 {
		next.Phase = PhaseDeployment
		next.CurrentPlayer = next.TurnOrder[0]
		return next, nil
	}

	next.CurrentPlayer = nextUnlanded(next, playerID)
	return next, nil
}

func nextUnlanded(state *GameState, after uuid.UUID) uuid.UUID {
	start := 0
	for i, id := range state.TurnOrder {
		if id == after {
			start = i + 1
			break
		}
	}
	for i := 0; i < len(state.TurnOrder); i++ {
		id := state.TurnOrder[(start+i)%len(state.TurnOrder)]
		if !state.Landed[id] {
			return id
		}
	}
	return after
}
