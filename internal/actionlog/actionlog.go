// Package actionlog owns sequence assignment, periodic checkpointing and
// the turn-marker index for the append-only action log.
package actionlog

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"session-service/domain"
	"session-service/infra/storage"
)

// DefaultCheckpointInterval is the number of actions between full-state
// checkpoints.
const DefaultCheckpointInterval = 10

type gameCounter struct {
	nextSeq    int64
	lastMarked int // last turn a marker was written for; -1 means none
}

// Log assigns per-game sequence numbers centrally: seqs start at 1, are
// strictly increasing and never reused, even for actions later rejected.
type Log struct {
	store    storage.Store
	interval int

	mu    sync.Mutex
	games map[uuid.UUID]*gameCounter
}

func New(store storage.Store, interval int) *Log {
	if interval <= 0 {
		interval = DefaultCheckpointInterval
	}
	return &Log{
		store:    store,
		interval: interval,
		games:    make(map[uuid.UUID]*gameCounter),
	}
}

func (l *Log) Interval() int { return l.interval }

// Reset zeroes the counter for a game so the first appended action gets
// seq 1. Called at the ready→playing transition.
func (l *Log) Reset(gameID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.games[gameID] = &gameCounter{lastMarked: -1}
}

// counter recovers the counter from the persisted log after a restart.
func (l *Log) counter(ctx context.Context, gameID uuid.UUID) (*gameCounter, error) {
	if c, ok := l.games[gameID]; ok {
		return c, nil
	}
	actions, err := l.store.GetActions(ctx, gameID, 0)
	if err != nil {
		return nil, fmt.Errorf("recover action counter: %w", err)
	}
	c := &gameCounter{lastMarked: -1}
	if n := len(actions); n > 0 {
		c.nextSeq = actions[n-1].Seq
	}
	markers, err := l.store.GetTurnMarkers(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("recover turn markers: %w", err)
	}
	if n := len(markers); n > 0 {
		c.lastMarked = markers[n-1].Turn
	}
	l.games[gameID] = c
	return c, nil
}

// Append assigns the next seq and persists the action. The supplied state
// is the snapshot the action was submitted against; its turn drives the
// incremental turn-marker index. Appending happens before any rule
// application so the log never misses a submitted action.
func (l *Log) Append(ctx context.Context, gameID uuid.UUID, action domain.StoredAction, state *domain.GameState, player *domain.Player) (domain.StoredAction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, err := l.counter(ctx, gameID)
	if err != nil {
		return domain.StoredAction{}, err
	}
	c.nextSeq++
	action.Seq = c.nextSeq

	if err := l.store.LogAction(ctx, gameID, action); err != nil {
		c.nextSeq--
		return domain.StoredAction{}, fmt.Errorf("log action: %w", err)
	}

	if state != nil && state.Turn != c.lastMarked {
		marker := domain.TurnMarker{
			Turn:     state.Turn,
			PlayerID: action.PlayerID,
			StartSeq: action.Seq,
		}
		if player != nil {
			marker.PlayerName = player.Name
			marker.PlayerColor = player.Color
		}
		if err := l.store.SaveTurnMarker(ctx, gameID, marker); err != nil {
			// The marker index is a navigation aid; losing one entry is
			// recoverable from the log itself.
			zap.L().Warn("Failed to save turn marker",
				zap.String("game_id", gameID.String()),
				zap.Int64("seq", action.Seq),
				zap.Error(err))
		} else {
			c.lastMarked = state.Turn
		}
	}

	return action, nil
}

// MaybeCheckpoint writes a full-state checkpoint when seq crosses the
// interval. Returns whether one was written.
func (l *Log) MaybeCheckpoint(ctx context.Context, gameID uuid.UUID, seq int64, state *domain.GameState) (bool, error) {
	if seq%int64(l.interval) != 0 {
		return false, nil
	}
	if err := l.Checkpoint(ctx, gameID, seq, state); err != nil {
		return false, err
	}
	return true, nil
}

// Checkpoint unconditionally snapshots state at seq. Used on interval
// crossings and on every successful landing-phase transition.
func (l *Log) Checkpoint(ctx context.Context, gameID uuid.UUID, seq int64, state *domain.GameState) error {
	copied, err := state.Clone()
	if err != nil {
		return err
	}
	if err := l.store.SaveCheckpoint(ctx, gameID, domain.Checkpoint{Seq: seq, State: copied}); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}
