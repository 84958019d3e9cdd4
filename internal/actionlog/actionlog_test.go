package actionlog

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"session-service/domain"
	"session-service/infra/storage/memory"
)

func newLog(t *testing.T) (*Log, *memory.Store) {
	t.Helper()
	store := memory.New()
	if err := store.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return New(store, DefaultCheckpointInterval), store
}

func TestAppendAssignsSequentialSeqs(t *testing.T) {
	l, store := newLog(t)
	ctx := context.Background()
	gameID := uuid.New()
	l.Reset(gameID)
	state := &domain.GameState{GameID: gameID, Turn: 1}

	for want := int64(1); want <= 3; want++ {
		logged, err := l.Append(ctx, gameID, domain.StoredAction{Type: "MOVE"}, state, nil)
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if logged.Seq != want {
			t.Errorf("seq = %d, want %d", logged.Seq, want)
		}
	}

	actions, err := store.GetActions(ctx, gameID, 0)
	if err != nil {
		t.Fatalf("GetActions: %v", err)
	}
	if len(actions) != 3 {
		t.Errorf("persisted %d actions, want 3", len(actions))
	}
}

func TestCounterRecoversFromPersistedLog(t *testing.T) {
	l, store := newLog(t)
	ctx := context.Background()
	gameID := uuid.New()
	l.Reset(gameID)
	state := &domain.GameState{GameID: gameID, Turn: 1}

	for i := 0; i < 4; i++ {
		if _, err := l.Append(ctx, gameID, domain.StoredAction{Type: "MOVE"}, state, nil); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	// A fresh Log over the same store picks up where the old one stopped.
	fresh := New(store, DefaultCheckpointInterval)
	logged, err := fresh.Append(ctx, gameID, domain.StoredAction{Type: "MOVE"}, state, nil)
	if err != nil {
		t.Fatalf("Append after restart: %v", err)
	}
	if logged.Seq != 5 {
		t.Errorf("seq after restart = %d, want 5", logged.Seq)
	}
}

func TestTurnMarkersWrittenOncePerTurn(t *testing.T) {
	l, store := newLog(t)
	ctx := context.Background()
	gameID := uuid.New()
	l.Reset(gameID)
	player := &domain.Player{ID: uuid.New(), Name: "p1", Color: "red"}

	turn1 := &domain.GameState{GameID: gameID, Turn: 1}
	turn2 := &domain.GameState{GameID: gameID, Turn: 2}

	l.Append(ctx, gameID, domain.StoredAction{Type: "A", PlayerID: player.ID}, turn1, player)
	l.Append(ctx, gameID, domain.StoredAction{Type: "B", PlayerID: player.ID}, turn1, player)
	l.Append(ctx, gameID, domain.StoredAction{Type: "C", PlayerID: player.ID}, turn2, player)

	markers, err := store.GetTurnMarkers(ctx, gameID)
	if err != nil {
		t.Fatalf("GetTurnMarkers: %v", err)
	}
	if len(markers) != 2 {
		t.Fatalf("got %d markers, want 2", len(markers))
	}
	if markers[0].Turn != 1 || markers[0].StartSeq != 1 {
		t.Errorf("marker[0] = %+v", markers[0])
	}
	if markers[1].Turn != 2 || markers[1].StartSeq != 3 {
		t.Errorf("marker[1] = %+v", markers[1])
	}
	if markers[0].PlayerName != "p1" || markers[0].PlayerColor != "red" {
		t.Errorf("marker missing player attribution: %+v", markers[0])
	}
}

func TestMaybeCheckpointInterval(t *testing.T) {
	l, store := newLog(t)
	ctx := context.Background()
	gameID := uuid.New()
	l.Reset(gameID)
	state := &domain.GameState{GameID: gameID, Turn: 1}

	var written int
	for seq := int64(1); seq <= 12; seq++ {
		wrote, err := l.MaybeCheckpoint(ctx, gameID, seq, state)
		if err != nil {
			t.Fatalf("MaybeCheckpoint(%d): %v", seq, err)
		}
		if wrote {
			written++
		}
	}

	if written != 1 {
		t.Errorf("wrote %d checkpoints across 12 seqs, want 1", written)
	}
	cps, err := store.GetCheckpoints(ctx, gameID)
	if err != nil {
		t.Fatalf("GetCheckpoints: %v", err)
	}
	if len(cps) != 1 || cps[0].Seq != 10 {
		t.Errorf("checkpoints = %+v, want one at seq 10", cps)
	}
}

func TestCheckpointClonesState(t *testing.T) {
	l, store := newLog(t)
	ctx := context.Background()
	gameID := uuid.New()
	state := &domain.GameState{GameID: gameID, Turn: 3}

	if err := l.Checkpoint(ctx, gameID, 7, state); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	state.Turn = 99

	cps, _ := store.GetCheckpoints(ctx, gameID)
	if cps[0].State.Turn != 3 {
		t.Errorf("checkpoint state leaked caller mutation: turn %d", cps[0].State.Turn)
	}
}

func TestAppendRollsBackSeqOnStoreFailure(t *testing.T) {
	store := memory.New()
	l := New(store, DefaultCheckpointInterval)
	ctx := context.Background()
	gameID := uuid.New()
	l.Reset(gameID)
	state := &domain.GameState{GameID: gameID, Turn: 1}

	// Store never connected: LogAction fails and the seq must not burn.
	if _, err := l.Append(ctx, gameID, domain.StoredAction{Type: "A"}, state, nil); err == nil {
		t.Fatal("expected append failure on disconnected store")
	}

	if err := store.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	logged, err := l.Append(ctx, gameID, domain.StoredAction{Type: "A"}, state, nil)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if logged.Seq != 1 {
		t.Errorf("seq = %d, want 1 (failed append must not consume a seq)", logged.Seq)
	}
	if errors.Is(err, domain.ErrNotConnected) {
		t.Error("unexpected sentinel on success path")
	}
}
