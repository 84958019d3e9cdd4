package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func newTestPlayer(name, color string) *Player {
	return &Player{ID: uuid.New(), Name: name, Color: color}
}

func TestAddPlayerLimits(t *testing.T) {
	host := newTestPlayer("host", "red")
	room := NewRoom("test", host)

	colors := []string{"blue", "green", "yellow"}
	for _, c := range colors {
		if err := room.AddPlayer(newTestPlayer("p", c)); err != nil {
			t.Fatalf("AddPlayer(%s): %v", c, err)
		}
	}

	if err := room.AddPlayer(newTestPlayer("late", "purple")); !errors.Is(err, ErrRoomFull) {
		t.Errorf("expected ErrRoomFull, got %v", err)
	}
}

func TestAddPlayerDuplicateID(t *testing.T) {
	host := newTestPlayer("host", "red")
	room := NewRoom("test", host)

	dup := &Player{ID: host.ID, Name: "imposter", Color: "blue"}
	if err := room.AddPlayer(dup); !errors.Is(err, ErrDuplicatePlayer) {
		t.Errorf("expected ErrDuplicatePlayer, got %v", err)
	}
}

func TestAddPlayerColorTaken(t *testing.T) {
	room := NewRoom("test", newTestPlayer("host", "red"))

	if err := room.AddPlayer(newTestPlayer("p2", "red")); !errors.Is(err, ErrColorTaken) {
		t.Errorf("expected ErrColorTaken, got %v", err)
	}
}

func TestRemovePlayerHostProtected(t *testing.T) {
	host := newTestPlayer("host", "red")
	room := NewRoom("test", host)
	p2 := newTestPlayer("p2", "blue")
	room.AddPlayer(p2)

	if err := room.RemovePlayer(host.ID); !errors.Is(err, ErrCannotRemoveHost) {
		t.Errorf("expected ErrCannotRemoveHost, got %v", err)
	}
	if err := room.RemovePlayer(p2.ID); err != nil {
		t.Fatalf("RemovePlayer: %v", err)
	}
	if len(room.Players) != 1 {
		t.Errorf("expected 1 player left, got %d", len(room.Players))
	}
}

func TestCheckReadyState(t *testing.T) {
	host := newTestPlayer("host", "red")
	room := NewRoom("test", host)

	room.SetPlayerReady(host.ID, true)
	if room.CheckReadyState() {
		t.Error("single-player room must not become ready")
	}

	p2 := newTestPlayer("p2", "blue")
	room.AddPlayer(p2)
	if room.CheckReadyState() {
		t.Error("room with an unready player must not become ready")
	}

	room.SetPlayerReady(p2.ID, true)
	if !room.CheckReadyState() {
		t.Fatal("all-ready room must transition to ready")
	}
	if room.Phase != RoomReady {
		t.Errorf("phase = %s, want %s", room.Phase, RoomReady)
	}

	// Idempotent: second call reports no transition and changes nothing.
	if room.CheckReadyState() {
		t.Error("second CheckReadyState must not report a transition")
	}

	// Unready after the transition never reverts the phase.
	room.SetPlayerReady(p2.ID, false)
	room.CheckReadyState()
	if room.Phase != RoomReady {
		t.Errorf("ready phase reverted to %s", room.Phase)
	}
}

func TestStartGameRequiresReady(t *testing.T) {
	host := newTestPlayer("host", "red")
	room := NewRoom("test", host)

	if err := room.StartGame(&GameState{}); !errors.Is(err, ErrRoomNotReady) {
		t.Errorf("expected ErrRoomNotReady from waiting, got %v", err)
	}

	p2 := newTestPlayer("p2", "blue")
	room.AddPlayer(p2)
	room.SetPlayerReady(host.ID, true)
	room.SetPlayerReady(p2.ID, true)
	room.CheckReadyState()

	state := &GameState{GameID: room.ID}
	if err := room.StartGame(state); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if room.Phase != RoomPlaying {
		t.Errorf("phase = %s, want %s", room.Phase, RoomPlaying)
	}
	if room.GameState != state {
		t.Error("snapshot was not installed")
	}
}

func TestUpdateGameStateRequiresPlaying(t *testing.T) {
	room := NewRoom("test", newTestPlayer("host", "red"))

	if err := room.UpdateGameState(&GameState{}); !errors.Is(err, ErrGameNotInProgress) {
		t.Errorf("expected ErrGameNotInProgress, got %v", err)
	}
}

func TestEndGameAttachesScores(t *testing.T) {
	host := newTestPlayer("host", "red")
	p2 := newTestPlayer("p2", "blue")
	room := NewRoom("test", host)
	room.AddPlayer(p2)
	room.SetPlayerReady(host.ID, true)
	room.SetPlayerReady(p2.ID, true)
	room.CheckReadyState()
	room.StartGame(&GameState{GameID: room.ID})

	scores := map[uuid.UUID]int{host.ID: 10, p2.ID: 7}
	room.EndGame(scores)

	if room.Phase != RoomFinished {
		t.Errorf("phase = %s, want %s", room.Phase, RoomFinished)
	}
	if room.GameState.Scores[host.ID] != 10 {
		t.Errorf("host score = %d, want 10", room.GameState.Scores[host.ID])
	}
}

func TestUnknownPlayerMutationsAreNoOps(t *testing.T) {
	room := NewRoom("test", newTestPlayer("host", "red"))
	ghost := uuid.New()

	room.SetPlayerReady(ghost, true)
	room.SetPlayerConnected(ghost, true)
	room.UpdatePlayerLastSeen(ghost)

	if len(room.Players) != 1 {
		t.Errorf("roster changed by unknown-player mutation")
	}
}
