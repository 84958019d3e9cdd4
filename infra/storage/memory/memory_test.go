package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"session-service/domain"
)

func connectedStore(t *testing.T) *Store {
	t.Helper()
	s := New()
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return s
}

func TestOperationsRequireConnection(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.SaveRoom(ctx, &domain.Room{ID: uuid.New()}); !errors.Is(err, domain.ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	if _, err := s.GetRoom(ctx, uuid.New()); !errors.Is(err, domain.ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestDisconnectIsReconnectable(t *testing.T) {
	s := connectedStore(t)
	ctx := context.Background()

	room := &domain.Room{ID: uuid.New(), Phase: domain.RoomWaiting}
	if err := s.SaveRoom(ctx, room); err != nil {
		t.Fatalf("SaveRoom: %v", err)
	}
	if err := s.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if s.IsConnected() {
		t.Fatal("still connected after Disconnect")
	}

	if err := s.Connect(ctx); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	got, err := s.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("GetRoom after reconnect: %v", err)
	}
	if got != nil {
		t.Error("disconnect must release stored data")
	}
}

func TestGetRoomMissingIsNilNil(t *testing.T) {
	s := connectedStore(t)

	room, err := s.GetRoom(context.Background(), uuid.New())
	if err != nil || room != nil {
		t.Errorf("GetRoom(missing) = (%v, %v), want (nil, nil)", room, err)
	}
}

func TestSaveRoomIsolation(t *testing.T) {
	s := connectedStore(t)
	ctx := context.Background()

	room := &domain.Room{ID: uuid.New(), Name: "original", Phase: domain.RoomWaiting}
	if err := s.SaveRoom(ctx, room); err != nil {
		t.Fatalf("SaveRoom: %v", err)
	}
	room.Name = "mutated"

	got, err := s.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if got.Name != "original" {
		t.Errorf("stored room leaked caller mutation: %s", got.Name)
	}
}

func TestListRoomsOrderAndFilter(t *testing.T) {
	s := connectedStore(t)
	ctx := context.Background()

	old := &domain.Room{ID: uuid.New(), Phase: domain.RoomWaiting, CreatedAt: time.Now().Add(-time.Hour)}
	recent := &domain.Room{ID: uuid.New(), Phase: domain.RoomPlaying, CreatedAt: time.Now()}
	for _, r := range []*domain.Room{old, recent} {
		if err := s.SaveRoom(ctx, r); err != nil {
			t.Fatalf("SaveRoom: %v", err)
		}
	}

	all, err := s.ListRooms(ctx, "")
	if err != nil {
		t.Fatalf("ListRooms: %v", err)
	}
	if len(all) != 2 || all[0].ID != recent.ID {
		t.Errorf("rooms not sorted by creation descending")
	}

	playing, err := s.ListRooms(ctx, domain.RoomPlaying)
	if err != nil {
		t.Fatalf("ListRooms(playing): %v", err)
	}
	if len(playing) != 1 || playing[0].ID != recent.ID {
		t.Errorf("phase filter failed: %v", playing)
	}
}

func TestDeleteRoomPurgesEverything(t *testing.T) {
	s := connectedStore(t)
	ctx := context.Background()
	id := uuid.New()

	s.SaveRoom(ctx, &domain.Room{ID: id})
	s.SaveGameState(ctx, id, &domain.GameState{GameID: id})
	s.LogAction(ctx, id, domain.StoredAction{Seq: 1, Type: "X"})
	s.AddPlayerSession(ctx, id, uuid.New(), "session")

	if err := s.DeleteRoom(ctx, id); err != nil {
		t.Fatalf("DeleteRoom: %v", err)
	}

	if room, _ := s.GetRoom(ctx, id); room != nil {
		t.Error("room survived delete")
	}
	if state, _ := s.GetGameState(ctx, id); state != nil {
		t.Error("state survived delete")
	}
	if actions, _ := s.GetActions(ctx, id, 0); len(actions) != 0 {
		t.Error("actions survived delete")
	}
	if sessions, _ := s.GetPlayerSessions(ctx, id); len(sessions) != 0 {
		t.Error("sessions survived delete")
	}
}

func TestGetActionsFromSeq(t *testing.T) {
	s := connectedStore(t)
	ctx := context.Background()
	id := uuid.New()

	for seq := int64(1); seq <= 5; seq++ {
		if err := s.LogAction(ctx, id, domain.StoredAction{Seq: seq, Type: "X"}); err != nil {
			t.Fatalf("LogAction: %v", err)
		}
	}

	got, err := s.GetActions(ctx, id, 2)
	if err != nil {
		t.Fatalf("GetActions: %v", err)
	}
	if len(got) != 3 || got[0].Seq != 3 || got[2].Seq != 5 {
		t.Errorf("GetActions(fromSeq=2) = %v", got)
	}
}

func TestPublishWithoutHandlerIsNoOp(t *testing.T) {
	s := connectedStore(t)

	if err := s.Publish(context.Background(), uuid.New(), []byte("hello")); err != nil {
		t.Errorf("Publish without handler: %v", err)
	}
}

func TestPubSubAsyncDelivery(t *testing.T) {
	s := connectedStore(t)
	ctx := context.Background()
	id := uuid.New()

	received := make(chan []byte, 1)
	if err := s.Subscribe(ctx, id, func(payload []byte) {
		received <- payload
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := s.Publish(ctx, id, []byte("frame")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case payload := <-received:
		if string(payload) != "frame" {
			t.Errorf("payload = %q", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no delivery within 1s")
	}

	if err := s.Unsubscribe(ctx, id); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	s.Publish(ctx, id, []byte("after"))
	select {
	case <-received:
		t.Error("delivery after Unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSecondSubscribeReplacesFirst(t *testing.T) {
	s := connectedStore(t)
	ctx := context.Background()
	id := uuid.New()

	first := make(chan []byte, 1)
	second := make(chan []byte, 1)
	s.Subscribe(ctx, id, func(p []byte) { first <- p })
	s.Subscribe(ctx, id, func(p []byte) { second <- p })

	s.Publish(ctx, id, []byte("x"))

	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("replacement handler never fired")
	}
	select {
	case <-first:
		t.Error("replaced handler still receives")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSessions(t *testing.T) {
	s := connectedStore(t)
	ctx := context.Background()
	gameID, playerID := uuid.New(), uuid.New()

	if err := s.AddPlayerSession(ctx, gameID, playerID, "token-1"); err != nil {
		t.Fatalf("AddPlayerSession: %v", err)
	}
	sessions, err := s.GetPlayerSessions(ctx, gameID)
	if err != nil {
		t.Fatalf("GetPlayerSessions: %v", err)
	}
	if sessions[playerID] != "token-1" {
		t.Errorf("sessions = %v", sessions)
	}

	if err := s.RemovePlayerSession(ctx, gameID, playerID); err != nil {
		t.Fatalf("RemovePlayerSession: %v", err)
	}
	sessions, _ = s.GetPlayerSessions(ctx, gameID)
	if len(sessions) != 0 {
		t.Errorf("session survived removal: %v", sessions)
	}
}
