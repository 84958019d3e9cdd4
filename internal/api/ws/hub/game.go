package hub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"session-service/domain"
)

// handleMessage runs on the room worker, so everything below mutates the
// room without further locking.
func (h *Hub) handleMessage(rs *roomState, client *Client, payload []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(payload, &env); err != nil || env.Type == "" {
		h.sendError(client, domain.CodeInvalidMessage, "malformed message")
		return
	}

	if client.Role == RoleSpectator {
		h.handleSpectatorMessage(rs, client, env)
		return
	}

	if rs.room == nil {
		h.sendError(client, domain.CodeRoomNotFound, "room does not exist")
		return
	}

	switch env.Type {
	case domain.MsgReady:
		h.handleReady(rs, client, env)
	case domain.MsgAction:
		h.handleAction(rs, client, env)
	case domain.MsgEndTurn:
		h.handleEndTurn(rs, client, env)
	case domain.MsgPong:
		rs.room.UpdatePlayerLastSeen(client.ID)
	case domain.MsgSyncRequest:
		h.sendTo(client, domain.NewEnvelope(domain.MsgStateUpdate, h.syncPayload(rs)))
	default:
		zap.L().Debug("Ignoring unrecognized message type",
			zap.String("type", string(env.Type)),
			zap.String("client_id", client.ID.String()))
	}
}

// Spectators are strictly read-only: heartbeat and sync only.
func (h *Hub) handleSpectatorMessage(rs *roomState, client *Client, env domain.Envelope) {
	switch env.Type {
	case domain.MsgPong:
	case domain.MsgSyncRequest:
		if rs.room == nil {
			h.sendError(client, domain.CodeRoomNotFound, "room does not exist")
			return
		}
		h.sendTo(client, domain.NewEnvelope(domain.MsgSpectatorSync, h.syncPayload(rs)))
	default:
		h.sendError(client, domain.CodeSpectatorReadOnly, "spectators cannot send "+string(env.Type))
	}
}

func (h *Hub) handleReady(rs *roomState, client *Client, env domain.Envelope) {
	ctx := context.Background()
	room := rs.room

	ready := true
	if len(env.Payload) > 0 {
		var rp domain.ReadyPayload
		if err := json.Unmarshal(env.Payload, &rp); err == nil {
			ready = rp.Ready
		}
	}
	room.SetPlayerReady(client.ID, ready)
	h.broadcast(rs, h.playerEnvelope(domain.MsgPlayerReady, room.Player(client.ID)), uuid.Nil)

	if !room.CheckReadyState() {
		if err := h.store.SaveRoom(ctx, room); err != nil {
			zap.L().Error("Failed to persist room", zap.Error(err))
		}
		return
	}

	initial, err := h.initGame(rs.id, room.Players)
	if err != nil {
		zap.L().Error("Game initializer failed",
			zap.String("room_id", rs.id.String()), zap.Error(err))
		h.sendError(client, domain.CodeInternal, "failed to initialize game")
		return
	}
	if err := room.StartGame(initial); err != nil {
		zap.L().Error("Failed to start game", zap.Error(err))
		return
	}
	if err := h.store.SaveRoom(ctx, room); err != nil {
		zap.L().Error("Failed to persist started room", zap.Error(err))
	}
	if err := h.store.SaveGameState(ctx, rs.id, initial); err != nil {
		zap.L().Error("Failed to persist initial state", zap.Error(err))
	}
	h.alog.Reset(rs.id)

	h.broadcast(rs, domain.NewEnvelope(domain.MsgGameStart, domain.GameStartPayload{
		State:   room.GameState,
		Players: room.Players,
	}), uuid.Nil)
}

func (h *Hub) handleAction(rs *roomState, client *Client, env domain.Envelope) {
	ctx := context.Background()
	room := rs.room

	var sub domain.SubmittedAction
	if err := json.Unmarshal(env.Payload, &sub); err != nil || sub.Type == "" {
		h.sendError(client, domain.CodeInvalidMessage, "malformed action payload")
		return
	}
	if room.Phase != domain.RoomPlaying {
		h.sendError(client, domain.CodeInvalidAction, "no game in progress")
		return
	}

	// The log records submitted actions: persist before any side effect
	// so downstream failure never loses a submission.
	action := domain.StoredAction{
		Type:      sub.Type,
		PlayerID:  client.ID,
		Timestamp: time.Now(),
		Data:      sub.Data,
	}
	logged, err := h.alog.Append(ctx, rs.id, action, room.GameState, room.Player(client.ID))
	if err != nil {
		zap.L().Error("Failed to log action",
			zap.String("room_id", rs.id.String()),
			zap.String("type", action.Type), zap.Error(err))
		h.sendError(client, domain.CodeInternal, "failed to record action")
		return
	}

	if logged.Type == domain.LandingActionType {
		h.handleLanding(ctx, rs, client, logged)
		return
	}

	if h.apply != nil {
		next, err := h.apply(room.GameState, logged)
		if err != nil {
			h.sendError(client, domain.CodeInvalidAction, err.Error())
			return
		}
		if err := room.UpdateGameState(next); err != nil {
			h.sendError(client, domain.CodeInvalidAction, err.Error())
			return
		}
		if err := h.store.SaveGameState(ctx, rs.id, next); err != nil {
			zap.L().Error("Failed to persist state", zap.Error(err))
		}
		if _, err := h.alog.MaybeCheckpoint(ctx, rs.id, logged.Seq, next); err != nil {
			zap.L().Warn("Failed to checkpoint", zap.Int64("seq", logged.Seq), zap.Error(err))
		}
	}

	// The sender already advanced optimistically; everyone else gets the
	// action verbatim.
	forward := domain.NewEnvelope(domain.MsgAction, domain.SubmittedAction{
		Type: logged.Type,
		Data: logged.Data,
	})
	forward.PlayerID = client.ID
	h.broadcast(rs, forward, client.ID)
}

// handleLanding applies the one action type the session core owns. The
// action is already in the log at this point; rejection leaves state
// untouched and replay re-validates on its own pass.
func (h *Hub) handleLanding(ctx context.Context, rs *roomState, client *Client, logged domain.StoredAction) {
	room := rs.room

	var data domain.LandingData
	if err := json.Unmarshal(logged.Data, &data); err != nil {
		h.sendError(client, domain.CodeInvalidLanding, "malformed landing data")
		return
	}
	next, err := domain.ApplyLanding(room.GameState, client.ID, data.Hexes)
	if err != nil {
		h.sendError(client, domain.CodeInvalidLanding, err.Error())
		return
	}
	if err := room.UpdateGameState(next); err != nil {
		h.sendError(client, domain.CodeInvalidLanding, err.Error())
		return
	}
	if err := h.store.SaveGameState(ctx, rs.id, next); err != nil {
		zap.L().Error("Failed to persist state after landing", zap.Error(err))
	}
	if err := h.alog.Checkpoint(ctx, rs.id, logged.Seq, next); err != nil {
		zap.L().Warn("Failed to checkpoint landing", zap.Int64("seq", logged.Seq), zap.Error(err))
	}

	// Landing results go to everyone, including the sender: the sender
	// cannot predict the advancing player pointer locally.
	h.broadcast(rs, domain.NewEnvelope(domain.MsgStateUpdate, h.syncPayload(rs)), uuid.Nil)
}

func (h *Hub) handleEndTurn(rs *roomState, client *Client, env domain.Envelope) {
	var carry domain.EndTurnPayload
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &carry); err != nil {
			h.sendError(client, domain.CodeInvalidMessage, "malformed end turn payload")
			return
		}
	}
	turnEnd := domain.NewEnvelope(domain.MsgTurnEnd, carry)
	turnEnd.PlayerID = client.ID
	h.broadcast(rs, turnEnd, uuid.Nil)
}
