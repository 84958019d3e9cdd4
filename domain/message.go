package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageType is the closed set of wire message kinds, split by direction.
type MessageType string

// Inbound (client → server).
const (
	MsgReady       MessageType = "READY"
	MsgAction      MessageType = "ACTION"
	MsgEndTurn     MessageType = "END_TURN"
	MsgPong        MessageType = "PONG"
	MsgSyncRequest MessageType = "SYNC_REQUEST"
)

// Outbound (server → client). MsgAction appears in both directions: the
// registry forwards submitted actions verbatim to the other sockets.
const (
	MsgPlayerJoined       MessageType = "PLAYER_JOINED"
	MsgPlayerReady        MessageType = "PLAYER_READY"
	MsgGameStart          MessageType = "GAME_START"
	MsgStateUpdate        MessageType = "STATE_UPDATE"
	MsgTurnEnd            MessageType = "TURN_END"
	MsgReconnect          MessageType = "RECONNECT"
	MsgPlayerReconnected  MessageType = "PLAYER_RECONNECTED"
	MsgPlayerDisconnected MessageType = "PLAYER_DISCONNECTED"
	MsgPlayerLeft         MessageType = "PLAYER_LEFT"
	MsgSpectatorJoined    MessageType = "SPECTATOR_JOINED"
	MsgSpectatorLeft      MessageType = "SPECTATOR_LEFT"
	MsgSpectatorSync      MessageType = "SPECTATOR_SYNC"
	MsgError              MessageType = "ERROR"
	MsgPing               MessageType = "PING"
)

// ErrorCode scopes ERROR replies.
type ErrorCode string

const (
	CodeInvalidMessage    ErrorCode = "INVALID_MESSAGE"
	CodeInvalidLanding    ErrorCode = "INVALID_LANDING"
	CodeSpectatorReadOnly ErrorCode = "SPECTATOR_READ_ONLY"
	CodeRoomNotFound      ErrorCode = "ROOM_NOT_FOUND"
	CodeInvalidAction     ErrorCode = "INVALID_ACTION"
	CodeInternal          ErrorCode = "INTERNAL"
)

// Envelope is the JSON frame every wire message travels in.
type Envelope struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	PlayerID  uuid.UUID       `json:"player_id,omitzero"`
}

// NewEnvelope stamps and wraps a payload. Marshal failures cannot happen
// for the payload types this repository sends; they would indicate a
// programming error, so the raw payload is dropped and the frame still
// carries its type.
func NewEnvelope(t MessageType, payload any) *Envelope {
	env := &Envelope{Type: t, Timestamp: time.Now()}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			env.Payload = raw
		}
	}
	return env
}

func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func (e *Envelope) Decode(data []byte) error {
	return json.Unmarshal(data, e)
}

// SubmittedAction is the inbound ACTION payload: a log entry before the
// registry assigns its seq.
type SubmittedAction struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// LandingData is the Data of a LAND_ASTRONEF action.
type LandingData struct {
	Hexes []Hex `json:"hexes"`
}

// ReadyPayload toggles the sender's ready flag; absent payload means true.
type ReadyPayload struct {
	Ready bool `json:"ready"`
}

// EndTurnPayload carries the saved-action-point carry-over.
type EndTurnPayload struct {
	SavedActionPoints int `json:"saved_action_points"`
}

// SyncPayload answers RECONNECT, STATE_UPDATE and SPECTATOR_SYNC.
type SyncPayload struct {
	State   *GameState `json:"state"`
	Players []*Player  `json:"players"`
	Phase   RoomPhase  `json:"phase"`
}

// GameStartPayload announces the ready→playing transition.
type GameStartPayload struct {
	State   *GameState `json:"state"`
	Players []*Player  `json:"players"`
}

// PlayerEventPayload announces joins, leaves and reconnects.
type PlayerEventPayload struct {
	PlayerID uuid.UUID `json:"player_id"`
	Name     string    `json:"name,omitempty"`
}

// ErrorPayload is the body of an ERROR frame.
type ErrorPayload struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message,omitempty"`
}
