package wsHandler

import (
	"context"
	"fmt"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"session-service/domain"
	"session-service/internal/api/ws/hub"
)

// Registry is the slice of the hub the upgrade handlers need.
type Registry interface {
	ServeConn(conn hub.Conn, roomID, id uuid.UUID, role hub.Role)
}

type GameConnectHandler struct {
	registry Registry
}

type GameConnectRequest struct{}

func NewGameConnectHandler(registry Registry) *GameConnectHandler {
	return &GameConnectHandler{registry: registry}
}

func sendErrorAndClose(conn *websocket.Conn, code domain.ErrorCode, msg string) {
	env := domain.NewEnvelope(domain.MsgError, domain.ErrorPayload{Code: code, Message: msg})
	if raw, err := env.Encode(); err == nil {
		conn.WriteMessage(websocket.TextMessage, raw)
	}
	conn.Close()
}

// HandleWS authenticates the upgrade (the gateway injects X-User-Id) and
// hands the socket to the registry for its lifetime.
func (h *GameConnectHandler) HandleWS(c *websocket.Conn, ctx context.Context, req *GameConnectRequest) {
	playerID, err := uuid.Parse(c.Headers("X-User-Id"))
	if err != nil {
		sendErrorAndClose(c, domain.CodeInvalidMessage, fmt.Sprintf("invalid user id: %v", err))
		return
	}

	roomID, err := uuid.Parse(c.Params("room_id"))
	if err != nil {
		sendErrorAndClose(c, domain.CodeRoomNotFound, fmt.Sprintf("invalid room id: %v", err))
		return
	}

	h.registry.ServeConn(c, roomID, playerID, hub.RolePlayer)
}

type SpectateHandler struct {
	registry Registry
}

type SpectateRequest struct{}

func NewSpectateHandler(registry Registry) *SpectateHandler {
	return &SpectateHandler{registry: registry}
}

// HandleWS registers a read-only spectator socket. Anonymous spectators
// get a throwaway identity.
func (h *SpectateHandler) HandleWS(c *websocket.Conn, ctx context.Context, req *SpectateRequest) {
	roomID, err := uuid.Parse(c.Params("room_id"))
	if err != nil {
		sendErrorAndClose(c, domain.CodeRoomNotFound, fmt.Sprintf("invalid room id: %v", err))
		return
	}

	spectatorID, err := uuid.Parse(c.Headers("X-User-Id"))
	if err != nil {
		spectatorID = uuid.New()
	}

	h.registry.ServeConn(c, roomID, spectatorID, hub.RoleSpectator)
}
