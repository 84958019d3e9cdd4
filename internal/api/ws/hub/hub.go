// Package hub is the connection registry: it multiplexes the player and
// spectator sockets of every room, serializes all state mutation for a
// room on a single worker goroutine, and fans broadcasts out both to
// local sockets and across processes through storage pub/sub.
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"session-service/domain"
	"session-service/infra/storage"
	"session-service/internal/actionlog"
)

// DefaultPingInterval keeps intermediaries from idle-closing sockets.
const DefaultPingInterval = 30 * time.Second

// EventPublisher receives lifecycle events for the wider platform.
// Best-effort: failures are logged, never surfaced to clients.
type EventPublisher interface {
	PublishGameFinished(ctx context.Context, gameID uuid.UUID, scores map[uuid.UUID]int) error
}

type eventKind int

const (
	evConnect eventKind = iota
	evDisconnect
	evInbound
	evFanout
	evFunc
)

type event struct {
	kind    eventKind
	client  *Client
	payload []byte
	fn      func()
}

// roomState is everything the per-room worker owns. Map mutation happens
// on the worker; the hub mutex guards cross-goroutine reads (ping loop,
// teardown).
type roomState struct {
	id         uuid.UUID
	room       *domain.Room
	players    map[uuid.UUID]*Client
	spectators map[uuid.UUID]*Client
	inbound    chan event
	done       chan struct{}
	closeOnce  sync.Once
}

// dispatch hands an event to the worker; events for a torn-down room are
// dropped so late socket close handlers never block or panic.
func (rs *roomState) dispatch(ev event) {
	select {
	case <-rs.done:
	case rs.inbound <- ev:
	}
}

func (rs *roomState) shutdown() {
	rs.closeOnce.Do(func() { close(rs.done) })
}

func (rs *roomState) empty() bool {
	return len(rs.players) == 0 && len(rs.spectators) == 0
}

type Options struct {
	Store    storage.Store
	Log      *actionlog.Log
	InitGame domain.GameInitializer
	// Apply, when set, makes this instance authoritative for arbitrary
	// actions: it applies them server-side and checkpoints on the
	// interval. When nil the registry only logs and forwards.
	Apply  domain.RuleApplicator
	Events EventPublisher
}

type Hub struct {
	instanceID uuid.UUID
	store      storage.Store
	alog       *actionlog.Log
	initGame   domain.GameInitializer
	apply      domain.RuleApplicator
	events     EventPublisher

	mu    sync.RWMutex
	rooms map[uuid.UUID]*roomState

	pingMu   sync.Mutex
	pingStop chan struct{}
}

func New(opts Options) *Hub {
	return &Hub{
		instanceID: uuid.New(),
		store:      opts.Store,
		alog:       opts.Log,
		initGame:   opts.InitGame,
		apply:      opts.Apply,
		events:     opts.Events,
		rooms:      make(map[uuid.UUID]*roomState),
	}
}

// roomWorker returns the room's state, starting its worker on first use.
func (h *Hub) roomWorker(roomID uuid.UUID) *roomState {
	h.mu.Lock()
	defer h.mu.Unlock()
	if rs, ok := h.rooms[roomID]; ok {
		return rs
	}
	rs := &roomState{
		id:         roomID,
		players:    make(map[uuid.UUID]*Client),
		spectators: make(map[uuid.UUID]*Client),
		inbound:    make(chan event, 64),
		done:       make(chan struct{}),
	}
	h.rooms[roomID] = rs
	go h.runRoom(rs)
	return rs
}

func (h *Hub) runRoom(rs *roomState) {
	for {
		select {
		case ev := <-rs.inbound:
			switch ev.kind {
			case evConnect:
				h.handleConnect(rs, ev.client)
			case evDisconnect:
				h.handleDisconnect(rs, ev.client)
			case evInbound:
				h.handleMessage(rs, ev.client, ev.payload)
			case evFanout:
				h.handleFanout(rs, ev.payload)
			case evFunc:
				ev.fn()
			}
		case <-rs.done:
			return
		}
	}
}

// ServeConn runs a socket for its whole lifetime. It blocks until the
// peer disconnects, so websocket handlers call it directly.
func (h *Hub) ServeConn(conn Conn, roomID, id uuid.UUID, role Role) {
	conn.SetReadLimit(maxMessageSize)
	client := newClient(conn, roomID, id, role)
	rs := h.roomWorker(roomID)

	go client.writePump()
	rs.dispatch(event{kind: evConnect, client: client})
	h.readPump(rs, client)
	rs.dispatch(event{kind: evDisconnect, client: client})
	client.close()
}

func (h *Hub) readPump(rs *roomState, client *Client) {
	for {
		_, payload, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				zap.L().Debug("Client closed connection",
					zap.String("client_id", client.ID.String()))
			} else {
				zap.L().Debug("Client read error",
					zap.String("client_id", client.ID.String()), zap.Error(err))
			}
			return
		}
		rs.dispatch(event{kind: evInbound, client: client, payload: payload})
	}
}

// loadRoom fills the worker's room cache from storage on first contact.
func (h *Hub) loadRoom(ctx context.Context, rs *roomState) *domain.Room {
	if rs.room != nil {
		return rs.room
	}
	room, err := h.store.GetRoom(ctx, rs.id)
	if err != nil {
		zap.L().Error("Failed to load room", zap.String("room_id", rs.id.String()), zap.Error(err))
		return nil
	}
	rs.room = room
	return room
}

func (h *Hub) handleConnect(rs *roomState, client *Client) {
	ctx := context.Background()
	// Always re-fetch on connect: the REST surface may have changed the
	// roster since this worker last saw the room.
	room, err := h.store.GetRoom(ctx, rs.id)
	if err != nil {
		zap.L().Error("Failed to load room", zap.String("room_id", rs.id.String()), zap.Error(err))
		room = nil
	}
	if room != nil {
		if rs.room != nil && rs.room.GameState != nil && room.GameState == nil {
			// Keep the live snapshot if the stored copy expired.
			room.GameState = rs.room.GameState
		}
		rs.room = room
	}
	if room == nil {
		h.sendError(client, domain.CodeRoomNotFound, "room does not exist")
		client.close()
		return
	}

	if client.Role == RoleSpectator {
		h.connectSpectator(rs, client)
		return
	}

	player := room.Player(client.ID)
	if player == nil {
		h.sendError(client, domain.CodeRoomNotFound, "player is not in this room")
		client.close()
		return
	}

	wasFirst := rs.empty()
	evicted := false
	if existing, ok := rs.players[client.ID]; ok {
		// Stale-connection eviction: at most one live socket per player.
		zap.L().Info("Evicting stale connection",
			zap.String("player_id", client.ID.String()),
			zap.String("room_id", rs.id.String()))
		existing.close()
		evicted = true
	}
	wasConnected := player.Connected

	h.mu.Lock()
	rs.players[client.ID] = client
	h.mu.Unlock()

	room.SetPlayerConnected(client.ID, true)
	if err := h.store.SaveRoom(ctx, room); err != nil {
		zap.L().Error("Failed to persist room on connect", zap.Error(err))
	}
	if err := h.store.AddPlayerSession(ctx, rs.id, client.ID, client.SessionID); err != nil {
		zap.L().Error("Failed to record player session", zap.Error(err))
	}

	if wasFirst {
		h.subscribeRoom(ctx, rs)
	}

	switch {
	case room.Phase != domain.RoomWaiting && !wasConnected:
		// Reconnection: full resync to this socket only, notice to the rest.
		h.sendTo(client, domain.NewEnvelope(domain.MsgReconnect, h.syncPayload(rs)))
		h.broadcast(rs, h.playerEnvelope(domain.MsgPlayerReconnected, player), client.ID)
	case !evicted:
		h.broadcast(rs, h.playerEnvelope(domain.MsgPlayerJoined, player), client.ID)
	}
}

func (h *Hub) connectSpectator(rs *roomState, client *Client) {
	wasFirst := rs.empty()
	if existing, ok := rs.spectators[client.ID]; ok {
		existing.close()
	}
	h.mu.Lock()
	rs.spectators[client.ID] = client
	h.mu.Unlock()

	if wasFirst {
		h.subscribeRoom(context.Background(), rs)
	}
	h.broadcast(rs, domain.NewEnvelope(domain.MsgSpectatorJoined,
		domain.PlayerEventPayload{PlayerID: client.ID}), client.ID)
}

func (h *Hub) handleDisconnect(rs *roomState, client *Client) {
	ctx := context.Background()

	if client.Role == RoleSpectator {
		if rs.spectators[client.ID] != client {
			return
		}
		h.mu.Lock()
		delete(rs.spectators, client.ID)
		h.mu.Unlock()
		h.broadcast(rs, domain.NewEnvelope(domain.MsgSpectatorLeft,
			domain.PlayerEventPayload{PlayerID: client.ID}), uuid.Nil)
		h.maybeTeardown(ctx, rs)
		return
	}

	// An evicted socket's close handler fires after its replacement
	// registered; only the current socket's departure counts.
	if rs.players[client.ID] != client {
		return
	}
	h.mu.Lock()
	delete(rs.players, client.ID)
	h.mu.Unlock()

	room := rs.room
	if room == nil {
		return
	}
	room.SetPlayerConnected(client.ID, false)
	player := room.Player(client.ID)

	if room.Phase == domain.RoomPlaying {
		h.broadcast(rs, h.playerEnvelope(domain.MsgPlayerDisconnected, player), uuid.Nil)
	} else {
		// Pre-game departure is final: the session token goes with it.
		if err := h.store.RemovePlayerSession(ctx, rs.id, client.ID); err != nil {
			zap.L().Warn("Failed to remove player session", zap.Error(err))
		}
		h.broadcast(rs, h.playerEnvelope(domain.MsgPlayerLeft, player), uuid.Nil)
	}
	if err := h.store.SaveRoom(ctx, room); err != nil {
		zap.L().Error("Failed to persist room on disconnect", zap.Error(err))
	}
	h.maybeTeardown(ctx, rs)
}

// maybeTeardown stops the worker and subscription once the room is empty.
func (h *Hub) maybeTeardown(ctx context.Context, rs *roomState) {
	if !rs.empty() {
		return
	}
	if err := h.store.Unsubscribe(ctx, rs.id); err != nil {
		zap.L().Warn("Failed to unsubscribe empty room", zap.Error(err))
	}
	h.mu.Lock()
	if current, ok := h.rooms[rs.id]; ok && current == rs {
		delete(h.rooms, rs.id)
	}
	h.mu.Unlock()
	rs.shutdown()
}

// CloseRoom force-closes every socket for a room and removes its worker.
func (h *Hub) CloseRoom(roomID uuid.UUID) {
	h.mu.Lock()
	rs, ok := h.rooms[roomID]
	if ok {
		delete(h.rooms, roomID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	rs.shutdown()
	h.mu.RLock()
	for _, c := range rs.players {
		c.close()
	}
	for _, c := range rs.spectators {
		c.close()
	}
	h.mu.RUnlock()
	if err := h.store.Unsubscribe(context.Background(), roomID); err != nil {
		zap.L().Warn("Failed to unsubscribe closed room", zap.Error(err))
	}
}

// EndGame finishes a room on its worker: scores attach to the snapshot, a
// final STATE_UPDATE goes out and a platform event is published.
func (h *Hub) EndGame(roomID uuid.UUID, scores map[uuid.UUID]int) {
	rs := h.roomWorker(roomID)
	rs.dispatch(event{kind: evFunc, fn: func() {
		ctx := context.Background()
		room := h.loadRoom(ctx, rs)
		if room == nil {
			return
		}
		room.EndGame(scores)
		if err := h.store.SaveRoom(ctx, room); err != nil {
			zap.L().Error("Failed to persist finished room", zap.Error(err))
		}
		if room.GameState != nil {
			if err := h.store.SaveGameState(ctx, rs.id, room.GameState); err != nil {
				zap.L().Error("Failed to persist final state", zap.Error(err))
			}
		}
		h.broadcast(rs, domain.NewEnvelope(domain.MsgStateUpdate, h.syncPayload(rs)), uuid.Nil)
		if h.events != nil {
			if err := h.events.PublishGameFinished(ctx, rs.id, scores); err != nil {
				zap.L().Warn("Failed to publish game finished event", zap.Error(err))
			}
		}
	}})
}

// fanoutFrame is what travels over storage pub/sub between instances.
type fanoutFrame struct {
	Origin  string          `json:"origin"`
	Exclude uuid.UUID       `json:"exclude,omitzero"`
	Frame   json.RawMessage `json:"frame"`
}

func (h *Hub) subscribeRoom(ctx context.Context, rs *roomState) {
	err := h.store.Subscribe(ctx, rs.id, func(payload []byte) {
		rs.dispatch(event{kind: evFanout, payload: payload})
	})
	if err != nil {
		zap.L().Warn("Failed to subscribe room channel",
			zap.String("room_id", rs.id.String()), zap.Error(err))
	}
}

func (h *Hub) handleFanout(rs *roomState, payload []byte) {
	var frame fanoutFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		zap.L().Warn("Malformed fanout frame", zap.Error(err))
		return
	}
	if frame.Origin == h.instanceID.String() {
		return
	}
	h.broadcastRaw(rs, frame.Frame, frame.Exclude)
}

// broadcast delivers locally and publishes for other instances.
func (h *Hub) broadcast(rs *roomState, env *domain.Envelope, exclude uuid.UUID) {
	raw, err := env.Encode()
	if err != nil {
		zap.L().Error("Failed to encode envelope", zap.Error(err))
		return
	}
	h.broadcastRaw(rs, raw, exclude)

	frame, err := json.Marshal(fanoutFrame{
		Origin:  h.instanceID.String(),
		Exclude: exclude,
		Frame:   raw,
	})
	if err != nil {
		return
	}
	// Cross-process fan-out is best-effort; the log and snapshot in
	// storage are the recovery source of truth.
	if err := h.store.Publish(context.Background(), rs.id, frame); err != nil {
		zap.L().Warn("Failed to publish broadcast",
			zap.String("room_id", rs.id.String()), zap.Error(err))
	}
}

func (h *Hub) broadcastRaw(rs *roomState, raw []byte, exclude uuid.UUID) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range rs.players {
		if id == exclude {
			continue
		}
		c.enqueue(raw)
	}
	for _, c := range rs.spectators {
		c.enqueue(raw)
	}
}

func (h *Hub) sendTo(client *Client, env *domain.Envelope) {
	raw, err := env.Encode()
	if err != nil {
		zap.L().Error("Failed to encode envelope", zap.Error(err))
		return
	}
	client.enqueue(raw)
}

func (h *Hub) sendError(client *Client, code domain.ErrorCode, msg string) {
	h.sendTo(client, domain.NewEnvelope(domain.MsgError, domain.ErrorPayload{Code: code, Message: msg}))
}

func (h *Hub) playerEnvelope(t domain.MessageType, player *domain.Player) *domain.Envelope {
	payload := domain.PlayerEventPayload{}
	if player != nil {
		payload.PlayerID = player.ID
		payload.Name = player.Name
	}
	env := domain.NewEnvelope(t, payload)
	env.PlayerID = payload.PlayerID
	return env
}

func (h *Hub) syncPayload(rs *roomState) domain.SyncPayload {
	return domain.SyncPayload{
		State:   rs.room.GameState,
		Players: rs.room.Players,
		Phase:   rs.room.Phase,
	}
}

// StartPingLoop pushes unsolicited PINGs to every open socket. Absence of
// a PONG is not a disconnect trigger; the ping only keeps the wire warm.
func (h *Hub) StartPingLoop(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPingInterval
	}
	h.pingMu.Lock()
	defer h.pingMu.Unlock()
	if h.pingStop != nil {
		return
	}
	stop := make(chan struct{})
	h.pingStop = stop

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				h.pingAll()
			case <-stop:
				return
			}
		}
	}()
}

// StopPingLoop is idempotent and safe when the loop never started.
func (h *Hub) StopPingLoop() {
	h.pingMu.Lock()
	defer h.pingMu.Unlock()
	if h.pingStop == nil {
		return
	}
	close(h.pingStop)
	h.pingStop = nil
}

func (h *Hub) pingAll() {
	raw, err := domain.NewEnvelope(domain.MsgPing, nil).Encode()
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, rs := range h.rooms {
		for _, c := range rs.players {
			c.enqueue(raw)
		}
		for _, c := range rs.spectators {
			c.enqueue(raw)
		}
	}
}
