// Package redisstore is the production storage adapter. Rooms, snapshots
// and sessions live as JSON values with advisory TTLs; the action log,
// checkpoints and turn markers are sorted sets scored by seq; fan-out uses
// one pub/sub channel per room ("room:<id>"), the same channel scheme the
// rest of the platform subscribes to.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"session-service/domain"
	"session-service/infra/storage"
)

type Options struct {
	Addr     string
	Password string
	DB       int
	TTLs     storage.TTLs
}

type Store struct {
	opts   Options
	mu     sync.Mutex
	client *redis.Client
	subs   map[uuid.UUID]*redis.PubSub
}

var _ storage.Store = (*Store)(nil)

func New(opts Options) *Store {
	if opts.TTLs == (storage.TTLs{}) {
		opts.TTLs = storage.DefaultTTLs()
	}
	return &Store{opts: opts}
}

func (s *Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     s.opts.Addr,
		Password: s.opts.Password,
		DB:       s.opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	s.client = client
	s.subs = make(map[uuid.UUID]*redis.PubSub)
	return nil
}

func (s *Store) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	for id, pubsub := range s.subs {
		if err := pubsub.Close(); err != nil {
			zap.L().Warn("Failed to close subscription", zap.String("game_id", id.String()), zap.Error(err))
		}
	}
	s.subs = nil
	err := s.client.Close()
	s.client = nil
	return err
}

func (s *Store) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil
}

func (s *Store) conn() (*redis.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil, domain.ErrNotConnected
	}
	return s.client, nil
}

func roomKey(id uuid.UUID) string        { return "room:" + id.String() }
func stateKey(id uuid.UUID) string       { return "state:" + id.String() }
func actionsKey(id uuid.UUID) string     { return "actions:" + id.String() }
func checkpointsKey(id uuid.UUID) string { return "checkpoints:" + id.String() }
func markersKey(id uuid.UUID) string     { return "turnmarkers:" + id.String() }
func sessionsKey(id uuid.UUID) string    { return "sessions:" + id.String() }
func channel(id uuid.UUID) string        { return "room:" + id.String() }

const roomIndexKey = "rooms"

func (s *Store) SaveRoom(ctx context.Context, room *domain.Room) error {
	client, err := s.conn()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("marshal room: %w", err)
	}
	pipe := client.TxPipeline()
	pipe.Set(ctx, roomKey(room.ID), raw, s.opts.TTLs.Room)
	pipe.ZAdd(ctx, roomIndexKey, redis.Z{
		Score:  float64(room.CreatedAt.UnixNano()),
		Member: room.ID.String(),
	})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) GetRoom(ctx context.Context, id uuid.UUID) (*domain.Room, error) {
	client, err := s.conn()
	if err != nil {
		return nil, err
	}
	raw, err := client.Get(ctx, roomKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var room domain.Room
	if err := json.Unmarshal(raw, &room); err != nil {
		return nil, fmt.Errorf("unmarshal room %s: %w", id, err)
	}
	return &room, nil
}

func (s *Store) DeleteRoom(ctx context.Context, id uuid.UUID) error {
	client, err := s.conn()
	if err != nil {
		return err
	}
	if err := s.Unsubscribe(ctx, id); err != nil {
		zap.L().Warn("Failed to unsubscribe during room delete", zap.String("room_id", id.String()), zap.Error(err))
	}
	pipe := client.TxPipeline()
	pipe.Del(ctx, roomKey(id), stateKey(id), actionsKey(id), checkpointsKey(id), markersKey(id), sessionsKey(id))
	pipe.ZRem(ctx, roomIndexKey, id.String())
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) ListRooms(ctx context.Context, phase domain.RoomPhase) ([]*domain.Room, error) {
	client, err := s.conn()
	if err != nil {
		return nil, err
	}
	ids, err := client.ZRevRange(ctx, roomIndexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Room, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		room, err := s.GetRoom(ctx, id)
		if err != nil {
			return nil, err
		}
		if room == nil {
			// Expired room still in the index; drop it lazily.
			client.ZRem(ctx, roomIndexKey, raw)
			continue
		}
		if phase != "" && room.Phase != phase {
			continue
		}
		out = append(out, room)
	}
	return out, nil
}

func (s *Store) SaveGameState(ctx context.Context, gameID uuid.UUID, state *domain.GameState) error {
	client, err := s.conn()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal game state: %w", err)
	}
	return client.Set(ctx, stateKey(gameID), raw, s.opts.TTLs.State).Err()
}

func (s *Store) GetGameState(ctx context.Context, gameID uuid.UUID) (*domain.GameState, error) {
	client, err := s.conn()
	if err != nil {
		return nil, err
	}
	raw, err := client.Get(ctx, stateKey(gameID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var state domain.GameState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("unmarshal game state %s: %w", gameID, err)
	}
	return &state, nil
}

func (s *Store) LogAction(ctx context.Context, gameID uuid.UUID, action domain.StoredAction) error {
	client, err := s.conn()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}
	pipe := client.TxPipeline()
	pipe.ZAdd(ctx, actionsKey(gameID), redis.Z{Score: float64(action.Seq), Member: raw})
	pipe.Expire(ctx, actionsKey(gameID), s.opts.TTLs.Room)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) GetActions(ctx context.Context, gameID uuid.UUID, fromSeq int64) ([]domain.StoredAction, error) {
	client, err := s.conn()
	if err != nil {
		return nil, err
	}
	members, err := client.ZRangeByScore(ctx, actionsKey(gameID), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(fromSeq, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}
	var out []domain.StoredAction
	for _, member := range members {
		var action domain.StoredAction
		if err := json.Unmarshal([]byte(member), &action); err != nil {
			return nil, fmt.Errorf("unmarshal action: %w", err)
		}
		out = append(out, action)
	}
	return out, nil
}

func (s *Store) SaveCheckpoint(ctx context.Context, gameID uuid.UUID, cp domain.Checkpoint) error {
	client, err := s.conn()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	pipe := client.TxPipeline()
	pipe.ZAdd(ctx, checkpointsKey(gameID), redis.Z{Score: float64(cp.Seq), Member: raw})
	pipe.Expire(ctx, checkpointsKey(gameID), s.opts.TTLs.Room)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) GetCheckpoints(ctx context.Context, gameID uuid.UUID) ([]domain.Checkpoint, error) {
	client, err := s.conn()
	if err != nil {
		return nil, err
	}
	members, err := client.ZRange(ctx, checkpointsKey(gameID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	var out []domain.Checkpoint
	for _, member := range members {
		var cp domain.Checkpoint
		if err := json.Unmarshal([]byte(member), &cp); err != nil {
			return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
		}
		out = append(out, cp)
	}
	return out, nil
}

func (s *Store) SaveTurnMarker(ctx context.Context, gameID uuid.UUID, marker domain.TurnMarker) error {
	client, err := s.conn()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(marker)
	if err != nil {
		return fmt.Errorf("marshal turn marker: %w", err)
	}
	pipe := client.TxPipeline()
	pipe.ZAdd(ctx, markersKey(gameID), redis.Z{Score: float64(marker.StartSeq), Member: raw})
	pipe.Expire(ctx, markersKey(gameID), s.opts.TTLs.Room)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) GetTurnMarkers(ctx context.Context, gameID uuid.UUID) ([]domain.TurnMarker, error) {
	client, err := s.conn()
	if err != nil {
		return nil, err
	}
	members, err := client.ZRange(ctx, markersKey(gameID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	var out []domain.TurnMarker
	for _, member := range members {
		var marker domain.TurnMarker
		if err := json.Unmarshal([]byte(member), &marker); err != nil {
			return nil, fmt.Errorf("unmarshal turn marker: %w", err)
		}
		out = append(out, marker)
	}
	return out, nil
}

func (s *Store) AddPlayerSession(ctx context.Context, gameID, playerID uuid.UUID, sessionID string) error {
	client, err := s.conn()
	if err != nil {
		return err
	}
	pipe := client.TxPipeline()
	pipe.HSet(ctx, sessionsKey(gameID), playerID.String(), sessionID)
	pipe.Expire(ctx, sessionsKey(gameID), s.opts.TTLs.Session)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) RemovePlayerSession(ctx context.Context, gameID, playerID uuid.UUID) error {
	client, err := s.conn()
	if err != nil {
		return err
	}
	return client.HDel(ctx, sessionsKey(gameID), playerID.String()).Err()
}

func (s *Store) GetPlayerSessions(ctx context.Context, gameID uuid.UUID) (map[uuid.UUID]string, error) {
	client, err := s.conn()
	if err != nil {
		return nil, err
	}
	entries, err := client.HGetAll(ctx, sessionsKey(gameID)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]string, len(entries))
	for raw, sessionID := range entries {
		playerID, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		out[playerID] = sessionID
	}
	return out, nil
}

func (s *Store) Subscribe(ctx context.Context, gameID uuid.UUID, handler storage.MessageHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return domain.ErrNotConnected
	}
	if existing, ok := s.subs[gameID]; ok {
		existing.Close()
		delete(s.subs, gameID)
	}
	pubsub := s.client.Subscribe(ctx, channel(gameID))
	s.subs[gameID] = pubsub

	go func() {
		for msg := range pubsub.Channel() {
			handler([]byte(msg.Payload))
		}
		zap.L().Debug("Subscription channel closed", zap.String("game_id", gameID.String()))
	}()
	return nil
}

func (s *Store) Unsubscribe(ctx context.Context, gameID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return domain.ErrNotConnected
	}
	pubsub, ok := s.subs[gameID]
	if !ok {
		return nil
	}
	delete(s.subs, gameID)
	return pubsub.Close()
}

func (s *Store) Publish(ctx context.Context, gameID uuid.UUID, payload []byte) error {
	client, err := s.conn()
	if err != nil {
		return err
	}
	return client.Publish(ctx, channel(gameID), payload).Err()
}
