package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const eventGameFinished = "game_finished"

type Options struct {
	Brokers []string
	Topic   string
}

// Publisher pushes session lifecycle events onto the platform bus.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(opts Options) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(opts.Brokers...),
			Topic:        opts.Topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

type gameFinishedEvent struct {
	Event     string         `json:"event"`
	GameID    uuid.UUID      `json:"gameId"`
	Scores    map[string]int `json:"scores"`
	Timestamp time.Time      `json:"timestamp"`
}

func (p *Publisher) PublishGameFinished(ctx context.Context, gameID uuid.UUID, scores map[uuid.UUID]int) error {
	flat := make(map[string]int, len(scores))
	for id, score := range scores {
		flat[id.String()] = score
	}

	payload, err := json.Marshal(gameFinishedEvent{
		Event:     eventGameFinished,
		GameID:    gameID,
		Scores:    flat,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode game finished event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(gameID.String()),
		Value: payload,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish game finished event: %w", err)
	}

	zap.L().Info("Published game finished event", zap.String("game_id", gameID.String()))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
