package bootstrap

import (
	"session-service/config"
	"session-service/infra/messaging"
	"session-service/internal/api/ws/hub"
)

// SetupMessaging wires the kafka publisher when enabled. A nil return
// means lifecycle events stay local.
func SetupMessaging(cfg config.Config) (hub.EventPublisher, func() error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	pub := messaging.NewPublisher(messaging.Options{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
	})
	return pub, pub.Close
}
