package bootstrap

import (
	"session-service/domain"
	"session-service/infra/storage"
	"session-service/internal/actionlog"
	"session-service/internal/api/ws/hub"
)

// InitWebsocket builds the connection registry with its action log.
// Landing is the only action the registry applies itself; later-phase
// rules plug in through Options.Apply when a rule layer ships.
func InitWebsocket(store storage.Store, events hub.EventPublisher) (*hub.Hub, *actionlog.Log) {
	alog := actionlog.New(store, actionlog.DefaultCheckpointInterval)
	h := hub.New(hub.Options{
		Store:    store,
		Log:      alog,
		InitGame: domain.NewLandingGame,
		Events:   events,
	})
	return h, alog
}
