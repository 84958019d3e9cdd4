package main

import (
	"go.uber.org/zap"

	"session-service/config"
	"session-service/internal/bootstrap"
	_ "session-service/log"
)

func main() {
	appConfig := config.Read()
	defer zap.L().Sync()
	zap.L().Info("app starting...", zap.String("app name", appConfig.App.Name))

	app := bootstrap.NewApp(appConfig)

	app.Start()
}
