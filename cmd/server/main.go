package main

import (
	"promo-scheduler/internal/app/server"
	"promo-scheduler/internal/config"
)

func main() {
	cfg := config.Load()
	config.SetupLogging(cfg.Server.LogLevel)

	server.Run(cfg)
}
