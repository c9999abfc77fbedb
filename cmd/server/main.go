package main

import (
	"log"

	"go.uber.org/zap"

	"github.com/socketchat/relay/internal/server"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("zap.NewProduction: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	sugar := logger.Sugar()

	cfg, err := server.LoadConfig()
	if err != nil {
		sugar.Fatalf("cannot load config: %v", err)
	}

	srv := server.New(cfg, sugar)
	if err := srv.Start(); err != nil {
		sugar.Fatalf("server exited: %v", err)
	}
}
