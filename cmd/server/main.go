package main

import (
	"context"
	"log"
	"net/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/studyduo/pairquiz/internal/config"
	"github.com/studyduo/pairquiz/internal/events"
	"github.com/studyduo/pairquiz/internal/httpapi"
	"github.com/studyduo/pairquiz/internal/relay"
	"github.com/studyduo/pairquiz/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	var st store.Store
	if dsn := cfg.DSN(); dsn != "" {
		gs, err := store.OpenGorm(dsn)
		if err != nil {
			logger.Fatal("open database", zap.Error(err))
		}
		st = gs
		logger.Info("using postgres store", zap.String("db", cfg.DBName))
	} else {
		st = store.NewMemStore()
		logger.Info("using in-memory store")
	}

	var pub events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.AMQPURL, logger)
		if err != nil {
			logger.Fatal("connect amqp", zap.Error(err))
		}
		defer amqpPub.Close()
		pub = amqpPub
		logger.Info("publishing session events", zap.String("exchange", events.Exchange))
	}

	ctx := context.Background()
	rly := relay.New(ctx, st, pub, logger)
	defer rly.Shutdown()

	api := httpapi.NewAPI(st, pub, logger)
	handler := httpapi.SetupRoutes(api, relay.Handler(rly, logger))

	addr := ":" + cfg.ServerPort
	logger.Info("listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("server", zap.Error(err))
	}
}
