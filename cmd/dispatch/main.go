package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/buildora/storefront/internal/checkout"
	"github.com/buildora/storefront/internal/config"
	"github.com/buildora/storefront/internal/fleet"
	kafkax "github.com/buildora/storefront/internal/kafka"
	"github.com/buildora/storefront/internal/postgres"
	"github.com/buildora/storefront/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	log.SetFormatter(&log.JSONFormatter{})

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN, int32(cfg.PostgresMax))
	if err != nil {
		log.WithError(err).Fatal("db connect")
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicOrderDispatched, 1024)
	prod.Start(ctx)

	svc := &fleet.Service{
		Store:         &fleet.Repo{DB: db},
		Dedup:         &redisx.Dedup{Client: rdb, Service: "dispatch"},
		Redis:         rdb,
		Producer:      prod,
		ServiceName:   cfg.ServiceName + "-dispatch",
		DroneMaxUnits: cfg.DroneMaxUnits,
	}

	group := getenv("DISPATCH_GROUP", "dispatch-svc")
	workers := mustAtoi(os.Getenv("DISPATCH_WORKERS"), 4)
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, checkout.TopicOrderPlaced, workers)

	go func() {
		log.WithFields(log.Fields{
			"group":   group,
			"topic":   checkout.TopicOrderPlaced,
			"workers": workers,
		}).Info("dispatch consumer started")
		if err := cons.Start(ctx, svc.HandleOrderPlaced); err != nil {
			log.WithError(err).Error("consumer exit")
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down dispatch worker...")
	cancel()
	time.Sleep(500 * time.Millisecond)
	prod.Close()
	prod.WaitClosed()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
