package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/buildora/storefront/internal/catalog"
	"github.com/buildora/storefront/internal/checkout"
	"github.com/buildora/storefront/internal/config"
	"github.com/buildora/storefront/internal/customers"
	"github.com/buildora/storefront/internal/fleet"
	"github.com/buildora/storefront/internal/httpx"
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

	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		log.WithError(err).Fatal("migrate")
	}

	db, err := postgres.Connect(ctx, cfg.PostgresDSN, int32(cfg.PostgresMax))
	if err != nil {
		log.WithError(err).Fatal("db connect")
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// one producer per topic; the writer is topic-bound
	pPlaced := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicOrderPlaced, 1024)
	pPlaced.Start(ctx)
	pDelivered := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicOrderDelivered, 256)
	pDelivered.Start(ctx)
	pStockLow := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicStockLow, 256)
	pStockLow.Start(ctx)

	svc := checkout.NewService(postgres.NewStore(db))
	svc.MaxAttempts = cfg.CheckoutMaxAttempts
	svc.BaseBackoff = cfg.CheckoutBaseBackoff

	router := httpx.NewRouter()
	(&httpx.CheckoutHandler{
		Svc:               svc,
		Orders:            &postgres.OrdersRepo{DB: db},
		Catalog:           &catalog.Repo{DB: db},
		Fleet:             &fleet.Repo{DB: db},
		Redis:             rdb,
		Service:           cfg.ServiceName,
		ProducerPlaced:    pPlaced,
		ProducerDelivered: pDelivered,
		ProducerStockLow:  pStockLow,
	}).Register(router)
	(&httpx.CatalogHandler{
		Products:  &catalog.Repo{DB: db},
		Customers: &customers.Repo{DB: db},
	}).Register(router)
	(&httpx.FleetHandler{Fleet: &fleet.Repo{DB: db}}).Register(router)
	(&httpx.EstimateHandler{}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	for _, p := range []*kafkax.Producer{pPlaced, pDelivered, pStockLow} {
		p.Close() // close inbox -> flush & close writer
	}
	cancel() // stop producer loops
	for _, p := range []*kafkax.Producer{pPlaced, pDelivered, pStockLow} {
		p.WaitClosed()
	}
}
