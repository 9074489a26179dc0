package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tailorly/api/internal/cache"
	"github.com/tailorly/api/internal/config"
	"github.com/tailorly/api/internal/events"
	"github.com/tailorly/api/internal/gateway"
	"github.com/tailorly/api/internal/router"
	"github.com/tailorly/api/internal/service"
	"github.com/tailorly/api/internal/store"
	"github.com/tailorly/api/internal/ws"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}
	log.Println("Connected to database")

	var charger gateway.Charger = gateway.Simulator{}
	if cfg.GatewayURL != "" {
		charger = gateway.NewClient(cfg.GatewayURL, cfg.GatewayTimeout, cfg.GatewayRPS)
		log.Printf("Using payment gateway at %s", cfg.GatewayURL)
	} else {
		log.Println("WARNING: GATEWAY_URL not set, every charge is approved by the simulator")
	}

	// Redis backs the snapshot cache and idempotency keys. Without it keys
	// are only deduplicated within this process.
	var snapshotCache service.Cache
	redisCache, err := cache.Connect(ctx, cfg.RedisURL, cfg.SnapshotTTL)
	if err != nil {
		log.Printf("WARN: %v; falling back to in-memory idempotency keys", err)
		snapshotCache = cache.NewMemory()
	} else {
		defer redisCache.Close()
		snapshotCache = redisCache
		log.Println("Connected to redis")
	}

	hub := ws.NewHub()
	go hub.Run(ctx)

	publishers := events.Multi{ws.NewNotifier(hub)}
	amqpPub, err := events.Dial(cfg.RabbitMQURL, cfg.Exchange, 3)
	if err != nil {
		log.Printf("WARN: %v; domain events go to websocket clients only", err)
	} else {
		defer amqpPub.Close()
		publishers = append(publishers, amqpPub)
		log.Printf("Publishing domain events to exchange %s", cfg.Exchange)
	}

	svc := service.NewGroupOrderService(
		store.New(pool),
		pool,
		func(db store.DBTX) service.Store { return store.New(db) },
		charger,
		service.WithCache(snapshotCache),
		service.WithPublisher(publishers),
		service.WithTimeout(cfg.DBTimeout),
		service.WithDeliveryGate(cfg.DeliveryRequiresFinalStage),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router.New(cfg, svc, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("ERROR: shutdown: %v", err)
		}
	}()

	log.Printf("Starting server on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
