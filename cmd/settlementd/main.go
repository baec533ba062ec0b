// settlementd is the bill settlement service: it records payments against
// bills, renders instant-payment charge payloads, and keeps every connected
// terminal converged through the change feed.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/msxsistemas/quick-bite-craft-sub000/internal/auth"
	"github.com/msxsistemas/quick-bite-craft-sub000/internal/config"
	"github.com/msxsistemas/quick-bite-craft-sub000/internal/gateway"
	"github.com/msxsistemas/quick-bite-craft-sub000/internal/loyalty"
	"github.com/msxsistemas/quick-bite-craft-sub000/internal/paynet"
	"github.com/msxsistemas/quick-bite-craft-sub000/internal/settlement"
	"github.com/msxsistemas/quick-bite-craft-sub000/internal/storage/postgres"
	"github.com/msxsistemas/quick-bite-craft-sub000/pkg/logging"
	"github.com/msxsistemas/quick-bite-craft-sub000/pkg/messaging"
)

func main() {
	log := logging.Setup()
	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := postgres.New(db)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis unreachable, loyalty profiles disabled", "error", err)
		rdb = nil
	}

	msg, err := messaging.NewClient(messaging.Config{
		URL:            cfg.NATSURL,
		Name:           "settlementd",
		ReconnectWait:  time.Second,
		MaxReconnects:  -1,
		ConnectTimeout: 5 * time.Second,
	})
	if err != nil {
		log.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer msg.Close()

	network := paynet.NewClient(msg, log, paynet.Config{
		RequestTimeout: cfg.PaynetTimeout,
		MaxFailures:    cfg.PaynetMaxFailures,
		Cooldown:       cfg.PaynetCooldown,
	})

	var loyaltyStore settlement.LoyaltyRecorder
	if rdb != nil {
		loyaltyStore = loyalty.New(rdb)
	}

	svc := settlement.NewService(store, msg, network, loyaltyStore, log)

	// The payment network drives pending -> completed/expired; nothing in
	// this service times charges out on its own.
	unsubscribe, err := network.Notifications(
		func(n messaging.ChargeNotification) {
			if err := svc.Confirm(ctx, n.RestaurantID, n.PaymentID); err != nil {
				log.Warn("charge confirmation not applied", "payment_id", n.PaymentID, "error", err)
			}
		},
		func(n messaging.ChargeNotification) {
			if err := svc.Expire(ctx, n.RestaurantID, n.PaymentID); err != nil {
				log.Warn("charge expiry not applied", "payment_id", n.PaymentID, "error", err)
			}
		},
	)
	if err != nil {
		log.Error("failed to subscribe to payment network", "error", err)
		os.Exit(1)
	}
	defer unsubscribe()

	tokens := auth.NewManager(cfg.JWTSecret, cfg.TokenTTL)
	gw := gateway.New(svc, msg, tokens, cfg.Merchant, log)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      gw.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket streams stay open
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("settlementd listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("settlementd exited", "error", err)
		os.Exit(1)
	}
	log.Info("settlementd stopped")
}
