package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cartify/backend/internal/cache"
	"cartify/backend/internal/config"
	"cartify/backend/internal/events"
	"cartify/backend/internal/expiry"
	"cartify/backend/internal/httpapi"
	"cartify/backend/internal/payment"
	"cartify/backend/internal/service"
	"cartify/backend/internal/store"
	"cartify/backend/internal/store/memory"
	pgstore "cartify/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 3)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		if cfg.AutoMigrate {
			if _, err := pg.Migrate(ctx); err != nil {
				log.Fatalf("migrate: %v", err)
			}
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	// Without redis, dedup still holds within this process.
	deduper := cache.EventDeduper(cache.NewMemoryEventDeduper())
	if cfg.RedisAddr != "" {
		redisDeduper := cache.NewRedisEventDeduper(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisDeduper.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using in-process webhook dedup", err)
		} else {
			deduper = redisDeduper
			closers = append(closers, redisDeduper.Close)
			log.Println("webhook dedup: redis")
		}
	} else {
		log.Println("webhook dedup: in-process")
	}

	publisher := events.Publisher(events.NoopPublisher{})
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, 1024)
		publisher = kafkaPublisher
		closers = append(closers, kafkaPublisher.Close)
		log.Printf("events: kafka topic %s", cfg.KafkaTopic)
	} else {
		log.Println("events: noop")
	}

	gateway := payment.Gateway(payment.Disabled{})
	if cfg.PaymentSecretKey != "" {
		gateway = payment.NewStripeGateway(cfg.PaymentSecretKey, cfg.PaymentWebhookSecret)
		log.Println("payment gateway: stripe")
	} else {
		log.Println("payment gateway: disabled")
	}

	scheduler := expiry.NewScheduler(cfg.SweepInterval())
	svc := service.New(repo, service.Options{
		Gateway:   gateway,
		Publisher: publisher,
		Deduper:   deduper,
		Scheduler: scheduler,
		BillTTL:   cfg.PosBillTTL(),
		Currency:  cfg.PaymentCurrency,
	})
	// The first sweep also picks up bills whose timers died with the last process.
	scheduler.Start(context.Background(), svc)

	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), repo)
	api := httpapi.New(svc, auth, gateway, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("cartify backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	scheduler.Stop()

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.PaymentSecretKey != "" && cfg.PaymentWebhookSecret == "" {
		return fmt.Errorf("PAYMENT_WEBHOOK_SECRET must be set when PAYMENT_SECRET_KEY is")
	}
	return nil
}
