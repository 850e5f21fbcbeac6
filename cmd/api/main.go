package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notegate/internal/app"
	"notegate/internal/commands"
	"notegate/internal/config"
	"notegate/internal/gateway"
	"notegate/internal/session"
	"notegate/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	client := gateway.NewRESTClient(gateway.RESTClientOptions{
		BaseURL: cfg.GatewayAPIURL,
		Token:   cfg.BotToken,
	})

	// Pager sessions go to Redis when configured so viewers survive a
	// restart; otherwise they live in process memory.
	var sessions session.Store
	if cfg.RedisURL != "" {
		log.Printf("Using Redis for pager sessions")
		redisStore, err := session.NewRedisStore(cfg.RedisURL, cfg.PagerTTL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		sessions = redisStore
	} else {
		log.Printf("Using in-memory pager sessions")
		sessions = session.NewMemoryStore(cfg.PagerTTL)
	}

	service := app.New(cfg, dataStore, client)

	registry := gateway.NewRegistry()
	handlers := commands.New(service, dataStore, client, sessions)
	if err := handlers.RegisterComponents(registry); err != nil {
		log.Fatalf("component registration failed: %v", err)
	}

	httpServer := app.NewHTTPServer(service)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Notegate relay listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
