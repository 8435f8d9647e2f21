package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pufmi/connect4/internal/config"
	"github.com/pufmi/connect4/internal/repository/memory"
	"github.com/pufmi/connect4/internal/repository/postgres"
	"github.com/pufmi/connect4/internal/repository/redis"
	"github.com/pufmi/connect4/internal/repository/sqlite"
	"github.com/pufmi/connect4/internal/service/cleanup"
	"github.com/pufmi/connect4/internal/service/game"
	transportHttp "github.com/pufmi/connect4/internal/transport/http"
)

// openStore builds the configured game store and returns its closer
func openStore(cfg *config.Config) (redis.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		log.Println("[STORE] Using in-memory store, games are lost on restart")
		return memory.NewGameRepo(), func() {}, nil

	case config.StoreDriverSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("[STORE] Using SQLite store at %s", cfg.SQLitePath)
		return store, func() { store.Close() }, nil
	}

	db, err := postgres.Connect(cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:       cfg.DBMaxOpenConns,
		MaxIdleConns:       cfg.DBMaxIdleConns,
		ConnMaxLifetimeMin: cfg.DBConnMaxLifetimeMin,
	})
	if err != nil {
		return nil, nil, err
	}
	log.Println("[STORE] Using PostgreSQL store")
	return postgres.NewGameRepo(db), func() { db.Close() }, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			log.Println("No .env file found")
		}
	}

	cfg := config.LoadConfig()

	// 1. Initialize the game store (Persistence Layer)
	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open game store: %v", err)
	}
	defer closeStore()

	// 2. Optional Redis read cache in front of the store
	var gameRepo redis.Store = store
	if cfg.RedisURL != "" {
		pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := redis.Connect(pingCtx, cfg.RedisURL, cfg.RedisPassword)
		cancelPing()
		if err != nil {
			log.Printf("[REDIS] Failed to connect, running without cache: %v", err)
		} else {
			defer client.Close()
			gameRepo = redis.NewCachedRepository(store, redis.NewRedisCache(client), cfg.CacheTTL)
		}
	}

	// 3. Initialize Services (Business Logic Layer)
	gameService := game.NewService(gameRepo)

	// 4. Initialize Background Workers
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	cleanupWorker := cleanup.NewWorker(gameRepo, cfg.GameRetention, cfg.CleanupInterval)
	go cleanupWorker.Start(workerCtx)

	// 5. Setup Gin Router (API Layer)
	router := transportHttp.NewRouter(gameService, cfg.AllowedOrigins)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Println("Server is shutting down...")
	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited gracefully")
}
