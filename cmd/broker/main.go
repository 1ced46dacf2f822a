package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aman-churiwal/gen-broker/internal/config"
	"github.com/aman-churiwal/gen-broker/internal/server"
	"github.com/aman-churiwal/gen-broker/internal/storage"
	"github.com/aman-churiwal/gen-broker/internal/upstream"
	"github.com/joho/godotenv"
)

func main() {
	// Load env if it exists
	godotenv.Load()

	cfg, err := config.Load("config.json")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	postgres, err := storage.NewPostgres(cfg.GetDSN())
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer postgres.Close()

	if err := postgres.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Connected to postgres successfully")

	redis, err := storage.NewRedis(
		cfg.Redis.GetRedisAddr(),
		cfg.Redis.Password,
		cfg.Redis.DB,
	)

	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	log.Println("Connected to redis successfully")

	up, err := upstream.NewClient(upstream.Config{
		Targets:             cfg.Upstream.Targets,
		Strategy:            cfg.Upstream.Strategy,
		GeneratePath:        cfg.Upstream.GeneratePath,
		RenewPath:           cfg.Upstream.RenewPath,
		Timeout:             cfg.Upstream.Timeout(),
		RequestsPerSecond:   cfg.Upstream.RequestsPerSecond,
		Burst:               cfg.Upstream.Burst,
		HealthCheckEndpoint: cfg.Upstream.HealthCheckEndpoint,
	})
	if err != nil {
		log.Fatalf("Failed to create upstream client: %v", err)
	}
	defer up.Stop()

	// Create server
	srv := server.New(cfg, redis, postgres, up)

	go func() {
		addr := ":" + cfg.Server.Port
		if err := srv.Run(addr); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
