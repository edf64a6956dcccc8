package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"brightsteps-backend-go/internal/config"
	"brightsteps-backend-go/internal/db"
	httpapi "brightsteps-backend-go/internal/http"
	"brightsteps-backend-go/internal/logger"
	"brightsteps-backend-go/internal/migrations"
	"brightsteps-backend-go/internal/services"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Options{Mode: cfg.Env, Dir: cfg.LogDir, RetentionDays: cfg.LogRetentionDays})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database connection failed", "error", err)
	}
	defer database.Close()

	applied, err := migrations.Apply(ctx, database, migrations.Files())
	if err != nil {
		log.Fatal("migrations failed", "error", err)
	}
	log.Info("migrations applied", "count", applied)

	if err := services.EnsureRoles(ctx, database); err != nil {
		log.Fatal("role seed failed", "error", err)
	}
	created, err := services.BootstrapAdmin(ctx, database, services.NewTokenService(cfg.Auth), cfg.Auth.BootstrapAdminEmail, cfg.Auth.BootstrapAdminPassword)
	if err != nil {
		log.Fatal("bootstrap admin failed", "error", err)
	}
	if created {
		log.Info("bootstrap admin created", "email", cfg.Auth.BootstrapAdminEmail)
	}
	if _, err := services.EnsureStoragePath(cfg.MediaStoragePath, services.BucketGenerated); err != nil {
		log.Fatal("media storage unavailable", "path", cfg.MediaStoragePath, "error", err)
	}

	hub := services.NewEventHub()
	go hub.Run(ctx)

	server, err := httpapi.NewServer(database, cfg, hub, log)
	if err != nil {
		log.Fatal("server setup failed", "error", err)
	}
	go metricsLoop(ctx, cfg, hub)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Router(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("listening", "addr", httpServer.Addr, "env", cfg.Env)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server stopped", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	cancel()
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(ctxShutdown)
	log.Info("shutdown complete")
}

// metricsLoop samples the host on a fixed interval and pushes it to any
// connected admin consoles.
func metricsLoop(ctx context.Context, cfg config.Config, hub *services.EventHub) {
	ticker := time.NewTicker(time.Duration(cfg.MetricsSampleSeconds) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if hub.ClientCount() == 0 {
				continue
			}
			hub.Publish(services.Event{
				Type: services.EventHostMetrics,
				At:   time.Now().UTC(),
				Data: services.CaptureHostMetrics(cfg.MetricsDiskPath),
			})
		case <-ctx.Done():
			return
		}
	}
}
