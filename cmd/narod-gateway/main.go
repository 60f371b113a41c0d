package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/existflow/narodplus/internal/config"
	"github.com/existflow/narodplus/internal/db"
	"github.com/existflow/narodplus/internal/gateway"
	"github.com/existflow/narodplus/internal/logger"
	"github.com/existflow/narodplus/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load config, using defaults: %v", err)
		cfg = config.DefaultConfig()
	}

	port := os.Getenv("PORT")
	addr := cfg.Gateway.Listen
	if port != "" {
		addr = ":" + port
	}

	if err := logger.Init(logger.Config{
		Level:    logger.ParseLevel(cfg.LogLevel),
		FilePath: cfg.LogFile,
		MaxSize:  10 * 1024 * 1024,
		MaxAge:   7,
		Console:  true,
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Close()
	}()

	var caches gateway.CacheStorage = gateway.NewMemoryStorage()
	if cfg.Gateway.Persist {
		database, err := db.Open(cfg.Storage.Path)
		if err != nil {
			log.Fatalf("Failed to open cache database: %v", err)
		}
		defer func() {
			if err := database.Close(); err != nil {
				log.Printf("Error closing database: %v", err)
			}
		}()
		caches = gateway.NewSQLiteStorage(database)
	}

	gw, err := gateway.New(cfg.ServerURL, http.DefaultTransport, caches,
		gateway.WithAPIPrefixes(cfg.Gateway.APIPrefixes))
	if err != nil {
		log.Fatalf("Failed to create gateway: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := gateway.NewWorker(cfg.Gateway.Version, cfg.Gateway.Precache)
	w.SkipWaiting = cfg.Gateway.SkipWaiting
	if err := gw.Register(ctx, w); err != nil {
		log.Printf("Gateway install failed, forwarding without cache: %v", err)
	}

	srv := server.New(gw)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("Narod gateway starting on %s", addr)
	if err := srv.Start(addr); err != nil {
		log.Fatalf("Gateway failed: %v", err)
	}
}
