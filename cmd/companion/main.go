// Package main is the entry point for the campus portal companion.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campus-portal/companion/internal/api"
	"github.com/campus-portal/companion/internal/catalog"
	"github.com/campus-portal/companion/internal/config"
	"github.com/campus-portal/companion/internal/lifecycle"
	"github.com/campus-portal/companion/internal/relation"
	"github.com/campus-portal/companion/internal/remote"
	"github.com/campus-portal/companion/internal/session"
	"github.com/campus-portal/companion/internal/storage"
	"github.com/campus-portal/companion/internal/storage/models"
	"github.com/campus-portal/companion/internal/validate"
	"github.com/campus-portal/companion/internal/websocket"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

func main() {
	configPath := flag.String("config", "companion.yaml", "Path to the YAML config file")
	addr := flag.String("addr", "", "HTTP server address (overrides config)")
	dataDir := flag.String("data", "", "Data directory for SQLite database (overrides config)")
	staticDir := flag.String("static", "", "Directory for static frontend files (overrides config)")
	healthCheck := flag.Bool("health-check", false, "Run health check and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Listen = *addr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *staticDir != "" {
		cfg.StaticDir = *staticDir
	}

	// Health check mode for container HEALTHCHECK
	if *healthCheck {
		if err := runHealthCheck(cfg.Listen); err != nil {
			log.Fatalf("Health check failed: %v", err)
		}
		os.Exit(0)
	}

	if envVer := os.Getenv("VERSION"); envVer != "" {
		version = envVer
	}
	log.Printf("Starting campus portal companion (version: %s)...", version)

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Invalid timezone: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data directory %q: %v", cfg.DataDir, err)
	}
	db, err := storage.Open(cfg.DatabasePath())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	log.Println("Database migrations complete")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := websocket.NewHub()
	go hub.Run(ctx)
	broadcaster := websocket.NewEventBroadcaster(hub)

	portal := remote.NewClient(cfg.Portal)
	if !cfg.Portal.HasToken() {
		log.Printf("Warning: no portal token configured; relation and form calls will be rejected")
	}

	// Stored settings win over the config file.
	settings := models.Settings{
		PhaseTickSeconds:   int(cfg.PhaseTick / time.Second),
		DebounceMS:         int(cfg.Debounce / time.Millisecond),
		CatalogSyncMinutes: int(cfg.CatalogSync / time.Minute),
	}
	settingsRepo := storage.NewSettingsRepository(db)
	if stored, err := settingsRepo.All(ctx); err != nil {
		log.Printf("Warning: Failed to load stored settings: %v", err)
	} else {
		settings.Apply(stored)
	}

	tracker := lifecycle.NewTracker(loc)

	views := session.NewViews(map[relation.Kind]relation.Mutator{
		relation.KindBookmark:     relation.NewBookmarks(portal),
		relation.KindRegistration: relation.NewRegistrations(portal),
	}, cfg.SeedConcurrency, broadcaster.BroadcastRelationChange)

	forms := session.NewForms(portal, validate.RealScheduler{},
		time.Duration(settings.DebounceMS)*time.Millisecond, broadcaster.BroadcastFieldValidated)

	sources := []catalog.Source{catalog.NewPortalSource(portal)}
	for _, url := range cfg.ICSFeeds {
		sources = append(sources, catalog.NewFeed(url, loc))
	}
	eventRepo := storage.NewEventRepository(db)
	syncService := catalog.NewSyncService(eventRepo, storage.NewSyncRunRepository(db), tracker, sources...)

	scheduler := catalog.NewScheduler(syncService, tracker, eventRepo, hub, catalog.Intervals{
		Sync:      time.Duration(settings.CatalogSyncMinutes) * time.Minute,
		PhaseTick: time.Duration(settings.PhaseTickSeconds) * time.Second,
	})
	if err := scheduler.Start(ctx); err != nil {
		log.Printf("Warning: Failed to start catalog scheduler: %v", err)
	}

	router := api.NewRouter(api.Deps{
		DB:        db,
		Hub:       hub,
		Tracker:   tracker,
		Scheduler: scheduler,
		Views:     views,
		Forms:     forms,
		Settings:  api.Runtime{Scheduler: scheduler, Forms: forms},
		StaticDir: cfg.StaticDir,
	})

	// WriteTimeout covers a toggle waiting on the portal.
	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Portal.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server listening on %s", cfg.Listen)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	scheduler.Stop()
	views.CloseAll()
	forms.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(addr string) error {
	resp, err := http.Get("http://" + healthHost(addr) + "/api/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// healthHost turns a listen address into one that can be dialled.
func healthHost(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
