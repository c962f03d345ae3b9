package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"voicecrm/api/internal/app"
	"voicecrm/api/internal/archive"
	"voicecrm/api/internal/config"
	"voicecrm/api/internal/export"
	"voicecrm/api/internal/extract"
	"voicecrm/api/internal/metrics"
	"voicecrm/api/internal/search"
	"voicecrm/api/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("failed to load .env: %v", err)
	}
	cfg := config.Load()
	ctx := context.Background()

	db, dialect, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, dialect); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}
	dataStore := store.NewSQLStore(db, dialect)
	log.Printf("Using %s database", dialect)

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meiliClient, search.NewStoreFallback(dataStore))
	defer searchService.Close()

	audioArchive, err := archive.Open(ctx, archive.Config{
		Driver:    archive.Driver(cfg.ArchiveDriver),
		Root:      cfg.ArchiveRoot,
		Endpoint:  cfg.MinIOEndpoint,
		AccessKey: cfg.MinIOAccessKey,
		SecretKey: cfg.MinIOSecretKey,
		Bucket:    cfg.MinIOBucket,
		UseSSL:    cfg.MinIOUseSSL,
	})
	if err != nil {
		log.Fatalf("audio archive unavailable: %v", err)
	}

	extractor := extract.New(extract.Config{
		APIKey:             cfg.GroqAPIKey,
		BaseURL:            cfg.GroqBaseURL,
		TranscriptionModel: cfg.TranscriptionModel,
		ExtractionModel:    cfg.ExtractionModel,
		Language:           cfg.TranscriptLanguage,
	})
	if !extractor.Configured() {
		log.Printf("WARNING: GROQ_API_KEY is not set, /process-voice will answer 503")
	}

	service := app.New(cfg, dataStore, app.Deps{
		Extractor: extractor,
		Archive:   audioArchive,
		Search:    searchService,
		Exporter:  export.NewService(),
		Metrics:   metrics.New(),
	})
	if err := service.Bootstrap(ctx); err != nil {
		log.Printf("WARNING: bootstrap error (will retry on next restart): %v", err)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      3 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Voice CRM API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
