package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"mediakeep/app/api"
	"mediakeep/app/cfg"
	"mediakeep/app/downloader"
	"mediakeep/app/scraper"
	"mediakeep/app/storage"
	"mediakeep/app/tasks"
	"mediakeep/app/validator"
	"mediakeep/app/ytdlp"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting mediakeep", "version", appCfg.Version, "data_dir", appCfg.DataDir)

	store, err := storage.Open(appCfg.DataDir)
	if err != nil {
		slog.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	count, err := store.Reindex()
	if err != nil {
		slog.Error("Failed to index records", "error", err)
		os.Exit(1)
	}
	slog.Info("Record index ready", "records", count)

	// Core components
	ytRunner := ytdlp.NewRunner(appCfg.YtdlpPath, appCfg.CookiesFromBrowser, appCfg.CookiesFile)

	validateOpts := validator.DefaultOptions()
	validateOpts.UserAgent = appCfg.UserAgent
	validateOpts.Timeout = time.Duration(appCfg.ValidateTimeout) * time.Second
	validateOpts.MaxRetries = appCfg.ValidateRetries
	urlValidator := validator.New(validator.NewSafeClient(validateOpts.Timeout), validateOpts)

	scrapeClient := validator.NewSafeClient(time.Duration(appCfg.ScrapeTimeout) * time.Second)
	registry := scraper.NewRegistry(
		scraper.NewInstagram(ytRunner),
		scraper.NewFacebook(ytRunner),
		scraper.NewThreads(scrapeClient, appCfg.UserAgent),
		scraper.NewLinkedIn(scrapeClient, appCfg.UserAgent),
	)

	mediaDir := filepath.Join(appCfg.DataDir, "media")
	thumbsDir := filepath.Join(appCfg.DataDir, "thumbnails")
	mediaDownloader := downloader.New(ytRunner, validator.NewSafeClient(60*time.Second), mediaDir, thumbsDir)

	tracker := tasks.NewTracker()
	runner := tasks.NewRunner(store, urlValidator, registry, mediaDownloader, tracker)
	defer runner.Stop()

	// HTTP server
	apiHandler := api.NewHandler(store, runner, mediaDownloader, ytRunner, api.ScanSettings{
		SourceDir:   appCfg.SourceDir,
		FilePattern: appCfg.FilePattern,
		Recursive:   appCfg.Recursive,
	}, appCfg.Version)
	engine := api.NewServer(apiHandler, appCfg.APIAccessKey, mediaDir, thumbsDir)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Runner and store are stopped via defer
	slog.Info("Shutdown complete")
}
