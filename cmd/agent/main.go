package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pitchmark/pitchmark-agent/internal/api"
	"github.com/pitchmark/pitchmark-agent/internal/config"
	"github.com/pitchmark/pitchmark-agent/internal/db"
	"github.com/pitchmark/pitchmark-agent/internal/logging"
	"github.com/pitchmark/pitchmark-agent/internal/remote"
	"github.com/pitchmark/pitchmark-agent/internal/store"
	"github.com/pitchmark/pitchmark-agent/internal/sync"
	"github.com/pitchmark/pitchmark-agent/internal/timeline"
	"github.com/pitchmark/pitchmark-agent/internal/ui"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting pitchmark agent",
		"version", config.Version, "data_dir", logging.SanitizePath(cfg.DataDir()))

	database, err := db.New(cfg.DBPath(), logging.WithComponent(logger, "db"))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	st := store.NewSQLiteStore(database.Conn())

	deviceID, err := ensureDeviceID(st)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}

	authToken, err := ensureAuthToken(st)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                   PITCHMARK AGENT v0.1.0                  ║")
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s ║\n", deviceID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	collection, err := loadCollection(cfg)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := collection.Validate(); err != nil {
		return fmt.Errorf("invalid collection: %w", err)
	}
	library := timeline.NewLibrary(collection)
	logger.Info("collection loaded", "name", library.CollectionName(), "tags", len(library.Tags()))

	var remoteClient remote.Client
	if cfg.RemoteURL() != "" && cfg.RemoteTokenURL() != "" {
		httpClient := remote.NewHTTPClient(cfg.RemoteURL(), remote.NewHTTPTokenSource(cfg.RemoteTokenURL()), logger)
		httpClient.SetDeviceID(deviceID)
		remoteClient = httpClient
		logger.Info("remote sync enabled", "base_url", cfg.RemoteURL())
	} else {
		remoteClient = remote.NewStubClient(logger)
		logger.Info("no remote configured, running offline")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orch := sync.NewOrchestrator(st, remoteClient, library, logging.WithComponent(logger, "sync"))
	if err := orch.LoadPrefs(ctx); err != nil {
		return err
	}
	orch.Start(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:         cfg.Port(),
		Store:        st,
		Orchestrator: orch,
		Library:      library,
		Remote:       remoteClient,
		Logger:       logging.WithComponent(logger, "api"),
		StartTime:    startTime,
		DeviceID:     deviceID,
		Version:      config.Version,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Logger: logging.WithComponent(logger, "ui"),
			OnSyncNow: func() error {
				videoID, err := st.GetCurrentVideoID(ctx)
				if err != nil {
					return err
				}
				if videoID == "" {
					logger.Info("sync requested from tray but no current video")
					return nil
				}
				return orch.Synchronize(ctx, videoID)
			},
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
		go trayStatusLoop(ctx, tray, orch)
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func loadCollection(cfg config.Config) (timeline.Collection, error) {
	if path := cfg.CollectionPath(); path != "" {
		return timeline.LoadCollection(path)
	}
	return timeline.DefaultCollection()
}

func trayStatusLoop(ctx context.Context, tray *ui.Tray, orch *sync.Orchestrator) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := orch.Status()
			tray.UpdateStatus(status.Message)
			tray.UpdateConflictCount(len(status.ConflictVideos))
		}
	}
}

func ensureDeviceID(st store.Store) (string, error) {
	ctx := context.Background()

	existing, err := st.GetConfig(ctx, "device_id")
	if err == nil && existing != "" {
		return existing, nil
	}

	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return "", err
	}
	deviceID := hex.EncodeToString(idBytes)

	if err := st.SetConfig(ctx, "device_id", deviceID); err != nil {
		return "", err
	}

	return deviceID, nil
}

func ensureAuthToken(st store.Store) (string, error) {
	ctx := context.Background()

	existing, err := st.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := st.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}
