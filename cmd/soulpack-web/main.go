// Command soulpack-web runs the HTTP API over the same stores the MCP
// server uses, so both surfaces see one set of characters and memories.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Brant123451/soulpack-reader/internal/config"
	"github.com/Brant123451/soulpack-reader/internal/engine"
	"github.com/Brant123451/soulpack-reader/internal/registry"
	"github.com/Brant123451/soulpack-reader/internal/server"
	"github.com/Brant123451/soulpack-reader/internal/store"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if !cfg.Features.EnableWebUI {
		log.Fatal("web API is disabled (SOULPACK_ENABLE_WEB_UI=false)")
	}

	if err := os.MkdirAll(cfg.Storage.DataPath, 0o700); err != nil {
		log.Fatalf("Failed to create data directory %q: %v", cfg.Storage.DataPath, err)
	}

	packs := store.NewPackStore(cfg.Storage.DataPath)
	states := store.NewStateStore(cfg.Storage.DataPath)
	transcripts := store.NewTranscriptStore(cfg.Storage.DataPath, cfg.Limits.MaxTranscripts)

	session, err := engine.NewSession(packs, states, transcripts, engine.Config{
		MaxMemories:       cfg.Limits.MaxMemories,
		DefaultQueryLimit: cfg.Limits.DefaultQueryLimit,
		MaxQueryLimit:     cfg.Limits.MaxQueryLimit,
	}, engine.WithPromptMemories(cfg.Limits.PromptMemories))
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}

	var rc *registry.Client
	if cfg.Registry.BaseURL != "" {
		rc = registry.NewClient(cfg.Registry.BaseURL,
			registry.WithTimeout(cfg.Registry.Timeout))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, _, err := server.Start(ctx, cfg, session, rc)
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("Soulpack web API running at http://%s", addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancel()
	time.Sleep(1 * time.Second) // Give time for connections to close
}
