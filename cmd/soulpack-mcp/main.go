// Command soulpack-mcp is the entry point for the soulpack MCP (Model
// Context Protocol) server. It wires the JSON-file stores through a
// Session so that every tool call operates on the active character.
//
// Startup sequence:
//  1. Load configuration from environment variables.
//  2. Ensure the storage root exists and open the pack, state, and
//     transcript stores.
//  3. Create the Session and the registry client.
//  4. Serve JSON-RPC 2.0 requests from stdin, writing responses to stdout.
//
// CRITICAL: ALL logging MUST go to stderr. Any bytes written to stdout
// that are not valid JSON-RPC 2.0 response frames will corrupt the
// protocol.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Brant123451/soulpack-reader/internal/api/mcp"
	"github.com/Brant123451/soulpack-reader/internal/config"
	"github.com/Brant123451/soulpack-reader/internal/engine"
	"github.com/Brant123451/soulpack-reader/internal/registry"
	"github.com/Brant123451/soulpack-reader/internal/store"
)

func main() {
	// Redirect the default logger to stderr so that any incidental log
	// calls from imported packages never pollute the stdout JSON-RPC
	// stream.
	log.SetOutput(os.Stderr)
	log.SetPrefix("soulpack-mcp: ")
	log.SetFlags(log.LstdFlags)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := os.MkdirAll(cfg.Storage.DataPath, 0o700); err != nil {
		log.Fatalf("failed to create data directory %q: %v", cfg.Storage.DataPath, err)
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
		log.Fatalf("failed to create session: %v", err)
	}

	var serverOpts []mcp.ServerOption
	if cfg.Registry.BaseURL != "" {
		rc := registry.NewClient(cfg.Registry.BaseURL,
			registry.WithTimeout(cfg.Registry.Timeout))
		serverOpts = append(serverOpts, mcp.WithRegistry(rc))
	}

	srv := mcp.NewServer(session, serverOpts...)

	// Cancel the root context on SIGINT / SIGTERM so the transport can
	// finish the in-flight request and exit cleanly.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("received shutdown signal")
		cancel()
	}()

	transport := mcp.NewStdioTransport(srv, os.Stdin, os.Stdout)
	if err := transport.Serve(ctx); err != nil {
		log.Fatalf("transport error: %v", err)
	}
	log.Println("shutting down")
}
