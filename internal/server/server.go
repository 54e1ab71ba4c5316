// Package server provides the HTTP server for the soulpack web API.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/Brant123451/soulpack-reader/internal/config"
	"github.com/Brant123451/soulpack-reader/internal/engine"
	"github.com/Brant123451/soulpack-reader/internal/registry"
	"github.com/Brant123451/soulpack-reader/web/handlers"
)

// Start starts the HTTP server and blocks until the listener is ready.
// It returns the actual listen address (useful when the configured port
// is 0) and the WebSocket hub. The server shuts down when ctx is
// cancelled.
func Start(ctx context.Context, cfg *config.Config, session *engine.Session, rc *registry.Client) (string, *handlers.WebSocketHub, error) {
	wsHub := handlers.NewWebSocketHub()
	go wsHub.Run()

	api := handlers.NewAPIHandlers(session, cfg)
	api.SetHub(wsHub)
	if rc != nil {
		api.SetRegistry(rc)
	}

	rateLimiter := handlers.NewRateLimiter(10, 20)

	apiMux := http.NewServeMux()

	apiMux.HandleFunc("/api/characters", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			api.ListCharacters(w, r)
		case http.MethodPost:
			api.InstallCharacter(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("DELETE /api/characters/{id}", api.RemoveCharacter)
	apiMux.HandleFunc("POST /api/characters/{id}/activate", api.ActivateCharacter)
	apiMux.HandleFunc("GET /api/characters/{id}/update-check", api.CheckUpdate)

	apiMux.HandleFunc("GET /api/status", api.GetStatus)
	apiMux.HandleFunc("POST /api/record", api.RecordExchange)
	apiMux.HandleFunc("POST /api/conversation/end", api.EndConversation)
	apiMux.HandleFunc("POST /api/import/conversation", api.ImportConversation)

	apiMux.HandleFunc("/api/memories", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			api.ListMemories(w, r)
		case http.MethodPost:
			api.AddMemory(w, r)
		case http.MethodDelete:
			api.ClearMemories(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("DELETE /api/memories/{id}", api.DeleteMemory)
	apiMux.HandleFunc("GET /api/search", api.Search)

	apiMux.HandleFunc("/api/overlay", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			api.SetOverlay(w, r)
		case http.MethodDelete:
			api.ClearOverlay(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("GET /api/context", api.BuildContext)
	apiMux.HandleFunc("GET /api/state/export", api.ExportState)
	apiMux.HandleFunc("POST /api/state/import", api.ImportState)
	apiMux.HandleFunc("GET /api/registry/search", api.RegistrySearch)

	protected := handlers.RequireAuth(
		handlers.RateLimitMiddleware(apiMux, rateLimiter), cfg)

	mux := http.NewServeMux()
	mux.Handle("/api/", protected)

	// Health check stays unauthenticated so monitors can probe it.
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"healthy","version":"1.0.0"}`)
	})

	mux.Handle("/ws", wsHub)

	handler := securityHeadersMiddleware(mux)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	actualAddr := listener.Addr().String()

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
		wsHub.Stop()
	}()

	log.Printf("soulpack web API listening on http://%s", actualAddr)
	return actualAddr, wsHub, nil
}

// securityHeadersMiddleware adds standard security headers to all responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}
