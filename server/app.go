package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"collabcanvas/config"
)

// App is the relay: websocket fan-out per document plus read-only document
// endpoints.
type App struct {
	ctx      context.Context
	logger   *slog.Logger
	cfg      *config.Config
	roster   RosterStore
	bus      Bus
	items    ItemLoader
	auth     *authenticator
	upgrader websocket.Upgrader
	http     *http.Server
	wg       sync.WaitGroup
}

func NewApp(ctx context.Context, logger *slog.Logger, cfg *config.Config, roster RosterStore, bus Bus, items ItemLoader) *App {
	a := &App{
		ctx:    ctx,
		logger: logger,
		cfg:    cfg,
		roster: roster,
		bus:    bus,
		items:  items,
		auth:   newAuthenticator(cfg.Server.JWTSecret),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	a.http = &http.Server{
		Addr:    cfg.Server.Address,
		Handler: a.routes(),
		BaseContext: func(net.Listener) context.Context {
			return a.ctx
		},
	}
	return a
}

func (a *App) routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/ws/{doc}", a.handleConnections)
	r.HandleFunc("/docs/{doc}/items", a.handleItems).Methods(http.MethodGet)
	r.HandleFunc("/docs/{doc}/roster", a.handleRoster).Methods(http.MethodGet)
	return r
}

func (a *App) Run() error {
	go func() {
		a.logger.Info("Relay starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

// Shutdown stops accepting requests and waits for open sockets, which close
// themselves once the root context is done.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down relay...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.wg.Wait()
	return nil
}

func (a *App) handleItems(w http.ResponseWriter, r *http.Request) {
	if _, err := a.auth.identify(r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	doc := mux.Vars(r)["doc"]
	items, err := a.items.LoadItems(r.Context(), doc)
	if err != nil {
		a.logger.Error("Failed to load items", slog.String("doc", doc), slog.Any("error", err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, flattenItems(items))
}

func (a *App) handleRoster(w http.ResponseWriter, r *http.Request) {
	if _, err := a.auth.identify(r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	doc := mux.Vars(r)["doc"]
	attendees, err := a.roster.List(r.Context(), doc)
	if err != nil {
		a.logger.Error("Failed to list roster", slog.String("doc", doc), slog.Any("error", err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, attendees)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", slog.Any("error", err))
	}
}
