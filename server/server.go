package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wendellddr/Bot-Spotify-sub000/logger"
)

// Server is the dashboard HTTP and WebSocket server.
type Server struct {
	http *http.Server
	hub  *Hub
}

// Deps are the collaborators the dashboard needs.
type Deps struct {
	Engine   Engine
	Resolver Resolver
	Voice    VoiceLocator
	Viewers  ViewerLister
	Tokens   TokenParser
	Limiter  *RateLimiter
	Hub      *Hub
}

// New builds the dashboard server listening on addr.
func New(addr string, deps Deps) *Server {
	return &Server{
		http: &http.Server{
			Addr:         addr,
			Handler:      NewRouter(deps),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		hub: deps.Hub,
	}
}

// NewRouter registers the dashboard routes. CORS wraps the whole router so
// preflight requests are answered before route matching.
func NewRouter(deps Deps) http.Handler {
	h := NewGuildHandler(deps.Engine, deps.Resolver, deps.Voice, deps.Viewers, deps.Hub)

	router := mux.NewRouter()

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/guilds/{guild_id}").Subrouter()
	api.Use(authMiddleware(deps.Tokens))
	if deps.Limiter != nil {
		api.Use(deps.Limiter.Middleware)
	}

	api.HandleFunc("/queue", h.GetQueueHandler).Methods(http.MethodGet)
	api.HandleFunc("/viewers", h.ViewersHandler).Methods(http.MethodGet)
	api.HandleFunc("/play", h.PlayHandler).Methods(http.MethodPost)
	api.HandleFunc("/skip", h.SkipHandler).Methods(http.MethodPost)
	api.HandleFunc("/skipto", h.SkipToHandler).Methods(http.MethodPost)
	api.HandleFunc("/pause", h.PauseHandler).Methods(http.MethodPost)
	api.HandleFunc("/resume", h.ResumeHandler).Methods(http.MethodPost)
	api.HandleFunc("/stop", h.StopHandler).Methods(http.MethodPost)
	api.HandleFunc("/shuffle", h.ShuffleHandler).Methods(http.MethodPost)
	api.HandleFunc("/clear", h.ClearHandler).Methods(http.MethodPost)
	api.HandleFunc("/move", h.MoveHandler).Methods(http.MethodPost)
	api.HandleFunc("/seek", h.SeekHandler).Methods(http.MethodPost)
	api.HandleFunc("/loop", h.LoopHandler).Methods(http.MethodPut)
	api.HandleFunc("/volume", h.VolumeHandler).Methods(http.MethodPut)
	api.HandleFunc("/tracks/{pos:[0-9]+}", h.RemoveHandler).Methods(http.MethodDelete)

	router.Handle("/ws/guilds/{guild_id}",
		authMiddleware(deps.Tokens)(http.HandlerFunc(h.WebSocketHandler))).Methods(http.MethodGet)

	return corsMiddleware(router)
}

// Start runs the hub and serves in the background.
func (s *Server) Start() {
	go s.hub.Run()

	go func() {
		logger.Info("dashboard listening", logger.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("dashboard server failed", logger.ErrorField(err))
		}
	}()
}

// Shutdown stops accepting requests, waits up to ctx for in-flight ones and
// closes every WebSocket.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	return s.http.Shutdown(ctx)
}
