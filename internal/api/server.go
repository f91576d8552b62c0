package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"

	"github.com/mfelder/liveline/internal/config"
	"github.com/mfelder/liveline/internal/database"
	"github.com/mfelder/liveline/internal/ratelimit"
	"github.com/mfelder/liveline/internal/session"
)

// App is the HTTP surface: account registration and login, the
// websocket upgrade endpoint, and the read-only online counter. All
// realtime traffic happens on the socket; HTTP only issues tokens and
// hands connections to the session dispatcher.
type App struct {
	log            *log.Logger
	db             database.Repository
	mux            *http.Server
	sessions       *session.Dispatcher
	limiter        *ratelimit.Limiter
	signingKey     []byte
	allowedOrigins []string
}

func NewApp(mux *http.ServeMux, logger *log.Logger, dispatcher *session.Dispatcher,
	db database.Repository, limiter *ratelimit.Limiter, cfg *config.Config) *App {

	s := &App{
		log:            logger,
		db:             db,
		sessions:       dispatcher,
		limiter:        limiter,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("POST /api/auth/register", s.register)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/online", s.online)
	mux.HandleFunc("GET /ws", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *App) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *App) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
