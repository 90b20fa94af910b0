package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mreed/campuslink/internal/config"
	"github.com/mreed/campuslink/internal/email"
	"github.com/mreed/campuslink/internal/handler"
	"github.com/mreed/campuslink/internal/middleware"
	"github.com/mreed/campuslink/internal/session"
	"github.com/mreed/campuslink/internal/store"
	"github.com/mreed/campuslink/internal/token"
)

type Server struct {
	db           *sql.DB
	cfg          config.Config
	authH        *handler.AuthHandler
	userH        *handler.UserHandler
	manager      *session.Manager
	sessionStore *store.SessionStore
	codec        *token.Codec
	rateLimiter  *middleware.RateLimiter
	logger       *slog.Logger
}

func New(db *sql.DB, cfg config.Config, emailClient *email.Client, logger *slog.Logger) *Server {
	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)

	codec := token.NewCodec(cfg.AccessTokenSecret, cfg.RefreshTokenSecret)
	manager := session.NewManager(codec, sessionStore, userStore, logger.With("component", "session"))

	return &Server{
		db:           db,
		cfg:          cfg,
		authH:        handler.NewAuthHandler(userStore, manager, emailClient, logger.With("component", "auth")),
		userH:        handler.NewUserHandler(userStore, manager, logger.With("component", "user")),
		manager:      manager,
		sessionStore: sessionStore,
		codec:        codec,
		rateLimiter:  middleware.NewRateLimiter(),
		logger:       logger,
	}
}

// SessionStore returns the session store for the TTL-eviction job.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	base := s.cfg.APIBase

	outerMux := http.NewServeMux()
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Every API route goes through the access gate; the gate itself
	// bypasses the unauthenticated paths it derives from the base.
	api := http.NewServeMux()
	api.HandleFunc("POST "+base+"/register", s.rateLimitedHandler(s.authH.Register))
	api.HandleFunc("POST "+base+"/login", s.rateLimitedHandler(s.authH.Login))
	api.HandleFunc("GET "+base+"/verify-token", s.authH.VerifyToken)
	api.HandleFunc("POST "+base+"/forgot-password", s.authH.ForgotPassword)
	api.HandleFunc("POST "+base+"/verify-otp", s.authH.VerifyOTP)
	api.HandleFunc("POST "+base+"/reset-password", s.authH.ResetPassword)

	api.HandleFunc("GET "+base+"/users", s.userH.List)
	api.HandleFunc("GET "+base+"/users/{id}", s.userH.Get)
	api.HandleFunc("PUT "+base+"/users/{id}", s.userH.Update)

	// admin routes are role-gated by the path prefix inside the gate
	api.HandleFunc("GET "+base+"/admin/users", s.userH.List)
	api.HandleFunc("DELETE "+base+"/admin/users/{id}", s.userH.Delete)

	gate := middleware.RequireAuth(s.manager, s.sessionStore, s.codec, base, s.logger.With("component", "gate"))
	outerMux.Handle(base+"/", gate(api))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
