package api

import (
	"database/sql"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"github.com/pantrylabs/cookbook/pkg/attrs"
	"github.com/pantrylabs/cookbook/pkg/auth"
	"github.com/pantrylabs/cookbook/pkg/httputil"
	"github.com/pantrylabs/cookbook/pkg/middleware"
	"github.com/pantrylabs/cookbook/pkg/observability"
	"github.com/pantrylabs/cookbook/pkg/recipes"
)

// Options configures the API server
type Options struct {
	DB        *sql.DB
	Logger    *observability.Logger
	Metrics   *observability.Metrics // nil disables metrics
	MediaRoot string
	TokenTTL  time.Duration
	// MaxBodyBytes caps request body size; zero disables the cap
	MaxBodyBytes int64
	// MaxUploadBytes caps a single image upload; zero disables the cap
	MaxUploadBytes int64
}

// Server wires the feature handlers onto a single router
type Server struct {
	router        *mux.Router
	authService   *auth.Service
	recipeService *recipes.Service
}

// NewServer creates the API server and mounts every route
func NewServer(opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.InfoLevel, os.Stdout)
	}

	authService := auth.NewService(opts.DB, opts.TokenTTL)

	tags, err := attrs.NewCollection(opts.DB, attrs.KindTag)
	if err != nil {
		return nil, err
	}
	ingredients, err := attrs.NewCollection(opts.DB, attrs.KindIngredient)
	if err != nil {
		return nil, err
	}

	recipeService := recipes.NewService(opts.DB, tags, ingredients,
		recipes.NewFilesystemImageStore(opts.MediaRoot))

	s := &Server{
		router:        mux.NewRouter(),
		authService:   authService,
		recipeService: recipeService,
	}
	s.setupRoutes(opts, tags, ingredients)
	return s, nil
}

// setupRoutes configures middleware and mounts the public and protected routes
func (s *Server) setupRoutes(opts Options, tags, ingredients *attrs.Collection) {
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteMethodNotAllowed(w)
	})
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFoundError(w, "not found")
	})

	s.router.Use(httputil.RequestIDMiddleware)
	s.router.Use(httputil.LoggingMiddleware(opts.Logger))
	s.router.Use(httputil.RecoveryMiddleware(opts.Logger))
	if opts.MaxBodyBytes > 0 {
		s.router.Use(httputil.MaxBytesMiddleware(opts.MaxBodyBytes))
	}
	if opts.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(opts.Metrics))
	}

	authHandlers := auth.NewHandlers(s.authService)
	authHandlers.RegisterPublicRoutes(s.router)

	protected := s.router.NewRoute().Subrouter()
	protected.Use(middleware.NewAuthMiddleware(s.authService, false).Handler)

	authHandlers.RegisterProtectedRoutes(protected)
	attrs.NewHandlers(tags).RegisterRoutes(protected)
	attrs.NewHandlers(ingredients).RegisterRoutes(protected)
	recipes.NewHandlers(s.recipeService, opts.Metrics, opts.MaxUploadBytes).RegisterRoutes(protected)
}

// AuthService exposes the auth service for operational tooling
func (s *Server) AuthService() *auth.Service {
	return s.authService
}

// RecipeService exposes the recipe service for operational tooling
func (s *Server) RecipeService() *recipes.Service {
	return s.recipeService
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
