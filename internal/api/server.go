// Package api implements the extension directory REST API.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ulauncher/extapi/pkg/auth"
	"github.com/ulauncher/extapi/pkg/extension"
	"github.com/ulauncher/extapi/pkg/observability"
	"github.com/ulauncher/extapi/pkg/storage"
)

// Resolver validates a repository for the create and validate flows.
type Resolver interface {
	Resolve(ctx context.Context, projectPath string) (*extension.Resolution, error)
}

// ReleaseSource looks up Ulauncher releases by tag.
type ReleaseSource interface {
	FetchRelease(ctx context.Context, version string) (json.RawMessage, error)
}

// ImageStore stores uploaded screenshots.
type ImageStore interface {
	Upload(ctx context.Context, user string, files []io.Reader) ([]string, error)
	Delete(ctx context.Context, urls []string, user string) error
	ValidateURL(url string) error
	MaxSize() int64
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Deps are the collaborators the handlers use.
type Deps struct {
	Store    storage.Store
	Resolver Resolver
	Releases ReleaseSource
	Images   ImageStore
	Verifier auth.Verifier
	Logger   *log.Logger
	// Health maps a dependency name to its check for /healthz.
	Health map[string]HealthCheck
	// Commit and BuildDate are reported by /api-doc.
	Commit    string
	BuildDate string
}

// ServerOption configures the API server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	middlewares []func(http.Handler) http.Handler
	corsOrigins []string
	metrics     *observability.Metrics
	now         func() time.Time
}

// WithMiddlewares adds middleware in front of every route.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithCORS allows cross-origin requests from origins.
func WithCORS(origins ...string) ServerOption {
	return func(cfg *serverConfig) {
		cfg.corsOrigins = origins
	}
}

// WithMetrics records request metrics and serves them at /metrics.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metrics = m
	}
}

// WithClock replaces the time source for record timestamps.
func WithClock(now func() time.Time) ServerOption {
	return func(cfg *serverConfig) {
		cfg.now = now
	}
}

type server struct {
	Deps
	now    func() time.Time
	router chi.Router
}

// NewServer creates the HTTP router.
func NewServer(deps Deps, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{now: time.Now}
	for _, opt := range opts {
		opt(cfg)
	}
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}

	r := chi.NewRouter()
	s := &server{Deps: deps, now: cfg.now, router: r}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(deps.Logger))
	r.Use(s.recoverer)
	if len(cfg.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}
	if cfg.metrics != nil {
		r.Use(cfg.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", cfg.metrics.Handler())
	}
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, errNotFound(r))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: errorBody{
			Status:      http.StatusMethodNotAllowed,
			Error:       "MethodNotAllowed",
			Description: r.Method + " is not allowed on " + r.URL.Path,
		}})
	})

	r.Get("/healthz", s.healthz)
	r.Get("/api-doc", s.apiDoc)
	r.Get("/misc/ulauncher-releases/{version}", s.getRelease)

	r.Get("/extensions", s.listExtensions)
	r.Get("/extensions/{id}", s.getExtension)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(deps.Verifier, s.writeError))

		r.Get("/my/extensions", s.myExtensions)
		r.Get("/validate-project", s.validateProject)
		r.Post("/extensions", s.createExtension)
		r.Patch("/extensions/{id}", s.updateExtension)
		r.Delete("/extensions/{id}", s.deleteExtension)
		r.Post("/upload-images", s.uploadImages)
	})

	return r
}

// LoggingMiddleware logs every request once it completes.
func LoggingMiddleware(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}

func (s *server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.Logger.Error("panic in handler", "panic", rec, "path", r.URL.Path)
				s.writeError(w, r, errInternal(rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
