package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"git.cscs.ch/openchami/backlog-mcp/internal/config"
)

const maxRequestBodyBytes = 1 << 20

// Pinger reports whether the Backlog space is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
}

// HTTPServer wraps MCP HTTP routing state.
type HTTPServer struct {
	cfg      config.Config
	build    BuildInfo
	contract []byte
	runtime  Runtime
	authn    SessionAuthenticator
	pinger   Pinger
}

// NewHTTPServer creates an HTTP transport server with health and MCP routes.
func NewHTTPServer(
	cfg config.Config,
	build BuildInfo,
	contract []byte,
	rt Runtime,
	authn SessionAuthenticator,
	pinger Pinger,
) *HTTPServer {
	return &HTTPServer{
		cfg:      cfg,
		build:    build,
		contract: contract,
		runtime:  rt,
		authn:    authn,
		pinger:   pinger,
	}
}

// Router builds the MCP HTTP router.
func (s *HTTPServer) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.runtime.Logger))
	r.Use(middleware.Recoverer)
	r.Use(secureHeaders)
	r.Use(middleware.RequestSize(maxRequestBodyBytes))
	r.Use(middleware.AllowContentType("application/json"))
	r.Use(middleware.SetHeader("X-API-Version", "mcp/v1"))
	r.Use(middleware.NoCache)

	registerHealthRoutes(r, s.build, s.pinger)
	if s.cfg.MetricsEnabled && s.runtime.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.runtime.Metrics.Handler())
	}
	registerMCPHTTPRoutes(r, s.runtime, s.authn)

	r.Get("/api/tools.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(s.contract)
	})

	return r
}

// requestLogger logs one line per request with the chi request ID.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			event := logger.Debug()
			if status >= http.StatusInternalServerError {
				event = logger.Warn()
			}
			event.
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(started)).
				Msg("http request")
		})
	}
}

func secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'")
		next.ServeHTTP(w, r)
	})
}
