// Package api serves the supply state and accepts commands over HTTP.
package api

import (
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/tamzrod/tenma-bridge/internal/datalog"
	"github.com/tamzrod/tenma-bridge/internal/psu"
	"github.com/tamzrod/tenma-bridge/internal/state"
)

// ServiceName is reported by /health.
const ServiceName = "tenma-bridge"

// Device is the part of the driver the API uses.
type Device interface {
	Execute(cmd psu.Command) error
	Snapshot() state.DeviceState
	Identity() string
}

// Config holds the HTTP surface settings. A zero BroadcastInterval uses the default.
type Config struct {
	StaticDir         string
	AllowOrigin       string
	BroadcastInterval time.Duration
}

// Server serves the supply state, commands and the data log over HTTP.
type Server struct {
	cfg     Config
	dev     Device
	datalog *datalog.Log
	metrics http.Handler
	log     logrus.FieldLogger

	onDuration atomic.Int64
	now        func() time.Time
}

// New creates the API server. metrics may be nil.
func New(cfg Config, dev Device, dl *datalog.Log, metrics http.Handler, log logrus.FieldLogger) *Server {
	if cfg.BroadcastInterval <= 0 {
		cfg.BroadcastInterval = 100 * time.Millisecond
	}
	return &Server{
		cfg:     cfg,
		dev:     dev,
		datalog: dl,
		metrics: metrics,
		log:     log,
		now:     time.Now,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	// No request timeout: /api/stream is long-lived.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(cors(s.cfg.AllowOrigin))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"service": ServiceName,
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/stream", s.handleStream)
		r.Post("/command", s.handleCommand)
	})

	r.Get("/log", s.handleLog)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	// Static files take precedence; the file server answers "/" with
	// index.html itself.
	if s.cfg.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.cfg.StaticDir)))
	} else {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "index.html", http.StatusFound)
		})
	}

	return r
}

// cors reflects the Referer as the allowed origin, falling back to
// the configured one.
func cors(fallback string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := fallback
			if ref := r.Referer(); ref != "" {
				origin = strings.TrimRight(ref, "/")
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept")
			h.Set("Access-Control-Allow-Credentials", "true")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"took":       time.Since(start),
				"request_id": middleware.GetReqID(r.Context()),
			}).Debug("http request")
		})
	}
}
