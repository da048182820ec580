// Package server exposes the transformer, the target resolver and the latest
// Babel version checker over HTTP.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sw33tLie/jsenv/internal/metrics"
	"github.com/sw33tLie/jsenv/pkg/standalone"
	"github.com/sw33tLie/jsenv/pkg/storage"
	"github.com/sw33tLie/jsenv/pkg/targets"
)

// VersionChecker finds the latest published Babel version.
type VersionChecker interface {
	Latest(ctx context.Context) (string, error)
}

// History is the part of the release store the server reads and writes.
type History interface {
	RecordCheck(ctx context.Context, c storage.Check) (int64, error)
	ListChecks(ctx context.Context, limit int) ([]storage.Check, error)
	ListReleases(ctx context.Context, limit int) ([]storage.Release, error)
}

type Server struct {
	Transformer *standalone.Transformer
	Resolver    *targets.Resolver
	Checker     VersionChecker
	History     History
	Metrics     *metrics.Metrics
	Log         *logrus.Logger

	// Engine labels transform metrics.
	Engine   string
	Username string
	Password string
	// VersionTTL caches the latest version between lookups. Zero disables
	// caching.
	VersionTTL time.Duration

	mu       sync.Mutex
	cached   string
	cachedAt time.Time
	now      func() time.Time
}

func New(t *standalone.Transformer, resolver *targets.Resolver, checker VersionChecker, user, pass string) *Server {
	return &Server{
		Transformer: t,
		Resolver:    resolver,
		Checker:     checker,
		Metrics:     metrics.New(),
		Log:         logrus.StandardLogger(),
		Engine:      "esbuild",
		Username:    user,
		Password:    pass,
		VersionTTL:  10 * time.Minute,
	}
}

// Handler returns the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	if s.Metrics == nil {
		s.Metrics = metrics.New()
	}
	mux := http.NewServeMux()
	route := func(pattern, name string, h http.HandlerFunc) {
		mux.Handle(pattern, s.Metrics.Instrument(name, s.withRequestID(h)))
	}

	route("GET /latest-babel-version", "/latest-babel-version", s.handleLatestVersion)
	route("POST /api/transform", "/api/transform", s.basicAuth(s.handleTransform))
	route("POST /api/minify", "/api/minify", s.basicAuth(s.handleMinify))
	route("POST /api/targets", "/api/targets", s.basicAuth(s.handleTargets))
	route("GET /api/registry", "/api/registry", s.basicAuth(s.handleRegistry))
	route("GET /api/history", "/api/history", s.basicAuth(s.handleHistory))
	mux.Handle("GET /metrics", s.basicAuthHandler(s.Metrics.Handler()))
	return mux
}

func (s *Server) Start(addr string) error {
	s.logger().Infof("Starting server on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) logger() *logrus.Logger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}

type ctxKey struct{}

// withRequestID tags the request with an id, echoed in X-Request-Id and
// attached to log lines.
func (s *Server) withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		entry := s.logger().WithFields(logrus.Fields{"request_id": id, "path": r.URL.Path})
		entry.Debugf("%s %s", r.Method, r.URL.Path)
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, entry)))
	}
}

func (s *Server) requestLog(r *http.Request) *logrus.Entry {
	if e, ok := r.Context().Value(ctxKey{}).(*logrus.Entry); ok {
		return e
	}
	return logrus.NewEntry(s.logger())
}

func (s *Server) authorized(r *http.Request) bool {
	if s.Username == "" && s.Password == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	return ok && user == s.Username && pass == s.Password
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			s.Metrics.IncAuthFailures()
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) basicAuthHandler(next http.Handler) http.Handler {
	return s.basicAuth(next.ServeHTTP)
}
