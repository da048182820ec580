package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sw33tLie/jsenv/pkg/errs"
	"github.com/sw33tLie/jsenv/pkg/registry"
	"github.com/sw33tLie/jsenv/pkg/standalone"
	"github.com/sw33tLie/jsenv/pkg/storage"
	"github.com/sw33tLie/jsenv/pkg/targets"
)

const maxJSONBodyBytes = 5 << 20

var errJSONBodyTooLarge = errors.New("json request body too large")

func (s *Server) handleLatestVersion(w http.ResponseWriter, r *http.Request) {
	version, err := s.latestVersion(r.Context())
	if err != nil {
		s.requestLog(r).Errorf("latest version lookup: %v", err)
		http.Error(w, "could not determine the latest Babel version", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, version)
}

func (s *Server) latestVersion(ctx context.Context) (string, error) {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	s.mu.Lock()
	if s.cached != "" && s.VersionTTL > 0 && now().Sub(s.cachedAt) < s.VersionTTL {
		version := s.cached
		s.mu.Unlock()
		return version, nil
	}
	s.mu.Unlock()

	// The lookup runs unlocked; concurrent misses may each query npm.
	version, err := s.Checker.Latest(ctx)
	s.Metrics.RecordVersionCheck(version, err)
	if err != nil {
		return "", err
	}
	checkedAt := now()
	s.mu.Lock()
	s.cached, s.cachedAt = version, checkedAt
	s.mu.Unlock()

	if s.History != nil {
		if _, herr := s.History.RecordCheck(ctx, storage.Check{CheckedAt: checkedAt, Package: "babel-standalone", LatestVersion: version}); herr != nil {
			s.logger().Warnf("Could not record version check: %v", herr)
		}
	}
	return version, nil
}

type transformRequest struct {
	Code    string                 `json:"code"`
	Options map[string]interface{} `json:"options"`
}

type transformResponse struct {
	Code      string   `json:"code"`
	Map       string   `json:"map,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
	Polyfills []string `json:"polyfills,omitempty"`
}

func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	var req transformRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeJSONDecodeError(w, err)
		return
	}
	opts, err := standalone.DecodeOptions(req.Options)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	start := time.Now()
	res, err := s.Transformer.Transform(r.Context(), req.Code, opts)
	s.Metrics.RecordTransform(s.Engine, err, time.Since(start))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := transformResponse{Code: res.Code, Map: res.Map, Polyfills: res.Polyfills}
	for _, m := range res.Warnings {
		out.Warnings = append(out.Warnings, m.String())
	}
	writeJSON(w, http.StatusOK, out)
}

type minifyRequest struct {
	Code     string `json:"code"`
	Filename string `json:"filename"`
}

func (s *Server) handleMinify(w http.ResponseWriter, r *http.Request) {
	var req minifyRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeJSONDecodeError(w, err)
		return
	}
	start := time.Now()
	res, err := s.Transformer.Minify(r.Context(), req.Code, req.Filename)
	s.Metrics.RecordTransform(s.Engine+"-minify", err, time.Since(start))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transformResponse{Code: res.Code, Map: res.Map})
}

func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request) {
	var raw map[string]interface{}
	if err := decodeJSONBody(w, r, &raw); err != nil {
		writeJSONDecodeError(w, err)
		return
	}
	spec, err := targets.DecodeSpec(raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resolved, err := s.Resolver.Resolve(spec)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make(map[string]string, len(resolved))
	for name, v := range resolved {
		out[name] = v.String()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"targets": out})
}

func (s *Server) handleRegistry(w http.ResponseWriter, r *http.Request) {
	reg := s.Transformer.Registry
	writeJSON(w, http.StatusOK, map[string][]string{
		"presets": reg.Names(registry.KindPreset),
		"plugins": reg.Names(registry.KindPlugin),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeJSONError(w, http.StatusNotFound, "history is not enabled")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	releases, err := s.History.ListReleases(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	checks, err := s.History.ListChecks(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if releases == nil {
		releases = []storage.Release{}
	}
	if checks == nil {
		checks = []storage.Check{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"releases": releases, "checks": checks})
}

// writeError maps the error taxonomy onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ce *errs.CompileError
	switch {
	case errs.IsConfiguration(err):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &ce):
		msgs := make([]string, len(ce.Messages))
		for i, m := range ce.Messages {
			msgs[i] = m.String()
		}
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{"error": err.Error(), "messages": msgs})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.requestLog(r).Errorf("%v", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSONDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errJSONBodyTooLarge) {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return io.EOF
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)).Decode(dst)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errJSONBodyTooLarge
	}
	return err
}
