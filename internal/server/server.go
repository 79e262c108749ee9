// Package server implements the proxy's HTTP front end: routing,
// CORS-preflight termination, and the lifecycle (start/stop) around the
// single ProxyPipeline every /proxy request is dispatched to.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/vshong/cacheproxy/internal/cache"
	"github.com/vshong/cacheproxy/internal/config"
	"github.com/vshong/cacheproxy/internal/logging"
	"github.com/vshong/cacheproxy/internal/pipeline"
)

// ProxyServer owns one LRUCache and one ProxyPipeline and routes HTTP
// requests to them per the proxy's fixed routing table.
type ProxyServer struct {
	cfg      *config.Config
	cache    *cache.LRUCache
	pipeline *pipeline.Pipeline

	httpSrv *http.Server
	running atomic.Bool
}

// New builds a ProxyServer. cfg, c and p are constructed once by the
// caller (cmd/cacheproxy) and passed in by reference, never looked up
// through a package-level variable — this keeps the server testable
// with independent, parallel instances.
func New(cfg *config.Config, c *cache.LRUCache, p *pipeline.Pipeline) *ProxyServer {
	return &ProxyServer{cfg: cfg, cache: c, pipeline: p}
}

// Handler builds the proxy's http.Handler: CORS termination wrapping a
// mux with the four named routes plus the 404 catch-all.
func (s *ProxyServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/favicon.ico", s.handleFavicon)
	mux.HandleFunc("/proxy", s.handleProxy)
	return s.withCORS(mux)
}

// withCORS applies the proxy's fixed CORS header set to every response,
// terminates OPTIONS preflight requests before they reach routing, and
// recovers per-request panics into a 500 when headers haven't been sent.
func (s *ProxyServer) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.cfg.CORSOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Accept, Content-Type, Origin")
		h.Set("Access-Control-Expose-Headers", "X-Cache, X-Cache-Lookup")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		tw := &trackingWriter{ResponseWriter: w}
		defer func() {
			if rec := recover(); rec != nil {
				logging.Errorf("panic handling %s %s: %v", r.Method, r.URL.Path, rec)
				if !tw.wroteHeader {
					pipeline.WriteError(tw, pipeline.Internal("Internal Server Error"))
				}
			}
		}()
		next.ServeHTTP(tw, r)
	})
}

// trackingWriter records whether a response has already started being
// written, so the panic recovery above never double-writes headers.
type trackingWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (t *trackingWriter) WriteHeader(code int) {
	t.wroteHeader = true
	t.ResponseWriter.WriteHeader(code)
}

func (t *trackingWriter) Write(b []byte) (int, error) {
	t.wroteHeader = true
	return t.ResponseWriter.Write(b)
}

func (s *ProxyServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		pipeline.WriteError(w, pipeline.NotFound("Not Found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Proxy server is running",
		"status":  "ok",
	})
}

func (s *ProxyServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := "Connected"
	if !s.isRunning() {
		status = "Disconnected"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    status,
		"port":      s.cfg.Port,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *ProxyServer) handleFavicon(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *ProxyServer) handleProxy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		pipeline.WriteError(w, pipeline.NotFound("Not Found"))
		return
	}
	s.pipeline.Handle(w, r)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *ProxyServer) isRunning() bool { return s.running.Load() }

// Start binds addr and begins accepting connections in the background.
func (s *ProxyServer) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.httpSrv = &http.Server{Handler: s.Handler()}
	s.running.Store(true)
	logging.Infof("proxy listening on %s", ln.Addr())

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logging.Errorf("proxy server error: %v", err)
		}
	}()

	return nil
}

// Stop refuses new connections, drains in-flight ones, and marks the
// server not-running.
func (s *ProxyServer) Stop(ctx context.Context) error {
	s.running.Store(false)
	if s.httpSrv == nil {
		return nil
	}
	logging.Info("proxy server draining")
	err := s.httpSrv.Shutdown(ctx)
	logging.Info("proxy server stopped")
	return err
}
