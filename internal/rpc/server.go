// Package rpc exposes the trust core to the desktop frontend as JSON-RPC
// 2.0 over localhost HTTP, with token auth, per-caller rate limiting and
// Prometheus metrics.
package rpc

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"promptpilot/trustd/internal/config"
	"promptpilot/trustd/internal/trustcore"
)

const DefaultAddr = "127.0.0.1:8790"

type Server struct {
	httpServer   *http.Server
	service      *trustcore.Service
	initErr      error
	token        string
	requireToken bool
	limiter      *rateLimiter
}

func NewServer(addr string, svc *trustcore.Service, rl config.RateLimitConfig) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	requireToken := requiresToken()
	token := strings.TrimSpace(os.Getenv("TRUSTD_RPC_TOKEN"))
	if requireToken && token == "" {
		return &Server{initErr: errors.New("TRUSTD_RPC_TOKEN is required unless TRUSTD_REQUIRE_RPC_TOKEN=false or TRUSTD_ENV is test/development/local")}
	}

	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		service:      svc,
		token:        token,
		requireToken: requireToken,
		limiter:      newRateLimiter(rl),
	}
	if s.token == "" {
		slog.Default().Warn("TRUSTD_RPC_TOKEN is not set; RPC auth disabled")
	}
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/rpc", s.handleRPC)
	mux.Handle("/metrics", promhttp.Handler())
	return s
}

func (s *Server) Run(ctx context.Context) error {
	if s.initErr != nil {
		return s.initErr
	}
	select {
	case <-ctx.Done():
		return nil
	default:
	}

	errCh := make(chan error, 1)
	go func() {
		err := s.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
			return
		}
		errCh <- err
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func (s *Server) HandleRPC(w http.ResponseWriter, r *http.Request) {
	s.handleRPC(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) authorizeRPC(w http.ResponseWriter, r *http.Request) bool {
	presented := bearerToken(r)
	if s.token != "" {
		if subtle.ConstantTimeCompare([]byte(presented), []byte(s.token)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return false
		}
	}
	if !s.limiter.allow(limitKey(r, presented), time.Now()) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return false
	}
	return true
}

func bearerToken(r *http.Request) string {
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		if strings.HasPrefix(header, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		}
	}
	return strings.TrimSpace(r.Header.Get("X-Trustd-Token"))
}

func requiresToken() bool {
	if raw := strings.TrimSpace(os.Getenv("TRUSTD_REQUIRE_RPC_TOKEN")); raw != "" {
		switch strings.ToLower(raw) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("TRUSTD_ENV"))) {
	case "test", "testing", "dev", "development", "local":
		return false
	default:
		return true
	}
}
