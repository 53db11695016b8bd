// Package http exposes the ledger over a JSON API. Handlers translate wire
// requests into service calls and error kinds into status codes; all
// invariants live in the services layer.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"moneyledger/internal/auth"
	"moneyledger/internal/services"
)

type Server struct {
	http.Server
	auth   *auth.Service
	ledger *services.AccountLedger
	engine *services.TransactionEngine

	limiter      *rateLimiter
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, authSvc *auth.Service, ledger *services.AccountLedger, engine *services.TransactionEngine) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		auth:    authSvc,
		ledger:  ledger,
		engine:  engine,
		limiter: newRateLimiter(),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/v1/auth/register", s.withRequestLog(s.withRateLimit(s.handleRegister)))
	mux.HandleFunc("POST /api/v1/auth/login", s.withRequestLog(s.withRateLimit(s.handleLogin)))
	mux.HandleFunc("POST /api/v1/auth/logout", s.withRequestLog(s.handleLogout))

	mux.HandleFunc("POST /api/v1/accounts", s.protected(s.handleCreateAccount))
	mux.HandleFunc("GET /api/v1/accounts", s.protected(s.handleListAccounts))
	mux.HandleFunc("POST /api/v1/accounts/transfer", s.protected(s.handleTransfer))

	mux.HandleFunc("POST /api/v1/transactions", s.protected(s.handleCreateTransaction))
	mux.HandleFunc("GET /api/v1/transactions", s.protected(s.handleListTransactions))
	mux.HandleFunc("PUT /api/v1/transactions/{id}", s.protected(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/v1/transactions/{id}", s.protected(s.handleDeleteTransaction))
	mux.HandleFunc("POST /api/v1/transactions/{id}/restore", s.protected(s.handleRestoreTransaction))
	mux.HandleFunc("GET /api/v1/transactions/trash", s.protected(s.handleTrash))
	mux.HandleFunc("GET /api/v1/transactions/summary", s.protected(s.handleSummary))
	mux.HandleFunc("GET /api/v1/transactions/summary/{period}", s.protected(s.handleSummaryByPeriod))
	mux.HandleFunc("GET /api/v1/transactions/division/{division}", s.protected(s.handleByDivision))
	mux.HandleFunc("GET /api/v1/transactions/range", s.protected(s.handleRange))
	mux.HandleFunc("GET /api/v1/transactions/report", s.protected(s.handleReport))
	mux.HandleFunc("GET /api/v1/transactions/categories", s.protected(s.handleCategories))
	mux.HandleFunc("GET /api/v1/transactions/page", s.protected(s.handlePage))

	return s
}

// protected chains request logging and bearer authentication.
func (s *Server) protected(next ownerHandler) http.HandlerFunc {
	return s.withRequestLog(s.withAuth(next))
}

// withRequestLog tags each request with an id and logs start and completion
// with method, path, status and duration.
func (s *Server) withRequestLog(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		level := slog.LevelInfo
		if rw.statusCode >= 500 {
			level = slog.LevelError
		} else if rw.statusCode >= 400 {
			level = slog.LevelWarn
		}
		slog.Log(ctx, level, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds())
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
