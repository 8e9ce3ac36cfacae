// Package http exposes the application over a JSON REST API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tabmates/tabmates/internal/engine"
	"github.com/tabmates/tabmates/internal/scheduler"
	"github.com/tabmates/tabmates/internal/service"
)

// Server wires the services into an http.Server with routing, logging,
// and CORS.
type Server struct {
	http.Server

	groups      *service.GroupService
	expenses    *service.ExpenseService
	settlements *service.SettlementService
	bills       *service.BillService
	engine      *engine.Engine
	sched       *scheduler.Scheduler
	logger      *slog.Logger
}

// NewServer configures routes and middleware, returning a ready-to-run
// server. The handler is exposed via the embedded http.Server; callers
// may re-wrap it (e.g. with h2c) before serving.
func NewServer(
	addr string,
	groups *service.GroupService,
	expenses *service.ExpenseService,
	settlements *service.SettlementService,
	bills *service.BillService,
	eng *engine.Engine,
	sched *scheduler.Scheduler,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		groups:      groups,
		expenses:    expenses,
		settlements: settlements,
		bills:       bills,
		engine:      eng,
		sched:       sched,
		logger:      logger,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /stats", s.handleStats)

	mux.HandleFunc("POST /groups", s.handleCreateGroup)
	mux.HandleFunc("GET /groups", s.handleListGroups)
	mux.HandleFunc("GET /groups/{id}", s.handleGetGroup)
	mux.HandleFunc("PUT /groups/{id}", s.handleUpdateGroup)
	mux.HandleFunc("GET /groups/{id}/expenses", s.handleListExpenses)
	mux.HandleFunc("GET /groups/{id}/settlements", s.handleListSettlements)
	mux.HandleFunc("GET /groups/{id}/balances", s.handleBalances)
	mux.HandleFunc("POST /groups/{id}/recalculate", s.handleRecalculate)

	mux.HandleFunc("POST /expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /expenses/{id}", s.handleGetExpense)
	mux.HandleFunc("PUT /expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /expenses/{id}", s.handleDeleteExpense)

	mux.HandleFunc("PUT /settlements/{id}/status", s.handleUpdateSettlementStatus)

	mux.HandleFunc("POST /bills", s.handleCreateBill)
	mux.HandleFunc("GET /bills/{id}", s.handleGetBill)
	mux.HandleFunc("POST /bills/{id}/settle", s.handleSettleBill)

	s.Server.Addr = addr
	s.Server.Handler = s.loggingMiddleware(corsMiddleware(mux))
	s.Server.ReadHeaderTimeout = 10 * time.Second
	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleStats exposes a scheduler snapshot for monitoring.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sched.Statistics())
}

// handleRecalculate forces a synchronous recalculation, bypassing the
// debounce window.
func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	if err := s.sched.ForceRecalculation(r.Context(), groupID, scheduler.ChangeManual); err != nil {
		writeError(w, err)
		return
	}

	settlements, err := s.settlements.ListSettlements(r.Context(), groupID)
	if err != nil {
		writeServerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settlementsToJSON(settlements))
}

// loggingMiddleware logs all incoming requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		s.logger.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Server.Shutdown(ctx)
}
