// Package server exposes the ledger operations over HTTP
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"exchange-ledger-go/internal/api"
	"exchange-ledger-go/internal/metrics"
	"exchange-ledger-go/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	svc    *api.LedgerService
	cfg    models.HTTPConfig
	router chi.Router
}

func New(svc *api.LedgerService, cfg models.HTTPConfig) *Server {
	s := &Server{svc: svc, cfg: cfg}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(instrument)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/v1/users", s.handleRegister)

	r.Group(func(r chi.Router) {
		r.Use(authenticate(s.cfg.JWTSecret))

		r.Get("/v1/balances", s.handleBalances)
		r.Get("/v1/balances/{currency}", s.handleBalance)
		r.Get("/v1/portfolio", s.handlePortfolio)
		r.Get("/v1/transactions", s.handleHistory)

		r.Post("/v1/transfers", s.handleTransfer)
		r.Post("/v1/conversions", s.handleConvert)
		r.Post("/v1/payments", s.handlePay)

		r.Get("/v1/deposit-address", s.handleDepositAddress)
		r.Post("/v1/deposits", s.handleSubmitDeposit)
		r.Post("/v1/withdrawals", s.handleRequestWithdrawal)
		r.Post("/v1/pin", s.handleSetPin)

		r.Get("/v1/orders", s.handleListOrders)
		r.Post("/v1/orders", s.handlePlaceOrder)
		r.Delete("/v1/orders/{id}", s.handleCancelOrder)

		r.Get("/v1/signals", s.handleListSignals)
		r.Post("/v1/signals/{id}/follow", s.handleFollowSignal)
		r.Get("/v1/positions", s.handleListPositions)
		r.Post("/v1/positions/{id}/close", s.handleClosePosition)

		r.Route("/v1/admin", func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/pending", s.handleListPending)
			r.Post("/deposits/{id}/approve", s.handleApproveDeposit)
			r.Post("/deposits/{id}/reject", s.handleRejectDeposit)
			r.Post("/withdrawals/{id}/approve", s.handleApproveWithdrawal)
			r.Post("/withdrawals/{id}/reject", s.handleRejectWithdrawal)
			r.Post("/signals", s.handleCreateSignal)
			r.Post("/signals/{id}/deactivate", s.handleDeactivateSignal)
			r.Post("/signals/{id}/resolve", s.handleResolveSignal)
			r.Post("/users/{id}/verify", s.handleVerifyUser)
		})
	})

	return r
}

// ListenAndServe serves until ctx is canceled, then drains in-flight requests
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("HTTP server listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	zap.L().Info("Shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}

// instrument tags the request context with its origin and counts responses by route
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := models.WithOrigin(r.Context(), &models.Origin{
			RequestId: middleware.GetReqID(r.Context()),
			Source:    "http",
		})
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}

// statusFor maps an operation result code to an HTTP status
func statusFor(code string) int {
	switch code {
	case "":
		return http.StatusOK
	case models.CodeInvalidInput:
		return http.StatusBadRequest
	case models.CodeUnauthorized:
		return http.StatusForbidden
	case models.CodeNotFound:
		return http.StatusNotFound
	case models.CodeInsufficientFunds:
		return http.StatusUnprocessableEntity
	case models.CodeInvalidState, models.CodeDuplicate, models.CodeDuplicatePosition, models.CodeConflict:
		return http.StatusConflict
	case models.CodeRateUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("Failed to write response", zap.Error(err))
	}
}

func writeResult(w http.ResponseWriter, result *models.OperationResult) {
	writeJSON(w, statusFor(result.Code), result)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, &models.OperationResult{Success: false, Code: code, Message: message})
}
