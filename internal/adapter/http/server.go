// Package http exposes the settlement operations as a JSON API alongside
// the health, readiness and metrics endpoints.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
	"github.com/couchcryptid/storm-parametric-settlement/internal/oracle"
)

// PolicyService is the policy ledger surface served over HTTP.
type PolicyService interface {
	Quote(coverage decimal.Decimal) (decimal.Decimal, error)
	Create(ctx context.Context, holder string, coverage decimal.Decimal, location string, t domain.DisasterType, paid decimal.Decimal) (uint64, error)
	Get(ctx context.Context, id uint64) (domain.Policy, error)
	ListByHolder(ctx context.Context, holder string) []domain.Policy
	Cancel(ctx context.Context, id uint64, requester string) (decimal.Decimal, error)
}

// EventService is the disaster event registry surface.
type EventService interface {
	Threshold() uint64
	Report(ctx context.Context, reporter, location string, t domain.DisasterType, severity uint64) (uint64, error)
	Attest(ctx context.Context, id uint64, operator string, sig []byte) (domain.AttestationResult, error)
	Get(ctx context.Context, id uint64) (domain.DisasterEvent, error)
	HasAttested(ctx context.Context, id uint64, operator string) (bool, error)
	Attestors(ctx context.Context, id uint64) ([]string, error)
}

// ClaimService settles claims.
type ClaimService interface {
	Process(ctx context.Context, policyID, eventID uint64, requester string) (domain.Payout, error)
	Payouts(ctx context.Context) []domain.Payout
}

// RiskService is the risk scoring engine.
type RiskService interface {
	Calculate(ctx context.Context, location string, t domain.DisasterType) (domain.RiskScore, error)
	Current(ctx context.Context, location string) (domain.RiskScore, error)
	RecordHistoricalEvent(ctx context.Context, location string, t domain.DisasterType, severity uint64, damage decimal.Decimal) domain.HistoricalEvent
	History(ctx context.Context, location string) []domain.HistoricalEvent
}

// ImpactService is the impact prediction engine.
type ImpactService interface {
	Predict(ctx context.Context, location string, t domain.DisasterType, severity uint64, w domain.WeatherData) (domain.ImpactPrediction, error)
	History(ctx context.Context, location string, limit int) []domain.ImpactPrediction
}

// WeatherUpdater accepts oracle observations. Only the in-memory oracle
// table implements it.
type WeatherUpdater interface {
	Update(ctx context.Context, location string, w domain.WeatherData) domain.WeatherData
}

// NotificationLog lists journaled notifications.
type NotificationLog interface {
	List(ctx context.Context, f domain.NotificationFilter) ([]domain.Notification, error)
}

// BalanceFunc reports the treasury balance.
type BalanceFunc func(ctx context.Context) (decimal.Decimal, error)

// Deps are the services the API routes to. Weather updates, the journal and
// the treasury balance are optional; their routes answer 404 when unset.
type Deps struct {
	Policies PolicyService
	Events   EventService
	Claims   ClaimService
	Risk     RiskService
	Impact   ImpactService
	Weather  domain.WeatherFeed
	Updater  WeatherUpdater
	Reviewer oracle.ClaimReviewer
	Fraud    oracle.FraudAnalyzer
	Journal  NotificationLog
	Balance  BalanceFunc
	Ready    sharedobs.ReadinessChecker
}

// Server exposes the API plus /healthz, /readyz and /metrics.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger
}

// NewServer creates an HTTP server with every API route registered.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	if deps.Ready == nil {
		deps.Ready = ReadinessChecks{}
	}

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		deps:   deps,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(deps.Ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/policies/quote", s.handleQuote)
	mux.HandleFunc("POST /v1/policies", s.handleCreatePolicy)
	mux.HandleFunc("GET /v1/policies", s.handleListPolicies)
	mux.HandleFunc("GET /v1/policies/{id}", s.handleGetPolicy)
	mux.HandleFunc("POST /v1/policies/{id}/cancel", s.handleCancelPolicy)

	mux.HandleFunc("POST /v1/events", s.handleReportEvent)
	mux.HandleFunc("GET /v1/events/{id}", s.handleGetEvent)
	mux.HandleFunc("POST /v1/events/{id}/attestations", s.handleAttest)
	mux.HandleFunc("GET /v1/events/{id}/attestations/{operator}", s.handleHasAttested)

	mux.HandleFunc("POST /v1/claims", s.handleProcessClaim)
	mux.HandleFunc("GET /v1/claims", s.handleListPayouts)
	mux.HandleFunc("POST /v1/claims/review", s.handleReviewClaim)
	mux.HandleFunc("POST /v1/claims/fraud", s.handleAnalyzeClaim)

	mux.HandleFunc("POST /v1/risk/calculate", s.handleCalculateRisk)
	mux.HandleFunc("GET /v1/risk", s.handleCurrentRisk)
	mux.HandleFunc("POST /v1/risk/history", s.handleRecordHistory)
	mux.HandleFunc("GET /v1/risk/history", s.handleRiskHistory)

	mux.HandleFunc("POST /v1/impact", s.handlePredictImpact)
	mux.HandleFunc("GET /v1/impact/history", s.handleImpactHistory)

	mux.HandleFunc("PUT /v1/weather", s.handleUpdateWeather)
	mux.HandleFunc("GET /v1/weather", s.handleGetWeather)

	mux.HandleFunc("GET /v1/notifications", s.handleListNotifications)
	mux.HandleFunc("GET /v1/treasury", s.handleTreasury)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// ReadinessChecks is ready when every check is.
type ReadinessChecks []sharedobs.ReadinessChecker

func (rc ReadinessChecks) CheckReadiness(ctx context.Context) error {
	var errs []error
	for _, c := range rc {
		if err := c.CheckReadiness(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReadinessFunc adapts a function to a readiness check.
type ReadinessFunc func(ctx context.Context) error

func (f ReadinessFunc) CheckReadiness(ctx context.Context) error { return f(ctx) }
