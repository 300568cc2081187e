// Package api serves enrichment, bulk tiering and stored results over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/pharma-enrich/internal/enrich"
	"github.com/sells-group/pharma-enrich/internal/model"
	"github.com/sells-group/pharma-enrich/internal/monitoring"
	"github.com/sells-group/pharma-enrich/internal/store"
	"github.com/sells-group/pharma-enrich/internal/tiering"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "pharma-enrichment-api"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 10 << 20

// Enricher enriches a single company.
type Enricher interface {
	Enrich(ctx context.Context, companyName string) (model.FactRecord, error)
	Adapters() []string
}

// BulkRunner enriches and tiers a batch of companies.
type BulkRunner interface {
	Run(ctx context.Context, companies []model.Company, productsByName map[string][]model.Product) ([]model.BulkResult, error)
}

// Deps are the collaborators of the HTTP API. Store and Metrics are optional.
type Deps struct {
	Enricher      Enricher
	Runner        BulkRunner
	Store         store.Store
	Metrics       *monitoring.Metrics
	Thresholds    tiering.Thresholds
	UpcomingRatio float64
	CORSOrigins   []string
}

type server struct {
	Deps
}

// NewRouter builds the chi router for the API.
func NewRouter(deps Deps) http.Handler {
	s := &server{Deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(s.instrument)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/enrich", s.handleEnrich)
	r.Post("/enrich/bulk", s.handleBulk)
	r.Get("/tiers", s.handleTiers)
	r.Get("/results", s.handleListResults)
	r.Get("/results/{companyID}", s.handleGetResult)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	return r
}

// instrument records request counts and latency per route pattern.
func (s *server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.Metrics.ObserveHTTP(r.Method, route, status, time.Since(start))

		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Pharma Enrichment API is running"})
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"service":  ServiceName,
		"adapters": s.Enricher.Adapters(),
	})
}

type enrichRequest struct {
	CompanyName string `json:"company_name"`
}

func (s *server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	var req enrichRequest
	if !decodeBody(w, r, &req) {
		return
	}
	// Seed membership is an exact match, so the name is used as sent.
	name := req.CompanyName
	if strings.TrimSpace(name) == "" {
		writeError(w, http.StatusUnprocessableEntity, "company_name is required")
		return
	}

	rec, err := s.Enricher.Enrich(r.Context(), name)
	if err != nil {
		if errors.Is(err, enrich.ErrEmptyName) {
			writeError(w, http.StatusUnprocessableEntity, "company_name is required")
			return
		}
		zap.L().Error("api: enrich failed", zap.String("company", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Enrichment failed: "+err.Error())
		return
	}

	out := rec.ToMap()
	out["company_name"] = name
	writeJSON(w, http.StatusOK, out)
}

type bulkRequest struct {
	Companies         []model.Company            `json:"companies"`
	ProductsByCompany map[string][]model.Product `json:"products_by_company"`
}

func (s *server) handleBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if !decodeBody(w, r, &req) {
		return
	}
	for i, c := range req.Companies {
		if strings.TrimSpace(c.CanonicalName) == "" {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("companies[%d].canonical_name is required", i))
			return
		}
	}

	results, err := s.Runner.Run(r.Context(), req.Companies, req.ProductsByCompany)
	if err != nil && results == nil {
		zap.L().Error("api: bulk run failed", zap.Int("companies", len(req.Companies)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Bulk enrichment failed: "+err.Error())
		return
	}
	if err != nil {
		// Results were computed but could not be persisted.
		zap.L().Warn("api: bulk results not saved", zap.Error(err))
	}

	payload := make([]map[string]any, len(results))
	for i, res := range results {
		payload[i] = res.ToMap()
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": payload})
}

func (s *server) handleTiers(w http.ResponseWriter, _ *http.Request) {
	tiers := make(map[string]string, len(model.Tiers()))
	order := make([]string, 0, len(model.Tiers()))
	for _, t := range model.Tiers() {
		tiers[string(t)] = t.Description()
		order = append(order, string(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tiers": tiers,
		"order": order,
		"thresholds": map[string]float64{
			"top_ta_share_threshold":   s.Thresholds.TopTAShare,
			"platform_share_threshold": s.Thresholds.PlatformShare,
			"upcoming_ratio":           s.UpcomingRatio,
		},
	})
}

func (s *server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "result store is not configured")
		return
	}

	companyID := chi.URLParam(r, "companyID")
	res, err := s.Store.GetResult(r.Context(), companyID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no result for company "+companyID)
		return
	}
	if err != nil {
		zap.L().Error("api: get result failed", zap.String("company_id", companyID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load result")
		return
	}

	writeJSON(w, http.StatusOK, storedPayload(*res))
}

func (s *server) handleListResults(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "result store is not configured")
		return
	}

	filter := store.ResultFilter{
		Limit:  atoiOr(r.URL.Query().Get("limit"), 0),
		Offset: atoiOr(r.URL.Query().Get("offset"), 0),
	}
	if t := r.URL.Query().Get("tier"); t != "" {
		tier, err := model.ParseTier(t)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Tier = tier
	}

	list, err := s.Store.ListResults(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list results failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list results")
		return
	}

	payload := make([]map[string]any, len(list))
	for i, res := range list {
		payload[i] = storedPayload(res)
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": payload})
}

func storedPayload(res store.StoredResult) map[string]any {
	m := res.Result.ToMap()
	m["run_id"] = res.RunID
	m["updated_at"] = res.UpdatedAt.UTC().Format(time.RFC3339)
	return m
}
