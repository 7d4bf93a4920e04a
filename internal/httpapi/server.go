package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mtorresco/franchise-expansion/internal/expansion"
	"github.com/mtorresco/franchise-expansion/internal/portfolio"
	"github.com/mtorresco/franchise-expansion/internal/reasoning"
	"github.com/mtorresco/franchise-expansion/internal/resilience"
	"github.com/mtorresco/franchise-expansion/internal/scenario"
)

// Server exposes the expansion planning operations over HTTP.
type Server struct {
	scenarios *scenario.Service
	expander  *expansion.Service
	gatherer  prometheus.Gatherer
	log       zerolog.Logger

	mu      sync.RWMutex
	reports map[string]scenario.Result
}

func NewServer(scenarios *scenario.Service, expander *expansion.Service, gatherer prometheus.Gatherer, log zerolog.Logger) http.Handler {
	s := &Server{
		scenarios: scenarios,
		expander:  expander,
		gatherer:  gatherer,
		log:       log.With().Str("component", "httpapi").Logger(),
		reports:   map[string]scenario.Result{},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/v1/portfolio/optimize", s.handleOptimizePortfolio)
	r.Post("/v1/scenarios/generate", s.handleGenerateScenario)
	r.Post("/v1/scenarios/compare", s.handleCompareScenarios)
	r.Post("/v1/expansion/candidates", s.handleExpansionCandidates)
	r.Get("/v1/scenarios/report", s.handleScenarioReport)
	r.Get("/v1/health", s.handleHealth)
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

type optimizeRequest struct {
	Candidates  []portfolio.Candidate `json:"candidates"`
	Budget      float64               `json:"budget"`
	Strategy    string                `json:"strategy"`
	Constraints portfolio.Constraints `json:"constraints"`
}

func (s *Server) handleOptimizePortfolio(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "request body is not valid JSON")
		return
	}
	res, err := portfolio.Optimize(req.Candidates, portfolio.Config{
		Budget:      req.Budget,
		Strategy:    req.Strategy,
		Constraints: req.Constraints,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type generateScenarioRequest struct {
	Config     scenario.Config       `json:"config"`
	Candidates []portfolio.Candidate `json:"candidates"`
}

func (s *Server) handleGenerateScenario(w http.ResponseWriter, r *http.Request) {
	var req generateScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "request body is not valid JSON")
		return
	}
	res, err := s.scenarios.Generate(r.Context(), req.Config, req.Candidates)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.storeReport(res)
	writeJSON(w, http.StatusOK, res)
}

type compareScenariosRequest struct {
	Configs    []scenario.Config     `json:"configs"`
	Candidates []portfolio.Candidate `json:"candidates"`
}

func (s *Server) handleCompareScenarios(w http.ResponseWriter, r *http.Request) {
	var req compareScenariosRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "request body is not valid JSON")
		return
	}
	res, err := s.scenarios.Compare(r.Context(), req.Configs, req.Candidates)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	for _, sc := range res.Scenarios {
		s.storeReport(sc)
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExpansionCandidates(w http.ResponseWriter, r *http.Request) {
	var req expansion.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "request body is not valid JSON")
		return
	}
	res, err := s.expander.GenerateCandidates(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) storeReport(res scenario.Result) {
	if res.Config.Name == "" {
		return
	}
	s.mu.Lock()
	s.reports[res.Config.Name] = res
	s.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"ok": false,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

// writeDomainError maps the error taxonomy onto HTTP: validation 400,
// circuit open 503, other dependency failures 502.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, portfolio.ErrBudgetRequired),
		errors.Is(err, portfolio.ErrUnknownStrategy),
		errors.Is(err, portfolio.ErrInvalidConstraints),
		errors.Is(err, expansion.ErrRegionFilterRequired),
		errors.Is(err, scenario.ErrNoScenarios):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, resilience.ErrCircuitOpen):
		writeError(w, http.StatusServiceUnavailable, "circuit_open", err.Error())
	default:
		var mErr *reasoning.MalformedResponseError
		if errors.As(err, &mErr) {
			writeError(w, http.StatusBadGateway, "malformed_response", err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, "dependency_failed", err.Error())
	}
}
