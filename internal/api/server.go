// Package api exposes the HTTP surface: starting runs, previewing plans,
// inspecting jobs and replacing the user rule layer.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/anurisatria/assignd/internal/config"
	"github.com/anurisatria/assignd/internal/jobs"
	"github.com/anurisatria/assignd/internal/orchestrator"
	"github.com/anurisatria/assignd/internal/planner"
	"github.com/anurisatria/assignd/internal/policy"
	"github.com/anurisatria/assignd/internal/store"
	"github.com/anurisatria/assignd/internal/telemetry"
)

type Server struct {
	cfg       *config.Config
	policyCtx *policy.Context
	planner   *planner.Planner
	runner    *orchestrator.Runner
	jobs      jobs.Store
	rules     store.RuleSource
	version   string
	log       zerolog.Logger
}

func NewServer(cfg *config.Config, policyCtx *policy.Context, p *planner.Planner, runner *orchestrator.Runner, jobStore jobs.Store, ruleSource store.RuleSource, version string, log zerolog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		policyCtx: policyCtx,
		planner:   p,
		runner:    runner,
		jobs:      jobStore,
		rules:     ruleSource,
		version:   version,
		log:       log.With().Str("component", "api").Logger(),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(telemetry.Middleware)
	r.Use(httprate.LimitByIP(s.cfg.RateLimitPerIP, time.Minute))
	r.Use(middleware.Timeout(30 * time.Second))

	// health
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", s.handleVersion)
		r.Get("/config", s.handleConfig)
		r.Get("/admin-restrictions", s.handleAdminRestrictions)

		r.Post("/run", s.handleRun)
		r.Post("/check-plan", s.handleCheckPlan)

		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{jobID}", s.handleJobStatus)
		r.Get("/jobs/{jobID}/logs", s.handleJobLogs)
		r.Post("/jobs/{jobID}/cancel", s.handleCancelJob)

		// legacy aliases kept for existing callers
		r.Get("/status/{jobID}", s.handleJobStatus)
		r.Get("/logs/{jobID}", s.handleJobLogs)

		// admin (protected): replace the user rule layer
		r.Put("/rules/user", s.authAdmin(s.handleReplaceUserRules))
	})

	return r
}

// ---- middleware ----

func (s *Server) authAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer"))
		if got == "" {
			UnauthorizedError(w, r, "missing bearer token")
			return
		}
		// constant-time compare
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.AdminAPIKey)) != 1 {
			ForbiddenError(w, r, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	}
}
