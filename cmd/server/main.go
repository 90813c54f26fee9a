package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/anurisatria/assignd/internal/api"
	"github.com/anurisatria/assignd/internal/automation"
	"github.com/anurisatria/assignd/internal/config"
	"github.com/anurisatria/assignd/internal/jobs"
	"github.com/anurisatria/assignd/internal/notify"
	"github.com/anurisatria/assignd/internal/orchestrator"
	"github.com/anurisatria/assignd/internal/planner"
	"github.com/anurisatria/assignd/internal/policy"
	"github.com/anurisatria/assignd/internal/rules"
	"github.com/anurisatria/assignd/internal/store"
	"github.com/anurisatria/assignd/internal/telemetry"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("validate config")
	}

	config.SetupLogging(cfg.LogLevel)
	telemetry.Init()

	ctx := context.Background()

	// Rule layers: compiled-in defaults plus the configured user rule backend.
	ruleSource, err := store.NewRuleSource(ctx, cfg.RuleSource, cfg.RulesFile, cfg.DatabaseDSN, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("open rule source")
	}
	defer ruleSource.Close()

	policyCtx := policy.NewContext(store.DefaultRules(cfg.Env))
	userRules, err := ruleSource.UserRules(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load user rules")
	}
	policyCtx.ReplaceUserRules(userRules)
	ruleSource.Watch(func(rs []rules.Rule) {
		policyCtx.ReplaceUserRules(rs)
		log.Info().Int("rules", len(rs)).Msg("user rules reloaded")
	})

	jobStore, err := jobs.NewStore(cfg.JobStore, filepath.Join(cfg.JobStoreDir, "jobs.db"), cfg.JobRetention, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("open job store")
	}
	defer jobStore.Close()

	browser, err := automation.NewBrowser(automation.Config{
		LoginURL:        cfg.LoginURL,
		CampaignBaseURL: cfg.CampaignBaseURL,
		Email:           cfg.Email,
		Password:        cfg.Password,
		Headless:        cfg.Headless,
	}, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("launch browser")
	}
	defer browser.Close()

	notifier := notify.NewNotifier(cfg.WebhookURL, cfg.WebhookKey, log.Logger)
	defer notifier.Close()

	p := planner.New(policy.NewEngine(policyCtx, log.Logger))
	runner := orchestrator.NewRunner(orchestrator.Config{
		Env:           cfg.Env,
		MaxWorkers:    cfg.MaxWorkers,
		CampaignDelay: cfg.CampaignDelay,
		RetryMax:      cfg.RetryMax,
		RunTimeout:    cfg.RunTimeout,
	}, p, jobStore, browser, notifier, log.Logger)

	srvAPI := api.NewServer(cfg, policyCtx, p, runner, jobStore, ruleSource, version, log.Logger)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srvAPI.Router(),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("env", cfg.Env).Msg("listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctxShut, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShut)
	_ = metricsSrv.Shutdown(ctxShut)
	log.Info().Msg("stopped")
}
