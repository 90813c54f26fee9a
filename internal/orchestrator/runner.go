// Package orchestrator executes automation runs: it turns a cohort and a
// time-of-day slot into campaign groups, drives browser workers over them and
// keeps the job record current.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/anurisatria/assignd/internal/automation"
	"github.com/anurisatria/assignd/internal/config"
	"github.com/anurisatria/assignd/internal/jobs"
	"github.com/anurisatria/assignd/internal/planner"
	"github.com/anurisatria/assignd/internal/rules"
	"github.com/anurisatria/assignd/internal/telemetry"
)

// Notifier receives the run-completion notification. Delivery is best-effort
// and must never influence the job result.
type Notifier interface {
	Notify(admins []string, timeOfDay string)
}

// Config are the execution knobs for one Runner.
type Config struct {
	Env           string
	MaxWorkers    int
	CampaignDelay time.Duration
	RetryMax      int
	RunTimeout    time.Duration
}

// Runner owns automation runs from job creation to the terminal status.
type Runner struct {
	cfg       Config
	planner   *planner.Planner
	store     jobs.Store
	automator automation.Automator
	notifier  Notifier
	log       zerolog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewRunner wires an orchestrator.
func NewRunner(cfg Config, p *planner.Planner, store jobs.Store, auto automation.Automator, notifier Notifier, log zerolog.Logger) *Runner {
	if cfg.MaxWorkers < 1 {
		cfg.MaxWorkers = 1
	}
	return &Runner{
		cfg:       cfg,
		planner:   p,
		store:     store,
		automator: auto,
		notifier:  notifier,
		log:       log.With().Str("component", "orchestrator").Logger(),
		cancels:   make(map[string]context.CancelFunc),
	}
}

// Run creates the job record and starts the run in the background. The job id
// is returned immediately; progress is observable through the job store.
func (r *Runner) Run(payloads []rules.AdminPayload, timeOfDay string, selections jobs.CampaignSelections, exemption rules.ExemptionSettings) (string, error) {
	now := time.Now()
	names := cohortNames(payloads)
	job := &jobs.Job{
		ID:                 jobs.NewID(),
		Status:             jobs.StatusRunning,
		Message:            "Automation started",
		StartTime:          now,
		AdminPayloads:      payloads,
		TimeOfDay:          timeOfDay,
		CampaignSelections: selections,
		Exemption:          exemption,
		Logs: []jobs.LogEntry{{
			Timestamp: now,
			Message:   fmt.Sprintf("Started automation for admins: %s with timeOfDay: %s", strings.Join(names, ", "), timeOfDay),
		}},
	}
	if err := r.store.Create(context.Background(), job); err != nil {
		return "", fmt.Errorf("create job record: %w", err)
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	if r.cfg.RunTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, r.cfg.RunTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	r.mu.Lock()
	r.cancels[job.ID] = cancel
	r.mu.Unlock()

	telemetry.RunningJobs.Inc()
	r.log.Info().Str("job", job.ID).Str("timeOfDay", timeOfDay).Strs("admins", names).Msg("automation started")

	go r.execute(ctx, job.ID, payloads, timeOfDay, selections, exemption)
	return job.ID, nil
}

// Cancel stops a running job. Reports false when the job is unknown or
// already finished.
func (r *Runner) Cancel(jobID string) (bool, error) {
	cancelled, err := r.store.Cancel(context.Background(), jobID)
	if err != nil {
		return false, err
	}
	if !cancelled {
		return false, nil
	}

	r.mu.Lock()
	cancel, ok := r.cancels[jobID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	telemetry.JobsTotal.WithLabelValues(string(jobs.StatusCancelled)).Inc()
	r.log.Info().Str("job", jobID).Msg("job cancelled")
	return true, nil
}

func (r *Runner) execute(ctx context.Context, jobID string, payloads []rules.AdminPayload, timeOfDay string, selections jobs.CampaignSelections, exemption rules.ExemptionSettings) {
	defer func() {
		telemetry.RunningJobs.Dec()
		r.mu.Lock()
		if cancel, ok := r.cancels[jobID]; ok {
			cancel()
			delete(r.cancels, jobID)
		}
		r.mu.Unlock()
	}()

	var campaigns []int64
	if selections.Regular.Selected {
		campaigns = append(campaigns, config.CampaignIDsFor(r.cfg.Env, timeOfDay)...)
	}

	// Log the resolved plan before touching the browser, mirroring what the
	// dry-run endpoint would have shown.
	entries := r.planner.Plan(payloads, campaigns, exemption)
	for _, e := range entries {
		if e.Skipped {
			r.logJob(jobID, fmt.Sprintf("Skipping campaign %d as no admins are available to process it after applying rules.", e.CampaignID), false)
			continue
		}
		if len(e.ExcludedAdmins) > 0 {
			r.logJob(jobID, fmt.Sprintf("Campaign %d restrictions: excluded admins: [%s] -> processing with: [%s]",
				e.CampaignID, strings.Join(e.ExcludedAdmins, ", "), strings.Join(e.ProcessingAdmins, ", ")), false)
		}
	}

	groups := r.planner.Groups(payloads, campaigns, exemption)

	var results []campaignResult
	for _, g := range groups {
		if ctx.Err() != nil {
			break
		}
		r.logJob(jobID, fmt.Sprintf("Processing group for admins: %s with %d campaigns", strings.Join(g.Admins, ", "), len(g.Campaigns)), false)
		res, fatal := r.runGroup(ctx, jobID, g)
		results = append(results, res...)
		if fatal != nil {
			// Login was rejected; later groups would only repeat the failure.
			r.logJob(jobID, fmt.Sprintf("Stopping run: %v", fatal), true)
			if err := r.store.Finish(context.Background(), jobID, jobs.StatusError, false, "Automation failed: login was rejected."); err == nil {
				telemetry.JobsTotal.WithLabelValues(string(jobs.StatusError)).Inc()
			}
			return
		}
	}

	if ctx.Err() != nil {
		// Cancelled or timed out. The cancel path already moved the job to a
		// terminal status; a timeout has not.
		if err := r.store.Finish(ctx, jobID, jobs.StatusError, false, "Automation aborted: "+ctx.Err().Error()); err == nil {
			telemetry.JobsTotal.WithLabelValues(string(jobs.StatusError)).Inc()
		}
		return
	}

	// One notification per run, tied to the original cohort, regardless of
	// per-campaign outcomes.
	if selections.Regular.Selected && r.notifier != nil {
		r.notifier.Notify(cohortNames(payloads), timeOfDay)
	}

	success := true
	for _, res := range results {
		if !res.Success {
			success = false
			break
		}
	}

	status := jobs.StatusCompleted
	message := "Automation completed."
	if !success {
		status = jobs.StatusError
		message = "Automation failed."
	}
	if err := r.store.Finish(context.Background(), jobID, status, success, message); err != nil {
		r.log.Error().Err(err).Str("job", jobID).Msg("finish job record")
		return
	}
	telemetry.JobsTotal.WithLabelValues(string(status)).Inc()
	r.log.Info().Str("job", jobID).Bool("success", success).Int("campaigns", len(results)).Msg("automation finished")
}

// logJob appends to the job log and mirrors the line to the service log.
func (r *Runner) logJob(jobID, message string, isError bool) {
	_ = r.store.AppendLog(context.Background(), jobID, message, isError)
	if isError {
		r.log.Error().Str("job", jobID).Msg(message)
	} else {
		r.log.Info().Str("job", jobID).Msg(message)
	}
}

func cohortNames(payloads []rules.AdminPayload) []string {
	names := make([]string, len(payloads))
	for i, p := range payloads {
		names[i] = p.Name
	}
	return names
}
