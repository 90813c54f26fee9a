package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/anurisatria/assignd/internal/automation"
	"github.com/anurisatria/assignd/internal/planner"
	"github.com/anurisatria/assignd/internal/telemetry"
)

type campaignResult struct {
	CampaignID int64
	WorkerID   int
	Success    bool
	Err        error
}

// resultSink collects worker results across goroutines. A fatal error marks
// the whole run as unrecoverable; only the first one is kept.
type resultSink struct {
	mu      sync.Mutex
	results []campaignResult
	fatal   error
}

func (s *resultSink) add(res campaignResult) {
	s.mu.Lock()
	s.results = append(s.results, res)
	s.mu.Unlock()
}

func (s *resultSink) setFatal(err error) {
	s.mu.Lock()
	if s.fatal == nil {
		s.fatal = err
	}
	s.mu.Unlock()
}

// runGroup fans the group's campaigns out over the worker pool, round-robin,
// and waits for every worker to drain its share. A non-nil fatal error means
// no further groups should be attempted.
func (r *Runner) runGroup(ctx context.Context, jobID string, group planner.Group) ([]campaignResult, error) {
	chunks := make([][]int64, r.cfg.MaxWorkers)
	for i, id := range group.Campaigns {
		w := i % r.cfg.MaxWorkers
		chunks[w] = append(chunks[w], id)
	}

	sink := &resultSink{}
	var wg sync.WaitGroup
	for i, chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}
		wg.Add(1)
		go func(workerID int, campaigns []int64) {
			defer wg.Done()
			r.runWorker(ctx, jobID, workerID, group.Admins, campaigns, sink)
		}(i+1, chunk)
	}
	wg.Wait()
	return sink.results, sink.fatal
}

// runWorker owns one browser session for its whole campaign share. A setup
// failure records every assigned campaign as failed; a rejected login is
// fatal for the whole run, since every later session would hit the same
// credentials. Mid-run session loss is recovered inside the per-campaign
// retry.
func (r *Runner) runWorker(ctx context.Context, jobID string, workerID int, admins []string, campaigns []int64, sink *resultSink) {
	sess, err := r.newLoggedInSession(ctx)
	if err != nil {
		r.logJob(jobID, fmt.Sprintf("Worker %d critical failure: %v", workerID, err), true)
		var authErr *automation.AuthError
		if errors.As(err, &authErr) {
			sink.setFatal(err)
		}
		for _, id := range campaigns {
			sink.add(campaignResult{CampaignID: id, WorkerID: workerID, Success: false, Err: err})
			telemetry.CampaignsTotal.WithLabelValues("failed").Inc()
		}
		return
	}
	defer func() {
		if sess != nil {
			_ = sess.Close()
		}
	}()

	r.logJob(jobID, fmt.Sprintf("Worker %d starting with %d campaigns", workerID, len(campaigns)), false)

	for _, id := range campaigns {
		if ctx.Err() != nil {
			return
		}

		err := r.processWithRetry(ctx, &sess, id, admins)
		if err != nil {
			r.logJob(jobID, fmt.Sprintf("Worker %d: campaign %d failed: %v", workerID, id, err), true)
			sink.add(campaignResult{CampaignID: id, WorkerID: workerID, Success: false, Err: err})
			telemetry.CampaignsTotal.WithLabelValues("failed").Inc()
		} else {
			r.logJob(jobID, fmt.Sprintf("Worker %d: campaign %d processed", workerID, id), false)
			sink.add(campaignResult{CampaignID: id, WorkerID: workerID, Success: true})
			telemetry.CampaignsTotal.WithLabelValues("processed").Inc()
		}

		// Settle delay between campaigns; the dashboard misbehaves when the
		// next navigation starts immediately after a save.
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.cfg.CampaignDelay):
		}
	}
}

// processWithRetry retries transient campaign failures with exponential
// backoff. A lost session is replaced and logged in again before the next
// attempt; auth failures are permanent.
func (r *Runner) processWithRetry(ctx context.Context, sess *automation.Session, campaignID int64, admins []string) error {
	op := func() (struct{}, error) {
		err := (*sess).ProcessCampaign(ctx, campaignID, admins)
		if err == nil {
			return struct{}{}, nil
		}

		var authErr *automation.AuthError
		if errors.As(err, &authErr) {
			return struct{}{}, backoff.Permanent(err)
		}

		if automation.IsSessionLost(err) {
			telemetry.SessionRestarts.Inc()
			_ = (*sess).Close()
			fresh, ferr := r.newLoggedInSession(ctx)
			if ferr != nil {
				return struct{}{}, backoff.Permanent(fmt.Errorf("session recovery failed: %w", ferr))
			}
			*sess = fresh
		}
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(r.cfg.RetryMax+1)),
	)
	return err
}

func (r *Runner) newLoggedInSession(ctx context.Context) (automation.Session, error) {
	sess, err := r.automator.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	if err := sess.Login(ctx); err != nil {
		_ = sess.Close()
		return nil, fmt.Errorf("login: %w", err)
	}
	return sess, nil
}
