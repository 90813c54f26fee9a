package orchestrator

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/anurisatria/assignd/internal/automation"
	"github.com/anurisatria/assignd/internal/config"
	"github.com/anurisatria/assignd/internal/jobs"
	"github.com/anurisatria/assignd/internal/planner"
	"github.com/anurisatria/assignd/internal/policy"
	"github.com/anurisatria/assignd/internal/rules"
)

type fakeAutomator struct {
	mu             sync.Mutex
	sessions       int
	failNewSession bool
	failLogin      bool
	failures       map[int64]int // campaign -> remaining failures
	failErr        error
	processed      map[int64][]string
	count          map[int64]int
	block          bool // ProcessCampaign blocks until ctx is done
}

func newFakeAutomator() *fakeAutomator {
	return &fakeAutomator{
		failures:  make(map[int64]int),
		processed: make(map[int64][]string),
		count:     make(map[int64]int),
	}
}

func (a *fakeAutomator) NewSession(ctx context.Context) (automation.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failNewSession {
		return nil, errors.New("browser unavailable")
	}
	a.sessions++
	return &fakeSession{a: a}, nil
}

func (a *fakeAutomator) Close() error { return nil }

type fakeSession struct {
	a *fakeAutomator
}

func (s *fakeSession) Login(ctx context.Context) error {
	if s.a.failLogin {
		return &automation.AuthError{Err: errors.New("login rejected")}
	}
	return nil
}

func (s *fakeSession) ProcessCampaign(ctx context.Context, campaignID int64, admins []string) error {
	if s.a.block {
		<-ctx.Done()
		return ctx.Err()
	}
	s.a.mu.Lock()
	defer s.a.mu.Unlock()
	if n := s.a.failures[campaignID]; n > 0 {
		s.a.failures[campaignID] = n - 1
		return s.a.failErr
	}
	s.a.processed[campaignID] = append([]string(nil), admins...)
	s.a.count[campaignID]++
	return nil
}

func (s *fakeSession) Close() error { return nil }

type fakeNotifier struct {
	mu    sync.Mutex
	calls [][]string
	slots []string
}

func (n *fakeNotifier) Notify(admins []string, timeOfDay string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, append([]string(nil), admins...))
	n.slots = append(n.slots, timeOfDay)
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func newTestRunner(t *testing.T, table []rules.Rule, auto *fakeAutomator, notifier Notifier) (*Runner, jobs.Store) {
	t.Helper()
	store := jobs.NewMemoryStore(time.Hour)
	t.Cleanup(func() { store.Close() })
	p := planner.New(policy.NewEngine(policy.NewContext(table), zerolog.Nop()))
	cfg := Config{
		Env:           config.EnvStaging,
		MaxWorkers:    2,
		CampaignDelay: time.Millisecond,
		RetryMax:      1,
		RunTimeout:    time.Minute,
	}
	return NewRunner(cfg, p, store, auto, notifier, zerolog.Nop()), store
}

func regularRun() jobs.CampaignSelections {
	return jobs.CampaignSelections{Regular: jobs.RegularSelection{Selected: true, Time: "pagi"}}
}

func payloads(names ...string) []rules.AdminPayload {
	ps := make([]rules.AdminPayload, len(names))
	for i, n := range names {
		ps[i] = rules.AdminPayload{Name: n}
	}
	return ps
}

func waitTerminal(t *testing.T, store jobs.Store, jobID string) *jobs.Job {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("job %s never reached a terminal status", jobID)
		case <-time.After(5 * time.Millisecond):
		}
		job, err := store.Get(context.Background(), jobID)
		if err != nil {
			t.Fatalf("Get(%s): %v", jobID, err)
		}
		if job.Status.Terminal() {
			return job
		}
	}
}

func denyRule(id, admin string, campaignID int64) rules.Rule {
	return rules.Rule{
		ID: id,
		Condition: rules.Condition{Type: rules.CondAnd, Conditions: []rules.Condition{
			{Type: rules.CondAdmin, Value: admin},
			{Type: rules.CondCampaign, Value: campaignID},
		}},
		Action:   rules.Action{Type: rules.ActionDeny},
		Priority: 1,
	}
}

func TestRun_ProcessesCampaignsPerGroup(t *testing.T) {
	auto := newFakeAutomator()
	notifier := &fakeNotifier{}
	// admin 2 is denied on 289627, so the two staging campaigns land in
	// different groups with different admin subsets.
	r, store := newTestRunner(t, []rules.Rule{denyRule("r1", "admin 2", 289627)}, auto, notifier)

	jobID, err := r.Run(payloads("admin 1", "admin 2"), "pagi", regularRun(), rules.ExemptionSettings{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	job := waitTerminal(t, store, jobID)
	if job.Status != jobs.StatusCompleted || !job.Success {
		t.Fatalf("job = %s success=%v, want completed", job.Status, job.Success)
	}

	auto.mu.Lock()
	defer auto.mu.Unlock()
	if !reflect.DeepEqual(auto.processed[289626], []string{"admin 1", "admin 2"}) {
		t.Fatalf("campaign 289626 admins = %v", auto.processed[289626])
	}
	if !reflect.DeepEqual(auto.processed[289627], []string{"admin 1"}) {
		t.Fatalf("campaign 289627 admins = %v", auto.processed[289627])
	}
	if auto.count[289626] != 1 || auto.count[289627] != 1 {
		t.Fatalf("campaign process counts = %v", auto.count)
	}

	if notifier.count() != 1 {
		t.Fatalf("notifier called %d times, want exactly 1", notifier.count())
	}
	if !reflect.DeepEqual(notifier.calls[0], []string{"admin 1", "admin 2"}) || notifier.slots[0] != "pagi" {
		t.Fatalf("notification = %v %s", notifier.calls[0], notifier.slots[0])
	}
}

func TestRun_NoCampaignsSelectedSucceedsVacuously(t *testing.T) {
	auto := newFakeAutomator()
	notifier := &fakeNotifier{}
	r, store := newTestRunner(t, nil, auto, notifier)

	sel := jobs.CampaignSelections{Regular: jobs.RegularSelection{Selected: false}}
	jobID, err := r.Run(payloads("admin 1"), "manual", sel, rules.ExemptionSettings{})
	if err != nil {
		t.Fatal(err)
	}

	job := waitTerminal(t, store, jobID)
	if job.Status != jobs.StatusCompleted || !job.Success {
		t.Fatalf("empty run should complete successfully, got %s", job.Status)
	}
	if notifier.count() != 0 {
		t.Fatal("webhook must not fire when regular campaigns were not selected")
	}
}

func TestRun_SessionLossIsRecovered(t *testing.T) {
	auto := newFakeAutomator()
	auto.failures[289626] = 1
	auto.failErr = errors.New("Target closed")
	notifier := &fakeNotifier{}
	r, store := newTestRunner(t, nil, auto, notifier)

	jobID, err := r.Run(payloads("admin 3"), "siang", regularRun(), rules.ExemptionSettings{})
	if err != nil {
		t.Fatal(err)
	}

	job := waitTerminal(t, store, jobID)
	if job.Status != jobs.StatusCompleted || !job.Success {
		t.Fatalf("job = %s, want completed after retry", job.Status)
	}

	auto.mu.Lock()
	defer auto.mu.Unlock()
	if auto.count[289626] != 1 {
		t.Fatalf("campaign 289626 processed %d times, want 1", auto.count[289626])
	}
	// The lost session was replaced: more sessions than workers.
	if auto.sessions < 3 {
		t.Fatalf("sessions = %d, want a replacement session beyond the 2 workers", auto.sessions)
	}
}

func TestRun_PersistentFailureMarksJobError(t *testing.T) {
	auto := newFakeAutomator()
	auto.failures[289627] = 100
	auto.failErr = errors.New("save button missing")
	notifier := &fakeNotifier{}
	r, store := newTestRunner(t, nil, auto, notifier)

	jobID, err := r.Run(payloads("admin 4"), "malam", regularRun(), rules.ExemptionSettings{})
	if err != nil {
		t.Fatal(err)
	}

	job := waitTerminal(t, store, jobID)
	if job.Status != jobs.StatusError || job.Success {
		t.Fatalf("job = %s success=%v, want error", job.Status, job.Success)
	}

	// The healthy campaign still went through.
	auto.mu.Lock()
	defer auto.mu.Unlock()
	if auto.count[289626] != 1 {
		t.Fatalf("campaign 289626 processed %d times, want 1", auto.count[289626])
	}

	foundErrorLog := false
	for _, entry := range job.Logs {
		if entry.IsError {
			foundErrorLog = true
			break
		}
	}
	if !foundErrorLog {
		t.Fatal("job log should record the campaign failure")
	}
}

func TestRun_WorkerSetupFailureMarksJobError(t *testing.T) {
	auto := newFakeAutomator()
	auto.failLogin = true
	notifier := &fakeNotifier{}
	r, store := newTestRunner(t, nil, auto, notifier)

	jobID, err := r.Run(payloads("admin 1"), "pagi", regularRun(), rules.ExemptionSettings{})
	if err != nil {
		t.Fatal(err)
	}

	job := waitTerminal(t, store, jobID)
	if job.Status != jobs.StatusError {
		t.Fatalf("job = %s, want error after setup failure", job.Status)
	}
	auto.mu.Lock()
	defer auto.mu.Unlock()
	if len(auto.processed) != 0 {
		t.Fatalf("no campaign should be processed, got %v", auto.processed)
	}
	if notifier.count() != 0 {
		t.Fatal("webhook must not fire after a rejected login")
	}
}

func TestRun_RejectedLoginStopsLaterGroups(t *testing.T) {
	auto := newFakeAutomator()
	auto.failLogin = true
	notifier := &fakeNotifier{}
	// admin 2 is denied on 289627, so the run has two groups; the second
	// must never be attempted once the first worker's login is rejected.
	r, store := newTestRunner(t, []rules.Rule{denyRule("r1", "admin 2", 289627)}, auto, notifier)

	jobID, err := r.Run(payloads("admin 1", "admin 2"), "pagi", regularRun(), rules.ExemptionSettings{})
	if err != nil {
		t.Fatal(err)
	}

	job := waitTerminal(t, store, jobID)
	if job.Status != jobs.StatusError {
		t.Fatalf("job = %s, want error", job.Status)
	}

	auto.mu.Lock()
	defer auto.mu.Unlock()
	// The first group holds one campaign, so exactly one session attempt.
	if auto.sessions != 1 {
		t.Fatalf("sessions = %d, want 1 (no attempts for later groups)", auto.sessions)
	}
}

func TestCancel_StopsRunningJob(t *testing.T) {
	auto := newFakeAutomator()
	auto.block = true
	notifier := &fakeNotifier{}
	r, store := newTestRunner(t, nil, auto, notifier)

	jobID, err := r.Run(payloads("admin 1"), "pagi", regularRun(), rules.ExemptionSettings{})
	if err != nil {
		t.Fatal(err)
	}

	// Let the worker reach the blocking ProcessCampaign call.
	time.Sleep(50 * time.Millisecond)

	cancelled, err := r.Cancel(jobID)
	if err != nil {
		t.Fatal(err)
	}
	if !cancelled {
		t.Fatal("running job should be cancellable")
	}

	job := waitTerminal(t, store, jobID)
	if job.Status != jobs.StatusCancelled {
		t.Fatalf("job = %s, want cancelled", job.Status)
	}

	// Cancelling again reports false.
	if again, _ := r.Cancel(jobID); again {
		t.Fatal("second cancel must report false")
	}
}
