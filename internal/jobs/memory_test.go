package jobs

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newRunningJob(id string) *Job {
	return &Job{
		ID:        id,
		Status:    StatusRunning,
		Message:   "Automation started",
		StartTime: time.Now(),
		TimeOfDay: "pagi",
	}
}

func TestNewID_Monotonic(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("duplicate job id %s", id)
		}
		seen[id] = true
	}
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)
	defer s.Close()

	job := newRunningJob("100")
	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, newRunningJob("100")); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("duplicate Create err = %v, want ErrDuplicateID", err)
	}

	got, err := s.Get(ctx, "100")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusRunning || got.EndTime != nil {
		t.Fatalf("new job = %+v, want running with no end time", got)
	}

	if err := s.AppendLog(ctx, "100", "processing campaign 246548", false); err != nil {
		t.Fatalf("AppendLog: %v", err)
	}
	// Unknown id is a no-op, never an error.
	if err := s.AppendLog(ctx, "nope", "ignored", false); err != nil {
		t.Fatalf("AppendLog unknown id: %v", err)
	}

	if err := s.Finish(ctx, "100", StatusCompleted, true, "All campaigns processed"); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	got, err = s.Get(ctx, "100")
	if err != nil {
		t.Fatalf("Get after finish: %v", err)
	}
	if got.Status != StatusCompleted || !got.Success || got.EndTime == nil {
		t.Fatalf("finished job = %+v", got)
	}
	if len(got.Logs) != 2 {
		t.Fatalf("got %d log entries, want 2", len(got.Logs))
	}
}

func TestMemoryStore_TerminalIsFinal(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)
	defer s.Close()

	if err := s.Create(ctx, newRunningJob("200")); err != nil {
		t.Fatal(err)
	}
	if err := s.Finish(ctx, "200", StatusError, false, "login failed"); err != nil {
		t.Fatal(err)
	}

	if err := s.Finish(ctx, "200", StatusCompleted, true, "done"); !errors.Is(err, ErrTerminal) {
		t.Fatalf("second Finish err = %v, want ErrTerminal", err)
	}
	cancelled, err := s.Cancel(ctx, "200")
	if err != nil {
		t.Fatal(err)
	}
	if cancelled {
		t.Fatal("Cancel must not override a terminal status")
	}

	got, _ := s.Get(ctx, "200")
	if got.Status != StatusError {
		t.Fatalf("status = %s, want error to stick", got.Status)
	}
}

func TestMemoryStore_Cancel(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)
	defer s.Close()

	if err := s.Create(ctx, newRunningJob("300")); err != nil {
		t.Fatal(err)
	}
	cancelled, err := s.Cancel(ctx, "300")
	if err != nil {
		t.Fatal(err)
	}
	if !cancelled {
		t.Fatal("expected running job to be cancellable")
	}
	got, _ := s.Get(ctx, "300")
	if got.Status != StatusCancelled || got.EndTime == nil {
		t.Fatalf("cancelled job = %+v", got)
	}

	if cancelled, _ := s.Cancel(ctx, "missing"); cancelled {
		t.Fatal("unknown id must report not cancelled")
	}
}

func TestMemoryStore_ExpiryRemovesRecord(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)
	defer s.Close()

	if err := s.Create(ctx, newRunningJob("400")); err != nil {
		t.Fatal(err)
	}
	if err := s.Finish(ctx, "400", StatusCompleted, true, "done"); err != nil {
		t.Fatal(err)
	}

	s.expireNow("400")
	if _, err := s.Get(ctx, "400"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after expiry err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)
	defer s.Close()

	base := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		job := newRunningJob(id)
		job.StartTime = base.Add(time.Duration(i) * time.Second)
		if err := s.Create(ctx, job); err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("got %d jobs, want 3", len(list))
	}
	if list[0].ID != "c" || list[2].ID != "a" {
		t.Fatalf("order = %s,%s,%s; want c,b,a", list[0].ID, list[1].ID, list[2].ID)
	}
}

func TestMemoryStore_SnapshotsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)
	defer s.Close()

	if err := s.Create(ctx, newRunningJob("500")); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Get(ctx, "500")
	got.Status = StatusError
	got.Logs = append(got.Logs, LogEntry{Message: "tampered"})

	again, _ := s.Get(ctx, "500")
	if again.Status != StatusRunning || len(again.Logs) != 0 {
		t.Fatal("mutating a returned job must not affect the stored record")
	}
}
