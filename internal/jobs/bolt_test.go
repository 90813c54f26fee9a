package jobs

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestBoltStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "jobs.db"), time.Hour, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBoltStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestBoltStore(t)

	job := newRunningJob("700")
	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, newRunningJob("700")); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("duplicate Create err = %v, want ErrDuplicateID", err)
	}

	if err := s.AppendLog(ctx, "700", "logging in", false); err != nil {
		t.Fatal(err)
	}
	if err := s.Finish(ctx, "700", StatusCompleted, true, "done"); err != nil {
		t.Fatal(err)
	}
	if err := s.Finish(ctx, "700", StatusError, false, "again"); !errors.Is(err, ErrTerminal) {
		t.Fatalf("second Finish err = %v, want ErrTerminal", err)
	}

	got, err := s.Get(ctx, "700")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusCompleted || !got.Success || got.EndTime == nil {
		t.Fatalf("job = %+v", got)
	}
	if len(got.Logs) != 2 {
		t.Fatalf("got %d log entries, want 2", len(got.Logs))
	}
}

func TestBoltStore_SweepDeletesExpired(t *testing.T) {
	ctx := context.Background()
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "jobs.db"), time.Millisecond, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Create(ctx, newRunningJob("800")); err != nil {
		t.Fatal(err)
	}
	if err := s.Create(ctx, newRunningJob("801")); err != nil {
		t.Fatal(err)
	}
	if err := s.Finish(ctx, "800", StatusCompleted, true, "done"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	if err := s.sweep(); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if _, err := s.Get(ctx, "800"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("finished job should be swept, got err = %v", err)
	}
	// Running jobs are never swept regardless of age.
	if _, err := s.Get(ctx, "801"); err != nil {
		t.Fatalf("running job must survive the sweep: %v", err)
	}
}

func TestBoltStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "jobs.db")

	s, err := NewBoltStore(path, time.Hour, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Create(ctx, newRunningJob("900")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := NewBoltStore(path, time.Hour, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s2.Close() })

	got, err := s2.Get(ctx, "900")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Status != StatusRunning {
		t.Fatalf("status = %s", got.Status)
	}
}
