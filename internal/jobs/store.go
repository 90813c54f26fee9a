package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrNotFound is returned when a job id is unknown (or already expired).
	ErrNotFound = errors.New("job not found")
	// ErrTerminal is returned when a transition out of a terminal status is attempted.
	ErrTerminal = errors.New("job already in a terminal status")
	// ErrDuplicateID is returned when a job id is created twice.
	ErrDuplicateID = errors.New("duplicate job id")
)

// Store persists job records. Implementations must be safe for concurrent use
// and must delete a job one retention window after it reaches a terminal
// status.
type Store interface {
	// Create stores a new job record. The job's status must be running.
	Create(ctx context.Context, job *Job) error

	// Get retrieves a job by id. Returns ErrNotFound for unknown or expired ids.
	Get(ctx context.Context, id string) (*Job, error)

	// List returns all live job records, newest first.
	List(ctx context.Context) ([]*Job, error)

	// AppendLog adds one log entry to the job. Unknown ids are ignored.
	AppendLog(ctx context.Context, id, message string, isError bool) error

	// Finish moves the job to a terminal status, stamps the end time and
	// schedules deletion after the retention window. Returns ErrTerminal if
	// the job already finished.
	Finish(ctx context.Context, id string, status Status, success bool, message string) error

	// Cancel marks a running job cancelled. Reports false when the job is
	// unknown or already terminal.
	Cancel(ctx context.Context, id string) (bool, error)

	// Delete removes a job record immediately (idempotent).
	Delete(ctx context.Context, id string) error

	// Close releases any resources held by the store.
	Close() error
}

// NewStore creates a job store. Supported types: "memory", "bolt".
func NewStore(storeType, path string, retention time.Duration, log zerolog.Logger) (Store, error) {
	switch storeType {
	case "memory":
		return NewMemoryStore(retention), nil
	case "bolt":
		return NewBoltStore(path, retention, log)
	default:
		return nil, fmt.Errorf("unsupported job store type: %s", storeType)
	}
}
