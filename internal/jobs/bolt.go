package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"
)

var bucketJobs = []byte("jobs")

// sweepInterval is how often the background cleaner scans for expired jobs.
const sweepInterval = time.Minute

// BoltStore persists job records in a bbolt file so job status survives a
// process restart. A background sweeper deletes finished jobs once their
// retention window has elapsed.
type BoltStore struct {
	db        *bolt.DB
	retention time.Duration
	log       zerolog.Logger
	stop      chan struct{}
	done      chan struct{}
}

// NewBoltStore opens (or creates) the job database at path.
func NewBoltStore(path string, retention time.Duration, log zerolog.Logger) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create job store directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketJobs)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create jobs bucket: %w", err)
	}

	s := &BoltStore{
		db:        db,
		retention: retention,
		log:       log.With().Str("component", "jobstore").Logger(),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go s.sweeper()
	return s, nil
}

func (s *BoltStore) Create(ctx context.Context, job *Job) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		if b.Get([]byte(job.ID)) != nil {
			return ErrDuplicateID
		}
		return putJob(b, job)
	})
}

func (s *BoltStore) Get(ctx context.Context, id string) (*Job, error) {
	var job *Job
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketJobs).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		job = new(Job)
		return json.Unmarshal(data, job)
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *BoltStore) List(ctx context.Context) ([]*Job, error) {
	var out []*Job
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketJobs).ForEach(func(_, v []byte) error {
			job := new(Job)
			if err := json.Unmarshal(v, job); err != nil {
				return err
			}
			out = append(out, job)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

func (s *BoltStore) AppendLog(ctx context.Context, id, message string, isError bool) error {
	return s.mutate(id, func(job *Job) error {
		job.Logs = append(job.Logs, LogEntry{Timestamp: time.Now(), Message: message, IsError: isError})
		return nil
	}, true)
}

func (s *BoltStore) Finish(ctx context.Context, id string, status Status, success bool, message string) error {
	return s.mutate(id, func(job *Job) error {
		if job.Status.Terminal() {
			return ErrTerminal
		}
		now := time.Now()
		job.Status = status
		job.Success = success
		job.Message = message
		job.EndTime = &now
		job.Logs = append(job.Logs, LogEntry{Timestamp: now, Message: message, IsError: status == StatusError})
		return nil
	}, false)
}

func (s *BoltStore) Cancel(ctx context.Context, id string) (bool, error) {
	cancelled := false
	err := s.mutate(id, func(job *Job) error {
		if job.Status.Terminal() {
			return nil
		}
		now := time.Now()
		job.Status = StatusCancelled
		job.Message = "Job cancelled"
		job.EndTime = &now
		job.Logs = append(job.Logs, LogEntry{Timestamp: now, Message: "Job cancelled by request", IsError: false})
		cancelled = true
		return nil
	}, true)
	return cancelled, err
}

func (s *BoltStore) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketJobs).Delete([]byte(id))
	})
}

func (s *BoltStore) Close() error {
	close(s.stop)
	<-s.done
	return s.db.Close()
}

// mutate applies fn to the stored job inside one transaction.
// With ignoreMissing set, unknown ids are a no-op rather than ErrNotFound.
func (s *BoltStore) mutate(id string, fn func(*Job) error, ignoreMissing bool) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		data := b.Get([]byte(id))
		if data == nil {
			if ignoreMissing {
				return nil
			}
			return ErrNotFound
		}
		job := new(Job)
		if err := json.Unmarshal(data, job); err != nil {
			return err
		}
		if err := fn(job); err != nil {
			return err
		}
		return putJob(b, job)
	})
}

func putJob(b *bolt.Bucket, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID, err)
	}
	return b.Put([]byte(job.ID), data)
}

// sweeper deletes finished jobs whose retention window has elapsed.
func (s *BoltStore) sweeper() {
	defer close(s.done)
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if err := s.sweep(); err != nil {
				s.log.Error().Err(err).Msg("job expiry sweep failed")
			}
		}
	}
}

func (s *BoltStore) sweep() error {
	cutoff := time.Now().Add(-s.retention)
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		var expired [][]byte
		err := b.ForEach(func(k, v []byte) error {
			job := new(Job)
			if err := json.Unmarshal(v, job); err != nil {
				// Unreadable record: drop it rather than keep it forever.
				expired = append(expired, append([]byte(nil), k...))
				return nil
			}
			if job.Status.Terminal() && job.EndTime != nil && job.EndTime.Before(cutoff) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		if len(expired) > 0 {
			s.log.Info().Int("count", len(expired)).Msg("expired job records removed")
		}
		return nil
	})
}
