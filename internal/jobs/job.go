// Package jobs tracks automation runs: an append-only log, a status lifecycle
// and timed deletion of finished records.
package jobs

import (
	"strconv"
	"sync"
	"time"

	"github.com/anurisatria/assignd/internal/rules"
)

// Status is the lifecycle state of a job.
// running is the only non-terminal state; terminal states are never left
// except by deletion.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// LogEntry is one line of a job's progress log.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	IsError   bool      `json:"isError"`
}

// RegularSelection describes whether the run covers the regular campaign set.
type RegularSelection struct {
	Selected bool   `json:"selected"`
	Time     string `json:"time"`
}

// CampaignSelections captures which campaign classes a run targets.
type CampaignSelections struct {
	Regular RegularSelection `json:"regular"`
}

// Job is one automation run's record.
type Job struct {
	ID                 string                  `json:"jobId"`
	Status             Status                  `json:"status"`
	Message            string                  `json:"message"`
	Success            bool                    `json:"success"`
	StartTime          time.Time               `json:"startTime"`
	EndTime            *time.Time              `json:"endTime,omitempty"`
	AdminPayloads      []rules.AdminPayload    `json:"adminPayloads"`
	TimeOfDay          string                  `json:"timeOfDay"`
	CampaignSelections CampaignSelections      `json:"campaignSelections"`
	Exemption          rules.ExemptionSettings `json:"exemptionSettings"`
	Logs               []LogEntry              `json:"logs"`
}

var (
	idMu   sync.Mutex
	lastID int64
)

// NewID returns a millisecond-epoch job id, bumped forward when two jobs
// start within the same millisecond.
func NewID() string {
	idMu.Lock()
	defer idMu.Unlock()
	now := time.Now().UnixMilli()
	if now <= lastID {
		now = lastID + 1
	}
	lastID = now
	return strconv.FormatInt(now, 10)
}
