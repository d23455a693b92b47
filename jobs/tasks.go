// Package jobs holds background task definitions and the worker wiring
// around them.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeBanSweep is the task type for lifting expired bans.
	TaskTypeBanSweep = "ban:sweep"
)

// BanSweepPayload bounds one sweep run.
type BanSweepPayload struct {
	// Limit caps the number of unbans per run; zero means unlimited.
	Limit int `json:"limit"`
}

// NewBanSweepTask constructs an Asynq task.
func NewBanSweepTask(payload BanSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeBanSweep, data), nil
}
