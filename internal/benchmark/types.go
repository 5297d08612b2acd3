package benchmark

import (
	"time"

	"github.com/pkg/errors"

	"breachbench/internal/record"
)

// Config holds the run parameters. It is not modified after New.
type Config struct {
	Iterations           int           `json:"iterations"`
	PoolSize             int           `json:"pool_size"`
	WritesPerParticipant int           `json:"writes_per_participant"`
	ReadBatchSize        int           `json:"read_batch_size"` // 0 disables the final read phase
	Redeploy             bool          `json:"redeploy"`
	Magnitude            int64         `json:"magnitude"`
	CallTimeout          time.Duration `json:"call_timeout"` // 0 means none
	MaxSubmissionsPerSec float64       `json:"max_submissions_per_sec"`
}

func DefaultConfig() Config {
	return Config{
		Iterations:           10,
		PoolSize:             2,
		WritesPerParticipant: 5,
		Redeploy:             true,
		Magnitude:            1,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Iterations < 1:
		return errors.Errorf("iterations must be at least 1, got %d", c.Iterations)
	case c.PoolSize < 1:
		return errors.Errorf("pool size must be at least 1, got %d", c.PoolSize)
	case c.WritesPerParticipant < 1:
		return errors.Errorf("writes per participant must be at least 1, got %d", c.WritesPerParticipant)
	case c.ReadBatchSize < 0:
		return errors.Errorf("read batch size cannot be negative, got %d", c.ReadBatchSize)
	case c.CallTimeout < 0:
		return errors.Errorf("call timeout cannot be negative, got %s", c.CallTimeout)
	case c.MaxSubmissionsPerSec < 0:
		return errors.Errorf("submission rate cannot be negative, got %v", c.MaxSubmissionsPerSec)
	}
	return nil
}

// ReadBatch is the number of participants read in the final phase.
func (c Config) ReadBatch() int {
	if c.ReadBatchSize > c.PoolSize {
		return c.PoolSize
	}
	return c.ReadBatchSize
}

// Summary describes a finished run.
type Summary struct {
	RunID       string                 `json:"run_id"`
	Started     time.Time              `json:"started"`
	Finished    time.Time              `json:"finished"`
	State       State                  `json:"state"`
	Iterations  int                    `json:"iterations_completed"`
	Deployments int                    `json:"deployments"`
	Rows        map[record.Kind]uint64 `json:"rows"`
	Error       string                 `json:"error,omitempty"`
}

func (s Summary) Duration() time.Duration {
	return s.Finished.Sub(s.Started)
}
