package room

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultRetention is how long a finished room is kept before cleanup.
const DefaultRetention = 24 * time.Hour

// CleanupConfig holds configuration for creating a CleanupJob.
type CleanupConfig struct {
	Sweeper Sweeper
	Logger  zerolog.Logger

	// Retention is the minimum age of a finished room before it is removed.
	// Default: 24 hours
	Retention time.Duration

	// Now returns the current time. Default: time.Now
	Now func() time.Time
}

// CleanupJob removes finished rooms that are past their retention.
type CleanupJob struct {
	sweeper   Sweeper
	logger    zerolog.Logger
	retention time.Duration
	now       func() time.Time
}

// CleanupResult contains the result of a cleanup run.
type CleanupResult struct {
	Cutoff   time.Time
	Removed  int
	Duration time.Duration
}

// NewCleanupJob creates a new room cleanup job.
func NewCleanupJob(cfg CleanupConfig) *CleanupJob {
	retention := cfg.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &CleanupJob{
		sweeper:   cfg.Sweeper,
		logger:    cfg.Logger,
		retention: retention,
		now:       now,
	}
}

// Run deletes every finished room created before now minus the retention.
func (j *CleanupJob) Run(ctx context.Context) (*CleanupResult, error) {
	start := j.now()
	cutoff := start.Add(-j.retention)

	removed, err := j.sweeper.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error().Err(err).Time("cutoff", cutoff).Msg("room cleanup failed")
		return nil, err
	}

	result := &CleanupResult{
		Cutoff:   cutoff,
		Removed:  removed,
		Duration: j.now().Sub(start),
	}

	j.logger.Info().
		Time("cutoff", cutoff).
		Int("removed", removed).
		Dur("duration", result.Duration).
		Msg("room cleanup completed")

	return result, nil
}
