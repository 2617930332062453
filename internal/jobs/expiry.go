package jobs

import (
	"context"
	"time"

	"atelier/pkg/lock"
	"atelier/pkg/logger"
)

// AssignmentExpirer returns overdue assignments to matching
type AssignmentExpirer interface {
	ExpireStaleAssignments(ctx context.Context, limit int) (int, error)
}

// ExpirySweepJob expires assignments whose acceptance deadline passed.
// Only the replica holding the lock sweeps in a given cycle.
type ExpirySweepJob struct {
	interval  time.Duration
	batchSize int
	expirer   AssignmentExpirer
	lock      lock.Locker
}

// NewExpirySweepJob creates the sweep job; a nil locker runs unguarded
func NewExpirySweepJob(interval time.Duration, batchSize int, expirer AssignmentExpirer, locker lock.Locker) *ExpirySweepJob {
	return &ExpirySweepJob{
		interval:  interval,
		batchSize: batchSize,
		expirer:   expirer,
		lock:      locker,
	}
}

func (j *ExpirySweepJob) Name() string { return "assignment-expiry-sweep" }

func (j *ExpirySweepJob) Interval() time.Duration { return j.interval }

func (j *ExpirySweepJob) Run(ctx context.Context) error {
	if j.lock != nil {
		acquired, err := j.lock.TryLock(ctx)
		if err != nil || !acquired {
			logger.DebugCtx(ctx, "another instance is running the expiry sweep, skipping this cycle")
			return nil
		}
		defer j.lock.Unlock(ctx)
	}

	n, err := j.expirer.ExpireStaleAssignments(ctx, j.batchSize)
	if n > 0 {
		logger.InfoCtx(ctx, "expired %d overdue assignment(s)", n)
	}
	return err
}
