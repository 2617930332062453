package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"atelier/pkg/lock"
	"atelier/pkg/metrics"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingExpirer struct {
	calls int32
	n     int
	err   error
}

func (c *countingExpirer) ExpireStaleAssignments(_ context.Context, limit int) (int, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.n, c.err
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestExpirySweepJob_SkipsWhenLockHeldElsewhere(t *testing.T) {
	ctx := context.Background()
	client := newRedis(t)

	other := lock.NewRedisLock(client, "jobs:expiry-sweep")
	ok, err := other.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	expirer := &countingExpirer{}
	job := NewExpirySweepJob(time.Minute, 50, expirer, lock.NewRedisLock(client, "jobs:expiry-sweep"))
	require.NoError(t, job.Run(ctx))
	assert.Zero(t, atomic.LoadInt32(&expirer.calls))

	require.NoError(t, other.Unlock(ctx))
	require.NoError(t, job.Run(ctx))
	assert.Equal(t, int32(1), atomic.LoadInt32(&expirer.calls))
}

func TestExpirySweepJob_ReleasesLockAndReportsErrors(t *testing.T) {
	ctx := context.Background()
	client := newRedis(t)
	locker := lock.NewRedisLock(client, "jobs:expiry-sweep")

	boom := errors.New("db down")
	job := NewExpirySweepJob(time.Minute, 50, &countingExpirer{n: 1, err: boom}, locker)
	assert.ErrorIs(t, job.Run(ctx), boom)
	assert.False(t, locker.IsHeld())

	exists, err := client.Exists(ctx, "jobs:expiry-sweep").Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}

func TestManager_RunsImmediatelyAndStops(t *testing.T) {
	expirer := &countingExpirer{}
	m := NewManager(context.Background(), nil)
	m.Register(NewExpirySweepJob(time.Hour, 10, expirer, nil))
	m.Register(nil)
	m.Start()
	m.Start()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&expirer.calls) == 1 }, time.Second, 5*time.Millisecond)

	m.Stop()
	m.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&expirer.calls))
}

type panickingJob struct {
	runs int32
}

func (p *panickingJob) Name() string            { return "panicky" }
func (p *panickingJob) Interval() time.Duration { return 10 * time.Millisecond }
func (p *panickingJob) Run(context.Context) error {
	atomic.AddInt32(&p.runs, 1)
	panic("nil worker snapshot")
}

func TestManager_RecordsRunOutcomes(t *testing.T) {
	m := metrics.New()
	failing := NewExpirySweepJob(time.Hour, 10, &countingExpirer{err: errors.New("db down")}, nil)
	healthy := &renamedJob{Job: NewExpirySweepJob(time.Hour, 10, &countingExpirer{n: 2}, nil), name: "healthy-sweep"}
	panicky := &panickingJob{}

	mgr := NewManager(context.Background(), m)
	mgr.Register(failing)
	mgr.Register(healthy)
	mgr.Register(panicky)
	mgr.Start()

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.JobRuns.WithLabelValues(failing.Name(), OutcomeFailed)) == 1 &&
			testutil.ToFloat64(m.JobRuns.WithLabelValues("healthy-sweep", OutcomeOK)) == 1 &&
			testutil.ToFloat64(m.JobRuns.WithLabelValues("panicky", OutcomePanicked)) >= 2
	}, time.Second, 5*time.Millisecond, "a panicking job keeps its schedule")

	mgr.Stop()
	mgr.Wait()

	runs := atomic.LoadInt32(&panicky.runs)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, runs, atomic.LoadInt32(&panicky.runs), "no runs after stop")
}

func TestManager_IgnoresLateRegistration(t *testing.T) {
	expirer := &countingExpirer{}
	m := NewManager(context.Background(), nil)
	m.Start()
	m.Register(NewExpirySweepJob(time.Hour, 10, expirer, nil))

	time.Sleep(20 * time.Millisecond)
	m.Stop()
	m.Wait()
	assert.Zero(t, atomic.LoadInt32(&expirer.calls))
}

type renamedJob struct {
	Job
	name string
}

func (r *renamedJob) Name() string { return r.name }
