package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"atelier/internal/model"
	"atelier/pkg/apperrors"
	"atelier/pkg/interfaces"
	"atelier/pkg/lifecycle"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedWorker(t *testing.T, workers interfaces.WorkerRepository, id string, limit int) {
	t.Helper()
	require.NoError(t, workers.Create(context.Background(), &model.Worker{
		ID: id, Name: id, Skills: []string{"graphics"}, Available: true, MaxProjectLimit: limit,
	}))
}

func TestExecTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	repos := s.Repositories()
	seedWorker(t, repos.Workers, "w1", 2)

	boom := errors.New("boom")
	err := repos.Tx.ExecTx(ctx, func(txCtx context.Context) error {
		require.NoError(t, repos.Workers.ClaimSlot(txCtx, "w1"))
		require.NoError(t, repos.Projects.Create(txCtx, &model.Project{ID: "p1", Status: lifecycle.StatusQueued}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	w, err := repos.Workers.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, 0, w.ActiveProjectCount)

	p, err := repos.Projects.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestExecTx_NestedJoinsOuter(t *testing.T) {
	ctx := context.Background()
	s := New()
	repos := s.Repositories()

	err := repos.Tx.ExecTx(ctx, func(txCtx context.Context) error {
		return repos.Tx.ExecTx(txCtx, func(inner context.Context) error {
			return repos.Projects.Create(inner, &model.Project{ID: "p1", Status: lifecycle.StatusQueued})
		})
	})
	require.NoError(t, err)

	p, err := repos.Projects.Get(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestProjectSave_VersionCheck(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	require.NoError(t, repos.Projects.Create(ctx, &model.Project{ID: "p1", Status: lifecycle.StatusQueued}))

	a, _ := repos.Projects.Get(ctx, "p1")
	b, _ := repos.Projects.Get(ctx, "p1")

	a.Status = lifecycle.StatusMatching
	require.NoError(t, repos.Projects.Save(ctx, a))
	assert.Equal(t, int64(1), a.Version)

	b.Status = lifecycle.StatusCancelled
	err := repos.Projects.Save(ctx, b)
	assert.ErrorIs(t, err, apperrors.ErrConcurrentUpdate)

	cur, _ := repos.Projects.Get(ctx, "p1")
	assert.Equal(t, lifecycle.StatusMatching, cur.Status)
}

func TestClaimSlot_NeverExceedsLimit(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	seedWorker(t, repos.Workers, "w1", 3)

	var wg sync.WaitGroup
	var mu sync.Mutex
	claimed, rejected := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repos.Workers.ClaimSlot(ctx, "w1")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				claimed++
			} else if errors.Is(err, apperrors.ErrCapacityExceeded) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, claimed)
	assert.Equal(t, 17, rejected)

	w, _ := repos.Workers.Get(ctx, "w1")
	assert.Equal(t, 3, w.ActiveProjectCount)

	candidates, err := repos.Workers.ListCandidates(ctx, "graphics")
	require.NoError(t, err)
	assert.Empty(t, candidates, "full worker is not a candidate")
}

func TestReleaseSlot_FloorsAtZero(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	seedWorker(t, repos.Workers, "w1", 1)

	require.NoError(t, repos.Workers.ReleaseSlot(ctx, "w1"))
	w, _ := repos.Workers.Get(ctx, "w1")
	assert.Equal(t, 0, w.ActiveProjectCount)
}

func TestRotationTouch(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repos.Rotation.Touch(ctx, "w1", "graphics", t1))
	require.NoError(t, repos.Rotation.Touch(ctx, "w1", "graphics", t1.Add(-time.Hour)))

	recs, err := repos.Rotation.ListBySkill(ctx, "graphics", []string{"w1", "w2"})
	require.NoError(t, err)
	require.Contains(t, recs, "w1")
	assert.NotContains(t, recs, "w2")
	assert.Equal(t, int64(2), recs["w1"].AssignmentCount)
	assert.True(t, recs["w1"].LastAssignedAt.Equal(t1), "last_assigned_at never moves backwards")
}

func TestPayments_UniqueExternalRef(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()

	require.NoError(t, repos.Payments.Create(ctx, &model.Payment{ID: "pay1", ProjectID: "p1", ExternalRef: "ext-1"}))
	err := repos.Payments.Create(ctx, &model.Payment{ID: "pay2", ProjectID: "p1", ExternalRef: "ext-1"})
	assert.ErrorIs(t, err, apperrors.ErrDuplicatePayment)

	require.NoError(t, repos.Payments.Create(ctx, &model.Payment{ID: "pay3", ProjectID: "p2", ExternalRef: "ext-1"}))

	n, err := repos.Payments.CountByProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAgreements_ActiveAndSupersede(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()

	require.NoError(t, repos.Agreements.Create(ctx, &model.Agreement{ID: "a1", ProjectID: "p1"}))
	require.NoError(t, repos.Agreements.SupersedeActive(ctx, "p1"))
	require.NoError(t, repos.Agreements.Create(ctx, &model.Agreement{ID: "a2", ProjectID: "p1"}))

	active, err := repos.Agreements.GetActive(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "a2", active.ID)

	all, err := repos.Agreements.ListByProject(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[0].Superseded)
	assert.False(t, all[1].Superseded)
}

func TestListExpiredAssignments(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	require.NoError(t, repos.Projects.Create(ctx, &model.Project{ID: "expired", Status: lifecycle.StatusAssigned, AssignmentDeadline: &past}))
	require.NoError(t, repos.Projects.Create(ctx, &model.Project{ID: "running", Status: lifecycle.StatusAssigned, AssignmentDeadline: &future}))
	require.NoError(t, repos.Projects.Create(ctx, &model.Project{ID: "accepted", Status: lifecycle.StatusWaitingForClient, AssignmentDeadline: &past}))

	ids, err := repos.Projects.ListExpiredAssignments(ctx, now, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"expired"}, ids)
}
