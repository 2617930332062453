package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"atelier/internal/model"
	"atelier/pkg/apperrors"
	"atelier/pkg/constants"
	"atelier/pkg/interfaces"
	"atelier/pkg/lifecycle"
	"atelier/pkg/store/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	client = model.Actor{ID: "c1", Role: constants.RoleClient}
	admin  = model.Actor{ID: "ops", Role: constants.RoleAdmin}
)

func workerActor(id string) model.Actor {
	return model.Actor{ID: id, Role: constants.RoleWorker}
}

type recordingPublisher struct {
	mu      sync.Mutex
	effects []*model.Effect
}

func (r *recordingPublisher) Publish(_ context.Context, effects []*model.Effect) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.effects = append(r.effects, effects...)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) ofType(t constants.EffectType) []*model.Effect {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Effect
	for _, e := range r.effects {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *recordingPublisher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.effects)
}

type fixture struct {
	repos *interfaces.Repositories
	pub   *recordingPublisher
	orch  *Orchestrator
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repos: memory.New().Repositories(),
		pub:   &recordingPublisher{},
		now:   time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
	f.orch = NewOrchestrator(f.repos, f.pub, nil, MatchingOptions{AcceptanceWindow: 24 * time.Hour})
	f.orch.SetClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) addWorker(t *testing.T, id string, skill constants.Skill, limit int) {
	t.Helper()
	require.NoError(t, f.repos.Workers.Create(context.Background(), &model.Worker{
		ID:              id,
		Name:            id,
		Skills:          []string{string(skill)},
		Available:       true,
		Rating:          4,
		MaxProjectLimit: limit,
		PriceTier:       constants.PriceTierStandard,
	}))
}

func (f *fixture) worker(t *testing.T, id string) *model.Worker {
	t.Helper()
	w, err := f.repos.Workers.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, w)
	return w
}

func (f *fixture) project(t *testing.T, id string) *model.Project {
	t.Helper()
	p, err := f.orch.GetProject(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (f *fixture) create(t *testing.T, skill constants.Skill) *model.Project {
	t.Helper()
	p, err := f.orch.CreateProject(context.Background(), client, &model.CreateProjectRequest{
		Title: "Brand refresh",
		Skill: skill,
	})
	require.NoError(t, err)
	return p
}

// agreed drives a new project up to an accepted proposal of amount
func (f *fixture) agreed(t *testing.T, skill constants.Skill, amount int64) (*model.Project, *model.Agreement) {
	t.Helper()
	ctx := context.Background()
	p := f.create(t, skill)
	require.Equal(t, lifecycle.StatusAssigned, p.Status)
	w := workerActor(p.WorkerID)

	_, err := f.orch.AcceptAssignment(ctx, w, p.ID)
	require.NoError(t, err)
	a, err := f.orch.SubmitPriceProposal(ctx, w, p.ID, &model.ProposalRequest{
		Amount:       decimal.NewFromInt(amount),
		Deliverables: "logo set",
		Timeline:     "2 weeks",
	})
	require.NoError(t, err)
	a, err = f.orch.AcceptProposal(ctx, client, a.ID)
	require.NoError(t, err)
	return f.project(t, p.ID), a
}

func pay(projectID string, phase constants.PaymentPhase, amount int64, ref string) *model.ConfirmPaymentRequest {
	return &model.ConfirmPaymentRequest{
		ProjectID:   projectID,
		ClientID:    client.ID,
		Amount:      decimal.NewFromInt(amount),
		Phase:       phase,
		ExternalRef: ref,
	}
}

func TestCreateProject_AssignsMatchingWorker(t *testing.T) {
	f := newFixture(t)
	f.addWorker(t, "w1", constants.SkillGraphics, 3)
	f.addWorker(t, "w2", constants.SkillWeb, 3)

	p := f.create(t, constants.SkillGraphics)

	assert.Equal(t, lifecycle.StatusAssigned, p.Status)
	assert.Equal(t, "w1", p.WorkerID)
	assert.Equal(t, constants.AssignmentAuto, p.AssignmentMethod)
	require.NotNil(t, p.AssignmentDeadline)
	assert.Equal(t, f.now.Add(24*time.Hour), *p.AssignmentDeadline)
	assert.Equal(t, 1, f.worker(t, "w1").ActiveProjectCount)
	assert.Equal(t, 0, f.worker(t, "w2").ActiveProjectCount)

	notes := f.pub.ofType(constants.EffectAssignmentNotification)
	require.Len(t, notes, 1)
	assert.Equal(t, "w1", notes[0].Recipient)

	events, err := f.orch.GetProjectEvents(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, lifecycle.EventMatchSucceeded, events[0].Event)
	assert.Equal(t, lifecycle.StatusQueued, events[0].FromStatus)
}

func TestCreateProject_NoCandidate(t *testing.T) {
	f := newFixture(t)
	f.addWorker(t, "w1", constants.SkillWeb, 3)

	p := f.create(t, constants.SkillGraphics)

	assert.Equal(t, lifecycle.StatusNoWorkerAvailable, p.Status)
	assert.Empty(t, p.WorkerID)
	assert.NotEmpty(t, p.Reason)
	assert.Len(t, f.pub.ofType(constants.EffectAdminAlert), 1)
}

func TestCreateProject_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.CreateProject(ctx, client, &model.CreateProjectRequest{Title: "x", Skill: "sculpture"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	_, err = f.orch.CreateProject(ctx, client, &model.CreateProjectRequest{Title: "x", Skill: constants.SkillWeb, ClientID: "c2"})
	assert.ErrorIs(t, err, apperrors.ErrNotProjectParty)

	_, err = f.orch.CreateProject(ctx, client, &model.CreateProjectRequest{Skill: constants.SkillWeb})
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestMatchWorker_AlreadyAssigned(t *testing.T) {
	f := newFixture(t)
	f.addWorker(t, "w1", constants.SkillGraphics, 3)
	f.addWorker(t, "w2", constants.SkillGraphics, 3)
	p := f.create(t, constants.SkillGraphics)

	_, err := f.orch.MatchWorker(context.Background(), client, p.ID, &model.MatchRequest{})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyAssigned)

	again := f.project(t, p.ID)
	assert.Equal(t, p.WorkerID, again.WorkerID)
	assert.Equal(t, 1, f.worker(t, p.WorkerID).ActiveProjectCount)
}

func TestMatchWorker_RetriesAfterNoCandidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, constants.SkillGraphics)
	require.Equal(t, lifecycle.StatusNoWorkerAvailable, p.Status)

	p, err := f.orch.MatchWorker(ctx, client, p.ID, &model.MatchRequest{})
	require.ErrorIs(t, err, apperrors.ErrNoCandidate)
	require.NotNil(t, p)
	assert.Equal(t, lifecycle.StatusNoWorkerAvailable, p.Status)
	assert.Equal(t, 2, p.MatchAttempt)

	f.addWorker(t, "w1", constants.SkillGraphics, 3)
	p, err = f.orch.MatchWorker(ctx, client, p.ID, &model.MatchRequest{})
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusAssigned, p.Status)
	assert.Equal(t, "w1", p.WorkerID)
	assert.Empty(t, p.Reason)
}

func TestDepositSplit_StartsWork(t *testing.T) {
	f := newFixture(t)
	f.addWorker(t, "w1", constants.SkillGraphics, 3)
	p, a := f.agreed(t, constants.SkillGraphics, 50000)

	assert.True(t, decimal.NewFromInt(20000).Equal(a.DepositAmount))
	assert.True(t, decimal.NewFromInt(30000).Equal(a.BalanceAmount))
	assert.Equal(t, constants.AgreementAccepted, a.Status)
	assert.True(t, a.ClientAgreed)
	assert.True(t, a.WorkerAgreed)
	assert.Equal(t, lifecycle.StatusPendingAgreement, p.Status)

	res, err := f.orch.ConfirmPayment(context.Background(), client, pay(p.ID, constants.PhaseDeposit40, 20000, "ref-1"))
	require.NoError(t, err)
	assert.False(t, res.Replayed)

	p = f.project(t, p.ID)
	assert.Equal(t, lifecycle.StatusWorkStarted, p.Status)
	assert.True(t, decimal.NewFromInt(20000).Equal(p.TotalPaid))
	assert.Equal(t, res.PaymentID, p.DepositPaymentID)
}

func TestConfirmPayment_BalanceBeforeDeposit(t *testing.T) {
	f := newFixture(t)
	f.addWorker(t, "w1", constants.SkillGraphics, 3)
	p, _ := f.agreed(t, constants.SkillGraphics, 50000)
	published := f.pub.count()

	_, err := f.orch.ConfirmPayment(context.Background(), client, pay(p.ID, constants.PhaseBalance60, 30000, "ref-1"))
	require.ErrorIs(t, err, apperrors.ErrPhaseMismatch)

	after := f.project(t, p.ID)
	assert.Equal(t, p.Status, after.Status)
	assert.True(t, after.TotalPaid.IsZero())
	assert.Equal(t, published, f.pub.count())

	payments, err := f.orch.ListPayments(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestConfirmPayment_AmountMismatch(t *testing.T) {
	f := newFixture(t)
	f.addWorker(t, "w1", constants.SkillGraphics, 3)
	p, _ := f.agreed(t, constants.SkillGraphics, 50000)

	_, err := f.orch.ConfirmPayment(context.Background(), client, pay(p.ID, constants.PhaseDeposit40, 19999, "ref-1"))
	assert.ErrorIs(t, err, apperrors.ErrAmountMismatch)

	_, err = f.orch.ConfirmPayment(context.Background(), client, pay(p.ID, constants.PhaseFull100, 50000, "ref-1"))
	assert.ErrorIs(t, err, apperrors.ErrPhaseMismatch)
}

func TestConfirmPayment_ReplayIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addWorker(t, "w1", constants.SkillGraphics, 3)
	p, _ := f.agreed(t, constants.SkillGraphics, 50000)

	first, err := f.orch.ConfirmPayment(ctx, client, pay(p.ID, constants.PhaseDeposit40, 20000, "ref-1"))
	require.NoError(t, err)
	second, err := f.orch.ConfirmPayment(ctx, client, pay(p.ID, constants.PhaseDeposit40, 20000, "ref-1"))
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.PaymentID, second.PaymentID)
	assert.True(t, decimal.NewFromInt(20000).Equal(f.project(t, p.ID).TotalPaid))

	_, err = f.orch.ConfirmPayment(ctx, client, pay(p.ID, constants.PhaseBalance60, 30000, "ref-1"))
	assert.ErrorIs(t, err, apperrors.ErrDuplicatePayment)

	payments, err := f.orch.ListPayments(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestConfirmPayment_RejectsOtherPayer(t *testing.T) {
	f := newFixture(t)
	f.addWorker(t, "w1", constants.SkillGraphics, 3)
	p, _ := f.agreed(t, constants.SkillGraphics, 50000)

	req := pay(p.ID, constants.PhaseDeposit40, 20000, "ref-1")
	req.ClientID = "c2"
	_, err := f.orch.ConfirmPayment(context.Background(), client, req)
	assert.ErrorIs(t, err, apperrors.ErrNotProjectParty)
}

func TestFullLifecycle_Completes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addWorker(t, "w1", constants.SkillWeb, 3)
	p, _ := f.agreed(t, constants.SkillWeb, 1000)
	w := workerActor("w1")

	_, err := f.orch.ConfirmPayment(ctx, client, pay(p.ID, constants.PhaseDeposit40, 400, "dep"))
	require.NoError(t, err)
	_, err = f.orch.ConfirmPayment(ctx, client, pay(p.ID, constants.PhaseBalance60, 600, "early-1"))
	require.ErrorIs(t, err, apperrors.ErrPhaseMismatch, "balance during work")

	_, err = f.orch.SubmitSamples(ctx, w, p.ID, "s3://samples/v1")
	require.NoError(t, err)
	_, err = f.orch.ConfirmPayment(ctx, client, pay(p.ID, constants.PhaseBalance60, 600, "early-2"))
	require.ErrorIs(t, err, apperrors.ErrPhaseMismatch, "balance during sample review")
	_, err = f.orch.RequestSampleRevision(ctx, client, p.ID, "bigger font")
	require.NoError(t, err)
	assert.Equal(t, "bigger font", f.project(t, p.ID).SampleFeedback)

	_, err = f.orch.SubmitSamples(ctx, w, p.ID, "s3://samples/v2")
	require.NoError(t, err)
	p, err = f.orch.ApproveSamples(ctx, client, p.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusAwaitingFinalPayment, p.Status)
	assert.Equal(t, "s3://samples/v2", p.FinalDeliverableRef)

	_, err = f.orch.ApproveFinalDelivery(ctx, client, p.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	res, err := f.orch.ConfirmPayment(ctx, client, pay(p.ID, constants.PhaseBalance60, 600, "bal"))
	require.NoError(t, err)
	assert.Equal(t, string(lifecycle.StatusCompleted), res.Status)

	p = f.project(t, p.ID)
	assert.True(t, decimal.NewFromInt(1000).Equal(p.TotalPaid))
	payments, err := f.orch.ListPayments(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 2)
	assert.True(t, p.PayoutSplitDone)
	assert.NotNil(t, p.CompletedAt)
	assert.Equal(t, 0, f.worker(t, "w1").ActiveProjectCount)
	assert.Equal(t, int64(1), f.worker(t, "w1").CompletedCount)

	events, err := f.orch.GetProjectEvents(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusCompleted, events[len(events)-1].ToStatus)
}

func TestPrintingLifecycle_PaidInFull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addWorker(t, "w1", constants.SkillPrinting, 3)
	p, a := f.agreed(t, constants.SkillPrinting, 1200)

	assert.True(t, decimal.NewFromInt(1200).Equal(a.DepositAmount))
	assert.True(t, a.BalanceAmount.IsZero())

	_, err := f.orch.ConfirmPayment(ctx, client, pay(p.ID, constants.PhaseDeposit40, 480, "dep"))
	require.ErrorIs(t, err, apperrors.ErrPhaseMismatch)
	_, err = f.orch.ConfirmPayment(ctx, client, pay(p.ID, constants.PhaseFull100, 1200, "full"))
	require.NoError(t, err)

	_, err = f.orch.SubmitSamples(ctx, workerActor("w1"), p.ID, "proof.pdf")
	require.NoError(t, err)
	_, err = f.orch.ApproveSamples(ctx, client, p.ID)
	require.NoError(t, err)

	_, err = f.orch.ConfirmPayment(ctx, client, pay(p.ID, constants.PhaseBalance60, 0, "bal"))
	require.ErrorIs(t, err, apperrors.ErrPhaseMismatch)

	p, err = f.orch.ApproveFinalDelivery(ctx, client, p.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusCompleted, p.Status)
	require.NotNil(t, p.DeliveryApprovedAt)
	stamped := *p.DeliveryApprovedAt

	f.now = f.now.Add(time.Hour)
	p, err = f.orch.ApproveFinalDelivery(ctx, client, p.ID)
	require.NoError(t, err)
	assert.Equal(t, stamped, *p.DeliveryApprovedAt)
}

func TestDeclineAssignment_ExcludesWorker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addWorker(t, "w1", constants.SkillGraphics, 3)
	p := f.create(t, constants.SkillGraphics)

	p, err := f.orch.DeclineAssignment(ctx, workerActor("w1"), p.ID, "too busy")
	require.NoError(t, err)

	assert.Equal(t, lifecycle.StatusNoWorkerAvailable, p.Status)
	assert.Empty(t, p.WorkerID)
	assert.Equal(t, 0, f.worker(t, "w1").ActiveProjectCount)

	events, err := f.orch.GetProjectEvents(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, lifecycle.EventWorkerDeclined, events[1].Event)
	assert.Equal(t, lifecycle.StatusMatching, events[1].ToStatus)
	assert.Equal(t, "w1", events[1].WorkerID)
	assert.Equal(t, lifecycle.EventMatchFailed, events[2].Event)
}

func TestDeclineAssignment_RematchesAnotherWorker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addWorker(t, "w1", constants.SkillGraphics, 3)
	f.addWorker(t, "w2", constants.SkillGraphics, 3)
	p := f.create(t, constants.SkillGraphics)
	first := p.WorkerID

	p, err := f.orch.DeclineAssignment(ctx, workerActor(first), p.ID, "")
	require.NoError(t, err)

	assert.Equal(t, lifecycle.StatusAssigned, p.Status)
	assert.NotEqual(t, first, p.WorkerID)
	assert.Equal(t, 0, f.worker(t, first).ActiveProjectCount)
	assert.Equal(t, 1, f.worker(t, p.WorkerID).ActiveProjectCount)

	_, err = f.orch.DeclineAssignment(ctx, workerActor(first), p.ID, "")
	assert.ErrorIs(t, err, apperrors.ErrNotProjectParty)
}

func TestRequestReassignment_AfterPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addWorker(t, "w1", constants.SkillGraphics, 3)
	p, _ := f.agreed(t, constants.SkillGraphics, 50000)
	_, err := f.orch.ConfirmPayment(ctx, client, pay(p.ID, constants.PhaseDeposit40, 20000, "ref-1"))
	require.NoError(t, err)

	_, err = f.orch.RequestReassignment(ctx, client, p.ID, "slow")
	require.ErrorIs(t, err, apperrors.ErrPaymentsAlreadyMade)
	assert.Equal(t, lifecycle.StatusWorkStarted, f.project(t, p.ID).Status)
	assert.Equal(t, 1, f.worker(t, "w1").ActiveProjectCount)
}

func TestRequestReassignment_SupersedesAgreement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addWorker(t, "w1", constants.SkillGraphics, 3)
	f.addWorker(t, "w2", constants.SkillGraphics, 3)
	p, a := f.agreed(t, constants.SkillGraphics, 800)
	first := p.WorkerID

	p, err := f.orch.RequestReassignment(ctx, client, p.ID, "style mismatch")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusAssigned, p.Status)
	assert.NotEqual(t, first, p.WorkerID)
	assert.Empty(t, p.ActiveAgreementID)
	assert.True(t, p.TotalPrice.IsZero())

	old, err := f.orch.GetAgreement(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, old.Superseded)

	_, err = f.orch.ConfirmPayment(ctx, client, pay(p.ID, constants.PhaseDeposit40, 320, "late"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestRevisionRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addWorker(t, "w1", constants.SkillWeb, 3)
	p := f.create(t, constants.SkillWeb)
	w := workerActor("w1")

	a1, err := f.orch.SubmitPriceProposal(ctx, w, p.ID, &model.ProposalRequest{Amount: decimal.NewFromInt(900)})
	require.NoError(t, err)
	_, err = f.orch.RequestRevision(ctx, client, a1.ID, "too expensive")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusWaitingForClient, f.project(t, p.ID).Status)

	_, err = f.orch.AcceptProposal(ctx, client, a1.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	a2, err := f.orch.SubmitPriceProposal(ctx, w, p.ID, &model.ProposalRequest{Amount: decimal.RequireFromString("750.50")})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("300.20").Equal(a2.DepositAmount))
	assert.True(t, decimal.RequireFromString("450.30").Equal(a2.BalanceAmount))

	_, err = f.orch.AcceptProposal(ctx, model.Actor{ID: "c2", Role: constants.RoleClient}, a2.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotProjectParty)
	_, err = f.orch.AcceptProposal(ctx, client, a2.ID)
	require.NoError(t, err)

	history, err := f.orch.ListAgreements(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].Superseded)
	assert.False(t, history[1].Superseded)
}

func TestSubmitPriceProposal_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addWorker(t, "w1", constants.SkillWeb, 3)
	p := f.create(t, constants.SkillWeb)

	_, err := f.orch.SubmitPriceProposal(ctx, workerActor("w1"), p.ID, &model.ProposalRequest{Amount: decimal.Zero})
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	_, err = f.orch.SubmitPriceProposal(ctx, workerActor("w1"), p.ID, &model.ProposalRequest{Amount: decimal.RequireFromString("10.001")})
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	_, err = f.orch.SubmitPriceProposal(ctx, workerActor("w1"), p.ID, &model.ProposalRequest{Amount: decimal.RequireFromString("0.01")})
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument, "deposit would round to zero")
	_, err = f.orch.SubmitPriceProposal(ctx, workerActor("w9"), p.ID, &model.ProposalRequest{Amount: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, apperrors.ErrNotProjectParty)

	assert.Equal(t, lifecycle.StatusAssigned, f.project(t, p.ID).Status)
}

func TestSubmitPriceProposal_SmallestSplittableAmount(t *testing.T) {
	f := newFixture(t)
	f.addWorker(t, "w1", constants.SkillWeb, 3)
	p := f.create(t, constants.SkillWeb)

	a, err := f.orch.SubmitPriceProposal(context.Background(), workerActor("w1"), p.ID, &model.ProposalRequest{Amount: decimal.RequireFromString("0.02")})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.01").Equal(a.DepositAmount))
	assert.True(t, decimal.RequireFromString("0.01").Equal(a.BalanceAmount))
}

func TestSubmitPriceProposal_FromAssignedClearsDeadline(t *testing.T) {
	f := newFixture(t)
	f.addWorker(t, "w1", constants.SkillGraphics, 3)
	p := f.create(t, constants.SkillGraphics)
	require.NotNil(t, p.AssignmentDeadline)

	_, err := f.orch.SubmitPriceProposal(context.Background(), workerActor("w1"), p.ID, &model.ProposalRequest{Amount: decimal.NewFromInt(500)})
	require.NoError(t, err)

	p = f.project(t, p.ID)
	assert.Equal(t, lifecycle.StatusPendingAgreement, p.Status)
	assert.Nil(t, p.AssignmentDeadline)

	// the sweep must leave a project with a live proposal alone
	f.now = f.now.Add(48 * time.Hour)
	_, err = f.orch.ExpireStaleAssignments(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusPendingAgreement, f.project(t, p.ID).Status)
}

func TestSubmitPriceProposal_AfterAcceptanceRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addWorker(t, "w1", constants.SkillGraphics, 3)
	p, accepted := f.agreed(t, constants.SkillGraphics, 50000)
	published := f.pub.count()

	_, err := f.orch.SubmitPriceProposal(ctx, workerActor("w1"), p.ID, &model.ProposalRequest{Amount: decimal.NewFromInt(90000)})
	require.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	assert.Equal(t, published, f.pub.count())

	after := f.project(t, p.ID)
	assert.Equal(t, accepted.ID, after.ActiveAgreementID)
	assert.True(t, decimal.NewFromInt(50000).Equal(after.TotalPrice))

	a, err := f.orch.GetAgreement(ctx, accepted.ID)
	require.NoError(t, err)
	assert.False(t, a.Superseded)
	assert.Equal(t, constants.AgreementAccepted, a.Status)

	history, err := f.orch.ListAgreements(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	_, err = f.orch.ConfirmPayment(ctx, client, pay(p.ID, constants.PhaseDeposit40, 20000, "ref-1"))
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusWorkStarted, f.project(t, p.ID).Status)
}

func TestInvalidTransition_PublishesNothing(t *testing.T) {
	f := newFixture(t)
	f.addWorker(t, "w1", constants.SkillGraphics, 3)
	p := f.create(t, constants.SkillGraphics)
	published := f.pub.count()

	_, err := f.orch.SubmitSamples(context.Background(), workerActor("w1"), p.ID, "early.png")
	require.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	var te *apperrors.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, string(lifecycle.StatusAssigned), te.From)
	assert.Equal(t, published, f.pub.count())
	assert.Equal(t, lifecycle.StatusAssigned, f.project(t, p.ID).Status)
}

func TestAcceptAssignment_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addWorker(t, "w1", constants.SkillGraphics, 3)
	p := f.create(t, constants.SkillGraphics)

	f.now = f.now.Add(25 * time.Hour)
	p, err := f.orch.AcceptAssignment(ctx, workerActor("w1"), p.ID)
	require.ErrorIs(t, err, apperrors.ErrAssignmentExpired)
	require.NotNil(t, p)
	assert.Equal(t, lifecycle.StatusNoWorkerAvailable, p.Status)
	assert.Equal(t, 0, f.worker(t, "w1").ActiveProjectCount)
}

func TestAcceptAssignment_ClearsDeadline(t *testing.T) {
	f := newFixture(t)
	f.addWorker(t, "w1", constants.SkillGraphics, 3)
	p := f.create(t, constants.SkillGraphics)

	p, err := f.orch.AcceptAssignment(context.Background(), workerActor("w1"), p.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusWaitingForClient, p.Status)
	assert.Nil(t, p.AssignmentDeadline)
}

func TestExpireStaleAssignments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addWorker(t, "w1", constants.SkillGraphics, 3)
	stale := f.create(t, constants.SkillGraphics)
	taken := f.create(t, constants.SkillGraphics)
	_, err := f.orch.AcceptAssignment(ctx, workerActor("w1"), taken.ID)
	require.NoError(t, err)

	n, err := f.orch.ExpireStaleAssignments(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.now = f.now.Add(48 * time.Hour)
	n, err = f.orch.ExpireStaleAssignments(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, lifecycle.StatusNoWorkerAvailable, f.project(t, stale.ID).Status)
	assert.Equal(t, lifecycle.StatusWaitingForClient, f.project(t, taken.ID).Status)
	assert.Equal(t, 1, f.worker(t, "w1").ActiveProjectCount)
}

func TestCreateProject_RotatesAcrossWorkers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for id, rating := range map[string]float64{"a-top": 5, "b-new": 4} {
		require.NoError(t, f.repos.Workers.Create(ctx, &model.Worker{
			ID:              id,
			Name:            id,
			Skills:          []string{string(constants.SkillGraphics)},
			Available:       true,
			Rating:          rating,
			MaxProjectLimit: 3,
			PriceTier:       constants.PriceTierStandard,
		}))
	}

	var picked []string
	for i := 0; i < 4; i++ {
		p := f.create(t, constants.SkillGraphics)
		require.Equal(t, lifecycle.StatusAssigned, p.Status)
		picked = append(picked, p.WorkerID)
		_, err := f.orch.CancelProject(ctx, admin, p.ID, "round done")
		require.NoError(t, err)
		f.now = f.now.Add(time.Minute)
	}

	assert.Equal(t, []string{"a-top", "b-new", "a-top", "b-new"}, picked)
}

func TestAdminOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addWorker(t, "w1", constants.SkillGraphics, 1)
	f.addWorker(t, "w2", constants.SkillWeb, 1)
	p := f.create(t, constants.SkillGraphics)

	_, err := f.orch.CancelProject(ctx, client, p.ID, "changed mind")
	require.ErrorIs(t, err, apperrors.ErrNotProjectParty)

	p, err = f.orch.CancelProject(ctx, admin, p.ID, "changed mind")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusCancelled, p.Status)
	assert.Equal(t, 0, f.worker(t, "w1").ActiveProjectCount)

	_, err = f.orch.CancelProject(ctx, admin, p.ID, "again")
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	p, err = f.orch.RequeueProject(ctx, admin, p.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusAssigned, p.Status)
	assert.Equal(t, "w1", p.WorkerID)

	_, err = f.orch.ForceAssign(ctx, admin, p.ID, "w2")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyAssigned)

	other := f.create(t, constants.SkillGraphics)
	require.Equal(t, lifecycle.StatusNoWorkerAvailable, other.Status)

	_, err = f.orch.ForceAssign(ctx, admin, other.ID, "w1")
	assert.ErrorIs(t, err, apperrors.ErrCapacityExceeded)
	_, err = f.orch.ForceAssign(ctx, admin, other.ID, "nobody")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	other, err = f.orch.ForceAssign(ctx, admin, other.ID, "w2")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusAssigned, other.Status)
	assert.Equal(t, constants.AssignmentAdminOverride, other.AssignmentMethod)
	assert.Equal(t, 1, f.worker(t, "w2").ActiveProjectCount)
}

func TestConcurrentCreate_NeverExceedsCapacity(t *testing.T) {
	f := newFixture(t)
	f.addWorker(t, "w1", constants.SkillGraphics, 2)

	const n = 12
	var wg sync.WaitGroup
	results := make(chan *model.Project, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := f.orch.CreateProject(context.Background(), client, &model.CreateProjectRequest{
				Title: fmt.Sprintf("job %d", i),
				Skill: constants.SkillGraphics,
			})
			if assert.NoError(t, err) {
				results <- p
			}
		}(i)
	}
	wg.Wait()
	close(results)

	assigned := 0
	for p := range results {
		if p.Status == lifecycle.StatusAssigned {
			assigned++
		}
	}
	assert.Equal(t, 2, assigned)
	assert.Equal(t, 2, f.worker(t, "w1").ActiveProjectCount)
}

func TestGetProject_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.GetProject(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.orch.AcceptProposal(context.Background(), client, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, _, err = f.orch.ListProjects(context.Background(), model.ProjectFilter{Status: "paused"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}
