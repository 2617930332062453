package lifecycle

import (
	"errors"
	"testing"

	"atelier/pkg/apperrors"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext_HappyPath(t *testing.T) {
	steps := []struct {
		event Event
		want  Status
	}{
		{EventMatchSucceeded, StatusAssigned},
		{EventWorkerAccepted, StatusWaitingForClient},
		{EventProposalSubmitted, StatusPendingAgreement},
		{EventProposalAccepted, StatusPendingAgreement},
		{EventDepositConfirmed, StatusWorkStarted},
		{EventSamplesSubmitted, StatusReviewSamples},
		{EventSamplesApproved, StatusAwaitingFinalPayment},
		{EventBalanceConfirmed, StatusCompleted},
	}

	status := StatusQueued
	for _, step := range steps {
		next, err := Next(status, step.event)
		require.NoError(t, err, "event %s from %s", step.event, status)
		assert.Equal(t, step.want, next)
		status = next
	}
}

func TestNext_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		from  Status
		event Event
	}{
		{"balance before work", StatusPendingAgreement, EventBalanceConfirmed},
		{"deposit from assigned", StatusAssigned, EventDepositConfirmed},
		{"match twice", StatusAssigned, EventMatchSucceeded},
		{"completed is final", StatusCompleted, EventCancelled},
		{"completed cannot requeue", StatusCompleted, EventRequeued},
		{"decline after work started", StatusWorkStarted, EventWorkerDeclined},
		{"reassign after work started", StatusWorkStarted, EventReassignmentRequested},
		{"expiry only while assigned", StatusWaitingForClient, EventAssignmentExpired},
		{"cancelled cannot be cancelled", StatusCancelled, EventCancelled},
		{"unknown status", Status("bogus"), EventCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := Next(tt.from, tt.event)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidTransition))
			assert.Equal(t, tt.from, next, "rejected event must not move the status")

			var te *apperrors.TransitionError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, string(tt.from), te.From)
			assert.Equal(t, string(tt.event), te.Event)
		})
	}
}

func TestCancelReachableFromEveryNonTerminal(t *testing.T) {
	for _, s := range Statuses() {
		if IsTerminal(s) {
			assert.False(t, Can(s, EventCancelled), "terminal %s must not be cancellable", s)
			continue
		}
		next, err := Next(s, EventCancelled)
		require.NoError(t, err, "cancel from %s", s)
		assert.Equal(t, StatusCancelled, next)
	}
}

func TestHasWorker(t *testing.T) {
	assert.False(t, HasWorker(StatusQueued))
	assert.False(t, HasWorker(StatusMatching))
	assert.False(t, HasWorker(StatusNoWorkerAvailable))
	assert.True(t, HasWorker(StatusAssigned))
	assert.True(t, HasWorker(StatusAwaitingFinalPayment))
	assert.True(t, HasWorker(StatusCompleted))
}

// TestProperty_TransitionClosure checks that the table never leaves the known state set
// and that rejected events always keep the current status.
func TestProperty_TransitionClosure(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500

	properties := gopter.NewProperties(parameters)
	statuses := Statuses()
	events := Events()

	properties.Property("targets are known statuses", prop.ForAll(
		func(si, ei int) bool {
			from := statuses[si]
			next, err := Next(from, events[ei])
			if err != nil {
				return next == from && errors.Is(err, apperrors.ErrInvalidTransition)
			}
			return Known(next)
		},
		gen.IntRange(0, len(statuses)-1),
		gen.IntRange(0, len(events)-1),
	))

	properties.Property("random walks never leave completed", prop.ForAll(
		func(path []int) bool {
			status := StatusCompleted
			for _, ei := range path {
				next, err := Next(status, events[ei%len(events)])
				if err == nil {
					status = next
				}
			}
			return status == StatusCompleted
		},
		gen.SliceOf(gen.IntRange(0, 1000)),
	))

	properties.TestingRun(t)
}
