// Package lifecycle defines the project state machine.
//
// Every status change in the engine goes through Next; a (status, event)
// pair missing from the table is rejected with an *apperrors.TransitionError.
package lifecycle

import (
	"sort"

	"atelier/pkg/apperrors"
)

// Status project status
type Status string

const (
	StatusQueued               Status = "queued"
	StatusMatching             Status = "matching"
	StatusAssigned             Status = "assigned"
	StatusWaitingForClient     Status = "waiting_for_client"
	StatusPendingAgreement     Status = "pending_agreement"
	StatusWorkStarted          Status = "work_started"
	StatusReviewSamples        Status = "review_samples"
	StatusAwaitingFinalPayment Status = "awaiting_final_payment"
	StatusCompleted            Status = "completed"
	StatusNoWorkerAvailable    Status = "NO_WORKER_AVAILABLE"
	StatusCancelled            Status = "cancelled"
)

func (s Status) String() string {
	return string(s)
}

// Event lifecycle event
type Event string

const (
	EventMatchSucceeded          Event = "match_succeeded"
	EventMatchFailed             Event = "match_failed"
	EventAdminAssigned           Event = "admin_assigned"
	EventWorkerAccepted          Event = "worker_accepted"
	EventWorkerDeclined          Event = "worker_declined"
	EventAssignmentExpired       Event = "assignment_expired"
	EventReassignmentRequested   Event = "reassignment_requested"
	EventProposalSubmitted       Event = "proposal_submitted"
	EventRevisionRequested       Event = "revision_requested"
	EventProposalAccepted        Event = "proposal_accepted"
	EventDepositConfirmed        Event = "deposit_confirmed"
	EventSamplesSubmitted        Event = "samples_submitted"
	EventSamplesApproved         Event = "samples_approved"
	EventSampleRevisionRequested Event = "sample_revision_requested"
	EventBalanceConfirmed        Event = "balance_confirmed"
	EventDeliveryApproved        Event = "delivery_approved"
	EventCancelled               Event = "cancelled"
	EventRequeued                Event = "requeued"
)

func (e Event) String() string {
	return string(e)
}

var transitions = map[Status]map[Event]Status{
	StatusQueued: {
		EventMatchSucceeded: StatusAssigned,
		EventMatchFailed:    StatusNoWorkerAvailable,
		EventAdminAssigned:  StatusAssigned,
		EventCancelled:      StatusCancelled,
	},
	StatusMatching: {
		EventMatchSucceeded: StatusAssigned,
		EventMatchFailed:    StatusNoWorkerAvailable,
		EventAdminAssigned:  StatusAssigned,
		EventCancelled:      StatusCancelled,
	},
	StatusAssigned: {
		EventWorkerAccepted:        StatusWaitingForClient,
		EventWorkerDeclined:        StatusMatching,
		EventAssignmentExpired:     StatusMatching,
		EventReassignmentRequested: StatusMatching,
		EventProposalSubmitted:     StatusPendingAgreement,
		EventCancelled:             StatusCancelled,
	},
	StatusWaitingForClient: {
		EventWorkerDeclined:        StatusMatching,
		EventReassignmentRequested: StatusMatching,
		EventProposalSubmitted:     StatusPendingAgreement,
		EventCancelled:             StatusCancelled,
	},
	StatusPendingAgreement: {
		EventWorkerDeclined:        StatusMatching,
		EventReassignmentRequested: StatusMatching,
		EventProposalSubmitted:     StatusPendingAgreement,
		EventRevisionRequested:     StatusWaitingForClient,
		EventProposalAccepted:      StatusPendingAgreement,
		EventDepositConfirmed:      StatusWorkStarted,
		EventCancelled:             StatusCancelled,
	},
	StatusWorkStarted: {
		EventSamplesSubmitted: StatusReviewSamples,
		EventCancelled:        StatusCancelled,
	},
	StatusReviewSamples: {
		EventSamplesApproved:         StatusAwaitingFinalPayment,
		EventSampleRevisionRequested: StatusWorkStarted,
		EventCancelled:               StatusCancelled,
	},
	StatusAwaitingFinalPayment: {
		EventBalanceConfirmed: StatusCompleted,
		EventDeliveryApproved: StatusCompleted,
		EventCancelled:        StatusCancelled,
	},
	StatusNoWorkerAvailable: {
		EventAdminAssigned: StatusAssigned,
		EventRequeued:      StatusQueued,
	},
	StatusCancelled: {
		EventRequeued: StatusQueued,
	},
	StatusCompleted: {},
}

// Next returns the status reached by applying event to from.
func Next(from Status, event Event) (Status, error) {
	if to, ok := transitions[from][event]; ok {
		return to, nil
	}
	return from, &apperrors.TransitionError{From: string(from), Event: string(event)}
}

// Can reports whether event is allowed from status.
func Can(from Status, event Event) bool {
	_, ok := transitions[from][event]
	return ok
}

// IsTerminal reports whether s only leaves through an explicit admin action (or never).
func IsTerminal(s Status) bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoWorkerAvailable:
		return true
	}
	return false
}

// Known reports whether s is part of the state machine.
func Known(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// HasWorker reports whether a worker must be attached in status s.
func HasWorker(s Status) bool {
	switch s {
	case StatusAssigned, StatusWaitingForClient, StatusPendingAgreement,
		StatusWorkStarted, StatusReviewSamples, StatusAwaitingFinalPayment, StatusCompleted:
		return true
	}
	return false
}

// Statuses lists every status in a stable order.
func Statuses() []Status {
	out := make([]Status, 0, len(transitions))
	for s := range transitions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Events lists every event in a stable order.
func Events() []Event {
	seen := make(map[Event]struct{})
	for _, edges := range transitions {
		for e := range edges {
			seen[e] = struct{}{}
		}
	}
	out := make([]Event, 0, len(seen))
	for e := range seen {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
