package constants

// AssignmentMethod how the current worker was attached to a project
type AssignmentMethod string

const (
	AssignmentAuto          AssignmentMethod = "auto"
	AssignmentAdminOverride AssignmentMethod = "admin_override"
)

func (m AssignmentMethod) String() string {
	return string(m)
}

// AgreementStatus price proposal status
type AgreementStatus string

const (
	AgreementPending           AgreementStatus = "pending"
	AgreementRevisionRequested AgreementStatus = "revision_requested"
	AgreementAccepted          AgreementStatus = "accepted"
)

func (s AgreementStatus) String() string {
	return string(s)
}

// PaymentPhase escrow milestone a payment belongs to
type PaymentPhase string

const (
	PhaseDeposit40 PaymentPhase = "deposit_40"
	PhaseBalance60 PaymentPhase = "balance_60"
	PhaseFull100   PaymentPhase = "full_100"
)

func (p PaymentPhase) String() string {
	return string(p)
}

// Valid reports whether p is a known phase
func (p PaymentPhase) Valid() bool {
	switch p {
	case PhaseDeposit40, PhaseBalance60, PhaseFull100:
		return true
	}
	return false
}

// PaymentStatusCompleted is the only status a confirmed payment is stored with
const PaymentStatusCompleted = "completed"
