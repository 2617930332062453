package constants

// EffectType side effect variant emitted to external collaborators
type EffectType string

const (
	EffectAssignmentNotification EffectType = "assignment_notification"
	EffectAdminAlert             EffectType = "admin_alert"
	EffectPriceProposal          EffectType = "price_proposal"
	EffectPaymentRequest         EffectType = "payment_request"
	EffectSampleReview           EffectType = "sample_review"
	EffectSystemMessage          EffectType = "system_message"
	EffectWorkerStats            EffectType = "worker_stats"
)

func (t EffectType) String() string {
	return string(t)
}
