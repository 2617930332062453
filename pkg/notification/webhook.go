package notification

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"atelier/internal/model"
	"atelier/pkg/constants"
	"atelier/pkg/logger"
)

const maxErrorBody = 512

// CollaboratorWebhook forwards user-facing effects (chat system messages,
// proposals, payment requests, assignment notices) to the chat/notification layer.
type CollaboratorWebhook struct {
	url    string
	client *http.Client
}

// NewCollaboratorWebhook creates the sink; an empty url disables delivery
func NewCollaboratorWebhook(url string) *CollaboratorWebhook {
	if url == "" {
		logger.Warn("collaborator webhook URL not configured, chat and user notifications will be dropped")
	}
	return &CollaboratorWebhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *CollaboratorWebhook) Name() string { return "collaborator_webhook" }

func (w *CollaboratorWebhook) Accepts(t constants.EffectType) bool {
	switch t {
	case constants.EffectAssignmentNotification,
		constants.EffectPriceProposal,
		constants.EffectPaymentRequest,
		constants.EffectSampleReview,
		constants.EffectSystemMessage:
		return true
	}
	return false
}

// Deliver posts the effect record as JSON. Non-2xx responses are errors so the
// queue retries them.
func (w *CollaboratorWebhook) Deliver(ctx context.Context, e *model.Effect) error {
	if w.url == "" {
		return nil
	}

	body, err := e.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal effect: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Effect-Type", string(e.Type))
	req.Header.Set("Idempotency-Key", e.ID)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call collaborator webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("collaborator webhook returned %d: %s", resp.StatusCode, msg)
	}
	return nil
}
