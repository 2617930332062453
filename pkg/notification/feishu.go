package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	"atelier/internal/model"
	"atelier/pkg/constants"
	"atelier/pkg/logger"
)

// FeishuNotifier sends admin alerts to a Feishu (Lark) group bot
type FeishuNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewFeishuNotifier creates a new Feishu notifier.
// Priority: config value > FEISHU_WEBHOOK_URL environment variable.
func NewFeishuNotifier(webhookURL string) *FeishuNotifier {
	if webhookURL != "" {
		logger.Info("Using Feishu webhook URL from config file")
	} else {
		webhookURL = os.Getenv("FEISHU_WEBHOOK_URL")
		if webhookURL != "" {
			logger.Info("Using Feishu webhook URL from environment variable")
		}
	}

	if webhookURL == "" {
		logger.Warn("Feishu webhook URL not configured (check config file or FEISHU_WEBHOOK_URL env), admin alerts will only be logged")
	}

	return &FeishuNotifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (f *FeishuNotifier) Name() string { return "feishu" }

// Accepts only admin alerts; everything else goes to the collaborator layer
func (f *FeishuNotifier) Accepts(t constants.EffectType) bool {
	return t == constants.EffectAdminAlert
}

// Deliver posts the alert as an interactive card
func (f *FeishuNotifier) Deliver(ctx context.Context, e *model.Effect) error {
	if f.webhookURL == "" {
		logger.WarnCtx(ctx, "Feishu webhook URL not configured, admin alert for project %s: %s", e.ProjectID, e.Message)
		return nil
	}

	payload, err := json.Marshal(f.buildAlertMessage(e))
	if err != nil {
		return fmt.Errorf("failed to marshal Feishu message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Feishu notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Feishu API returned status code: %d", resp.StatusCode)
	}

	logger.InfoCtx(ctx, "Feishu admin alert sent for project: %s", e.ProjectID)
	return nil
}

func (f *FeishuNotifier) buildAlertMessage(e *model.Effect) map[string]interface{} {
	fields := []interface{}{
		shortField("Project", e.ProjectID),
		shortField("Raised At", e.CreatedAt.UTC().Format("2006-01-02 15:04:05")),
	}

	keys := make([]string, 0, len(e.Payload))
	for k := range e.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, shortField(k, fmt.Sprint(e.Payload[k])))
	}

	return map[string]interface{}{
		"msg_type": "interactive",
		"card": map[string]interface{}{
			"header": map[string]interface{}{
				"template": "red",
				"title": map[string]interface{}{
					"content": "Project needs attention",
					"tag":     "plain_text",
				},
			},
			"elements": []interface{}{
				map[string]interface{}{
					"tag": "div",
					"text": map[string]interface{}{
						"content": e.Message,
						"tag":     "lark_md",
					},
				},
				map[string]interface{}{
					"tag": "hr",
				},
				map[string]interface{}{
					"tag":    "div",
					"fields": fields,
				},
				map[string]interface{}{
					"tag": "note",
					"elements": []interface{}{
						map[string]interface{}{
							"content": "Force assign a worker or re-queue the project from the admin API.",
							"tag":     "plain_text",
						},
					},
				},
			},
		},
	}
}

func shortField(name, value string) map[string]interface{} {
	return map[string]interface{}{
		"is_short": true,
		"text": map[string]interface{}{
			"content": fmt.Sprintf("**%s**\n%s", name, value),
			"tag":     "lark_md",
		},
	}
}
