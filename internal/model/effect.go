package model

import (
	"encoding/json"
	"time"

	"atelier/pkg/constants"
)

// Effect is a best-effort side effect emitted after a committed transition.
// It is a notification record only; no state is ever derived from it.
type Effect struct {
	ID        string                 `json:"id"`
	Type      constants.EffectType   `json:"type"`
	ProjectID string                 `json:"project_id"`
	Recipient string                 `json:"recipient,omitempty"` // client, worker or admin id
	WorkerID  string                 `json:"worker_id,omitempty"`
	Message   string                 `json:"message"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// ToJSON converts the effect to JSON bytes
func (e *Effect) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EffectFromJSON decodes an effect
func EffectFromJSON(data []byte) (*Effect, error) {
	var e Effect
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Actor authenticated caller
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// IsAdmin reports whether the actor bypasses party checks
func (a Actor) IsAdmin() bool {
	return a.Role == constants.RoleAdmin
}
