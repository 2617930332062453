package interfaces

import (
	"context"

	"atelier/internal/model"
	"atelier/pkg/constants"
)

// EffectPublisher hands committed side effects to the delivery path.
// Implementations: asynq queue, inline goroutine dispatcher.
type EffectPublisher interface {
	Publish(ctx context.Context, effects []*model.Effect) error
	Close() error
}

// EffectSink delivers one kind of side effect to an external collaborator
type EffectSink interface {
	Name() string
	Accepts(t constants.EffectType) bool
	Deliver(ctx context.Context, e *model.Effect) error
}
