package asynq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"atelier/internal/model"
	"atelier/pkg/config"
	"atelier/pkg/logger"

	"github.com/hibiken/asynq"
)

const (
	TypeEffectDeliver = "effect:deliver"

	queueName       = "effects"
	deliveryTimeout = 30 * time.Second
)

// DeliverFunc delivers one side effect to its collaborators
type DeliverFunc func(ctx context.Context, e *model.Effect) error

// Manager side-effect queue: Publish enqueues after commit, the server delivers
type Manager struct {
	client   *asynq.Client
	server   *asynq.Server
	mux      *asynq.ServeMux
	maxRetry int
}

// NewManager creates queue manager
func NewManager(redisCfg config.RedisConfig, queueCfg config.QueueConfig) *Manager {
	redisOpt := asynq.RedisClientOpt{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: queueCfg.Concurrency,
			Queues: map[string]int{
				queueName: 10,
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * time.Second
			},
		},
	)

	return &Manager{
		client:   asynq.NewClient(redisOpt),
		server:   server,
		mux:      asynq.NewServeMux(),
		maxRetry: queueCfg.MaxRetry,
	}
}

// NewEffectTask wraps an effect into an asynq task
func NewEffectTask(e *model.Effect) (*asynq.Task, error) {
	payload, err := e.ToJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal effect: %w", err)
	}
	return asynq.NewTask(TypeEffectDeliver, payload), nil
}

// Publish enqueues every effect. The effect id doubles as the task id, so a
// republished effect is dropped by asynq instead of delivered twice.
func (m *Manager) Publish(ctx context.Context, effects []*model.Effect) error {
	var errs []error
	for _, e := range effects {
		task, err := NewEffectTask(e)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		info, err := m.client.EnqueueContext(ctx, task,
			asynq.TaskID(e.ID),
			asynq.Queue(queueName),
			asynq.MaxRetry(m.maxRetry),
			asynq.Timeout(deliveryTimeout),
		)
		if err != nil {
			if errors.Is(err, asynq.ErrTaskIDConflict) {
				continue
			}
			errs = append(errs, fmt.Errorf("failed to enqueue effect %s: %w", e.ID, err))
			continue
		}

		logger.DebugCtx(ctx, "effect enqueued, effect_id: %s, type: %s, queue: %s", e.ID, e.Type, info.Queue)
	}
	return errors.Join(errs...)
}

// HandleEffects registers the delivery function for effect tasks
func (m *Manager) HandleEffects(deliver DeliverFunc) {
	m.mux.Handle(TypeEffectDeliver, EffectHandler(deliver))
}

// EffectHandler adapts a DeliverFunc to asynq. Undecodable payloads are not retried.
func EffectHandler(deliver DeliverFunc) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		e, err := model.EffectFromJSON(t.Payload())
		if err != nil {
			return fmt.Errorf("bad effect payload: %v: %w", err, asynq.SkipRetry)
		}
		return deliver(ctx, e)
	})
}

// Start starts queue processor
func (m *Manager) Start() error {
	logger.InfoCtx(context.Background(), "starting effect queue server")
	return m.server.Start(m.mux)
}

// Stop stops queue processor
func (m *Manager) Stop() {
	logger.InfoCtx(context.Background(), "stopping effect queue server")
	m.server.Stop()
	m.server.Shutdown()
}

// Close closes client
func (m *Manager) Close() error {
	return m.client.Close()
}
