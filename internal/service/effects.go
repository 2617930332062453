package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"atelier/internal/model"
	"atelier/pkg/constants"
	"atelier/pkg/interfaces"
	"atelier/pkg/lifecycle"
	"atelier/pkg/logger"
	"atelier/pkg/metrics"

	"github.com/google/uuid"
)

const effectDeliveryTimeout = 30 * time.Second

type transitionRecord struct {
	event lifecycle.Event
	to    lifecycle.Status
}

// effectBatch collects what one operation wants to emit. It is only published
// after the transaction commits, and discarded when the transaction rolls back.
type effectBatch struct {
	now         time.Time
	effects     []*model.Effect
	transitions []transitionRecord
}

func newEffectBatch(now time.Time) *effectBatch {
	return &effectBatch{now: now}
}

func (b *effectBatch) reset() {
	b.effects = b.effects[:0]
	b.transitions = b.transitions[:0]
}

func (b *effectBatch) add(t constants.EffectType, projectID, recipient, message string, payload map[string]interface{}) *model.Effect {
	e := &model.Effect{
		ID:        uuid.New().String(),
		Type:      t,
		ProjectID: projectID,
		Recipient: recipient,
		Message:   message,
		Payload:   payload,
		CreatedAt: b.now,
	}
	b.effects = append(b.effects, e)
	return e
}

func (b *effectBatch) workerStat(projectID, workerID, stat string) {
	e := b.add(constants.EffectWorkerStats, projectID, workerID, stat, map[string]interface{}{"stat": stat})
	e.WorkerID = workerID
}

// Dispatcher routes an effect to every sink that accepts its type
type Dispatcher struct {
	sinks   []interfaces.EffectSink
	metrics *metrics.Metrics
}

// NewDispatcher creates a dispatcher over sinks
func NewDispatcher(m *metrics.Metrics, sinks ...interfaces.EffectSink) *Dispatcher {
	return &Dispatcher{sinks: sinks, metrics: m}
}

// Deliver hands e to each accepting sink. Every sink is attempted; the joined
// error lets a queue consumer retry the effect.
func (d *Dispatcher) Deliver(ctx context.Context, e *model.Effect) error {
	var errs []error
	for _, sink := range d.sinks {
		if !sink.Accepts(e.Type) {
			continue
		}
		if err := sink.Deliver(ctx, e); err != nil {
			logger.WarnCtx(ctx, "side effect delivery failed, sink: %s, effect: %s, type: %s, project: %s, error: %v",
				sink.Name(), e.ID, e.Type, e.ProjectID, err)
			d.metrics.ObserveEffect(string(e.Type), "failed")
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
		d.metrics.ObserveEffect(string(e.Type), "delivered")
	}
	return errors.Join(errs...)
}

// InlinePublisher delivers effects on a background goroutine. Used when no
// Redis is configured for the queue.
type InlinePublisher struct {
	dispatcher *Dispatcher
	wg         sync.WaitGroup
}

// NewInlinePublisher creates an in-process publisher
func NewInlinePublisher(d *Dispatcher) *InlinePublisher {
	return &InlinePublisher{dispatcher: d}
}

func (p *InlinePublisher) Publish(ctx context.Context, effects []*model.Effect) error {
	if len(effects) == 0 {
		return nil
	}
	batch := append([]*model.Effect(nil), effects...)
	traceID := logger.TraceID(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		dctx, cancel := context.WithTimeout(logger.WithTraceID(context.Background(), traceID), effectDeliveryTimeout)
		defer cancel()
		for _, e := range batch {
			_ = p.dispatcher.Deliver(dctx, e)
		}
	}()
	return nil
}

// Close waits for in-flight deliveries
func (p *InlinePublisher) Close() error {
	p.wg.Wait()
	return nil
}

// StatsSink turns worker_stats effects into per-worker counters
type StatsSink struct {
	metrics *metrics.Metrics
}

// NewStatsSink creates the worker stats sink
func NewStatsSink(m *metrics.Metrics) *StatsSink {
	return &StatsSink{metrics: m}
}

func (s *StatsSink) Name() string { return "worker_stats" }

func (s *StatsSink) Accepts(t constants.EffectType) bool {
	return t == constants.EffectWorkerStats
}

func (s *StatsSink) Deliver(ctx context.Context, e *model.Effect) error {
	stat, _ := e.Payload["stat"].(string)
	if e.WorkerID == "" || stat == "" {
		return fmt.Errorf("worker_stats effect %s without worker or stat", e.ID)
	}
	s.metrics.IncWorkerStat(e.WorkerID, stat)
	return nil
}
