package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"atelier/internal/model"
	"atelier/pkg/constants"
	"atelier/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	name    string
	accepts constants.EffectType
	err     error

	mu   sync.Mutex
	seen []string
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) Accepts(t constants.EffectType) bool { return t == s.accepts }

func (s *fakeSink) Deliver(_ context.Context, e *model.Effect) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, e.ID)
	return s.err
}

func (s *fakeSink) delivered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}

func TestDispatcher_RoutesByType(t *testing.T) {
	alerts := &fakeSink{name: "alerts", accepts: constants.EffectAdminAlert}
	broken := &fakeSink{name: "broken", accepts: constants.EffectSystemMessage, err: errors.New("503")}
	messages := &fakeSink{name: "messages", accepts: constants.EffectSystemMessage}
	d := NewDispatcher(nil, alerts, broken, messages)

	require.NoError(t, d.Deliver(context.Background(), &model.Effect{ID: "e1", Type: constants.EffectAdminAlert}))

	err := d.Deliver(context.Background(), &model.Effect{ID: "e2", Type: constants.EffectSystemMessage})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")

	assert.Equal(t, []string{"e1"}, alerts.delivered())
	assert.Equal(t, []string{"e2"}, broken.delivered())
	assert.Equal(t, []string{"e2"}, messages.delivered(), "a failing sink does not stop the others")
}

func TestInlinePublisher_DeliversAfterClose(t *testing.T) {
	sink := &fakeSink{name: "messages", accepts: constants.EffectSystemMessage}
	pub := NewInlinePublisher(NewDispatcher(nil, sink))

	batch := newEffectBatch(time.Now())
	batch.add(constants.EffectSystemMessage, "p1", "c1", "one", nil)
	batch.add(constants.EffectSystemMessage, "p1", "c1", "two", nil)
	require.NoError(t, pub.Publish(context.Background(), batch.effects))
	require.NoError(t, pub.Close())

	assert.Equal(t, []string{batch.effects[0].ID, batch.effects[1].ID}, sink.delivered())
}

func TestStatsSink(t *testing.T) {
	m := metrics.New()
	sink := NewStatsSink(m)
	assert.True(t, sink.Accepts(constants.EffectWorkerStats))
	assert.False(t, sink.Accepts(constants.EffectAdminAlert))

	batch := newEffectBatch(time.Now())
	batch.workerStat("p1", "w1", "assigned")
	batch.workerStat("p2", "w1", "assigned")
	for _, e := range batch.effects {
		require.NoError(t, sink.Deliver(context.Background(), e))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.WorkerStats.WithLabelValues("w1", "assigned")))
	assert.Error(t, sink.Deliver(context.Background(), &model.Effect{ID: "x", Type: constants.EffectWorkerStats}))
}
