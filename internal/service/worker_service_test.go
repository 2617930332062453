package service

import (
	"context"
	"testing"

	"atelier/internal/model"
	"atelier/pkg/apperrors"
	"atelier/pkg/constants"
	"atelier/pkg/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWorkerService(t *testing.T) *WorkerService {
	t.Helper()
	s := NewWorkerService(memory.New().Repositories().Workers)
	_, err := s.RegisterWorker(context.Background(), &model.RegisterWorkerRequest{
		ID:     "w1",
		Name:   "Mei",
		Skills: []string{"graphics"},
		Rating: 3,
	})
	require.NoError(t, err)
	return s
}

func TestRegisterWorker_Defaults(t *testing.T) {
	s := newWorkerService(t)

	w, err := s.GetWorker(context.Background(), "w1")
	require.NoError(t, err)
	assert.True(t, w.Available)
	assert.Equal(t, DefaultMaxProjectLimit, w.MaxProjectLimit)
	assert.Equal(t, constants.PriceTierStandard, w.PriceTier)
}

func TestRegisterWorker_Validation(t *testing.T) {
	s := newWorkerService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  model.RegisterWorkerRequest
	}{
		{"unknown skill", model.RegisterWorkerRequest{Name: "x", Skills: []string{"juggling"}}},
		{"duplicate skill", model.RegisterWorkerRequest{Name: "x", Skills: []string{"web", "web"}}},
		{"rating too high", model.RegisterWorkerRequest{Name: "x", Skills: []string{"web"}, Rating: 6}},
		{"unknown tier", model.RegisterWorkerRequest{Name: "x", Skills: []string{"web"}, PriceTier: "platinum"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.RegisterWorker(ctx, &tt.req)
			assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
		})
	}
}

func TestUpdateWorker_SelfServiceFields(t *testing.T) {
	s := newWorkerService(t)
	ctx := context.Background()
	name := "Mei Lin"
	off := false

	w, err := s.UpdateWorker(ctx, workerActor("w1"), "w1", &model.UpdateWorkerRequest{
		Name:      &name,
		Skills:    []string{"graphics", "web"},
		Available: &off,
	})
	require.NoError(t, err)
	assert.Equal(t, "Mei Lin", w.Name)
	assert.Equal(t, []string{"graphics", "web"}, w.Skills)
	assert.False(t, w.Available)
}

func TestUpdateWorker_AdminFieldsRequireAdmin(t *testing.T) {
	s := newWorkerService(t)
	ctx := context.Background()
	rating := 5.0
	limit := 50
	tier := constants.PriceTierPremium

	for name, req := range map[string]*model.UpdateWorkerRequest{
		"rating": {Rating: &rating},
		"limit":  {MaxProjectLimit: &limit},
		"tier":   {PriceTier: &tier},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := s.UpdateWorker(ctx, workerActor("w1"), "w1", req)
			assert.ErrorIs(t, err, apperrors.ErrNotProjectParty)
		})
	}

	w, err := s.GetWorker(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, 3.0, w.Rating)
	assert.Equal(t, DefaultMaxProjectLimit, w.MaxProjectLimit)
	assert.Equal(t, constants.PriceTierStandard, w.PriceTier)

	w, err = s.UpdateWorker(ctx, admin, "w1", &model.UpdateWorkerRequest{Rating: &rating, MaxProjectLimit: &limit, PriceTier: &tier})
	require.NoError(t, err)
	assert.Equal(t, 5.0, w.Rating)
	assert.Equal(t, 50, w.MaxProjectLimit)
	assert.Equal(t, constants.PriceTierPremium, w.PriceTier)
}

func TestUpdateWorker_OtherActorsRejected(t *testing.T) {
	s := newWorkerService(t)
	name := "x"

	_, err := s.UpdateWorker(context.Background(), workerActor("w2"), "w1", &model.UpdateWorkerRequest{Name: &name})
	assert.ErrorIs(t, err, apperrors.ErrNotProjectParty)
	_, err = s.UpdateWorker(context.Background(), client, "w1", &model.UpdateWorkerRequest{Name: &name})
	assert.ErrorIs(t, err, apperrors.ErrNotProjectParty)
}
