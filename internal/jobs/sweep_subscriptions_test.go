package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/DukeRupert/compliq/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockSync struct {
	mock.Mock
}

func (m *mockSync) Sync(ctx context.Context, userID uuid.UUID, email, trigger string) (*service.SyncResult, error) {
	args := m.Called(ctx, userID, email, trigger)
	res, _ := args.Get(0).(*service.SyncResult)
	return res, args.Error(1)
}

func (m *mockSync) SyncCustomer(ctx context.Context, customerID, clientReferenceID string) (*service.SyncResult, error) {
	args := m.Called(ctx, customerID, clientReferenceID)
	res, _ := args.Get(0).(*service.SyncResult)
	return res, args.Error(1)
}

func (m *mockSync) State(ctx context.Context, userID uuid.UUID) (*domain.SubscriptionState, error) {
	args := m.Called(ctx, userID)
	st, _ := args.Get(0).(*domain.SubscriptionState)
	return st, args.Error(1)
}

func (m *mockSync) SweepExpired(ctx context.Context, now time.Time, batch int) (int, error) {
	args := m.Called(ctx, now, batch)
	return args.Int(0), args.Error(1)
}

func TestSweepSubscriptions_Handle(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("passes clock and batch", func(t *testing.T) {
		m := &mockSync{}
		m.On("SweepExpired", mock.Anything, now, 50).Return(3, nil).Once()

		h := NewSweepSubscriptionsHandler(m, 50, logger)
		h.now = func() time.Time { return now }

		assert.Equal(t, JobTypeSweepSubscriptions, h.Type())
		assert.NoError(t, h.Handle(context.Background()))
		m.AssertExpectations(t)
	})

	t.Run("surfaces store errors", func(t *testing.T) {
		m := &mockSync{}
		failure := domain.UpstreamUnavailable("subscription.sweep", "store unavailable", errors.New("conn refused"))
		m.On("SweepExpired", mock.Anything, now, 10).Return(0, failure).Once()

		h := NewSweepSubscriptionsHandler(m, 10, logger)
		h.now = func() time.Time { return now }

		err := h.Handle(context.Background())
		assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
	})
}
