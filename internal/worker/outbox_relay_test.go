package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type OutboxRepoMock struct{ mock.Mock }

var _ repo.OutboxRepository = (*OutboxRepoMock)(nil)

func (m *OutboxRepoMock) Create(ctx context.Context, ev model.OutboxEvent) error {
	panic("not used in relay tests")
}

func (m *OutboxRepoMock) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]model.OutboxEvent, error) {
	args := m.Called(ctx, now, lease, limit)
	evs, _ := args.Get(0).([]model.OutboxEvent)
	return evs, args.Error(1)
}

func (m *OutboxRepoMock) MarkDone(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *OutboxRepoMock) MarkFailed(ctx context.Context, id string, attempts int, nextAttemptAt time.Time, lastErr string, dead bool) error {
	return m.Called(ctx, id, attempts, nextAttemptAt, lastErr, dead).Error(0)
}

// idごとに失敗させるSink
type sinkStub struct {
	fail      map[string]error
	delivered []string
}

func (s *sinkStub) Deliver(_ context.Context, ev model.OutboxEvent) error {
	if err := s.fail[ev.ID]; err != nil {
		return err
	}
	s.delivered = append(s.delivered, ev.ID)
	return nil
}

var relayNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func newTestRelay(outbox repo.OutboxRepository, sink Sink, maxAttempts int) *OutboxRelay {
	r := NewOutboxRelay(outbox, sink, RelayConfig{BatchSize: 10, MaxAttempts: maxAttempts}, zerolog.Nop())
	r.now = func() time.Time { return relayNow }
	return r
}

func TestOutboxRelay_RunOnce(t *testing.T) {
	ctx := context.Background()
	outbox := new(OutboxRepoMock)
	sink := &sinkStub{fail: map[string]error{"ev-2": errors.New("smtp down")}}

	outbox.On("ClaimDue", ctx, relayNow, 5*time.Minute, 10).Return([]model.OutboxEvent{
		{ID: "ev-1", EventType: model.EventOrderConfirmed},
		{ID: "ev-2", EventType: model.EventOrderShipped, Attempts: 2},
	}, nil).Once()
	outbox.On("MarkDone", ctx, "ev-1").Return(nil).Once()
	// 3回目の失敗なので 2^3 秒後
	outbox.On("MarkFailed", ctx, "ev-2", 3, relayNow.Add(8*time.Second), "smtp down", false).Return(nil).Once()

	n, err := newTestRelay(outbox, sink, 8).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"ev-1"}, sink.delivered)
	outbox.AssertExpectations(t)
}

func TestOutboxRelay_RunOnce_DeadAtMaxAttempts(t *testing.T) {
	ctx := context.Background()
	outbox := new(OutboxRepoMock)
	sink := &sinkStub{fail: map[string]error{"ev-9": errors.New("mailbox unavailable")}}

	outbox.On("ClaimDue", ctx, relayNow, 5*time.Minute, 10).Return([]model.OutboxEvent{{ID: "ev-9", Attempts: 4}}, nil).Once()
	outbox.On("MarkFailed", ctx, "ev-9", 5, mock.AnythingOfType("time.Time"), "mailbox unavailable", true).Return(nil).Once()

	n, err := newTestRelay(outbox, sink, 5).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	outbox.AssertExpectations(t)
}

func TestOutboxRelay_RunOnce_ListError(t *testing.T) {
	ctx := context.Background()
	outbox := new(OutboxRepoMock)
	outbox.On("ClaimDue", ctx, relayNow, 5*time.Minute, 10).Return(nil, errors.New("db down")).Once()

	_, err := newTestRelay(outbox, &sinkStub{}, 8).RunOnce(ctx)
	assert.EqualError(t, err, "db down")
}

func TestOutboxRelay_RunOnce_MarkDoneErrorNotCounted(t *testing.T) {
	ctx := context.Background()
	outbox := new(OutboxRepoMock)
	outbox.On("ClaimDue", ctx, relayNow, 5*time.Minute, 10).Return([]model.OutboxEvent{{ID: "ev-1"}}, nil).Once()
	outbox.On("MarkDone", ctx, "ev-1").Return(errors.New("db down")).Once()

	n, err := newTestRelay(outbox, &sinkStub{}, 8).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestOutboxRelay_Run_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	outbox := new(OutboxRepoMock)
	outbox.On("ClaimDue", mock.Anything, relayNow, 5*time.Minute, 10).Return([]model.OutboxEvent{}, nil).Run(func(mock.Arguments) { cancel() })

	done := make(chan error, 1)
	go func() { done <- newTestRelay(outbox, &sinkStub{}, 8).Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{attempts: -1, want: time.Second},
		{attempts: 0, want: time.Second},
		{attempts: 1, want: 2 * time.Second},
		{attempts: 3, want: 8 * time.Second},
		{attempts: 9, want: 512 * time.Second},
		{attempts: 10, want: 10 * time.Minute},
		{attempts: 1000, want: 10 * time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Backoff(tt.attempts), "attempts=%d", tt.attempts)
	}
}
