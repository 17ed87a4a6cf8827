package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

type OutboxRepository interface {
	Create(ctx context.Context, ev model.OutboxEvent) error
	// pendingかつnext_attempt_at <= now を古い順に取り、leaseの間は他から拾われないようにする
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]model.OutboxEvent, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, attempts int, nextAttemptAt time.Time, lastErr string, dead bool) error
}

// 採番（注文番号など）。nameごとに1から単調増加。
type CounterRepository interface {
	Next(ctx context.Context, name string) (int64, error)
}
